package dao

import (
	"context"
	"errors"
	"time"

	"wellness/wellness/sources/psql/models"

	"gorm.io/gorm"
)

const chunkBatchSize = 100

type KnowledgeDAO struct {
	DB *gorm.DB
}

func NewKnowledgeDAO(db *gorm.DB) *KnowledgeDAO {
	return &KnowledgeDAO{DB: db}
}

// ReplaceChunks swaps every chunk of documentID for chunks in one transaction.
func (dao *KnowledgeDAO) ReplaceChunks(ctx context.Context, documentID string, chunks []models.KnowledgeChunk) error {
	return dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&models.KnowledgeChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(&chunks, chunkBatchSize).Error
	})
}

// Candidates returns the chunks visible to userID: their own plus shared ones.
func (dao *KnowledgeDAO) Candidates(ctx context.Context, userID string) ([]models.KnowledgeChunk, error) {
	var chunks []models.KnowledgeChunk
	err := dao.DB.WithContext(ctx).
		Where("user_id = ? OR user_id = ''", userID).
		Order("document_id, ordinal").
		Find(&chunks).Error
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

func (dao *KnowledgeDAO) CountByDocument(ctx context.Context, documentID string) (int64, error) {
	var n int64
	err := dao.DB.WithContext(ctx).Model(&models.KnowledgeChunk{}).Where("document_id = ?", documentID).Count(&n).Error
	return n, err
}

func (dao *KnowledgeDAO) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	res := dao.DB.WithContext(ctx).Where("document_id = ?", documentID).Delete(&models.KnowledgeChunk{})
	return res.RowsAffected, res.Error
}

func (dao *KnowledgeDAO) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, errors.New("refusing to delete shared chunks")
	}
	res := dao.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.KnowledgeChunk{})
	return res.RowsAffected, res.Error
}

func (dao *KnowledgeDAO) CreateWebSource(ctx context.Context, src *models.WebSource) error {
	return dao.DB.WithContext(ctx).Create(src).Error
}

func (dao *KnowledgeDAO) GetWebSourceByURL(ctx context.Context, url string) (*models.WebSource, error) {
	var src models.WebSource
	err := dao.DB.WithContext(ctx).Where("url = ?", url).First(&src).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func (dao *KnowledgeDAO) ListWebSources(ctx context.Context, enabledOnly bool) ([]models.WebSource, error) {
	q := dao.DB.WithContext(ctx).Order("created_at asc")
	if enabledOnly {
		q = q.Where("enabled = ?", true)
	}
	var out []models.WebSource
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MarkWebSourceSynced records the outcome of one crawl.
func (dao *KnowledgeDAO) MarkWebSourceSynced(ctx context.Context, id string, chunkCount int, syncErr error) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"last_synced_at": &now,
		"last_error":     "",
	}
	if syncErr != nil {
		updates["last_error"] = syncErr.Error()
	} else {
		updates["chunk_count"] = chunkCount
	}
	return dao.DB.WithContext(ctx).Model(&models.WebSource{}).Where("id = ?", id).Updates(updates).Error
}
