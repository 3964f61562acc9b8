package dao

import (
	"context"
	"errors"
	"time"

	"wellness/wellness/sources/psql/models"

	"gorm.io/gorm"
)

type DocumentDAO struct {
	DB *gorm.DB
}

func NewDocumentDAO(db *gorm.DB) *DocumentDAO {
	return &DocumentDAO{DB: db}
}

// DocumentFilter narrows ListByUser. Zero values mean no filter.
type DocumentFilter struct {
	DocumentType string
	Statuses     []string
	Limit        int
}

func (dao *DocumentDAO) Create(ctx context.Context, doc *models.Document) error {
	return dao.DB.WithContext(ctx).Create(doc).Error
}

// Get returns the document only when it belongs to userID.
func (dao *DocumentDAO) Get(ctx context.Context, userID, id string) (*models.Document, error) {
	var doc models.Document
	err := dao.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetByID is used by the background pipeline, which has no caller identity.
func (dao *DocumentDAO) GetByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := dao.DB.WithContext(ctx).First(&doc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByUser returns newest documents first. When a limit is set, one extra row is
// fetched so the caller can tell whether more exist.
func (dao *DocumentDAO) ListByUser(ctx context.Context, userID string, f DocumentFilter) ([]models.Document, bool, error) {
	q := dao.DB.WithContext(ctx).Where("user_id = ?", userID)
	if f.DocumentType != "" {
		q = q.Where("document_type = ?", f.DocumentType)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("current_status IN ?", f.Statuses)
	}
	q = q.Order("created_at desc")
	if f.Limit > 0 {
		q = q.Limit(f.Limit + 1)
	}

	var docs []models.Document
	if err := q.Find(&docs).Error; err != nil {
		return nil, false, err
	}
	hasMore := false
	if f.Limit > 0 && len(docs) > f.Limit {
		docs = docs[:f.Limit]
		hasMore = true
	}
	return docs, hasMore, nil
}

func (dao *DocumentDAO) ListByStatus(ctx context.Context, statuses ...string) ([]models.Document, error) {
	var docs []models.Document
	err := dao.DB.WithContext(ctx).Where("current_status IN ?", statuses).Order("status_updated_at asc").Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (dao *DocumentDAO) ListAll(ctx context.Context) ([]models.Document, error) {
	var docs []models.Document
	if err := dao.DB.WithContext(ctx).Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// UpdateStatus moves a document to status. extra may carry error_message or
// ingestion_job_id.
func (dao *DocumentDAO) UpdateStatus(ctx context.Context, id, status string, extra map[string]any) error {
	updates := map[string]any{
		"current_status":    status,
		"status_updated_at": time.Now().UTC(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	return dao.DB.WithContext(ctx).Model(&models.Document{}).Where("id = ?", id).Updates(updates).Error
}

// TransitionStatus moves a document to status only while its current status
// is one of from. It reports whether the row moved.
func (dao *DocumentDAO) TransitionStatus(ctx context.Context, id, status string, from ...string) (bool, error) {
	res := dao.DB.WithContext(ctx).Model(&models.Document{}).
		Where("id = ? AND current_status IN ?", id, from).
		Updates(map[string]any{
			"current_status":    status,
			"status_updated_at": time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

// CountByUser returns document counts keyed by user id.
func (dao *DocumentDAO) CountByUser(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		UserID string
		Count  int
	}
	err := dao.DB.WithContext(ctx).Model(&models.Document{}).
		Select("user_id, count(*) as count").
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.UserID] = r.Count
	}
	return out, nil
}

func (dao *DocumentDAO) Delete(ctx context.Context, id string) error {
	return dao.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Document{}).Error
}

func (dao *DocumentDAO) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res := dao.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Document{})
	return res.RowsAffected, res.Error
}
