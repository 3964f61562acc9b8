package dao

import (
	"context"
	"errors"
	"time"

	"wellness/wellness/sources/psql/models"

	"gorm.io/gorm"
)

type IngestionJobDAO struct {
	DB *gorm.DB
}

func NewIngestionJobDAO(db *gorm.DB) *IngestionJobDAO {
	return &IngestionJobDAO{DB: db}
}

func (dao *IngestionJobDAO) Create(ctx context.Context, job *models.IngestionJob) error {
	return dao.DB.WithContext(ctx).Create(job).Error
}

func (dao *IngestionJobDAO) Get(ctx context.Context, id string) (*models.IngestionJob, error) {
	var job models.IngestionJob
	err := dao.DB.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// SetStatus updates a job. Terminal statuses also stamp completed_at.
func (dao *IngestionJobDAO) SetStatus(ctx context.Context, id, status, reason string, chunkCount int) error {
	updates := map[string]any{"status": status}
	if reason != "" {
		updates["failure_reasons"] = reason
	}
	if status == models.JobStatusComplete || status == models.JobStatusFailed {
		now := time.Now().UTC()
		updates["completed_at"] = &now
		updates["chunk_count"] = chunkCount
	}
	return dao.DB.WithContext(ctx).Model(&models.IngestionJob{}).Where("id = ?", id).Updates(updates).Error
}

func (dao *IngestionJobDAO) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res := dao.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.IngestionJob{})
	return res.RowsAffected, res.Error
}
