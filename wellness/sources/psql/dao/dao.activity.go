package dao

import (
	"context"
	"time"

	"wellness/wellness/sources/psql/models"

	"gorm.io/gorm"
)

type ActivityDAO struct {
	DB *gorm.DB
}

func NewActivityDAO(db *gorm.DB) *ActivityDAO {
	return &ActivityDAO{DB: db}
}

type ActivityFilter struct {
	UserID         string
	Types          []string
	Since          *time.Time
	ExcludeUserIDs []string
	Limit          int
}

func (dao *ActivityDAO) Create(ctx context.Context, a *models.ActivityLog) error {
	return dao.DB.WithContext(ctx).Create(a).Error
}

// Complete stores the answer of a query activity created earlier.
func (dao *ActivityDAO) Complete(ctx context.Context, id, response string, processingMs int64) error {
	return dao.DB.WithContext(ctx).Model(&models.ActivityLog{}).Where("id = ?", id).
		Updates(map[string]any{
			"response":           response,
			"processing_time_ms": processingMs,
		}).Error
}

// List returns unexpired activities, newest first.
func (dao *ActivityDAO) List(ctx context.Context, f ActivityFilter) ([]models.ActivityLog, error) {
	q := dao.DB.WithContext(ctx).Where("expires_at > ?", time.Now().UTC())
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if len(f.Types) > 0 {
		q = q.Where("request_type IN ?", f.Types)
	}
	if f.Since != nil {
		q = q.Where("timestamp >= ?", *f.Since)
	}
	if len(f.ExcludeUserIDs) > 0 {
		q = q.Where("user_id NOT IN ?", f.ExcludeUserIDs)
	}
	q = q.Order("timestamp desc")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []models.ActivityLog
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (dao *ActivityDAO) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := dao.DB.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.ActivityLog{})
	return res.RowsAffected, res.Error
}

func (dao *ActivityDAO) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res := dao.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.ActivityLog{})
	return res.RowsAffected, res.Error
}
