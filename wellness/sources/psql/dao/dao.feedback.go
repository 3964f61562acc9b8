package dao

import (
	"context"
	"errors"
	"time"

	"wellness/wellness/sources/psql/models"

	"gorm.io/gorm"
)

type FeedbackDAO struct {
	DB *gorm.DB
}

func NewFeedbackDAO(db *gorm.DB) *FeedbackDAO {
	return &FeedbackDAO{DB: db}
}

func (dao *FeedbackDAO) Create(ctx context.Context, fb *models.Feedback) error {
	return dao.DB.WithContext(ctx).Create(fb).Error
}

func (dao *FeedbackDAO) GetByMessage(ctx context.Context, userID, messageID string) (*models.Feedback, error) {
	var fb models.Feedback
	err := dao.DB.WithContext(ctx).Where("user_id = ? AND message_id = ?", userID, messageID).First(&fb).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

func (dao *FeedbackDAO) Save(ctx context.Context, fb *models.Feedback) error {
	return dao.DB.WithContext(ctx).Save(fb).Error
}

func (dao *FeedbackDAO) Delete(ctx context.Context, userID, messageID string) (bool, error) {
	res := dao.DB.WithContext(ctx).Where("user_id = ? AND message_id = ?", userID, messageID).Delete(&models.Feedback{})
	return res.RowsAffected > 0, res.Error
}

// ListSince returns all feedback, or only rows created at or after since when it is set.
func (dao *FeedbackDAO) ListSince(ctx context.Context, since *time.Time) ([]models.Feedback, error) {
	var out []models.Feedback
	q := dao.DB.WithContext(ctx)
	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (dao *FeedbackDAO) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res := dao.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Feedback{})
	return res.RowsAffected, res.Error
}
