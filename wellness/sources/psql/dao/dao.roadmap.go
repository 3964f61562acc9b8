package dao

import (
	"context"
	"errors"

	"wellness/wellness/sources/psql/models"

	"gorm.io/gorm"
)

type RoadmapDAO struct {
	DB *gorm.DB
}

func NewRoadmapDAO(db *gorm.DB) *RoadmapDAO {
	return &RoadmapDAO{DB: db}
}

func (dao *RoadmapDAO) Create(ctx context.Context, item *models.RoadmapItem) error {
	return dao.DB.WithContext(ctx).Create(item).Error
}

func (dao *RoadmapDAO) Get(ctx context.Context, userID, id string) (*models.RoadmapItem, error) {
	var item models.RoadmapItem
	err := dao.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (dao *RoadmapDAO) ListByUser(ctx context.Context, userID string) ([]models.RoadmapItem, error) {
	var items []models.RoadmapItem
	err := dao.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at asc").Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (dao *RoadmapDAO) Save(ctx context.Context, item *models.RoadmapItem) error {
	return dao.DB.WithContext(ctx).Save(item).Error
}

func (dao *RoadmapDAO) Delete(ctx context.Context, userID, id string) (bool, error) {
	res := dao.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.RoadmapItem{})
	return res.RowsAffected > 0, res.Error
}

func (dao *RoadmapDAO) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res := dao.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RoadmapItem{})
	return res.RowsAffected, res.Error
}
