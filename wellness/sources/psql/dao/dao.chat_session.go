package dao

import (
	"context"
	"errors"

	"wellness/wellness/sources/psql/models"

	"gorm.io/gorm"
)

type ChatSessionDAO struct {
	DB *gorm.DB
}

func NewChatSessionDAO(db *gorm.DB) *ChatSessionDAO {
	return &ChatSessionDAO{DB: db}
}

func (dao *ChatSessionDAO) Create(ctx context.Context, s *models.ChatSession) error {
	return dao.DB.WithContext(ctx).Create(s).Error
}

// Get returns the session only when it belongs to userID.
func (dao *ChatSessionDAO) Get(ctx context.Context, userID, id string) (*models.ChatSession, error) {
	var s models.ChatSession
	err := dao.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (dao *ChatSessionDAO) ListByUser(ctx context.Context, userID string) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := dao.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (dao *ChatSessionDAO) Save(ctx context.Context, s *models.ChatSession) error {
	return dao.DB.WithContext(ctx).Save(s).Error
}

// AppendMessages adds messages to a session inside one transaction.
// It returns nil when the session does not exist for userID.
func (dao *ChatSessionDAO) AppendMessages(ctx context.Context, userID, id string, msgs ...models.ChatMessage) (*models.ChatSession, error) {
	var out *models.ChatSession
	err := dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s models.ChatSession
		err := tx.Where("id = ? AND user_id = ?", id, userID).First(&s).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		s.Messages = append(s.Messages, msgs...)
		if err := tx.Save(&s).Error; err != nil {
			return err
		}
		out = &s
		return nil
	})
	return out, err
}

// Delete reports whether a row was removed.
func (dao *ChatSessionDAO) Delete(ctx context.Context, userID, id string) (bool, error) {
	res := dao.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.ChatSession{})
	return res.RowsAffected > 0, res.Error
}

func (dao *ChatSessionDAO) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res := dao.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.ChatSession{})
	return res.RowsAffected, res.Error
}
