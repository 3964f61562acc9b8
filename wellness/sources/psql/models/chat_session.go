package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatSession struct {
	ID        string                           `json:"sessionId" gorm:"type:varchar(36);primaryKey"`
	UserID    string                           `json:"userId" gorm:"type:varchar(36);not null;index"`
	Title     string                           `json:"title" gorm:"type:varchar(255);not null"`
	Messages  datatypes.JSONSlice[ChatMessage] `json:"messages"`
	CreatedAt time.Time                        `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time                        `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

func (s *ChatSession) BeforeCreate(tx *gorm.DB) (err error) {
	ensureID(&s.ID)
	if s.Messages == nil {
		s.Messages = datatypes.JSONSlice[ChatMessage]{}
	}
	return nil
}
