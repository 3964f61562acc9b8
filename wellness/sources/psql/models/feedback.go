package models

import (
	"time"

	"gorm.io/gorm"
)

type Feedback struct {
	ID             string    `json:"feedbackId" gorm:"type:varchar(36);primaryKey"`
	UserID         string    `json:"userId" gorm:"type:varchar(36);not null;uniqueIndex:idx_feedback_user_message"`
	MessageID      string    `json:"messageId" gorm:"type:varchar(255);not null;uniqueIndex:idx_feedback_user_message"`
	SessionID      string    `json:"sessionId" gorm:"type:varchar(255);not null;default:'unknown'"`
	FeedbackType   string    `json:"feedbackType" gorm:"type:varchar(16);not null;index"`
	Comment        string    `json:"comment,omitempty" gorm:"type:text"`
	ObjectType     string    `json:"objectType" gorm:"type:varchar(32);not null;default:'chat_message'"`
	ObjectID       string    `json:"objectId,omitempty" gorm:"type:varchar(255)"`
	MessageContent string    `json:"messageContent,omitempty" gorm:"type:text"`
	CreatedAt      time.Time `json:"createdAt" gorm:"autoCreateTime;index"`
	UpdatedAt      time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Feedback) TableName() string {
	return "feedback"
}

func (f *Feedback) BeforeCreate(tx *gorm.DB) (err error) {
	ensureID(&f.ID)
	return nil
}
