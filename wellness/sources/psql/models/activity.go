package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityTTL is how long activity rows are kept before the janitor removes them.
const ActivityTTL = 30 * 24 * time.Hour

type ActivityLog struct {
	ID               string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID           string         `json:"userId" gorm:"type:varchar(36);index"`
	RequestType      string         `json:"requestType" gorm:"type:varchar(64);not null;index"`
	Timestamp        time.Time      `json:"timestamp" gorm:"not null;index"`
	SessionID        string         `json:"sessionId,omitempty" gorm:"type:varchar(255)"`
	Query            string         `json:"query,omitempty" gorm:"type:text"`
	Response         string         `json:"response,omitempty" gorm:"type:text"`
	ProcessingTimeMs int64          `json:"processingTimeMs,omitempty"`
	Metadata         datatypes.JSON `json:"metadata"`
	ExpiresAt        time.Time      `json:"-" gorm:"not null;index"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) (err error) {
	ensureID(&a.ID)
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	if a.ExpiresAt.IsZero() {
		a.ExpiresAt = a.Timestamp.Add(ActivityTTL)
	}
	return nil
}
