package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	JobStatusStarting   = "STARTING"
	JobStatusInProgress = "IN_PROGRESS"
	JobStatusComplete   = "COMPLETE"
	JobStatusFailed     = "FAILED"
)

// IngestionJob tracks one knowledge base indexing run for a document.
type IngestionJob struct {
	ID             string     `json:"ingestionJobId" gorm:"type:varchar(36);primaryKey"`
	UserID         string     `json:"userId" gorm:"type:varchar(36);index"`
	DocumentID     string     `json:"documentId" gorm:"type:varchar(64);not null;index"`
	ObjectKey      string     `json:"objectKey" gorm:"type:varchar(1024)"`
	Status         string     `json:"status" gorm:"type:varchar(16);not null;index"`
	FailureReasons string     `json:"failureReasons,omitempty" gorm:"type:text"`
	ChunkCount     int        `json:"chunkCount"`
	StartedAt      time.Time  `json:"startedAt" gorm:"autoCreateTime"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (IngestionJob) TableName() string {
	return "ingestion_jobs"
}

func (j *IngestionJob) BeforeCreate(tx *gorm.DB) (err error) {
	ensureID(&j.ID)
	return nil
}
