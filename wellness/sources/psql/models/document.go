package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Internal document processing statuses, in pipeline order.
const (
	DocStatusUploadInitiated     = "upload_initiated"
	DocStatusUploadComplete      = "upload_complete"
	DocStatusIngestionStarted    = "ingestion_started"
	DocStatusIngestionInProgress = "ingestion_in_progress"
	DocStatusIndexingWait        = "indexing_wait"
	DocStatusIngestionComplete   = "ingestion_complete"
	DocStatusAIAnalysisComplete  = "ai_analysis_complete"
	DocStatusError               = "error"
)

type Document struct {
	ID              string         `json:"documentId" gorm:"type:varchar(36);primaryKey"`
	UserID          string         `json:"userId" gorm:"type:varchar(36);not null;index"`
	Filename        string         `json:"filename" gorm:"type:varchar(255);not null"`
	DocumentType    string         `json:"documentType" gorm:"type:varchar(32);not null;index"`
	ContentType     string         `json:"contentType" gorm:"type:varchar(128)"`
	FileSize        int64          `json:"fileSize"`
	S3Key           string         `json:"s3Key" gorm:"type:varchar(1024);not null;uniqueIndex"`
	CurrentStatus   string         `json:"currentStatus" gorm:"type:varchar(32);not null;index"`
	ErrorMessage    string         `json:"errorMessage,omitempty" gorm:"type:text"`
	IngestionJobID  string         `json:"ingestionJobId,omitempty" gorm:"type:varchar(36)"`
	Tags            datatypes.JSON `json:"tags"`
	StatusUpdatedAt time.Time      `json:"statusUpdatedAt"`
	CreatedAt       time.Time      `json:"uploadDate" gorm:"autoCreateTime;index"`
	UpdatedAt       time.Time      `json:"lastUpdated" gorm:"autoUpdateTime"`
}

func (Document) TableName() string {
	return "document_metadata"
}

func (d *Document) BeforeCreate(tx *gorm.DB) (err error) {
	ensureID(&d.ID)
	if d.StatusUpdatedAt.IsZero() {
		d.StatusUpdatedAt = time.Now().UTC()
	}
	return nil
}
