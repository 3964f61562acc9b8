package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// KnowledgeChunk is one retrievable passage. An empty UserID marks shared web content.
type KnowledgeChunk struct {
	ID         string                       `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID     string                       `json:"userId" gorm:"type:varchar(36);index"`
	DocumentID string                       `json:"documentId" gorm:"type:varchar(64);not null;index"`
	SourceURI  string                       `json:"sourceUri" gorm:"type:varchar(1024);not null"`
	Ordinal    int                          `json:"ordinal"`
	Content    string                       `json:"content" gorm:"type:text;not null"`
	Embedding  datatypes.JSONSlice[float32] `json:"-"`
	CreatedAt  time.Time                    `json:"createdAt" gorm:"autoCreateTime"`
}

func (KnowledgeChunk) TableName() string {
	return "kb_chunks"
}

func (c *KnowledgeChunk) BeforeCreate(tx *gorm.DB) (err error) {
	ensureID(&c.ID)
	return nil
}

type WebSource struct {
	ID           string     `json:"sourceId" gorm:"type:varchar(36);primaryKey"`
	URL          string     `json:"url" gorm:"type:varchar(1024);not null;uniqueIndex"`
	Title        string     `json:"title" gorm:"type:varchar(255)"`
	Enabled      bool       `json:"enabled" gorm:"not null;default:true"`
	ChunkCount   int        `json:"chunkCount"`
	LastError    string     `json:"lastError,omitempty" gorm:"type:text"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (WebSource) TableName() string {
	return "web_sources"
}

func (w *WebSource) BeforeCreate(tx *gorm.DB) (err error) {
	ensureID(&w.ID)
	return nil
}
