package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoadmapStatusNotStarted = "not_started"
	RoadmapStatusInProgress = "in_progress"
	RoadmapStatusCompleted  = "completed"
)

// RoadmapCategories are the recommendation buckets of the 90 day roadmap, "other" excluded.
var RoadmapCategories = []string{"nutrition", "fitness", "mindfulness", "sleep", "social", "habits"}

type RoadmapItem struct {
	ID            string                      `json:"itemId" gorm:"type:varchar(36);primaryKey"`
	UserID        string                      `json:"userId" gorm:"type:varchar(36);not null;index"`
	Title         string                      `json:"title" gorm:"type:varchar(255);not null"`
	Description   string                      `json:"description" gorm:"type:text;not null;default:''"`
	Category      string                      `json:"category" gorm:"type:varchar(32);not null;default:'other'"`
	Status        string                      `json:"status" gorm:"type:varchar(32);not null;default:'not_started'"`
	DueDate       string                      `json:"dueDate,omitempty" gorm:"type:varchar(40)"`
	Notes         datatypes.JSONSlice[string] `json:"notes"`
	ThumbsUpGiven bool                        `json:"thumbsUpGiven" gorm:"not null;default:false"`
	Source        string                      `json:"source" gorm:"type:varchar(16);not null;default:'manual'"`
	CompletedAt   *time.Time                  `json:"completedAt,omitempty"`
	CreatedAt     time.Time                   `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time                   `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (RoadmapItem) TableName() string {
	return "roadmap_items"
}

func (i *RoadmapItem) BeforeCreate(tx *gorm.DB) (err error) {
	ensureID(&i.ID)
	if i.Notes == nil {
		i.Notes = datatypes.JSONSlice[string]{}
	}
	return nil
}

func IsRoadmapCategory(c string) bool {
	if c == "other" {
		return true
	}
	for _, known := range RoadmapCategories {
		if known == c {
			return true
		}
	}
	return false
}

func IsRoadmapStatus(s string) bool {
	switch s {
	case RoadmapStatusNotStarted, RoadmapStatusInProgress, RoadmapStatusCompleted:
		return true
	}
	return false
}
