package models

import (
	"time"

	"gorm.io/datatypes"
)

const ProfileVersion = "1.0"

// UserProfile stores the onboarding family profile as a validated JSON document.
type UserProfile struct {
	UserID              string         `json:"userId" gorm:"type:varchar(36);primaryKey"`
	Profile             datatypes.JSON `json:"profile" gorm:"type:jsonb;not null"`
	OnboardingCompleted bool           `json:"onboardingCompleted" gorm:"not null;default:false"`
	Version             string         `json:"version" gorm:"type:varchar(16);not null;default:'1.0'"`
	CreatedAt           time.Time      `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt           time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}
