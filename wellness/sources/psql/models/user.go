package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	GroupUsers  = "users"
	GroupAdmins = "admins"
)

type User struct {
	ID           string    `json:"userId" gorm:"type:varchar(36);primaryKey"`
	Email        string    `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	FullName     *string   `json:"fullName,omitempty" gorm:"type:varchar(255)"`
	Groups       string    `json:"-" gorm:"column:group_names;type:varchar(255);not null;default:'users'"`
	CreatedAt    time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	ensureID(&u.ID)
	return nil
}

// GroupList splits the stored comma separated groups.
func (u User) GroupList() []string {
	var groups []string
	for _, g := range strings.Split(u.Groups, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

func (u User) InGroup(group string) bool {
	for _, g := range u.GroupList() {
		if g == group {
			return true
		}
	}
	return false
}

func (u User) IsAdmin() bool {
	return u.InGroup(GroupAdmins)
}
