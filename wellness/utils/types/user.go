package types

import "time"

type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"fullName,omitempty"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
	Email   string `json:"email"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string   `json:"token"`
	ExpiresIn int64    `json:"expiresIn"`
	UserID    string   `json:"userId"`
	Groups    []string `json:"groups"`
}

// DeleteUserRequest must carry confirm=true, deletion cannot be undone.
type DeleteUserRequest struct {
	Email   string `json:"email"`
	Confirm bool   `json:"confirm"`
}

type DeleteUserReport struct {
	UserID           string           `json:"userId"`
	Email            string           `json:"email"`
	Deleted          map[string]int64 `json:"deleted"`
	S3ObjectsDeleted int              `json:"s3ObjectsDeleted"`
	Errors           []string         `json:"errors"`
}

// UserSummary is one row of the admin user list.
type UserSummary struct {
	UserID              string    `json:"userId"`
	Email               string    `json:"email"`
	FullName            *string   `json:"fullName"`
	Groups              []string  `json:"groups"`
	CreatedAt           time.Time `json:"createdAt"`
	HasProfile          bool      `json:"hasProfile"`
	OnboardingCompleted bool      `json:"onboardingCompleted"`
	DocumentCount       int       `json:"documentCount"`
}

type ActivityLogRequest struct {
	ActivityType string         `json:"activityType"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}
