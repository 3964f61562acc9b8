package types

import "time"

// RoadmapItemRequest serves create and partial update. Nil fields are left alone.
type RoadmapItemRequest struct {
	Title         *string   `json:"title,omitempty"`
	Description   *string   `json:"description,omitempty"`
	Category      *string   `json:"category,omitempty"`
	Status        *string   `json:"status,omitempty"`
	DueDate       *string   `json:"dueDate,omitempty"`
	Notes         *[]string `json:"notes,omitempty"`
	ThumbsUpGiven *bool     `json:"thumbsUpGiven,omitempty"`
	Source        *string   `json:"source,omitempty"`
}

type FeedbackRequest struct {
	MessageID      string `json:"messageId"`
	FeedbackType   string `json:"feedbackType"`
	SessionID      string `json:"sessionId,omitempty"`
	Comment        string `json:"comment,omitempty"`
	ObjectType     string `json:"objectType,omitempty"`
	ObjectID       string `json:"objectId,omitempty"`
	MessageContent string `json:"messageContent,omitempty"`
}

type FeedbackUpdate struct {
	FeedbackType *string `json:"feedbackType,omitempty"`
	Comment      *string `json:"comment,omitempty"`
}

type FeedbackResponse struct {
	FeedbackID   string    `json:"feedbackId"`
	MessageID    string    `json:"messageId"`
	FeedbackType string    `json:"feedbackType"`
	Timestamp    time.Time `json:"timestamp"`
	Message      string    `json:"message"`
}
