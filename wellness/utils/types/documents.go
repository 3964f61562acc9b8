package types

import "time"

type UploadRequest struct {
	Filename     string   `json:"filename"`
	DocumentType string   `json:"documentType,omitempty"`
	FileSize     int64    `json:"fileSize,omitempty"`
	ContentType  string   `json:"contentType,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

type UploadResponse struct {
	DocumentID string `json:"documentId"`
	UploadURL  string `json:"uploadUrl"`
	S3Key      string `json:"s3Key"`
	ExpiresIn  int    `json:"expiresIn"`
	Message    string `json:"message"`
}

type DocumentSummary struct {
	DocumentID    string    `json:"documentId"`
	Filename      string    `json:"filename"`
	DocumentType  string    `json:"documentType"`
	FileSize      int64     `json:"fileSize"`
	UploadDate    time.Time `json:"uploadDate"`
	Status        string    `json:"status"`
	StatusMessage string    `json:"statusMessage"`
	Progress      int       `json:"progress"`
	S3Key         string    `json:"s3Key"`
	Tags          []string  `json:"tags"`
}

type DocumentList struct {
	Documents []DocumentSummary `json:"documents"`
	Count     int               `json:"count"`
	HasMore   bool              `json:"hasMore"`
}

type DocumentStatus struct {
	DocumentID     string    `json:"documentId"`
	Filename       string    `json:"filename"`
	Status         string    `json:"status"`
	StatusMessage  string    `json:"statusMessage"`
	Progress       int       `json:"progress"`
	InternalStatus string    `json:"internalStatus"`
	LastUpdated    time.Time `json:"lastUpdated"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	IngestionJobID string    `json:"ingestionJobId,omitempty"`
}
