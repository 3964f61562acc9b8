package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"wellness/wellness/services/activity"
	"wellness/wellness/services/ingest"
	"wellness/wellness/services/knowledge"
	"wellness/wellness/services/sidecar"
	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/sources/storage"
	"wellness/wellness/utils/logging"
	"wellness/wellness/utils/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	MaxUploadBytes = 60 * 1024 * 1024
	uploadURLTTL   = time.Hour

	defaultDocumentLimit = 50
	maxDocumentLimit     = 100

	uploadMessage = "Upload URL generated successfully. Use PUT request to upload file."
)

var allowedExtensions = []string{".pdf", ".txt", ".doc", ".docx", ".md", ".html"}

// ErrPollTimeout is returned when a document is still processing after the
// last poll attempt.
var ErrPollTimeout = errors.New("document still processing")

type statusInfo struct {
	status   string
	message  string
	progress int
}

var statusTable = map[string]statusInfo{
	models.DocStatusUploadInitiated:     {"uploading", "Uploading document...", 10},
	models.DocStatusUploadComplete:      {"processing", "Upload complete, preparing for processing...", 30},
	models.DocStatusIngestionStarted:    {"ingesting", "Adding to knowledge base...", 50},
	models.DocStatusIngestionInProgress: {"ingesting", "Processing document content...", 70},
	models.DocStatusIndexingWait:        {"ingesting", "Finalizing indexing...", 90},
	models.DocStatusIngestionComplete:   {"ready", "Document ready for questions", 100},
	models.DocStatusAIAnalysisComplete:  {"ready", "Document ready for questions", 100},
	models.DocStatusError:               {"error", "Processing failed", 0},
}

// UserStatus maps an internal pipeline status to what the client shows.
func UserStatus(internal string) (status, message string, progress int) {
	if s, ok := statusTable[internal]; ok {
		return s.status, s.message, s.progress
	}
	return "unknown", "Processing...", 50
}

// internalStatuses lists the pipeline statuses behind a user facing one.
func internalStatuses(user string) []string {
	var out []string
	for internal, s := range statusTable {
		if s.status == user {
			out = append(out, internal)
		}
	}
	return out
}

type DocumentsController struct {
	documentDAO *dao.DocumentDAO
	store       storage.ObjectStore
	sidecars    *sidecar.Manager
	kb          *knowledge.Service
	pipeline    *ingest.Pipeline
	activity    *activity.Recorder
}

func NewDocumentsController(documentDAO *dao.DocumentDAO, store storage.ObjectStore, sidecars *sidecar.Manager, kb *knowledge.Service, pipeline *ingest.Pipeline, rec *activity.Recorder) *DocumentsController {
	return &DocumentsController{
		documentDAO: documentDAO,
		store:       store,
		sidecars:    sidecars,
		kb:          kb,
		pipeline:    pipeline,
		activity:    rec,
	}
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = strings.TrimSpace(path.Base(name))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func hasAllowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range allowedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Upload registers a document and returns a presigned PUT URL for it.
func (c *DocumentsController) Upload(ctx context.Context, userID string, req types.UploadRequest) (*types.UploadResponse, error) {
	defer logging.LogDuration(ctx, "document_upload")()

	filename := sanitizeFilename(req.Filename)
	if filename == "" {
		return nil, badRequest("filename is required")
	}
	docType := req.DocumentType
	if docType == "" {
		docType = "other"
	}
	if !ingest.IsDocumentType(docType) {
		return nil, &Error{Kind: ErrBadRequest, Message: "Invalid documentType", Fields: map[string]any{"validTypes": ingest.DocumentTypes}}
	}
	if !hasAllowedExtension(filename) {
		return nil, &Error{Kind: ErrBadRequest, Message: "Unsupported file type", Fields: map[string]any{"allowedExtensions": allowedExtensions}}
	}
	if req.FileSize > MaxUploadBytes {
		return nil, &Error{
			Kind:    ErrBadRequest,
			Message: "File size exceeds maximum allowed size of 60MB",
			Fields:  map[string]any{"maxSizeBytes": MaxUploadBytes},
		}
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	docID := uuid.NewString()
	key := fmt.Sprintf("%s%s/%s/%s-%s", ingest.UserPrefix, userID, docType, docID, filename)

	url, err := c.store.PresignPut(ctx, key, uploadURLTTL)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	now := time.Now().UTC()
	_, err = c.sidecars.Write(ctx, key, sidecar.Metadata, map[string]any{
		"metadataAttributes": map[string]any{
			"userid":       userID,
			"documentType": docType,
			"documentId":   docID,
		},
		"documentId":       docID,
		"userId":           userID,
		"documentType":     docType,
		"originalFilename": filename,
		"s3Key":            key,
		"uploadedAt":       now.Format(time.RFC3339),
		"fileSize":         req.FileSize,
		"mimeType":         contentType,
		"version":          1,
		"tags":             tags,
	})
	if err != nil {
		return nil, fmt.Errorf("write metadata sidecar: %w", err)
	}
	if err := c.sidecars.AppendProcessingStatus(ctx, key, models.DocStatusUploadInitiated, "Presigned upload URL issued"); err != nil {
		logging.AppLogger.Warn("processing sidecar not written", zap.String("document_id", docID), zap.Error(err))
	}
	if err := c.sidecars.AppendAuditEvent(ctx, key, models.DocStatusUploadInitiated, userID, map[string]any{"filename": filename}); err != nil {
		logging.AppLogger.Warn("audit sidecar not written", zap.String("document_id", docID), zap.Error(err))
	}

	tagJSON, _ := json.Marshal(tags)
	doc := &models.Document{
		ID:            docID,
		UserID:        userID,
		Filename:      filename,
		DocumentType:  docType,
		ContentType:   contentType,
		FileSize:      req.FileSize,
		S3Key:         key,
		CurrentStatus: models.DocStatusUploadInitiated,
		Tags:          datatypes.JSON(tagJSON),
	}
	if err := c.documentDAO.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	c.activity.Record(ctx, userID, activity.DocumentUpload, map[string]any{
		"documentId":   docID,
		"filename":     filename,
		"documentType": docType,
		"fileSize":     req.FileSize,
	})
	return &types.UploadResponse{
		DocumentID: docID,
		UploadURL:  url,
		S3Key:      key,
		ExpiresIn:  int(uploadURLTTL.Seconds()),
		Message:    uploadMessage,
	}, nil
}

func summary(d models.Document) types.DocumentSummary {
	status, msg, progress := UserStatus(d.CurrentStatus)
	var tags []string
	if len(d.Tags) > 0 {
		_ = json.Unmarshal(d.Tags, &tags)
	}
	if tags == nil {
		tags = []string{}
	}
	return types.DocumentSummary{
		DocumentID:    d.ID,
		Filename:      d.Filename,
		DocumentType:  d.DocumentType,
		FileSize:      d.FileSize,
		UploadDate:    d.CreatedAt,
		Status:        status,
		StatusMessage: msg,
		Progress:      progress,
		S3Key:         d.S3Key,
		Tags:          tags,
	}
}

// List returns the caller's documents, newest first. status filters on the
// user facing status.
func (c *DocumentsController) List(ctx context.Context, userID, documentType, status string, limit int) (*types.DocumentList, error) {
	if limit <= 0 {
		limit = defaultDocumentLimit
	}
	if limit > maxDocumentLimit {
		limit = maxDocumentLimit
	}
	f := dao.DocumentFilter{DocumentType: documentType, Limit: limit}
	if status != "" {
		f.Statuses = internalStatuses(status)
		if len(f.Statuses) == 0 {
			return &types.DocumentList{Documents: []types.DocumentSummary{}}, nil
		}
	}
	docs, hasMore, err := c.documentDAO.ListByUser(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	out := make([]types.DocumentSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, summary(d))
	}
	return &types.DocumentList{Documents: out, Count: len(out), HasMore: hasMore}, nil
}

func (c *DocumentsController) get(ctx context.Context, userID, id string) (*models.Document, error) {
	doc, err := c.documentDAO.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, notFound("Document not found")
	}
	return doc, nil
}

func (c *DocumentsController) Status(ctx context.Context, userID, id string) (*types.DocumentStatus, error) {
	doc, err := c.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	status, msg, progress := UserStatus(doc.CurrentStatus)
	return &types.DocumentStatus{
		DocumentID:     doc.ID,
		Filename:       doc.Filename,
		Status:         status,
		StatusMessage:  msg,
		Progress:       progress,
		InternalStatus: doc.CurrentStatus,
		LastUpdated:    doc.UpdatedAt,
		ErrorMessage:   doc.ErrorMessage,
		IngestionJobID: doc.IngestionJobID,
	}, nil
}

// Delete removes the object, its sidecars, its chunks and its row.
func (c *DocumentsController) Delete(ctx context.Context, userID, id string) (map[string]any, error) {
	defer logging.LogDuration(ctx, "document_delete")()

	doc, err := c.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := c.store.Delete(ctx, doc.S3Key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("delete object: %w", err)
	}
	sidecars := c.sidecars.DeleteAll(ctx, doc.S3Key)
	chunks, err := c.kb.DeleteDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("delete chunks: %w", err)
	}
	if err := c.documentDAO.Delete(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("delete document: %w", err)
	}
	logging.AppLogger.Info("document deleted",
		zap.String("document_id", doc.ID),
		zap.Int("sidecars", sidecars),
		zap.Int64("chunks", chunks))
	return map[string]any{"message": "Document deleted successfully", "documentId": doc.ID}, nil
}

// Complete is called by the client after its PUT succeeded. It runs the same
// pipeline an object created notification would.
func (c *DocumentsController) Complete(ctx context.Context, userID, id string) (*types.DocumentStatus, error) {
	doc, err := c.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if doc.CurrentStatus == models.DocStatusUploadInitiated {
		ok, err := c.store.Exists(ctx, doc.S3Key)
		if err != nil {
			return nil, fmt.Errorf("check object: %w", err)
		}
		if !ok {
			return nil, conflict("Document has not been uploaded yet")
		}
		// the pipeline outlives the request
		if err := c.pipeline.HandleObjectCreated(context.WithoutCancel(ctx), doc.S3Key); err != nil {
			return nil, fmt.Errorf("start ingestion: %w", err)
		}
	}
	return c.Status(ctx, userID, id)
}

// PollStatus checks a document every interval until it is ready or failed.
// onTick, when set, sees every intermediate status.
func (c *DocumentsController) PollStatus(ctx context.Context, userID, id string, interval time.Duration, maxAttempts int, onTick func(*types.DocumentStatus)) (*types.DocumentStatus, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 60
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *types.DocumentStatus
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		st, err := c.Status(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		last = st
		if onTick != nil {
			onTick(st)
		}
		if st.Status == "ready" || st.Status == "error" {
			return st, nil
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
	return last, ErrPollTimeout
}
