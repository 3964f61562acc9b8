// Package ingest moves uploaded documents through the knowledge base
// pipeline: object created, indexing job, status settling and AI extraction.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"wellness/wellness/prompts"
	"wellness/wellness/services/knowledge"
	"wellness/wellness/services/llm"
	"wellness/wellness/services/sidecar"
	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/sources/storage"
	"wellness/wellness/utils/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"
)

const (
	UserPrefix = "users/"

	analysisWorkers = 2
	analysisTimeout = 5 * time.Minute
)

var (
	ErrNotDocumentKey  = errors.New("not a user document key")
	ErrUnknownDocument = errors.New("no document row for object")
)

// KeyInfo is what an object key of the form
// users/{userId}/{documentType}/{documentId}-{filename} encodes.
type KeyInfo struct {
	UserID       string
	DocumentType string
	DocumentID   string
}

// ParseKey splits a document object key. The document id is the uuid that
// prefixes the file name.
func ParseKey(key string) (KeyInfo, error) {
	parts := strings.Split(key, "/")
	if len(parts) < 4 || parts[0] != "users" || parts[1] == "" {
		return KeyInfo{}, fmt.Errorf("%w: %s", ErrNotDocumentKey, key)
	}
	file := parts[len(parts)-1]

	var docID string
	switch pieces := strings.Split(file, "-"); {
	case len(pieces) >= 5:
		docID = strings.Join(pieces[:5], "-")
	case len(pieces) > 1:
		docID = file[:strings.LastIndex(file, "-")]
	default:
		docID = strings.SplitN(file, ".", 2)[0]
	}
	return KeyInfo{UserID: parts[1], DocumentType: parts[2], DocumentID: docID}, nil
}

type Pipeline struct {
	docs     *dao.DocumentDAO
	kb       *knowledge.Service
	sidecars *sidecar.Manager
	store    storage.ObjectStore
	llm      llm.Client
	model    string
	prompts  *prompts.Catalog

	// IndexingWait is how long a finished job sits in indexing_wait.
	IndexingWait time.Duration

	analysis *semaphore.Weighted
	wg       sync.WaitGroup
	now      func() time.Time
}

func NewPipeline(db *gorm.DB, store storage.ObjectStore, kb *knowledge.Service, sidecars *sidecar.Manager,
	client llm.Client, model string, catalog *prompts.Catalog) *Pipeline {
	return &Pipeline{
		docs:         dao.NewDocumentDAO(db),
		kb:           kb,
		sidecars:     sidecars,
		store:        store,
		llm:          client,
		model:        model,
		prompts:      catalog,
		IndexingWait: 15 * time.Second,
		analysis:     semaphore.NewWeighted(analysisWorkers),
		now:          time.Now,
	}
}

// Wait blocks until queued document analyses have finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// HandleObjectCreated starts ingestion for a freshly uploaded document.
// Sidecars, keys outside users/ and documents already past upload are
// ignored, so repeated events are harmless.
func (p *Pipeline) HandleObjectCreated(ctx context.Context, key string) error {
	defer logging.LogDuration(ctx, "ingest_object_created")()

	if sidecar.IsSidecarKey(key) || !strings.HasPrefix(key, UserPrefix) {
		logging.AppLogger.Debug("object ignored", zap.String("key", key))
		return nil
	}
	info, err := ParseKey(key)
	if err != nil {
		return err
	}
	doc, err := p.docs.Get(ctx, info.UserID, info.DocumentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		logging.AppLogger.Warn("object has no document row", zap.String("key", key))
		return fmt.Errorf("%w: %s", ErrUnknownDocument, key)
	}

	claimed, err := p.docs.TransitionStatus(ctx, doc.ID, models.DocStatusUploadComplete, models.DocStatusUploadInitiated)
	if err != nil {
		return fmt.Errorf("claim document: %w", err)
	}
	if !claimed {
		logging.AppLogger.Info("document already ingesting",
			zap.String("document_id", doc.ID), zap.String("status", doc.CurrentStatus))
		return nil
	}
	p.note(ctx, key, info.UserID, models.DocStatusUploadComplete, "Upload complete")

	if err := p.docs.UpdateStatus(ctx, doc.ID, models.DocStatusIngestionStarted, nil); err != nil {
		return p.fail(ctx, doc.ID, key, fmt.Errorf("mark ingestion started: %w", err))
	}
	p.note(ctx, key, info.UserID, models.DocStatusIngestionStarted, "Starting knowledge base ingestion")

	job, err := p.kb.StartIngestionJob(ctx, info.UserID, doc.ID, key)
	if err != nil {
		return p.fail(ctx, doc.ID, key, err)
	}

	err = p.docs.UpdateStatus(ctx, doc.ID, models.DocStatusIngestionInProgress, map[string]any{"ingestion_job_id": job.ID})
	if err != nil {
		return p.fail(ctx, doc.ID, key, fmt.Errorf("mark ingestion in progress: %w", err))
	}
	p.note(ctx, key, "", models.DocStatusIngestionInProgress, fmt.Sprintf("Ingestion job %s in progress", job.ID))

	logging.AppLogger.Info("document ingestion started",
		zap.String("document_id", doc.ID), zap.String("job_id", job.ID))

	p.analyzeAsync(ctx, key, job.ID)
	return nil
}

// note writes the processing and audit sidecars. Sidecar trouble never stops the pipeline.
func (p *Pipeline) note(ctx context.Context, key, userID, status, details string) {
	if err := p.sidecars.AppendProcessingStatus(ctx, key, status, details); err != nil {
		logging.AppLogger.Warn("processing sidecar not updated", zap.String("key", key), zap.Error(err))
	}
	if userID == "" {
		return
	}
	audit := map[string]any{"bucket": p.store.Bucket(), "key": key}
	if err := p.sidecars.AppendAuditEvent(ctx, key, status, userID, audit); err != nil {
		logging.AppLogger.Warn("audit sidecar not updated", zap.String("key", key), zap.Error(err))
	}
}

func (p *Pipeline) fail(ctx context.Context, docID, key string, cause error) error {
	logging.ErrorLogger.Error("document ingestion failed",
		zap.String("document_id", docID), zap.String("key", key), zap.Error(cause))
	if err := p.docs.UpdateStatus(ctx, docID, models.DocStatusError, map[string]any{"error_message": cause.Error()}); err != nil {
		logging.ErrorLogger.Error("mark document failed", zap.String("document_id", docID), zap.Error(err))
	}
	p.note(ctx, key, "", models.DocStatusError, cause.Error())
	return cause
}

func (p *Pipeline) analyzeAsync(ctx context.Context, key, jobID string) {
	if p.llm == nil {
		return
	}
	base := context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		actx, cancel := context.WithTimeout(base, analysisTimeout)
		defer cancel()
		if err := p.analysis.Acquire(actx, 1); err != nil {
			return
		}
		defer p.analysis.Release(1)

		if _, err := p.Analyze(actx, key, jobID); err != nil {
			logging.ErrorLogger.Error("document analysis failed", zap.String("key", key), zap.Error(err))
		}
	}()
}
