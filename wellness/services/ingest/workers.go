package ingest

import (
	"context"
	"time"

	"wellness/wellness/services/sidecar"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/sources/storage"
	"wellness/wellness/utils/logging"

	"go.uber.org/zap"
)

// CheckStatuses settles documents whose ingestion job has finished. A complete
// job parks the document in indexing_wait, which becomes ingestion_complete
// (or ai_analysis_complete when extraction already ran) once IndexingWait has
// passed. It returns how many documents were looked at.
func (p *Pipeline) CheckStatuses(ctx context.Context) (int, error) {
	defer logging.LogDuration(ctx, "ingestion_status_check")()

	docs, err := p.docs.ListByStatus(ctx, models.DocStatusIngestionInProgress, models.DocStatusIndexingWait)
	if err != nil {
		return 0, err
	}
	for _, d := range docs {
		if err := p.settle(ctx, d); err != nil {
			logging.ErrorLogger.Error("status check failed", zap.String("document_id", d.ID), zap.Error(err))
		}
	}
	return len(docs), nil
}

func (p *Pipeline) settle(ctx context.Context, d models.Document) error {
	if d.IngestionJobID == "" {
		logging.AppLogger.Warn("document has no ingestion job", zap.String("document_id", d.ID))
		return nil
	}
	job, err := p.kb.GetIngestionJob(ctx, d.IngestionJobID)
	if err != nil {
		return err
	}
	if job == nil {
		return p.docs.UpdateStatus(ctx, d.ID, models.DocStatusError, map[string]any{"error_message": "ingestion job not found"})
	}

	switch job.Status {
	case models.JobStatusComplete:
		if d.CurrentStatus == models.DocStatusIngestionInProgress {
			logging.AppLogger.Info("ingestion complete, waiting for indexing", zap.String("document_id", d.ID))
			return p.docs.UpdateStatus(ctx, d.ID, models.DocStatusIndexingWait, nil)
		}
		if p.now().UTC().Sub(d.StatusUpdatedAt) < p.IndexingWait {
			return nil
		}
		// analysis may have finished while indexing settled
		status := models.DocStatusIngestionComplete
		if p.analyzed(ctx, d.S3Key) {
			status = models.DocStatusAIAnalysisComplete
		}
		if err := p.docs.UpdateStatus(ctx, d.ID, status, nil); err != nil {
			return err
		}
		if status == models.DocStatusIngestionComplete {
			p.note(ctx, d.S3Key, "", status, "Document ready for questions")
		}
		logging.AppLogger.Info("document ready", zap.String("document_id", d.ID),
			zap.String("status", status), zap.Int("chunks", job.ChunkCount))
	case models.JobStatusFailed:
		reason := job.FailureReasons
		if reason == "" {
			reason = "Unknown error"
		}
		if err := p.docs.UpdateStatus(ctx, d.ID, models.DocStatusError, map[string]any{"error_message": reason}); err != nil {
			return err
		}
		p.note(ctx, d.S3Key, "", models.DocStatusError, reason)
	}
	return nil
}

// analyzed reports whether the processing sidecar already ends in
// ai_analysis_complete.
func (p *Pipeline) analyzed(ctx context.Context, key string) bool {
	data, err := p.sidecars.Read(ctx, key, sidecar.Processing)
	if err != nil {
		logging.AppLogger.Warn("processing sidecar unreadable", zap.String("key", key), zap.Error(err))
		return false
	}
	current, _ := data["currentStatus"].(string)
	return current == models.DocStatusAIAnalysisComplete
}

// RunStatusChecker calls CheckStatuses every interval until ctx ends.
func (p *Pipeline) RunStatusChecker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.CheckStatuses(ctx); err != nil && ctx.Err() == nil {
				logging.ErrorLogger.Error("status checker failed", zap.Error(err))
			}
		}
	}
}

// EventSource streams object created events. *storage.MinIOClient is one.
type EventSource interface {
	Listen(ctx context.Context, prefix string) <-chan storage.ObjectEvent
}

const (
	minBackoff = time.Second
	maxBackoff = time.Minute
)

// Listen feeds bucket notifications under users/ into HandleObjectCreated and
// reconnects with exponential backoff whenever the stream drops.
func (p *Pipeline) Listen(ctx context.Context, src EventSource) {
	backoff := minBackoff
	for ctx.Err() == nil {
		received := false
		for ev := range src.Listen(ctx, UserPrefix) {
			received = true
			if err := p.HandleObjectCreated(ctx, ev.Key); err != nil {
				logging.ErrorLogger.Error("object created handler failed", zap.String("key", ev.Key), zap.Error(err))
			}
		}
		if ctx.Err() != nil {
			return
		}
		if received {
			backoff = minBackoff
		}
		logging.AppLogger.Warn("bucket notifications dropped, reconnecting", zap.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
