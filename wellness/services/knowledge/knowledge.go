// Package knowledge is the per-user document index used for retrieval
// augmented answers. Chunks live in Postgres, ranking happens in process.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"wellness/wellness/services/embedding"
	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/sources/storage"
	"wellness/wellness/utils/logging"
	"wellness/wellness/utils/textextract"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	Workers = 4
	// DefaultTopK is how many chunks a query is grounded on.
	DefaultTopK = 5
	// Minimum scores for a chunk to count as a hit.
	MinSimilarity   = 0.35
	MinKeywordScore = 0.25
)

// Result is one retrieved passage.
type Result struct {
	Content    string  `json:"content"`
	SourceURI  string  `json:"sourceUri"`
	DocumentID string  `json:"documentId"`
	Score      float64 `json:"score"`
}

// Crawler renders a web page and returns its title, text and outgoing links.
type Crawler interface {
	Fetch(ctx context.Context, url string) (storage.ScrapeObject, error)
}

type Service struct {
	chunks   *dao.KnowledgeDAO
	jobs     *dao.IngestionJobDAO
	docs     *dao.DocumentDAO
	store    storage.ObjectStore
	embedder embedding.Engine
	crawler  Crawler
	pool     *pool

	// ScrapeTTL is how long a cached page rendering is reused.
	ScrapeTTL time.Duration
}

// NewService wires the index. embedder and crawler may be nil.
func NewService(db *gorm.DB, store storage.ObjectStore, embedder embedding.Engine, crawler Crawler) *Service {
	return &Service{
		chunks:    dao.NewKnowledgeDAO(db),
		jobs:      dao.NewIngestionJobDAO(db),
		docs:      dao.NewDocumentDAO(db),
		store:     store,
		embedder:  embedder,
		crawler:   crawler,
		pool:      newPool(Workers, 256),
		ScrapeTTL: 24 * time.Hour,
	}
}

// Start launches the ingestion workers. They use ctx, not the request context
// of whoever queued the job.
func (s *Service) Start(ctx context.Context) {
	s.pool.start(ctx)
}

// Stop waits for queued work to finish.
func (s *Service) Stop() {
	s.pool.stop()
}

// StartIngestionJob records a job and queues it.
func (s *Service) StartIngestionJob(ctx context.Context, userID, documentID, key string) (*models.IngestionJob, error) {
	job := &models.IngestionJob{
		UserID:     userID,
		DocumentID: documentID,
		ObjectKey:  key,
		Status:     models.JobStatusStarting,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create ingestion job: %w", err)
	}
	if err := s.pool.submit(ctx, func(wctx context.Context) { s.runJob(wctx, *job) }); err != nil {
		_ = s.jobs.SetStatus(context.WithoutCancel(ctx), job.ID, models.JobStatusFailed, err.Error(), 0)
		return nil, fmt.Errorf("queue ingestion job: %w", err)
	}
	logging.AppLogger.Info("ingestion job queued",
		zap.String("job_id", job.ID), zap.String("document_id", documentID))
	return job, nil
}

func (s *Service) GetIngestionJob(ctx context.Context, id string) (*models.IngestionJob, error) {
	return s.jobs.Get(ctx, id)
}

func (s *Service) runJob(ctx context.Context, job models.IngestionJob) {
	defer logging.LogDuration(ctx, "knowledge_ingest")()

	if err := s.jobs.SetStatus(ctx, job.ID, models.JobStatusInProgress, "", 0); err != nil {
		logging.ErrorLogger.Error("mark job in progress", zap.String("job_id", job.ID), zap.Error(err))
	}

	n, err := s.indexObject(ctx, job)
	if err != nil {
		logging.ErrorLogger.Error("ingestion job failed",
			zap.String("job_id", job.ID), zap.String("document_id", job.DocumentID), zap.Error(err))
		if serr := s.jobs.SetStatus(ctx, job.ID, models.JobStatusFailed, err.Error(), 0); serr != nil {
			logging.ErrorLogger.Error("mark job failed", zap.String("job_id", job.ID), zap.Error(serr))
		}
		return
	}
	if err := s.jobs.SetStatus(ctx, job.ID, models.JobStatusComplete, "", n); err != nil {
		logging.ErrorLogger.Error("mark job complete", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	logging.AppLogger.Info("ingestion job complete", zap.String("job_id", job.ID), zap.Int("chunks", n))
}

func (s *Service) indexObject(ctx context.Context, job models.IngestionJob) (int, error) {
	data, err := s.store.Get(ctx, job.ObjectKey, 0)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", job.ObjectKey, err)
	}
	text := textextract.FromBytes(job.ObjectKey, data)
	if text == textextract.BinaryPlaceholder {
		logging.AppLogger.Warn("no extractable text, document indexed empty", zap.String("key", job.ObjectKey))
		_, err := s.chunks.DeleteByDocument(ctx, job.DocumentID)
		return 0, err
	}
	uri := fmt.Sprintf("s3://%s/%s", s.store.Bucket(), job.ObjectKey)
	return s.indexText(ctx, job.UserID, job.DocumentID, uri, text)
}

// indexText replaces every chunk of documentID with a fresh split of text.
func (s *Service) indexText(ctx context.Context, userID, documentID, uri, text string) (int, error) {
	parts := Split(text, ChunkSize, ChunkOverlap)

	var vectors [][]float32
	if s.embedder != nil && len(parts) > 0 {
		var err error
		if vectors, err = s.embedder.EmbedBatch(ctx, parts); err != nil {
			return 0, fmt.Errorf("embed chunks: %w", err)
		}
	}

	chunks := make([]models.KnowledgeChunk, len(parts))
	for i, p := range parts {
		chunks[i] = models.KnowledgeChunk{
			UserID:     userID,
			DocumentID: documentID,
			SourceURI:  uri,
			Ordinal:    i,
			Content:    p,
		}
		if vectors != nil {
			chunks[i].Embedding = vectors[i]
		}
	}
	if err := s.chunks.ReplaceChunks(ctx, documentID, chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	return len(chunks), nil
}

// Retrieve ranks the caller's chunks plus shared ones against query and
// returns up to k results above the minimum score.
func (s *Service) Retrieve(ctx context.Context, userID, query string, k int) ([]Result, error) {
	defer logging.LogDuration(ctx, "knowledge_retrieve")()
	if k <= 0 {
		k = DefaultTopK
	}

	candidates, err := s.chunks.Candidates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var qvec []float32
	if s.embedder != nil {
		if qvec, err = s.embedder.Embed(ctx, query); err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
	}
	terms := Terms(query)

	var results []Result
	for _, c := range candidates {
		score, floor := 0.0, MinKeywordScore
		if qvec != nil && len(c.Embedding) == len(qvec) {
			score, _ = embedding.CosineSimilarity(qvec, c.Embedding)
			floor = MinSimilarity
		} else {
			score = KeywordScore(terms, c.Content)
		}
		if score < floor {
			continue
		}
		results = append(results, Result{
			Content:    c.Content,
			SourceURI:  c.SourceURI,
			DocumentID: c.DocumentID,
			Score:      score,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *Service) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	return s.chunks.DeleteByDocument(ctx, documentID)
}

func (s *Service) DeleteUser(ctx context.Context, userID string) (int64, error) {
	n, err := s.chunks.DeleteByUser(ctx, userID)
	if err != nil {
		return n, err
	}
	if _, err := s.jobs.DeleteByUser(ctx, userID); err != nil {
		return n, err
	}
	return n, nil
}

// SyncReport describes what a sync queued.
type SyncReport struct {
	JobID      string    `json:"jobId"`
	Documents  int       `json:"documents"`
	WebSources int       `json:"webSources"`
	StartedAt  time.Time `json:"startedAt"`
}

// Sync reindexes ready and failed documents and recrawls enabled web sources.
// Failed documents move back to ingestion_in_progress so the status checker
// can settle them again.
func (s *Service) Sync(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{JobID: uuid.NewString(), StartedAt: time.Now().UTC()}
	logging.AppLogger.Info("knowledge sync started", zap.String("sync_id", report.JobID))

	docs, err := s.docs.ListByStatus(ctx,
		models.DocStatusIngestionComplete, models.DocStatusAIAnalysisComplete, models.DocStatusError)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	for _, d := range docs {
		job, err := s.StartIngestionJob(ctx, d.UserID, d.ID, d.S3Key)
		if err != nil {
			logging.ErrorLogger.Error("sync could not queue document", zap.String("document_id", d.ID), zap.Error(err))
			continue
		}
		if d.CurrentStatus == models.DocStatusError {
			err = s.docs.UpdateStatus(ctx, d.ID, models.DocStatusIngestionInProgress, map[string]any{
				"ingestion_job_id": job.ID,
				"error_message":    "",
			})
			if err != nil {
				logging.ErrorLogger.Error("sync could not reset document", zap.String("document_id", d.ID), zap.Error(err))
			}
		}
		report.Documents++
	}

	sources, err := s.chunks.ListWebSources(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list web sources: %w", err)
	}
	for _, src := range sources {
		src := src
		if err := s.pool.submit(ctx, func(wctx context.Context) { s.crawlSource(wctx, src) }); err != nil {
			if errors.Is(err, errPoolClosed) {
				return report, err
			}
			continue
		}
		report.WebSources++
	}
	return report, nil
}
