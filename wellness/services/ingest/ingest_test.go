package ingest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"wellness/wellness/prompts"
	"wellness/wellness/services/knowledge"
	"wellness/wellness/services/llm/llmtest"
	"wellness/wellness/services/sidecar"
	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/sources/psql/psqltest"
	"wellness/wellness/sources/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestParseKey(t *testing.T) {
	id := "3f2b8c1e-1111-4222-8333-944455556666"
	info, err := ParseKey("users/u1/health_record/" + id + "-my-visit-notes.txt")
	require.NoError(t, err)
	assert.Equal(t, KeyInfo{UserID: "u1", DocumentType: "health_record", DocumentID: id}, info)

	info, err = ParseKey("users/u1/other/abc-file.txt")
	require.NoError(t, err)
	assert.Equal(t, "abc", info.DocumentID)

	info, err = ParseKey("users/u1/other/plain.txt")
	require.NoError(t, err)
	assert.Equal(t, "plain", info.DocumentID)

	for _, bad := range []string{"scrapes/x.json", "users/u1/file.txt", "users//other/a-b"} {
		_, err := ParseKey(bad)
		assert.ErrorIs(t, err, ErrNotDocumentKey, bad)
	}
}

type fixture struct {
	db       *gorm.DB
	store    *storage.MemoryStore
	kb       *knowledge.Service
	sidecars *sidecar.Manager
	llm      *llmtest.Client
	p        *Pipeline
	docs     *dao.DocumentDAO
}

func newFixture(t *testing.T, reply string) *fixture {
	db := psqltest.NewDB(t)
	store := storage.NewMemoryStore("docs")
	kb := knowledge.NewService(db, store, nil, nil)
	kb.Start(context.Background())
	t.Cleanup(kb.Stop)

	sc := sidecar.NewManager(store)
	client := llmtest.Text(reply)
	p := NewPipeline(db, store, kb, sc, client, "fast", prompts.Default())
	return &fixture{db: db, store: store, kb: kb, sidecars: sc, llm: client, p: p, docs: dao.NewDocumentDAO(db)}
}

func (f *fixture) upload(t *testing.T, docType, body string) *models.Document {
	id := uuid.NewString()
	doc := &models.Document{
		ID:            id,
		UserID:        "u1",
		Filename:      "notes.txt",
		DocumentType:  docType,
		S3Key:         "users/u1/" + docType + "/" + id + "-notes.txt",
		CurrentStatus: models.DocStatusUploadInitiated,
	}
	require.NoError(t, f.docs.Create(context.Background(), doc))
	require.NoError(t, f.store.Put(context.Background(), doc.S3Key, []byte(body), "text/plain"))
	return doc
}

func (f *fixture) status(t *testing.T, id string) *models.Document {
	d, err := f.docs.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, d)
	return d
}

func TestHandleObjectCreated_FullPipeline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "```json\n{\"goals\": [\"walk daily\"]}\n```")
	doc := f.upload(t, "wellness_plan", "Our family plan: walk daily, sleep by ten, cook at home.")

	require.NoError(t, f.p.HandleObjectCreated(ctx, doc.S3Key))

	got := f.status(t, doc.ID)
	assert.Equal(t, models.DocStatusIngestionInProgress, got.CurrentStatus)
	require.NotEmpty(t, got.IngestionJobID)

	// a second event for the same object changes nothing
	require.NoError(t, f.p.HandleObjectCreated(ctx, doc.S3Key))
	assert.Equal(t, got.IngestionJobID, f.status(t, doc.ID).IngestionJobID)
	f.p.Wait()

	require.Eventually(t, func() bool {
		job, err := f.kb.GetIngestionJob(ctx, got.IngestionJobID)
		return err == nil && job != nil && job.Status == models.JobStatusComplete
	}, 5*time.Second, 20*time.Millisecond)

	f.p.IndexingWait = time.Hour
	n, err := f.p.CheckStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.DocStatusIndexingWait, f.status(t, doc.ID).CurrentStatus)

	_, err = f.p.CheckStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusIndexingWait, f.status(t, doc.ID).CurrentStatus, "still inside the wait")

	f.p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = f.p.CheckStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusAIAnalysisComplete, f.status(t, doc.ID).CurrentStatus)

	results, err := f.kb.Retrieve(ctx, "u1", "family plan walk daily", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "s3://docs/"+doc.S3Key, results[0].SourceURI)

	extracted, err := f.sidecars.Read(ctx, doc.S3Key, sidecar.Extracted)
	require.NoError(t, err)
	require.NotNil(t, extracted)
	assert.Equal(t, ConfidenceParsed, extracted["confidence"])
	assert.Equal(t, "wellness_plan", extracted["documentType"])
	assert.Equal(t, map[string]any{"goals": []any{"walk daily"}}, extracted["data"])
	assert.Contains(t, f.llm.LastPrompt(), "Our family plan")

	processing, err := f.sidecars.Read(ctx, doc.S3Key, sidecar.Processing)
	require.NoError(t, err)
	var chain []string
	for _, link := range processing["statusChain"].([]any) {
		chain = append(chain, link.(map[string]any)["status"].(string))
	}
	assert.Subset(t, chain, []string{
		models.DocStatusUploadComplete,
		models.DocStatusIngestionStarted,
		models.DocStatusIngestionInProgress,
		"ai_analysis_started",
		models.DocStatusAIAnalysisComplete,
	})
	assert.Equal(t, models.DocStatusAIAnalysisComplete, processing["currentStatus"])

	audit, err := f.sidecars.Read(ctx, doc.S3Key, sidecar.Audit)
	require.NoError(t, err)
	assert.NotEmpty(t, audit["events"])
}

func TestHandleObjectCreated_Ignored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "{}")
	doc := f.upload(t, "other", "text")

	require.NoError(t, f.p.HandleObjectCreated(ctx, sidecar.Key(doc.S3Key, sidecar.Metadata)))
	require.NoError(t, f.p.HandleObjectCreated(ctx, "scrapes/abc.json"))
	assert.Equal(t, models.DocStatusUploadInitiated, f.status(t, doc.ID).CurrentStatus)

	err := f.p.HandleObjectCreated(ctx, "users/u1/other/"+uuid.NewString()+"-ghost.txt")
	assert.ErrorIs(t, err, ErrUnknownDocument)
}

func TestCheckStatuses_SidecarOrder(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name       string
		analyzed   bool
		wantStatus string
	}{
		{"analysis still pending", false, models.DocStatusIngestionComplete},
		{"analysis finished first", true, models.DocStatusAIAnalysisComplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "{}")
			doc := f.upload(t, "other", "text")

			jobs := dao.NewIngestionJobDAO(f.db)
			job := &models.IngestionJob{UserID: "u1", DocumentID: doc.ID, Status: models.JobStatusComplete}
			require.NoError(t, jobs.Create(ctx, job))
			require.NoError(t, f.docs.UpdateStatus(ctx, doc.ID, models.DocStatusIndexingWait, map[string]any{"ingestion_job_id": job.ID}))
			require.NoError(t, f.sidecars.AppendProcessingStatus(ctx, doc.S3Key, models.DocStatusIngestionInProgress, ""))
			if tt.analyzed {
				require.NoError(t, f.sidecars.AppendProcessingStatus(ctx, doc.S3Key, models.DocStatusAIAnalysisComplete, "done"))
			}

			f.p.now = func() time.Time { return time.Now().Add(time.Hour) }
			_, err := f.p.CheckStatuses(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, f.status(t, doc.ID).CurrentStatus)

			processing, err := f.sidecars.Read(ctx, doc.S3Key, sidecar.Processing)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, processing["currentStatus"])
			chain := processing["statusChain"].([]any)
			last := chain[len(chain)-1].(map[string]any)
			assert.Equal(t, tt.wantStatus, last["status"])
		})
	}
}

func TestCheckStatuses_FailedJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "{}")
	doc := f.upload(t, "other", "text")

	jobs := dao.NewIngestionJobDAO(f.db)
	job := &models.IngestionJob{UserID: "u1", DocumentID: doc.ID, Status: models.JobStatusStarting}
	require.NoError(t, jobs.Create(ctx, job))
	require.NoError(t, f.docs.UpdateStatus(ctx, doc.ID, models.DocStatusIngestionInProgress, map[string]any{"ingestion_job_id": job.ID}))

	_, err := f.p.CheckStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusIngestionInProgress, f.status(t, doc.ID).CurrentStatus, "starting jobs are left alone")

	require.NoError(t, jobs.SetStatus(ctx, job.ID, models.JobStatusFailed, "parser exploded", 0))
	_, err = f.p.CheckStatuses(ctx)
	require.NoError(t, err)
	got := f.status(t, doc.ID)
	assert.Equal(t, models.DocStatusError, got.CurrentStatus)
	assert.Equal(t, "parser exploded", got.ErrorMessage)
}

func TestAnalyze_UnparsedResponse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "Sorry, I could not read that document.")
	doc := f.upload(t, "mystery_type", "some content")

	ex, err := f.p.Analyze(ctx, doc.S3Key, "job-1")
	require.NoError(t, err)
	assert.Equal(t, ConfidenceUnparsed, ex.Confidence)
	assert.Equal(t, "other", ex.DocumentType)
	assert.Equal(t, "Invalid JSON", ex.Data["error"])
	assert.Equal(t, models.DocStatusUploadInitiated, f.status(t, doc.ID).CurrentStatus, "status is never regressed")
}

type fakeEvents struct {
	calls  atomic.Int32
	keys   []string
	cancel context.CancelFunc
}

func (f *fakeEvents) Listen(ctx context.Context, prefix string) <-chan storage.ObjectEvent {
	ch := make(chan storage.ObjectEvent, len(f.keys))
	if f.calls.Add(1) == 1 {
		for _, k := range f.keys {
			ch <- storage.ObjectEvent{Key: k}
		}
	} else {
		f.cancel()
	}
	close(ch)
	return ch
}

func TestListen_ReconnectsUntilCancelled(t *testing.T) {
	f := newFixture(t, "{}")
	doc := f.upload(t, "other", "hello world text")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &fakeEvents{keys: []string{doc.S3Key}, cancel: cancel}

	done := make(chan struct{})
	go func() {
		f.p.Listen(ctx, src)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Equal(t, models.DocStatusIngestionInProgress, f.status(t, doc.ID).CurrentStatus)
	f.p.Wait()
}
