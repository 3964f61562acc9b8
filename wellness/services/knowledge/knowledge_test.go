package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/sources/psql/psqltest"
	"wellness/wellness/sources/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	words := strings.Repeat("wellness ", 300) // 2700 chars
	chunks := Split(words, 1000, 200)
	require.Greater(t, len(chunks), 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 1000)
		assert.False(t, strings.HasPrefix(c, "ellness"), "chunks start on a word boundary")
	}
	assert.Nil(t, Split("   ", 1000, 200))
	assert.Equal(t, []string{"short text"}, Split("short text", 1000, 200))
}

func TestSplit_Overlap(t *testing.T) {
	text := strings.Repeat("a", 600) + " " + strings.Repeat("b", 600) + " " + strings.Repeat("c", 600)
	chunks := Split(text, 1000, 200)
	require.Len(t, chunks, 3)
	assert.True(t, strings.HasPrefix(chunks[1], "b"))
}

func TestKeywordScore(t *testing.T) {
	q := Terms("How can my family sleep better?")
	assert.Equal(t, map[string]bool{"family": true, "sleep": true, "better": true}, q)
	assert.InDelta(t, 2.0/3.0, KeywordScore(q, "Sleep routines help the whole family."), 1e-9)
	assert.Zero(t, KeywordScore(map[string]bool{}, "anything"))
}

type fakeCrawler struct {
	calls int
	err   error
}

func (f *fakeCrawler) Fetch(_ context.Context, url string) (storage.ScrapeObject, error) {
	f.calls++
	if f.err != nil {
		return storage.ScrapeObject{}, f.err
	}
	return storage.ScrapeObject{
		Title: "Sleep guide",
		Text:  "Consistent bedtimes improve sleep quality for children and parents.",
		Links: []string{"https://example.com/naps"},
	}, nil
}

type fakeEmbedder struct{}

// vectors light up one dimension per known topic word
func (fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	t := strings.ToLower(text)
	v := []float32{0, 0, 0.01}
	if strings.Contains(t, "sleep") {
		v[0] = 1
	}
	if strings.Contains(t, "nutrition") {
		v[1] = 1
	}
	return v, nil
}

func (e fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func (fakeEmbedder) Name() string { return "fake" }

func newTestService(t *testing.T, crawler Crawler) (*Service, *storage.MemoryStore, *dao.DocumentDAO) {
	t.Helper()
	db := psqltest.NewDB(t)
	store := storage.NewMemoryStore("docs")
	svc := NewService(db, store, nil, crawler)
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	t.Cleanup(func() {
		svc.Stop()
		cancel()
	})
	return svc, store, dao.NewDocumentDAO(db)
}

func waitForJob(t *testing.T, svc *Service, id string) *models.IngestionJob {
	t.Helper()
	var job *models.IngestionJob
	require.Eventually(t, func() bool {
		job, _ = svc.GetIngestionJob(context.Background(), id)
		return job != nil && (job.Status == models.JobStatusComplete || job.Status == models.JobStatusFailed)
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestIngestAndRetrieve_KeywordMode(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, nil)

	key := "users/u1/wellness_plan/d1-plan.txt"
	require.NoError(t, store.Put(ctx, key, []byte("Daily walks after dinner improve sleep and family connection."), "text/plain"))

	job, err := svc.StartIngestionJob(ctx, "u1", "d1", key)
	require.NoError(t, err)
	done := waitForJob(t, svc, job.ID)
	assert.Equal(t, models.JobStatusComplete, done.Status)
	assert.Equal(t, 1, done.ChunkCount)

	results, err := svc.Retrieve(ctx, "u1", "walks to improve sleep", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "s3://docs/"+key, results[0].SourceURI)

	other, err := svc.Retrieve(ctx, "u2", "walks to improve sleep", 5)
	require.NoError(t, err)
	assert.Empty(t, other, "users never see each other's chunks")

	none, err := svc.Retrieve(ctx, "u1", "quarterly tax filing", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestIngest_MissingObjectFails(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, nil)

	job, err := svc.StartIngestionJob(ctx, "u1", "d1", "users/u1/other/missing.txt")
	require.NoError(t, err)
	done := waitForJob(t, svc, job.ID)
	assert.Equal(t, models.JobStatusFailed, done.Status)
	assert.NotEmpty(t, done.FailureReasons)
}

func TestRetrieve_EmbeddingMode(t *testing.T) {
	ctx := context.Background()
	db := psqltest.NewDB(t)
	svc := NewService(db, storage.NewMemoryStore("docs"), fakeEmbedder{}, nil)

	_, err := svc.indexText(ctx, "u1", "d1", "s3://docs/a", "Nutrition basics for busy parents.")
	require.NoError(t, err)
	_, err = svc.indexText(ctx, "u1", "d2", "s3://docs/b", "Sleep hygiene checklist.")
	require.NoError(t, err)

	results, err := svc.Retrieve(ctx, "u1", "help my kids sleep", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d2", results[0].DocumentID)
}

func TestWebSources_SyncSharesChunks(t *testing.T) {
	ctx := context.Background()
	crawler := &fakeCrawler{}
	svc, store, _ := newTestService(t, crawler)

	src, created, err := svc.AddWebSource(ctx, "https://example.com/sleep", "")
	require.NoError(t, err)
	assert.True(t, created)
	_, created, err = svc.AddWebSource(ctx, "https://example.com/sleep", "")
	require.NoError(t, err)
	assert.False(t, created)

	_, _, err = svc.AddWebSource(ctx, "ftp://example.com", "")
	assert.ErrorIs(t, err, ErrInvalidURL)

	report, err := svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.WebSources)

	require.Eventually(t, func() bool {
		sources, _ := svc.ListWebSources(ctx)
		return len(sources) == 1 && sources[0].LastSyncedAt != nil
	}, 5*time.Second, 10*time.Millisecond)

	results, err := svc.Retrieve(ctx, "anyone", "bedtimes for children", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, src.URL, results[0].SourceURI)

	cached, err := store.Exists(ctx, storage.ScrapeKey(src.URL))
	require.NoError(t, err)
	assert.True(t, cached)

	// second crawl is served from the cache
	_, err = svc.indexWebSource(ctx, *src)
	require.NoError(t, err)
	assert.Equal(t, 1, crawler.calls)
}

func TestSync_RequeuesFailedDocuments(t *testing.T) {
	ctx := context.Background()
	svc, store, docs := newTestService(t, nil)

	doc := &models.Document{
		UserID: "u1", Filename: "a.txt", DocumentType: "other",
		S3Key: "users/u1/other/a.txt", CurrentStatus: models.DocStatusError, ErrorMessage: "boom",
	}
	require.NoError(t, docs.Create(ctx, doc))
	require.NoError(t, store.Put(ctx, doc.S3Key, []byte("meal prep ideas"), "text/plain"))

	report, err := svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)

	got, err := docs.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusIngestionInProgress, got.CurrentStatus)
	assert.Empty(t, got.ErrorMessage)
	require.NotEmpty(t, got.IngestionJobID)
	assert.Equal(t, models.JobStatusComplete, waitForJob(t, svc, got.IngestionJobID).Status)
}

func TestCrawlFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, &fakeCrawler{err: errors.New("timeout")})

	src, _, err := svc.AddWebSource(ctx, "https://example.com/down", "Down")
	require.NoError(t, err)
	svc.crawlSource(ctx, *src)

	sources, err := svc.ListWebSources(ctx)
	require.NoError(t, err)
	assert.Equal(t, "timeout", sources[0].LastError)
}
