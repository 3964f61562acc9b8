package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetLimitAndPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("b")

	require.NoError(t, s.Put(ctx, "users/u1/a.txt", []byte("hello world"), "text/plain"))
	require.NoError(t, s.Put(ctx, "users/u1/a.txt.audit.json", []byte("{}"), "application/json"))
	require.NoError(t, s.Put(ctx, "users/u2/b.txt", []byte("x"), "text/plain"))

	data, err := s.Get(ctx, "users/u1/a.txt", 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = s.Get(ctx, "missing", 0)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.RemovePrefix(ctx, "users/u1/")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, err := s.List(ctx, "users/")
	require.NoError(t, err)
	assert.Equal(t, []string{"users/u2/b.txt"}, keys)
}

func TestScrapeCache(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("b")

	key, err := PutScrape(ctx, s, ScrapeObject{URL: "https://example.com/sleep", Text: "rest", Timestamp: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, ScrapeKey("https://example.com/sleep"), key)
	assert.Regexp(t, `^scrapes/[0-9a-f]{32}\.json$`, key)

	got, err := GetScrape(ctx, s, "https://example.com/sleep", time.Hour)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "rest", got.Text)

	_, err = PutScrape(ctx, s, ScrapeObject{URL: "https://old.example.com", Timestamp: time.Now().Add(-48 * time.Hour)})
	require.NoError(t, err)
	stale, err := GetScrape(ctx, s, "https://old.example.com", 24*time.Hour)
	require.NoError(t, err)
	assert.Nil(t, stale)
}
