package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wellness/wellness/config"
	"wellness/wellness/middlewares"
	"wellness/wellness/services/llm/llmtest"
	"wellness/wellness/services/notify"
	"wellness/wellness/sources/psql/psqltest"
	"wellness/wellness/sources/storage"
	"wellness/wellness/utils/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp(t *testing.T, cfg config.Config) (*App, *httptest.Server) {
	t.Helper()
	a := assemble(cfg, psqltest.NewDB(t), storage.NewMemoryStore("docs"),
		llmtest.Text("Wind down early."), nil, nil, notify.LogNotifier{})
	a.KB.Start(context.Background())
	t.Cleanup(a.KB.Stop)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return a, srv
}

func TestHandler_TimeoutCoversChatButNotStream(t *testing.T) {
	cfg := config.Defaults()
	cfg.JWTSecret = strings.Repeat("k", config.MinJWTSecretLen)
	cfg.RequestTimeout = time.Nanosecond
	cfg.RateLimitRPS, cfg.RateLimitBurst = 100, 100
	_, srv := testApp(t, cfg)

	token, _, err := middlewares.SignToken(cfg, "u1", "a@example.com", []string{"users"})
	require.NoError(t, err)

	req, err := http.NewRequest("GET", srv.URL+"/chat/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.GreaterOrEqual(t, resp.StatusCode, http.StatusInternalServerError, "session listing ran past the request timeout")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/chat/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, wsjson.Write(ctx, conn, types.StreamRequest{Token: token, Question: "Bedtime tips?"}))
	var answer strings.Builder
	for {
		var f types.StreamFrame
		require.NoError(t, wsjson.Read(ctx, conn, &f))
		if f.Type == "done" {
			break
		}
		require.Equal(t, "delta", f.Type, f.Error)
		answer.WriteString(f.Content)
	}
	assert.Equal(t, "Wind down early.", answer.String())
}

func TestHandler_HealthAndRateLimit(t *testing.T) {
	cfg := config.Defaults()
	cfg.JWTSecret = strings.Repeat("k", config.MinJWTSecretLen)
	cfg.RateLimitRPS, cfg.RateLimitBurst = 0.001, 1
	a, srv := testApp(t, cfg)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotNil(t, a.Limiter)
}

func TestNew_RejectsWeakSecret(t *testing.T) {
	cfg := config.Defaults()
	_, err := New(context.Background(), cfg)
	assert.EqualError(t, err, "JWT_SECRET is required")

	cfg.JWTSecret = "short"
	_, err = New(context.Background(), cfg)
	assert.ErrorContains(t, err, "at least 32 bytes")
}
