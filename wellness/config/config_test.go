package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ADMIN_EMAILS", "Boss@Example.com, ops@example.com")
	t.Setenv("INDEXING_WAIT", "2s")
	t.Setenv("MINIO_NOTIFICATIONS", "true")
	t.Setenv("LLM_MODEL", "llama3:8b")
	t.Setenv("LLM_FAST_MODEL", "")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.IndexingWait)
	assert.True(t, cfg.MinIONotifications)
	assert.Equal(t, "llama3:8b", cfg.LLMFastModel, "fast model falls back to main model")
	assert.True(t, cfg.IsAdminEmail("boss@example.com"))
	assert.False(t, cfg.IsAdminEmail("someone@example.com"))
}

func TestLoadConfig_InvalidValuesKeepDefaults(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "lots")
	t.Setenv("JWT_TTL", "forever")

	cfg := LoadConfig()

	assert.Equal(t, Defaults().RateLimitBurst, cfg.RateLimitBurst)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
}

func TestLoadConfig_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wellness.yaml")
	body := "port: \"7000\"\nminio_bucket: from-yaml\nrate_limit_rps: 2.5\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7100")

	cfg := LoadConfig()

	assert.Equal(t, "7100", cfg.Port, "env wins over yaml")
	assert.Equal(t, "from-yaml", cfg.MinIOBucket)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
}

func TestDSN(t *testing.T) {
	cfg := Defaults()
	cfg.DBUser = "app"
	cfg.DBPassword = "secret"
	cfg.DBName = "wellness"

	assert.Equal(t, "host=localhost port=5432 user=app password=secret dbname=wellness sslmode=disable", cfg.DSN())
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	assert.EqualError(t, cfg.Validate(), "JWT_SECRET is required")

	cfg.JWTSecret = "short"
	assert.EqualError(t, cfg.Validate(), "JWT_SECRET must be at least 32 bytes")

	cfg.JWTSecret = strings.Repeat("k", MinJWTSecretLen)
	assert.NoError(t, cfg.Validate())

	cfg.JWTTTL = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadConfig_SecretFromEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "")
	assert.Error(t, LoadConfig().Validate())

	t.Setenv("JWT_SECRET", strings.Repeat("s", 40))
	assert.NoError(t, LoadConfig().Validate())
}
