package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port           string        `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBName     string `yaml:"db_name"`
	DBSSLMode  string `yaml:"db_sslmode"`

	JWTSecret   string        `yaml:"jwt_secret"`
	JWTTTL      time.Duration `yaml:"jwt_ttl"`
	AdminEmails []string      `yaml:"admin_emails"`

	MinIOEndpoint      string `yaml:"minio_endpoint"`
	MinIOAccessKey     string `yaml:"minio_access_key"`
	MinIOSecretKey     string `yaml:"minio_secret_key"`
	MinIOBucket        string `yaml:"minio_bucket"`
	MinIOUseSSL        bool   `yaml:"minio_use_ssl"`
	MinIONotifications bool   `yaml:"minio_notifications"`

	LLMProvider  string `yaml:"llm_provider"`
	LLMBaseURL   string `yaml:"llm_base_url"`
	LLMAPIKey    string `yaml:"llm_api_key"`
	LLMModel     string `yaml:"llm_model"`
	LLMFastModel string `yaml:"llm_fast_model"`

	EmbeddingProvider string `yaml:"embedding_provider"`
	EmbeddingEndpoint string `yaml:"embedding_endpoint"`
	EmbeddingModel    string `yaml:"embedding_model"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	ResendAPIKey string `yaml:"resend_api_key"`
	FromEmail    string `yaml:"from_email"`

	StatusCheckInterval time.Duration `yaml:"status_check_interval"`
	IndexingWait        time.Duration `yaml:"indexing_wait"`
	KBSyncInterval      time.Duration `yaml:"kb_sync_interval"`

	PromptsFile string `yaml:"prompts_file"`
	LogDir      string `yaml:"log_dir"`
}

// Defaults returns the configuration used when neither a config file nor the
// environment say otherwise.
func Defaults() Config {
	return Config{
		Port:                "8000",
		AllowedOrigins:      []string{"*"},
		RequestTimeout:      60 * time.Second,
		DBHost:              "localhost",
		DBPort:              "5432",
		DBSSLMode:           "disable",
		JWTTTL:              24 * time.Hour,
		MinIOBucket:         "wellness-documents",
		LLMProvider:         "openai",
		LLMModel:            "gpt-4o-mini",
		EmbeddingProvider:   "none",
		EmbeddingEndpoint:   "http://localhost:11434",
		EmbeddingModel:      "nomic-embed-text",
		RateLimitRPS:        10,
		RateLimitBurst:      20,
		FromEmail:           "Wellness <noreply@example.com>",
		StatusCheckInterval: 30 * time.Second,
		IndexingWait:        15 * time.Second,
		KBSyncInterval:      24 * time.Hour,
		LogDir:              "./logs",
	}
}

func LoadConfig() Config {
	// .env is optional; production sets the environment directly.
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeYAML(path); err != nil {
			fmt.Fprintln(os.Stderr, "config file ignored:", err)
		}
	}
	cfg.applyEnv()
	return cfg
}

func (c *Config) mergeYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", c.AllowedOrigins)
	c.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", c.RequestTimeout)

	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.DBSSLMode = getEnv("DB_SSLMODE", c.DBSSLMode)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTTTL = getEnvDuration("JWT_TTL", c.JWTTTL)
	c.AdminEmails = getEnvList("ADMIN_EMAILS", c.AdminEmails)

	c.MinIOEndpoint = getEnv("MINIO_ENDPOINT", c.MinIOEndpoint)
	c.MinIOAccessKey = getEnv("MINIO_ACCESS_KEY", c.MinIOAccessKey)
	c.MinIOSecretKey = getEnv("MINIO_SECRET_KEY", c.MinIOSecretKey)
	c.MinIOBucket = getEnv("MINIO_BUCKET", c.MinIOBucket)
	c.MinIOUseSSL = getEnvBool("MINIO_USE_SSL", c.MinIOUseSSL)
	c.MinIONotifications = getEnvBool("MINIO_NOTIFICATIONS", c.MinIONotifications)

	c.LLMProvider = getEnv("LLM_PROVIDER", c.LLMProvider)
	c.LLMBaseURL = getEnv("LLM_BASE_URL", c.LLMBaseURL)
	c.LLMAPIKey = getEnv("LLM_API_KEY", c.LLMAPIKey)
	c.LLMModel = getEnv("LLM_MODEL", c.LLMModel)
	c.LLMFastModel = getEnv("LLM_FAST_MODEL", c.LLMFastModel)
	if c.LLMFastModel == "" {
		c.LLMFastModel = c.LLMModel
	}

	c.EmbeddingProvider = getEnv("EMBEDDING_PROVIDER", c.EmbeddingProvider)
	c.EmbeddingEndpoint = getEnv("EMBEDDING_ENDPOINT", c.EmbeddingEndpoint)
	c.EmbeddingModel = getEnv("EMBEDDING_MODEL", c.EmbeddingModel)

	c.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", c.RateLimitRPS)
	c.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", c.RateLimitBurst)

	c.ResendAPIKey = getEnv("RESEND_API_KEY", c.ResendAPIKey)
	c.FromEmail = getEnv("FROM_EMAIL", c.FromEmail)

	c.StatusCheckInterval = getEnvDuration("STATUS_CHECK_INTERVAL", c.StatusCheckInterval)
	c.IndexingWait = getEnvDuration("INDEXING_WAIT", c.IndexingWait)
	c.KBSyncInterval = getEnvDuration("KB_SYNC_INTERVAL", c.KBSyncInterval)

	c.PromptsFile = getEnv("PROMPTS_FILE", c.PromptsFile)
	c.LogDir = getEnv("LOG_DIR", c.LogDir)
}

// MinJWTSecretLen is the shortest HS256 signing key the server accepts.
const MinJWTSecretLen = 32

// Validate rejects settings the server cannot run safely with.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < MinJWTSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLen)
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	return nil
}

// DSN builds the postgres connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// IsAdminEmail reports whether email should be promoted to the admins group on registration.
func (c Config) IsAdminEmail(email string) bool {
	for _, e := range c.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
