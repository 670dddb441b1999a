package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ServerConfig defines the HTTP listener and its optional basic auth.
type ServerConfig struct {
	Port         string
	Username     string
	PasswordHash string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxUploadMB  int
}

// JobsConfig defines async job behavior.
type JobsConfig struct {
	Backend       string // "memory"|"redis"
	RedisURL      string
	MaxConcurrent int
	MaxDuration   time.Duration
	Retention     time.Duration
}

// SplitConfig tunes the split planners and executor.
type SplitConfig struct {
	DefaultThresholdMB float64
	BlankCharThreshold int
	DensityJumpRatio   float64
	FailFast           bool
}

// StorageConfig defines temp staging and the optional S3 mirror.
type StorageConfig struct {
	TempDir       string
	SweepInterval time.Duration
	MaxAge        time.Duration
	S3Bucket      string
	S3Prefix      string
	MirrorToS3    bool
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Server  ServerConfig
	Jobs    JobsConfig
	Split   SplitConfig
	Storage StorageConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/pdfsplitd.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pdfsplitd",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Server = ServerConfig{
		Port:         getEnv("PORT", "8080"),
		Username:     getEnv("AUTH_USERNAME", ""),
		PasswordHash: getEnv("AUTH_PASSWORD_HASH", ""),
		ReadTimeout:  parseDuration(getEnv("SERVER_READ_TIMEOUT", "120s"), 120*time.Second),
		WriteTimeout: parseDuration(getEnv("SERVER_WRITE_TIMEOUT", "300s"), 300*time.Second),
		MaxUploadMB:  parseInt(getEnv("MAX_UPLOAD_MB", "200"), 200),
	}

	cfg.Jobs = JobsConfig{
		Backend:       getEnv("JOB_STORE", "memory"),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379"),
		MaxConcurrent: parseInt(getEnv("JOB_CONCURRENCY", "4"), 4),
		MaxDuration:   parseDuration(getEnv("JOB_MAX_DURATION", "10m"), 10*time.Minute),
		Retention:     parseDuration(getEnv("JOB_RETENTION", "1h"), time.Hour),
	}

	cfg.Split = SplitConfig{
		DefaultThresholdMB: parseFloat(getEnv("SPLIT_THRESHOLD_MB", "10"), 10),
		BlankCharThreshold: parseInt(getEnv("SPLIT_BLANK_CHAR_THRESHOLD", "0"), 0),
		DensityJumpRatio:   parseFloat(getEnv("SPLIT_DENSITY_JUMP_RATIO", "0"), 0),
		FailFast:           parseBool(getEnv("SPLIT_FAIL_FAST", "0")),
	}

	cfg.Storage = StorageConfig{
		TempDir:       getEnv("TEMP_DIR", os.TempDir()),
		SweepInterval: parseDuration(getEnv("TEMP_SWEEP_INTERVAL", "5m"), 5*time.Minute),
		MaxAge:        parseDuration(getEnv("TEMP_MAX_AGE", "1h"), time.Hour),
		S3Bucket:      getEnv("S3_BUCKET", ""),
		S3Prefix:      getEnv("S3_PREFIX", "splits"),
		MirrorToS3:    parseBool(getEnv("MIRROR_TO_S3", "0")),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
