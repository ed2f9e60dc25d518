package config

import (
	"os"
	"runtime"
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

// ScanConfig defines rendering and effect defaults.
type ScanConfig struct {
	DPI          int
	Quality      int
	Workers      int
	Seed         int64
	RendererPath string
}

// StorageConfig defines remote input/output access.
type StorageConfig struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// Password encrypts s3:// outputs and decrypts encrypted s3:// inputs.
	Password  string
}

// ServerConfig defines serve mode.
type ServerConfig struct {
	Addr          string
	RedisURL      string
	UploadDir     string
	ResultDir     string
	MaxInflight   int
	MaxUploadMB   int64
	CleanupMaxAge time.Duration
	WebUsername   string
	WebPassword   string
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Scan    ScanConfig
	Storage StorageConfig
	Server  ServerConfig
}

// DPI bounds accepted for rendering.
const (
	MinDPI     = 120
	MaxDPI     = 300
	DefaultDPI = 200
)

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", ""),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_scanlike",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Scan = ScanConfig{
		DPI:          parseInt(getEnv("SCAN_DPI", strconv.Itoa(DefaultDPI)), DefaultDPI),
		Quality:      parseInt(getEnv("SCAN_QUALITY", "90"), 90),
		Workers:      parseInt(getEnv("SCAN_WORKERS", strconv.Itoa(runtime.NumCPU())), runtime.NumCPU()),
		Seed:         parseInt64(getEnv("SCAN_SEED", "0"), 0),
		RendererPath: getEnv("RENDERER_PATH", ""),
	}

	cfg.Storage = StorageConfig{
		Region:    getEnv("AWS_REGION", ""),
		Endpoint:  getEnv("S3_ENDPOINT", ""),
		AccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		Password:  getEnv("S3_ENCRYPTION_PASSWORD", ""),
	}

	cfg.Server = ServerConfig{
		Addr:          getEnv("SERVER_ADDR", ":8080"),
		RedisURL:      getEnv("REDIS_URL", ""),
		UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
		ResultDir:     getEnv("RESULT_DIR", "results"),
		MaxInflight:   parseInt(getEnv("MAX_INFLIGHT_JOBS", "2"), 2),
		MaxUploadMB:   int64(parseInt(getEnv("MAX_UPLOAD_MB", "100"), 100)),
		CleanupMaxAge: parseDuration(getEnv("CLEANUP_MAX_AGE", "1h"), time.Hour),
		WebUsername:   getEnv("WEB_USERNAME", ""),
		WebPassword:   getEnv("WEB_PASSWORD", ""),
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

func parseInt64(s string, def int64) int64 {
	if s == "" {
		return def
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
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
