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

// ProvidersConfig defines provider order, models and timeouts.
type ProvidersConfig struct {
	PrimaryEngine   string // "gemini"|"anthropic"
	SecondaryEngine string // "anthropic"|"gemini"
	GeminiTextModel   string
	GeminiVisionModel string
	AnthropicModel    string
	RequestTimeout    time.Duration
}

// LimitsConfig defines admission control knobs.
type LimitsConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	MaxPayloadBytes   int
}

// FileSearchConfig defines the citation backend behavior.
type FileSearchConfig struct {
	QueryModel   string
	PollInterval time.Duration
	MaxWait      time.Duration
}

// ArchiveConfig defines the S3 document archive.
type ArchiveConfig struct {
	Enabled    bool
	Bucket     string
	Passphrase string
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Logging    LoggingConfig
	Axiom      AxiomConfig
	Providers  ProvidersConfig
	Limits     LimitsConfig
	FileSearch FileSearchConfig
	Archive    ArchiveConfig
	Server     ServerConfig
	RedisURL   string
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/aigateway.log"),
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
		Dataset:       baseDataset + "_aigateway",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	// Provider defaults
	cfg.Providers = ProvidersConfig{
		PrimaryEngine:     getEnv("PRIMARY_ENGINE", "gemini"),
		SecondaryEngine:   getEnv("SECONDARY_ENGINE", "anthropic"),
		GeminiTextModel:   getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		GeminiVisionModel: getEnv("GEMINI_VISION_MODEL", "gemini-2.5-flash"),
		AnthropicModel:    getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		RequestTimeout:    parseDuration(getEnv("REQUEST_TIMEOUT", "60s"), 60*time.Second),
	}

	// Admission defaults
	cfg.Limits = LimitsConfig{
		RateLimitRequests: parseInt(getEnv("RATE_LIMIT_REQUESTS", "10"), 10),
		RateLimitWindow:   parseDuration(getEnv("RATE_LIMIT_WINDOW", "60s"), 60*time.Second),
		MaxPayloadBytes:   parseInt(getEnv("MAX_PAYLOAD_BYTES", "1048576"), 1048576),
	}

	// File-search defaults
	cfg.FileSearch = FileSearchConfig{
		QueryModel:   getEnv("FILESEARCH_QUERY_MODEL", "gemini-2.5-flash"),
		PollInterval: parseDuration(getEnv("FILESEARCH_POLL_INTERVAL", "5s"), 5*time.Second),
		MaxWait:      parseDuration(getEnv("FILESEARCH_MAX_WAIT", "60s"), 60*time.Second),
	}

	// Archive defaults
	cfg.Archive = ArchiveConfig{
		Enabled:    parseBool(getEnv("ARCHIVE_ENABLED", "0")),
		Bucket:     getEnv("ARCHIVE_BUCKET", ""),
		Passphrase: getEnv("ARCHIVE_PASSPHRASE", ""),
	}
	if cfg.Archive.Bucket == "" {
		cfg.Archive.Enabled = false
	}

	// Server defaults
	cfg.Server = ServerConfig{
		Addr:            getEnv("LISTEN_ADDR", ":8080"),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "15s"), 15*time.Second),
	}

	cfg.RedisURL = getEnv("REDIS_URL", "")

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
