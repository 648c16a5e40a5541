package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Chunk store connection
	ChunkstoreURL    string
	ChunkstoreAPIKey string

	// Auth
	CiteanchorAPIKey string

	// Chunk store timeouts
	MetadataTimeout time.Duration
	DownloadTimeout time.Duration

	// Pipeline pacing
	SettleFirst        time.Duration
	SettleResize       time.Duration
	ResizeDebounce     time.Duration
	LayoutPollInterval time.Duration

	// Session lifecycle
	SessionTTL      time.Duration
	CleanupInterval time.Duration

	// Matching
	MaxConcurrentMatches int

	// Page push limits
	MaxPushBytes int64
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		ChunkstoreURL:    envOr("CHUNKSTORE_URL", "http://localhost:8080"),
		ChunkstoreAPIKey: os.Getenv("CHUNKSTORE_API_KEY"),

		CiteanchorAPIKey: os.Getenv("CITEANCHOR_API_KEY"),

		MetadataTimeout: envDuration("METADATA_TIMEOUT", 10*time.Second),
		DownloadTimeout: envDuration("DOWNLOAD_TIMEOUT", 60*time.Second),

		SettleFirst:        envDuration("SETTLE_FIRST", 800*time.Millisecond),
		SettleResize:       envDuration("SETTLE_RESIZE", 300*time.Millisecond),
		ResizeDebounce:     envDuration("RESIZE_DEBOUNCE", 300*time.Millisecond),
		LayoutPollInterval: envDuration("LAYOUT_POLL_INTERVAL", 100*time.Millisecond),

		SessionTTL:      envDuration("SESSION_TTL", 30*time.Minute),
		CleanupInterval: envDuration("CLEANUP_INTERVAL", 5*time.Minute),

		MaxConcurrentMatches: envInt("MAX_CONCURRENT_MATCHES", 4),

		MaxPushBytes: envInt64("MAX_PUSH_BYTES", 10485760), // 10MB
	}

	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = 10 * time.Second
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 60 * time.Second
	}
	if cfg.SettleFirst <= 0 {
		cfg.SettleFirst = 800 * time.Millisecond
	}
	if cfg.SettleResize <= 0 {
		cfg.SettleResize = 300 * time.Millisecond
	}
	if cfg.ResizeDebounce <= 0 {
		cfg.ResizeDebounce = 300 * time.Millisecond
	}
	if cfg.LayoutPollInterval <= 0 {
		cfg.LayoutPollInterval = 100 * time.Millisecond
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.MaxConcurrentMatches <= 0 {
		cfg.MaxConcurrentMatches = 4
	}
	if cfg.MaxPushBytes <= 0 {
		cfg.MaxPushBytes = 10485760
	}

	return cfg
}

func (c Config) Validate() error {
	if c.CiteanchorAPIKey == "" {
		return fmt.Errorf("CITEANCHOR_API_KEY is required")
	}
	if c.ChunkstoreURL == "" {
		return fmt.Errorf("CHUNKSTORE_URL is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
