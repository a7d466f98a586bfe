// Package config loads pricewatch settings from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DataDir  string // per-item stores + registry files
	ThumbDir string // thumbnail images, keyed by item identifier

	ListenAddr      string        // ex: ":8080"
	ShutdownTimeout time.Duration // graceful shutdown deadline

	UpdateInterval time.Duration // how often the batch update runs
	FetchTimeout   time.Duration // per-page fetch timeout
	UserAgent      string        // sent with every page request

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)
}

func Load() *Config {
	return &Config{
		DataDir:  getenv("PRICEWATCH_DATA_DIR", "data"),
		ThumbDir: getenv("PRICEWATCH_THUMB_DIR", "static/thumbnails"),

		ListenAddr:      getenv("PRICEWATCH_LISTEN_ADDR", ":8080"),
		ShutdownTimeout: mustDuration("PRICEWATCH_SHUTDOWN_TIMEOUT", 5*time.Second),

		UpdateInterval: mustDuration("PRICEWATCH_UPDATE_INTERVAL", 24*time.Hour),
		FetchTimeout:   mustDuration("PRICEWATCH_FETCH_TIMEOUT", 30*time.Second),
		UserAgent: getenv("PRICEWATCH_USER_AGENT",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/115.0"),

		LogLevel:  getenv("PRICEWATCH_LOG_LEVEL", "info"),
		PrettyLog: mustBool("PRICEWATCH_PRETTY_LOG", true),
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
