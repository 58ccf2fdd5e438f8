// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration.
type Config struct {
	ListenAddr   string
	DatabasePath string
	LogLevel     string
	FeedCacheTTL time.Duration
	FeedTimeout  time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/crisisrelay.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	// The upstream publishes every 6 minutes; the cache TTL matches.
	cacheTTL, err := secondsEnv("FEED_CACHE_TTL_SECONDS", 360)
	if err != nil {
		return nil, err
	}

	feedTimeout, err := secondsEnv("FEED_TIMEOUT_SECONDS", 15)
	if err != nil {
		return nil, err
	}

	return &Config{
		ListenAddr:   addr,
		DatabasePath: dbPath,
		LogLevel:     logLevel,
		FeedCacheTTL: cacheTTL,
		FeedTimeout:  feedTimeout,
	}, nil
}

func secondsEnv(key string, def int) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(def) * time.Second, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, raw)
	}
	return time.Duration(n) * time.Second, nil
}
