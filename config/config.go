// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// A missing DB_DSN is not an error: the service runs in degraded mode on the
// built-in fallback content, which is the expected posture for demo deployments.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Twitch (live-status enrichment)
	TwitchClientID     string
	TwitchClientSecret string

	// YouTube (live-status enrichment, API key only)
	YTAPIKey string

	// Advisory text service
	GeminiAPIKey string

	// Database. Empty means no backend: degraded/local mode for the session.
	DBDsn string

	// Storage for locally persisted state (user record, per-clip comments)
	DataDir string

	// HTTP
	HTTPAddr string

	// Rewards granted for community actions
	RewardVote       int
	RewardSighting   int
	RewardSubmission int

	// How often streamer live status is re-polled
	LiveRefreshInterval time.Duration
}

// Load reads environment variables and applies defaults. It never fails on
// missing credentials; missing optional variables disable features (YouTube
// probing, advisory briefs) or switch the service to degraded mode (DB_DSN).
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	cfg.YTAPIKey = os.Getenv("YT_API_KEY")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	// Deliberately no default DSN: absence of DB_DSN selects degraded mode
	// rather than a dial failure against a database that isn't there.
	cfg.DBDsn = os.Getenv("DB_DSN")

	cfg.DataDir = os.Getenv("DATA_DIR")
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.RewardVote = envInt("REWARD_VOTE", 10)
	cfg.RewardSighting = envInt("REWARD_SIGHTING", 50)
	cfg.RewardSubmission = envInt("REWARD_SUBMISSION", 100)

	if v := os.Getenv("LIVE_REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid LIVE_REFRESH_INTERVAL: %w", err)
		}
		cfg.LiveRefreshInterval = d
	} else {
		cfg.LiveRefreshInterval = 2 * time.Minute
	}

	return cfg, nil
}

// DBConfigured reports whether a remote content backend is available for this
// session. Evaluated once at load; held for the lifetime of the process.
func (c *Config) DBConfigured() bool { return c.DBDsn != "" }

// TwitchConfigured reports whether Twitch live-status enrichment can run.
func (c *Config) TwitchConfigured() bool {
	return c.TwitchClientID != "" && c.TwitchClientSecret != ""
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
