package uidriver

import (
	"os"
	"strconv"
	"time"
)

// Config holds tunables for the driver services.
type Config struct {
	// ScrollEventTimeout bounds the wait for an accessibility event after a
	// scroll gesture. Expiry is normal, not an error.
	ScrollEventTimeout time.Duration

	// ForegroundTimeout bounds the wait for a foreground app to appear.
	ForegroundTimeout time.Duration

	// ForegroundPollInterval is the sleep between foreground app checks.
	ForegroundPollInterval time.Duration

	// ScreenshotTimeout bounds the wait for the next captured frame.
	ScreenshotTimeout time.Duration

	// MaxScrollSteps is the Scroller giveup bound per session.
	MaxScrollSteps int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ScrollEventTimeout:     1 * time.Second,
		ForegroundTimeout:      10 * time.Second,
		ForegroundPollInterval: 250 * time.Millisecond,
		ScreenshotTimeout:      2 * time.Second,
		MaxScrollSteps:         100,
	}
}

// ConfigFromEnv returns the default configuration with UIDRIVER_* environment
// overrides applied. Durations are in milliseconds.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.ScrollEventTimeout = envDuration("UIDRIVER_SCROLL_EVENT_TIMEOUT_MS", cfg.ScrollEventTimeout)
	cfg.ForegroundTimeout = envDuration("UIDRIVER_FOREGROUND_TIMEOUT_MS", cfg.ForegroundTimeout)
	cfg.ForegroundPollInterval = envDuration("UIDRIVER_FOREGROUND_POLL_MS", cfg.ForegroundPollInterval)
	cfg.ScreenshotTimeout = envDuration("UIDRIVER_SCREENSHOT_TIMEOUT_MS", cfg.ScreenshotTimeout)
	cfg.MaxScrollSteps = envInt("UIDRIVER_MAX_SCROLL_STEPS", cfg.MaxScrollSteps)
	return cfg
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
