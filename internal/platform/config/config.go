package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr                string
	SessionSigningKey   string
	SessionTTL          time.Duration
	ReplayBufferCap     int
	HeartbeatInterval   time.Duration
	MetricsTickInterval time.Duration
	SeedDemoData        bool
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("PORTAL_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	signingKey := os.Getenv("SESSION_SIGNING_KEY")
	if signingKey == "" {
		// Use a default for development - should be overridden in production
		signingKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:                addr,
		SessionSigningKey:   signingKey,
		SessionTTL:          durationEnv("SESSION_TTL", 8*time.Hour),
		ReplayBufferCap:     intEnv("REPLAY_BUFFER_CAP", 500),
		HeartbeatInterval:   durationEnv("HEARTBEAT_INTERVAL", 15*time.Second),
		MetricsTickInterval: durationEnv("METRICS_TICK_INTERVAL", 30*time.Second),
		SeedDemoData:        os.Getenv("SEED_DEMO_DATA") == "true",
	}
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func intEnv(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
