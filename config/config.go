package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	Token      string
	APIURL     string
	GatewayURL string
	RedisURL   string
	LogLevel   slog.Level
}

func Load() *Config {
	cfg := &Config{
		Token:      os.Getenv("RETROGRADE_TOKEN"),
		APIURL:     envOrDefault("RETROGRADE_API_URL", "http://localhost:8080/api/v1"),
		GatewayURL: envOrDefault("RETROGRADE_GATEWAY_URL", "ws://localhost:8080/gateway"),
		RedisURL:   os.Getenv("RETROGRADE_REDIS_URL"),
		LogLevel:   parseLogLevel(os.Getenv("LOG_LEVEL")),
	}

	var missing []string
	if cfg.Token == "" {
		missing = append(missing, "RETROGRADE_TOKEN")
	}
	if len(missing) > 0 {
		panic(fmt.Sprintf("required environment variables not set: %s", strings.Join(missing, ", ")))
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
