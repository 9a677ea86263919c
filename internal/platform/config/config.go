package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration. Empty database, redis, or
// kafka settings degrade gracefully: memory stores and a no-op publisher,
// so the binary runs standalone for local development.
type Config struct {
	Addr           string
	DatabaseURL    string
	RedisURL       string
	KafkaBrokers   []string
	JWTSigningKey  string
	LogLevel       string
	RequestTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:           getEnv("NIDHI_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("NIDHI_DATABASE_URL"),
		RedisURL:       os.Getenv("NIDHI_REDIS_URL"),
		JWTSigningKey:  os.Getenv("NIDHI_JWT_SIGNING_KEY"),
		LogLevel:       getEnv("NIDHI_LOG_LEVEL", "info"),
		RequestTimeout: 30 * time.Second,
	}
	if brokers := os.Getenv("NIDHI_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	if cfg.JWTSigningKey == "" {
		// Development default; override in any real deployment.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
