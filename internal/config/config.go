package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	Port        string
	Env         string

	ParticipantStore string
	MessageStore     string

	StaleAfter   time.Duration
	ReapInterval time.Duration

	RateLimitBurst  int
	RateLimitRefill time.Duration

	CORSOrigins []string

	OTELEndpoint    string
	OTELServiceName string
	OTELSampleRatio float64
}

func Load() (*Config, error) {
	log.Println("[CONFIG] Attempting to load .env file...")

	err := godotenv.Load()
	if err != nil {
		log.Println("[CONFIG] ℹ️ No .env file found, relying on system environment variables")
	} else {
		log.Println("[CONFIG] ✅ Successfully loaded .env file")
	}

	return fromEnv()
}

func fromEnv() (*Config, error) {
	var errs []error

	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		Port:             getEnv("PORT", "5000"),
		Env:              getEnv("APP_ENV", "development"),
		ParticipantStore: strings.ToLower(getEnv("PARTICIPANT_STORE", StorePostgres)),
		MessageStore:     strings.ToLower(getEnv("MESSAGE_STORE", StorePostgres)),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELServiceName:  getEnv("OTEL_SERVICE_NAME", "chatroom"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "*")),
	}

	cfg.StaleAfter = getDuration("STALE_AFTER", 10*time.Second, &errs)
	cfg.ReapInterval = getDuration("REAP_INTERVAL", 15*time.Second, &errs)
	if cfg.ReapInterval < time.Second {
		errs = append(errs, fmt.Errorf("REAP_INTERVAL must be at least 1s, got %s", cfg.ReapInterval))
	}
	cfg.RateLimitRefill = getDuration("RATE_LIMIT_REFILL", 500*time.Millisecond, &errs)
	cfg.RateLimitBurst = getInt("RATE_LIMIT_BURST", 5, &errs)
	cfg.OTELSampleRatio = getFloat("OTEL_TRACES_SAMPLER_ARG", 1.0, &errs)

	switch cfg.ParticipantStore {
	case StorePostgres, StoreRedis, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("PARTICIPANT_STORE must be postgres, redis or memory, got %q", cfg.ParticipantStore))
	}
	switch cfg.MessageStore {
	case StorePostgres, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("MESSAGE_STORE must be postgres or memory, got %q", cfg.MessageStore))
	}

	log.Printf("[CONFIG] Environment: %s", cfg.Env)
	log.Printf("[CONFIG] Target Port: %s", cfg.Port)
	log.Printf("[CONFIG] Stores: participants=%s messages=%s", cfg.ParticipantStore, cfg.MessageStore)

	if cfg.NeedsPostgres() {
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is missing"))
		} else {
			log.Printf("[CONFIG] Database URL detected: %s", maskDBSource(cfg.DatabaseURL))
		}
	}

	if err := errors.Join(errs...); err != nil {
		log.Printf("[CONFIG] ❌ Invalid configuration: %v", err)
		return nil, err
	}

	log.Println("[CONFIG] All configuration variables successfully initialized")
	return cfg, nil
}

func (c *Config) NeedsPostgres() bool {
	return c.ParticipantStore == StorePostgres || c.MessageStore == StorePostgres
}

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		log.Printf("[CONFIG] ⚠️  Variable %s not found, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	raw := getEnv(key, def.String())
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s must be a positive duration, got %q", key, raw))
		return def
	}
	return d
}

func getInt(key string, def int, errs *[]error) int {
	raw := getEnv(key, strconv.Itoa(def))
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		*errs = append(*errs, fmt.Errorf("%s must be a positive integer, got %q", key, raw))
		return def
	}
	return n
}

func getFloat(key string, def float64, errs *[]error) float64 {
	raw := getEnv(key, strconv.FormatFloat(def, 'f', -1, 64))
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 || f > 1 {
		*errs = append(*errs, fmt.Errorf("%s must be between 0 and 1, got %q", key, raw))
		return def
	}
	return f
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func maskDBSource(dsn string) string {
	parts := strings.Split(dsn, "@")
	if len(parts) < 2 {
		return "invalid-dsn-format"
	}
	return "postgres://****:****@" + parts[len(parts)-1]
}
