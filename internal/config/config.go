package config

import (
	"log"
	"os"
	"time"
)

const (
	defaultAppEnv             = "development"
	defaultDBPath             = "./dev.db"
	defaultPort               = "8080"
	defaultFabricCacheTTL     = 10 * time.Minute
	defaultTemplateCacheTTL   = 30 * time.Second
	defaultCacheSweepSchedule = "@every 1m"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AppEnv             string
	DBPath             string
	Port               string
	FabricCacheTTL     time.Duration
	TemplateCacheTTL   time.Duration
	CacheSweepSchedule string
}

// IsDev reports whether the server runs in development mode, where the
// default fabric catalog is seeded on startup.
func (c Config) IsDev() bool {
	return c.AppEnv == "" || c.AppEnv == defaultAppEnv
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	// Best-effort: production injects the environment directly.
	_ = loadDotEnv(".env")

	cfg := Config{
		AppEnv:             os.Getenv("APP_ENV"),
		DBPath:             os.Getenv("DB_PATH"),
		Port:               os.Getenv("PORT"),
		FabricCacheTTL:     durationEnv("FABRIC_CACHE_TTL", defaultFabricCacheTTL),
		TemplateCacheTTL:   durationEnv("TEMPLATE_CACHE_TTL", defaultTemplateCacheTTL),
		CacheSweepSchedule: os.Getenv("CACHE_SWEEP_SCHEDULE"),
	}

	if cfg.AppEnv == "" {
		cfg.AppEnv = defaultAppEnv
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.CacheSweepSchedule == "" {
		cfg.CacheSweepSchedule = defaultCacheSweepSchedule
	}

	return cfg
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("warning: %s=%q is not a positive duration, using %s", key, raw, fallback)
		return fallback
	}
	return d
}
