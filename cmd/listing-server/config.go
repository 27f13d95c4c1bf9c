package main

import (
	"os"
	"strconv"
	"time"
)

// serverConfig holds the serve command settings. Defaults come from the
// environment and are overridden by flags.
type serverConfig struct {
	Addr      string
	Upstream  string
	UserAgent string
	Timeout   time.Duration

	Store       string
	RedisURL    string
	DatabaseURL string
	Table       string
	Namespace   string
	TTL         time.Duration
	Compress    bool

	Name      string
	FirstPage int
	PageSize  int
	Prefetch  int

	LogLevel string
	Pretty   bool
}

// Store backends accepted by --store.
const (
	storeNone     = "none"
	storeMemory   = "memory"
	storeRedis    = "redis"
	storePostgres = "postgres"
)

func defaultServerConfig() serverConfig {
	return serverConfig{
		Addr:        ":" + getEnv("PORT", "8080"),
		Upstream:    getEnv("UPSTREAM_URL", ""),
		UserAgent:   getEnv("USER_AGENT", "listing-server/"+version),
		Timeout:     getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		Store:       getEnv("STORE", storeNone),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Table:       getEnv("STORE_TABLE", "listing_items"),
		Namespace:   getEnv("STORE_NAMESPACE", "server"),
		TTL:         getEnvDuration("STORE_TTL", 0),
		Compress:    getEnv("STORE_COMPRESS", "false") == "true",
		Name:        getEnv("LISTING_NAME", "items"),
		FirstPage:   getEnvInt("FIRST_PAGE", 1),
		PageSize:    getEnvInt("PAGE_SIZE", 20),
		Prefetch:    getEnvInt("PREFETCH_DISTANCE", 0),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Pretty:      getEnv("LOG_PRETTY", "false") == "true",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return d
}
