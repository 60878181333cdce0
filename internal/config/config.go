package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Storage
	StorageBackend string
	StorageTimeout time.Duration
	DatabaseURL    string
	RedisURL       string

	// Rooms
	RoomIdleTimeout time.Duration
	RoomInboxSize   int

	// WebSocket
	WSSendBuffer   int
	WSRateLimit    int
	AllowedOrigins []string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:            getEnvOrDefault("PORT", "8080"),
		Env:             getEnvOrDefault("ENV", "development"),
		StorageBackend:  strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", StorageMemory)),
		StorageTimeout:  getEnvAsDurationOrDefault("STORAGE_TIMEOUT", 5*time.Second),
		RoomIdleTimeout: getEnvAsDurationOrDefault("ROOM_IDLE_TIMEOUT", 10*time.Minute),
		RoomInboxSize:   getEnvAsIntOrDefault("ROOM_INBOX_SIZE", 256),
		WSSendBuffer:    getEnvAsIntOrDefault("WS_SEND_BUFFER", 128),
		WSRateLimit:     getEnvAsIntOrDefault("WS_RATE_LIMIT", 60),
		AllowedOrigins:  splitCSV(getEnvOrDefault("ALLOWED_ORIGINS", "*")),
	}

	switch cfg.StorageBackend {
	case StorageMemory:
	case StorageRedis:
		cfg.RedisURL = mustGetEnv("REDIS_URL")
	case StoragePostgres:
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
	default:
		panic(fmt.Sprintf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend))
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvAsDurationOrDefault accepts Go duration syntax ("90s", "10m"). "0" is a valid value.
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}

func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
