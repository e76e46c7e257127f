package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// Collector
	CollectorTimeout = 3 * time.Second

	// Sync
	MaxSyncEvents     = 100
	DefaultSyncEvents = 30

	// Rooms
	MinRoomMembers = 2

	// WebSocket
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 64 * 1024
)

// MinSyncDate is the since-time used when a sync filter carries none.
var MinSyncDate = time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)

// Config is the process configuration read from the environment.
type Config struct {
	HTTPAddr string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	TokenTTL  time.Duration

	// ClusterBroadcast routes user deliveries through Redis pub/sub so that
	// connections held by other nodes receive them too.
	ClusterBroadcast bool
}

// Load reads the configuration. Missing or invalid values fall back to
// defaults suitable for the docker-compose setup.
func Load() Config {
	return Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DatabaseDSN:      databaseDSN(),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6380"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		JWTSecret:        getEnv("JWT_SECRET", "sputnik-dev-secret"),
		TokenTTL:         getEnvDuration("TOKEN_TTL", 24*time.Hour),
		ClusterBroadcast: getEnvBool("CLUSTER_BROADCAST", false),
	}
}

func databaseDSN() string {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_USER", "user"),
		getEnv("DB_PASSWORD", "password"),
		getEnv("DB_NAME", "sputnikdb"),
		getEnv("DB_PORT", "5432"),
	)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARNING: invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		log.Printf("WARNING: invalid %s=%q, using %t", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARNING: invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
