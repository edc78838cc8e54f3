package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	RedisAddr   string

	LookbackHours  int
	MinWaitSamples int
	QueueTimezone  string

	NoShowGrace     time.Duration
	NoShowInterval  time.Duration
	NoShowBatchSize int

	EstimateCacheTTL time.Duration

	RateLimitPerMinute           int
	RateLimitBurst               int
	RestaurantRateLimitPerMinute int
	RestaurantRateLimitBurst     int
}

func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv load: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	timezone := os.Getenv("QUEUE_TIMEZONE")
	if timezone == "" {
		timezone = "UTC"
	}

	return Config{
		Port:                         port,
		DatabaseURL:                  os.Getenv("DB_DSN"),
		RedisAddr:                    redisAddr,
		LookbackHours:                readInt("LOOKBACK_HOURS", 24),
		MinWaitSamples:               readInt("MIN_WAIT_SAMPLES", 5),
		QueueTimezone:                timezone,
		NoShowGrace:                  readDurationSeconds("NO_SHOW_GRACE_SECONDS", 600),
		NoShowInterval:               readDurationSeconds("NO_SHOW_SCAN_INTERVAL_SECONDS", 30),
		NoShowBatchSize:              readInt("NO_SHOW_BATCH_SIZE", 100),
		EstimateCacheTTL:             readDurationSeconds("ESTIMATE_CACHE_TTL_SECONDS", 30),
		RateLimitPerMinute:           readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:               readInt("RATE_LIMIT_BURST", 30),
		RestaurantRateLimitPerMinute: readInt("RESTAURANT_RATE_LIMIT_PER_MIN", 600),
		RestaurantRateLimitBurst:     readInt("RESTAURANT_RATE_LIMIT_BURST", 120),
	}
}

// Location resolves QUEUE_TIMEZONE; day boundaries for wait estimation
// follow the restaurant's operating timezone, not the server's.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.QueueTimezone)
	if err != nil {
		log.Printf("invalid QUEUE_TIMEZONE %q, falling back to UTC: %v", c.QueueTimezone, err)
		return time.UTC
	}
	return loc
}

func (c Config) Lookback() time.Duration {
	hours := c.LookbackHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
