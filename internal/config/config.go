package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds Postgres connection configuration
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	URL      string
	Password string
}

// WebhookConfig holds inbound webhook authentication configuration
type WebhookConfig struct {
	Secret     string
	AllowedIPs []string
}

// ProviderConfig holds one upstream data provider's credentials and
// rate budget. A zero MinuteLimit or DayLimit means unlimited.
type ProviderConfig struct {
	APIKey      string
	MinuteLimit int
	DayLimit    int
}

// SchedulerConfig controls background refresh cadence
type SchedulerConfig struct {
	Enabled          bool
	Sports           []string
	TeamsInterval    time.Duration
	ScheduleInterval time.Duration
	OddsInterval     time.Duration
	CleanupInterval  time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level     string
	Format    string
	File      string
	MaxSizeMB int
}

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Webhook     WebhookConfig
	OddsAPI     ProviderConfig
	BallDontLie ProviderConfig
	ESPN        ProviderConfig
	Scheduler   SchedulerConfig
	Log         LogConfig
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":" + getEnv("PORT", "8080"),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "postgres://localhost:5432/apexbets?sslmode=disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Webhook: WebhookConfig{
			Secret:     getEnv("WEBHOOK_SECRET", ""),
			AllowedIPs: getEnvList("WEBHOOK_ALLOWED_IPS", nil),
		},
		OddsAPI: ProviderConfig{
			APIKey:      getEnv("ODDS_API_KEY", ""),
			MinuteLimit: getEnvInt("ODDS_API_PER_MINUTE", 30),
			DayLimit:    getEnvInt("ODDS_API_PER_DAY", 500),
		},
		BallDontLie: ProviderConfig{
			APIKey:      getEnv("BALLDONTLIE_API_KEY", ""),
			MinuteLimit: getEnvInt("BALLDONTLIE_PER_MINUTE", 60),
			DayLimit:    getEnvInt("BALLDONTLIE_PER_DAY", 0),
		},
		ESPN: ProviderConfig{
			MinuteLimit: getEnvInt("ESPN_PER_MINUTE", 120),
			DayLimit:    getEnvInt("ESPN_PER_DAY", 0),
		},
		Scheduler: SchedulerConfig{
			Enabled:          getEnvBool("SCHEDULER_ENABLED", true),
			Sports:           getEnvList("SCHEDULER_SPORTS", []string{"basketball"}),
			TeamsInterval:    getEnvDuration("TEAMS_REFRESH_INTERVAL", 24*time.Hour),
			ScheduleInterval: getEnvDuration("SCHEDULE_REFRESH_INTERVAL", time.Hour),
			OddsInterval:     getEnvDuration("ODDS_REFRESH_INTERVAL", 15*time.Minute),
			CleanupInterval:  getEnvDuration("CLEANUP_INTERVAL", time.Hour),
		},
		Log: LogConfig{
			Level:     getEnv("LOG_LEVEL", "info"),
			Format:    getEnv("LOG_FORMAT", "json"),
			File:      getEnv("LOG_FILE", ""),
			MaxSizeMB: getEnvInt("LOG_MAX_SIZE_MB", 100),
		},
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList gets a comma-separated environment variable as a slice,
// or returns a default value
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
