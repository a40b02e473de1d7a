package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Logging   LoggingConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Feed      FeedConfig
	Chat      ChatConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	MetricsPort     int
	HealthPort      int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	// NodeID seeds the snowflake generator; unique per running instance.
	NodeID int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

type LoggingConfig struct {
	Level      string
	Format     string
	Output     string
	EnableFile bool
	FilePath   string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

type RateLimitConfig struct {
	Enabled        bool
	PostsPerMinute int
	Burst          int
}

type FeedMode string

const (
	FeedModePoll FeedMode = "poll"
	FeedModePush FeedMode = "push"
)

type FeedConfig struct {
	Mode         FeedMode
	PollInterval time.Duration
	Channel      string
}

type StoreDriver string

const (
	StoreMemory   StoreDriver = "memory"
	StorePostgres StoreDriver = "postgres"
)

type ChatConfig struct {
	Store            StoreDriver
	Timezone         string
	MaxBodyLength    int
	DefaultBanReason string
	BanCacheTTL      time.Duration
}

// Location resolves the configured timezone used for day labels.
func (c ChatConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			MetricsPort:     getEnvInt("METRICS_PORT", 9100),
			HealthPort:      getEnvInt("HEALTH_PORT", 8081),
			ReadTimeout:     getEnvDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
			RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
			NodeID:          getEnvInt("NODE_ID", 1),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "huddle"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConns:        getEnvInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),
			JWTIssuer: getEnv("JWT_ISSUER", "huddle"),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			EnableFile: getEnvBool("LOG_ENABLE_FILE", false),
			FilePath:   getEnv("LOG_FILE_PATH", "/var/log/huddle/app.log"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", false),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			PostsPerMinute: getEnvInt("RATE_LIMIT_POSTS_PER_MINUTE", 30),
			Burst:          getEnvInt("RATE_LIMIT_BURST", 5),
		},
		Feed: FeedConfig{
			Mode:         FeedMode(getEnv("FEED_MODE", string(FeedModePoll))),
			PollInterval: getEnvDuration("FEED_POLL_INTERVAL", 3*time.Second),
			Channel:      getEnv("FEED_CHANNEL", "huddle:events"),
		},
		Chat: ChatConfig{
			Store:            StoreDriver(getEnv("CHAT_STORE", string(StorePostgres))),
			Timezone:         getEnv("CHAT_TIMEZONE", "Local"),
			MaxBodyLength:    getEnvInt("CHAT_MAX_BODY_LENGTH", 4000),
			DefaultBanReason: getEnv("CHAT_DEFAULT_BAN_REASON", "no reason provided"),
			BanCacheTTL:      getEnvDuration("CHAT_BAN_CACHE_TTL", 30*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.NodeID < 0 || c.Server.NodeID > 1023 {
		return fmt.Errorf("NODE_ID must be between 0 and 1023")
	}
	switch c.Feed.Mode {
	case FeedModePoll, FeedModePush:
	default:
		return fmt.Errorf("unknown FEED_MODE %q", c.Feed.Mode)
	}
	if c.Feed.Mode == FeedModePoll && c.Feed.PollInterval <= 0 {
		return fmt.Errorf("FEED_POLL_INTERVAL must be positive")
	}
	switch c.Chat.Store {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("unknown CHAT_STORE %q", c.Chat.Store)
	}
	if c.Chat.MaxBodyLength <= 0 {
		return fmt.Errorf("CHAT_MAX_BODY_LENGTH must be positive")
	}
	if _, err := c.Chat.Location(); err != nil {
		return fmt.Errorf("CHAT_TIMEZONE: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}
