package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	PersistAsync = "async"
	PersistSync  = "sync"
)

// Config holds server settings. Values come from an optional YAML file
// (CONFIG_FILE) and are overridden by environment variables.
type Config struct {
	Port            string        `yaml:"port"`
	StoreDriver     string        `yaml:"store_driver"`
	MongoURI        string        `yaml:"mongo_uri"`
	MongoDBName     string        `yaml:"mongo_db_name"`
	MongoCollection string        `yaml:"mongo_collection"`
	DatabaseURL     string        `yaml:"database_url"`
	RedisAddr       string        `yaml:"redis_addr"`
	RedisChannel    string        `yaml:"redis_channel"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	PersistMode     string        `yaml:"persist_mode"`
	StoreTimeout    time.Duration `yaml:"store_timeout"`
	PingInterval    time.Duration `yaml:"ws_ping_interval"`
	PongWait        time.Duration `yaml:"ws_pong_wait"`
	WriteTimeout    time.Duration `yaml:"ws_write_timeout"`
	StatsSchedule   string        `yaml:"stats_schedule"`
	LogLevel        string        `yaml:"log_level"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Port:            "5000",
		StoreDriver:     DriverMongo,
		MongoDBName:     "codeeditor",
		MongoCollection: "codes",
		RedisChannel:    "code_changes",
		AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5000"},
		PersistMode:     PersistAsync,
		StoreTimeout:    5 * time.Second,
		PingInterval:    25 * time.Second,
		PongWait:        60 * time.Second,
		WriteTimeout:    10 * time.Second,
		StatsSchedule:   "@every 1m",
		LogLevel:        "info",
	}
}

// Load reads .env (if present), then CONFIG_FILE (if set), then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.StoreDriver = getEnvOrDefault("STORE_DRIVER", cfg.StoreDriver)
	cfg.MongoURI = getEnvOrDefault("MONGO_URI", cfg.MongoURI)
	cfg.MongoDBName = getEnvOrDefault("MONGO_DB_NAME", cfg.MongoDBName)
	cfg.MongoCollection = getEnvOrDefault("MONGO_COLLECTION", cfg.MongoCollection)
	cfg.DatabaseURL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisChannel = getEnvOrDefault("REDIS_CHANNEL", cfg.RedisChannel)
	cfg.PersistMode = getEnvOrDefault("PERSIST_MODE", cfg.PersistMode)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	if v, ok := os.LookupEnv("STATS_SCHEDULE"); ok {
		cfg.StatsSchedule = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"STORE_TIMEOUT", &cfg.StoreTimeout},
		{"WS_PING_INTERVAL", &cfg.PingInterval},
		{"WS_PONG_WAIT", &cfg.PongWait},
		{"WS_WRITE_TIMEOUT", &cfg.WriteTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.key, v, err)
		}
		*d.dst = parsed
	}
	return nil
}

func validateConfig(cfg *Config) error {
	switch cfg.StoreDriver {
	case DriverMongo:
		if cfg.MongoURI == "" {
			return errors.New("MONGO_URI is empty")
		}
	case DriverPostgres, DriverSQLite:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is empty for store driver " + cfg.StoreDriver)
		}
	default:
		return errors.New("unsupported store driver: " + cfg.StoreDriver + ". Currently supported: mongo, postgres, sqlite")
	}
	if cfg.PersistMode != PersistAsync && cfg.PersistMode != PersistSync {
		return errors.New("unsupported persist mode: " + cfg.PersistMode)
	}
	if cfg.PingInterval <= 0 || cfg.PongWait <= cfg.PingInterval {
		return errors.New("ws pong wait must be longer than the ping interval")
	}
	if cfg.StoreTimeout <= 0 || cfg.WriteTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
