package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the process configuration. Values come from the environment,
// then .env, then the YAML file named by CONFIG_FILE, then built-in defaults.
type Config struct {
	App     App     `yaml:"app"`
	DB      DB      `yaml:"db"`
	Auth    Auth    `yaml:"auth"`
	Events  Events  `yaml:"events"`
	Tracing Tracing `yaml:"tracing"`
}

type App struct {
	Env     string `yaml:"env"`
	Port    string `yaml:"port"`
	Source  string `yaml:"source"`
	LogMode string `yaml:"log_mode"`
}

type DB struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"sslmode"`
	LogLevel        string        `yaml:"log_level"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	TxTimeout       time.Duration `yaml:"tx_timeout"`
}

// DSN is the key/value connection string understood by the postgres driver.
func (d DB) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// Events selects the bus the emitter publishes to: kafka, redis, memory or none.
type Events struct {
	Driver            string        `yaml:"driver"`
	KafkaBrokers      []string      `yaml:"kafka_brokers"`
	RedisAddr         string        `yaml:"redis_addr"`
	RedisStreamMaxLen int64         `yaml:"redis_stream_max_len"`
	MemoryLimit       int           `yaml:"memory_limit"`
	PublishTimeout    time.Duration `yaml:"publish_timeout"`
}

type Tracing struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

func defaults() Config {
	return Config{
		App: App{
			Env:     "development",
			Port:    "8080",
			Source:  "post-service",
			LogMode: "development",
		},
		DB: DB{
			Host:            "localhost",
			Port:            "5432",
			SSLMode:         "disable",
			LogLevel:        "warn",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
			TxTimeout:       5 * time.Second,
		},
		Events: Events{
			Driver:            "kafka",
			KafkaBrokers:      []string{"kafka:9092"},
			RedisStreamMaxLen: 100000,
			MemoryLimit:       1000,
			PublishTimeout:    5 * time.Second,
		},
		Tracing: Tracing{
			SampleRatio: 0.1,
		},
	}
}

func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.App.Env = envString("APP_ENV", cfg.App.Env)
	cfg.App.Port = envString("PORT", cfg.App.Port)
	cfg.App.Source = envString("SOURCE", cfg.App.Source)
	cfg.App.LogMode = envString("LOG_MODE", cfg.App.LogMode)

	cfg.DB.Host = envString("DB_HOST", cfg.DB.Host)
	cfg.DB.Port = envString("DB_PORT", cfg.DB.Port)
	cfg.DB.User = envString("DB_USER", cfg.DB.User)
	cfg.DB.Password = envString("DB_PASSWORD", cfg.DB.Password)
	cfg.DB.Name = envString("DB_NAME", cfg.DB.Name)
	cfg.DB.SSLMode = envString("DB_SSLMODE", cfg.DB.SSLMode)
	cfg.DB.LogLevel = envString("DB_LOG_LEVEL", cfg.DB.LogLevel)
	cfg.DB.MaxIdleConns = envInt("DB_MAX_IDLE_CONNS", cfg.DB.MaxIdleConns)
	cfg.DB.MaxOpenConns = envInt("DB_MAX_OPEN_CONNS", cfg.DB.MaxOpenConns)
	cfg.DB.ConnMaxLifetime = envDuration("DB_CONN_MAX_LIFETIME", cfg.DB.ConnMaxLifetime)
	cfg.DB.TxTimeout = envDuration("DB_TX_TIMEOUT", cfg.DB.TxTimeout)

	cfg.Auth.JWTSecret = envString("JWT_SECRET", cfg.Auth.JWTSecret)

	cfg.Events.Driver = strings.ToLower(envString("EVENTS_DRIVER", cfg.Events.Driver))
	cfg.Events.KafkaBrokers = envList("KAFKA_BROKERS", cfg.Events.KafkaBrokers)
	cfg.Events.RedisAddr = envString("REDIS_ADDR", cfg.Events.RedisAddr)
	cfg.Events.RedisStreamMaxLen = int64(envInt("REDIS_STREAM_MAX_LEN", int(cfg.Events.RedisStreamMaxLen)))
	cfg.Events.MemoryLimit = envInt("EVENTS_MEMORY_LIMIT", cfg.Events.MemoryLimit)
	cfg.Events.PublishTimeout = envDuration("EVENTS_PUBLISH_TIMEOUT", cfg.Events.PublishTimeout)

	cfg.Tracing.Enabled = envBool("OTEL_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Endpoint = envString("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.Insecure = envBool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Tracing.Insecure)
	cfg.Tracing.SampleRatio = envFloat("OTEL_SAMPLER_RATIO", cfg.Tracing.SampleRatio)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Events.Driver {
	case "kafka":
		if len(c.Events.KafkaBrokers) == 0 {
			return errors.New("config: KAFKA_BROKERS required for kafka driver")
		}
	case "redis":
		if c.Events.RedisAddr == "" {
			return errors.New("config: REDIS_ADDR required for redis driver")
		}
	case "memory":
		if c.Events.MemoryLimit <= 0 {
			return errors.New("config: EVENTS_MEMORY_LIMIT must be positive for memory driver")
		}
	case "none":
	default:
		return fmt.Errorf("config: unknown events driver %q", c.Events.Driver)
	}
	if c.DB.TxTimeout <= 0 {
		return errors.New("config: DB_TX_TIMEOUT must be positive")
	}
	return nil
}

func envString(name, fallback string) string {
	if raw := strings.TrimSpace(os.Getenv(name)); raw != "" {
		return raw
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envList(name string, fallback []string) []string {
	var out []string
	for _, value := range strings.Split(os.Getenv(name), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, value)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
