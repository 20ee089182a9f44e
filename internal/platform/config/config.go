package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// DevStampHashKey is used when STAMP_HASH_KEY is unset outside production.
const DevStampHashKey = "dev-stamp-key-change-in-production"

// Server captures process level configuration.
type Server struct {
	Addr           string
	Environment    string
	LogLevel       string
	RequestTimeout time.Duration

	Credential CredentialConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
}

// CredentialConfig configures the verification providers and stamp issuance.
type CredentialConfig struct {
	WorldIDEndpoint     string // empty keeps the provider default
	ProviderHTTPTimeout time.Duration
	StampHashKey        string
}

// DatabaseConfig enables the Postgres stamp store when URL is set.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig enables Redis claim storage when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables event publishing when Brokers is set.
type KafkaConfig struct {
	Brokers string
	Topic   string
}

// IsProduction reports whether the process runs with production safeguards.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// Validate rejects configurations that are unsafe to run.
func (s Server) Validate() error {
	if s.Credential.StampHashKey == "" {
		return errors.New("STAMP_HASH_KEY is required")
	}
	if s.IsProduction() && s.Credential.StampHashKey == DevStampHashKey {
		return errors.New("STAMP_HASH_KEY must be set in production")
	}
	if s.Credential.ProviderHTTPTimeout <= 0 {
		return errors.New("PROVIDER_HTTP_TIMEOUT must be positive")
	}
	return nil
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	stampKey := os.Getenv("STAMP_HASH_KEY")
	env := envString("ENVIRONMENT", "development")
	if stampKey == "" && env != "production" {
		stampKey = DevStampHashKey
	}

	return Server{
		Addr:           envString("IAM_ADDR", ":8080"),
		Environment:    env,
		LogLevel:       envString("LOG_LEVEL", "info"),
		RequestTimeout: envDuration("REQUEST_TIMEOUT", 30*time.Second),
		Credential: CredentialConfig{
			WorldIDEndpoint:     os.Getenv("WORLDID_VERIFY_ENDPOINT"),
			ProviderHTTPTimeout: envDuration("PROVIDER_HTTP_TIMEOUT", 10*time.Second),
			StampHashKey:        stampKey,
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: os.Getenv("KAFKA_BROKERS"),
			Topic:   envString("KAFKA_TOPIC", "credential-events"),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envDuration ignores unparseable values.
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
