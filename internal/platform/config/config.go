package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures everything the server needs from the environment.
// Parsed once in main; packages receive the slices they care about.
type Config struct {
	Addr       string `env:"COURIER_ADDR" envDefault:":8080"`
	AdminToken string `env:"COURIER_ADMIN_TOKEN"`

	DatabaseURL string `env:"COURIER_DATABASE_URL"`

	// JobTokenSecret signs and verifies delivery-job tokens. Required for
	// the pipeline; the trigger endpoint rejects jobs without it.
	JobTokenSecret string `env:"COURIER_JOB_TOKEN_SECRET"`

	Redis     RedisConfig
	Kafka     KafkaConfig
	SMTP      SMTPConfig
	Secure    SecureConfig
	Directory DirectoryConfig
}

// RedisConfig controls the optional redis-backed translation cache.
// An empty URL disables redis; callers fall back to the in-memory cache.
type RedisConfig struct {
	URL          string        `env:"COURIER_REDIS_URL"`
	PoolSize     int           `env:"COURIER_REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"COURIER_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"COURIER_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"COURIER_REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"COURIER_REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig controls the consumer for the scheduler's due-job topic.
// Empty brokers disable the worker; jobs then arrive only via HTTP.
type KafkaConfig struct {
	Brokers []string `env:"COURIER_KAFKA_BROKERS"`
	Topic   string   `env:"COURIER_KAFKA_JOB_TOPIC" envDefault:"courier.delivery-jobs"`
	Group   string   `env:"COURIER_KAFKA_GROUP" envDefault:"courier"`
}

// SMTPConfig feeds the email transport. The transport builds its connection
// settings lazily, so a partially configured SMTP section surfaces as a
// precondition failure per message rather than a startup error.
type SMTPConfig struct {
	Host     string `env:"COURIER_SMTP_HOST"`
	Port     int    `env:"COURIER_SMTP_PORT" envDefault:"587"`
	Username string `env:"COURIER_SMTP_USERNAME"`
	Password string `env:"COURIER_SMTP_PASSWORD"`
	From     string `env:"COURIER_SMTP_FROM"`
}

// SecureConfig holds the view-message URL template used when confidential
// content is withheld. Placeholders: {language}, {messageId}.
type SecureConfig struct {
	ViewMessageURL string `env:"COURIER_VIEW_MESSAGE_URL"`
}

// DirectoryConfig points at the identity/profile collaborator.
type DirectoryConfig struct {
	BaseURL        string        `env:"COURIER_DIRECTORY_URL"`
	Token          string        `env:"COURIER_DIRECTORY_TOKEN"`
	TranslationTTL time.Duration `env:"COURIER_TRANSLATION_CACHE_TTL" envDefault:"5m"`
}

// FromEnv parses the full configuration from environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
