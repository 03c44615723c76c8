package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	audit "enrollment/pkg/platform/audit"
)

// MinJWTSecretLength matches the HS256 key size.
const MinJWTSecretLength = 32

// Config is the audit service configuration.
type Config struct {
	Addr            string        `env:"AUDIT_SERVICE_ADDR" envDefault:":8083"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	JWT    JWT          `envPrefix:"JWT_"`
	Kafka  Kafka        `envPrefix:"KAFKA_"`
	Topics audit.Topics `envPrefix:"KAFKA_TOPIC_"`
}

// JWT holds the shared token secret. Every service verifying tokens must be
// configured with the same value.
type JWT struct {
	Secret string        `env:"SECRET,required"`
	TTL    time.Duration `env:"TTL" envDefault:"24h"`
}

// Kafka holds bus connection and delivery settings.
type Kafka struct {
	Brokers           []string      `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	ClientID          string        `env:"CLIENT_ID" envDefault:"audit-service"`
	GroupID           string        `env:"GROUP_ID" envDefault:"audit-service-group"`
	ProvisionTopics   bool          `env:"PROVISION_TOPICS" envDefault:"true"`
	Partitions        int32         `env:"PARTITIONS" envDefault:"3"`
	ReplicationFactor int16         `env:"REPLICATION_FACTOR" envDefault:"1"`
	SendTimeout       time.Duration `env:"SEND_TIMEOUT" envDefault:"5s"`
	RetryBackoff      time.Duration `env:"RETRY_BACKOFF" envDefault:"1s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the audit service configuration.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if len(c.JWT.Secret) < MinJWTSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength))
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required"))
	}
	if c.Kafka.GroupID == "" {
		errs = append(errs, errors.New("KAFKA_GROUP_ID is required"))
	}
	if c.Kafka.Partitions <= 0 || c.Kafka.ReplicationFactor <= 0 {
		errs = append(errs, errors.New("KAFKA_PARTITIONS and KAFKA_REPLICATION_FACTOR must be positive"))
	}
	if c.Topics.Audit == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC_AUDIT is required"))
	}
	return errors.Join(errs...)
}

// Publisher is the configuration of a process that only emits audit events.
type Publisher struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	Kafka  Kafka        `envPrefix:"KAFKA_"`
	Topics audit.Topics `envPrefix:"KAFKA_TOPIC_"`
}

// LoadPublisher parses the publisher configuration.
func LoadPublisher() (Publisher, error) {
	var cfg Publisher
	if err := ParseEnv(&cfg); err != nil {
		return Publisher{}, err
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return Publisher{}, errors.New("KAFKA_BROKERS is required")
	}
	return cfg, nil
}
