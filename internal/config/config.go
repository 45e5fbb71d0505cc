package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/rebill/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Billing    BillingConfig    `validate:"required"`
	Stripe     StripeConfig
	PubSub     PubSubConfig
	Kafka      KafkaConfig
	Worker     WorkerConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string
	Port                   int
	User                   string
	Password               string
	DBName                 string
	SSLMode                string
	MaxOpenConns           int
	MaxIdleConns           int
	ConnMaxLifetimeMinutes int
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// BillingConfig holds the organization-configurable billing policy.
// The retry schedule and the exhaustion outcome are deliberately explicit
// configuration rather than hardcoded defaults.
type BillingConfig struct {
	// SweepSchedule is a cron spec for the periodic due-item sweep
	SweepSchedule string `validate:"required"`
	// SweepBatchSize bounds how many due rows one sweep page loads
	SweepBatchSize int `validate:"gt=0"`
	// MaxAttempts caps charge attempts per billing run before abandonment
	MaxAttempts int `validate:"gt=0"`
	// RetryBackoffInitial is the base delay before the first retry
	RetryBackoffInitial time.Duration `validate:"gt=0"`
	// RetryBackoffCap bounds the exponential retry delay
	RetryBackoffCap time.Duration `validate:"gt=0"`
	// ExhaustionAction decides past_due vs cancel once attempts are exhausted
	ExhaustionAction types.ExhaustionAction `validate:"required"`
	// PlatformFeePercentage is applied to the post-discount, pre-tax amount
	PlatformFeePercentage float64 `validate:"gte=0"`
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// RequestsPerSecond throttles outbound charge submissions
	RequestsPerSecond float64
	Burst             int
}

// PubSubConfig selects the task queue backend
type PubSubConfig struct {
	// Backend is one of "memory" or "kafka"
	Backend string `validate:"oneof=memory kafka"`
}

type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
}

// WorkerConfig tunes the watermill router's in-flight redelivery policy.
// This is delivery-level retry; the billing-level retry budget lives in
// BillingConfig.
type WorkerConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func NewConfig() (*Configuration, error) {
	// Load .env for local runs, ignore when absent
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/rebill")

	v.SetEnvPrefix("REBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	config := GetDefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.Billing.ExhaustionAction.Validate()
}

// GetDefaultConfig returns a default configuration for local development.
// This is useful for running scripts or other non-web applications.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Postgres: PostgresConfig{
			Host:                   "localhost",
			Port:                   5432,
			User:                   "rebill",
			DBName:                 "rebill",
			SSLMode:                "disable",
			MaxOpenConns:           10,
			MaxIdleConns:           5,
			ConnMaxLifetimeMinutes: 30,
		},
		Billing: BillingConfig{
			SweepSchedule:         "@every 1h",
			SweepBatchSize:        100,
			MaxAttempts:           3,
			RetryBackoffInitial:   time.Hour,
			RetryBackoffCap:       24 * time.Hour,
			ExhaustionAction:      types.ExhaustionActionPastDue,
			PlatformFeePercentage: 0,
		},
		Stripe: StripeConfig{
			RequestsPerSecond: 25,
			Burst:             50,
		},
		PubSub: PubSubConfig{Backend: "memory"},
		Worker: WorkerConfig{
			MaxRetries:      3,
			InitialInterval: time.Second,
			MaxInterval:     time.Minute,
			Multiplier:      2,
			MaxElapsedTime:  5 * time.Minute,
		},
	}
}
