package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser  string
	DBPass  string
	DBHost  string
	DBPort  string
	DBName  string
	SSLMode string

	RedisHost string
	RedisPort string

	NatsHost string
	NatsPort string

	// AlertWebhookURL is optional; when empty, flagged transactions are
	// persisted but no alert is delivered.
	AlertWebhookURL string

	// FraudQueueGroup names the NATS queue group the fraud workers join.
	FraudQueueGroup string
}

// New loads and validates configuration from environment variables.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:          os.Getenv("PESACORE_POSTGRES_USER"),
		DBPass:          os.Getenv("PESACORE_POSTGRES_PASSWORD"),
		DBHost:          os.Getenv("PESACORE_POSTGRES_HOST"),
		DBPort:          os.Getenv("PESACORE_POSTGRES_PORT"),
		DBName:          os.Getenv("PESACORE_POSTGRES_DB"),
		SSLMode:         os.Getenv("PESACORE_POSTGRES_SSLMODE"),
		RedisHost:       os.Getenv("PESACORE_REDIS_HOST"),
		RedisPort:       os.Getenv("PESACORE_REDIS_PORT"),
		NatsHost:        os.Getenv("PESACORE_NATS_HOST"),
		NatsPort:        os.Getenv("PESACORE_NATS_PORT"),
		AlertWebhookURL: os.Getenv("PESACORE_ALERT_WEBHOOK_URL"),
		FraudQueueGroup: os.Getenv("PESACORE_FRAUD_QUEUE_GROUP"),
	}

	if cfg.FraudQueueGroup == "" {
		cfg.FraudQueueGroup = "fraud_workers"
	}

	// Required: database
	if cfg.DBUser == "" || cfg.DBHost == "" || cfg.DBName == "" || cfg.SSLMode == "" {
		return nil, fmt.Errorf("missing required env for database: PESACORE_POSTGRES_USER/HOST/DB/SSLMODE")
	}

	// Required: redis
	if cfg.RedisHost == "" || cfg.RedisPort == "" {
		return nil, fmt.Errorf("missing required env for redis: PESACORE_REDIS_HOST/PORT")
	}

	// Required: nats
	if cfg.NatsHost == "" || cfg.NatsPort == "" {
		return nil, fmt.Errorf("missing required env for nats: PESACORE_NATS_HOST/PORT")
	}

	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName, c.SSLMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) NatsAddr() string {
	return fmt.Sprintf("nats://%s:%s", c.NatsHost, c.NatsPort)
}
