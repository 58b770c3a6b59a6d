// Package appconfig reads service configuration from the environment.
package appconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// DBConfig holds Postgres connection settings.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the Postgres connection URL.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// Config holds every setting the server binary needs.
type Config struct {
	HTTPAddr  string
	NATSURL   string
	RedisAddr string
	DB        DBConfig

	PayoutWalletAddress string
	PrizeSchedulePath   string
	SettleMaxAttempts   int
	ConfirmTimeout      time.Duration
	SettlePollInterval  time.Duration

	AllowedOrigins []string
}

// NewConfigFromEnv reads configuration from environment variables, with
// local-development defaults.
func NewConfigFromEnv() Config {
	return Config{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		NATSURL:   getEnv("NATS_URL", nats.DefaultURL),
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "waffles"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		PayoutWalletAddress: getEnv("PAYOUT_WALLET_ADDRESS", ""),
		PrizeSchedulePath:   getEnv("PRIZE_SCHEDULE_PATH", ""),
		SettleMaxAttempts:   getEnvInt("SETTLE_MAX_ATTEMPTS", 3),
		ConfirmTimeout:      getEnvDuration("CONFIRM_TIMEOUT", 30*time.Second),
		SettlePollInterval:  getEnvDuration("SETTLE_POLL_INTERVAL", 15*time.Second),
		AllowedOrigins:      strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
