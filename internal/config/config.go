// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs to run.
type Config struct {
	Addr   string
	DBPath string

	// LogPath mirrors logs to a file when set. AdminUser is the account
	// created on first run.
	LogPath   string
	AdminUser string

	// Fees in cents; the base fee includes one shirt.
	BaseFeeCents    int64
	ExtraShirtCents int64

	// How long a pending registration holds its reservation, and how often
	// the sweeper looks for expired ones.
	PendingTTL    time.Duration
	SweepInterval time.Duration

	// PIX gateway.
	PixBaseURL       string
	PixToken         string
	PixWebhookSecret string

	// CEP lookup service and its cache TTL.
	CEPBaseURL  string
	CEPCacheTTL time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() (*Config, error) {
	// Ignore a missing .env; it is a development convenience.
	_ = godotenv.Load()

	cfg := &Config{
		Addr:             getEnv("MOTOFEST_ADDR", ":8080"),
		DBPath:           getEnv("MOTOFEST_DB", "motofest.sqlite3"),
		LogPath:          os.Getenv("MOTOFEST_LOG"),
		AdminUser:        getEnv("MOTOFEST_ADMIN_USER", "admin"),
		PixBaseURL:       getEnv("MOTOFEST_PIX_URL", "https://pix.example.com"),
		PixToken:         os.Getenv("MOTOFEST_PIX_TOKEN"),
		PixWebhookSecret: os.Getenv("MOTOFEST_PIX_WEBHOOK_SECRET"),
		CEPBaseURL:       getEnv("MOTOFEST_CEP_URL", "https://viacep.com.br"),
	}

	var err error
	if cfg.BaseFeeCents, err = getEnvInt64("MOTOFEST_BASE_FEE_CENTS", 15000); err != nil {
		return nil, err
	}
	if cfg.ExtraShirtCents, err = getEnvInt64("MOTOFEST_EXTRA_SHIRT_CENTS", 5000); err != nil {
		return nil, err
	}
	if cfg.PendingTTL, err = getEnvDuration("MOTOFEST_PENDING_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getEnvDuration("MOTOFEST_SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.CEPCacheTTL, err = getEnvDuration("MOTOFEST_CEP_CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}
