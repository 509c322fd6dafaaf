package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime parameter of the application.
type Config struct {
	DatabaseURL  string
	ServerPort   int
	JWTSecretKey string
	JWTTokenTTL  time.Duration

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	ExpoPushURL string

	// Enforcement sweep for waitlist payment deadlines. Off by default;
	// deadlines are still recorded and organizers chase payment manually
	// until the sweep is turned on.
	WaitlistExpiryEnabled bool
	PaymentWindow         time.Duration

	WaitlistSweepInterval       time.Duration
	EventReminderInterval       time.Duration
	EventReminderWindow         time.Duration
	NotificationRetention       time.Duration
	NotificationCleanupInterval time.Duration
}

// Load reads configuration from environment variables, optionally seeded
// from a .env file for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		JWTSecretKey: os.Getenv("JWT_SECRET_KEY"),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),

		ExpoPushURL: getEnvOrDefault("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := strconv.Atoi(getEnvOrDefault("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	if cfg.JWTTokenTTL, err = getEnvDuration("JWT_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	expiry := getEnvOrDefault("WAITLIST_EXPIRY_ENABLED", "false")
	if cfg.WaitlistExpiryEnabled, err = strconv.ParseBool(expiry); err != nil {
		return nil, fmt.Errorf("invalid WAITLIST_EXPIRY_ENABLED environment variable: %w", err)
	}
	if cfg.PaymentWindow, err = getEnvDuration("PAYMENT_WINDOW", 24*time.Hour); err != nil {
		return nil, err
	}

	if cfg.WaitlistSweepInterval, err = getEnvDuration("WAITLIST_SWEEP_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.EventReminderInterval, err = getEnvDuration("EVENT_REMINDER_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.EventReminderWindow, err = getEnvDuration("EVENT_REMINDER_WINDOW", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.NotificationRetention, err = getEnvDuration("NOTIFICATION_RETENTION", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.NotificationCleanupInterval, err = getEnvDuration("NOTIFICATION_CLEANUP_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

// R2Configured reports whether every credential needed for logo storage is
// present; the server refuses to start without them since logo uploads are
// part of the API surface.
func (c *Config) R2Configured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %s", key, d)
	}
	return d, nil
}
