package services

import (
	"bufio"
	"os"
	"strings"
	"time"
)

// LoadEnv loads environment variables from a .env file
func LoadEnv(filename string) error {
	// Open the .env file
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	// Read the file line by line
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()

		// Skip empty lines and comments
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}

		// Split on the first equals sign
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue // Skip malformed lines
		}

		// Trim spaces and optional quotes from the value
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Set the environment variable
		os.Setenv(key, value)
	}

	// Check for scanner errors
	if err := scanner.Err(); err != nil {
		return err
	}

	return nil
}

// Config carries all runtime settings, read from the environment.
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string

	SMTP SMTPConfig

	// Scheduler settings. The dedup window is deliberately one hour shorter
	// than the reminder horizon so tick jitter neither double-sends nor
	// silently skips a cycle.
	SchedulerInterval time.Duration
	ReminderHorizon   time.Duration
	DedupWindow       time.Duration
	EmailTimeout      time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// ConfigFromEnv builds a Config from environment variables with defaults.
func ConfigFromEnv() Config {
	return Config{
		Port:      envOr("PORT", "3001"),
		DBPath:    envOr("DB_PATH", "./hive.db"),
		JWTSecret: envOr("JWT_SECRET", "your-default-secret-key-change-in-production"),
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envOr("SMTP_PORT", "587"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		SchedulerInterval: durationOr("SCHEDULER_INTERVAL", 15*time.Minute),
		ReminderHorizon:   durationOr("REMINDER_HORIZON", 24*time.Hour),
		DedupWindow:       durationOr("DEDUP_WINDOW", 23*time.Hour),
		EmailTimeout:      durationOr("EMAIL_TIMEOUT", 10*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
