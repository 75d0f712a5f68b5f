// Package config provides configuration management for the notify server.
// It loads settings from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the notify server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Site     SiteConfig
	Mail     MailConfig
	Search   SearchConfig
	Digest   DigestConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string
	Port int
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver   string // mysql, postgres, sqlite3
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Prefix   string // Table prefix (default: "notify_")
}

// SiteConfig describes the public site linked from emails.
type SiteConfig struct {
	Name    string
	BaseURL string
}

// MailConfig selects and configures the email transport.
type MailConfig struct {
	Provider     string // smtp, brevo, mock
	FromAddr     string
	FromName     string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	BrevoAPIKey  string
}

// SearchConfig holds the search index settings. An empty URL leaves bill
// search subscriptions without results.
type SearchConfig struct {
	URL               string
	Rows              int
	RequestsPerSecond float64
}

// DigestConfig holds scheduling and delivery settings.
type DigestConfig struct {
	Schedule       time.Duration // interval between digest runs; 0 disables the scheduler
	Window         time.Duration // lookback for first-time subscriptions
	Concurrency    int           // users assembled in parallel
	BatchSize      int           // worker batch size
	WorkerInterval time.Duration // worker tick
	JobRetention   int           // days to keep delivered jobs
}

// Load loads configuration from environment variables.
// Follows 12-factor app principles - configuration via environment.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "notify"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "civic"),
			Prefix:   getEnv("DB_PREFIX", "notify_"),
		},
		Site: SiteConfig{
			Name:    getEnv("SITE_NAME", "Councilmatic"),
			BaseURL: getEnv("SITE_URL", "http://localhost:8000"),
		},
		Mail: MailConfig{
			Provider:     strings.ToLower(getEnv("MAIL_PROVIDER", "smtp")),
			FromAddr:     getEnv("MAIL_FROM", ""),
			FromName:     getEnv("MAIL_FROM_NAME", ""),
			SMTPHost:     getEnv("SMTP_HOST", "localhost"),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			BrevoAPIKey:  getEnv("BREVO_API_KEY", ""),
		},
		Search: SearchConfig{
			URL:               getEnv("SEARCH_URL", ""),
			Rows:              getEnvInt("SEARCH_ROWS", 500),
			RequestsPerSecond: getEnvFloat("SEARCH_RPS", 5),
		},
		Digest: DigestConfig{
			Schedule:       getEnvDuration("DIGEST_SCHEDULE", 15*time.Minute),
			Window:         getEnvDuration("DIGEST_WINDOW", 15*time.Minute),
			Concurrency:    getEnvInt("DIGEST_CONCURRENCY", 1),
			BatchSize:      getEnvInt("DIGEST_BATCH_SIZE", 100),
			WorkerInterval: getEnvDuration("DIGEST_WORKER_INTERVAL", 30*time.Second),
			JobRetention:   getEnvInt("DIGEST_JOB_RETENTION_DAYS", 7),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	if c.Database.Driver != "sqlite3" && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD environment variable is required")
	}
	if c.Mail.FromAddr == "" && c.Mail.Provider != "mock" {
		return fmt.Errorf("MAIL_FROM environment variable is required")
	}
	switch c.Mail.Provider {
	case "smtp", "mock":
	case "brevo":
		if c.Mail.BrevoAPIKey == "" {
			return fmt.Errorf("BREVO_API_KEY is required for the brevo provider")
		}
	default:
		return fmt.Errorf("unknown MAIL_PROVIDER %q (want smtp, brevo or mock)", c.Mail.Provider)
	}
	if c.Digest.Concurrency < 1 {
		return fmt.Errorf("DIGEST_CONCURRENCY must be >= 1, got %d", c.Digest.Concurrency)
	}
	return nil
}

// GetDSN returns the database connection string based on driver.
func (c *DatabaseConfig) GetDSN() string {
	switch strings.ToLower(c.Driver) {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.User, c.Password, c.Host, c.Port, c.Database)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.User, c.Password, c.Database)
	case "sqlite3":
		return c.Database // SQLite uses file path as DSN
	default:
		return ""
	}
}

// getEnv retrieves environment variable or returns default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves environment variable as integer or returns default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("15m") or a bare number of minutes.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}
	return defaultValue
}
