package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bellasuite/notify/internal/domain"
)

// Config holds all configuration for the notification service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	SES        SESConfig        `yaml:"ses"`
	SMS        SMSConfig        `yaml:"sms"`
	Queue      QueueConfig      `yaml:"queue"`
	Retry      RetryConfig      `yaml:"retry"`
	Budget     BudgetConfig     `yaml:"budget"`
	QuietHours QuietHoursConfig `yaml:"quiet_hours"`
	Dedupe     DedupeConfig     `yaml:"dedupe"`
	Retention  RetentionConfig  `yaml:"retention"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds Redis settings for rate limiting and locks.
type RedisConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// SESConfig holds AWS SES credentials for the email sender.
type SESConfig struct {
	Region         string `yaml:"region"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	FromName       string `yaml:"from_name"`
	FromEmail      string `yaml:"from_email"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration.
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SMSConfig holds the SMS carrier API settings.
type SMSConfig struct {
	BaseURL        string `yaml:"base_url"`
	AccountID      string `yaml:"account_id"`
	AuthToken      string `yaml:"auth_token"`
	FromNumber     string `yaml:"from_number"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration.
func (c SMSConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// QueueConfig holds delivery worker pool settings.
type QueueConfig struct {
	Workers             int `yaml:"workers"`
	BatchSize           int `yaml:"batch_size"`
	PollIntervalMS      int `yaml:"poll_interval_ms"`
	SendTimeoutSeconds  int `yaml:"send_timeout_seconds"`
	StaleClaimMinutes   int `yaml:"stale_claim_minutes"`
	RecoveryIntervalMin int `yaml:"recovery_interval_minutes"`
}

// PollInterval returns the queue polling interval.
func (c QueueConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// SendTimeout returns the bounded per-send timeout.
func (c QueueConfig) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

// StaleClaimAge returns how long a claim may be held before a recovery
// pass considers the worker crashed.
func (c QueueConfig) StaleClaimAge() time.Duration {
	return time.Duration(c.StaleClaimMinutes) * time.Minute
}

// RetryConfig holds the global fallback retry policy. Channel- and
// provider-scoped overrides live in the database.
type RetryConfig struct {
	MaxAttempts         int     `yaml:"max_attempts"`
	InitialDelaySeconds int     `yaml:"initial_delay_seconds"`
	BackoffMultiplier   float64 `yaml:"backoff_multiplier"`
	MaxDelayMinutes     int     `yaml:"max_delay_minutes"`
}

// Global converts the YAML policy into the domain type.
func (c RetryConfig) Global() domain.RetryConfig {
	return domain.RetryConfig{
		Scope:             domain.RetryScopeGlobal,
		MaxAttempts:       c.MaxAttempts,
		InitialDelay:      time.Duration(c.InitialDelaySeconds) * time.Second,
		BackoffMultiplier: c.BackoffMultiplier,
		MaxDelay:          time.Duration(c.MaxDelayMinutes) * time.Minute,
	}
}

// BudgetConfig holds spend budget defaults and per-scope limits.
type BudgetConfig struct {
	WarningThreshold float64               `yaml:"warning_threshold"`
	CapBehavior      string                `yaml:"cap_behavior"` // "skip" or "delay"
	Limits           []domain.BudgetLimits `yaml:"limits"`
}

// QuietHoursConfig holds the default quiet-hours window and the
// short-window deadline policy for time-sensitive reminders.
type QuietHoursConfig struct {
	Start            string `yaml:"start"`    // "21:00" local
	End              string `yaml:"end"`      // "08:00" local
	Timezone         string `yaml:"timezone"` // IANA name, e.g. "America/New_York"
	ShortWindowHours int    `yaml:"short_window_hours"`
	ShortWindowMode  string `yaml:"short_window_mode"` // "send" or "skip"
}

// DedupeConfig controls the deduplication time bucket.
type DedupeConfig struct {
	WindowHours int `yaml:"window_hours"`
}

// Window returns the dedupe bucket size.
func (c DedupeConfig) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

// RetentionConfig holds cleanup retention windows in days.
type RetentionConfig struct {
	TerminalNotificationDays int `yaml:"terminal_notification_days"`
	ResolvedDeadLetterDays   int `yaml:"resolved_dead_letter_days"`
	ProcessedWebhookDays     int `yaml:"processed_webhook_days"`
	CleanupIntervalHours     int `yaml:"cleanup_interval_hours"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.SMS.TimeoutSeconds == 0 {
		cfg.SMS.TimeoutSeconds = 30
	}
	if cfg.Queue.Workers == 0 {
		cfg.Queue.Workers = 8
	}
	if cfg.Queue.BatchSize == 0 {
		cfg.Queue.BatchSize = 50
	}
	if cfg.Queue.PollIntervalMS == 0 {
		cfg.Queue.PollIntervalMS = 1000
	}
	if cfg.Queue.SendTimeoutSeconds == 0 {
		cfg.Queue.SendTimeoutSeconds = 30
	}
	if cfg.Queue.StaleClaimMinutes == 0 {
		cfg.Queue.StaleClaimMinutes = 5
	}
	if cfg.Queue.RecoveryIntervalMin == 0 {
		cfg.Queue.RecoveryIntervalMin = 2
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialDelaySeconds == 0 {
		cfg.Retry.InitialDelaySeconds = 60
	}
	if cfg.Retry.BackoffMultiplier == 0 {
		cfg.Retry.BackoffMultiplier = 2.0
	}
	if cfg.Retry.MaxDelayMinutes == 0 {
		cfg.Retry.MaxDelayMinutes = 60
	}
	if cfg.Budget.WarningThreshold == 0 {
		cfg.Budget.WarningThreshold = 0.80
	}
	if cfg.Budget.CapBehavior == "" {
		cfg.Budget.CapBehavior = string(domain.CapSkip)
	}
	if cfg.QuietHours.Start == "" {
		cfg.QuietHours.Start = "21:00"
	}
	if cfg.QuietHours.End == "" {
		cfg.QuietHours.End = "08:00"
	}
	if cfg.QuietHours.Timezone == "" {
		cfg.QuietHours.Timezone = "America/New_York"
	}
	if cfg.QuietHours.ShortWindowHours == 0 {
		cfg.QuietHours.ShortWindowHours = 4
	}
	if cfg.QuietHours.ShortWindowMode == "" {
		cfg.QuietHours.ShortWindowMode = "send"
	}
	if cfg.Dedupe.WindowHours == 0 {
		cfg.Dedupe.WindowHours = 24
	}
	if cfg.Retention.TerminalNotificationDays == 0 {
		cfg.Retention.TerminalNotificationDays = 90
	}
	if cfg.Retention.ResolvedDeadLetterDays == 0 {
		cfg.Retention.ResolvedDeadLetterDays = 30
	}
	if cfg.Retention.ProcessedWebhookDays == 0 {
		cfg.Retention.ProcessedWebhookDays = 30
	}
	if cfg.Retention.CleanupIntervalHours == 0 {
		cfg.Retention.CleanupIntervalHours = 1
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets
// can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("SMS_BASE_URL"); v != "" {
		cfg.SMS.BaseURL = v
	}
	if v := os.Getenv("SMS_ACCOUNT_ID"); v != "" {
		cfg.SMS.AccountID = v
	}
	if v := os.Getenv("SMS_AUTH_TOKEN"); v != "" {
		cfg.SMS.AuthToken = v
	}
	if v := os.Getenv("SMS_FROM_NUMBER"); v != "" {
		cfg.SMS.FromNumber = v
	}
	if v := os.Getenv("QUEUE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Queue.Workers = n
		}
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.Port = n
		}
	}

	return cfg, nil
}
