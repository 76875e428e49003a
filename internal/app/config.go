package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:"127.0.0.1:8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	StorePath string `envconfig:"STORE_PATH" default:"data/ppestock.db"`

	BackupDir         string        `envconfig:"BACKUP_DIR" default:"data/backups"`
	BackupInterval    time.Duration `envconfig:"BACKUP_INTERVAL" default:"48h"`
	BackupRetention   int           `envconfig:"BACKUP_RETENTION" default:"5"`
	BackupCopyTimeout time.Duration `envconfig:"BACKUP_COPY_TIMEOUT" default:"2m"`
	BackupRateLimit   int           `envconfig:"BACKUP_RATE_LIMIT" default:"10"`

	NotifyEnabled  bool     `envconfig:"NOTIFY_ENABLED" default:"false"`
	NotifySchedule string   `envconfig:"NOTIFY_SCHEDULE" default:"0 7 * * *"`
	NotifyTo       []string `envconfig:"NOTIFY_TO"`

	SMTPHost     string `envconfig:"SMTP_HOST" default:"127.0.0.1"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"no-reply@ppestock.local"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the backup and notification jobs cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.StorePath) == "" {
		return errors.New("store path must be provided")
	}
	if strings.TrimSpace(c.BackupDir) == "" {
		return errors.New("backup dir must be provided")
	}
	if c.BackupInterval <= 0 {
		return fmt.Errorf("backup interval must be positive, got %s", c.BackupInterval)
	}
	if c.BackupRetention < 1 {
		return fmt.Errorf("backup retention must be at least 1, got %d", c.BackupRetention)
	}
	if c.BackupCopyTimeout <= 0 {
		return fmt.Errorf("backup copy timeout must be positive, got %s", c.BackupCopyTimeout)
	}
	if c.NotifyEnabled && len(c.NotifyTo) == 0 {
		return errors.New("notify recipients must be provided when notifications are enabled")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
