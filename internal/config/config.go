package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/adityar2309/Vehicle-Parking-App/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Lots       []models.Lot     `yaml:"lots"`
	Exports    ExportConfig     `yaml:"exports"`
	Notify     NotifyConfig     `yaml:"notify"`
	Google     GoogleConfig     `yaml:"google"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path           string `yaml:"path"`
	Format         string `yaml:"format"`
	RetentionHours int    `yaml:"retention_hours"`
	QueueSize      int    `yaml:"queue_size"`
}

type NotifyConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
}

type GoogleConfig struct {
	Enabled               bool   `yaml:"enabled"`
	GoogleCredentialsFile string `yaml:"credentials_file"`
	ReportSpreadSheetID   string `yaml:"report_spreadsheet_id"`
}

type SchedulerConfig struct {
	SweepInterval    string `yaml:"sweep_interval"`
	ReminderTime     string `yaml:"reminder_time"`
	SheetsReportTime string `yaml:"sheets_report_time"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Notify.Enabled && c.Notify.BotToken == "" {
		return errors.New("notify enabled but bot_token is empty")
	}

	switch c.Exports.Format {
	case models.FormatCSV, models.FormatXLSX:
	default:
		return fmt.Errorf("unsupported export format: %s", c.Exports.Format)
	}

	return ValidateLots(c.Lots)
}

func ValidateLots(lots []models.Lot) error {
	// Check for duplicate lot IDs
	lotIDs := make(map[int64]bool)
	for _, lot := range lots {
		if lot.ID == 0 {
			return fmt.Errorf("lot '%s' has invalid ID 0", lot.Name)
		}
		if lotIDs[lot.ID] {
			return fmt.Errorf("duplicate lot ID found: %d", lot.ID)
		}
		lotIDs[lot.ID] = true
		if lot.RatePerHour < 0 {
			return fmt.Errorf("lot '%s' has negative rate_per_hour", lot.Name)
		}
		if lot.TotalSpots <= 0 {
			return fmt.Errorf("lot '%s' has no spots", lot.Name)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	// Export defaults
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Exports.Format == "" {
		c.Exports.Format = models.FormatCSV
	}
	if c.Exports.RetentionHours == 0 {
		c.Exports.RetentionHours = models.DefaultExportRetentionHours
	}
	if c.Exports.QueueSize == 0 {
		c.Exports.QueueSize = models.ExportQueueSize
	}

	// Scheduler defaults
	if c.Scheduler.SweepInterval == "" {
		c.Scheduler.SweepInterval = "1h"
	}
	if c.Scheduler.ReminderTime == "" {
		c.Scheduler.ReminderTime = "09:00"
	}
}
