package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adityar2309/Vehicle-Parking-App/internal/models"
)

func TestLoadConfig(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
database:
  path: "test.db"
redis:
  address: "localhost:6379"
lots:
  - id: 1
    name: "Downtown Garage"
    rate_per_hour: 5.0
    total_spots: 3
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	// Mock .env file
	if err := os.WriteFile(".env", []byte(""), 0o644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	defer os.Remove(".env")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "test.db" {
		t.Errorf("expected database path test.db, got %s", cfg.Database.Path)
	}

	if len(cfg.Lots) != 1 || cfg.Lots[0].ID != 1 {
		t.Errorf("expected 1 lot with ID 1")
	}

	// Defaults
	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.API.HTTP.Port)
	}
	if cfg.Exports.Format != models.FormatCSV {
		t.Errorf("expected default export format csv, got %s", cfg.Exports.Format)
	}
	if cfg.Exports.RetentionHours != models.DefaultExportRetentionHours {
		t.Errorf("expected default retention, got %d", cfg.Exports.RetentionHours)
	}
	if cfg.Scheduler.SweepInterval != "1h" {
		t.Errorf("expected default sweep interval 1h, got %s", cfg.Scheduler.SweepInterval)
	}
}

func TestLoadConfigEnvExpansion(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("TEST_DB_PATH", "from_env.db")

	yamlContent := `
database:
  path: "${TEST_DB_PATH}"
exports:
  format: "xlsx"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "from_env.db" {
		t.Errorf("expected expanded path from_env.db, got %s", cfg.Database.Path)
	}
	if cfg.Exports.Format != models.FormatXLSX {
		t.Errorf("expected format xlsx, got %s", cfg.Exports.Format)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Exports:  ExportConfig{Format: models.FormatCSV},
				Lots:     []models.Lot{{ID: 1, Name: "Lot 1", RatePerHour: 5, TotalSpots: 3}},
			},
			wantErr: false,
		},
		{
			name: "missing database path",
			cfg: Config{
				Exports: ExportConfig{Format: models.FormatCSV},
			},
			wantErr: true,
		},
		{
			name: "notify without token",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Exports:  ExportConfig{Format: models.FormatCSV},
				Notify:   NotifyConfig{Enabled: true},
			},
			wantErr: true,
		},
		{
			name: "bad export format",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Exports:  ExportConfig{Format: "pdf"},
			},
			wantErr: true,
		},
		{
			name: "duplicate lot id",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Exports:  ExportConfig{Format: models.FormatCSV},
				Lots: []models.Lot{
					{ID: 1, Name: "Lot 1", TotalSpots: 1},
					{ID: 1, Name: "Lot 2", TotalSpots: 1},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateLots(t *testing.T) {
	tests := []struct {
		name    string
		lots    []models.Lot
		wantErr bool
	}{
		{"empty is fine", nil, false},
		{"zero id", []models.Lot{{ID: 0, Name: "Bad", TotalSpots: 1}}, true},
		{"negative rate", []models.Lot{{ID: 1, Name: "Bad", RatePerHour: -1, TotalSpots: 1}}, true},
		{"no spots", []models.Lot{{ID: 1, Name: "Bad", TotalSpots: 0}}, true},
		{"valid", []models.Lot{{ID: 1, Name: "Good", RatePerHour: 2.5, TotalSpots: 10}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLots(tt.lots)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLots() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
