package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"reservo/internal/models"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("RESERVO_JWT_SECRET", "s3cret")

	yamlContent := `
app:
  timezone: "Africa/Nairobi"
database:
  path: "test.db"
admin:
  jwt_secret: "${RESERVO_JWT_SECRET}"
  token_ttl: 30m
booking:
  default_slots: ["10:00", "14:00"]
  flow_ttl: 15m
services:
  - id: videography
    name: Videography
    starting_price: 350
    is_active: true
    slot_based: true
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Admin.JWTSecret != "s3cret" {
		t.Errorf("expected jwt secret from env, got %q", cfg.Admin.JWTSecret)
	}
	if cfg.Admin.TokenTTL != 30*time.Minute {
		t.Errorf("expected token ttl 30m, got %s", cfg.Admin.TokenTTL)
	}
	if cfg.Booking.FlowTTL != 15*time.Minute {
		t.Errorf("expected flow ttl 15m, got %s", cfg.Booking.FlowTTL)
	}
	if len(cfg.Booking.DefaultSlots) != 2 || cfg.Booking.DefaultSlots[1] != "14:00" {
		t.Errorf("unexpected default slots: %v", cfg.Booking.DefaultSlots)
	}
	if len(cfg.Services) != 1 || cfg.Services[0].ID != "videography" || cfg.Services[0].StartingPrice != 350 {
		t.Errorf("expected videography service, got %+v", cfg.Services)
	}
	if cfg.App.Location().String() != "Africa/Nairobi" {
		t.Errorf("expected Africa/Nairobi location, got %s", cfg.App.Location())
	}
}

func TestLoadConfigWithEnvFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("database:\n  path: \"${RESERVO_DB_FROM_DOTENV}\"\n"), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	if err := os.WriteFile(".env", []byte("RESERVO_DB_FROM_DOTENV=from-dotenv.db\n"), 0o644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	defer os.Remove(".env")
	defer os.Unsetenv("RESERVO_DB_FROM_DOTENV")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Database.Path != "from-dotenv.db" {
		t.Errorf("expected database path from .env, got %q", cfg.Database.Path)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
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
				Services: []models.Service{{ID: "photography", Name: "Photography", StartingPrice: 120}},
			},
			wantErr: false,
		},
		{
			name:    "missing database path",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name: "deposit out of range",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Booking:  BookingConfig{DepositPercent: 130},
			},
			wantErr: true,
		},
		{
			name: "bad default slot",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Booking:  BookingConfig{DefaultSlots: []string{"9am"}},
			},
			wantErr: true,
		},
		{
			name: "backup without storage path",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Backup:   BackupConfig{Enabled: true},
			},
			wantErr: true,
		},
		{
			name: "duplicate service id",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Services: []models.Service{
					{ID: "photography", Name: "Photography"},
					{ID: "photography", Name: "Photo again"},
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

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if len(cfg.Booking.DefaultSlots) != len(models.DefaultSlotTimes) {
		t.Errorf("expected %d default slots, got %d", len(models.DefaultSlotTimes), len(cfg.Booking.DefaultSlots))
	}
	if cfg.Booking.DepositPercent != models.DefaultDepositPercent {
		t.Errorf("expected default deposit percent %d, got %v", models.DefaultDepositPercent, cfg.Booking.DepositPercent)
	}
	if cfg.API.GRPC.Port != 8081 {
		t.Errorf("expected default gRPC port 8081, got %d", cfg.API.GRPC.Port)
	}
	if cfg.Admin.LoginPath != "/admin-login" {
		t.Errorf("expected default login path /admin-login, got %s", cfg.Admin.LoginPath)
	}
	if cfg.Notifications.OperatorEmail != "admin@afriframe.com" {
		t.Errorf("unexpected default operator email %s", cfg.Notifications.OperatorEmail)
	}
	if cfg.Booking.ReserveRateWindow != time.Minute {
		t.Errorf("expected reserve rate window 1m, got %s", cfg.Booking.ReserveRateWindow)
	}

	// defaults must not alias the package-level slot list
	cfg.Booking.DefaultSlots[0] = "08:00"
	if models.DefaultSlotTimes[0] != "09:00" {
		t.Errorf("default slot list was mutated through config")
	}
}

func TestValidateSlotTimes(t *testing.T) {
	tests := []struct {
		name    string
		slots   []string
		wantErr bool
	}{
		{name: "Valid", slots: []string{"09:00", "17:30"}, wantErr: false},
		{name: "Empty", slots: nil, wantErr: false},
		{name: "Duplicate", slots: []string{"09:00", "09:00"}, wantErr: true},
		{name: "Out of range hour", slots: []string{"24:00"}, wantErr: true},
		{name: "Missing leading zero", slots: []string{"9:00"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlotTimes(tt.slots)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSlotTimes() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
		want    int
		wantErr bool
	}{
		{name: "Empty", entries: nil, want: 0},
		{name: "IPAndCIDR", entries: []string{"10.0.0.1", " 172.16.0.0/12 ", "::1"}, want: 3},
		{name: "BlankSkipped", entries: []string{""}, want: 0},
		{name: "BadIP", entries: []string{"10.0.0"}, wantErr: true},
		{name: "BadCIDR", entries: []string{"10.0.0.0/40"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTrustedProxies(tt.entries)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTrustedProxies() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(got) != tt.want {
				t.Errorf("ParseTrustedProxies() = %v, want %d prefixes", got, tt.want)
			}
		})
	}
}
