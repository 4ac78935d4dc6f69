package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}

func setRequired(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CHECKIN_APP_NAME", "Office Check-in")
	t.Setenv("CHECKIN_OFFICE_QR_CODE", "OFFICE-2024")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.AppName != "Office Check-in" || cfg.OfficeQRCode != "OFFICE-2024" {
		t.Errorf("Required values not loaded: %+v", cfg)
	}
	if !cfg.UseMockAPI {
		t.Error("Expected mock mode by default")
	}
	if cfg.StorageDriver != "file" || cfg.StorageDSN != "./data" {
		t.Errorf("Unexpected storage defaults: %s %s", cfg.StorageDriver, cfg.StorageDSN)
	}
	if cfg.TokenTTL != 30*24*time.Hour {
		t.Errorf("Unexpected token ttl: %v", cfg.TokenTTL)
	}
	if len(cfg.JWTSecret) != 64 {
		t.Errorf("Expected generated secret, got %q", cfg.JWTSecret)
	}
	if cfg.Log.Level != "info" || cfg.Log.MaxBackups != 3 {
		t.Errorf("Unexpected log defaults: %+v", cfg.Log)
	}
	if !cfg.SeedDemoUsers {
		t.Error("Expected demo seeding by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CHECKIN_STORAGE_DRIVER", "memory")
	t.Setenv("CHECKIN_TOKEN_TTL", "2h")
	t.Setenv("CHECKIN_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("CHECKIN_TIMEZONE", "UTC")
	t.Setenv("CHECKIN_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StorageDriver != "memory" {
		t.Errorf("Expected memory driver, got %s", cfg.StorageDriver)
	}
	if cfg.TokenTTL != 2*time.Hour {
		t.Errorf("Expected 2h ttl, got %v", cfg.TokenTTL)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("Unexpected origins: %v", cfg.AllowedOrigins)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "UTC" {
		t.Errorf("Unexpected location: %v, %v", loc, err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected debug level, got %s", cfg.Log.Level)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CHECKIN_APP_NAME", "Office Check-in")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "CHECKIN_OFFICE_QR_CODE") {
		t.Fatalf("Expected missing office code error, got %v", err)
	}
}

func TestLoad_RemoteModeNeedsBaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("CHECKIN_USE_MOCK_API", "false")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "CHECKIN_API_BASE_URL") {
		t.Fatalf("Expected base url error, got %v", err)
	}

	t.Setenv("CHECKIN_API_BASE_URL", "http://localhost:7002/api")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.UseMockAPI {
		t.Error("Expected remote mode")
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		AppName:           "Check-in",
		UseMockAPI:        true,
		OfficeQRCode:      "CODE",
		StorageDriver:     "memory",
		JWTSecret:         "secret",
		TokenTTL:          time.Hour,
		ScanRatePerMinute: 10,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.StorageDriver = "floppy" }, true},
		{"short storage key", func(c *Config) { c.StorageKey = "abcd" }, true},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, true},
		{"bad base url", func(c *Config) { c.UseMockAPI = false; c.APIBaseURL = "not a url" }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
