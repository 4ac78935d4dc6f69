// Package config loads the check-in service configuration from .env files, an optional
// checkin.yaml and CHECKIN_* environment variables.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppName      string `mapstructure:"APP_NAME" validate:"required"`
	UseMockAPI   bool   `mapstructure:"USE_MOCK_API"`
	APIBaseURL   string `mapstructure:"API_BASE_URL" validate:"required_if=UseMockAPI false,omitempty,url"`
	OfficeQRCode string `mapstructure:"OFFICE_QR_CODE" validate:"required"`
	// OfficeTOTPSecret enables rotating office codes next to the static one.
	OfficeTOTPSecret string `mapstructure:"OFFICE_TOTP_SECRET"`
	Timezone         string `mapstructure:"TIMEZONE"`
	SeedDemoUsers    bool   `mapstructure:"SEED_DEMO_USERS"`

	StorageDriver string `mapstructure:"STORAGE_DRIVER" validate:"oneof=memory file redis postgres mysql s3"`
	StorageDSN    string `mapstructure:"STORAGE_DSN"`
	StorageKey    string `mapstructure:"STORAGE_KEY" validate:"omitempty,hexadecimal,len=64"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	S3Endpoint    string `mapstructure:"S3_ENDPOINT"`
	S3Region      string `mapstructure:"S3_REGION"`
	S3AccessKey   string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey   string `mapstructure:"S3_SECRET_KEY"`

	JWTSecret string        `mapstructure:"JWT_SECRET" validate:"required"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL" validate:"gt=0"`

	HTTPPort          string   `mapstructure:"HTTP_PORT"`
	ScannerPort       string   `mapstructure:"SCANNER_PORT"`
	ScannerTLS        bool     `mapstructure:"SCANNER_TLS"`
	AllowedOrigins    []string `mapstructure:"ALLOWED_ORIGINS"`
	ScanRatePerMinute int      `mapstructure:"SCAN_RATE_PER_MINUTE" validate:"gte=1"`

	Log `mapstructure:",squash"`
}

// Log configures the zap logger and its rolling file sink.
type Log struct {
	Level      string `mapstructure:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`
	Path       string `mapstructure:"LOG_PATH"`
	MaxSizeMB  int    `mapstructure:"LOG_MAX_SIZE_MB"`
	MaxBackups int    `mapstructure:"LOG_MAX_BACKUPS"`
	MaxAgeDays int    `mapstructure:"LOG_MAX_AGE_DAYS"`
	Compress   bool   `mapstructure:"LOG_COMPRESS"`

	// FileOnly drops the stdout sink. Set by programs whose stdout carries output.
	FileOnly bool `mapstructure:"-"`
}

var validate = validator.New()

// keys lists every setting so AutomaticEnv can see variables without a default.
var keys = []string{
	"APP_NAME", "USE_MOCK_API", "API_BASE_URL", "OFFICE_QR_CODE", "OFFICE_TOTP_SECRET",
	"TIMEZONE", "SEED_DEMO_USERS", "STORAGE_DRIVER", "STORAGE_DSN", "STORAGE_KEY",
	"REDIS_PASSWORD", "REDIS_DB", "S3_ENDPOINT", "S3_REGION", "S3_ACCESS_KEY", "S3_SECRET_KEY",
	"JWT_SECRET", "TOKEN_TTL", "HTTP_PORT", "SCANNER_PORT", "SCANNER_TLS", "ALLOWED_ORIGINS",
	"SCAN_RATE_PER_MINUTE", "LOG_LEVEL", "LOG_PATH", "LOG_MAX_SIZE_MB", "LOG_MAX_BACKUPS",
	"LOG_MAX_AGE_DAYS", "LOG_COMPRESS",
}

// Load reads the configuration. Precedence: environment > checkin.yaml > defaults.
// .env.local and .env are loaded into the environment first when present.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CHECKIN")
	v.AutomaticEnv()
	for _, k := range keys {
		v.BindEnv(k)
	}

	v.SetConfigName("checkin")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/checkin/")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("USE_MOCK_API", true)
	v.SetDefault("SEED_DEMO_USERS", true)
	v.SetDefault("STORAGE_DRIVER", "file")
	v.SetDefault("STORAGE_DSN", "./data")
	v.SetDefault("JWT_SECRET", randomSecret())
	v.SetDefault("TOKEN_TTL", 30*24*time.Hour)
	v.SetDefault("HTTP_PORT", "7002")
	v.SetDefault("SCANNER_PORT", "7001")
	v.SetDefault("SCANNER_TLS", true)
	v.SetDefault("ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SCAN_RATE_PER_MINUTE", 30)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 3)
	v.SetDefault("LOG_MAX_AGE_DAYS", 7)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Environment values arrive as one comma separated string.
	if len(cfg.AllowedOrigins) == 1 && strings.Contains(cfg.AllowedOrigins[0], ",") {
		cfg.AllowedOrigins = splitList(cfg.AllowedOrigins[0])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings and their formats.
func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", envName(verrs[0].StructField()), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("invalid config: CHECKIN_TIMEZONE: %w", err)
	}
	return nil
}

// Location returns the time zone used for day keys and the late cutoff.
func (cfg *Config) Location() (*time.Location, error) {
	if cfg.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(cfg.Timezone)
}

func envName(field string) string {
	names := map[string]string{
		"AppName":           "CHECKIN_APP_NAME",
		"APIBaseURL":        "CHECKIN_API_BASE_URL",
		"OfficeQRCode":      "CHECKIN_OFFICE_QR_CODE",
		"StorageDriver":     "CHECKIN_STORAGE_DRIVER",
		"StorageKey":        "CHECKIN_STORAGE_KEY",
		"JWTSecret":         "CHECKIN_JWT_SECRET",
		"TokenTTL":          "CHECKIN_TOKEN_TTL",
		"ScanRatePerMinute": "CHECKIN_SCAN_RATE_PER_MINUTE",
		"Level":             "CHECKIN_LOG_LEVEL",
	}
	if n, ok := names[field]; ok {
		return n
	}
	return field
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
