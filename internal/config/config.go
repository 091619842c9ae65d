// Package config loads server settings.
//
// Sources are applied in order, each overriding the previous one:
// built-in defaults, the .env file, process environment, command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvDevelopment relaxes cookie security and exposes internal error details
const EnvDevelopment = "development"

// Config holds runtime settings for the trackmail server
type Config struct {
	Env          string
	Addr         string
	DBPath       string
	EventsDBPath string
	KeyFile      string
	PublicURL    string
	LogLevel     string

	SMTPHost     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	RegistrationTokenTTL time.Duration
	ResetTokenTTL        time.Duration

	SMTPPort   int
	BcryptCost int

	// ShowVersion is set by the -version flag
	ShowVersion bool
}

// Defaults returns development-friendly settings
func Defaults() *Config {
	return &Config{
		Env:                  "production",
		Addr:                 ":8080",
		DBPath:               "./data/trackmail.db",
		EventsDBPath:         "./data/events.db",
		KeyFile:              "./data/jwt.key",
		PublicURL:            "http://localhost:8080",
		LogLevel:             "info",
		SMTPPort:             587,
		SMTPFrom:             "noreply@localhost",
		AccessTokenTTL:       15 * time.Minute,
		RefreshTokenTTL:      7 * 24 * time.Hour,
		RegistrationTokenTTL: 24 * time.Hour,
		ResetTokenTTL:        time.Hour,
		BcryptCost:           10,
	}
}

// Load builds the configuration. A missing envFile is not an error.
func Load(envFile string, args []string) (*Config, error) {
	if envFile != "" {
		// godotenv не перезаписывает уже заданные переменные окружения
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Defaults()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.parseFlags(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, EnvDevelopment)
}

// SMTPEnabled reports whether outbound mail is configured
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// Validate checks value ranges
func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("ADDR is empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is empty"))
	}
	if c.EventsDBPath == "" {
		errs = append(errs, errors.New("EVENTS_DB_PATH is empty"))
	}
	if c.KeyFile == "" {
		errs = append(errs, errors.New("KEY_FILE is empty"))
	}

	for name, ttl := range map[string]time.Duration{
		"ACCESS_TOKEN_TTL":       c.AccessTokenTTL,
		"REFRESH_TOKEN_TTL":      c.RefreshTokenTTL,
		"REGISTRATION_TOKEN_TTL": c.RegistrationTokenTTL,
		"RESET_TOKEN_TTL":        c.ResetTokenTTL,
	} {
		if ttl <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, ttl))
		}
	}

	if u, err := url.Parse(c.PublicURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("PUBLIC_URL must be an absolute http(s) URL, got %q", c.PublicURL))
	}

	if c.SMTPEnabled() && (c.SMTPPort <= 0 || c.SMTPPort > 65535) {
		errs = append(errs, fmt.Errorf("SMTP_PORT out of range: %d", c.SMTPPort))
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// NewLogger creates the process logger: text output in development,
// JSON otherwise
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.IsDevelopment() {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return level, nil
}
