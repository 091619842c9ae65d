package config

import (
	"fmt"
	"strconv"
	"time"
)

type lookupFunc func(key string) (string, bool)

// applyEnv overlays values from environment variables
func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"ENV":            &c.Env,
		"ADDR":           &c.Addr,
		"DB_PATH":        &c.DBPath,
		"EVENTS_DB_PATH": &c.EventsDBPath,
		"KEY_FILE":       &c.KeyFile,
		"PUBLIC_URL":     &c.PublicURL,
		"LOG_LEVEL":      &c.LogLevel,
		"SMTP_HOST":      &c.SMTPHost,
		"SMTP_USERNAME":  &c.SMTPUsername,
		"SMTP_PASSWORD":  &c.SMTPPassword,
		"SMTP_FROM":      &c.SMTPFrom,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"ACCESS_TOKEN_TTL":       &c.AccessTokenTTL,
		"REFRESH_TOKEN_TTL":      &c.RefreshTokenTTL,
		"REGISTRATION_TOKEN_TTL": &c.RegistrationTokenTTL,
		"RESET_TOKEN_TTL":        &c.ResetTokenTTL,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"SMTP_PORT":   &c.SMTPPort,
		"BCRYPT_COST": &c.BcryptCost,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	return nil
}
