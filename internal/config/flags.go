package config

import (
	"flag"
	"io"
)

// parseFlags overlays values from command-line flags.
//
// Supported flags:
//
//	-a string            listen address (e.g. ":8080")
//	-d string            SQLite database path
//	-events string       BoltDB event log path
//	-key string          signing key file
//	-env string          environment name ("development" relaxes cookie security)
//	-public-url string   base URL used in emails and tracking links
//	-log-level string    debug, info, warn or error
//	-access-ttl duration
//	-refresh-ttl duration
//	-version             print build information and exit
func (c *Config) parseFlags(args []string) error {
	fs := flag.NewFlagSet("trackmail", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&c.Addr, "a", c.Addr, "address and port to run server")
	fs.StringVar(&c.DBPath, "d", c.DBPath, "SQLite database path")
	fs.StringVar(&c.EventsDBPath, "events", c.EventsDBPath, "BoltDB event log path")
	fs.StringVar(&c.KeyFile, "key", c.KeyFile, "signing key file")
	fs.StringVar(&c.Env, "env", c.Env, "environment name")
	fs.StringVar(&c.PublicURL, "public-url", c.PublicURL, "public base URL")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
	fs.DurationVar(&c.AccessTokenTTL, "access-ttl", c.AccessTokenTTL, "access token lifetime")
	fs.DurationVar(&c.RefreshTokenTTL, "refresh-ttl", c.RefreshTokenTTL, "refresh token lifetime")
	fs.BoolVar(&c.ShowVersion, "version", false, "show version information")

	return fs.Parse(args)
}
