// Package config resolves a session's startup configuration from command
// line flags and environment variables, with flags seeded from defaults
// and environment variables applied on top.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// SessionConfig holds every setting a myr session needs before it can open
// its first connection.
type SessionConfig struct {
	ProfileName string
	Host        string
	Port        int
	User        string
	Database    string

	SafeModeEnabled bool

	TickRate       time.Duration
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration

	RingBufferCapacity int
	PreviewPageSize    int

	ConfigDirOverride string
}

// DefaultSessionConfig returns the fixed resource and timing budget a
// session runs under absent any override.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		Port:                3306,
		SafeModeEnabled:     true,
		TickRate:            120 * time.Millisecond,
		ConnectTimeout:      8 * time.Second,
		QueryTimeout:        20 * time.Second,
		RingBufferCapacity:  2000,
		PreviewPageSize:     200,
	}
}

// LoadFromFlagsAndEnv parses args against a fresh FlagSet seeded with
// DefaultSessionConfig's values, then lets environment variables override
// the result.
func LoadFromFlagsAndEnv(args []string) (*SessionConfig, error) {
	cfg := DefaultSessionConfig()

	fs := flag.NewFlagSet("myr", flag.ContinueOnError)
	fs.StringVar(&cfg.ProfileName, "profile", cfg.ProfileName, "Saved connection profile name to start from")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "MySQL-compatible server host")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "MySQL-compatible server port")
	fs.StringVar(&cfg.User, "user", cfg.User, "Database user")
	fs.StringVar(&cfg.Database, "database", cfg.Database, "Default database")
	fs.BoolVar(&cfg.SafeModeEnabled, "safe-mode", cfg.SafeModeEnabled, "Require confirmation before risky statements run")
	fs.DurationVar(&cfg.TickRate, "tick-rate", cfg.TickRate, "Event loop tick interval")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "Connect attempt timeout")
	fs.DurationVar(&cfg.QueryTimeout, "query-timeout", cfg.QueryTimeout, "Query execution timeout")
	fs.IntVar(&cfg.RingBufferCapacity, "ring-buffer-capacity", cfg.RingBufferCapacity, "Buffered result row capacity")
	fs.IntVar(&cfg.PreviewPageSize, "preview-page-size", cfg.PreviewPageSize, "Rows fetched per preview/pagination page")
	fs.StringVar(&cfg.ConfigDirOverride, "config-dir", cfg.ConfigDirOverride, "Override the profile/bookmark/audit config directory")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.ProfileName = getEnv("MYR_PROFILE", cfg.ProfileName)
	cfg.Host = getEnv("MYR_HOST", cfg.Host)
	cfg.Port = getEnvInt("MYR_PORT", cfg.Port)
	cfg.User = getEnv("MYR_USER", cfg.User)
	cfg.Database = getEnv("MYR_DATABASE", cfg.Database)
	cfg.SafeModeEnabled = getEnvBool("MYR_SAFE_MODE", cfg.SafeModeEnabled)
	cfg.ConfigDirOverride = getEnv("MYR_CONFIG_DIR", cfg.ConfigDirOverride)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
