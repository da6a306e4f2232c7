// Package config loads the service configuration. Values are layered as
// defaults, then the TOML file, then CENSO_* environment variables, then
// flags given explicitly on the command line.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/pflag"
)

// DefaultConfigPath is read when no --config flag is given and the file exists.
const DefaultConfigPath = "censo.toml"

// Config holds the service configuration.
type Config struct {
	Port     int
	Env      string
	BaseURL  string
	Timezone string

	DB        DBConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Session   SessionConfig
	SMTP      SMTPConfig
	Sheets    SheetsConfig
	Security  SecurityConfig
	Log       LogConfig
}

type DBConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

type CORSConfig struct {
	TrustedOrigins []string
}

type RateLimitConfig struct {
	RPS     float64
	Burst   int
	Enabled bool
}

type SessionConfig struct {
	TTL           time.Duration
	CookieName    string
	PurgeInterval time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
}

// Enabled reports whether outgoing mail is configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Sender != ""
}

type SheetsConfig struct {
	CredentialsFile string
	SpreadsheetID   string
}

// Enabled reports whether spreadsheet export is configured.
func (c SheetsConfig) Enabled() bool {
	return c.CredentialsFile != "" && c.SpreadsheetID != ""
}

// SecurityConfig lists request path fragments answered with 403 and the
// proxies whose forwarding headers are believed.
type SecurityConfig struct {
	BlockedPatterns []string
	TrustedProxies  []string
}

// ParseProxies parses addresses and CIDR ranges. A bare address matches only itself.
func ParseProxies(values []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(values))
	for _, value := range values {
		if strings.Contains(value, "/") {
			prefix, err := netip.ParsePrefix(value)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(value)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Dynamic is the part of the configuration that is reloaded while running.
type Dynamic struct {
	TrustedOrigins  []string
	BlockedPatterns []string
	TrustedProxies  []netip.Prefix
}

// DefaultBlockedPatterns are paths commonly requested by vulnerability scanners.
var DefaultBlockedPatterns = []string{
	"/.git", "/.env", "/cgi-bin", "/vendor", "/phpunit", "/config.php", "/password.php",
	"/upl.php", "/1.php", "/setup.cgi", "/luci", "/think", "/pearcmd", "/eval-stdin.php",
}

// Default returns a Config with default values.
func Default() Config {
	return Config{
		Port:     4000,
		Env:      "development",
		BaseURL:  "http://localhost:4000",
		Timezone: "America/Bogota",
		DB: DBConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 25,
			MaxIdleTime:  15 * time.Minute,
		},
		CORS: CORSConfig{
			TrustedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		},
		RateLimit: RateLimitConfig{
			RPS:   5,
			Burst: 10,
		},
		Session: SessionConfig{
			TTL:           2 * time.Hour,
			CookieName:    "auth_token",
			PurgeInterval: 15 * time.Minute,
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Security: SecurityConfig{
			BlockedPatterns: append([]string(nil), DefaultBlockedPatterns...),
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
	}
}

// BindFlags registers the command line flags, using the current values of cfg as defaults.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.Port, "port", cfg.Port, "API server port")
	fs.StringVar(&cfg.Env, "env", cfg.Env, "Environment (development|staging|production)")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Public URL of the dashboard, used in emails")
	fs.StringVar(&cfg.Timezone, "timezone", cfg.Timezone, "Timezone used for calendar-day date filters")

	fs.StringVar(&cfg.DB.DSN, "db-dsn", cfg.DB.DSN, "PostgreSQL DSN")
	fs.IntVar(&cfg.DB.MaxOpenConns, "db-max-open-conns", cfg.DB.MaxOpenConns, "PostgreSQL max open connections")
	fs.IntVar(&cfg.DB.MaxIdleConns, "db-max-idle-conns", cfg.DB.MaxIdleConns, "PostgreSQL max idle connections")
	fs.DurationVar(&cfg.DB.MaxIdleTime, "db-max-idle-time", cfg.DB.MaxIdleTime, "PostgreSQL max connection idle time")

	fs.StringSliceVar(&cfg.CORS.TrustedOrigins, "cors-trusted-origins", cfg.CORS.TrustedOrigins, "Trusted CORS origins")

	fs.Float64Var(&cfg.RateLimit.RPS, "rate-limit-rps", cfg.RateLimit.RPS, "Rate limiter maximum requests per second")
	fs.IntVar(&cfg.RateLimit.Burst, "rate-limit-burst", cfg.RateLimit.Burst, "Rate limiter maximum burst")
	fs.BoolVar(&cfg.RateLimit.Enabled, "rate-limit-enabled", cfg.RateLimit.Enabled, "Enable rate limiter")

	fs.DurationVar(&cfg.Session.TTL, "session-ttl", cfg.Session.TTL, "Lifetime of a login session")
	fs.StringVar(&cfg.Session.CookieName, "session-cookie", cfg.Session.CookieName, "Name of the session cookie")
	fs.DurationVar(&cfg.Session.PurgeInterval, "session-purge-interval", cfg.Session.PurgeInterval, "How often expired sessions are deleted")

	fs.StringVar(&cfg.SMTP.Host, "smtp-host", cfg.SMTP.Host, "SMTP host")
	fs.IntVar(&cfg.SMTP.Port, "smtp-port", cfg.SMTP.Port, "SMTP port")
	fs.StringVar(&cfg.SMTP.Username, "smtp-username", cfg.SMTP.Username, "SMTP username")
	fs.StringVar(&cfg.SMTP.Password, "smtp-password", cfg.SMTP.Password, "SMTP password")
	fs.StringVar(&cfg.SMTP.Sender, "smtp-sender", cfg.SMTP.Sender, "SMTP sender")

	fs.StringVar(&cfg.Sheets.CredentialsFile, "sheets-credentials", cfg.Sheets.CredentialsFile, "Google service account key file")
	fs.StringVar(&cfg.Sheets.SpreadsheetID, "sheets-spreadsheet-id", cfg.Sheets.SpreadsheetID, "Spreadsheet receiving censo exports")

	fs.StringSliceVar(&cfg.Security.BlockedPatterns, "blocked-patterns", cfg.Security.BlockedPatterns, "Request path fragments answered with 403")
	fs.StringSliceVar(&cfg.Security.TrustedProxies, "trusted-proxies", cfg.Security.TrustedProxies, "Proxy addresses or CIDR ranges allowed to set X-Forwarded-For")

	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level (debug|info|warn|error)")
	fs.StringVar(&cfg.Log.File, "log-file", cfg.Log.File, "Also write logs to this file, rotated")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535"))
	}
	switch c.Env {
	case "development", "staging", "production", "test":
	default:
		errs = append(errs, fmt.Errorf("env must be one of development, staging, production, test"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, fmt.Errorf("session ttl must be positive"))
	}
	if c.Session.CookieName == "" {
		errs = append(errs, fmt.Errorf("session cookie name is required"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, fmt.Errorf("rate limit rps and burst must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if _, err := ParseProxies(c.Security.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("trusted proxies: %w", err))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}

	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")

	return errors.Join(errs...)
}

// Location returns the configured timezone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// LogLevel parses the configured log level.
func (c Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.Log.Level))
	return level, err
}

// Dynamic returns the reloadable part of the configuration. If a proxy entry
// does not parse no proxy is trusted; Validate reports the entry.
func (c Config) Dynamic() Dynamic {
	proxies, _ := ParseProxies(c.Security.TrustedProxies)
	return Dynamic{
		TrustedOrigins:  c.CORS.TrustedOrigins,
		BlockedPatterns: c.Security.BlockedPatterns,
		TrustedProxies:  proxies,
	}
}

// ResolvePath returns the config file to read: path itself, or DefaultConfigPath
// when path is empty and that file exists, or "" for none.
func ResolvePath(path string) string {
	if path == "" && FileExists(DefaultConfigPath) {
		return DefaultConfigPath
	}
	return path
}

// Load applies the config file at path (or DefaultConfigPath when path is empty
// and that file exists) and then the environment onto cfg. Settings named in
// changed were given as flags and are left alone.
func Load(cfg *Config, path string, changed map[string]bool) error {
	path = ResolvePath(path)

	if path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := ApplyFile(cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := ApplyEnv(cfg, changed); err != nil {
		return err
	}

	return cfg.Validate()
}
