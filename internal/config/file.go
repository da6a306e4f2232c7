package config

import (
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config in TOML form. Durations are strings. Lists are
// pointers so that an explicit empty list differs from a missing key.
type FileConfig struct {
	Port     int    `toml:"port"`
	Env      string `toml:"env"`
	BaseURL  string `toml:"base_url"`
	Timezone string `toml:"timezone"`

	DB struct {
		DSN          string `toml:"dsn"`
		MaxOpenConns int    `toml:"max_open_conns"`
		MaxIdleConns int    `toml:"max_idle_conns"`
		MaxIdleTime  string `toml:"max_idle_time"`
	} `toml:"db"`

	CORS struct {
		TrustedOrigins *[]string `toml:"trusted_origins"`
	} `toml:"cors"`

	RateLimit struct {
		RPS     float64 `toml:"rps"`
		Burst   int     `toml:"burst"`
		Enabled *bool   `toml:"enabled"`
	} `toml:"rate_limit"`

	Session struct {
		TTL           string `toml:"ttl"`
		CookieName    string `toml:"cookie_name"`
		PurgeInterval string `toml:"purge_interval"`
	} `toml:"session"`

	SMTP struct {
		Host     string `toml:"host"`
		Port     int    `toml:"port"`
		Username string `toml:"username"`
		Password string `toml:"password"`
		Sender   string `toml:"sender"`
	} `toml:"smtp"`

	Sheets struct {
		CredentialsFile string `toml:"credentials_file"`
		SpreadsheetID   string `toml:"spreadsheet_id"`
	} `toml:"sheets"`

	Security struct {
		BlockedPatterns *[]string `toml:"blocked_patterns"`
		TrustedProxies  *[]string `toml:"trusted_proxies"`
	} `toml:"security"`

	Log struct {
		Level      string `toml:"level"`
		File       string `toml:"file"`
		MaxSizeMB  int    `toml:"max_size_mb"`
		MaxBackups int    `toml:"max_backups"`
	} `toml:"log"`
}

// LoadFile reads and parses a TOML config file.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// ApplyFile copies the values present in fc onto cfg, skipping changed flags.
func ApplyFile(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setInt("port", fc.Port, &cfg.Port)
	s.setString("env", fc.Env, &cfg.Env)
	s.setString("base-url", fc.BaseURL, &cfg.BaseURL)
	s.setString("timezone", fc.Timezone, &cfg.Timezone)

	s.setString("db-dsn", fc.DB.DSN, &cfg.DB.DSN)
	s.setInt("db-max-open-conns", fc.DB.MaxOpenConns, &cfg.DB.MaxOpenConns)
	s.setInt("db-max-idle-conns", fc.DB.MaxIdleConns, &cfg.DB.MaxIdleConns)
	if err := s.setDuration("db-max-idle-time", fc.DB.MaxIdleTime, &cfg.DB.MaxIdleTime); err != nil {
		return err
	}

	s.setStrings("cors-trusted-origins", fc.CORS.TrustedOrigins, &cfg.CORS.TrustedOrigins)

	s.setFloat("rate-limit-rps", fc.RateLimit.RPS, &cfg.RateLimit.RPS)
	s.setInt("rate-limit-burst", fc.RateLimit.Burst, &cfg.RateLimit.Burst)
	s.setBool("rate-limit-enabled", fc.RateLimit.Enabled, &cfg.RateLimit.Enabled)

	if err := s.setDuration("session-ttl", fc.Session.TTL, &cfg.Session.TTL); err != nil {
		return err
	}
	s.setString("session-cookie", fc.Session.CookieName, &cfg.Session.CookieName)
	if err := s.setDuration("session-purge-interval", fc.Session.PurgeInterval, &cfg.Session.PurgeInterval); err != nil {
		return err
	}

	s.setString("smtp-host", fc.SMTP.Host, &cfg.SMTP.Host)
	s.setInt("smtp-port", fc.SMTP.Port, &cfg.SMTP.Port)
	s.setString("smtp-username", fc.SMTP.Username, &cfg.SMTP.Username)
	s.setString("smtp-password", fc.SMTP.Password, &cfg.SMTP.Password)
	s.setString("smtp-sender", fc.SMTP.Sender, &cfg.SMTP.Sender)

	s.setString("sheets-credentials", fc.Sheets.CredentialsFile, &cfg.Sheets.CredentialsFile)
	s.setString("sheets-spreadsheet-id", fc.Sheets.SpreadsheetID, &cfg.Sheets.SpreadsheetID)

	s.setStrings("blocked-patterns", fc.Security.BlockedPatterns, &cfg.Security.BlockedPatterns)
	s.setStrings("trusted-proxies", fc.Security.TrustedProxies, &cfg.Security.TrustedProxies)

	s.setString("log-level", fc.Log.Level, &cfg.Log.Level)
	s.setString("log-file", fc.Log.File, &cfg.Log.File)
	s.setInt("log-max-size", fc.Log.MaxSizeMB, &cfg.Log.MaxSizeMB)
	s.setInt("log-max-backups", fc.Log.MaxBackups, &cfg.Log.MaxBackups)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
