package config

import "os"

// ApplyEnv applies CENSO_* environment variables onto cfg, skipping changed flags.
func ApplyEnv(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	if err := s.setIntFromString("port", os.Getenv("CENSO_PORT"), &cfg.Port); err != nil {
		return err
	}
	s.setString("env", os.Getenv("CENSO_ENV"), &cfg.Env)
	s.setString("base-url", os.Getenv("CENSO_BASE_URL"), &cfg.BaseURL)
	s.setString("timezone", os.Getenv("CENSO_TIMEZONE"), &cfg.Timezone)

	s.setString("db-dsn", os.Getenv("CENSO_DB_DSN"), &cfg.DB.DSN)
	if err := s.setIntFromString("db-max-open-conns", os.Getenv("CENSO_DB_MAX_OPEN_CONNS"), &cfg.DB.MaxOpenConns); err != nil {
		return err
	}
	if err := s.setIntFromString("db-max-idle-conns", os.Getenv("CENSO_DB_MAX_IDLE_CONNS"), &cfg.DB.MaxIdleConns); err != nil {
		return err
	}
	if err := s.setDuration("db-max-idle-time", os.Getenv("CENSO_DB_MAX_IDLE_TIME"), &cfg.DB.MaxIdleTime); err != nil {
		return err
	}

	s.setStringsFromString("cors-trusted-origins", os.Getenv("CENSO_CORS_TRUSTED_ORIGINS"), &cfg.CORS.TrustedOrigins)

	if err := s.setFloatFromString("rate-limit-rps", os.Getenv("CENSO_RATE_LIMIT_RPS"), &cfg.RateLimit.RPS); err != nil {
		return err
	}
	if err := s.setIntFromString("rate-limit-burst", os.Getenv("CENSO_RATE_LIMIT_BURST"), &cfg.RateLimit.Burst); err != nil {
		return err
	}
	s.setBoolFromString("rate-limit-enabled", os.Getenv("CENSO_RATE_LIMIT_ENABLED"), &cfg.RateLimit.Enabled)

	if err := s.setDuration("session-ttl", os.Getenv("CENSO_SESSION_TTL"), &cfg.Session.TTL); err != nil {
		return err
	}
	s.setString("session-cookie", os.Getenv("CENSO_SESSION_COOKIE"), &cfg.Session.CookieName)
	if err := s.setDuration("session-purge-interval", os.Getenv("CENSO_SESSION_PURGE_INTERVAL"), &cfg.Session.PurgeInterval); err != nil {
		return err
	}

	s.setString("smtp-host", os.Getenv("CENSO_SMTP_HOST"), &cfg.SMTP.Host)
	if err := s.setIntFromString("smtp-port", os.Getenv("CENSO_SMTP_PORT"), &cfg.SMTP.Port); err != nil {
		return err
	}
	s.setString("smtp-username", os.Getenv("CENSO_SMTP_USERNAME"), &cfg.SMTP.Username)
	s.setString("smtp-password", os.Getenv("CENSO_SMTP_PASSWORD"), &cfg.SMTP.Password)
	s.setString("smtp-sender", os.Getenv("CENSO_SMTP_SENDER"), &cfg.SMTP.Sender)

	s.setString("sheets-credentials", os.Getenv("CENSO_SHEETS_CREDENTIALS"), &cfg.Sheets.CredentialsFile)
	s.setString("sheets-spreadsheet-id", os.Getenv("CENSO_SHEETS_SPREADSHEET_ID"), &cfg.Sheets.SpreadsheetID)

	s.setStringsFromString("blocked-patterns", os.Getenv("CENSO_BLOCKED_PATTERNS"), &cfg.Security.BlockedPatterns)
	s.setStringsFromString("trusted-proxies", os.Getenv("CENSO_TRUSTED_PROXIES"), &cfg.Security.TrustedProxies)

	s.setString("log-level", os.Getenv("CENSO_LOG_LEVEL"), &cfg.Log.Level)
	s.setString("log-file", os.Getenv("CENSO_LOG_FILE"), &cfg.Log.File)

	return nil
}
