// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server       ServerConfig
	Log          LogConfig
	Database     DatabaseConfig
	SMTP         SMTPConfig
	Verification VerificationConfig
	Session      SessionConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

// SMTPConfig configures outgoing mail. An empty Host disables SMTP and
// verification mails are only logged.
type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// Enabled reports whether an SMTP host is configured.
func (c *SMTPConfig) Enabled() bool {
	return c.Host != ""
}

// VerificationConfig holds the email verification token settings.
type VerificationConfig struct { //nolint:govet // fieldalignment not critical for config structs
	FrontendURL      string // links are built as {FrontendURL}/verify-email/{token}
	RateLimitMinutes int    // cooldown between two verification mails
	ExpiryDays       int    // token lifetime
	CleanupSchedule  string // cron spec for expired token cleanup, empty disables
	RedisURL         string // optional redis URL for cooldown tracking
}

// Cooldown returns the rate limit window as a duration.
func (c *VerificationConfig) Cooldown() time.Duration {
	return time.Duration(c.RateLimitMinutes) * time.Minute
}

// Expiry returns the token lifetime as a duration.
func (c *VerificationConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryDays) * 24 * time.Hour
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Verification: VerificationConfig{
			FrontendURL:      cmd.String("frontend-url"),
			RateLimitMinutes: int(cmd.Int("email-rate-limit-minutes")),
			ExpiryDays:       int(cmd.Int("email-verification-expiry-days")),
			CleanupSchedule:  cmd.String("token-cleanup-schedule"),
			RedisURL:         cmd.String("rate-limit-redis-url"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	applyVerificationDefaults(cfg)

	return cfg
}

// applyVerificationDefaults fills in values that would make the token
// lifecycle misbehave when left at zero.
func applyVerificationDefaults(cfg *Config) {
	v := &cfg.Verification
	if v.FrontendURL == "" {
		v.FrontendURL = cfg.Server.BaseURL
	}
	v.FrontendURL = strings.TrimSuffix(v.FrontendURL, "/")
	if v.RateLimitMinutes < 0 {
		v.RateLimitMinutes = 0
	}
	if v.ExpiryDays <= 0 {
		v.ExpiryDays = 7
	}
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}

	// Hide default port in URL
	if port == 80 {
		return fmt.Sprintf("http://%s", host)
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8000,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL of the API",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/app.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host (empty logs mails instead of sending them)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Value:   "noreply@autograder.com",
			Usage:   "Sender address for outgoing mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DEFAULT_FROM_EMAIL"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "Excel Autograder",
			Usage:   "Sender display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		// Verification flags
		&cli.StringFlag{
			Name:    "frontend-url",
			Value:   "http://localhost:4200",
			Usage:   "Frontend URL used in verification links",
			Sources: cli.NewValueSourceChain(cli.EnvVar("FRONTEND_URL"), toml.TOML("verification.frontend_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "email-rate-limit-minutes",
			Value:   15,
			Usage:   "Minutes between two verification mails for the same user",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_RATE_LIMIT_MINUTES"), toml.TOML("verification.rate_limit_minutes", configFile)),
		},
		&cli.IntFlag{
			Name:    "email-verification-expiry-days",
			Value:   7,
			Usage:   "Days a verification token stays valid",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_VERIFICATION_EXPIRY_DAYS"), toml.TOML("verification.expiry_days", configFile)),
		},
		&cli.StringFlag{
			Name:    "token-cleanup-schedule",
			Value:   "@hourly",
			Usage:   "Cron schedule for deleting expired tokens (empty disables)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TOKEN_CLEANUP_SCHEDULE"), toml.TOML("verification.cleanup_schedule", configFile)),
		},
		&cli.StringFlag{
			Name:    "rate-limit-redis-url",
			Usage:   "Redis URL for tracking verification mail cooldowns (optional)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RATE_LIMIT_REDIS_URL"), toml.TOML("verification.redis_url", configFile)),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "_session",
			Usage:   "Session cookie name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_COOKIE_NAME"), toml.TOML("session.cookie_name", configFile)),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   604800, // 7 days in seconds
			Usage:   "Session max age in seconds",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_MAX_AGE"), toml.TOML("session.max_age", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Session hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_HASH_KEY"), toml.TOML("session.hash_key", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Session block key for encryption (32-byte hex, optional)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_BLOCK_KEY"), toml.TOML("session.block_key", configFile)),
		},
	}
}
