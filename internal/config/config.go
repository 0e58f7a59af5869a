// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	SMTP      SMTPConfig
	Relay     RelayConfig
	TwoFactor TwoFactorConfig
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

type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// RelayConfig configures the chat-bot relay transport. An empty BotToken
// means the relay channel is not configured; enabling it is rejected up
// front.
type RelayConfig struct { //nolint:govet // fieldalignment not critical for config structs
	APIURL         string
	BotToken       string
	BotName        string
	BotHandle      string
	TimeoutSeconds int
}

type TwoFactorConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Issuer   string // issuer shown in authenticator apps
	TOTPSkew int    // accepted clock-skew window in 30s steps
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
		Relay: RelayConfig{
			APIURL:         cmd.String("relay-api-url"),
			BotToken:       cmd.String("relay-bot-token"),
			BotName:        cmd.String("relay-bot-name"),
			BotHandle:      cmd.String("relay-bot-handle"),
			TimeoutSeconds: int(cmd.Int("relay-timeout")),
		},
		TwoFactor: TwoFactorConfig{
			Issuer:   cmd.String("totp-issuer"),
			TOTPSkew: int(cmd.Int("totp-skew")),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	return cfg
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
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for links in outbound messages",
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
			Value:   "./data/twofactor.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host",
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
			Usage:   "Sender address for outbound mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Usage:   "Sender display name for outbound mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		&cli.StringFlag{
			Name:    "relay-api-url",
			Usage:   "Base URL of the chat-bot relay API",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RELAY_API_URL"), toml.TOML("relay.api_url", configFile)),
		},
		&cli.StringFlag{
			Name:    "relay-bot-token",
			Usage:   "Bot token for the chat-bot relay (empty disables the relay channel)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RELAY_BOT_TOKEN"), toml.TOML("relay.bot_token", configFile)),
		},
		&cli.StringFlag{
			Name:    "relay-bot-name",
			Value:   "Verification Bot",
			Usage:   "Display name of the relay bot",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RELAY_BOT_NAME"), toml.TOML("relay.bot_name", configFile)),
		},
		&cli.StringFlag{
			Name:    "relay-bot-handle",
			Value:   "@verification_bot",
			Usage:   "Handle of the relay bot",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RELAY_BOT_HANDLE"), toml.TOML("relay.bot_handle", configFile)),
		},
		&cli.IntFlag{
			Name:    "relay-timeout",
			Value:   10,
			Usage:   "Relay API request timeout in seconds",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RELAY_TIMEOUT"), toml.TOML("relay.timeout", configFile)),
		},
		&cli.StringFlag{
			Name:    "totp-issuer",
			Value:   "twofactor",
			Usage:   "Issuer shown in authenticator apps",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TOTP_ISSUER"), toml.TOML("twofactor.issuer", configFile)),
		},
		&cli.IntFlag{
			Name:    "totp-skew",
			Value:   1,
			Usage:   "Accepted TOTP clock-skew window in 30s steps",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TOTP_SKEW"), toml.TOML("twofactor.skew", configFile)),
		},
	}
}
