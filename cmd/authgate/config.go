package main

import (
	"log/slog"

	"github.com/dmitrymomot/authgate/internal/auth"
	"github.com/dmitrymomot/authgate/internal/server"
	"github.com/dmitrymomot/authgate/internal/sessioncookie"
	"github.com/dmitrymomot/authgate/internal/upstream"
)

type Config struct {
	AppName     string   `env:"APP_NAME" envDefault:"authgate"`
	Environment string   `env:"APP_ENV" envDefault:"development"`
	Locales     []string `env:"APP_LOCALES" envDefault:"en"`

	// LogLevel overrides the environment preset's level when set.
	LogLevel *slog.Level `env:"LOG_LEVEL"`

	Server  server.Config
	Backend upstream.Config
	Cookie  sessioncookie.Config
	Auth    auth.Config
}

// IsProduction gates the Secure cookie attributes and JSON logging.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}
