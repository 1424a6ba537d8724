package main

import (
	"errors"
	"log/slog"

	"github.com/dmitrymomot/stratplan/pkg/config"
	"github.com/dmitrymomot/stratplan/pkg/httpserver"
	"github.com/dmitrymomot/stratplan/pkg/logger"
	"github.com/dmitrymomot/stratplan/pkg/requestid"
	"github.com/dmitrymomot/stratplan/pkg/tenant"
	"github.com/dmitrymomot/stratplan/svc/billing"
)

const serviceName = "stratplan"

// appConfig holds settings every command needs. Postgres and Redis settings
// are loaded separately so the in-memory mode runs without them.
type appConfig struct {
	Env       string `env:"APP_ENV" envDefault:"development"`
	PlansFile string `env:"PLANS_FILE" envDefault:"configs/plans.yaml"`

	// UpgradeURL is linked from 402 responses.
	UpgradeURL string `env:"UPGRADE_URL" envDefault:"/billing/upgrade"`

	SubscriptionCache bool `env:"SUBSCRIPTION_CACHE" envDefault:"true"`

	HTTP   httpserver.Config
	Paddle billing.PaddleConfig
}

func (c appConfig) Validate() error {
	if c.PlansFile == "" {
		return errors.New("PLANS_FILE must not be empty")
	}
	return nil
}

func loadAppConfig() (appConfig, error) {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return appConfig{}, err
	}
	return cfg, nil
}

func newLogger(cfg appConfig) *slog.Logger {
	return logger.New(
		logger.WithEnvironment(logger.ParseEnvironment(cfg.Env), serviceName),
		logger.WithContextExtractors(
			tenant.LoggerExtractor(),
			requestid.LoggerExtractor(),
		),
	)
}
