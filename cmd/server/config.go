package main

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrymomot/tiergate/pkg/environment"
	"github.com/dmitrymomot/tiergate/svc/access"
)

var (
	errInvalidSiteURL   = errors.New("SITE_URL must be an absolute URL")
	errDatabaseRequired = errors.New("DATABASE_URL is required in production")
)

type appConfig struct {
	Env                string        `env:"APP_ENV" envDefault:"development"`
	Name               string        `env:"APP_NAME" envDefault:"tiergate"`
	SiteURL            string        `env:"SITE_URL,required"`
	LogLevel           string        `env:"LOG_LEVEL"`
	DatabaseURL        string        `env:"DATABASE_URL"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	HeaderOverrides    bool          `env:"ACCESS_HEADER_OVERRIDES"`
	FeatureTier        string        `env:"PREMIUM_FEATURE_TIER" envDefault:"premium"`
	RegisterRateLimit  int           `env:"REGISTER_RATE_LIMIT" envDefault:"5"`
	RegisterRateWindow time.Duration `env:"REGISTER_RATE_WINDOW" envDefault:"1m"`
}

func (c appConfig) Validate() error {
	u, err := url.Parse(c.SiteURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errInvalidSiteURL
	}
	// in-memory storage would drop the webhook ledger on every restart
	if c.environment().IsProduction() && c.DatabaseURL == "" {
		return errDatabaseRequired
	}
	if _, err := access.ParseTier(c.FeatureTier); err != nil {
		return fmt.Errorf("PREMIUM_FEATURE_TIER: %w", err)
	}
	return nil
}

func (c appConfig) environment() environment.Environment {
	return environment.Parse(c.Env)
}

// featureTier is the tier required by the gated example feature. Validate
// has already rejected unknown names.
func (c appConfig) featureTier() access.Tier {
	tier, err := access.ParseTier(c.FeatureTier)
	if err != nil {
		return access.TierPremium
	}
	return tier
}

// headerOverrides reports whether X-User-Id / X-User-Premium are honored:
// always outside production, opt-in in production.
func (c appConfig) headerOverrides() bool {
	return !c.environment().IsProduction() || c.HeaderOverrides
}
