// Package config loads application configuration from environment variables.
//
// It wraps github.com/joho/godotenv (optional .env files) and
// github.com/caarlos0/env/v11 (struct tag parsing) behind a small generic API:
//
//	var cfg billing.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// Every configuration type is parsed once and cached for the lifetime of the
// process. Types implementing Validator are checked after parsing, so
// cross-field rules (for example "the portal return URL must be absolute when
// Stripe is configured") fail at startup instead of at the first request.
//
// ResetCache clears the cache and is meant for tests only.
package config
