package billing

import (
	"fmt"
	"net/url"
	"strings"
)

// Config holds Stripe credentials. Empty or placeholder values mean
// billing is not configured.
type Config struct {
	PublicKey       string `env:"STRIPE_PUBLIC_KEY"`
	SecretKey       string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret   string `env:"STRIPE_WEBHOOK_SECRET"`
	PremiumPriceID  string `env:"STRIPE_PREMIUM_PRICE_ID"`
	PortalReturnURL string `env:"BILLING_PORTAL_RETURN_URL"`
}

// IsStripeConfigured reports whether the keys and price id look real.
func (c Config) IsStripeConfigured() bool {
	return IsRealValue(c.PublicKey) && IsRealValue(c.SecretKey) && IsRealValue(c.PremiumPriceID)
}

// IsRealValue reports whether v is set and not a placeholder.
func IsRealValue(v string) bool {
	return v != "" && !strings.Contains(strings.ToLower(v), "placeholder")
}

// Validate is called by config.Load.
func (c Config) Validate() error {
	if !c.IsStripeConfigured() || c.PortalReturnURL == "" {
		return nil
	}
	u, err := url.Parse(c.PortalReturnURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: BILLING_PORTAL_RETURN_URL must be an absolute URL", ErrInvalidConfig)
	}
	return nil
}
