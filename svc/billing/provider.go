// Package billing creates checkout and customer portal sessions, either
// against Stripe or as local mocks.
package billing

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/tiergate/pkg/environment"
)

// CheckoutRequest starts a premium checkout for a user.
type CheckoutRequest struct {
	UserID string
	Email  string
}

// PortalRequest opens the customer portal for a user.
type PortalRequest struct {
	UserID     string
	CustomerID string
}

// Session is a provider-hosted page the user is redirected to.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Provider creates billing sessions.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error)
	CreatePortalSession(ctx context.Context, req PortalRequest) (Session, error)
}

// New returns the mock provider outside production and Stripe otherwise.
func New(env environment.Environment, cfg Config, siteURL string, log *slog.Logger) Provider {
	if !env.IsProduction() {
		return NewMockProvider(siteURL, cfg.PremiumPriceID)
	}
	return NewStripeProvider(cfg, siteURL, WithLogger(log))
}
