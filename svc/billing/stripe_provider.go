package billing

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/stripe/stripe-go/v82"
	billingsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/dmitrymomot/tiergate/pkg/logger"
)

// StripeProvider talks to the Stripe API with its own keyed clients, so
// no package-level stripe.Key is needed.
type StripeProvider struct {
	cfg      Config
	siteURL  string
	backend  stripe.Backend
	checkout *checkoutsession.Client
	portal   *billingsession.Client
	log      *slog.Logger
}

// StripeOption configures a StripeProvider.
type StripeOption func(*StripeProvider)

// WithBackend replaces the Stripe API backend.
func WithBackend(b stripe.Backend) StripeOption {
	return func(p *StripeProvider) {
		if b != nil {
			p.backend = b
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) StripeOption {
	return func(p *StripeProvider) {
		if log != nil {
			p.log = log
		}
	}
}

// NewStripeProvider creates a provider using cfg.SecretKey.
func NewStripeProvider(cfg Config, siteURL string, opts ...StripeOption) *StripeProvider {
	p := &StripeProvider{
		cfg:     cfg,
		siteURL: strings.TrimRight(siteURL, "/"),
		backend: stripe.GetBackend(stripe.APIBackend),
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.checkout = &checkoutsession.Client{B: p.backend, Key: cfg.SecretKey}
	p.portal = &billingsession.Client{B: p.backend, Key: cfg.SecretKey}
	return p
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.cfg.PremiumPriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(p.siteURL + "/dashboard?upgrade=success"),
		CancelURL:  stripe.String(p.siteURL + "/account?upgrade=cancel"),
		Metadata:   map[string]string{"userId": req.UserID},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.Context = ctx

	s, err := p.checkout.New(params)
	if err != nil {
		return Session{}, errors.Join(ErrProvider, err)
	}
	p.log.InfoContext(ctx, "created checkout session", slog.String("session_id", s.ID), logger.UserID(req.UserID))
	return Session{ID: s.ID, URL: s.URL}, nil
}

func (p *StripeProvider) CreatePortalSession(ctx context.Context, req PortalRequest) (Session, error) {
	if req.CustomerID == "" {
		return Session{}, ErrMissingCustomerID
	}
	returnURL := p.cfg.PortalReturnURL
	if returnURL == "" {
		returnURL = p.siteURL + "/account"
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(req.CustomerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	s, err := p.portal.New(params)
	if err != nil {
		return Session{}, errors.Join(ErrProvider, err)
	}
	p.log.InfoContext(ctx, "created portal session", slog.String("session_id", s.ID), logger.UserID(req.UserID))
	return Session{ID: s.ID, URL: s.URL}, nil
}
