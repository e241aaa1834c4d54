package access

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/tiergate/pkg/logger"
	"github.com/dmitrymomot/tiergate/svc/auth"
	"github.com/dmitrymomot/tiergate/svc/subscription"
)

// Override headers used by tests and dev tooling to force an identity.
const (
	HeaderUserID      = "X-User-Id"
	HeaderUserPremium = "X-User-Premium"
)

// SessionResolver resolves the authenticated identity of a request.
type SessionResolver interface {
	Resolve(r *http.Request) *auth.Session
}

// SubscriptionReader is the read side of subscription.Repository.
type SubscriptionReader interface {
	Get(ctx context.Context, userID string) (*subscription.Record, error)
}

// State is the per-request subscription view.
type State struct {
	Authenticated bool
	Tier          Tier
	RawSession    *Session
	Subscription  *SubscriptionInfo
}

// SubscriptionInfo is set when a stored record was found for the user.
type SubscriptionInfo struct {
	CurrentPeriodEnd    *time.Time
	CancellationPending bool
}

// Aggregator combines header overrides, the session resolver and stored
// subscriptions into a State.
type Aggregator struct {
	repo      SubscriptionReader
	resolver  SessionResolver
	overrides bool
	log       *slog.Logger
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithHeaderOverrides toggles the X-User-Id / X-User-Premium markers.
// They are honored by default.
func WithHeaderOverrides(enabled bool) AggregatorOption {
	return func(a *Aggregator) {
		a.overrides = enabled
	}
}

// WithLogger sets the logger used to report degraded enrichment.
func WithLogger(log *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if log != nil {
			a.log = log
		}
	}
}

// NewAggregator creates an Aggregator.
func NewAggregator(repo SubscriptionReader, resolver SessionResolver, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		repo:      repo,
		resolver:  resolver,
		overrides: true,
		log:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DeriveState computes the request's State. It never fails: storage
// errors degrade the user to free/none.
func (a *Aggregator) DeriveState(r *http.Request) State {
	ctx := r.Context()

	var (
		sess *Session
		info *SubscriptionInfo
	)

	if userID := r.Header.Get(HeaderUserID); a.overrides && userID != "" {
		sess = &Session{UserID: userID}
		if premium := r.Header.Values(HeaderUserPremium); len(premium) > 0 {
			if premium[0] == "true" {
				sess.SubscriptionTier = subscription.TierPremium
				sess.SubscriptionStatus = subscription.StatusActive
			} else {
				sess.SubscriptionTier = subscription.TierFree
				sess.SubscriptionStatus = subscription.StatusNone
			}
		} else {
			info = a.enrich(ctx, sess)
		}
	} else if resolved := a.resolver.Resolve(r); resolved != nil && resolved.UserID != "" {
		sess = &Session{
			UserID: resolved.UserID,
			Email:  resolved.Email,
			Role:   resolved.Role,
		}
		info = a.enrich(ctx, sess)
	}

	return State{
		Authenticated: sess != nil,
		Tier:          EffectiveTier(sess),
		RawSession:    sess,
		Subscription:  info,
	}
}

func (a *Aggregator) enrich(ctx context.Context, sess *Session) *SubscriptionInfo {
	sess.SubscriptionTier = subscription.TierFree
	sess.SubscriptionStatus = subscription.StatusNone

	rec, err := a.repo.Get(ctx, sess.UserID)
	if err != nil {
		a.log.WarnContext(ctx, "subscription lookup failed, falling back to free tier",
			logger.UserID(sess.UserID),
			logger.Error(err),
		)
		return nil
	}
	if rec == nil {
		return nil
	}

	sess.SubscriptionTier = rec.Tier
	sess.SubscriptionStatus = rec.Status
	return &SubscriptionInfo{
		CurrentPeriodEnd:    rec.CurrentPeriodEnd,
		CancellationPending: rec.IsCancellationPending(),
	}
}
