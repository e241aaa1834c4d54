package access

import (
	"fmt"

	"github.com/dmitrymomot/tiergate/svc/subscription"
)

// Session carries the identity and entitlement facts needed to compute
// a tier. It is built per request and never shared.
type Session struct {
	UserID             string
	Email              string
	Role               string
	SubscriptionTier   subscription.Tier
	SubscriptionStatus subscription.Status
}

// Decision is the outcome of Enforce.
type Decision struct {
	Allowed  bool
	Required Tier
	Actual   Tier
	Reason   string
}

// EffectiveTier maps a session to its tier. A nil session or one without
// a user id is a visitor; premium requires both the premium tier and the
// active status.
func EffectiveTier(s *Session) Tier {
	if s == nil || s.UserID == "" {
		return TierVisitor
	}
	if s.SubscriptionTier == subscription.TierPremium && s.SubscriptionStatus == subscription.StatusActive {
		return TierPremium
	}
	return TierFree
}

// Enforce checks the session's tier against required.
func Enforce(required Tier, s *Session) Decision {
	actual := EffectiveTier(s)
	d := Decision{
		Allowed:  actual.AtLeast(required),
		Required: required,
		Actual:   actual,
	}
	if !d.Allowed {
		d.Reason = fmt.Sprintf("Requires %s tier (current: %s)", required, actual)
	}
	return d
}
