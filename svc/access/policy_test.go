package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tiergate/svc/access"
	"github.com/dmitrymomot/tiergate/svc/subscription"
)

func TestEffectiveTier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		session *access.Session
		want    access.Tier
	}{
		{"nil session", nil, access.TierVisitor},
		{"no user id", &access.Session{SubscriptionTier: subscription.TierPremium, SubscriptionStatus: subscription.StatusActive}, access.TierVisitor},
		{"user without subscription", &access.Session{UserID: "u1"}, access.TierFree},
		{"premium active", &access.Session{UserID: "u1", SubscriptionTier: subscription.TierPremium, SubscriptionStatus: subscription.StatusActive}, access.TierPremium},
		{"premium canceled", &access.Session{UserID: "u1", SubscriptionTier: subscription.TierPremium, SubscriptionStatus: subscription.StatusCanceled}, access.TierFree},
		{"premium none", &access.Session{UserID: "u1", SubscriptionTier: subscription.TierPremium, SubscriptionStatus: subscription.StatusNone}, access.TierFree},
		{"free active", &access.Session{UserID: "u1", SubscriptionTier: subscription.TierFree, SubscriptionStatus: subscription.StatusActive}, access.TierFree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, access.EffectiveTier(tt.session))
		})
	}
}

func TestEnforce(t *testing.T) {
	t.Parallel()

	t.Run("free user denied premium", func(t *testing.T) {
		t.Parallel()
		d := access.Enforce(access.TierPremium, &access.Session{UserID: "x"})
		assert.False(t, d.Allowed)
		assert.Equal(t, access.TierPremium, d.Required)
		assert.Equal(t, access.TierFree, d.Actual)
		assert.Equal(t, "Requires premium tier (current: free)", d.Reason)
	})

	t.Run("visitor denied free", func(t *testing.T) {
		t.Parallel()
		d := access.Enforce(access.TierFree, nil)
		assert.False(t, d.Allowed)
		assert.Equal(t, "Requires free tier (current: visitor)", d.Reason)
	})

	t.Run("allowed has no reason", func(t *testing.T) {
		t.Parallel()
		d := access.Enforce(access.TierVisitor, nil)
		assert.True(t, d.Allowed)
		assert.Empty(t, d.Reason)
	})

	t.Run("unknown requirement is denied", func(t *testing.T) {
		t.Parallel()
		premium := &access.Session{UserID: "x", SubscriptionTier: subscription.TierPremium, SubscriptionStatus: subscription.StatusActive}
		assert.False(t, access.Enforce(access.Tier("enterprise"), premium).Allowed)
	})

	t.Run("monotonic", func(t *testing.T) {
		t.Parallel()
		tiers := []access.Tier{access.TierVisitor, access.TierFree, access.TierPremium}
		sessions := []*access.Session{
			nil,
			{UserID: "u"},
			{UserID: "u", SubscriptionTier: subscription.TierPremium, SubscriptionStatus: subscription.StatusActive},
		}
		for _, s := range sessions {
			for i, hi := range tiers {
				if !access.Enforce(hi, s).Allowed {
					continue
				}
				for _, lo := range tiers[:i] {
					assert.True(t, access.Enforce(lo, s).Allowed, "allowed %s implies allowed %s", hi, lo)
				}
			}
		}
	})
}

func TestTier(t *testing.T) {
	t.Parallel()

	assert.Less(t, access.TierVisitor.Rank(), access.TierFree.Rank())
	assert.Less(t, access.TierFree.Rank(), access.TierPremium.Rank())
	assert.Equal(t, -1, access.Tier("gold").Rank())

	for _, name := range []string{"visitor", "free", "premium"} {
		tier, err := access.ParseTier(name)
		require.NoError(t, err)
		assert.Equal(t, name, tier.String())
	}
	_, err := access.ParseTier("Premium")
	assert.ErrorIs(t, err, access.ErrUnknownTier)
}
