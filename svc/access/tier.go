// Package access derives the effective tier of a request and enforces
// tier requirements for gated features.
package access

import (
	"errors"
	"slices"
)

// Tier is the access level granted to a request.
type Tier string

const (
	TierVisitor Tier = "visitor"
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// ErrUnknownTier is returned by ParseTier for names outside the hierarchy.
var ErrUnknownTier = errors.New("access: unknown tier")

// hierarchy lists tiers from lowest to highest. New tiers go here.
var hierarchy = []Tier{TierVisitor, TierFree, TierPremium}

// Rank is the tier's position in the hierarchy, or -1 when unknown.
func (t Tier) Rank() int {
	return slices.Index(hierarchy, t)
}

// AtLeast reports whether t ranks at or above required. An unknown
// required tier is never satisfied.
func (t Tier) AtLeast(required Tier) bool {
	r := required.Rank()
	return r >= 0 && t.Rank() >= r
}

func (t Tier) String() string { return string(t) }

// ParseTier accepts only the known tier names.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if t.Rank() < 0 {
		return "", ErrUnknownTier
	}
	return t, nil
}
