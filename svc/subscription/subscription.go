// Package subscription stores one subscription record per user and
// serializes per-user mutations.
//
// A record is created on the first upgrade and is never deleted;
// cancellation reverts it to free/none. Premium with a scheduled
// cancellation (status canceled) is a legal transient state until
// ApplyCancellationIfDue runs past the scheduled time.
package subscription

import "time"

// Tier is the stored plan tier.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Status is the stored lifecycle status.
type Status string

const (
	StatusNone     Status = "none"
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
)

// PeriodLength is the billing period assigned when a record is first upgraded.
const PeriodLength = 30 * 24 * time.Hour

// Record is the persisted subscription state of a user.
type Record struct {
	UserID                  string     `json:"userId"`
	Tier                    Tier       `json:"tier"`
	Status                  Status     `json:"status"`
	CurrentPeriodEnd        *time.Time `json:"currentPeriodEnd,omitempty"`
	CancellationScheduledAt *time.Time `json:"cancellationScheduledAt,omitempty"`
	CanceledAt              *time.Time `json:"canceledAt,omitempty"`
	CustomerID              string     `json:"customerId,omitempty"`
	UpdatedAt               time.Time  `json:"updatedAt"`
}

// IsPremiumActive reports premium tier with active status.
func (r *Record) IsPremiumActive() bool {
	return r != nil && r.Tier == TierPremium && r.Status == StatusActive
}

// IsCancellationPending reports a scheduled but not yet applied cancellation.
func (r *Record) IsCancellationPending() bool {
	return r != nil && r.CancellationScheduledAt != nil
}

func (r *Record) clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.CurrentPeriodEnd = cloneTime(r.CurrentPeriodEnd)
	c.CancellationScheduledAt = cloneTime(r.CancellationScheduledAt)
	c.CanceledAt = cloneTime(r.CanceledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
