package subscription

import (
	"context"
	"time"
)

// Repository is the only path to subscription state. Writes for the same
// user are last-writer-wins; use a Locker to serialize multi-step updates.
type Repository interface {
	// Get returns (nil, nil) when the user has no record.
	Get(ctx context.Context, userID string) (*Record, error)

	// UpgradeToPremium upserts premium/active and clears any cancellation.
	// A new record gets a period end PeriodLength from now; an existing
	// record keeps its period end.
	UpgradeToPremium(ctx context.Context, userID string) (*Record, error)

	// ScheduleCancellation sets status canceled with the given effective
	// time and leaves the tier alone. Without a record it does nothing.
	ScheduleCancellation(ctx context.Context, userID string, when time.Time) error

	// ApplyCancellationIfDue reverts the record to free/none when the
	// scheduled cancellation is at or before now, and reports whether it did.
	ApplyCancellationIfDue(ctx context.Context, userID string, now time.Time) (bool, error)

	// AttachCustomer stores the payment provider customer id. Without a
	// record it does nothing.
	AttachCustomer(ctx context.Context, userID, customerID string) error
}
