package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/tiergate/pkg/pg"
)

// PgRepository stores records in the subscriptions table.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a Postgres-backed Repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const recordColumns = `user_id, tier, status, current_period_end, cancellation_scheduled_at, canceled_at, COALESCE(customer_id, ''), updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		r            Record
		tier, status string
		periodEnd    *time.Time
		scheduled    *time.Time
		canceledAt   *time.Time
	)
	if err := row.Scan(&r.UserID, &tier, &status, &periodEnd, &scheduled, &canceledAt, &r.CustomerID, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Tier = Tier(tier)
	r.Status = Status(status)
	r.CurrentPeriodEnd = utcPtr(periodEnd)
	r.CancellationScheduledAt = utcPtr(scheduled)
	r.CanceledAt = utcPtr(canceledAt)
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func (p *PgRepository) Get(ctx context.Context, userID string) (*Record, error) {
	rec, err := scanRecord(p.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM subscriptions WHERE user_id = $1`, userID))
	if pg.IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return rec, nil
}

func (p *PgRepository) UpgradeToPremium(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	rec, err := scanRecord(p.pool.QueryRow(ctx, `
		INSERT INTO subscriptions (user_id, tier, status, current_period_end, cancellation_scheduled_at, canceled_at)
		VALUES ($1, 'premium', 'active', now() + interval '30 days', NULL, NULL)
		ON CONFLICT (user_id) DO UPDATE SET
			tier = 'premium',
			status = 'active',
			cancellation_scheduled_at = NULL,
			canceled_at = NULL,
			updated_at = now()
		RETURNING `+recordColumns, userID))
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return rec, nil
}

func (p *PgRepository) ScheduleCancellation(ctx context.Context, userID string, when time.Time) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE subscriptions
		SET status = 'canceled', cancellation_scheduled_at = $2, updated_at = now()
		WHERE user_id = $1`, userID, when.UTC())
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

func (p *PgRepository) ApplyCancellationIfDue(ctx context.Context, userID string, now time.Time) (bool, error) {
	var applied bool
	err := pg.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		var scheduled *time.Time
		err := tx.QueryRow(ctx,
			`SELECT cancellation_scheduled_at FROM subscriptions WHERE user_id = $1 FOR UPDATE`, userID,
		).Scan(&scheduled)
		if pg.IsNotFoundError(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if scheduled == nil || scheduled.After(now) {
			return nil
		}

		_, err = tx.Exec(ctx, `
			UPDATE subscriptions
			SET status = 'none', tier = 'free', canceled_at = $2, cancellation_scheduled_at = NULL, updated_at = now()
			WHERE user_id = $1`, userID, *scheduled)
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, errors.Join(ErrStorage, err)
	}
	return applied, nil
}

func (p *PgRepository) AttachCustomer(ctx context.Context, userID, customerID string) error {
	if customerID == "" {
		return nil
	}
	_, err := p.pool.Exec(ctx,
		`UPDATE subscriptions SET customer_id = $2, updated_at = now() WHERE user_id = $1`, userID, customerID)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}
