package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/tiergate/pkg/pg"
)

// PgUserStore keeps users in the users table.
type PgUserStore struct {
	pool *pgxpool.Pool
}

// NewPgUserStore creates a store on pool.
func NewPgUserStore(pool *pgxpool.Pool) *PgUserStore {
	return &PgUserStore{pool: pool}
}

func (s *PgUserStore) Create(ctx context.Context, u *User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt,
	).Scan(&u.CreatedAt)
	switch {
	case err == nil:
		return nil
	case pg.IsDuplicateKeyError(err):
		return ErrEmailInUse
	default:
		return errors.Join(ErrStorage, err)
	}
}

func (s *PgUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE lower(email) = lower($1)`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	switch {
	case err == nil:
		return &u, nil
	case pg.IsNotFoundError(err):
		return nil, ErrUserNotFound
	default:
		return nil, errors.Join(ErrStorage, err)
	}
}
