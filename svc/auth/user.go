package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is a credentials account.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserStore persists users. Emails are compared case-insensitively.
type UserStore interface {
	// Create inserts u. A taken email yields ErrEmailInUse.
	Create(ctx context.Context, u *User) error
	// FindByEmail returns ErrUserNotFound when no user matches.
	FindByEmail(ctx context.Context, email string) (*User, error)
}
