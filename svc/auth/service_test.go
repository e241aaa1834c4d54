package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/tiergate/db/dbtest"
	"github.com/dmitrymomot/tiergate/pkg/email"
	"github.com/dmitrymomot/tiergate/svc/auth"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendEmail(ctx context.Context, params email.SendEmailParams) error {
	return m.Called(ctx, params).Error(0)
}

func newService(t *testing.T, opts ...auth.ServiceOption) (*auth.Service, *auth.MemoryUserStore) {
	t.Helper()
	store := auth.NewMemoryUserStore()
	opts = append([]auth.ServiceOption{auth.WithPasswordCost(bcrypt.MinCost)}, opts...)
	return auth.NewService(store, newTokens(t), opts...), store
}

func TestService_Register(t *testing.T) {
	t.Parallel()

	t.Run("creates user and sends welcome email", func(t *testing.T) {
		t.Parallel()
		sender := &mockSender{}
		sender.On("SendEmail", mock.Anything, mock.MatchedBy(func(p email.SendEmailParams) bool {
			return p.SendTo == "new@example.com" && p.Subject == "Welcome to Acme" && p.Tag == "welcome"
		})).Return(nil).Once()

		svc, store := newService(t, auth.WithMailer(sender), auth.WithAppName("Acme"))
		u, err := svc.Register(context.Background(), "  New@Example.com ", "longenough")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, u.ID)
		assert.Equal(t, "new@example.com", u.Email)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("longenough")))

		stored, err := store.FindByEmail(context.Background(), "NEW@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, stored.ID)
		sender.AssertExpectations(t)
	})

	t.Run("email failure does not fail registration", func(t *testing.T) {
		t.Parallel()
		sender := &mockSender{}
		sender.On("SendEmail", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

		svc, _ := newService(t, auth.WithMailer(sender))
		_, err := svc.Register(context.Background(), "x@example.com", "longenough")
		assert.NoError(t, err)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		_, err := svc.Register(context.Background(), "not-an-email", "longenough")
		assert.ErrorIs(t, err, auth.ErrInvalidInput)
		_, err = svc.Register(context.Background(), "a@example.com", "")
		assert.ErrorIs(t, err, auth.ErrInvalidInput)
		_, err = svc.Register(context.Background(), "a@example.com", "short")
		assert.ErrorIs(t, err, auth.ErrWeakPassword)
		_, err = svc.Register(context.Background(), "a@example.com", "пароль12")
		assert.NoError(t, err, "length counts runes")
	})

	t.Run("duplicate email", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		_, err := svc.Register(context.Background(), "dup@example.com", "longenough")
		require.NoError(t, err)
		_, err = svc.Register(context.Background(), "DUP@example.com", "longenough")
		assert.ErrorIs(t, err, auth.ErrEmailInUse)
	})
}

func TestService_Login(t *testing.T) {
	t.Parallel()

	now := time.Now()
	svc, _ := newService(t, auth.WithSessionTTL(2*time.Hour), auth.WithServiceClock(func() time.Time { return now }))
	tokens := newTokens(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "login@example.com", "correct horse")
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		token, got, err := svc.Login(ctx, "Login@Example.com", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		var claims auth.SessionClaims
		require.NoError(t, tokens.Parse(token, &claims))
		assert.Equal(t, u.ID.String(), claims.Subject)
		assert.Equal(t, "login@example.com", claims.Email)
		assert.WithinDuration(t, now.Add(2*time.Hour), claims.ExpiresAt.Time, time.Second)
		assert.Equal(t, 2*time.Hour, svc.SessionTTL())
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()
		_, _, err := svc.Login(ctx, "login@example.com", "wrong password")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		t.Parallel()
		_, _, err := svc.Login(ctx, "ghost@example.com", "correct horse")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		_, _, err := svc.Login(ctx, "", "")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}

func TestPgUserStore(t *testing.T) {
	t.Parallel()

	store := auth.NewPgUserStore(dbtest.Pool(t))
	ctx := context.Background()
	emailAddr := "pg-" + uuid.NewString() + "@example.com"

	u := &auth.User{ID: uuid.New(), Email: emailAddr, PasswordHash: "hash", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Create(ctx, u))

	got, err := store.FindByEmail(ctx, "PG-"+emailAddr[3:])
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	dup := &auth.User{ID: uuid.New(), Email: emailAddr, PasswordHash: "x", CreatedAt: time.Now().UTC()}
	assert.ErrorIs(t, store.Create(ctx, dup), auth.ErrEmailInUse)

	_, err = store.FindByEmail(ctx, "missing-"+uuid.NewString()+"@example.com")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}
