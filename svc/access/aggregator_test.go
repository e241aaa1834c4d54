package access_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tiergate/svc/access"
	"github.com/dmitrymomot/tiergate/svc/auth"
	"github.com/dmitrymomot/tiergate/svc/subscription"
)

type mockReader struct {
	mock.Mock
}

func (m *mockReader) Get(ctx context.Context, userID string) (*subscription.Record, error) {
	args := m.Called(ctx, userID)
	rec, _ := args.Get(0).(*subscription.Record)
	return rec, args.Error(1)
}

type staticResolver struct {
	session *auth.Session
}

func (s staticResolver) Resolve(*http.Request) *auth.Session { return s.session }

func newRequest(headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestAggregator_HeaderOverrides(t *testing.T) {
	t.Parallel()

	t.Run("explicit premium marker wins over storage", func(t *testing.T) {
		t.Parallel()
		repo := &mockReader{}
		agg := access.NewAggregator(repo, staticResolver{})

		st := agg.DeriveState(newRequest(map[string]string{
			access.HeaderUserID:      "u1",
			access.HeaderUserPremium: "true",
		}))
		assert.True(t, st.Authenticated)
		assert.Equal(t, access.TierPremium, st.Tier)
		assert.Nil(t, st.Subscription)
		repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("non-true premium marker means free", func(t *testing.T) {
		t.Parallel()
		repo := &mockReader{}
		agg := access.NewAggregator(repo, staticResolver{})

		st := agg.DeriveState(newRequest(map[string]string{
			access.HeaderUserID:      "u1",
			access.HeaderUserPremium: "false",
		}))
		assert.Equal(t, access.TierFree, st.Tier)
		assert.Equal(t, subscription.StatusNone, st.RawSession.SubscriptionStatus)
		repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("user marker alone consults storage", func(t *testing.T) {
		t.Parallel()
		end := time.Now().Add(24 * time.Hour)
		repo := &mockReader{}
		repo.On("Get", mock.Anything, "u1").Return(&subscription.Record{
			UserID:           "u1",
			Tier:             subscription.TierPremium,
			Status:           subscription.StatusActive,
			CurrentPeriodEnd: &end,
		}, nil).Once()
		agg := access.NewAggregator(repo, staticResolver{})

		st := agg.DeriveState(newRequest(map[string]string{access.HeaderUserID: "u1"}))
		assert.Equal(t, access.TierPremium, st.Tier)
		require.NotNil(t, st.Subscription)
		assert.Equal(t, &end, st.Subscription.CurrentPeriodEnd)
		assert.False(t, st.Subscription.CancellationPending)
		repo.AssertExpectations(t)
	})

	t.Run("scheduled cancellation is reported", func(t *testing.T) {
		t.Parallel()
		when := time.Now().Add(time.Hour)
		repo := &mockReader{}
		repo.On("Get", mock.Anything, "u1").Return(&subscription.Record{
			UserID:                  "u1",
			Tier:                    subscription.TierPremium,
			Status:                  subscription.StatusCanceled,
			CancellationScheduledAt: &when,
		}, nil).Once()
		agg := access.NewAggregator(repo, staticResolver{})

		st := agg.DeriveState(newRequest(map[string]string{access.HeaderUserID: "u1"}))
		assert.Equal(t, access.TierFree, st.Tier)
		require.NotNil(t, st.Subscription)
		assert.True(t, st.Subscription.CancellationPending)
	})

	t.Run("user marker without record is free", func(t *testing.T) {
		t.Parallel()
		repo := &mockReader{}
		repo.On("Get", mock.Anything, "u1").Return(nil, nil).Once()
		agg := access.NewAggregator(repo, staticResolver{})

		st := agg.DeriveState(newRequest(map[string]string{access.HeaderUserID: "u1"}))
		assert.True(t, st.Authenticated)
		assert.Equal(t, access.TierFree, st.Tier)
		assert.Nil(t, st.Subscription)
	})

	t.Run("overrides disabled fall through to resolver", func(t *testing.T) {
		t.Parallel()
		repo := &mockReader{}
		agg := access.NewAggregator(repo, staticResolver{}, access.WithHeaderOverrides(false))

		st := agg.DeriveState(newRequest(map[string]string{
			access.HeaderUserID:      "u1",
			access.HeaderUserPremium: "true",
		}))
		assert.False(t, st.Authenticated)
		assert.Equal(t, access.TierVisitor, st.Tier)
		assert.Nil(t, st.RawSession)
	})
}

func TestAggregator_Resolver(t *testing.T) {
	t.Parallel()

	t.Run("no identity is visitor", func(t *testing.T) {
		t.Parallel()
		repo := &mockReader{}
		st := access.NewAggregator(repo, staticResolver{}).DeriveState(newRequest(nil))
		assert.False(t, st.Authenticated)
		assert.Equal(t, access.TierVisitor, st.Tier)
		repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("resolved session enriched from storage", func(t *testing.T) {
		t.Parallel()
		repo := &mockReader{}
		repo.On("Get", mock.Anything, "u2").Return(&subscription.Record{
			UserID: "u2",
			Tier:   subscription.TierPremium,
			Status: subscription.StatusCanceled,
		}, nil)
		resolver := staticResolver{session: &auth.Session{UserID: "u2", Email: "u2@example.com", Role: auth.RoleUser}}

		st := access.NewAggregator(repo, resolver).DeriveState(newRequest(nil))
		assert.True(t, st.Authenticated)
		assert.Equal(t, access.TierFree, st.Tier, "canceled premium is not premium")
		assert.Equal(t, "u2@example.com", st.RawSession.Email)
		assert.NotNil(t, st.Subscription)
	})

	t.Run("storage failure degrades to free", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		repo := &mockReader{}
		repo.On("Get", mock.Anything, "u3").Return(nil, errors.Join(subscription.ErrStorage, errors.New("conn reset")))
		resolver := staticResolver{session: &auth.Session{UserID: "u3"}}

		agg := access.NewAggregator(repo, resolver, access.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
		st := agg.DeriveState(newRequest(nil))
		assert.True(t, st.Authenticated)
		assert.Equal(t, access.TierFree, st.Tier)
		assert.Equal(t, subscription.TierFree, st.RawSession.SubscriptionTier)
		assert.Nil(t, st.Subscription)
		assert.Contains(t, buf.String(), "level=WARN")
	})
}

func TestAggregator_WithMemoryRepository(t *testing.T) {
	t.Parallel()

	repo := subscription.NewMemoryRepository()
	agg := access.NewAggregator(repo, staticResolver{})
	r := newRequest(map[string]string{access.HeaderUserID: "u1"})

	assert.Equal(t, access.TierFree, agg.DeriveState(r).Tier)

	_, err := repo.UpgradeToPremium(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, access.TierPremium, agg.DeriveState(r).Tier)

	require.NoError(t, repo.ScheduleCancellation(context.Background(), "u1", time.Now()))
	_, err = repo.ApplyCancellationIfDue(context.Background(), "u1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, access.TierFree, agg.DeriveState(r).Tier)
}
