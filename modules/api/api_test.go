package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/tiergate/modules/api"
	"github.com/dmitrymomot/tiergate/pkg/audit"
	"github.com/dmitrymomot/tiergate/pkg/environment"
	"github.com/dmitrymomot/tiergate/pkg/jwt"
	"github.com/dmitrymomot/tiergate/pkg/ratelimiter"
	"github.com/dmitrymomot/tiergate/pkg/requestid"
	"github.com/dmitrymomot/tiergate/svc/access"
	"github.com/dmitrymomot/tiergate/svc/auth"
	"github.com/dmitrymomot/tiergate/svc/billing"
	"github.com/dmitrymomot/tiergate/svc/subscription"
	"github.com/dmitrymomot/tiergate/svc/webhook"
)

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
	Meta map[string]any `json:"meta"`
}

type testApp struct {
	handler http.Handler
	repo    *subscription.MemoryRepository
	audit   *audit.Logger
	ledger  *webhook.MemoryLedger
}

type appOption func(*api.Dependencies)

func withBilling(cfg billing.Config) appOption {
	return func(d *api.Dependencies) { d.BillingConfig = cfg }
}

func withLimiter(l ratelimiter.Limiter) appOption {
	return func(d *api.Dependencies) { d.RegisterLimiter = l }
}

func stripeConfig() billing.Config {
	return billing.Config{
		PublicKey:      "pk_test_1",
		SecretKey:      "sk_test_1",
		WebhookSecret:  "whsec_1",
		PremiumPriceID: "price_1",
	}
}

func newApp(t *testing.T, opts ...appOption) *testApp {
	t.Helper()

	tokens, err := jwt.NewFromString("test-secret-test-secret-test-secret")
	require.NoError(t, err)

	repo := subscription.NewMemoryRepository()
	ledger := webhook.NewMemoryLedger()
	auditLog := audit.NewLogger(audit.NewMemoryStorage(0), audit.WithRequestIDExtractor(requestid.Lookup))
	resolver := auth.NewResolver(tokens, auth.WithDevBearer(true))

	deps := api.Dependencies{
		Env:           environment.Development,
		Aggregator:    access.NewAggregator(repo, resolver),
		Resolver:      resolver,
		Accounts:      auth.NewService(auth.NewMemoryUserStore(), tokens, auth.WithPasswordCost(bcrypt.MinCost)),
		Subscriptions: repo,
		Billing:       billing.NewMockProvider("http://localhost:3000", "price_1"),
		WebhookParser: webhook.NewDevParser(),
		Webhooks:      webhook.NewProcessor(repo, ledger, webhook.WithAuditor(auditLog)),
		Audit:         auditLog,
		Setup:         api.SetupStatus{Database: true},
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &testApp{
		handler: api.NewServer(deps).Router(),
		repo:    repo,
		audit:   auditLog,
		ledger:  ledger,
	}
}

func (a *testApp) do(t *testing.T, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, r)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (a *testApp) actions(t *testing.T, prefix string) []audit.Event {
	t.Helper()
	events, err := a.audit.Query(context.Background(), audit.Criteria{ActionPrefix: prefix})
	require.NoError(t, err)
	return events
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func bearer(userID string) map[string]string {
	return map[string]string{"Authorization": "Bearer test:" + userID}
}

func TestHealth(t *testing.T) {
	t.Parallel()
	app := newApp(t)

	w, _ := app.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, _ = app.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	app := newApp(t)

	w, env := app.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestAuthStatus(t *testing.T) {
	t.Parallel()
	app := newApp(t)

	type status struct {
		Authenticated bool   `json:"authenticated"`
		Tier          string `json:"tier"`
		User          *struct {
			ID string `json:"id"`
		} `json:"user"`
	}

	_, env := app.do(t, http.MethodGet, "/api/auth/status", "", nil)
	require.True(t, env.OK)
	got := decode[status](t, env.Data)
	assert.False(t, got.Authenticated)
	assert.Equal(t, "visitor", got.Tier)
	assert.Nil(t, got.User)

	_, env = app.do(t, http.MethodGet, "/api/auth/status", "", map[string]string{
		access.HeaderUserID:      "u1",
		access.HeaderUserPremium: "true",
	})
	got = decode[status](t, env.Data)
	assert.True(t, got.Authenticated)
	assert.Equal(t, "premium", got.Tier)
	require.NotNil(t, got.User)
	assert.Equal(t, "u1", got.User.ID)

	_, env = app.do(t, http.MethodGet, "/api/auth/status", "", bearer("u2"))
	got = decode[status](t, env.Data)
	assert.Equal(t, "free", got.Tier)
}

func TestPremiumFeature(t *testing.T) {
	t.Parallel()
	app := newApp(t)

	w, env := app.do(t, http.MethodGet, "/api/feature/premium-example", "", bearer("u1"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UPGRADE_REQUIRED", env.Error.Code)
	assert.Equal(t, "Upgrade required", env.Error.Message)
	assert.Equal(t, "Requires premium tier (current: free)", env.Meta["reason"])

	denied := app.actions(t, "feature.access.denied")
	require.Len(t, denied, 1)
	assert.False(t, denied[0].OK)
	assert.Equal(t, "u1", denied[0].Actor)

	_, err := app.repo.UpgradeToPremium(context.Background(), "u1")
	require.NoError(t, err)

	w, env = app.do(t, http.MethodGet, "/api/feature/premium-example", "", bearer("u1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{
		"feature": "premium-example",
		"message": "Premium content unlocked!",
	}, decode[map[string]string](t, env.Data))
	assert.Len(t, app.actions(t, "feature.access.granted"), 1)
}

func TestFeatureTierIsConfigurable(t *testing.T) {
	t.Parallel()
	app := newApp(t, func(d *api.Dependencies) { d.FeatureTier = access.TierFree })

	w, env := app.do(t, http.MethodGet, "/api/feature/premium-example", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Requires free tier (current: visitor)", env.Meta["reason"])

	w, _ = app.do(t, http.MethodGet, "/api/feature/premium-example", "", bearer("u1"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheckout(t *testing.T) {
	t.Parallel()

	t.Run("unauthorized", func(t *testing.T) {
		t.Parallel()
		app := newApp(t, withBilling(stripeConfig()))
		w, env := app.do(t, http.MethodPost, "/api/subscriptions/checkout", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
	})

	t.Run("already premium checked before stripe config", func(t *testing.T) {
		t.Parallel()
		app := newApp(t)
		w, env := app.do(t, http.MethodPost, "/api/subscriptions/checkout", "", map[string]string{
			access.HeaderUserID:      "u1",
			access.HeaderUserPremium: "true",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "ALREADY_PREMIUM", env.Error.Code)
	})

	t.Run("stripe not configured", func(t *testing.T) {
		t.Parallel()
		app := newApp(t)
		w, env := app.do(t, http.MethodPost, "/api/subscriptions/checkout", "", bearer("u1"))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "STRIPE_NOT_CONFIGURED", env.Error.Code)

		denied := app.actions(t, "subscription.checkout.denied")
		require.Len(t, denied, 1)
		assert.Equal(t, "stripe-not-configured", denied[0].Details["reason"])
	})

	t.Run("mock session", func(t *testing.T) {
		t.Parallel()
		app := newApp(t, withBilling(stripeConfig()))
		w, env := app.do(t, http.MethodPost, "/api/subscriptions/checkout", "", bearer("u1"))
		require.Equal(t, http.StatusOK, w.Code)
		s := decode[billing.Session](t, env.Data)
		assert.True(t, strings.HasPrefix(s.ID, "cs_test_"))
		assert.Equal(t, "http://localhost:3000/mock/checkout?price=price_1", s.URL)
		assert.Len(t, app.actions(t, "subscription.checkout.requested"), 1)
	})
}

func TestPortal(t *testing.T) {
	t.Parallel()

	t.Run("stripe not configured wins over auth", func(t *testing.T) {
		t.Parallel()
		app := newApp(t)
		w, env := app.do(t, http.MethodPost, "/api/subscriptions/portal", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "STRIPE_NOT_CONFIGURED", env.Error.Code)
		assert.Equal(t, "Stripe is not configured yet. See docs to enable billing.", env.Error.Message)
	})

	t.Run("unauthorized", func(t *testing.T) {
		t.Parallel()
		app := newApp(t, withBilling(stripeConfig()))
		w, _ := app.do(t, http.MethodPost, "/api/subscriptions/portal", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("not premium", func(t *testing.T) {
		t.Parallel()
		app := newApp(t, withBilling(stripeConfig()))
		w, env := app.do(t, http.MethodPost, "/api/subscriptions/portal", "", bearer("u1"))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "NOT_PREMIUM", env.Error.Code)
	})

	t.Run("premium gets portal", func(t *testing.T) {
		t.Parallel()
		app := newApp(t, withBilling(stripeConfig()))
		_, err := app.repo.UpgradeToPremium(context.Background(), "u1")
		require.NoError(t, err)

		w, env := app.do(t, http.MethodPost, "/api/subscriptions/portal", "", bearer("u1"))
		require.Equal(t, http.StatusOK, w.Code)
		s := decode[billing.Session](t, env.Data)
		assert.True(t, strings.HasPrefix(s.ID, "bps_test_"))
		assert.Len(t, app.actions(t, "subscription.portal.requested"), 1)
	})
}

func TestStripeWebhook(t *testing.T) {
	t.Parallel()
	app := newApp(t)

	type result struct {
		OK      bool   `json:"ok"`
		Type    string `json:"type"`
		Ignored bool   `json:"ignored"`
	}

	body := `{"id":"evt_1","type":"customer.subscription.created","data":{"object":{"metadata":{"userId":"u1"}}}}`
	w, env := app.do(t, http.MethodPost, "/api/webhooks/stripe", body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[result](t, env.Data)
	assert.Equal(t, result{OK: true, Type: "customer.subscription.created"}, res)

	rec, err := app.repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, rec.IsPremiumActive())

	_, env = app.do(t, http.MethodPost, "/api/webhooks/stripe", body, nil)
	assert.True(t, decode[result](t, env.Data).Ignored)
	assert.Equal(t, 1, app.ledger.Len())

	w, env = app.do(t, http.MethodPost, "/api/webhooks/stripe", `{broken`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "WEBHOOK_ERROR", env.Error.Code)
	assert.Equal(t, "Webhook processing failed", env.Error.Message)
	assert.NotEmpty(t, env.Error.Details["detail"])

	big := `{"id":"evt_big","type":"x","data":{"object":{"pad":"` + strings.Repeat("a", int(api.MaxWebhookBytes)) + `"}}}`
	w, _ = app.do(t, http.MethodPost, "/api/webhooks/stripe", big, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

type failingRepo struct {
	*subscription.MemoryRepository
}

func (failingRepo) UpgradeToPremium(context.Context, string) (*subscription.Record, error) {
	return nil, subscription.ErrStorage
}

func TestStripeWebhook_StoreError(t *testing.T) {
	t.Parallel()

	ledger := webhook.NewMemoryLedger()
	app := newApp(t, func(d *api.Dependencies) {
		d.Webhooks = webhook.NewProcessor(failingRepo{subscription.NewMemoryRepository()}, ledger)
	})

	body := `{"id":"evt_s","type":"customer.subscription.updated","data":{"object":{"metadata":{"userId":"u1"}}}}`
	w, env := app.do(t, http.MethodPost, "/api/webhooks/stripe", body, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "WEBHOOK_STORE_ERROR", env.Error.Code)
	assert.Zero(t, ledger.Len())
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()
	app := newApp(t)

	w, env := app.do(t, http.MethodPost, "/api/auth/register", `{"email":"a@example.com","password":"longenough"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[map[string]string](t, env.Data)
	assert.NotEmpty(t, created["id"])
	assert.Len(t, app.actions(t, "auth.registered"), 1)

	w, env = app.do(t, http.MethodPost, "/api/auth/register", `{"email":"A@example.com","password":"longenough"}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "EMAIL_IN_USE", env.Error.Code)

	w, env = app.do(t, http.MethodPost, "/api/auth/register", `{"email":"b@example.com","password":"short"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "WEAK_PASSWORD", env.Error.Code)

	w, env = app.do(t, http.MethodPost, "/api/auth/register", `{"email":"b@example.com"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)

	w, env = app.do(t, http.MethodPost, "/api/auth/register", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)

	w, env = app.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@example.com","password":"wrong-password"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)

	w, env = app.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@example.com","password":"longenough"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":{"id":"`+created["id"]+`","email":"a@example.com"}}`, string(env.Data))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	r := httptest.NewRequest(http.MethodGet, "/api/auth/status", nil)
	r.AddCookie(cookies[0])
	sw := httptest.NewRecorder()
	app.handler.ServeHTTP(sw, r)
	assert.Contains(t, sw.Body.String(), `"authenticated":true`)
	assert.Contains(t, sw.Body.String(), created["id"])

	w, _ = app.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	cookies = w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestRegisterRateLimit(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore()
	t.Cleanup(store.Close)
	bucket, err := ratelimiter.NewBucket(store, ratelimiter.PerWindow(2, time.Minute))
	require.NoError(t, err)
	app := newApp(t, withLimiter(bucket))

	for i, email := range []string{"r1@example.com", "r2@example.com"} {
		w, _ := app.do(t, http.MethodPost, "/api/auth/register", `{"email":"`+email+`","password":"longenough"}`, nil)
		assert.Equal(t, http.StatusCreated, w.Code, "request %d", i)
	}

	w, env := app.do(t, http.MethodPost, "/api/auth/register", `{"email":"r3@example.com","password":"longenough"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", env.Error.Code)

	w, _ = app.do(t, http.MethodPost, "/api/auth/register", `{"email":"r4@example.com","password":"longenough"}`, map[string]string{
		"X-Forwarded-For": "203.0.113.9",
	})
	assert.Equal(t, http.StatusCreated, w.Code, "limit is per client ip")
}

func TestAdmin(t *testing.T) {
	t.Parallel()
	app := newApp(t, withBilling(stripeConfig()))

	w, _ := app.do(t, http.MethodGet, "/api/admin/activity", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := app.do(t, http.MethodGet, "/api/admin/activity", "", bearer("u1"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	for range 3 {
		app.do(t, http.MethodGet, "/api/feature/premium-example", "", bearer("u1"))
	}
	app.do(t, http.MethodGet, "/api/feature/premium-example", "", bearer("u2"))

	type activity struct {
		Events []audit.Event `json:"events"`
	}

	w, env = app.do(t, http.MethodGet, "/api/admin/activity?limit=2&action=feature.&actor=u1", "", bearer("admin"))
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[activity](t, env.Data)
	require.Len(t, got.Events, 2)
	for _, e := range got.Events {
		assert.Equal(t, "u1", e.Actor)
		assert.Equal(t, "feature.access.denied", e.Action)
		assert.NotEmpty(t, e.RequestID)
	}

	w, env = app.do(t, http.MethodGet, "/api/admin/activity?limit=abc", "", bearer("admin"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)

	type checklist struct {
		Items []struct {
			Key  string `json:"key"`
			Done bool   `json:"done"`
		} `json:"items"`
	}
	w, env = app.do(t, http.MethodGet, "/api/admin/setup", "", bearer("admin"))
	require.Equal(t, http.StatusOK, w.Code)
	done := map[string]bool{}
	for _, it := range decode[checklist](t, env.Data).Items {
		done[it.Key] = it.Done
	}
	assert.Equal(t, map[string]bool{
		"database":                  true,
		"stripe_keys":               true,
		"stripe_webhook_secret":     true,
		"stripe_price_id":           true,
		"billing_portal_return_url": false,
		"email_sender":              false,
	}, done)
}
