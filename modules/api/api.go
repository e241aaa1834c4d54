// Package api wires the HTTP routes of the service onto a chi router.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/dmitrymomot/tiergate/handler"
	"github.com/dmitrymomot/tiergate/pkg/audit"
	"github.com/dmitrymomot/tiergate/pkg/clientip"
	"github.com/dmitrymomot/tiergate/pkg/environment"
	"github.com/dmitrymomot/tiergate/pkg/httpserver"
	"github.com/dmitrymomot/tiergate/pkg/logger"
	"github.com/dmitrymomot/tiergate/pkg/ratelimiter"
	"github.com/dmitrymomot/tiergate/pkg/requestid"
	"github.com/dmitrymomot/tiergate/svc/access"
	"github.com/dmitrymomot/tiergate/svc/auth"
	"github.com/dmitrymomot/tiergate/svc/billing"
	"github.com/dmitrymomot/tiergate/svc/webhook"
)

// MaxWebhookBytes caps inbound webhook bodies.
const MaxWebhookBytes int64 = 1 << 20

// SetupStatus reports infrastructure facts for the admin checklist.
type SetupStatus struct {
	Database bool
	Email    bool
}

// Dependencies are the collaborators the routes need. Logger and
// RegisterLimiter are optional; FeatureTier defaults to premium.
type Dependencies struct {
	Env             environment.Environment
	Logger          *slog.Logger
	Aggregator      *access.Aggregator
	Resolver        *auth.Resolver
	Accounts        *auth.Service
	Subscriptions   access.SubscriptionReader
	Billing         billing.Provider
	BillingConfig   billing.Config
	WebhookParser   webhook.Parser
	Webhooks        *webhook.Processor
	Audit           *audit.Logger
	RegisterLimiter ratelimiter.Limiter
	CookieName      string
	CORSOrigins     []string
	ReadyChecks     []httpserver.Check
	Setup           SetupStatus
	FeatureTier     access.Tier
}

// Server holds the route handlers.
type Server struct {
	deps Dependencies
	log  *slog.Logger
}

// NewServer creates a Server.
func NewServer(deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	if deps.Audit == nil {
		deps.Audit = audit.NewLogger(audit.NewMemoryStorage(0))
	}
	if deps.FeatureTier == "" {
		deps.FeatureTier = access.TierPremium
	}
	if deps.CookieName == "" {
		deps.CookieName = "session"
	}
	return &Server{deps: deps, log: log.With(logger.Component("api"))}
}

// wrap is handler.Wrap with the server's error handler.
func wrap[R any](s *Server, h handler.HandlerFunc[R], opts ...handler.WrapOption[R]) http.HandlerFunc {
	opts = append([]handler.WrapOption[R]{handler.WithErrorHandler[R](handler.DefaultErrorHandler(s.log))}, opts...)
	return handler.Wrap(h, opts...)
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestid.Middleware)
	r.Use(clientip.Middleware)
	r.Use(environment.Middleware(s.deps.Env))
	r.Use(middleware.Recoverer)
	if len(s.deps.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   s.deps.CORSOrigins,
			AllowCredentials: true,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{
				"Content-Type", "Authorization", "Stripe-Signature",
				requestid.Header, access.HeaderUserID, access.HeaderUserPremium,
			},
		}).Handler)
	}
	r.Use(requestLogger(s.log))
	r.Use(s.deps.Resolver.Middleware)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(s.log, 3*time.Second, s.deps.ReadyChecks...))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/status", s.status())
			r.With(s.registerLimit()).Post("/register", s.register())
			r.Post("/login", s.login())
			r.Post("/logout", s.logout())
		})
		r.Get("/feature/premium-example", s.premiumExample())
		r.Post("/subscriptions/checkout", s.checkout())
		r.Post("/subscriptions/portal", s.portal())
		r.Post("/webhooks/stripe", s.stripeWebhook())
		r.Route("/admin", func(r chi.Router) {
			r.Get("/activity", s.activity())
			r.Get("/setup", s.setup())
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = handler.JSONError(handler.ErrNotFound).Render(w, r)
	})
	return r
}

// registerLimit throttles registration per client IP.
func (s *Server) registerLimit() func(http.Handler) http.Handler {
	if s.deps.RegisterLimiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	keyFunc := func(r *http.Request) string {
		ip, ok := clientip.Lookup(r.Context())
		if !ok || ip == "" {
			return ""
		}
		return "register:" + ip
	}
	return ratelimiter.Middleware(s.deps.RegisterLimiter, keyFunc,
		ratelimiter.WithDenyHandler(func(w http.ResponseWriter, r *http.Request, _ *ratelimiter.Result) {
			_ = handler.JSONError(errRateLimited).Render(w, r)
		}),
		ratelimiter.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			s.log.ErrorContext(r.Context(), "rate limiter unavailable", logger.Error(err))
			_ = handler.JSONError(err).Render(w, r)
		}),
	)
}
