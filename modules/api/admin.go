package api

import (
	"net/http"

	"github.com/dmitrymomot/tiergate/binder"
	"github.com/dmitrymomot/tiergate/handler"
	"github.com/dmitrymomot/tiergate/pkg/audit"
	"github.com/dmitrymomot/tiergate/svc/billing"
)

// requireAdmin answers 401 without a session and 403 for non-admins.
func requireAdmin[R any](s *Server) handler.Decorator[R] {
	return func(next handler.HandlerFunc[R]) handler.HandlerFunc[R] {
		return func(ctx handler.Context, req R) handler.Response {
			sess := s.deps.Resolver.Resolve(ctx.Request())
			if sess == nil {
				return handler.JSONError(handler.ErrUnauthorized)
			}
			if !sess.IsAdmin() {
				return handler.JSONError(handler.ErrForbidden)
			}
			return next(ctx, req)
		}
	}
}

type activityRequest struct {
	Limit  int    `query:"limit"`
	Action string `query:"action"`
	Actor  string `query:"actor"`
}

func (s *Server) activity() http.HandlerFunc {
	return wrap(s, func(ctx handler.Context, req activityRequest) handler.Response {
		events, err := s.deps.Audit.Query(ctx, audit.Criteria{
			ActionPrefix: req.Action,
			Actor:        req.Actor,
			Limit:        req.Limit,
		})
		if err != nil {
			return handler.JSONError(err)
		}
		return handler.JSON(map[string]any{"events": events})
	},
		handler.WithDecorators(requireAdmin[activityRequest](s)),
		handler.WithBinders[activityRequest](binder.BindQuery()),
	)
}

type setupItem struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Done  bool   `json:"done"`
}

func (s *Server) setup() http.HandlerFunc {
	return wrap(s, func(ctx handler.Context, _ struct{}) handler.Response {
		cfg := s.deps.BillingConfig
		items := []setupItem{
			{Key: "database", Label: "Database connected", Done: s.deps.Setup.Database},
			{Key: "stripe_keys", Label: "Stripe API keys", Done: billing.IsRealValue(cfg.PublicKey) && billing.IsRealValue(cfg.SecretKey)},
			{Key: "stripe_webhook_secret", Label: "Stripe webhook secret", Done: billing.IsRealValue(cfg.WebhookSecret)},
			{Key: "stripe_price_id", Label: "Premium price id", Done: billing.IsRealValue(cfg.PremiumPriceID)},
			{Key: "billing_portal_return_url", Label: "Billing portal return URL", Done: cfg.PortalReturnURL != ""},
			{Key: "email_sender", Label: "Email delivery", Done: s.deps.Setup.Email},
		}
		return handler.JSON(map[string]any{"items": items})
	}, handler.WithDecorators(requireAdmin[struct{}](s)))
}
