package api

import (
	"net/http"

	"github.com/dmitrymomot/tiergate/handler"
	"github.com/dmitrymomot/tiergate/pkg/audit"
	"github.com/dmitrymomot/tiergate/svc/access"
)

const premiumExampleFeature = "premium-example"

func actorOf(st access.State) []audit.EventOption {
	if st.RawSession == nil || st.RawSession.UserID == "" {
		return nil
	}
	return []audit.EventOption{audit.WithActor(st.RawSession.UserID)}
}

func (s *Server) premiumExample() http.HandlerFunc {
	return wrap(s, func(ctx handler.Context, _ struct{}) handler.Response {
		st := s.deps.Aggregator.DeriveState(ctx.Request())
		decision := access.Enforce(s.deps.FeatureTier, st.RawSession)
		if !decision.Allowed {
			s.deps.Audit.Record(ctx, "feature.access.denied", append(actorOf(st),
				audit.Failed(),
				audit.WithDetail("feature", premiumExampleFeature),
				audit.WithDetail("reason", decision.Reason),
			)...)
			return handler.JSONError(errUpgradeRequired.WithMeta(map[string]any{"reason": decision.Reason}))
		}

		s.deps.Audit.Record(ctx, "feature.access.granted", append(actorOf(st),
			audit.WithDetail("feature", premiumExampleFeature),
		)...)
		return handler.JSON(map[string]string{
			"feature": premiumExampleFeature,
			"message": "Premium content unlocked!",
		})
	})
}
