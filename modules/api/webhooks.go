package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dmitrymomot/tiergate/handler"
	"github.com/dmitrymomot/tiergate/pkg/logger"
)

func (s *Server) stripeWebhook() http.HandlerFunc {
	return wrap(s, func(ctx handler.Context, _ struct{}) handler.Response {
		start := time.Now()
		r := ctx.Request()

		payload, err := io.ReadAll(http.MaxBytesReader(ctx.ResponseWriter(), r.Body, MaxWebhookBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return handler.JSONError(handler.ErrTooLarge)
			}
			return handler.JSONError(errWebhook.WithDetails(map[string]any{"detail": err.Error()}))
		}

		ev, err := s.deps.WebhookParser.Parse(payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			s.log.WarnContext(ctx, "webhook rejected", logger.Error(err), logger.Duration(time.Since(start)))
			return handler.JSONError(errWebhook.WithDetails(map[string]any{"detail": err.Error()}))
		}

		res, err := s.deps.Webhooks.Process(ctx, ev)
		if err != nil {
			s.log.ErrorContext(ctx, "webhook not processed",
				logger.EventID(ev.ID),
				logger.EventType(ev.Type),
				logger.Error(err),
			)
			return handler.JSONError(errWebhookStore)
		}

		s.log.InfoContext(ctx, "webhook processed",
			logger.EventID(ev.ID),
			logger.EventType(ev.Type),
			logger.Duration(time.Since(start)),
			"ignored", res.Ignored,
		)
		return handler.JSON(res)
	})
}
