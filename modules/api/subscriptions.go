package api

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/tiergate/handler"
	"github.com/dmitrymomot/tiergate/pkg/audit"
	"github.com/dmitrymomot/tiergate/pkg/logger"
	"github.com/dmitrymomot/tiergate/svc/access"
	"github.com/dmitrymomot/tiergate/svc/billing"
)

func (s *Server) checkout() http.HandlerFunc {
	return wrap(s, func(ctx handler.Context, _ struct{}) handler.Response {
		const action = "subscription.checkout.denied"

		st := s.deps.Aggregator.DeriveState(ctx.Request())
		if !st.Authenticated {
			s.deps.Audit.Record(ctx, action, audit.Failed(), audit.WithDetail("reason", "unauthorized"))
			return handler.JSONError(handler.ErrUnauthorized)
		}
		userID := st.RawSession.UserID
		if st.Tier == access.TierPremium {
			s.deps.Audit.Record(ctx, action, audit.Failed(), audit.WithActor(userID), audit.WithDetail("reason", "already-premium"))
			return handler.JSONError(errAlreadyPremium)
		}
		if !s.deps.BillingConfig.IsStripeConfigured() {
			s.deps.Audit.Record(ctx, action, audit.Failed(), audit.WithActor(userID), audit.WithDetail("reason", "stripe-not-configured"))
			return handler.JSONError(errStripeUnavailable)
		}

		session, err := s.deps.Billing.CreateCheckoutSession(ctx, billing.CheckoutRequest{
			UserID: userID,
			Email:  st.RawSession.Email,
		})
		if err != nil {
			s.log.ErrorContext(ctx, "checkout session failed", logger.UserID(userID), logger.Error(err))
			return handler.JSONError(errBillingProvider)
		}

		s.deps.Audit.Record(ctx, "subscription.checkout.requested", audit.WithActor(userID), audit.WithDetail("checkoutId", session.ID))
		return handler.JSON(session)
	})
}

func (s *Server) portal() http.HandlerFunc {
	return wrap(s, func(ctx handler.Context, _ struct{}) handler.Response {
		const action = "subscription.portal.denied"

		if !s.deps.BillingConfig.IsStripeConfigured() {
			s.deps.Audit.Record(ctx, action, audit.Failed(), audit.WithDetail("reason", "stripe-not-configured"))
			return handler.JSONError(errStripeUnavailable)
		}
		st := s.deps.Aggregator.DeriveState(ctx.Request())
		if !st.Authenticated {
			s.deps.Audit.Record(ctx, action, audit.Failed(), audit.WithDetail("reason", "unauthorized"))
			return handler.JSONError(handler.ErrUnauthorized)
		}
		userID := st.RawSession.UserID
		if st.Tier != access.TierPremium {
			s.deps.Audit.Record(ctx, action, audit.Failed(), audit.WithActor(userID), audit.WithDetail("reason", "not-premium"))
			return handler.JSONError(errNotPremium)
		}

		var customerID string
		if rec, err := s.deps.Subscriptions.Get(ctx, userID); err != nil {
			s.log.WarnContext(ctx, "customer lookup failed", logger.UserID(userID), logger.Error(err))
		} else if rec != nil {
			customerID = rec.CustomerID
		}

		session, err := s.deps.Billing.CreatePortalSession(ctx, billing.PortalRequest{UserID: userID, CustomerID: customerID})
		switch {
		case errors.Is(err, billing.ErrMissingCustomerID):
			s.deps.Audit.Record(ctx, action, audit.Failed(), audit.WithActor(userID), audit.WithDetail("reason", "no-customer"))
			return handler.JSONError(errNoCustomer)
		case err != nil:
			s.log.ErrorContext(ctx, "portal session failed", logger.UserID(userID), logger.Error(err))
			return handler.JSONError(errBillingProvider)
		}

		s.deps.Audit.Record(ctx, "subscription.portal.requested", audit.WithActor(userID), audit.WithDetail("portalId", session.ID))
		return handler.JSON(session)
	})
}
