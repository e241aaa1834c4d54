package api

import (
	"net/http"

	"github.com/dmitrymomot/tiergate/handler"
)

const stripeNotConfiguredMessage = "Stripe is not configured yet. See docs to enable billing."

var (
	errUpgradeRequired   = handler.NewHTTPError(http.StatusForbidden, "UPGRADE_REQUIRED", "Upgrade required")
	errAlreadyPremium    = handler.NewHTTPError(http.StatusBadRequest, "ALREADY_PREMIUM", "Already premium")
	errNotPremium        = handler.NewHTTPError(http.StatusForbidden, "NOT_PREMIUM", "Not premium")
	errStripeUnavailable = handler.NewHTTPError(http.StatusServiceUnavailable, "STRIPE_NOT_CONFIGURED", stripeNotConfiguredMessage)
	errNoCustomer        = handler.NewHTTPError(http.StatusConflict, "NO_BILLING_CUSTOMER", "No billing customer on file")
	errBillingProvider   = handler.NewHTTPError(http.StatusBadGateway, "BILLING_PROVIDER_ERROR", "Billing provider request failed")
	errWebhook           = handler.NewHTTPError(http.StatusBadRequest, "WEBHOOK_ERROR", "Webhook processing failed")
	errWebhookStore      = handler.NewHTTPError(http.StatusInternalServerError, "WEBHOOK_STORE_ERROR", "Webhook could not be stored")
	errWeakPassword      = handler.NewHTTPError(http.StatusBadRequest, "WEAK_PASSWORD", "Password must be at least 8 characters")
	errEmailInUse        = handler.NewHTTPError(http.StatusConflict, "EMAIL_IN_USE", "Email already in use")
	errInvalidCreds      = handler.NewHTTPError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	errRateLimited       = handler.NewHTTPError(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests")
)
