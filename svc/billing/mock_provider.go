package billing

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// MockProvider returns synthetic sessions pointing at local mock pages.
type MockProvider struct {
	siteURL string
	priceID string
}

// NewMockProvider creates a MockProvider.
func NewMockProvider(siteURL, priceID string) *MockProvider {
	return &MockProvider{siteURL: strings.TrimRight(siteURL, "/"), priceID: priceID}
}

func (m *MockProvider) CreateCheckoutSession(context.Context, CheckoutRequest) (Session, error) {
	return Session{
		ID:  "cs_test_" + randomSuffix(),
		URL: m.siteURL + "/mock/checkout?price=" + url.QueryEscape(m.priceID),
	}, nil
}

func (m *MockProvider) CreatePortalSession(context.Context, PortalRequest) (Session, error) {
	return Session{
		ID:  "bps_test_" + randomSuffix(),
		URL: m.siteURL + "/mock/portal",
	}, nil
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
