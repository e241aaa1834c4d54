package webhook_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/tiergate/svc/webhook"
)

func TestDevParser(t *testing.T) {
	t.Parallel()

	p := webhook.NewDevParser()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		ev, err := p.Parse([]byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"customer_email":"a@b.co"}}}`), "")
		require.NoError(t, err)
		assert.Equal(t, "evt_1", ev.ID)
		assert.Equal(t, "checkout.session.completed", ev.Type)
		assert.Equal(t, "a@b.co", ev.Actor())
	})

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()
		_, err := p.Parse([]byte(`{not json`), "")
		assert.ErrorIs(t, err, webhook.ErrInvalidEvent)
	})

	t.Run("missing id", func(t *testing.T) {
		t.Parallel()
		_, err := p.Parse([]byte(`{"type":"x"}`), "")
		assert.ErrorIs(t, err, webhook.ErrInvalidEvent)
	})
}

func TestStripeParser(t *testing.T) {
	t.Parallel()

	const secret = "whsec_test_secret"
	payload := []byte(`{"id":"evt_live","object":"event","type":"customer.subscription.created","data":{"object":{"object":"subscription","customer":"cus_9","metadata":{"userId":"u1"}}}}`)

	t.Run("valid signature", func(t *testing.T) {
		t.Parallel()
		signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
			Payload:   payload,
			Secret:    secret,
			Timestamp: time.Now(),
		})
		ev, err := webhook.NewStripeParser(secret).Parse(signed.Payload, signed.Header)
		require.NoError(t, err)
		assert.Equal(t, "evt_live", ev.ID)
		assert.Equal(t, webhook.TypeSubscriptionCreated, ev.Type)
		assert.Equal(t, "u1", ev.Actor())
		assert.Equal(t, "cus_9", ev.CustomerID())
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
			Payload:   payload,
			Secret:    "whsec_other",
			Timestamp: time.Now(),
		})
		_, err := webhook.NewStripeParser(secret).Parse(signed.Payload, signed.Header)
		assert.ErrorIs(t, err, webhook.ErrInvalidEvent)
	})

	t.Run("missing signature", func(t *testing.T) {
		t.Parallel()
		_, err := webhook.NewStripeParser(secret).Parse(payload, "")
		assert.ErrorIs(t, err, webhook.ErrInvalidEvent)
	})

	t.Run("unconfigured secret", func(t *testing.T) {
		t.Parallel()
		_, err := webhook.NewStripeParser("").Parse(payload, "t=1,v1=abc")
		assert.ErrorIs(t, err, webhook.ErrInvalidEvent)
	})
}

func TestEvent_Actor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		object string
		actor  string
		cust   string
	}{
		{"metadata wins", `{"metadata":{"userId":"u1"},"customer_email":"e@x.co"}`, "u1", ""},
		{"email fallback", `{"customer_email":"e@x.co"}`, "e@x.co", ""},
		{"non-string metadata ignored", `{"metadata":{"userId":42}}`, "", ""},
		{"expanded customer", `{"customer":{"id":"cus_2"}}`, "", "cus_2"},
		{"nothing", `{}`, "", ""},
		{"not an object", `"str"`, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev := &webhook.Event{ID: "e", Type: "t", Object: []byte(tt.object)}
			assert.Equal(t, tt.actor, ev.Actor())
			assert.Equal(t, tt.cust, ev.CustomerID())
		})
	}
}
