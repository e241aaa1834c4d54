package webhook

import (
	"encoding/json"
	"errors"
	"fmt"

	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
)

// Parser turns a raw delivery into an Event.
type Parser interface {
	Parse(payload []byte, signature string) (*Event, error)
}

type envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// DevParser trusts the payload without verifying a signature. It must not
// be used in production.
type DevParser struct{}

// NewDevParser creates a DevParser.
func NewDevParser() DevParser { return DevParser{} }

func (DevParser) Parse(payload []byte, _ string) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errors.Join(ErrInvalidEvent, err)
	}
	return newEvent(env.ID, env.Type, env.Data.Object)
}

// StripeParser verifies the Stripe-Signature header.
type StripeParser struct {
	secret string
}

// NewStripeParser creates a parser bound to the endpoint signing secret.
func NewStripeParser(secret string) StripeParser {
	return StripeParser{secret: secret}
}

func (p StripeParser) Parse(payload []byte, signature string) (*Event, error) {
	if p.secret == "" {
		return nil, fmt.Errorf("%w: webhook secret is not configured", ErrInvalidEvent)
	}
	ev, err := stripewebhook.ConstructEventWithOptions(payload, signature, p.secret,
		stripewebhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidEvent, err)
	}
	var obj json.RawMessage
	if ev.Data != nil {
		obj = ev.Data.Raw
	}
	return newEvent(ev.ID, string(ev.Type), obj)
}

func newEvent(id, typ string, obj json.RawMessage) (*Event, error) {
	if id == "" || typ == "" {
		return nil, fmt.Errorf("%w: id and type are required", ErrInvalidEvent)
	}
	return &Event{ID: id, Type: typ, Object: obj}, nil
}
