// Package webhook verifies payment provider events and applies them to
// subscriptions exactly once per event id.
package webhook

import "encoding/json"

// Event types the processor acts on.
const (
	TypeSubscriptionCreated = "customer.subscription.created"
	TypeSubscriptionUpdated = "customer.subscription.updated"
	TypeSubscriptionDeleted = "customer.subscription.deleted"
	TypeCheckoutCompleted   = "checkout.session.completed"
)

// Event is a parsed provider event. Object is the raw data.object.
type Event struct {
	ID     string
	Type   string
	Object json.RawMessage
}

type eventObject struct {
	Metadata      map[string]any  `json:"metadata"`
	CustomerEmail string          `json:"customer_email"`
	Customer      json.RawMessage `json:"customer"`
}

func (e *Event) object() eventObject {
	var obj eventObject
	if len(e.Object) > 0 {
		_ = json.Unmarshal(e.Object, &obj)
	}
	return obj
}

// Actor infers the internal user id: metadata.userId first, then the
// customer email. The email fallback is a weak heuristic and must not be
// relied upon for real billing identities.
func (e *Event) Actor() string {
	obj := e.object()
	if id, ok := obj.Metadata["userId"].(string); ok && id != "" {
		return id
	}
	return obj.CustomerEmail
}

// CustomerID returns the provider customer id, expanded or not.
func (e *Event) CustomerID() string {
	raw := e.object().Customer
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var expanded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &expanded); err == nil {
		return expanded.ID
	}
	return ""
}
