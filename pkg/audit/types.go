package audit

import (
	"fmt"
	"maps"
	"time"
)

// Event is a single audit trail entry.
type Event struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"ts"`
	Actor     string         `json:"actor,omitempty"`
	Action    string         `json:"type"`
	OK        bool           `json:"ok"`
	RequestID string         `json:"request_id,omitempty"`
	IP        string         `json:"ip,omitempty"`
	Details   map[string]any `json:"payload,omitempty"`
}

// Validate checks if the event has all required fields.
func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	return nil
}

// EventOption customizes an event before it is stored.
type EventOption func(*Event)

// WithActor sets the acting user id or email.
func WithActor(actor string) EventOption {
	return func(e *Event) {
		e.Actor = actor
	}
}

// WithDetail adds a single payload entry.
func WithDetail(key string, value any) EventOption {
	return func(e *Event) {
		if e.Details == nil {
			e.Details = make(map[string]any)
		}
		e.Details[key] = value
	}
}

// WithDetails merges payload entries.
func WithDetails(details map[string]any) EventOption {
	return func(e *Event) {
		if len(details) == 0 {
			return
		}
		if e.Details == nil {
			e.Details = make(map[string]any, len(details))
		}
		maps.Copy(e.Details, details)
	}
}

// Failed marks the event as a failed or denied action.
func Failed() EventOption {
	return func(e *Event) {
		e.OK = false
	}
}

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Criteria filters Query results. Results are always newest first.
type Criteria struct {
	ActionPrefix string
	Actor        string
	Limit        int
}

// Normalize clamps Limit into [1, MaxLimit], defaulting to DefaultLimit.
func (c Criteria) Normalize() Criteria {
	switch {
	case c.Limit <= 0:
		c.Limit = DefaultLimit
	case c.Limit > MaxLimit:
		c.Limit = MaxLimit
	}
	return c
}
