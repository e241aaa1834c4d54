package webhook

import "errors"

var (
	ErrInvalidEvent = errors.New("webhook: invalid event")
	ErrLedger       = errors.New("webhook: ledger failure")
	ErrMutation     = errors.New("webhook: subscription update failed")
)
