package billing

import "errors"

var (
	ErrInvalidConfig     = errors.New("billing: invalid configuration")
	ErrMissingCustomerID = errors.New("billing: no customer id for user")
	ErrProvider          = errors.New("billing: provider request failed")
)
