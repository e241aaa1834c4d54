package subscription

import "errors"

var (
	ErrStorage     = errors.New("subscription: storage failure")
	ErrEmptyUserID = errors.New("subscription: empty user id")
	ErrLockTimeout = errors.New("subscription: could not acquire user lock")
)
