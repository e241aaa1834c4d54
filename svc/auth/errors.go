package auth

import "errors"

var (
	ErrEmailInUse         = errors.New("auth: email already in use")
	ErrWeakPassword       = errors.New("auth: password must be at least 8 characters")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrStorage            = errors.New("auth: storage failure")
)
