// Package jwt signs and verifies HS256 tokens on top of golang-jwt/jwt/v5
// and maps the library's validation errors onto package sentinels.
package jwt

import (
	"errors"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims is the claims contract accepted by Service.
type Claims = jwtlib.Claims

// RegisteredClaims are the RFC 7519 registered claims.
type RegisteredClaims = jwtlib.RegisteredClaims

// NewNumericDate wraps a time for use in RegisteredClaims.
var NewNumericDate = jwtlib.NewNumericDate

// Service signs and verifies tokens with a single HMAC key.
type Service struct {
	signingKey []byte
	parser     *jwtlib.Parser
}

// Option configures Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	issuer string
}

// WithIssuer makes Parse require the given "iss" claim.
func WithIssuer(issuer string) Option {
	return func(o *serviceOptions) {
		o.issuer = issuer
	}
}

// New creates a service with the provided signing key. Use at least 32
// random bytes.
func New(signingKey []byte, opts ...Option) (*Service, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}

	o := &serviceOptions{}
	for _, opt := range opts {
		opt(o)
	}

	parserOpts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
	}
	if o.issuer != "" {
		parserOpts = append(parserOpts, jwtlib.WithIssuer(o.issuer))
	}

	return &Service{
		signingKey: signingKey,
		parser:     jwtlib.NewParser(parserOpts...),
	}, nil
}

// NewFromString is New for string keys.
func NewFromString(signingKey string, opts ...Option) (*Service, error) {
	return New([]byte(signingKey), opts...)
}

// Generate signs claims with HS256.
func (s *Service) Generate(claims Claims) (string, error) {
	if claims == nil {
		return "", ErrMissingClaims
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// Parse verifies token and decodes it into claims. Tokens without an
// expiry are rejected.
func (s *Service) Parse(token string, claims Claims) error {
	if claims == nil {
		return ErrMissingClaims
	}

	_, err := s.parser.ParseWithClaims(token, claims, func(*jwtlib.Token) (any, error) {
		return s.signingKey, nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return errors.Join(ErrExpiredToken, err)
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid):
		return errors.Join(ErrInvalidSignature, err)
	case errors.Is(err, jwtlib.ErrTokenUnverifiable):
		return errors.Join(ErrUnexpectedSigningMethod, err)
	default:
		return errors.Join(ErrInvalidToken, err)
	}
}
