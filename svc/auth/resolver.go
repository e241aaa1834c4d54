package auth

import (
	"log/slog"
	"net/http"
	"regexp"

	"github.com/dmitrymomot/tiergate/pkg/jwt"
	"github.com/dmitrymomot/tiergate/pkg/logger"
)

var (
	bearerPattern  = regexp.MustCompile(`(?i)^Bearer\s+(.+)$`)
	devTokenPrefix = regexp.MustCompile(`^test:(.+)$`)
)

// Resolver extracts a Session from the dev bearer shortcut or the
// session cookie.
type Resolver struct {
	tokens     *jwt.Service
	cookieName string
	devBearer  bool
	log        *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) ResolverOption {
	return func(r *Resolver) {
		if name != "" {
			r.cookieName = name
		}
	}
}

// WithDevBearer enables the "Authorization: Bearer test:<id>" shortcut.
// Never enable it in production.
func WithDevBearer(enabled bool) ResolverOption {
	return func(r *Resolver) {
		r.devBearer = enabled
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// NewResolver creates a Resolver verifying cookies with tokens.
func NewResolver(tokens *jwt.Service, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		tokens:     tokens,
		cookieName: "session",
		log:        logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the request's session or nil. A session already placed
// in the context by Middleware wins.
func (res *Resolver) Resolve(r *http.Request) *Session {
	if s, ok := GetSessionFromContext(r.Context()); ok {
		return s
	}
	if s, handled := res.fromDevBearer(r); handled {
		return s
	}
	return res.fromCookie(r)
}

// Middleware resolves the session once and stores it in the context.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := res.Resolve(r)
		next.ServeHTTP(w, r.WithContext(SetSessionToContext(r.Context(), s)))
	})
}

// fromDevBearer reports handled=true when a dev token was present, so a
// disabled shortcut does not fall through to the cookie.
func (res *Resolver) fromDevBearer(r *http.Request) (*Session, bool) {
	m := bearerPattern.FindStringSubmatch(r.Header.Get("Authorization"))
	if m == nil {
		return nil, false
	}
	dev := devTokenPrefix.FindStringSubmatch(m[1])
	if dev == nil {
		return nil, false
	}
	if !res.devBearer {
		res.log.WarnContext(r.Context(), "dev_bearer_present_but_disabled")
		return nil, true
	}

	role := RoleUser
	if dev[1] == "admin" {
		role = RoleAdmin
	}
	return &Session{UserID: dev[1], Role: role}, true
}

func (res *Resolver) fromCookie(r *http.Request) *Session {
	if res.tokens == nil {
		return nil
	}
	c, err := r.Cookie(res.cookieName)
	if err != nil || c.Value == "" {
		return nil
	}

	var claims SessionClaims
	if err := res.tokens.Parse(c.Value, &claims); err != nil {
		res.log.DebugContext(r.Context(), "session cookie rejected", logger.Error(err))
		return nil
	}
	if claims.Subject == "" {
		return nil
	}
	role := claims.Role
	if role == "" {
		role = RoleUser
	}
	return &Session{UserID: claims.Subject, Email: claims.Email, Role: role}
}
