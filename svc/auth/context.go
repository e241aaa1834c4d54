package auth

import "context"

type sessionContextKey struct{}

// SetSessionToContext stores the resolved session for later handlers.
func SetSessionToContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// GetSessionFromContext returns the stored session and whether one was
// stored at all. A stored nil session means resolution ran and found no
// identity.
func GetSessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*Session)
	return s, ok
}
