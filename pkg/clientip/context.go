package clientip

import "context"

type clientIPContextKey struct{}

// SetIPToContext stores client IP in context
func SetIPToContext(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// GetIPFromContext retrieves client IP from context
func GetIPFromContext(ctx context.Context) string {
	ip, _ := Lookup(ctx)
	return ip
}

// Lookup returns the stored client IP and whether it is non-empty.
func Lookup(ctx context.Context) (string, bool) {
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip, ip != ""
}
