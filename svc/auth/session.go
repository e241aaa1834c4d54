// Package auth resolves request identities and manages credential accounts.
package auth

// Roles carried on a Session.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Session is the authenticated identity of a request.
type Session struct {
	UserID string
	Email  string
	Role   string
}

// IsAdmin reports whether the session carries the admin role.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}
