package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/tiergate/pkg/email"
	"github.com/dmitrymomot/tiergate/pkg/jwt"
	"github.com/dmitrymomot/tiergate/pkg/logger"
)

const (
	// PasswordCost is the bcrypt cost for stored hashes.
	PasswordCost = 12
	// MinPasswordLength is counted in runes.
	MinPasswordLength = 8
)

// SessionClaims is the payload of the session cookie.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Service registers users and issues session tokens.
type Service struct {
	users    UserStore
	tokens   *jwt.Service
	mailer   email.Sender
	log      *slog.Logger
	validate *validator.Validate
	ttl      time.Duration
	cost     int
	appName  string
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMailer enables the welcome email.
func WithMailer(m email.Sender) ServiceOption {
	return func(s *Service) {
		s.mailer = m
	}
}

// WithServiceLogger sets the logger.
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithSessionTTL sets the token lifetime. Default 720h.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithPasswordCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithPasswordCost(cost int) ServiceOption {
	return func(s *Service) {
		s.cost = cost
	}
}

// WithAppName is used in the welcome email subject.
func WithAppName(name string) ServiceOption {
	return func(s *Service) {
		if name != "" {
			s.appName = name
		}
	}
}

// WithServiceClock replaces time.Now.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service.
func NewService(users UserStore, tokens *jwt.Service, opts ...ServiceOption) *Service {
	s := &Service{
		users:    users,
		tokens:   tokens,
		log:      logger.Discard(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		ttl:      720 * time.Hour,
		cost:     PasswordCost,
		appName:  "Tiergate",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account. The email is stored lower-cased.
func (s *Service) Register(ctx context.Context, emailAddr, password string) (*User, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if err := s.validate.Struct(credentials{Email: emailAddr, Password: password}); err != nil {
		return nil, errors.Join(ErrInvalidInput, err)
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	u := &User{
		ID:           uuid.New(),
		Email:        emailAddr,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.sendWelcome(ctx, u)
	return u, nil
}

// Login verifies credentials and returns a signed session token.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (string, *User, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if err := s.validate.Struct(credentials{Email: emailAddr, Password: password}); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	u, err := s.users.FindByEmail(ctx, emailAddr)
	if errors.Is(err, ErrUserNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.IssueToken(u)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// IssueToken signs a session token for u.
func (s *Service) IssueToken(u *User) (string, error) {
	now := s.now()
	token, err := s.tokens.Generate(&SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Email: u.Email,
	})
	if err != nil {
		return "", fmt.Errorf("auth: sign session: %w", err)
	}
	return token, nil
}

// SessionTTL is the lifetime of issued tokens.
func (s *Service) SessionTTL() time.Duration { return s.ttl }

func (s *Service) sendWelcome(ctx context.Context, u *User) {
	if s.mailer == nil {
		return
	}
	err := s.mailer.SendEmail(ctx, email.SendEmailParams{
		SendTo:   u.Email,
		Subject:  "Welcome to " + s.appName,
		BodyHTML: "<p>Your " + html.EscapeString(s.appName) + " account is ready.</p>",
		Tag:      "welcome",
	})
	if err != nil {
		s.log.WarnContext(ctx, "welcome email not sent", logger.UserID(u.ID.String()), logger.Error(err))
	}
}
