package auth

import "time"

// Config holds session and account settings.
type Config struct {
	Secret            string        `env:"AUTH_SECRET,required"`
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"session"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	AllowDevBearer    bool          `env:"ALLOW_DEV_BEARER_SHORTCUT" envDefault:"true"`
}
