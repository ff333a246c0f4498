package authcore

import (
	"errors"
	"time"
)

// Config is resolved once at [Builder.Build] and treated as immutable
// afterwards. Zero values are filled from [DefaultConfig] by the builder
// only when the whole struct is zero; partial configs are validated as-is.
type Config struct {
	Token     TokenConfig
	RateLimit RateLimitConfig
	Lockout   LockoutConfig
	Session   SessionConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// TokenConfig selects the signing mode and token lifetimes. Exactly one
// signing mode is active: "hs256" with Secret, or "ed25519" with
// PrivateKey/PublicKey.
type TokenConfig struct {
	SigningMethod string // "hs256" or "ed25519"
	Secret        []byte
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Leeway        time.Duration
}

// RateLimitConfig bounds login attempts per client IP over a fixed window.
type RateLimitConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// LockoutConfig controls the per-username failed-attempt counter and the
// lockout flag. The failure counter shares the lockout TTL: stale failures
// older than Duration age out even without reaching the threshold.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

// SessionConfig controls the session registry namespace and record TTL.
// TTL defaults to the refresh token lifetime when zero.
type SessionConfig struct {
	KeyPrefix string
	TTL       time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig enables the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the production defaults used by the NetNynja
// deployment charts.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: "hs256",
			Issuer:        "netnynja-auth",
			Audience:      "netnynja",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			MaxAttempts: 5,
			Window:      time.Minute,
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Duration:    15 * time.Minute,
		},
		Session: SessionConfig{
			KeyPrefix: "nn:sess",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func (c *Config) validate() error {
	if c.RateLimit.MaxAttempts <= 0 {
		return errors.New("rate limit max attempts must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	if c.Lockout.MaxAttempts <= 0 {
		return errors.New("lockout max attempts must be positive")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("lockout duration must be positive")
	}
	if c.Session.KeyPrefix == "" {
		return errors.New("session key prefix must not be empty")
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = c.Token.RefreshTTL
	}
	if c.Session.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	return nil
}
