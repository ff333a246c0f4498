package authcore

import (
	"errors"

	"github.com/netnynja/authcore/internal/lockout"
	"github.com/netnynja/authcore/internal/rate"
	"github.com/netnynja/authcore/password"
	"github.com/netnynja/authcore/session"
	"github.com/netnynja/authcore/token"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. Construction is allocation-only; no I/O
// happens until the first Engine call.
type Builder struct {
	config    Config
	hasConfig bool
	redis     redis.UniversalClient
	directory UserDirectory
	passwords PasswordVerifier
	auditSink AuditSink
	log       *zap.Logger
	built     bool
}

// New returns a [Builder] preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	b.hasConfig = true
	return b
}

// WithRedis sets the shared store client used by the rate limiter, lockout
// guard, and session registry.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDirectory sets the user directory collaborator.
func (b *Builder) WithDirectory(d UserDirectory) *Builder {
	b.directory = d
	return b
}

// WithPasswordVerifier sets the password verification primitive. When unset,
// Build falls back to [password.Argon2] with default parameters.
func (b *Builder) WithPasswordVerifier(v PasswordVerifier) *Builder {
	b.passwords = v
	return b
}

// WithAuditSink sets the audit event destination.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for swallowed best-effort failures. Defaults
// to a no-op logger.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// Build validates the configuration, resolves the signing strategy, and
// returns a ready [Engine]. A Builder is single-use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.directory == nil {
		return nil, errors.New("user directory is required")
	}

	cfg := b.config
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	codec, err := token.New(token.Config{
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		Secret:        cfg.Token.Secret,
		PrivateKey:    cfg.Token.PrivateKey,
		PublicKey:     cfg.Token.PublicKey,
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	verifier := b.passwords
	if verifier == nil {
		verifier, err = password.NewArgon2(password.DefaultConfig())
		if err != nil {
			return nil, err
		}
	}

	log := b.log
	if log == nil {
		log = zap.NewNop()
	}

	b.built = true

	return &Engine{
		config:    cfg,
		codec:     codec,
		limiter:   rate.New(b.redis),
		guard: lockout.New(b.redis, lockout.Config{
			MaxAttempts: cfg.Lockout.MaxAttempts,
			Duration:    cfg.Lockout.Duration,
		}),
		registry:  session.NewRegistry(b.redis, cfg.Session.KeyPrefix),
		directory: b.directory,
		passwords: verifier,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
		log:       log,
	}, nil
}
