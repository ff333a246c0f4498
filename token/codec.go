// Package token signs, verifies, and hashes the access/refresh token pair.
// A Codec is stateless: validity of an access token is a pure function of
// signature and expiry, and the codec never talks to a store.
package token

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the signature algorithm. Exactly one method is
// resolved at construction; there is no per-call branching.
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key and verifies with the
	// matching public key (raw 32/64-byte keys or PEM).
	MethodEd25519 SigningMethod = "ed25519"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

var (
	// ErrExpired marks a structurally valid token past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrInvalid marks a token failing signature, type, or claim checks.
	ErrInvalid = errors.New("token invalid")
)

// Config for a [Codec].
type Config struct {
	SigningMethod SigningMethod
	Secret        []byte // hs256
	PrivateKey    []byte // ed25519, raw or PEM
	PublicKey     []byte // ed25519, raw or PEM
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Leeway        time.Duration
}

// AccessClaims binds the principal's identity to an access token.
type AccessClaims struct {
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Identity is the subset of a principal embedded into issued tokens.
type Identity struct {
	ID       string
	Username string
	Email    string
	Role     string
}

// Codec issues and verifies token pairs with one resolved signing strategy.
type Codec struct {
	config    Config
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
}

// New validates the configuration, resolves the signing strategy, and
// returns an immutable [Codec].
func New(cfg Config) (*Codec, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	c := &Codec{config: cfg}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Secret) < 32 {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
		c.method = jwt.SigningMethodHS256
		c.signKey = cfg.Secret
		c.verifyKey = cfg.Secret
	case MethodEd25519:
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		pub, err := parseEdPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		c.method = jwt.SigningMethodEdDSA
		c.signKey = priv
		c.verifyKey = pub
	default:
		return nil, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}

	return c, nil
}

// AccessTTL returns the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration {
	return c.config.AccessTTL
}

// RefreshTTL returns the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration {
	return c.config.RefreshTTL
}

// Issue creates and signs a fresh access/refresh token pair for id. Each
// token carries a unique jti, so two pairs issued in the same second still
// hash to distinct session records.
func (c *Codec) Issue(id Identity) (access, refresh string, err error) {
	now := time.Now()

	ac := AccessClaims{
		Username:  id.Username,
		Email:     id.Email,
		Role:      id.Role,
		TokenType: typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.ID,
			Issuer:    c.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.config.AccessTTL)),
		},
	}
	rc := refreshClaims{
		TokenType: typeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.ID,
			Issuer:    c.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.config.RefreshTTL)),
		},
	}
	if c.config.Audience != "" {
		ac.Audience = jwt.ClaimStrings{c.config.Audience}
		rc.Audience = jwt.ClaimStrings{c.config.Audience}
	}

	access, err = jwt.NewWithClaims(c.method, ac).SignedString(c.signKey)
	if err != nil {
		return "", "", err
	}
	refresh, err = jwt.NewWithClaims(c.method, rc).SignedString(c.signKey)
	if err != nil {
		return "", "", err
	}

	return access, refresh, nil
}

// VerifyAccess checks signature, expiry, and token type, returning the
// embedded claims.
func (c *Codec) VerifyAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != typeAccess || claims.Subject == "" || claims.Username == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}

// VerifyRefresh checks signature, expiry, and token type, returning the
// principal ID. Revocation status is the session registry's concern, not the
// codec's.
func (c *Codec) VerifyRefresh(tokenStr string) (string, error) {
	claims := &refreshClaims{}
	if err := c.parse(tokenStr, claims); err != nil {
		return "", err
	}
	if claims.TokenType != typeRefresh || claims.Subject == "" {
		return "", ErrInvalid
	}
	return claims.Subject, nil
}

// ExpiredAccessSubject extracts the subject from an access token whose only
// defect is expiry. Logout uses it so that an expired session can still be
// ended cleanly.
func (c *Codec) ExpiredAccessSubject(tokenStr string) (string, error) {
	claims := &AccessClaims{}
	err := c.parse(tokenStr, claims)
	if err != nil && !errors.Is(err, ErrExpired) {
		return "", err
	}
	if claims.TokenType != typeAccess || claims.Subject == "" {
		return "", ErrInvalid
	}
	return claims.Subject, nil
}

// Hash returns the deterministic one-way digest under which a refresh token
// is stored in the session registry. Raw tokens are never persisted.
func Hash(tokenStr string) string {
	sum := sha256.Sum256([]byte(tokenStr))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func (c *Codec) parse(tokenStr string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}
	if c.config.Audience != "" {
		options = append(options, jwt.WithAudience(c.config.Audience))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return c.verifyKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !tok.Valid {
		return ErrInvalid
	}
	return nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
