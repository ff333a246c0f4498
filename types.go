package authcore

import (
	"context"
	"time"
)

// Role is the RBAC role carried as an opaque claim in access tokens.
// Policy evaluation happens in the gateway, not here.
type Role string

const (
	// RoleAdmin grants full platform administration.
	RoleAdmin Role = "admin"
	// RoleOperator grants read/write access to network operations.
	RoleOperator Role = "operator"
	// RoleViewer grants read-only dashboard access.
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleViewer:
		return true
	}
	return false
}

// Principal is a user identity as read from the external directory.
// The core only reads it and writes a last-login timestamp.
type Principal struct {
	ID           string
	Username     string
	Email        string
	Role         Role
	PasswordHash string
	Active       bool
	LastLoginAt  time.Time
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// VerifyResult is the introspection outcome. Valid=false is a normal
// response, not an error: UI clients poll verify as a liveness check.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Principal string `json:"principalId,omitempty"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      Role   `json:"role,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}

// LogoutResult reports how many session records a logout revoked.
type LogoutResult struct {
	Revoked int `json:"revoked"`
}

// UserDirectory is the persistent user store collaborator. Implementations
// must be safe for concurrent use. A nil Principal with a nil error means
// "no such user"; connectivity failures are returned as errors.
type UserDirectory interface {
	FindByUsername(ctx context.Context, username string) (*Principal, error)
	FindByID(ctx context.Context, id string) (*Principal, error)
	UpdateLastLogin(ctx context.Context, id string) error
}

// PasswordVerifier checks a plaintext password against a stored hash.
// The hash format is owned by the implementation; the engine never
// inspects it.
type PasswordVerifier interface {
	Verify(plaintext, hash string) (bool, error)
}
