// Package directory implements the UserDirectory collaborator over
// Postgres. The engine treats it as an external system: a missing row is a
// nil Principal, never an error.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/netnynja/authcore"
)

// Store is a sqlx-backed user directory.
type Store struct {
	db *sqlx.DB
}

// Open connects to Postgres with a dsn in lib/pq form and verifies the
// connection.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// NewStore wraps an existing sqlx handle.
func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks directory connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// EnsureSchema creates the users table if it does not exist (idempotent).
// Convenience for early deployments; production clusters run migrations.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'viewer',
  active BOOLEAN NOT NULL DEFAULT true,
  last_login_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

type userRow struct {
	ID           string       `db:"id"`
	Username     string       `db:"username"`
	Email        string       `db:"email"`
	PasswordHash string       `db:"password_hash"`
	Role         string       `db:"role"`
	Active       bool         `db:"active"`
	LastLoginAt  sql.NullTime `db:"last_login_at"`
}

const userColumns = `id, username, email, password_hash, role, active, last_login_at`

// FindByUsername implements authcore.UserDirectory. Lookup is case-sensitive.
func (s *Store) FindByUsername(ctx context.Context, username string) (*authcore.Principal, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.principal(), nil
}

// FindByID implements authcore.UserDirectory.
func (s *Store) FindByID(ctx context.Context, id string) (*authcore.Principal, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.principal(), nil
}

// UpdateLastLogin implements authcore.UserDirectory.
func (s *Store) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r userRow) principal() *authcore.Principal {
	p := &authcore.Principal{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         authcore.Role(r.Role),
		Active:       r.Active,
	}
	if r.LastLoginAt.Valid {
		p.LastLoginAt = r.LastLoginAt.Time
	}
	return p
}
