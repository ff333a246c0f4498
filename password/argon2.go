// Package password provides the argon2id hashing primitive consumed by the
// engine through the PasswordVerifier collaborator interface. Hashes use the
// PHC string format so parameters travel with the hash.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

// ErrHashMalformed is returned when a stored hash cannot be parsed.
var ErrHashMalformed = errors.New("malformed password hash")

// Config holds argon2id tuning parameters.
type Config struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the parameters used across NetNynja services.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2 hashes and verifies passwords. Safe for concurrent use.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("argon2 memory below minimum")
	case cfg.Time < minTimeCost:
		return nil, errors.New("argon2 time cost below minimum")
	case cfg.Parallelism < minParallelism:
		return nil, errors.New("argon2 parallelism below minimum")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("argon2 salt length below minimum")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("argon2 key length below minimum")
	}

	return &Argon2{config: cfg}, nil
}

// Hash derives an argon2id hash in PHC string format.
func (a *Argon2) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("password must not be empty")
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(plaintext),
		salt,
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		a.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext matches the stored PHC hash. The
// comparison is constant-time over the derived keys. Verification uses the
// parameters embedded in the hash, not the hasher's own, so parameter
// upgrades do not invalidate existing hashes.
func (a *Argon2) Verify(plaintext, hash string) (bool, error) {
	memory, timeCost, parallelism, salt, key, err := decodeHash(hash)
	if err != nil {
		return false, err
	}

	derived := argon2.IDKey(
		[]byte(plaintext),
		salt,
		timeCost,
		memory,
		parallelism,
		uint32(len(key)),
	)

	return subtle.ConstantTimeCompare(derived, key) == 1, nil
}

func decodeHash(hash string) (memory, timeCost uint32, parallelism uint8, salt, key []byte, err error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return 0, 0, 0, nil, nil, ErrHashMalformed
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return 0, 0, 0, nil, nil, ErrHashMalformed
	}

	var p uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &p); err != nil {
		return 0, 0, 0, nil, nil, ErrHashMalformed
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, 0, 0, nil, nil, ErrHashMalformed
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return 0, 0, 0, nil, nil, ErrHashMalformed
	}
	if len(salt) == 0 || len(key) == 0 {
		return 0, 0, 0, nil, nil, ErrHashMalformed
	}

	return memory, timeCost, p, salt, key, nil
}
