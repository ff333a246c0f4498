package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testConfig() Config {
	return Config{
		SigningMethod: MethodHS256,
		Secret:        testSecret,
		Issuer:        "netnynja-auth",
		Audience:      "netnynja",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}
}

func newTestCodec(t *testing.T, mutate func(*Config)) *Codec {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

var testIdentity = Identity{
	ID:       "p-1",
	Username: "alice",
	Email:    "alice@netnynja.io",
	Role:     "admin",
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	codec := newTestCodec(t, nil)

	access, refresh, err := codec.Issue(testIdentity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := codec.VerifyAccess(access)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.Subject != "p-1" || claims.Username != "alice" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) > 15*time.Minute {
		t.Fatalf("unexpected access expiry: %v", claims.ExpiresAt)
	}

	pid, err := codec.VerifyRefresh(refresh)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if pid != "p-1" {
		t.Fatalf("refresh subject = %q, want p-1", pid)
	}
}

func TestTokenTypeConfusionRejected(t *testing.T) {
	codec := newTestCodec(t, nil)

	access, refresh, err := codec.Issue(testIdentity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := codec.VerifyAccess(refresh); !errors.Is(err, ErrInvalid) {
		t.Fatalf("refresh as access: got %v, want ErrInvalid", err)
	}
	if _, err := codec.VerifyRefresh(access); !errors.Is(err, ErrInvalid) {
		t.Fatalf("access as refresh: got %v, want ErrInvalid", err)
	}
}

func TestIssuedTokensAreUnique(t *testing.T) {
	codec := newTestCodec(t, nil)

	_, first, err := codec.Issue(testIdentity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, second, err := codec.Issue(testIdentity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if first == second {
		t.Fatal("two pairs for the same identity must not collide")
	}
	if Hash(first) == Hash(second) {
		t.Fatal("hashes of distinct tokens must differ")
	}
}

// signExpiredAccess crafts a token that is valid in every way except expiry.
func signExpiredAccess(t *testing.T, subject string) string {
	t.Helper()
	claims := AccessClaims{
		Username:  "alice",
		Role:      "admin",
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "netnynja-auth",
			Audience:  jwt.ClaimStrings{"netnynja"},
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-30 * time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestExpiredAccessToken(t *testing.T) {
	codec := newTestCodec(t, nil)
	expired := signExpiredAccess(t, "p-1")

	if _, err := codec.VerifyAccess(expired); !errors.Is(err, ErrExpired) {
		t.Fatalf("got %v, want ErrExpired", err)
	}

	// Logout still needs the subject out of an expired token.
	pid, err := codec.ExpiredAccessSubject(expired)
	if err != nil {
		t.Fatalf("expired subject: %v", err)
	}
	if pid != "p-1" {
		t.Fatalf("subject = %q, want p-1", pid)
	}
}

func TestExpiredSubjectStillRejectsBadSignature(t *testing.T) {
	codec := newTestCodec(t, nil)
	expired := signExpiredAccess(t, "p-1")

	// Corrupt the signature segment.
	idx := strings.LastIndexByte(expired, '.')
	tampered := expired[:idx+1] + "AAAA" + expired[idx+5:]

	if _, err := codec.ExpiredAccessSubject(tampered); !errors.Is(err, ErrInvalid) {
		t.Fatalf("tampered token: got %v, want ErrInvalid", err)
	}
}

func TestWrongKeyRejected(t *testing.T) {
	codec := newTestCodec(t, nil)
	other := newTestCodec(t, func(cfg *Config) {
		cfg.Secret = []byte("ffffffffffffffffffffffffffffffff")
	})

	access, _, err := codec.Issue(testIdentity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := other.VerifyAccess(access); !errors.Is(err, ErrInvalid) {
		t.Fatalf("cross-key verify: got %v, want ErrInvalid", err)
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	codec := newTestCodec(t, func(cfg *Config) {
		cfg.SigningMethod = MethodEd25519
		cfg.Secret = nil
		cfg.PrivateKey = priv
		cfg.PublicKey = pub
	})

	access, refresh, err := codec.Issue(testIdentity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := codec.VerifyAccess(access); err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if _, err := codec.VerifyRefresh(refresh); err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short secret", func(cfg *Config) { cfg.Secret = []byte("short") }},
		{"unknown method", func(cfg *Config) { cfg.SigningMethod = "rs256" }},
		{"zero access ttl", func(cfg *Config) { cfg.AccessTTL = 0 }},
		{"zero refresh ttl", func(cfg *Config) { cfg.RefreshTTL = 0 }},
		{"excessive leeway", func(cfg *Config) { cfg.Leeway = time.Hour }},
		{"bad ed25519 keys", func(cfg *Config) {
			cfg.SigningMethod = MethodEd25519
			cfg.PrivateKey = []byte("junk")
			cfg.PublicKey = []byte("junk")
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Fatal("expected a construction error")
			}
		})
	}
}

func TestHashNeverEchoesToken(t *testing.T) {
	const tok = "header.payload.signature"
	h := Hash(tok)
	if h == tok || strings.Contains(h, "payload") {
		t.Fatal("hash must not contain token material")
	}
	if Hash(tok) != h {
		t.Fatal("hash must be deterministic")
	}
}
