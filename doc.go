// Package authcore implements the credential and session lifecycle for the
// NetNynja platform: issuance and rotation of signed access/refresh token
// pairs, brute-force rate limiting, account lockout, and refresh-token
// revocation. All cross-request state lives behind atomic operations on a
// shared Redis store, so horizontally scaled replicas need no in-process
// coordination.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the collaborator interfaces ([UserDirectory], [PasswordVerifier],
// [AuditSink]), and value types. Rate limiting and lockout live under
// internal/ and are never exported; the token codec and session registry are
// small leaf packages.
//
// # What this package must NOT do
//
//   - Expose Redis clients or key layouts in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Bypass the store for any cross-request state: the store, not the
//     process, is the source of truth.
//
// # Failure policy
//
// Store faults during security-critical checks (rate limit, lockout, session
// validity) fail closed: the request is denied. Audit delivery is
// fire-and-forget and never blocks or fails the request path.
package authcore
