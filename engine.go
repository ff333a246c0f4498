package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/netnynja/authcore/internal/lockout"
	"github.com/netnynja/authcore/internal/rate"
	"github.com/netnynja/authcore/session"
	"github.com/netnynja/authcore/token"
	"go.uber.org/zap"
)

const loginRateKeyPrefix = "login:"

// Engine composes the token codec, rate limiter, lockout guard, session
// registry, and the external collaborators into the login / refresh /
// logout / verify operations. Engine instances are configured through
// [Builder.Build] and immutable afterwards.
type Engine struct {
	config    Config
	codec     *token.Codec
	limiter   *rate.Limiter
	guard     *lockout.Guard
	registry  *session.Registry
	directory UserDirectory
	passwords PasswordVerifier
	audit     *auditDispatcher
	metrics   *Metrics
	log       *zap.Logger
}

// RateLimitedError carries the remaining window so gateways can emit a
// Retry-After header. errors.Is(err, ErrRateLimited) matches it.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string { return "rate limited" }

// Is implements errors.Is matching against [ErrRateLimited].
func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// LockedError carries the remaining lockout duration.
// errors.Is(err, ErrAccountLocked) matches it.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string { return "account locked" }

// Is implements errors.Is matching against [ErrAccountLocked].
func (e *LockedError) Is(target error) bool { return target == ErrAccountLocked }

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped by a saturated
// dispatcher buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login authenticates username/password and issues a token pair.
//
// Policy ordering is significant and strictly sequential: the per-IP rate
// limit is consumed before any directory lookup, the lockout flag is checked
// before password verification, and an unknown user is indistinguishable
// from a wrong password.
func (e *Engine) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	if e.directory == nil || e.passwords == nil {
		return nil, ErrEngineNotReady
	}

	ip := clientIPFromContext(ctx)
	if ip != "" {
		res, err := e.limiter.CheckAndConsume(ctx, loginRateKeyPrefix+ip, e.config.RateLimit.MaxAttempts, e.config.RateLimit.Window)
		if err != nil {
			// Fail closed: an unreachable store must not disable throttling.
			e.metricInc(MetricStoreFault)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", username, ErrStoreUnavailable, nil)
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if !res.Allowed {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", username, ErrRateLimited, nil)
			return nil, &RateLimitedError{RetryAfter: res.ResetIn}
		}
	}

	if username == "" || password == "" {
		return nil, ErrValidation
	}

	locked, err := e.guard.IsLocked(ctx, username)
	if err != nil {
		e.metricInc(MetricStoreFault)
		e.emitAudit(ctx, auditEventLoginLocked, false, "", username, ErrStoreUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if locked {
		// The error is identical whether or not the password would have
		// matched, so a lockout leaks nothing about the credential.
		ttl, ttlErr := e.guard.LockoutTTL(ctx, username)
		if ttlErr != nil {
			// A fabricated Retry-After would overstate the lockout late in
			// its window; deny as a fault like every other store failure.
			e.metricInc(MetricStoreFault)
			e.emitAudit(ctx, auditEventLoginLocked, false, "", username, ErrStoreUnavailable, nil)
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, ttlErr)
		}
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginLocked, false, "", username, ErrAccountLocked, nil)
		return nil, &LockedError{RetryAfter: time.Duration(ttl) * time.Second}
	}

	user, err := e.directory.FindByUsername(ctx, username)
	if err != nil {
		e.metricInc(MetricStoreFault)
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if user == nil {
		return nil, e.failLogin(ctx, username, "user_not_found")
	}

	ok, err := e.passwords.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, e.failLogin(ctx, username, "password_mismatch")
	}

	if !user.Active {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, username, ErrAccountInactive, func() map[string]string {
			return map[string]string{"reason": "account_inactive"}
		})
		return nil, ErrAccountInactive
	}

	// Clearing the failure counter is best-effort: leaving it behind only
	// makes the guard stricter, never weaker.
	if err := e.guard.RecordSuccess(ctx, username); err != nil {
		e.log.Warn("lockout counter reset failed", zap.String("username", username), zap.Error(err))
	}

	pair, err := e.issueSession(ctx, user)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, username, err, func() map[string]string {
			return map[string]string{"reason": "issue_failed"}
		})
		return nil, err
	}

	if err := e.directory.UpdateLastLogin(ctx, user.ID); err != nil {
		e.log.Warn("last-login update failed", zap.String("principal", user.ID), zap.Error(err))
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, username, nil, nil)

	return pair, nil
}

// failLogin records a credential failure against the lockout guard and
// returns the resulting error. A failure that trips the threshold answers
// with the lockout, not with invalid-credentials.
func (e *Engine) failLogin(ctx context.Context, username, reason string) error {
	status, err := e.guard.RecordFailure(ctx, username)
	if err != nil {
		e.metricInc(MetricStoreFault)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if status.Locked {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginLocked, false, "", username, ErrAccountLocked, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return &LockedError{RetryAfter: e.config.Lockout.Duration}
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, "", username, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return ErrInvalidCredentials
}

// Refresh rotates a refresh token: the presented token's session record is
// revoked and a fresh pair is issued against a new record. The registry's
// single-key delete is the decisive step, so two concurrent refreshes with
// the same token yield at most one success.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e.directory == nil {
		return nil, ErrEngineNotReady
	}

	principalID, err := e.codec.VerifyRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshRejected)
		e.emitAudit(ctx, auditEventRefreshRejected, false, "", "", err, func() map[string]string {
			return map[string]string{"reason": "verify_failed"}
		})
		if errors.Is(err, token.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	hash := token.Hash(refreshToken)

	live, err := e.registry.Exists(ctx, principalID, hash)
	if err != nil {
		e.metricInc(MetricStoreFault)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !live {
		e.metricInc(MetricRefreshRevoked)
		e.emitAudit(ctx, auditEventRefreshRejected, false, principalID, "", ErrTokenRevoked, func() map[string]string {
			return map[string]string{"reason": "session_revoked"}
		})
		return nil, ErrTokenRevoked
	}

	user, err := e.directory.FindByID(ctx, principalID)
	if err != nil {
		e.metricInc(MetricStoreFault)
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if user == nil || !user.Active {
		// Principal drift: the directory record vanished or went inactive
		// after the session was minted. Revoke so the token dies now.
		if _, revErr := e.registry.Revoke(ctx, principalID, hash); revErr != nil {
			e.log.Warn("stale session revoke failed", zap.String("principal", principalID), zap.Error(revErr))
		}
		e.metricInc(MetricRefreshRevoked)
		e.emitAudit(ctx, auditEventRefreshRejected, false, principalID, "", ErrTokenRevoked, func() map[string]string {
			return map[string]string{"reason": "principal_drift"}
		})
		return nil, ErrTokenRevoked
	}

	revoked, err := e.registry.Revoke(ctx, principalID, hash)
	if err != nil {
		e.metricInc(MetricStoreFault)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !revoked {
		// A concurrent refresh with the same token already rotated it.
		e.metricInc(MetricRefreshRevoked)
		e.emitAudit(ctx, auditEventRefreshRejected, false, principalID, "", ErrTokenRevoked, func() map[string]string {
			return map[string]string{"reason": "rotation_race"}
		})
		return nil, ErrTokenRevoked
	}

	pair, err := e.issueSession(ctx, user)
	if err != nil {
		e.emitAudit(ctx, auditEventRefreshRejected, false, principalID, "", err, func() map[string]string {
			return map[string]string{"reason": "issue_failed"}
		})
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, principalID, user.Username, nil, nil)

	return pair, nil
}

// Logout ends sessions for the principal identified by accessToken. The
// token may be expired: the user's intent to log out must never itself fail
// visibly, so any verification failure still returns a zero-revocation
// success. With allDevices set, every session record for the principal is
// revoked; otherwise only the record for the supplied refresh token, if any.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string, allDevices bool) *LogoutResult {
	principalID, err := e.codec.ExpiredAccessSubject(accessToken)
	if err != nil {
		e.emitAudit(ctx, auditEventLogout, true, "", "", nil, func() map[string]string {
			return map[string]string{"reason": "unidentifiable_token"}
		})
		return &LogoutResult{}
	}

	result := &LogoutResult{}
	if allDevices {
		count, err := e.registry.RevokeAll(ctx, principalID)
		if err != nil {
			e.log.Warn("logout-all revocation incomplete", zap.String("principal", principalID), zap.Error(err))
		}
		result.Revoked = count
		e.metricInc(MetricLogoutAll)
		e.emitAudit(ctx, auditEventLogoutAll, true, principalID, "", nil, func() map[string]string {
			return map[string]string{"revoked": fmt.Sprintf("%d", count)}
		})
		return result
	}

	if refreshToken != "" {
		revoked, err := e.registry.Revoke(ctx, principalID, token.Hash(refreshToken))
		if err != nil {
			e.log.Warn("logout revocation failed", zap.String("principal", principalID), zap.Error(err))
		} else if revoked {
			result.Revoked = 1
		}
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, principalID, "", nil, nil)
	return result
}

// Verify introspects an access token. Invalid, expired, or missing tokens
// produce Valid=false rather than an error: UI clients poll this as a
// liveness check.
func (e *Engine) Verify(ctx context.Context, accessToken string) *VerifyResult {
	e.metricInc(MetricVerify)

	claims, err := e.codec.VerifyAccess(accessToken)
	if err != nil {
		return &VerifyResult{Valid: false}
	}

	res := &VerifyResult{
		Valid:     true,
		Principal: claims.Subject,
		Username:  claims.Username,
		Email:     claims.Email,
		Role:      Role(claims.Role),
	}
	if claims.ExpiresAt != nil {
		res.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return res
}

// Me resolves the directory record behind a valid access token. A valid
// token whose principal has vanished is an inconsistency worth surfacing
// distinctly as [ErrUserNotFound].
func (e *Engine) Me(ctx context.Context, accessToken string) (*Principal, error) {
	if e.directory == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.codec.VerifyAccess(accessToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	user, err := e.directory.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	sanitized := *user
	sanitized.PasswordHash = ""
	return &sanitized, nil
}

// UnlockAccount clears a lockout flag and failure counter. Administrative
// operation; never reachable from the login path.
func (e *Engine) UnlockAccount(ctx context.Context, username string) error {
	if err := e.guard.Unlock(ctx, username); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// StorePing checks shared-store connectivity. Readiness probes call it;
// request paths never do.
func (e *Engine) StorePing(ctx context.Context) error {
	if _, err := e.registry.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ActiveSessions returns the number of live session records for a principal.
func (e *Engine) ActiveSessions(ctx context.Context, principalID string) (int, error) {
	count, err := e.registry.ActiveCount(ctx, principalID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}

func (e *Engine) issueSession(ctx context.Context, user *Principal) (*TokenPair, error) {
	access, refresh, err := e.codec.Issue(token.Identity{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     string(user.Role),
	})
	if err != nil {
		return nil, err
	}

	if err := e.registry.Put(ctx, user.ID, token.Hash(refresh), e.config.Session.TTL); err != nil {
		// Without a session record the refresh token would be dead on
		// arrival; fail the whole operation.
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(e.codec.AccessTTL().Seconds()),
	}, nil
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	principalID string,
	username string,
	cause error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := newAuditEvent(eventType, success)
	event.PrincipalID = principalID
	event.Username = username
	event.IP = clientIPFromContext(ctx)
	if cause != nil {
		event.Error = cause.Error()
	}
	if metadataBuilder != nil {
		event.Metadata = metadataBuilder()
	}

	e.audit.Emit(ctx, event)
}
