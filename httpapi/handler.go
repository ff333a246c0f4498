// Package httpapi exposes the auth engine over the gateway's REST surface.
// Handlers own transport concerns only: request decoding, client IP
// extraction, the response envelope, and the error-kind to status mapping.
// Deny-class errors map to 4xx; fault-class errors deny with 503 and are
// reported to Sentry.
package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/netnynja/authcore"
)

const maxJSONBodyBytes = 1 << 20

// Handler serves the /api/v1/auth endpoints.
type Handler struct {
	engine *authcore.Engine
	log    *zap.Logger
}

// NewHandler creates a [Handler]. log may be nil.
func NewHandler(engine *authcore.Engine, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{engine: engine, log: log}
}

// Routes registers every auth endpoint on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.Refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/v1/auth/verify", h.Verify)
	mux.HandleFunc("GET /api/v1/auth/me", h.Me)
	return mux
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
	AllDevices   bool   `json:"allDevices,omitempty"`
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !h.decode(w, r, &body) {
		return
	}
	if body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "username and password are required")
		return
	}

	ctx := authcore.WithClientIP(r.Context(), clientIP(r))
	pair, err := h.engine.Login(ctx, body.Username, body.Password)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, pair)
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !h.decode(w, r, &body) {
		return
	}
	if body.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "refreshToken is required")
		return
	}

	ctx := authcore.WithClientIP(r.Context(), clientIP(r))
	pair, err := h.engine.Refresh(ctx, body.RefreshToken)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, pair)
}

// Logout handles POST /api/v1/auth/logout. An empty body is allowed; logout
// never fails visibly.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var body logoutRequest
	if r.ContentLength != 0 {
		if !h.decode(w, r, &body) {
			return
		}
	}

	ctx := authcore.WithClientIP(r.Context(), clientIP(r))
	result := h.engine.Logout(ctx, bearerToken(r), body.RefreshToken, body.AllDevices)
	writeData(w, http.StatusOK, result)
}

// Verify handles GET /api/v1/auth/verify. Always 200; Valid=false covers
// missing, malformed, and expired tokens alike.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	result := h.engine.Verify(r.Context(), bearerToken(r))
	writeData(w, http.StatusOK, result)
}

type meResponse struct {
	ID          string        `json:"id"`
	Username    string        `json:"username"`
	Email       string        `json:"email"`
	Role        authcore.Role `json:"role"`
	Active      bool          `json:"active"`
	LastLoginAt string        `json:"lastLoginAt,omitempty"`
}

// Me handles GET /api/v1/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.engine.Me(r.Context(), bearerToken(r))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	resp := meResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		Active:   user.Active,
	}
	if !user.LastLoginAt.IsZero() {
		resp.LastLoginAt = user.LastLoginAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	writeData(w, http.StatusOK, resp)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return false
	}
	return true
}

func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var rateErr *authcore.RateLimitedError
	if errors.As(err, &rateErr) {
		w.Header().Set("Retry-After", strconv.Itoa(ceilSeconds(rateErr.RetryAfter)))
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many attempts, retry later")
		return
	}
	var lockedErr *authcore.LockedError
	if errors.As(err, &lockedErr) {
		w.Header().Set("Retry-After", strconv.Itoa(ceilSeconds(lockedErr.RetryAfter)))
		writeError(w, http.StatusForbidden, "ACCOUNT_LOCKED", "account temporarily locked")
		return
	}

	switch {
	case errors.Is(err, authcore.ErrValidation):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request input")
	case errors.Is(err, authcore.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password")
	case errors.Is(err, authcore.ErrAccountInactive):
		writeError(w, http.StatusUnauthorized, "ACCOUNT_INACTIVE", "account is inactive")
	case errors.Is(err, authcore.ErrAccountLocked):
		writeError(w, http.StatusForbidden, "ACCOUNT_LOCKED", "account temporarily locked")
	case errors.Is(err, authcore.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many attempts, retry later")
	case errors.Is(err, authcore.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "token expired")
	case errors.Is(err, authcore.ErrTokenRevoked):
		writeError(w, http.StatusUnauthorized, "TOKEN_REVOKED", "token revoked")
	case errors.Is(err, authcore.ErrTokenInvalid):
		writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "invalid token")
	case errors.Is(err, authcore.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "user record not found")
	default:
		// Fault class: the request is denied, operators get paged.
		sentry.CaptureException(err)
		h.log.Error("auth request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "authentication backend unavailable")
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func ceilSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}
