// Package handlers implements the HTTP API and its request pipeline:
// rate limiter, authentication gate, authorization gate, then the route
// handler.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"finance-tracker/internal/analytics"
	"finance-tracker/internal/auth"
	"finance-tracker/internal/config"
	"finance-tracker/internal/models"
	"finance-tracker/internal/ratelimit"
	"finance-tracker/internal/storage"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// identityContextKey is the context key for the authenticated identity.
	identityContextKey contextKey = "identity"
	// TokenCookieName is the name of the session cookie.
	TokenCookieName = "token"
)

// Identity is the decoded session token attached to a request's context.
type Identity struct {
	ID    string
	Email string
	Role  models.Role
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db           *storage.DB
	agg          *analytics.Aggregator
	codec        *auth.TokenCodec
	logger       *slog.Logger
	secureCookie bool

	authLimiter         *ratelimit.Limiter
	transactionsLimiter *ratelimit.Limiter
	analyticsLimiter    *ratelimit.Limiter
	generalLimiter      *ratelimit.Limiter
	failedLogins        *ratelimit.Limiter
}

// New creates a Handlers instance wiring the pipeline from configuration.
func New(db *storage.DB, agg *analytics.Aggregator, codec *auth.TokenCodec, cfg *config.Config, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	policy := func(p config.RatePolicy) ratelimit.Policy {
		return ratelimit.Policy{Window: p.Window.Std(), Max: p.Max}
	}
	return &Handlers{
		db:                  db,
		agg:                 agg,
		codec:               codec,
		logger:              logger,
		secureCookie:        cfg.SecureCookie,
		authLimiter:         ratelimit.New(policy(cfg.RateLimits.Auth)),
		transactionsLimiter: ratelimit.New(policy(cfg.RateLimits.Transactions)),
		analyticsLimiter:    ratelimit.New(policy(cfg.RateLimits.Analytics)),
		generalLimiter:      ratelimit.New(policy(cfg.RateLimits.General)),
		failedLogins:        ratelimit.New(policy(cfg.RateLimits.FailedLogins)),
	}
}

func withIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// identityFromRequest retrieves the authenticated identity, if any.
func identityFromRequest(r *http.Request) *Identity {
	if id, ok := r.Context().Value(identityContextKey).(*Identity); ok {
		return id
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// internalError logs the cause and returns a generic message to the client.
func (h *Handlers) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error("handler failure", "op", op, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "Server error")
}

// clientAddr extracts the client IP, dropping the port.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// recoverer converts panics into 500 responses.
func (h *Handlers) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic recovered", "path", r.URL.Path, "panic", rec, "stack", string(debug.Stack()))
				writeError(w, http.StatusInternalServerError, "Server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// rateLimit bounds requests per client address using the given limiter.
func (h *Handlers) rateLimit(l *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retryAfter := l.Allow(clientAddr(r))
			if !ok {
				writeRateLimited(w, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int(retryAfter.Seconds() + 0.999)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":      "Too many requests, please try again later",
		"retryAfter": seconds,
	})
}

// authenticate validates the session cookie and attaches the decoded
// identity to the request context. It never consults the credential
// store: the token is the source of truth for the request's duration.
func (h *Handlers) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(TokenCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "No token provided")
			return
		}

		claims, err := h.codec.Verify(cookie.Value)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		identity := &Identity{ID: claims.Subject, Email: claims.Email, Role: claims.Role}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}

// requireWrite rejects read-only identities.
func (h *Handlers) requireWrite(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := identityFromRequest(r)
		if identity == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !identity.Role.CanWrite() {
			writeError(w, http.StatusForbidden, "Access denied. Write permission required.")
			return
		}
		next(w, r)
	}
}

// requireAdmin rejects non-admin identities.
func (h *Handlers) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := identityFromRequest(r)
		if identity == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if identity.Role != models.RoleAdmin {
			writeError(w, http.StatusForbidden, "Access denied. Admin only.")
			return
		}
		next(w, r)
	}
}

func (h *Handlers) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.codec.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
