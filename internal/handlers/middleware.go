package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"academy/internal/apperr"
	"academy/internal/metrics"
	"academy/internal/models"
	"academy/internal/security"
)

// Identity is the authenticated principal extracted from an access token
type Identity struct {
	AccountID int64
}

// ProfileLoader loads the current user for an authenticated request
type ProfileLoader interface {
	Profile(ctx context.Context, accountID int64) (*models.Profile, error)
}

// Middleware holds dependencies for middleware functions
type Middleware struct {
	tokens   *security.TokenIssuer
	profiles ProfileLoader
	limiter  *security.RateLimiter
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewMiddleware creates a new middleware instance. A nil limiter disables
// rate limiting.
func NewMiddleware(tokens *security.TokenIssuer, profiles ProfileLoader, limiter *security.RateLimiter, logger *slog.Logger, m *metrics.Metrics) *Middleware {
	return &Middleware{
		tokens:   tokens,
		profiles: profiles,
		limiter:  limiter,
		logger:   logger,
		metrics:  m,
	}
}

// RequireAuth rejects requests without a valid bearer access token and
// attaches the caller's Identity to the request context
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.authenticate(r)
		if err != nil {
			m.metrics.GuardRejected(apperr.Code(err))
			respondWithError(w, m.logger, err)
			return
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) authenticate(r *http.Request) (*Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, apperr.New(apperr.CodeAuthHeaderMissing)
	}

	scheme, token, _ := strings.Cut(header, " ")
	if scheme != "Bearer" {
		return nil, apperr.New(apperr.CodeAuthSchemeInvalid)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.New(apperr.CodeAuthTokenMissing)
	}

	claims, err := m.tokens.VerifyAccessToken(token)
	switch {
	case errors.Is(err, security.ErrTokenExpired):
		return nil, apperr.New(apperr.CodeTokenExpired)
	case errors.Is(err, security.ErrTokenSignatureInvalid):
		return nil, apperr.New(apperr.CodeTokenSignatureInvalid)
	case err != nil:
		return nil, apperr.New(apperr.CodeTokenInvalid)
	}

	if claims.UserInfo == nil || claims.UserInfo.ID <= 0 {
		return nil, apperr.New(apperr.CodeClaimsMalformed)
	}
	return &Identity{AccountID: claims.UserInfo.ID}, nil
}

// AttachIdentity loads the profile of the authenticated caller as the
// current user. Lookup failures are logged and the request continues
// without one.
func (m *Middleware) AttachIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := IdentityFromContext(r.Context())
		if identity == nil {
			next.ServeHTTP(w, r)
			return
		}

		profile, err := m.profiles.Profile(r.Context(), identity.AccountID)
		if err != nil {
			if apperr.HasCode(err, apperr.CodeAccountNotFound) {
				m.logger.Warn("authenticated account not found", "account_id", identity.AccountID)
			} else {
				apperr.LogError(m.logger, "failed to attach current user", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), CurrentUserContextKey, profile)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimit limits requests per client IP for the named route
func (m *Middleware) RateLimit(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m.limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := route + "|" + security.GetClientIP(r)
			if !m.limiter.Allow(key) {
				m.metrics.RateLimitHit(route)
				respondWithError(w, m.logger, apperr.New(apperr.CodeRateLimited))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID tags each request with an id. A caller-supplied id is kept only
// when it parses as a UUID; anything else is replaced.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		if given, err := uuid.Parse(r.Header.Get(RequestIDHeader)); err == nil {
			id = given.String()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), RequestIDContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging logs HTTP requests
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"request_id", RequestIDFromContext(r.Context()),
			)
		})
	}
}

// IdentityFromContext retrieves the authenticated identity from the context
func IdentityFromContext(ctx context.Context) *Identity {
	identity, ok := ctx.Value(IdentityContextKey).(*Identity)
	if !ok {
		return nil
	}
	return identity
}

// CurrentUser retrieves the current user attached by AttachIdentity
func CurrentUser(ctx context.Context) *models.Profile {
	user, ok := ctx.Value(CurrentUserContextKey).(*models.Profile)
	if !ok {
		return nil
	}
	return user
}

// RequestIDFromContext returns the request id, or "" outside a request
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}
