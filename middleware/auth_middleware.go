package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/upb/trailguard/utils"
	"go.uber.org/zap"
)

// TokenValidator defines the interface for validating JWT tokens
type TokenValidator interface {
	// ValidateToken validates a JWT token and returns claims
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

// ErrAuthNotConfigured is returned by RejectAllValidator
var ErrAuthNotConfigured = errors.New("token validation not configured")

// RejectAllValidator fails every token. It stands in when no identity
// provider is configured so that protected routes stay closed.
type RejectAllValidator struct{}

// ValidateToken always fails
func (RejectAllValidator) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	return nil, ErrAuthNotConfigured
}

// AnonymousClaims are attached to requests when authentication is disabled
var AnonymousClaims = Claims{Sub: "anonymous", Username: "anonymous"}

// APIKeyHeader carries the shared ingest key
const APIKeyHeader = "X-API-Key"

// authTokenCookieName is the cookie name for JWT tokens (Authorization header takes precedence)
const authTokenCookieName = "auth_token"

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	disabled  bool
	logger    *zap.Logger
}

// AuthOption configures an AuthMiddleware
type AuthOption func(*AuthMiddleware)

// WithAuthDisabled lets every request through as AnonymousClaims
func WithAuthDisabled() AuthOption {
	return func(m *AuthMiddleware) {
		m.disabled = true
	}
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator TokenValidator, logger *zap.Logger, opts ...AuthOption) *AuthMiddleware {
	if validator == nil {
		validator = RejectAllValidator{}
	}
	m := &AuthMiddleware{
		validator: validator,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RequireAuth is a middleware that requires a valid JWT token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		if m.disabled {
			anonymous := AnonymousClaims
			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, &anonymous)))
			return
		}

		token := extractToken(r)
		if token == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		ctx = WithClaims(ctx, claims)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", claims.Sub),
			zap.String("username", claims.Username))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole is a middleware that requires membership in a Cognito group.
// It must run after RequireAuth. An empty role allows everyone.
func (m *AuthMiddleware) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if role == "" || m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			claims := GetClaimsFromContext(ctx)
			if claims == nil {
				m.logger.Error("claims not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			if !claims.HasGroup(role) {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.String("required_role", role),
					zap.Strings("user_groups", claims.Groups))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAPIKey guards machine endpoints with a shared key sent in the
// X-API-Key header. An empty key disables the check.
func (m *AuthMiddleware) RequireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(APIKeyHeader)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				m.logger.Warn("invalid API key",
					zap.String("request_id", GetRequestIDFromContext(r.Context())),
					zap.String("remote_addr", r.RemoteAddr))
				_ = utils.WriteUnauthorized(w, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken extracts JWT from the Authorization header ("Bearer TOKEN")
// or the auth_token cookie. The header takes precedence.
func extractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(authTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
