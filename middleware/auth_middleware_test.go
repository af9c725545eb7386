package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/upb/trailguard/cognito"
	"go.uber.org/zap"
)

// MockTokenValidator is a mock implementation of TokenValidator
type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Claims), args.Error(1)
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func failHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})
}

func TestRequireAuth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid JWT in Authorization header allows request", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		middleware := NewAuthMiddleware(mockValidator, logger)

		claims := &Claims{
			Sub:      "user-123",
			Email:    "analyst@example.com",
			Username: "analyst",
			Groups:   []string{"security-analysts"},
		}
		mockValidator.On("ValidateToken", mock.Anything, "valid-token").Return(claims, nil)

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			extracted := GetClaimsFromContext(r.Context())
			assert.NotNil(t, extracted)
			assert.Equal(t, claims.Sub, extracted.Sub)
			assert.Equal(t, claims.Groups, extracted.Groups)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockValidator.AssertExpectations(t)
	})

	t.Run("valid JWT in cookie allows request", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		middleware := NewAuthMiddleware(mockValidator, logger)

		mockValidator.On("ValidateToken", mock.Anything, "cookie-token-value").
			Return(&Claims{Sub: "user-456"}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents", nil)
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: "cookie-token-value"})
		w := httptest.NewRecorder()

		middleware.RequireAuth(okHandler(t)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockValidator.AssertExpectations(t)
	})

	t.Run("missing token returns 401", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		middleware := NewAuthMiddleware(mockValidator, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents", nil)
		w := httptest.NewRecorder()

		middleware.RequireAuth(failHandler(t)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockValidator.AssertNotCalled(t, "ValidateToken")
	})

	t.Run("invalid token returns 401", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		middleware := NewAuthMiddleware(mockValidator, logger)

		mockValidator.On("ValidateToken", mock.Anything, "invalid-token").
			Return(nil, errors.New("token validation failed"))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		w := httptest.NewRecorder()

		middleware.RequireAuth(failHandler(t)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockValidator.AssertExpectations(t)
	})

	t.Run("expired token returns 401", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		middleware := NewAuthMiddleware(mockValidator, logger)

		mockValidator.On("ValidateToken", mock.Anything, "expired-token").
			Return(nil, cognito.ErrTokenExpired)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents", nil)
		req.Header.Set("Authorization", "Bearer expired-token")
		w := httptest.NewRecorder()

		middleware.RequireAuth(failHandler(t)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockValidator.AssertExpectations(t)
	})

	t.Run("nil validator rejects everything", func(t *testing.T) {
		middleware := NewAuthMiddleware(nil, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents", nil)
		req.Header.Set("Authorization", "Bearer anything")
		w := httptest.NewRecorder()

		middleware.RequireAuth(failHandler(t)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("disabled auth passes anonymous claims", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		middleware := NewAuthMiddleware(mockValidator, logger, WithAuthDisabled())

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			assert.NotNil(t, claims)
			assert.Equal(t, "anonymous", claims.Sub)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockValidator.AssertNotCalled(t, "ValidateToken")
	})
}

func TestRequireRole(t *testing.T) {
	logger := zap.NewNop()
	middleware := NewAuthMiddleware(new(MockTokenValidator), logger)

	t.Run("user has required group", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents", nil)
		req = req.WithContext(WithClaims(req.Context(), &Claims{Sub: "u", Groups: []string{"oncall", "security-analysts"}}))
		w := httptest.NewRecorder()

		middleware.RequireRole("security-analysts")(okHandler(t)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("user lacks required group", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents", nil)
		req = req.WithContext(WithClaims(req.Context(), &Claims{Sub: "u", Groups: []string{"oncall"}}))
		w := httptest.NewRecorder()

		middleware.RequireRole("security-analysts")(failHandler(t)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing claims in context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents", nil)
		w := httptest.NewRecorder()

		middleware.RequireRole("security-analysts")(failHandler(t)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("empty group allows everyone", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents", nil)
		w := httptest.NewRecorder()

		middleware.RequireRole("")(okHandler(t)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireAPIKey(t *testing.T) {
	middleware := NewAuthMiddleware(nil, zap.NewNop())

	tests := []struct {
		name       string
		key        string
		header     string
		wantStatus int
	}{
		{name: "matching key", key: "s3cret", header: "s3cret", wantStatus: http.StatusOK},
		{name: "wrong key", key: "s3cret", header: "guess", wantStatus: http.StatusUnauthorized},
		{name: "missing header", key: "s3cret", wantStatus: http.StatusUnauthorized},
		{name: "no key configured", key: "", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/events", nil)
			if tt.header != "" {
				req.Header.Set(APIKeyHeader, tt.header)
			}
			w := httptest.NewRecorder()

			middleware.RequireAPIKey(tt.key)(okHandler(t)).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRequestIDFromContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", GetRequestIDFromContext(ctx))
	assert.Equal(t, "", GetRequestIDFromContext(context.Background()))
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name          string
		authHeader    string
		cookieValue   string
		expectedToken string
	}{
		{
			name:          "valid Bearer token in header",
			authHeader:    "Bearer valid-token-123",
			expectedToken: "valid-token-123",
		},
		{
			name:          "Bearer with lowercase",
			authHeader:    "bearer valid-token-123",
			expectedToken: "valid-token-123",
		},
		{
			name:          "token from auth_token cookie when no header",
			cookieValue:   "cookie-token-value",
			expectedToken: "cookie-token-value",
		},
		{
			name:          "Authorization header takes precedence over cookie",
			authHeader:    "Bearer header-token",
			cookieValue:   "cookie-token",
			expectedToken: "header-token",
		},
		{
			name:          "missing both returns empty",
			expectedToken: "",
		},
		{
			name:          "wrong prefix falls back to cookie",
			authHeader:    "Basic token",
			cookieValue:   "cookie-token",
			expectedToken: "cookie-token",
		},
		{
			name:          "empty Bearer token falls back to cookie",
			authHeader:    "Bearer ",
			cookieValue:   "cookie-token",
			expectedToken: "cookie-token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			if tt.cookieValue != "" {
				req.AddCookie(&http.Cookie{Name: "auth_token", Value: tt.cookieValue})
			}

			assert.Equal(t, tt.expectedToken, extractToken(req))
		})
	}
}
