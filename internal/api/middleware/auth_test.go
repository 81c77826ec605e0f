package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lessonworks/analysis-api/internal/config"
	"github.com/lessonworks/analysis-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJWTService(t *testing.T) auth.JWTService {
	t.Helper()

	svc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            "0123456789abcdef0123456789abcdef",
		TokenLifetimeMinutes: 30,
	})
	require.NoError(t, err)
	return svc
}

func protectedHandler(t *testing.T, sawSubject *string) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, ok := GetSubject(r)
		require.True(t, ok)
		*sawSubject = subject
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	t.Parallel()

	t.Run("valid token passes with subject in context", func(t *testing.T) {
		t.Parallel()

		jwtService := newJWTService(t)
		token, err := jwtService.GenerateToken(context.Background(), auth.AdminSubject)
		require.NoError(t, err)

		var subject string
		mw := NewAuthMiddleware(jwtService)
		req := httptest.NewRequest(http.MethodPost, "/api/admin/worker/dispatch", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		mw.Authenticate(protectedHandler(t, &subject)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, auth.AdminSubject, subject)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		t.Parallel()

		var subject string
		mw := NewAuthMiddleware(newJWTService(t))
		req := httptest.NewRequest(http.MethodPost, "/api/admin/worker/dispatch", nil)
		rec := httptest.NewRecorder()

		mw.Authenticate(protectedHandler(t, &subject)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, subject)
	})

	t.Run("malformed header rejected", func(t *testing.T) {
		t.Parallel()

		var subject string
		mw := NewAuthMiddleware(newJWTService(t))
		req := httptest.NewRequest(http.MethodPost, "/api/admin/worker/dispatch", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()

		mw.Authenticate(protectedHandler(t, &subject)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		t.Parallel()

		var subject string
		mw := NewAuthMiddleware(newJWTService(t))
		req := httptest.NewRequest(http.MethodPost, "/api/admin/worker/dispatch", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rec := httptest.NewRecorder()

		mw.Authenticate(protectedHandler(t, &subject)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
