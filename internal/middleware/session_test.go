package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campus-map-server/internal/auth"
	"campus-map-server/internal/shared/cookies"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokens(t *testing.T) *auth.TokenManager {
	t.Helper()
	tokens, err := auth.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)
	return tokens
}

func TestRequireSession(t *testing.T) {
	tokens := newTokens(t)
	var seen *auth.Claims
	handler := RequireSession(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token, claims, err := tokens.Issue("")
	require.NoError(t, err)

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.AddCookie(&http.Cookie{Name: cookies.SessionCookieName, Value: token})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, claims.SessionID, seen.SessionID)
	})

	t.Run("query parameter", func(t *testing.T) {
		seen = nil
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token=garbage", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestSessionFromContextEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, SessionFromContext(req.Context()))
}
