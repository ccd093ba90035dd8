package authmw_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linemk/rewards-wallet/internal/security"
	"github.com/linemk/rewards-wallet/internal/security/authmw"
)

const testSecret = "testsecret"

func protected(t *testing.T) (http.Handler, *string) {
	t.Helper()
	var seen string
	h := authmw.New(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = authmw.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return h, &seen
}

func TestAuthMiddleware_MissingAuthorization(t *testing.T) {
	handler, _ := protected(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "missing token"))
}

func TestAuthMiddleware_InvalidAuthorizationFormat(t *testing.T) {
	handler, _ := protected(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "InvalidFormat")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "invalid token format"))
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	handler, _ := protected(t)

	token, err := security.NewToken("TG1", "other-secret", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "invalid token"))
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	handler, seen := protected(t)

	token, err := security.NewToken("TG42", testSecret, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "TG42", *seen)
}

func TestNew_PanicsWithoutSecret(t *testing.T) {
	assert.Panics(t, func() { authmw.New("") })
}
