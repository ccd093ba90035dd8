package app_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linemk/rewards-wallet/internal/app"
	"github.com/linemk/rewards-wallet/internal/config"
	"github.com/linemk/rewards-wallet/internal/domain/models"
	"github.com/linemk/rewards-wallet/internal/lib/ratelimit"
	"github.com/linemk/rewards-wallet/internal/security"
	"github.com/linemk/rewards-wallet/internal/service"
)

const secret = "router-secret"

type stubAuth struct{}

func (stubAuth) TelegramLogin(ctx context.Context, data map[string]string) (*models.User, string, error) {
	return &models.User{UserID: "TG" + data["id"]}, "token", nil
}

type stubGate struct{}

func (stubGate) IsAdmin(ctx context.Context, userID string) (bool, error) { return userID == "admin", nil }

type stubWallet struct{}

func (stubWallet) GetWallet(ctx context.Context, userID string) (*service.WalletResponse, error) {
	return &service.WalletResponse{User: &models.User{UserID: userID}, Transactions: []*models.Transaction{}}, nil
}

type stubLedger struct {
	mu  sync.Mutex
	ops []string
}

func (s *stubLedger) Execute(ctx context.Context, op service.Operation) (*service.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, op.Name())
	return &service.Outcome{Success: true}, nil
}

type stubAdmin struct{}

func (stubAdmin) ListUsers(ctx context.Context, callerID string, limit, offset int) (*service.UsersPage, error) {
	return &service.UsersPage{Users: []*models.User{}}, nil
}

func (stubAdmin) ListTransactions(ctx context.Context, callerID string, limit, offset int) (*service.TransactionsPage, error) {
	return &service.TransactionsPage{Transactions: []*models.Transaction{}}, nil
}

func (stubAdmin) Stats(ctx context.Context, callerID string) (*models.Stats, error) {
	return &models.Stats{}, nil
}

// countingLimiter пропускает limit запросов на ключ
type countingLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	limit  int
}

func (c *countingLimiter) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	n := c.counts[key]
	return ratelimit.Decision{Allowed: n <= c.limit, RetryIn: time.Second}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		JWT:       config.JWTConfig{Secret: secret, TokenTTL: 60},
		RateLimit: config.RateLimitConfig{Requests: 1, Window: time.Minute},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"https://wallet.example"}},
	}
}

func newTestRouter(t *testing.T, limiter ratelimit.Limiter) (http.Handler, *stubLedger) {
	t.Helper()
	return newTestRouterWithConfig(t, testConfig(), limiter)
}

func newTestRouterWithConfig(t *testing.T, cfg *config.Config, limiter ratelimit.Limiter) (http.Handler, *stubLedger) {
	t.Helper()
	ledger := &stubLedger{}
	svc := app.Services{Auth: stubAuth{}, Gate: stubGate{}, Wallet: stubWallet{}, Ledger: ledger, Admin: stubAdmin{}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return app.NewRouter(log, cfg, svc, limiter), ledger
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := security.NewToken(userID, secret, time.Minute)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouter_WalletRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/wallet", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/wallet", nil)
	req.Header.Set("Authorization", bearer(t, "U1"))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"user_id":"U1"`)
}

func TestRouter_RoutesOperations(t *testing.T) {
	router, ledger := newTestRouter(t, nil)

	routes := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/api/wallet/withdraw", `{"amount": 1}`},
		{http.MethodPost, "/api/wallet/topup", `{"amount": 1}`},
		{http.MethodPost, "/api/wallet/card-bonus", ``},
		{http.MethodPost, "/api/wallet/referral-bonus", `{"referredId": "U2"}`},
		{http.MethodPost, "/api/admin/bonus", `{"userId": "U2", "amount": 5}`},
		{http.MethodPut, "/api/admin/balance", `{"userId": "U2", "balance": 5}`},
	}
	for _, rt := range routes {
		req := httptest.NewRequest(rt.method, rt.path, bytes.NewBufferString(rt.body))
		req.Header.Set("Authorization", bearer(t, "admin"))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, rt.path)
	}
	assert.Equal(t, []string{"withdraw", "topup", "card_bonus", "referral_bonus", "admin_grant", "admin_set_balance"}, ledger.ops)

	for _, path := range []string{"/api/admin/users", "/api/admin/transactions", "/api/admin/stats"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", bearer(t, "admin"))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestRouter_LoginRateLimited(t *testing.T) {
	router, _ := newTestRouter(t, &countingLimiter{counts: map[string]int{}, limit: 1})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/telegram", bytes.NewBufferString(`{"authData":{"id":"1","hash":"x"}}`))
		req.RemoteAddr = "10.1.1.1:1000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)

	// проверка флага администратора лимитом не ограничена
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/check-admin", bytes.NewBufferString(`{"userId":"admin"}`))
		req.RemoteAddr = "10.1.1.1:1000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"isAdmin":true`)
	}
}

func loginFrom(router http.Handler, remoteAddr, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/telegram", bytes.NewBufferString(`{"authData":{"id":"1","hash":"x"}}`))
	req.RemoteAddr = remoteAddr
	req.Header.Set("X-Forwarded-For", forwardedFor)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr.Code
}

func TestRouter_LoginLimitIgnoresForwardedForWithoutProxy(t *testing.T) {
	router, _ := newTestRouter(t, &countingLimiter{counts: map[string]int{}, limit: 1})

	assert.Equal(t, http.StatusOK, loginFrom(router, "10.1.1.1:1000", "203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, loginFrom(router, "10.1.1.1:1000", "203.0.113.2"))
}

func TestRouter_LoginLimitBehindProxyUsesForwardedFor(t *testing.T) {
	cfg := testConfig()
	cfg.HTTPServer.BehindProxy = true
	limiter := &countingLimiter{counts: map[string]int{}, limit: 1}
	router, _ := newTestRouterWithConfig(t, cfg, limiter)

	// за прокси у всех запросов один RemoteAddr, клиенты различаются по заголовку
	assert.Equal(t, http.StatusOK, loginFrom(router, "10.0.0.2:80", "203.0.113.1"))
	assert.Equal(t, http.StatusOK, loginFrom(router, "10.0.0.2:80", "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, loginFrom(router, "10.0.0.2:80", "203.0.113.1"))

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Equal(t, 2, limiter.counts["ip:203.0.113.1"])
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/wallet/withdraw", nil)
	req.Header.Set("Origin", "https://wallet.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Idempotency-Key")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "https://wallet.example", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}
