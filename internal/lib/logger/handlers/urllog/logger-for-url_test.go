package urllog_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"

	"github.com/linemk/rewards-wallet/internal/lib/logger/handlers/urllog"
)

func TestCustomLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := middleware.RequestID(urllog.CustomLoggerMiddleware(log)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/wallet", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	out := buf.String()
	assert.Contains(t, out, `"msg":"request received"`)
	assert.Contains(t, out, `"url":"/api/wallet"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"request_id":"`)
}
