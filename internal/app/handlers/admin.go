package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/linemk/rewards-wallet/internal/security/authmw"
	"github.com/linemk/rewards-wallet/internal/service"
)

type AdminBonusRequest struct {
	UserID      string          `json:"userId" validate:"required,max=64"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type" validate:"omitempty,max=32"`
	Description string          `json:"description" validate:"omitempty,max=255"`
}

type AdminBalanceRequest struct {
	UserID  string           `json:"userId" validate:"required,max=64"`
	Balance *decimal.Decimal `json:"balance" validate:"required"`
}

// AdminUsersHandler обрабатывает GET /api/admin/users?limit&offset
func AdminUsersHandler(log *slog.Logger, admin service.AdminServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AdminUsersHandler"
		logger := log.With(slog.String("op", op))

		callerID, limit, offset, ok := adminPageRequest(w, r, logger)
		if !ok {
			return
		}
		page, err := admin.ListUsers(r.Context(), callerID, limit, offset)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, page)
	}
}

// AdminTransactionsHandler обрабатывает GET /api/admin/transactions?limit&offset
func AdminTransactionsHandler(log *slog.Logger, admin service.AdminServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AdminTransactionsHandler"
		logger := log.With(slog.String("op", op))

		callerID, limit, offset, ok := adminPageRequest(w, r, logger)
		if !ok {
			return
		}
		page, err := admin.ListTransactions(r.Context(), callerID, limit, offset)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, page)
	}
}

// AdminStatsHandler обрабатывает GET /api/admin/stats
func AdminStatsHandler(log *slog.Logger, admin service.AdminServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AdminStatsHandler"
		logger := log.With(slog.String("op", op))

		callerID, ok := authmw.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		stats, err := admin.Stats(r.Context(), callerID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, stats)
	}
}

// AdminBonusHandler обрабатывает POST /api/admin/bonus
func AdminBonusHandler(log *slog.Logger, ledger service.LedgerServiceInterface) http.HandlerFunc {
	return walletOperation(log, "handlers.AdminBonusHandler", ledger, func(r *http.Request, callerID, key string) (service.Operation, error) {
		var req AdminBonusRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return service.AdminGrant{
			CallerID:       callerID,
			UserID:         req.UserID,
			Amount:         req.Amount,
			Type:           req.Type,
			Description:    req.Description,
			IdempotencyKey: key,
		}, nil
	})
}

// AdminBalanceHandler обрабатывает PUT /api/admin/balance
func AdminBalanceHandler(log *slog.Logger, ledger service.LedgerServiceInterface) http.HandlerFunc {
	return walletOperation(log, "handlers.AdminBalanceHandler", ledger, func(r *http.Request, callerID, _ string) (service.Operation, error) {
		var req AdminBalanceRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return service.AdminSetBalance{CallerID: callerID, UserID: req.UserID, Balance: req.Balance}, nil
	})
}

func adminPageRequest(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (string, int, int, bool) {
	callerID, ok := authmw.FromContext(r.Context())
	if !ok {
		logger.Error("userID not found in context")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", 0, 0, false
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeBadRequest(w, logger, "invalid limit", err)
		return "", 0, 0, false
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeBadRequest(w, logger, "invalid offset", err)
		return "", 0, 0, false
	}
	return callerID, limit, offset, true
}

// queryInt: отсутствующий параметр - 0, дальше значения нормализует сервис
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}
