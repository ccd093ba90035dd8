package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/linemk/rewards-wallet/internal/security/authmw"
	"github.com/linemk/rewards-wallet/internal/service"
)

// IdempotencyKeyHeader - необязательный ключ повтора для изменяющих запросов
const IdempotencyKeyHeader = "Idempotency-Key"

type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Phone  string          `json:"phone" validate:"omitempty,max=32"`
	Bank   string          `json:"bank" validate:"omitempty,max=64"`
}

type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type ReferralBonusRequest struct {
	ReferredID string `json:"referredId" validate:"required,max=64"`
}

// WalletHandler обрабатывает GET /api/wallet
func WalletHandler(log *slog.Logger, walletService service.WalletServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.WalletHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := authmw.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		resp, err := walletService.GetWallet(r.Context(), userID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, resp)
	}
}

// WithdrawHandler обрабатывает POST /api/wallet/withdraw
func WithdrawHandler(log *slog.Logger, ledger service.LedgerServiceInterface) http.HandlerFunc {
	return walletOperation(log, "handlers.WithdrawHandler", ledger, func(r *http.Request, userID, key string) (service.Operation, error) {
		var req WithdrawRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return service.Withdraw{UserID: userID, Amount: req.Amount, Phone: req.Phone, Bank: req.Bank, IdempotencyKey: key}, nil
	})
}

// TopUpHandler обрабатывает POST /api/wallet/topup
func TopUpHandler(log *slog.Logger, ledger service.LedgerServiceInterface) http.HandlerFunc {
	return walletOperation(log, "handlers.TopUpHandler", ledger, func(r *http.Request, userID, key string) (service.Operation, error) {
		var req TopUpRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return service.TopUp{UserID: userID, Amount: req.Amount, IdempotencyKey: key}, nil
	})
}

// CardBonusHandler обрабатывает POST /api/wallet/card-bonus, тело не требуется
func CardBonusHandler(log *slog.Logger, ledger service.LedgerServiceInterface) http.HandlerFunc {
	return walletOperation(log, "handlers.CardBonusHandler", ledger, func(r *http.Request, userID, key string) (service.Operation, error) {
		return service.CardBonus{UserID: userID, IdempotencyKey: key}, nil
	})
}

// ReferralBonusHandler обрабатывает POST /api/wallet/referral-bonus
func ReferralBonusHandler(log *slog.Logger, ledger service.LedgerServiceInterface) http.HandlerFunc {
	return walletOperation(log, "handlers.ReferralBonusHandler", ledger, func(r *http.Request, userID, key string) (service.Operation, error) {
		var req ReferralBonusRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return service.ReferralBonus{UserID: userID, ReferredID: req.ReferredID, IdempotencyKey: key}, nil
	})
}

type operationBuilder func(r *http.Request, userID, idempotencyKey string) (service.Operation, error)

func walletOperation(log *slog.Logger, op string, ledger service.LedgerServiceInterface, build operationBuilder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", op))

		userID, ok := authmw.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		key, err := idempotencyKey(r)
		if err != nil {
			writeBadRequest(w, logger, "invalid Idempotency-Key header", err)
			return
		}

		operation, err := build(r, userID, key)
		if err != nil {
			writeBadRequest(w, logger, "invalid request", err)
			return
		}

		outcome, err := ledger.Execute(r.Context(), operation)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, outcome)
	}
}

// idempotencyKey возвращает ключ в каноническом виде UUID или пустую строку
func idempotencyKey(r *http.Request) (string, error) {
	raw := r.Header.Get(IdempotencyKeyHeader)
	if raw == "" {
		return "", nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// decodeBody разбирает JSON и проверяет теги validate; пустое тело допустимо
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return validate.Struct(dst)
}
