package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/linemk/rewards-wallet/internal/lib/logger/sl"
	"github.com/linemk/rewards-wallet/internal/service"
)

var validate = validator.New()

// ErrorResponse - тело ответа при ошибке
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// StatusFor сопоставляет вид ошибки сервиса с HTTP-статусом
func StatusFor(kind string) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindAuthentication:
		return http.StatusUnauthorized
	case service.KindPermission:
		return http.StatusForbidden
	case service.KindInsufficientFunds:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// publicMessage - текст для клиента без имен операций и подробностей хранилища
func publicMessage(kind string, err error) string {
	switch kind {
	case service.KindStorage, service.KindInternal:
		return "internal server error"
	case service.KindPermission:
		return "admin rights required"
	case service.KindInsufficientFunds:
		return "insufficient funds"
	}
	return service.PublicMessage(err)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := service.KindOf(err)
	status := StatusFor(kind)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.String("kind", kind), sl.Err(err))
	} else {
		logger.Info("request rejected", slog.String("kind", kind), sl.Err(err))
	}
	writeJSON(w, logger, status, ErrorResponse{Error: publicMessage(kind, err), Kind: kind})
}

func writeBadRequest(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	logger.Info(msg, sl.Err(err))
	writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: msg, Kind: service.KindValidation})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", sl.Err(err))
	}
}
