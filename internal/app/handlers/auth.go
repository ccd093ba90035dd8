package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/linemk/rewards-wallet/internal/domain/models"
	"github.com/linemk/rewards-wallet/internal/service"
)

// TelegramAuthRequest - данные виджета входа Telegram в том виде, в каком их присылает фронтенд
type TelegramAuthRequest struct {
	AuthData map[string]any `json:"authData" validate:"required"`
}

type TelegramAuthResponse struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
	Token   string       `json:"token"`
}

type CheckAdminRequest struct {
	UserID string `json:"userId" validate:"required,max=64"`
}

type CheckAdminResponse struct {
	IsAdmin bool `json:"isAdmin"`
}

// AdminChecker - проверка флага администратора
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// TelegramAuthHandler обрабатывает POST /api/auth/telegram
func TelegramAuthHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TelegramAuthHandler"
		logger := log.With(slog.String("op", op))

		var req TelegramAuthRequest
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			writeBadRequest(w, logger, "invalid request", err)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeBadRequest(w, logger, "authData is required", err)
			return
		}

		claims, err := claimsFromJSON(req.AuthData)
		if err != nil {
			writeBadRequest(w, logger, "invalid authData", err)
			return
		}

		user, token, err := authService.TelegramLogin(r.Context(), claims)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, TelegramAuthResponse{Success: true, User: user, Token: token})
	}
}

// CheckAdminHandler обрабатывает POST /api/auth/check-admin
func CheckAdminHandler(log *slog.Logger, checker AdminChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CheckAdminHandler"
		logger := log.With(slog.String("op", op))

		var req CheckAdminRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, logger, "invalid request", err)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeBadRequest(w, logger, "userId is required", err)
			return
		}

		isAdmin, err := checker.IsAdmin(r.Context(), req.UserID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, CheckAdminResponse{IsAdmin: isAdmin})
	}
}

// claimsFromJSON приводит значения к строкам в том же виде, в каком Telegram их подписал.
// Числа берутся как есть (json.Number), null пропускается.
func claimsFromJSON(raw map[string]any) (map[string]string, error) {
	claims := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			claims[k] = val
		case json.Number:
			claims[k] = val.String()
		case bool:
			claims[k] = strconv.FormatBool(val)
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			claims[k] = string(b)
		}
	}
	return claims, nil
}
