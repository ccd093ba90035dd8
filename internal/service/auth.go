package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/linemk/rewards-wallet/internal/domain/models"
	"github.com/linemk/rewards-wallet/internal/lib/logger/sl"
	"github.com/linemk/rewards-wallet/internal/lib/tgauth"
	"github.com/linemk/rewards-wallet/internal/security"
	"github.com/linemk/rewards-wallet/internal/storage"
)

// TelegramUserPrefix - префикс user_id для пользователей, вошедших через Telegram
const TelegramUserPrefix = "TG"

type AuthConfig struct {
	BotToken        string
	AdminTelegramID int64
	MaxAuthAge      time.Duration // 0 - не проверять auth_date
	JWTSecret       string
	TokenTTL        time.Duration
}

type AuthServiceInterface interface {
	TelegramLogin(ctx context.Context, data map[string]string) (*models.User, string, error)
}

type AuthService struct {
	log   *slog.Logger
	users storage.UserStorage
	cfg   AuthConfig
	now   func() time.Time
}

func NewAuthService(log *slog.Logger, users storage.UserStorage, cfg AuthConfig) *AuthService {
	return &AuthService{
		log:   log,
		users: users,
		cfg:   cfg,
		now:   time.Now,
	}
}

// VerifyIdentity проверяет подпись данных Telegram Login Widget и создает или обновляет пользователя.
// Баланс и накопления при обновлении не трогаются, повторный вызов с теми же данными ничего не меняет.
func (a *AuthService) VerifyIdentity(ctx context.Context, data map[string]string) (*models.User, error) {
	const op = "service.AuthService.VerifyIdentity"
	logger := a.log.With(slog.String("op", op))

	telegramID, err := a.checkPayload(data)
	if err != nil {
		logger.Warn("identity rejected", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := &models.User{
		UserID:     TelegramUserPrefix + strconv.FormatInt(telegramID, 10),
		TelegramID: &telegramID,
		FirstName:  data["first_name"],
		LastName:   data["last_name"],
		Username:   data["username"],
		PhotoURL:   data["photo_url"],
		IsAdmin:    a.cfg.AdminTelegramID != 0 && telegramID == a.cfg.AdminTelegramID,
	}
	saved, err := a.users.UpsertTelegramUser(ctx, user)
	if err != nil {
		logger.Error("failed to save user", sl.Err(err))
		return nil, fromStorage(op, err)
	}

	logger.Info("identity verified", slog.String("userID", saved.UserID), slog.Bool("isAdmin", saved.IsAdmin))
	return saved, nil
}

// TelegramLogin проверяет личность и выдает сессионный токен
func (a *AuthService) TelegramLogin(ctx context.Context, data map[string]string) (*models.User, string, error) {
	const op = "service.AuthService.TelegramLogin"

	user, err := a.VerifyIdentity(ctx, data)
	if err != nil {
		return nil, "", err
	}

	token, err := security.NewToken(user.UserID, a.cfg.JWTSecret, a.cfg.TokenTTL)
	if err != nil {
		a.log.Error("failed to generate token", slog.String("op", op), sl.Err(err))
		return nil, "", fmt.Errorf("%s: %w: %w", op, ErrAuthentication, err)
	}
	return user, token, nil
}

func (a *AuthService) checkPayload(data map[string]string) (int64, error) {
	if a.cfg.BotToken == "" {
		return 0, fmt.Errorf("%w: %w", ErrAuthentication, tgauth.ErrNoBotToken)
	}
	if data[tgauth.FieldHash] == "" {
		return 0, fmt.Errorf("%w: %w", ErrValidation, tgauth.ErrMissingHash)
	}
	telegramID, err := tgauth.TelegramID(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if err := tgauth.CheckHash(data, a.cfg.BotToken); err != nil {
		if errors.Is(err, tgauth.ErrMissingHash) {
			return 0, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return 0, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	if a.cfg.MaxAuthAge > 0 {
		authDate, err := tgauth.AuthDate(data)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		if err := tgauth.CheckFresh(authDate, a.now(), a.cfg.MaxAuthAge); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrAuthentication, err)
		}
	}
	return telegramID, nil
}
