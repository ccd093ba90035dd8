package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/rewards-wallet/internal/lib/logger/sl"
	"github.com/linemk/rewards-wallet/internal/storage"
)

// Privilege - класс административной операции
type Privilege int

const (
	ReadPrivileged Privilege = iota
	WritePrivileged
)

func (p Privilege) String() string {
	if p == WritePrivileged {
		return "write"
	}
	return "read"
}

// AccessGate решает, может ли вызывающий выполнять административные операции.
// Сейчас единственная возможность - флаг is_admin, одинаковый для чтения и записи.
type AccessGate struct {
	log   *slog.Logger
	users storage.UserStorage
}

func NewAccessGate(log *slog.Logger, users storage.UserStorage) *AccessGate {
	return &AccessGate{log: log, users: users}
}

// Authorize не имеет побочных эффектов и вызывается до любого обращения к журналу
func (g *AccessGate) Authorize(ctx context.Context, callerID string, p Privilege) error {
	const op = "service.AccessGate.Authorize"
	logger := g.log.With(slog.String("op", op), slog.String("callerID", callerID), slog.String("privilege", p.String()))

	if callerID == "" {
		return kindError(op, ErrPermission, "caller is not identified")
	}

	user, err := g.users.GetUserByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("unknown caller")
			return kindError(op, ErrPermission, "admin rights required")
		}
		logger.Error("failed to load caller", sl.Err(err))
		return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}
	if !user.IsAdmin {
		logger.Warn("admin rights required")
		return kindError(op, ErrPermission, "admin rights required")
	}
	return nil
}

// IsAdmin - проверка возможности для клиента; неизвестный пользователь не админ
func (g *AccessGate) IsAdmin(ctx context.Context, userID string) (bool, error) {
	const op = "service.AccessGate.IsAdmin"

	user, err := g.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}
	return user.IsAdmin, nil
}
