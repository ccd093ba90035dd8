package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/linemk/rewards-wallet/internal/storage"
)

// Виды ошибок сервиса. Любая ошибка, возвращаемая сервисом, оборачивает ровно один из них.
var (
	ErrValidation        = errors.New("validation error")
	ErrAuthentication    = errors.New("authentication error")
	ErrPermission        = errors.New("permission denied")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrStorage           = errors.New("storage error")
	ErrNotFound          = errors.New("not found")
)

const (
	KindValidation        = "validation"
	KindAuthentication    = "authentication"
	KindPermission        = "permission"
	KindInsufficientFunds = "insufficient_funds"
	KindStorage           = "storage"
	KindNotFound          = "not_found"
	KindInternal          = "internal"
)

// KindOf возвращает стабильное имя вида ошибки для ответа клиенту
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAuthentication):
		return KindAuthentication
	case errors.Is(err, ErrPermission):
		return KindPermission
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrStorage):
		return KindStorage
	}
	return KindInternal
}

func kindError(op string, kind error, msg string) error {
	return fmt.Errorf("%s: %w: %s", op, kind, msg)
}

// fromStorage переводит ошибки хранилища в виды ошибок сервиса
func fromStorage(op string, err error) error {
	var kind error
	switch {
	case errors.Is(err, storage.ErrUserNotFound), errors.Is(err, storage.ErrReferredNotFound):
		kind = ErrNotFound
	case errors.Is(err, storage.ErrInsufficientFunds):
		kind = ErrInsufficientFunds
	case errors.Is(err, storage.ErrAlreadyGranted),
		errors.Is(err, storage.ErrIdempotencyMismatch),
		errors.Is(err, storage.ErrZeroDelta),
		errors.Is(err, storage.ErrAmountOutOfRange):
		kind = ErrValidation
	default:
		kind = ErrStorage
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// ошибки хранилища, текст которых можно показать клиенту как есть
var publicStorageErrors = []error{
	storage.ErrUserNotFound,
	storage.ErrReferredNotFound,
	storage.ErrAlreadyGranted,
	storage.ErrIdempotencyMismatch,
	storage.ErrZeroDelta,
	storage.ErrAmountOutOfRange,
}

// PublicMessage возвращает текст ошибки без цепочки op.
// Для ошибок хранилища и внутренних ошибок подробности не раскрываются.
func PublicMessage(err error) string {
	for _, sentinel := range publicStorageErrors {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}

	msg := err.Error()
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrAuthentication, ErrPermission, ErrInsufficientFunds} {
		if !errors.Is(err, kind) {
			continue
		}
		marker := kind.Error() + ": "
		if i := strings.Index(msg, marker); i >= 0 {
			return msg[i+len(marker):]
		}
		return kind.Error()
	}
	return "internal server error"
}
