package storage

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrReferredNotFound    = errors.New("referred user not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAlreadyGranted      = errors.New("bonus already granted")
	ErrIdempotencyMismatch = errors.New("idempotency key reused with different parameters")
	ErrZeroDelta           = errors.New("ledger delta must be non-zero")
	ErrAmountOutOfRange    = errors.New("amount out of range")
)
