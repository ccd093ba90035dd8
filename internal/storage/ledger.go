package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/linemk/rewards-wallet/internal/domain/models"
)

// Accumulator - поле пользователя, которое копит сумму бонусов определенного типа
type Accumulator int

const (
	AccumulatorNone Accumulator = iota
	AccumulatorCard
	AccumulatorReferral
)

// LedgerEntry описывает одно изменение баланса вместе с записью журнала
type LedgerEntry struct {
	UserID         string
	Delta          decimal.Decimal // знак определяет направление, в журнал пишется модуль
	Accumulator    Accumulator
	Type           string
	Phone          *string
	Bank           *string
	Description    string
	IdempotencyKey *string
	// GrantedBy - администратор, начисливший операцию. Такие записи не учитываются в OncePerUser.
	GrantedBy *string
	// OncePerUser запрещает вторую собственную запись того же типа у пользователя
	OncePerUser bool
	Referral    *ReferralLink
}

// ReferralLink - строка referrals, которая вставляется в той же транзакции
type ReferralLink struct {
	ReferredID  string
	OncePerPair bool
}

type LedgerResult struct {
	NewBalance  decimal.Decimal
	Transaction *models.Transaction // nil, если SetBalance ничего не изменил
	Replayed    bool
}

// LedgerStorage - единственный путь изменения баланса.
// Каждый вызов выполняется в одной транзакции БД под блокировкой строки пользователя.
type LedgerStorage interface {
	ApplyLedgerOperation(ctx context.Context, entry LedgerEntry) (*LedgerResult, error)
	SetBalance(ctx context.Context, userID string, newBalance decimal.Decimal, description string, grantedBy *string) (*LedgerResult, error)
}

type ledgerRepository struct {
	log *slog.Logger
	db  *sql.DB
}

func NewLedgerRepository(log *slog.Logger, db *sql.DB) LedgerStorage {
	return &ledgerRepository{log: log, db: db}
}

// pq коды ошибок
const (
	pqCheckViolation    = "23514"
	pqNumericOutOfRange = "22003"
)

func (r *ledgerRepository) ApplyLedgerOperation(ctx context.Context, e LedgerEntry) (*LedgerResult, error) {
	const op = "storage.ledger.ApplyLedgerOperation"
	logger := r.log.With(slog.String("op", op), slog.String("userID", e.UserID), slog.String("type", e.Type))

	if e.Delta.IsZero() {
		return nil, fmt.Errorf("%s: %w", op, ErrZeroDelta)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer r.rollback(tx, logger)

	// блокируем строку пользователя до конца транзакции, все проверки ниже идут под блокировкой
	balance, err := lockBalance(ctx, tx, e.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if e.IdempotencyKey != nil {
		prev, err := findByIdempotencyKey(ctx, tx, e.UserID, *e.IdempotencyKey)
		switch {
		case err == nil:
			if prev.Type != e.Type || !prev.Amount.Equal(e.Delta.Abs()) {
				return nil, fmt.Errorf("%s: %w", op, ErrIdempotencyMismatch)
			}
			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
			}
			logger.Info("operation replayed", slog.Int64("txID", prev.ID))
			return &LedgerResult{NewBalance: balance, Transaction: prev, Replayed: true}, nil
		case !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("%s: failed to check idempotency key: %w", op, err)
		}
	}

	if e.OncePerUser {
		var granted bool
		err := tx.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM transactions WHERE user_id = $1 AND type = $2 AND granted_by IS NULL)", e.UserID, e.Type,
		).Scan(&granted)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to check previous grants: %w", op, err)
		}
		if granted {
			return nil, fmt.Errorf("%s: %w", op, ErrAlreadyGranted)
		}
	}

	if e.Referral != nil {
		if err := checkReferral(ctx, tx, e.UserID, e.Referral); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if e.Delta.IsNegative() && balance.Add(e.Delta).IsNegative() {
		logger.Warn("insufficient funds", slog.String("balance", balance.String()), slog.String("delta", e.Delta.String()))
		return nil, fmt.Errorf("%s: %w", op, ErrInsufficientFunds)
	}

	cardInc, referralInc := decimal.Zero, decimal.Zero
	switch e.Accumulator {
	case AccumulatorCard:
		cardInc = e.Delta.Abs()
	case AccumulatorReferral:
		referralInc = e.Delta.Abs()
	}

	var newBalance decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		UPDATE users
		SET balance = balance + $2,
			card_earnings = card_earnings + $3,
			referral_earnings = referral_earnings + $4,
			updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance`,
		e.UserID, e.Delta, cardInc, referralInc,
	).Scan(&newBalance)
	if err != nil {
		if sentinel := pqSentinel(err); sentinel != nil {
			return nil, fmt.Errorf("%s: %w", op, sentinel)
		}
		return nil, fmt.Errorf("%s: failed to update balance: %w", op, err)
	}

	record := &models.Transaction{
		UserID:         e.UserID,
		Type:           e.Type,
		Amount:         e.Delta.Abs(),
		Status:         models.TxStatusCompleted,
		Phone:          e.Phone,
		Bank:           e.Bank,
		Description:    e.Description,
		IdempotencyKey: e.IdempotencyKey,
		GrantedBy:      e.GrantedBy,
	}
	if err := insertTransaction(ctx, tx, record); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if e.Referral != nil {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO referrals (referrer_id, referred_id, status) VALUES ($1, $2, $3)",
			e.UserID, e.Referral.ReferredID, models.ReferralStatusCompleted,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to create referral: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("ledger operation applied", slog.Int64("txID", record.ID), slog.String("balance", newBalance.String()))
	return &LedgerResult{NewBalance: newBalance, Transaction: record}, nil
}

// SetBalance выставляет баланс напрямую и пишет корректирующую запись на разницу,
// поэтому баланс всегда равен сумме журнала
func (r *ledgerRepository) SetBalance(ctx context.Context, userID string, newBalance decimal.Decimal, description string, grantedBy *string) (*LedgerResult, error) {
	const op = "storage.ledger.SetBalance"
	logger := r.log.With(slog.String("op", op), slog.String("userID", userID))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer r.rollback(tx, logger)

	current, err := lockBalance(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	diff := newBalance.Sub(current)
	if diff.IsZero() {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
		}
		return &LedgerResult{NewBalance: current}, nil
	}

	_, err = tx.ExecContext(ctx, "UPDATE users SET balance = $2, updated_at = NOW() WHERE user_id = $1", userID, newBalance)
	if err != nil {
		if sentinel := pqSentinel(err); sentinel != nil {
			return nil, fmt.Errorf("%s: %w", op, sentinel)
		}
		return nil, fmt.Errorf("%s: failed to set balance: %w", op, err)
	}

	txType := models.TxAdjustmentCredit
	if diff.IsNegative() {
		txType = models.TxAdjustmentDebit
	}
	record := &models.Transaction{
		UserID:      userID,
		Type:        txType,
		Amount:      diff.Abs(),
		Status:      models.TxStatusCompleted,
		Description: description,
		GrantedBy:   grantedBy,
	}
	if err := insertTransaction(ctx, tx, record); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("balance overridden", slog.String("from", current.String()), slog.String("to", newBalance.String()))
	return &LedgerResult{NewBalance: newBalance, Transaction: record}, nil
}

func (r *ledgerRepository) rollback(tx *sql.Tx, logger *slog.Logger) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Error("transaction rollback failed", slog.Any("error", err))
	}
}

func lockBalance(ctx context.Context, tx *sql.Tx, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx, "SELECT balance FROM users WHERE user_id = $1 FOR UPDATE", userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to lock user: %w", err)
	}
	return balance, nil
}

func findByIdempotencyKey(ctx context.Context, tx *sql.Tx, userID, key string) (*models.Transaction, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = $1 AND idempotency_key = $2", userID, key)
	return scanTransaction(row)
}

func checkReferral(ctx context.Context, tx *sql.Tx, referrerID string, link *ReferralLink) error {
	var exists bool
	err := tx.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)", link.ReferredID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check referred user: %w", err)
	}
	if !exists {
		return ErrReferredNotFound
	}

	if !link.OncePerPair {
		return nil
	}
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM referrals WHERE referrer_id = $1 AND referred_id = $2)", referrerID, link.ReferredID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check referral: %w", err)
	}
	if exists {
		return ErrAlreadyGranted
	}
	return nil
}

// insertTransaction заполняет ID и CreatedAt записи
func insertTransaction(ctx context.Context, tx *sql.Tx, t *models.Transaction) error {
	query := `INSERT INTO transactions (user_id, type, amount, status, phone, bank, description, idempotency_key, granted_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`
	err := tx.QueryRowContext(ctx, query,
		t.UserID, t.Type, t.Amount, t.Status, t.Phone, t.Bank, t.Description, t.IdempotencyKey, t.GrantedBy,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// pqSentinel: нарушение CHECK на балансе - нехватка средств,
// выход за NUMERIC(14, 2) при накоплении - недопустимая сумма
func pqSentinel(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}
	switch pqErr.Code {
	case pqCheckViolation:
		return ErrInsufficientFunds
	case pqNumericOutOfRange:
		return ErrAmountOutOfRange
	}
	return nil
}
