package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/linemk/rewards-wallet/internal/domain/models"
)

const transactionColumns = `id, user_id, type, amount, status, phone, bank, description, idempotency_key, granted_by, created_at`

// TransactionStorage - чтение журнала операций. Запись идет только через LedgerStorage.
type TransactionStorage interface {
	// GetTransactionsByUserID возвращает последние limit операций пользователя.
	GetTransactionsByUserID(ctx context.Context, userID string, limit int) ([]*models.Transaction, error)
	ListTransactions(ctx context.Context, limit, offset int) ([]*models.Transaction, error)
	CountTransactions(ctx context.Context) (int, error)
}

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) TransactionStorage {
	return &transactionRepository{db: db}
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	t := &models.Transaction{}
	err := row.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Status, &t.Phone, &t.Bank,
		&t.Description, &t.IdempotencyKey, &t.GrantedBy, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *transactionRepository) GetTransactionsByUserID(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (r *transactionRepository) ListTransactions(ctx context.Context, limit, offset int) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (r *transactionRepository) CountTransactions(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func collectTransactions(rows *sql.Rows) ([]*models.Transaction, error) {
	defer rows.Close()

	transactions := []*models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}
