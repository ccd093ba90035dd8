package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// ReferralStorage - чтение таблицы рефералов. Вставка идет вместе с начислением бонуса в LedgerStorage.
type ReferralStorage interface {
	CountReferrals(ctx context.Context, referrerID, status string) (int, error)
}

type referralRepository struct {
	db *sql.DB
}

func NewReferralRepository(db *sql.DB) ReferralStorage {
	return &referralRepository{db: db}
}

func (r *referralRepository) CountReferrals(ctx context.Context, referrerID, status string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM referrals WHERE referrer_id = $1 AND status = $2", referrerID, status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}
	return count, nil
}
