package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/linemk/rewards-wallet/internal/domain/models"
)

type StatsStorage interface {
	GetStats(ctx context.Context) (*models.Stats, error)
}

type statsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) StatsStorage {
	return &statsRepository{db: db}
}

// GetStats собирает сводку одним запросом, чтобы цифры были согласованы между собой
func (r *statsRepository) GetStats(ctx context.Context) (*models.Stats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COALESCE(SUM(balance), 0) FROM users),
			(SELECT COUNT(*) FROM transactions WHERE type = 'withdraw' AND status = 'completed'),
			(SELECT COUNT(*) FROM transactions WHERE type = 'topup' AND status = 'completed'),
			(SELECT COUNT(*) FROM referrals WHERE status = 'completed')`
	stats := &models.Stats{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalUsers, &stats.TotalBalance, &stats.TotalWithdrawals, &stats.TotalTopups, &stats.TotalReferrals,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}
