package service

import (
	"context"
	"log/slog"

	"github.com/linemk/rewards-wallet/internal/domain/models"
	"github.com/linemk/rewards-wallet/internal/storage"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

type UsersPage struct {
	Users []*models.User `json:"users"`
	Total int            `json:"total"`
}

type TransactionsPage struct {
	Transactions []*models.Transaction `json:"transactions"`
	Total        int                   `json:"total"`
}

type AdminServiceInterface interface {
	ListUsers(ctx context.Context, callerID string, limit, offset int) (*UsersPage, error)
	ListTransactions(ctx context.Context, callerID string, limit, offset int) (*TransactionsPage, error)
	Stats(ctx context.Context, callerID string) (*models.Stats, error)
}

// AdminService - чтение для админки, каждая операция сначала проходит AccessGate
type AdminService struct {
	log   *slog.Logger
	gate  *AccessGate
	users storage.UserStorage
	txs   storage.TransactionStorage
	stats storage.StatsStorage
}

func NewAdminService(log *slog.Logger, gate *AccessGate, users storage.UserStorage, txs storage.TransactionStorage, stats storage.StatsStorage) *AdminService {
	return &AdminService{
		log:   log,
		gate:  gate,
		users: users,
		txs:   txs,
		stats: stats,
	}
}

// NormalizePage приводит limit и offset к допустимым значениям
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *AdminService) ListUsers(ctx context.Context, callerID string, limit, offset int) (*UsersPage, error) {
	const op = "service.AdminService.ListUsers"

	if err := s.gate.Authorize(ctx, callerID, ReadPrivileged); err != nil {
		return nil, err
	}
	limit, offset = NormalizePage(limit, offset)

	users, err := s.users.ListUsers(ctx, limit, offset)
	if err != nil {
		s.log.Error("failed to list users", slog.String("op", op), slog.Any("error", err))
		return nil, fromStorage(op, err)
	}
	total, err := s.users.CountUsers(ctx)
	if err != nil {
		s.log.Error("failed to count users", slog.String("op", op), slog.Any("error", err))
		return nil, fromStorage(op, err)
	}
	return &UsersPage{Users: users, Total: total}, nil
}

func (s *AdminService) ListTransactions(ctx context.Context, callerID string, limit, offset int) (*TransactionsPage, error) {
	const op = "service.AdminService.ListTransactions"

	if err := s.gate.Authorize(ctx, callerID, ReadPrivileged); err != nil {
		return nil, err
	}
	limit, offset = NormalizePage(limit, offset)

	txs, err := s.txs.ListTransactions(ctx, limit, offset)
	if err != nil {
		s.log.Error("failed to list transactions", slog.String("op", op), slog.Any("error", err))
		return nil, fromStorage(op, err)
	}
	total, err := s.txs.CountTransactions(ctx)
	if err != nil {
		s.log.Error("failed to count transactions", slog.String("op", op), slog.Any("error", err))
		return nil, fromStorage(op, err)
	}
	return &TransactionsPage{Transactions: txs, Total: total}, nil
}

func (s *AdminService) Stats(ctx context.Context, callerID string) (*models.Stats, error) {
	const op = "service.AdminService.Stats"

	if err := s.gate.Authorize(ctx, callerID, ReadPrivileged); err != nil {
		return nil, err
	}
	stats, err := s.stats.GetStats(ctx)
	if err != nil {
		s.log.Error("failed to get stats", slog.String("op", op), slog.Any("error", err))
		return nil, fromStorage(op, err)
	}
	return stats, nil
}
