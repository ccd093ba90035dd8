package service

import (
	"context"
	"log/slog"

	"github.com/linemk/rewards-wallet/internal/domain/models"
	"github.com/linemk/rewards-wallet/internal/storage"
)

// RecentTransactionsLimit - сколько последних операций показывать в кошельке
const RecentTransactionsLimit = 10

// WalletResponse - сводка кошелька для GET /api/wallet
type WalletResponse struct {
	User          *models.User          `json:"user"`
	Transactions  []*models.Transaction `json:"transactions"`
	ReferralCount int                   `json:"referralCount"`
}

type WalletServiceInterface interface {
	GetWallet(ctx context.Context, userID string) (*WalletResponse, error)
}

type WalletService struct {
	log       *slog.Logger
	users     storage.UserStorage
	txs       storage.TransactionStorage
	referrals storage.ReferralStorage
}

func NewWalletService(log *slog.Logger, users storage.UserStorage, txs storage.TransactionStorage, referrals storage.ReferralStorage) *WalletService {
	return &WalletService{
		log:       log,
		users:     users,
		txs:       txs,
		referrals: referrals,
	}
}

// GetWallet создает кошелек при первом обращении
func (s *WalletService) GetWallet(ctx context.Context, userID string) (*WalletResponse, error) {
	const op = "service.WalletService.GetWallet"
	logger := s.log.With(slog.String("op", op), slog.String("userID", userID))

	if userID == "" {
		return nil, kindError(op, ErrValidation, "user id is required")
	}

	user, err := s.users.GetOrCreateUser(ctx, userID)
	if err != nil {
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, fromStorage(op, err)
	}

	txs, err := s.txs.GetTransactionsByUserID(ctx, userID, RecentTransactionsLimit)
	if err != nil {
		logger.Error("failed to get transactions", slog.Any("error", err))
		return nil, fromStorage(op, err)
	}

	count, err := s.referrals.CountReferrals(ctx, userID, models.ReferralStatusCompleted)
	if err != nil {
		logger.Error("failed to count referrals", slog.Any("error", err))
		return nil, fromStorage(op, err)
	}

	return &WalletResponse{
		User:          user,
		Transactions:  txs,
		ReferralCount: count,
	}, nil
}
