package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/linemk/rewards-wallet/internal/domain/models"
	"github.com/linemk/rewards-wallet/internal/lib/logger/sl"
	"github.com/linemk/rewards-wallet/internal/storage"
)

// Outcome - результат успешной операции
type Outcome struct {
	Success     bool                `json:"success"`
	NewBalance  decimal.Decimal     `json:"newBalance"`
	Transaction *models.Transaction `json:"transaction"`
	Replayed    bool                `json:"replayed"`
}

// BonusPolicy определяет, можно ли получить бонус повторно
type BonusPolicy struct {
	CardOnce     bool
	ReferralOnce bool
}

type LedgerServiceInterface interface {
	Execute(ctx context.Context, op Operation) (*Outcome, error)
}

// LedgerService проверяет операцию и передает ее в хранилище одним атомарным изменением.
// Собственного изменяемого состояния не хранит.
type LedgerService struct {
	log    *slog.Logger
	users  storage.UserStorage
	ledger storage.LedgerStorage
	gate   *AccessGate
	policy BonusPolicy
}

func NewLedgerService(log *slog.Logger, users storage.UserStorage, ledger storage.LedgerStorage, gate *AccessGate, policy BonusPolicy) *LedgerService {
	return &LedgerService{
		log:    log,
		users:  users,
		ledger: ledger,
		gate:   gate,
		policy: policy,
	}
}

// Execute: сначала поля, потом права, потом достаточность средств и атомарное применение
func (s *LedgerService) Execute(ctx context.Context, op Operation) (*Outcome, error) {
	const fn = "service.LedgerService.Execute"
	logger := s.log.With(slog.String("op", fn), slog.String("operation", op.Name()))

	if err := op.Validate(); err != nil {
		logger.Info("operation rejected", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", fn, err)
	}

	var (
		res *storage.LedgerResult
		err error
	)
	switch o := op.(type) {
	case Withdraw:
		res, err = s.applySelf(ctx, o.UserID, storage.LedgerEntry{
			UserID:         o.UserID,
			Delta:          o.Amount.Neg(),
			Type:           models.TxWithdraw,
			Phone:          optional(o.Phone),
			Bank:           optional(o.Bank),
			Description:    DescWithdraw,
			IdempotencyKey: optional(o.IdempotencyKey),
		})
	case TopUp:
		res, err = s.applySelf(ctx, o.UserID, storage.LedgerEntry{
			UserID:         o.UserID,
			Delta:          o.Amount,
			Type:           models.TxTopUp,
			Description:    DescTopUp,
			IdempotencyKey: optional(o.IdempotencyKey),
		})
	case CardBonus:
		res, err = s.applySelf(ctx, o.UserID, storage.LedgerEntry{
			UserID:         o.UserID,
			Delta:          CardBonusAmount,
			Accumulator:    storage.AccumulatorCard,
			Type:           models.TxCardBonus,
			Description:    DescCardBonus,
			IdempotencyKey: optional(o.IdempotencyKey),
			OncePerUser:    s.policy.CardOnce,
		})
	case ReferralBonus:
		res, err = s.applySelf(ctx, o.UserID, storage.LedgerEntry{
			UserID:         o.UserID,
			Delta:          ReferralBonusAmount,
			Accumulator:    storage.AccumulatorReferral,
			Type:           models.TxReferralBonus,
			Description:    DescReferralBonus,
			IdempotencyKey: optional(o.IdempotencyKey),
			Referral: &storage.ReferralLink{
				ReferredID:  o.ReferredID,
				OncePerPair: s.policy.ReferralOnce,
			},
		})
	case AdminGrant:
		res, err = s.adminGrant(ctx, o)
	case AdminSetBalance:
		res, err = s.adminSetBalance(ctx, o)
	default:
		return nil, kindError(fn, ErrValidation, fmt.Sprintf("unsupported operation %T", op))
	}
	if err != nil {
		logger.Warn("operation failed", slog.String("kind", KindOf(err)), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", fn, err)
	}

	out := &Outcome{
		Success:     true,
		NewBalance:  res.NewBalance,
		Transaction: res.Transaction,
		Replayed:    res.Replayed,
	}
	logger.Info("operation completed", slog.String("balance", out.NewBalance.StringFixed(2)), slog.Bool("replayed", out.Replayed))
	return out, nil
}

// applySelf - операция пользователя над своим кошельком, кошелек создается при первом обращении
func (s *LedgerService) applySelf(ctx context.Context, userID string, entry storage.LedgerEntry) (*storage.LedgerResult, error) {
	const op = "service.LedgerService.applySelf"

	if _, err := s.users.GetOrCreateUser(ctx, userID); err != nil {
		return nil, fromStorage(op, err)
	}
	res, err := s.ledger.ApplyLedgerOperation(ctx, entry)
	if err != nil {
		return nil, fromStorage(op, err)
	}
	return res, nil
}

func (s *LedgerService) adminGrant(ctx context.Context, o AdminGrant) (*storage.LedgerResult, error) {
	const op = "service.LedgerService.adminGrant"

	if err := s.gate.Authorize(ctx, o.CallerID, WritePrivileged); err != nil {
		return nil, err
	}

	grantType := o.grantType()
	acc := accumulatorFor(grantType)
	txType := grantType
	if acc == storage.AccumulatorNone {
		txType = models.TxAdminBonus
		if o.Amount.IsNegative() {
			txType = models.TxAdminDeduction
		}
	}
	description := strings.TrimSpace(o.Description)
	if description == "" {
		description = DescAdminBonus
	}

	res, err := s.ledger.ApplyLedgerOperation(ctx, storage.LedgerEntry{
		UserID:         o.UserID,
		Delta:          o.Amount,
		Accumulator:    acc,
		Type:           txType,
		Description:    description,
		IdempotencyKey: optional(o.IdempotencyKey),
		GrantedBy:      &o.CallerID,
	})
	if err != nil {
		return nil, fromStorage(op, err)
	}
	return res, nil
}

func (s *LedgerService) adminSetBalance(ctx context.Context, o AdminSetBalance) (*storage.LedgerResult, error) {
	const op = "service.LedgerService.adminSetBalance"

	if err := s.gate.Authorize(ctx, o.CallerID, WritePrivileged); err != nil {
		return nil, err
	}

	res, err := s.ledger.SetBalance(ctx, o.UserID, *o.Balance, DescSetBalance, &o.CallerID)
	if err != nil {
		return nil, fromStorage(op, err)
	}
	return res, nil
}

func accumulatorFor(txType string) storage.Accumulator {
	switch txType {
	case models.TxCardBonus:
		return storage.AccumulatorCard
	case models.TxReferralBonus:
		return storage.AccumulatorReferral
	}
	return storage.AccumulatorNone
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
