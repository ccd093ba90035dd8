package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Типы записей журнала. Знак суммы задается типом, сама сумма всегда положительная.
const (
	TxWithdraw         = "withdraw"
	TxTopUp            = "topup"
	TxCardBonus        = "card_bonus"
	TxReferralBonus    = "referral_bonus"
	TxAdminBonus       = "admin_bonus"
	TxAdminDeduction   = "admin_deduction"
	TxAdjustmentCredit = "adjustment_credit"
	TxAdjustmentDebit  = "adjustment_debit"
)

const (
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
	TxStatusPending   = "pending"
)

// Transaction - неизменяемая запись журнала операций пользователя
type Transaction struct {
	ID             int64           `json:"id"`
	UserID         string          `json:"user_id"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	Phone          *string         `json:"phone,omitempty"`
	Bank           *string         `json:"bank,omitempty"`
	Description    string          `json:"description"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	GrantedBy      *string         `json:"granted_by,omitempty"` // администратор; nil - операция самого пользователя
	CreatedAt      time.Time       `json:"created_at"`
}

// IsDebit сообщает, уменьшает ли запись данного типа баланс
func IsDebit(txType string) bool {
	switch txType {
	case TxWithdraw, TxAdminDeduction, TxAdjustmentDebit:
		return true
	}
	return false
}

// SignedAmount возвращает сумму со знаком, с которым она была применена к балансу
func (t *Transaction) SignedAmount() decimal.Decimal {
	if IsDebit(t.Type) {
		return t.Amount.Neg()
	}
	return t.Amount
}
