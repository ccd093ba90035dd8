package service

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/linemk/rewards-wallet/internal/domain/models"
	"github.com/linemk/rewards-wallet/internal/storage"
)

// Фиксированные суммы бонусов
var (
	CardBonusAmount     = decimal.NewFromInt(500)
	ReferralBonusAmount = decimal.NewFromInt(200)
)

// MaxAmount - наибольшее значение, которое помещается в NUMERIC(14, 2)
var MaxAmount = decimal.RequireFromString("999999999999.99")

const (
	DescWithdraw      = "Вывод через СБП"
	DescTopUp         = "Пополнение через СБП"
	DescCardBonus     = "Бонус за оформление карты"
	DescReferralBonus = "Реферальный бонус"
	DescAdminBonus    = "Бонус от администратора"
	DescSetBalance    = "Корректировка баланса администратором"
)

var validate = validator.New()

// Operation - одна операция над журналом. Конкретные варианты перечислены ниже.
type Operation interface {
	Name() string
	Validate() error
}

// Withdraw - вывод средств пользователем
type Withdraw struct {
	UserID         string          `validate:"required,max=64"`
	Amount         decimal.Decimal `validate:"-"`
	Phone          string          `validate:"omitempty,max=32"`
	Bank           string          `validate:"omitempty,max=64"`
	IdempotencyKey string          `validate:"omitempty,uuid"`
}

// TopUp - пополнение баланса пользователем
type TopUp struct {
	UserID         string          `validate:"required,max=64"`
	Amount         decimal.Decimal `validate:"-"`
	IdempotencyKey string          `validate:"omitempty,uuid"`
}

// CardBonus - бонус за оформление карты
type CardBonus struct {
	UserID         string `validate:"required,max=64"`
	IdempotencyKey string `validate:"omitempty,uuid"`
}

// ReferralBonus - бонус за приглашенного пользователя
type ReferralBonus struct {
	UserID         string `validate:"required,max=64"`
	ReferredID     string `validate:"required,max=64,nefield=UserID"`
	IdempotencyKey string `validate:"omitempty,uuid"`
}

// AdminGrant - начисление (или списание при отрицательной сумме) от администратора
type AdminGrant struct {
	CallerID       string          `validate:"required"`
	UserID         string          `validate:"required,max=64"`
	Amount         decimal.Decimal `validate:"-"`
	Type           string          `validate:"omitempty,max=32"`
	Description    string          `validate:"omitempty,max=255"`
	IdempotencyKey string          `validate:"omitempty,uuid"`
}

// AdminSetBalance - прямое выставление баланса администратором.
// Balance nil означает, что значение не передано.
type AdminSetBalance struct {
	CallerID string           `validate:"required"`
	UserID   string           `validate:"required,max=64"`
	Balance  *decimal.Decimal `validate:"-"`
}

func (Withdraw) Name() string        { return "withdraw" }
func (TopUp) Name() string           { return "topup" }
func (CardBonus) Name() string       { return "card_bonus" }
func (ReferralBonus) Name() string   { return "referral_bonus" }
func (AdminGrant) Name() string      { return "admin_grant" }
func (AdminSetBalance) Name() string { return "admin_set_balance" }

func (o Withdraw) Validate() error {
	if err := validateFields(o); err != nil {
		return err
	}
	return checkAmount(o.Amount, true)
}

func (o TopUp) Validate() error {
	if err := validateFields(o); err != nil {
		return err
	}
	return checkAmount(o.Amount, true)
}

func (o CardBonus) Validate() error { return validateFields(o) }

func (o ReferralBonus) Validate() error { return validateFields(o) }

func (o AdminGrant) Validate() error {
	if err := validateFields(o); err != nil {
		return err
	}
	if err := checkAmount(o.Amount, false); err != nil {
		return err
	}
	if o.Amount.IsNegative() && accumulatorFor(o.grantType()) != storage.AccumulatorNone {
		return fmt.Errorf("%w: negative amount is not allowed for %s", ErrValidation, o.grantType())
	}
	return nil
}

func (o AdminSetBalance) Validate() error {
	if err := validateFields(o); err != nil {
		return err
	}
	if o.Balance == nil {
		return fmt.Errorf("%w: balance is required", ErrValidation)
	}
	if o.Balance.IsNegative() {
		return fmt.Errorf("%w: balance must not be negative", ErrValidation)
	}
	return checkMoney(*o.Balance)
}

func (o AdminGrant) grantType() string {
	if o.Type == "" {
		return models.TxCardBonus
	}
	return o.Type
}

func validateFields(op any) error {
	if err := validate.Struct(op); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	return nil
}

// checkAmount: positive=true требует amount > 0, иначе достаточно amount != 0
func checkAmount(amount decimal.Decimal, positive bool) error {
	if positive && !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if amount.IsZero() {
		return fmt.Errorf("%w: amount must be non-zero", ErrValidation)
	}
	return checkMoney(amount)
}

// checkMoney: не больше двух знаков после запятой и по модулю не больше MaxAmount
func checkMoney(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: amount must have at most 2 decimal places", ErrValidation)
	}
	if amount.Abs().GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: amount must not exceed %s", ErrValidation, MaxAmount.StringFixed(2))
	}
	return nil
}
