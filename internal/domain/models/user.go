package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User представляет владельца кошелька
type User struct {
	UserID           string          `json:"user_id"`
	TelegramID       *int64          `json:"telegram_id,omitempty"`
	FirstName        string          `json:"first_name"`
	LastName         string          `json:"last_name"`
	Username         string          `json:"username"`
	PhotoURL         string          `json:"photo_url"`
	Balance          decimal.Decimal `json:"balance"`
	CardEarnings     decimal.Decimal `json:"card_earnings"`     // сумма всех card_bonus
	ReferralEarnings decimal.Decimal `json:"referral_earnings"` // сумма всех referral_bonus
	IsAdmin          bool            `json:"is_admin"`
	ReferralCode     string          `json:"referral_code"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
