package models

import "time"

const ReferralStatusCompleted = "completed"

// Referral связывает пригласившего и приглашенного пользователя
type Referral struct {
	ID         int64     `json:"id"`
	ReferrerID string    `json:"referrer_id"`
	ReferredID string    `json:"referred_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}
