package models

import "github.com/shopspring/decimal"

// Stats - сводка для админки
type Stats struct {
	TotalUsers       int             `json:"totalUsers"`
	TotalBalance     decimal.Decimal `json:"totalBalance"`
	TotalWithdrawals int             `json:"totalWithdrawals"`
	TotalTopups      int             `json:"totalTopups"`
	TotalReferrals   int             `json:"totalReferrals"`
}
