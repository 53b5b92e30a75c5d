package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	AccountID   int64           `db:"account_id"`
	Username    string          `db:"username"`
	CashBalance decimal.Decimal `db:"cash_balance"`
}

type Position struct {
	AccountID  int64  `db:"account_id"`
	Symbol     string `db:"symbol"`
	ShareCount int    `db:"share_count"`
}

type TradeRecord struct {
	RecordID      int64           `db:"record_id"`
	AccountID     int64           `db:"account_id"`
	Side          string          `db:"side"`
	Symbol        string          `db:"symbol"`
	ShareCount    int             `db:"share_count"`
	PricePerShare decimal.Decimal `db:"price_per_share"`
	TotalAmount   decimal.Decimal `db:"total_amount"`
	CreatedAt     time.Time       `db:"dt_create"`
}
