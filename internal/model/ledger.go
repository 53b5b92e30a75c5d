package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

type Account struct {
	AccountID   int64
	Username    string
	CashBalance decimal.Decimal
}

type Position struct {
	AccountID  int64
	Symbol     string
	ShareCount int
}

type TradeRecord struct {
	AccountID     int64
	Side          TradeSide
	Symbol        string
	ShareCount    int
	PricePerShare decimal.Decimal
	TotalAmount   decimal.Decimal
	CreatedAt     time.Time
}

// TradeResult is returned to the caller after an executed order.
type TradeResult struct {
	Side        TradeSide
	Symbol      string
	ShareCount  int
	Price       decimal.Decimal
	TotalAmount decimal.Decimal
}

// PortfolioPosition is a held position enriched with the latest known price.
// Price and MarketValue are nil when no quote is available for the symbol.
type PortfolioPosition struct {
	Symbol      string
	ShareCount  int
	Price       *decimal.Decimal
	MarketValue *decimal.Decimal
}

type PortfolioSummary struct {
	AccountID   int64
	CashBalance decimal.Decimal
	Positions   []PortfolioPosition
	TotalEquity decimal.Decimal
}

type TradeHistoryPage struct {
	Records     []TradeRecord
	Page        int
	HasNextPage bool
}
