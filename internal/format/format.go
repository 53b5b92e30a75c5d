// Package format renders ledger amounts for display.
package format

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const absentMarker = "-"

// USD formats an amount as a dollar string with cents and thousands
// separators, e.g. 12345.6 -> "$12,345.60".
func USD(amount decimal.Decimal) string {
	cents := amount.Round(2).Shift(2).IntPart()
	return money.New(cents, money.USD).Display()
}

// USDPtr formats an optional amount; nil renders as the absent marker.
func USDPtr(amount *decimal.Decimal) string {
	if amount == nil {
		return absentMarker
	}
	return USD(*amount)
}
