package format

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestUSD(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{"thousands separator and trailing zero", "12345.6", "$12,345.60"},
		{"zero", "0", "$0.00"},
		{"cents only", "0.07", "$0.07"},
		{"rounds half up", "9.999", "$10.00"},
		{"negative", "-1234.5", "-$1,234.50"},
		{"large", "1000000", "$1,000,000.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, USD(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestUSDPtr(t *testing.T) {
	assert.Equal(t, "-", USDPtr(nil))

	amount := decimal.RequireFromString("42.5")
	assert.Equal(t, "$42.50", USDPtr(&amount))
}
