package xlsxGenerator

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fintrack/paper_trading_service/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerate(t *testing.T) {
	records := []model.TradeRecord{
		{
			AccountID:     1,
			Side:          model.SideBuy,
			Symbol:        "ACME",
			ShareCount:    10,
			PricePerShare: decimal.RequireFromString("50"),
			TotalAmount:   decimal.RequireFromString("500"),
			CreatedAt:     time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
		},
	}

	gen := New()
	fileBytes, ext, err := gen.Generate(context.Background(), "tester", records)
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", ext)
	assert.NotEmpty(t, fileBytes)

	f, err := excelize.OpenReader(bytes.NewReader(fileBytes))
	require.NoError(t, err)
	defer f.Close()

	sheet := "Trades - tester"
	header, err := f.GetCellValue(sheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Date", header)

	symbol, err := f.GetCellValue(sheet, "C2")
	require.NoError(t, err)
	assert.Equal(t, "ACME", symbol)

	total, err := f.GetCellValue(sheet, "F2")
	require.NoError(t, err)
	assert.Equal(t, "$500.00", total)
}

func TestGenerateEmptyHistory(t *testing.T) {
	gen := New()
	fileBytes, ext, err := gen.Generate(context.Background(), "tester", nil)
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", ext)
	assert.NotEmpty(t, fileBytes)
}
