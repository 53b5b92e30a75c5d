package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fintrack/paper_trading_service/config"
	"github.com/fintrack/paper_trading_service/internal/model"
	"github.com/fintrack/paper_trading_service/internal/model/quoteModel"
	"github.com/fintrack/paper_trading_service/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLedgerService struct {
	registerAccount    func(ctx context.Context, username string) (int64, error)
	buy                func(ctx context.Context, accountID int64, symbol string, shares int) (model.TradeResult, error)
	sell               func(ctx context.Context, accountID int64, symbol string, shares int) (model.TradeResult, error)
	getPortfolio       func(ctx context.Context, accountID int64) (model.PortfolioSummary, error)
	getQuote           func(ctx context.Context, symbol string) (quoteModel.Quote, error)
	getTradeHistory    func(ctx context.Context, accountID int64, page int) (model.TradeHistoryPage, error)
	exportTradeHistory func(ctx context.Context, accountID int64) ([]byte, string, error)
}

func (m *mockLedgerService) RegisterAccount(ctx context.Context, username string) (int64, error) {
	return m.registerAccount(ctx, username)
}

func (m *mockLedgerService) Buy(ctx context.Context, accountID int64, symbol string, shares int) (model.TradeResult, error) {
	return m.buy(ctx, accountID, symbol, shares)
}

func (m *mockLedgerService) Sell(ctx context.Context, accountID int64, symbol string, shares int) (model.TradeResult, error) {
	return m.sell(ctx, accountID, symbol, shares)
}

func (m *mockLedgerService) GetPortfolio(ctx context.Context, accountID int64) (model.PortfolioSummary, error) {
	return m.getPortfolio(ctx, accountID)
}

func (m *mockLedgerService) GetQuote(ctx context.Context, symbol string) (quoteModel.Quote, error) {
	return m.getQuote(ctx, symbol)
}

func (m *mockLedgerService) GetTradeHistory(ctx context.Context, accountID int64, page int) (model.TradeHistoryPage, error) {
	return m.getTradeHistory(ctx, accountID, page)
}

func (m *mockLedgerService) ExportTradeHistory(ctx context.Context, accountID int64) ([]byte, string, error) {
	return m.exportTradeHistory(ctx, accountID)
}

func newTestServer(svc LedgerService) http.Handler {
	cfg := &config.Config{}
	return NewServer(cfg, NewController(svc)).Handler()
}

func doRequest(handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	handler := newTestServer(&mockLedgerService{})
	rec := doRequest(handler, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleCreateAccount(t *testing.T) {
	handler := newTestServer(&mockLedgerService{
		registerAccount: func(ctx context.Context, username string) (int64, error) {
			assert.Equal(t, "alice", username)
			return 7, nil
		},
	})

	rec := doRequest(handler, http.MethodPost, "/api/accounts", `{"username": "alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := createAccountResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.AccountID)
}

func TestHandleCreateAccountConflict(t *testing.T) {
	handler := newTestServer(&mockLedgerService{
		registerAccount: func(ctx context.Context, username string) (int64, error) {
			return 0, service.ErrAlreadyExists
		},
	})

	rec := doRequest(handler, http.MethodPost, "/api/accounts", `{"username": "alice"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleBuy(t *testing.T) {
	handler := newTestServer(&mockLedgerService{
		buy: func(ctx context.Context, accountID int64, symbol string, shares int) (model.TradeResult, error) {
			assert.Equal(t, int64(1), accountID)
			assert.Equal(t, "ACME", symbol)
			assert.Equal(t, 10, shares)
			return model.TradeResult{
				Side:        model.SideBuy,
				Symbol:      "ACME",
				ShareCount:  10,
				Price:       decimal.RequireFromString("50"),
				TotalAmount: decimal.RequireFromString("500"),
			}, nil
		},
	})

	rec := doRequest(handler, http.MethodPost, "/api/accounts/1/buy", `{"symbol": "ACME", "shares": 10}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := tradeResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "BUY", resp.Side)
	assert.Equal(t, "$500.00", resp.TotalDisplay)
	assert.Equal(t, "$50.00", resp.PriceDisplay)
}

func TestHandleOrderErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid input", service.ErrInvalidInput, http.StatusBadRequest},
		{"unknown symbol", service.ErrUnknownSymbol, http.StatusBadRequest},
		{"insufficient funds", service.ErrInsufficientFunds, http.StatusForbidden},
		{"insufficient shares", service.ErrInsufficientShares, http.StatusForbidden},
		{"no such position", service.ErrNoSuchPosition, http.StatusForbidden},
		{"missing account", service.ErrNotFound, http.StatusNotFound},
		{"store fault", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestServer(&mockLedgerService{
				sell: func(ctx context.Context, accountID int64, symbol string, shares int) (model.TradeResult, error) {
					return model.TradeResult{}, tt.err
				},
			})

			rec := doRequest(handler, http.MethodPost, "/api/accounts/1/sell", `{"symbol": "ACME", "shares": 1}`)
			assert.Equal(t, tt.wantStatus, rec.Code)

			resp := errorResponse{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandlePortfolio(t *testing.T) {
	price := decimal.RequireFromString("50")
	value := decimal.RequireFromString("500")
	handler := newTestServer(&mockLedgerService{
		getPortfolio: func(ctx context.Context, accountID int64) (model.PortfolioSummary, error) {
			return model.PortfolioSummary{
				AccountID:   accountID,
				CashBalance: decimal.RequireFromString("9500"),
				Positions: []model.PortfolioPosition{
					{Symbol: "ACME", ShareCount: 10, Price: &price, MarketValue: &value},
					{Symbol: "GLOBEX", ShareCount: 3},
				},
				TotalEquity: decimal.RequireFromString("10000"),
			}, nil
		},
	})

	rec := doRequest(handler, http.MethodGet, "/api/accounts/1/portfolio", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := portfolioResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "$9,500.00", resp.CashDisplay)
	require.Len(t, resp.Positions, 2)
	assert.Equal(t, "$500.00", resp.Positions[0].ValueDisplay)
	// unpriced position renders the absent marker instead of crashing
	assert.Equal(t, "-", resp.Positions[1].ValueDisplay)
	assert.Nil(t, resp.Positions[1].Price)
}

func TestRouteAccountsBadPaths(t *testing.T) {
	handler := newTestServer(&mockLedgerService{})

	rec := doRequest(handler, http.MethodGet, "/api/accounts/abc/portfolio", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(handler, http.MethodGet, "/api/accounts/1/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestServer(&mockLedgerService{})

	rec := doRequest(handler, http.MethodGet, "/api/accounts/1/buy", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleHistory(t *testing.T) {
	handler := newTestServer(&mockLedgerService{
		getTradeHistory: func(ctx context.Context, accountID int64, page int) (model.TradeHistoryPage, error) {
			assert.Equal(t, 2, page)
			return model.TradeHistoryPage{
				Records: []model.TradeRecord{
					{
						AccountID:     accountID,
						Side:          model.SideSell,
						Symbol:        "ACME",
						ShareCount:    10,
						PricePerShare: decimal.RequireFromString("55"),
						TotalAmount:   decimal.RequireFromString("550"),
					},
				},
				Page:        2,
				HasNextPage: false,
			}, nil
		},
	})

	rec := doRequest(handler, http.MethodGet, "/api/accounts/1/history?page=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := historyResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "SELL", resp.Records[0].Side)
	assert.Equal(t, "$550.00", resp.Records[0].TotalDisplay)
}

func TestHandleHistoryExport(t *testing.T) {
	handler := newTestServer(&mockLedgerService{
		exportTradeHistory: func(ctx context.Context, accountID int64) ([]byte, string, error) {
			return []byte("file-bytes"), ".xlsx", nil
		},
	})

	rec := doRequest(handler, http.MethodGet, "/api/accounts/1/history/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	assert.Equal(t, "file-bytes", rec.Body.String())
}

func TestHandleQuote(t *testing.T) {
	handler := newTestServer(&mockLedgerService{
		getQuote: func(ctx context.Context, symbol string) (quoteModel.Quote, error) {
			assert.Equal(t, "acme", symbol)
			return quoteModel.Quote{Symbol: "ACME", Price: decimal.RequireFromString("50.25")}, nil
		},
	})

	rec := doRequest(handler, http.MethodGet, "/api/quotes/acme", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := quoteResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ACME", resp.Symbol)
	assert.Equal(t, "$50.25", resp.PriceDisplay)
}
