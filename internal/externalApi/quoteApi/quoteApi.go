package quoteApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/fintrack/paper_trading_service/config"
	"github.com/fintrack/paper_trading_service/internal/externalApi"
	"github.com/fintrack/paper_trading_service/internal/model/quoteModel"
	"github.com/fintrack/paper_trading_service/utils"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

type QuoteApi struct {
	client *resty.Client
	apiKey string
}

func New(cfg *config.Config) *QuoteApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.QuoteApi.Url)
	return &QuoteApi{client: client, apiKey: cfg.API.QuoteApi.ApiKey}
}

// GetQuote resolves the latest trade price for a ticker. Any problem on the
// provider side (unknown symbol, empty payload, non-2xx, rate limit) comes back
// as externalApi.ErrNotFound so the ledger rejects the order the same way.
func (a *QuoteApi) GetQuote(ctx context.Context, symbol string) (quoteModel.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := "/query"
	params := map[string]string{
		"function": "GLOBAL_QUOTE",
		"symbol":   symbol,
		"apikey":   a.apiKey,
	}

	slog.Debug("start QuoteApi.GetQuote request", slog.String("rqID", rqID), slog.String("symbol", symbol))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(url)

	if err != nil {
		slog.Error("error while dialing QuoteApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return quoteModel.Quote{}, externalApi.ErrNotFound
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		slog.Error("QuoteApi returned non-2xx status", slog.Int("status", resp.StatusCode()), slog.String("rqID", rqID))
		return quoteModel.Quote{}, externalApi.ErrNotFound
	}

	rawQuote := quoteModel.GlobalQuoteResponse{}
	err = json.Unmarshal(resp.Body(), &rawQuote)
	if err != nil {
		slog.Error("can't unmarshall response into quoteModel.GlobalQuoteResponse", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return quoteModel.Quote{}, externalApi.ErrNotFound
	}

	quote, err := a.parseGlobalQuote(rawQuote)
	if err != nil {
		slog.Warn("no usable quote in response", slog.String("err", err.Error()), slog.String("symbol", symbol), slog.String("rqID", rqID))
		return quoteModel.Quote{}, externalApi.ErrNotFound
	}

	slog.Debug("QuoteApi.GetQuote request complete", slog.String("rqID", rqID))

	return quote, nil
}

func (a *QuoteApi) parseGlobalQuote(rawQuote quoteModel.GlobalQuoteResponse) (quoteModel.Quote, error) {
	if rawQuote.ErrorMessage != "" {
		return quoteModel.Quote{}, fmt.Errorf("provider error: %s", rawQuote.ErrorMessage)
	}

	if rawQuote.Note != "" { // rate limit responses carry a Note instead of a quote
		return quoteModel.Quote{}, fmt.Errorf("provider note: %s", rawQuote.Note)
	}

	if rawQuote.GlobalQuote.Symbol == "" || rawQuote.GlobalQuote.Price == "" {
		return quoteModel.Quote{}, externalApi.ErrNotFound
	}

	price, err := decimal.NewFromString(rawQuote.GlobalQuote.Price)
	if err != nil {
		return quoteModel.Quote{}, fmt.Errorf("failed create decimal from price value = %s, err: %w", rawQuote.GlobalQuote.Price, err)
	}

	if !price.IsPositive() {
		return quoteModel.Quote{}, fmt.Errorf("non-positive price %s", price)
	}

	return quoteModel.Quote{
		Symbol: rawQuote.GlobalQuote.Symbol,
		Price:  price,
	}, nil
}
