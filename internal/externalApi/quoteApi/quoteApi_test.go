package quoteApi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fintrack/paper_trading_service/config"
	"github.com/fintrack/paper_trading_service/internal/externalApi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApi(t *testing.T, handler http.HandlerFunc) *QuoteApi {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		API: config.API{
			Timeout: 2 * time.Second,
			QuoteApi: config.QuoteApi{
				Url:    srv.URL,
				ApiKey: "test-key",
			},
		},
	}
	return New(cfg)
}

func TestGetQuote(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "ACME", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		w.Write([]byte(`{"Global Quote": {"01. symbol": "ACME", "05. price": "50.2500", "07. latest trading day": "2024-05-01"}}`))
	})

	quote, err := api.GetQuote(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, "ACME", quote.Symbol)
	assert.True(t, quote.Price.Equal(decimal.RequireFromString("50.25")))
}

func TestGetQuoteFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			"unknown symbol returns empty quote object",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"Global Quote": {}}`))
			},
		},
		{
			"provider error message",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"Error Message": "Invalid API call."}`))
			},
		},
		{
			"rate limit note",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"Note": "Thank you for using our API. Call frequency exceeded."}`))
			},
		},
		{
			"non-2xx status",
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			"malformed body",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json`))
			},
		},
		{
			"unparsable price",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"Global Quote": {"01. symbol": "ACME", "05. price": "n/a"}}`))
			},
		},
		{
			"non-positive price",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"Global Quote": {"01. symbol": "ACME", "05. price": "0"}}`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestApi(t, tt.handler)
			_, err := api.GetQuote(context.Background(), "ACME")
			assert.ErrorIs(t, err, externalApi.ErrNotFound)
		})
	}
}

func TestGetQuoteTransportError(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {})
	// point the client at a closed server to force a dial error
	api.client.SetBaseURL("http://127.0.0.1:1")

	_, err := api.GetQuote(context.Background(), "ACME")
	assert.ErrorIs(t, err, externalApi.ErrNotFound)
}
