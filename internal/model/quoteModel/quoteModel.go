package quoteModel

import "github.com/shopspring/decimal"

// GlobalQuoteResponse is the raw shape returned by the quote provider.
// Unknown symbols come back as 200 OK with an empty "Global Quote" object.
type GlobalQuoteResponse struct {
	GlobalQuote  GlobalQuote `json:"Global Quote"`
	ErrorMessage string      `json:"Error Message"`
	Note         string      `json:"Note"`
}

type GlobalQuote struct {
	Symbol        string `json:"01. symbol"`
	Price         string `json:"05. price"`
	LatestTrading string `json:"07. latest trading day"`
}

type Quote struct {
	Symbol string
	Price  decimal.Decimal
}
