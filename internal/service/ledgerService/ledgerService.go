package ledgerService

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/fintrack/paper_trading_service/config"
	"github.com/fintrack/paper_trading_service/data/repository"
	"github.com/fintrack/paper_trading_service/internal/externalApi"
	"github.com/fintrack/paper_trading_service/internal/model"
	"github.com/fintrack/paper_trading_service/internal/model/quoteModel"
	"github.com/fintrack/paper_trading_service/internal/service"
	"github.com/fintrack/paper_trading_service/utils"
	"github.com/shopspring/decimal"
)

// held symbols fetched per quote-cache refresh run
const refreshSymbolsLimit = 1000

type QuoteApi interface {
	GetQuote(ctx context.Context, symbol string) (quoteModel.Quote, error)
}

type Cache interface {
	GetQuote(ctx context.Context, symbol string) (quoteModel.Quote, error)
	SetQuotes(ctx context.Context, quotes []quoteModel.Quote) error
}

type ReportGenerator interface {
	Generate(ctx context.Context, username string, records []model.TradeRecord) (fileBytes []byte, fileExtension string, err error)
}

type Repository interface {
	CreateAccount(ctx context.Context, username string, startingCash decimal.Decimal) (accountID int64, err error)
	GetAccount(ctx context.Context, accountID int64) (account model.Account, err error)
	GetPosition(ctx context.Context, accountID int64, symbol string) (position model.Position, err error)
	GetPositions(ctx context.Context, accountID int64) (positions []model.Position, err error)
	GetHeldSymbols(ctx context.Context, limit int) (symbols []string, err error)
	AddToPosition(ctx context.Context, accountID int64, symbol string, shares int) (err error)
	ReducePosition(ctx context.Context, accountID int64, symbol string, shares int) (err error)
	UpdateCashBalance(ctx context.Context, accountID int64, delta decimal.Decimal) (err error)
	InsertTradeRecord(ctx context.Context, record model.TradeRecord) (err error)
	GetTradeRecords(ctx context.Context, accountID int64, limit, offset int) (records []model.TradeRecord, hasNextPage bool, err error)
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
}

type LedgerService struct {
	cfg          *config.Config
	repo         Repository
	cache        Cache
	quoteApi     QuoteApi
	reportGen    ReportGenerator
	startingCash decimal.Decimal
}

func New(cfg *config.Config, repo Repository, cache Cache, quoteApi QuoteApi, reportGen ReportGenerator) *LedgerService {
	return &LedgerService{
		cfg:          cfg,
		repo:         repo,
		cache:        cache,
		quoteApi:     quoteApi,
		reportGen:    reportGen,
		startingCash: decimal.RequireFromString(cfg.Ledger.StartingCash),
	}
}

func (s *LedgerService) RegisterAccount(ctx context.Context, username string) (accountID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.RegisterAccount"

	slog.Debug("RegisterAccount start", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	defer func() {
		slog.Debug("RegisterAccount finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	}()

	username = strings.TrimSpace(username)
	if username == "" {
		return 0, service.ErrInvalidInput
	}

	accountID, err = s.repo.CreateAccount(ctx, username, s.startingCash)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return 0, service.ErrAlreadyExists
		}
		slog.Error("got error from repo.CreateAccount", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	return accountID, nil
}

// Buy runs the full validation pipeline: fresh quote, cash pre-check, then the
// atomic debit + position upsert + trade record. A commit-time conflict re-runs
// the pipeline once before the precondition failure is surfaced to the caller.
func (s *LedgerService) Buy(ctx context.Context, accountID int64, symbol string, shares int) (result model.TradeResult, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.Buy"

	slog.Debug("Buy start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("accountID", accountID), slog.String("symbol", symbol), slog.Int("shares", shares))
	defer func() {
		slog.Debug("Buy finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("accountID", accountID))
	}()

	symbol, err = normalizeOrder(symbol, shares)
	if err != nil {
		return model.TradeResult{}, err
	}

	result, err = s.executeBuy(ctx, accountID, symbol, shares)
	if errors.Is(err, repository.ErrConflict) {
		slog.Warn("buy hit concurrent modification, retrying once", slog.String("rqID", rqID), slog.String("op", op))
		result, err = s.executeBuy(ctx, accountID, symbol, shares)
		if errors.Is(err, repository.ErrConflict) {
			err = service.ErrInsufficientFunds
		}
	}

	return result, err
}

func (s *LedgerService) executeBuy(ctx context.Context, accountID int64, symbol string, shares int) (model.TradeResult, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.executeBuy"

	// quote lookup happens before the transaction opens so a hung provider
	// call never holds a store transaction
	quote, err := s.lookupFreshQuote(ctx, symbol)
	if err != nil {
		return model.TradeResult{}, err
	}

	cost := quote.Price.Mul(decimal.NewFromInt(int64(shares))).Round(2)

	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.TradeResult{}, service.ErrNotFound
		}
		return model.TradeResult{}, err
	}

	if account.CashBalance.LessThan(cost) {
		slog.Warn("buy rejected: insufficient funds", slog.String("rqID", rqID), slog.String("op", op), slog.String("cost", cost.String()), slog.String("cash", account.CashBalance.String()))
		return model.TradeResult{}, service.ErrInsufficientFunds
	}

	record := model.TradeRecord{
		AccountID:     accountID,
		Side:          model.SideBuy,
		Symbol:        symbol,
		ShareCount:    shares,
		PricePerShare: quote.Price,
		TotalAmount:   cost,
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		// re-checked under the transaction: zero rows affected means a
		// concurrent order invalidated the cash precondition
		if err := s.repo.UpdateCashBalance(ctx, accountID, cost.Neg()); err != nil {
			return err
		}
		if err := s.repo.AddToPosition(ctx, accountID, symbol, shares); err != nil {
			return err
		}
		return s.repo.InsertTradeRecord(ctx, record)
	})
	if err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			slog.Error("buy transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
		return model.TradeResult{}, err
	}

	return model.TradeResult{
		Side:        model.SideBuy,
		Symbol:      symbol,
		ShareCount:  shares,
		Price:       quote.Price,
		TotalAmount: cost,
	}, nil
}

// Sell validates the held position before paying for a quote lookup, then
// applies the atomic decrement + credit + trade record. Selling the entire
// holding removes the position row, so a repeated sell of the same symbol
// reports ErrNoSuchPosition rather than ErrInsufficientShares.
func (s *LedgerService) Sell(ctx context.Context, accountID int64, symbol string, shares int) (result model.TradeResult, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.Sell"

	slog.Debug("Sell start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("accountID", accountID), slog.String("symbol", symbol), slog.Int("shares", shares))
	defer func() {
		slog.Debug("Sell finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("accountID", accountID))
	}()

	symbol, err = normalizeOrder(symbol, shares)
	if err != nil {
		return model.TradeResult{}, err
	}

	result, err = s.executeSell(ctx, accountID, symbol, shares)
	if errors.Is(err, repository.ErrConflict) {
		slog.Warn("sell hit concurrent modification, retrying once", slog.String("rqID", rqID), slog.String("op", op))
		result, err = s.executeSell(ctx, accountID, symbol, shares)
		if errors.Is(err, repository.ErrConflict) {
			err = service.ErrInsufficientShares
		}
	}

	return result, err
}

func (s *LedgerService) executeSell(ctx context.Context, accountID int64, symbol string, shares int) (model.TradeResult, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.executeSell"

	position, err := s.repo.GetPosition(ctx, accountID, symbol)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.TradeResult{}, service.ErrNoSuchPosition
		}
		return model.TradeResult{}, err
	}

	if shares > position.ShareCount {
		slog.Warn("sell rejected: insufficient shares", slog.String("rqID", rqID), slog.String("op", op), slog.Int("held", position.ShareCount), slog.Int("requested", shares))
		return model.TradeResult{}, service.ErrInsufficientShares
	}

	// the price is required to compute proceeds, so a failed lookup rejects
	// the order even though the shares are owned
	quote, err := s.lookupFreshQuote(ctx, symbol)
	if err != nil {
		return model.TradeResult{}, err
	}

	proceeds := quote.Price.Mul(decimal.NewFromInt(int64(shares))).Round(2)

	record := model.TradeRecord{
		AccountID:     accountID,
		Side:          model.SideSell,
		Symbol:        symbol,
		ShareCount:    shares,
		PricePerShare: quote.Price,
		TotalAmount:   proceeds,
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.ReducePosition(ctx, accountID, symbol, shares); err != nil {
			return err
		}
		if err := s.repo.UpdateCashBalance(ctx, accountID, proceeds); err != nil {
			return err
		}
		return s.repo.InsertTradeRecord(ctx, record)
	})
	if err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			slog.Error("sell transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
		return model.TradeResult{}, err
	}

	return model.TradeResult{
		Side:        model.SideSell,
		Symbol:      symbol,
		ShareCount:  shares,
		Price:       quote.Price,
		TotalAmount: proceeds,
	}, nil
}

// lookupFreshQuote always hits the provider; the cache feeds portfolio
// valuation only, never order pricing.
func (s *LedgerService) lookupFreshQuote(ctx context.Context, symbol string) (quoteModel.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.lookupFreshQuote"

	quote, err := s.quoteApi.GetQuote(ctx, symbol)
	if err != nil {
		if errors.Is(err, externalApi.ErrNotFound) {
			slog.Warn("symbol not found in quoteApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
			return quoteModel.Quote{}, service.ErrUnknownSymbol
		}
		slog.Error("can't get quote from quoteApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return quoteModel.Quote{}, err
	}

	go s.cache.SetQuotes(context.WithoutCancel(ctx), []quoteModel.Quote{quote})

	return quote, nil
}

func (s *LedgerService) GetPortfolio(ctx context.Context, accountID int64) (summary model.PortfolioSummary, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.GetPortfolio"

	slog.Debug("GetPortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("accountID", accountID))
	defer func() {
		slog.Debug("GetPortfolio finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("accountID", accountID))
	}()

	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.PortfolioSummary{}, service.ErrNotFound
		}
		return model.PortfolioSummary{}, err
	}

	positions, err := s.repo.GetPositions(ctx, accountID)
	if err != nil {
		return model.PortfolioSummary{}, err
	}

	summary = model.PortfolioSummary{
		AccountID:   accountID,
		CashBalance: account.CashBalance,
		Positions:   make([]model.PortfolioPosition, 0, len(positions)),
		TotalEquity: account.CashBalance,
	}

	for _, position := range positions {
		enriched := model.PortfolioPosition{
			Symbol:     position.Symbol,
			ShareCount: position.ShareCount,
		}

		quote, err := s.getQuoteForValuation(ctx, position.Symbol)
		if err == nil {
			value := quote.Price.Mul(decimal.NewFromInt(int64(position.ShareCount))).Round(2)
			enriched.Price = &quote.Price
			enriched.MarketValue = &value
			summary.TotalEquity = summary.TotalEquity.Add(value)
		} else {
			// a position without a current quote still shows up, just unpriced
			slog.Warn("no quote for held symbol", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", position.Symbol))
		}

		summary.Positions = append(summary.Positions, enriched)
	}

	return summary, nil
}

// getQuoteForValuation is the display path: cache first, provider on miss.
func (s *LedgerService) getQuoteForValuation(ctx context.Context, symbol string) (quoteModel.Quote, error) {
	quote, err := s.cache.GetQuote(ctx, symbol)
	if err == nil {
		return quote, nil
	}

	return s.lookupFreshQuote(ctx, symbol)
}

func (s *LedgerService) GetQuote(ctx context.Context, symbol string) (quote quoteModel.Quote, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.GetQuote"

	slog.Debug("GetQuote start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("GetQuote finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return quoteModel.Quote{}, service.ErrInvalidInput
	}

	return s.lookupFreshQuote(ctx, symbol)
}

func (s *LedgerService) GetTradeHistory(ctx context.Context, accountID int64, page int) (historyPage model.TradeHistoryPage, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.GetTradeHistory"

	slog.Debug("GetTradeHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("accountID", accountID), slog.Int("page", page))
	defer func() {
		slog.Debug("GetTradeHistory finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("accountID", accountID))
	}()

	if page < 1 {
		page = 1
	}

	limit := s.cfg.Ledger.HistoryPerPage
	offset := (page - 1) * limit

	records, hasNextPage, err := s.repo.GetTradeRecords(ctx, accountID, limit, offset)
	if err != nil {
		slog.Error("got error from repo.GetTradeRecords", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.TradeHistoryPage{}, err
	}

	return model.TradeHistoryPage{
		Records:     records,
		Page:        page,
		HasNextPage: hasNextPage,
	}, nil
}

func (s *LedgerService) ExportTradeHistory(ctx context.Context, accountID int64) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.ExportTradeHistory"

	slog.Debug("ExportTradeHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("accountID", accountID))
	defer func() {
		slog.Debug("ExportTradeHistory finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("accountID", accountID))
	}()

	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", service.ErrNotFound
		}
		return nil, "", err
	}

	const exportLimit = 10000
	records, _, err := s.repo.GetTradeRecords(ctx, accountID, exportLimit, 0)
	if err != nil {
		slog.Error("got error from repo.GetTradeRecords", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	return s.reportGen.Generate(ctx, account.Username, records)
}

// RefreshQuoteCache is a scheduler job keeping cached quotes for held symbols
// warm so portfolio valuation does not fan out to the provider on every read.
func (s *LedgerService) RefreshQuoteCache(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.RefreshQuoteCache"

	symbols, err := s.repo.GetHeldSymbols(ctx, refreshSymbolsLimit)
	if err != nil {
		slog.Error("got error from repo.GetHeldSymbols", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	quotes := make([]quoteModel.Quote, 0, len(symbols))
	for _, symbol := range symbols {
		quote, err := s.quoteApi.GetQuote(ctx, symbol)
		if err != nil {
			slog.Warn("skipping symbol in quote cache refresh", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
			continue
		}
		quotes = append(quotes, quote)
	}

	if len(quotes) == 0 {
		return nil
	}

	return s.cache.SetQuotes(ctx, quotes)
}

func normalizeOrder(symbol string, shares int) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || shares <= 0 {
		return "", service.ErrInvalidInput
	}
	return symbol, nil
}
