package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/fintrack/paper_trading_service/internal/format"
	"github.com/fintrack/paper_trading_service/internal/model"
	"github.com/fintrack/paper_trading_service/internal/model/quoteModel"
	"github.com/fintrack/paper_trading_service/internal/service"
	"github.com/fintrack/paper_trading_service/utils"
)

const internalErrMsg = "something went wrong, try again later"

type LedgerService interface {
	RegisterAccount(ctx context.Context, username string) (accountID int64, err error)
	Buy(ctx context.Context, accountID int64, symbol string, shares int) (model.TradeResult, error)
	Sell(ctx context.Context, accountID int64, symbol string, shares int) (model.TradeResult, error)
	GetPortfolio(ctx context.Context, accountID int64) (model.PortfolioSummary, error)
	GetQuote(ctx context.Context, symbol string) (quoteModel.Quote, error)
	GetTradeHistory(ctx context.Context, accountID int64, page int) (model.TradeHistoryPage, error)
	ExportTradeHistory(ctx context.Context, accountID int64) (fileBytes []byte, fileExtension string, err error)
}

type Controller struct {
	ledgerService LedgerService
}

func NewController(ledgerService LedgerService) *Controller {
	return &Controller{ledgerService: ledgerService}
}

type createAccountRequest struct {
	Username string `json:"username"`
}

type createAccountResponse struct {
	AccountID int64 `json:"account_id"`
}

type orderRequest struct {
	Symbol string `json:"symbol"`
	Shares int    `json:"shares"`
}

type tradeResponse struct {
	Side         string `json:"side"`
	Symbol       string `json:"symbol"`
	Shares       int    `json:"shares"`
	Price        string `json:"price"`
	Total        string `json:"total"`
	PriceDisplay string `json:"price_display"`
	TotalDisplay string `json:"total_display"`
}

type positionResponse struct {
	Symbol       string  `json:"symbol"`
	Shares       int     `json:"shares"`
	Price        *string `json:"price"`
	Value        *string `json:"value"`
	ValueDisplay string  `json:"value_display"`
}

type portfolioResponse struct {
	AccountID    int64              `json:"account_id"`
	Cash         string             `json:"cash"`
	CashDisplay  string             `json:"cash_display"`
	Positions    []positionResponse `json:"positions"`
	TotalEquity  string             `json:"total_equity"`
	TotalDisplay string             `json:"total_equity_display"`
}

type tradeRecordResponse struct {
	Side         string `json:"side"`
	Symbol       string `json:"symbol"`
	Shares       int    `json:"shares"`
	Price        string `json:"price"`
	Total        string `json:"total"`
	TotalDisplay string `json:"total_display"`
	Time         string `json:"time"`
}

type historyResponse struct {
	Records     []tradeRecordResponse `json:"records"`
	Page        int                   `json:"page"`
	HasNextPage bool                  `json:"has_next_page"`
}

type quoteResponse struct {
	Symbol       string `json:"symbol"`
	Price        string `json:"price"`
	PriceDisplay string `json:"price_display"`
}

func (ctrl *Controller) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (ctrl *Controller) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	req := createAccountRequest{}
	if !decodeJSON(w, r, &req) {
		return
	}

	accountID, err := ctrl.ledgerService.RegisterAccount(r.Context(), req.Username)
	if err != nil {
		ctrl.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createAccountResponse{AccountID: accountID})
}

func (ctrl *Controller) handleQuote(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	symbol := strings.TrimPrefix(r.URL.Path, "/api/quotes/")
	quote, err := ctrl.ledgerService.GetQuote(r.Context(), symbol)
	if err != nil {
		ctrl.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, quoteResponse{
		Symbol:       quote.Symbol,
		Price:        quote.Price.String(),
		PriceDisplay: format.USD(quote.Price),
	})
}

// routeAccounts dispatches /api/accounts/{id}/* to the appropriate handler.
func (ctrl *Controller) routeAccounts(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "account id is required in path")
		return
	}

	accountID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "portfolio" && len(parts) == 2:
		ctrl.handlePortfolio(w, r, accountID)
	case action == "buy" && len(parts) == 2:
		ctrl.handleOrder(w, r, accountID, model.SideBuy)
	case action == "sell" && len(parts) == 2:
		ctrl.handleOrder(w, r, accountID, model.SideSell)
	case action == "history" && len(parts) == 2:
		ctrl.handleHistory(w, r, accountID)
	case action == "history" && len(parts) == 3 && parts[2] == "export":
		ctrl.handleHistoryExport(w, r, accountID)
	default:
		writeError(w, http.StatusNotFound, "unknown route")
	}
}

func (ctrl *Controller) handlePortfolio(w http.ResponseWriter, r *http.Request, accountID int64) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	summary, err := ctrl.ledgerService.GetPortfolio(r.Context(), accountID)
	if err != nil {
		ctrl.writeServiceError(w, r, err)
		return
	}

	resp := portfolioResponse{
		AccountID:    summary.AccountID,
		Cash:         summary.CashBalance.String(),
		CashDisplay:  format.USD(summary.CashBalance),
		Positions:    make([]positionResponse, 0, len(summary.Positions)),
		TotalEquity:  summary.TotalEquity.String(),
		TotalDisplay: format.USD(summary.TotalEquity),
	}

	for _, position := range summary.Positions {
		pr := positionResponse{
			Symbol:       position.Symbol,
			Shares:       position.ShareCount,
			ValueDisplay: format.USDPtr(position.MarketValue),
		}
		if position.Price != nil {
			price := position.Price.String()
			pr.Price = &price
		}
		if position.MarketValue != nil {
			value := position.MarketValue.String()
			pr.Value = &value
		}
		resp.Positions = append(resp.Positions, pr)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (ctrl *Controller) handleOrder(w http.ResponseWriter, r *http.Request, accountID int64, side model.TradeSide) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	req := orderRequest{}
	if !decodeJSON(w, r, &req) {
		return
	}

	var result model.TradeResult
	var err error
	if side == model.SideBuy {
		result, err = ctrl.ledgerService.Buy(r.Context(), accountID, req.Symbol, req.Shares)
	} else {
		result, err = ctrl.ledgerService.Sell(r.Context(), accountID, req.Symbol, req.Shares)
	}
	if err != nil {
		ctrl.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tradeResponse{
		Side:         string(result.Side),
		Symbol:       result.Symbol,
		Shares:       result.ShareCount,
		Price:        result.Price.String(),
		Total:        result.TotalAmount.String(),
		PriceDisplay: format.USD(result.Price),
		TotalDisplay: format.USD(result.TotalAmount),
	})
}

func (ctrl *Controller) handleHistory(w http.ResponseWriter, r *http.Request, accountID int64) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	historyPage, err := ctrl.ledgerService.GetTradeHistory(r.Context(), accountID, page)
	if err != nil {
		ctrl.writeServiceError(w, r, err)
		return
	}

	resp := historyResponse{
		Records:     make([]tradeRecordResponse, 0, len(historyPage.Records)),
		Page:        historyPage.Page,
		HasNextPage: historyPage.HasNextPage,
	}

	for _, record := range historyPage.Records {
		resp.Records = append(resp.Records, tradeRecordResponse{
			Side:         string(record.Side),
			Symbol:       record.Symbol,
			Shares:       record.ShareCount,
			Price:        record.PricePerShare.String(),
			Total:        record.TotalAmount.String(),
			TotalDisplay: format.USD(record.TotalAmount),
			Time:         record.CreatedAt.Format("02/01/2006 15:04:05"),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (ctrl *Controller) handleHistoryExport(w http.ResponseWriter, r *http.Request, accountID int64) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	fileBytes, ext, err := ctrl.ledgerService.ExportTradeHistory(r.Context(), accountID)
	if err != nil {
		ctrl.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="trade_history`+ext+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(fileBytes)
}

// writeServiceError maps the order-failure taxonomy onto status classes:
// validation problems are 400, precondition failures are 403, store and
// transport faults are 500.
func (ctrl *Controller) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "please enter a valid stock symbol and a positive share count")
	case errors.Is(err, service.ErrUnknownSymbol):
		writeError(w, http.StatusBadRequest, "please enter a valid stock symbol")
	case errors.Is(err, service.ErrInsufficientFunds):
		writeError(w, http.StatusForbidden, "not enough funds for this purchase")
	case errors.Is(err, service.ErrInsufficientShares):
		writeError(w, http.StatusForbidden, "you don't own enough shares")
	case errors.Is(err, service.ErrNoSuchPosition):
		writeError(w, http.StatusForbidden, "you don't own this stock")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, service.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "username already taken")
	default:
		rqID := utils.GetRequestIDFromCtx(r.Context())
		slog.Error("unhandled service error", slog.String("rqID", rqID), slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, internalErrMsg)
	}
}
