package dbConverter

import (
	"github.com/fintrack/paper_trading_service/internal/model"
	"github.com/fintrack/paper_trading_service/internal/model/dbModel"
)

func ConvertAccount(dbAccount dbModel.Account) model.Account {
	return model.Account{
		AccountID:   dbAccount.AccountID,
		Username:    dbAccount.Username,
		CashBalance: dbAccount.CashBalance,
	}
}

func ConvertPosition(dbPosition dbModel.Position) model.Position {
	return model.Position{
		AccountID:  dbPosition.AccountID,
		Symbol:     dbPosition.Symbol,
		ShareCount: dbPosition.ShareCount,
	}
}

func ConvertTradeRecord(dbRecord dbModel.TradeRecord) model.TradeRecord {
	return model.TradeRecord{
		AccountID:     dbRecord.AccountID,
		Side:          model.TradeSide(dbRecord.Side),
		Symbol:        dbRecord.Symbol,
		ShareCount:    dbRecord.ShareCount,
		PricePerShare: dbRecord.PricePerShare,
		TotalAmount:   dbRecord.TotalAmount,
		CreatedAt:     dbRecord.CreatedAt,
	}
}
