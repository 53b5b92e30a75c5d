package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/fintrack/paper_trading_service/data/repository"
	"github.com/fintrack/paper_trading_service/internal/converter/dbConverter"
	"github.com/fintrack/paper_trading_service/internal/model"
	"github.com/fintrack/paper_trading_service/internal/model/dbModel"
	"github.com/fintrack/paper_trading_service/utils"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/shopspring/decimal"
)

func (p *Postgres) CreateAccount(ctx context.Context, username string, startingCash decimal.Decimal) (accountID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `INSERT INTO accounts(username, cash_balance) VALUES($1, $2) RETURNING account_id`

	slog.Debug("CreateAccount start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("CreateAccount failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("CreateAccount completed", slog.String("rqID", rqID))
		}
	}()

	err = p.txOrDb(ctx).QueryRowContext(ctx, query, username, startingCash).Scan(&accountID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return 0, repository.ErrAlreadyExists
			}
		}
		return 0, err
	}

	return accountID, nil
}

func (p *Postgres) GetAccount(ctx context.Context, accountID int64) (account model.Account, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT account_id, username, cash_balance FROM accounts WHERE account_id = $1`

	slog.Debug("GetAccount start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetAccount failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetAccount completed", slog.String("rqID", rqID))
		}
	}()

	dbAccount := dbModel.Account{}
	err = p.txOrDb(ctx).QueryRowxContext(ctx, query, accountID).StructScan(&dbAccount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, repository.ErrNotFound
		}
		return model.Account{}, err
	}

	return dbConverter.ConvertAccount(dbAccount), nil
}

func (p *Postgres) GetPosition(ctx context.Context, accountID int64, symbol string) (position model.Position, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		SELECT account_id, symbol, share_count
		FROM positions
		WHERE account_id = $1
		AND symbol = $2
		`

	slog.Debug("GetPosition start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("GetPosition failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPosition completed", slog.String("rqID", rqID))
		}
	}()

	dbPosition := dbModel.Position{}
	err = p.txOrDb(ctx).QueryRowxContext(ctx, query, accountID, symbol).StructScan(&dbPosition)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Position{}, repository.ErrNotFound
		}
		return model.Position{}, err
	}

	return dbConverter.ConvertPosition(dbPosition), nil
}

func (p *Postgres) GetPositions(ctx context.Context, accountID int64) (positions []model.Position, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		SELECT account_id, symbol, share_count
		FROM positions
		WHERE account_id = $1
		ORDER BY symbol
		`

	slog.Debug("GetPositions start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetPositions failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPositions completed", slog.String("rqID", rqID))
		}
	}()

	rows, err := p.txOrDb(ctx).QueryxContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var position dbModel.Position
		err = rows.StructScan(&position)
		if err != nil {
			return nil, err
		}
		positions = append(positions, dbConverter.ConvertPosition(position))
	}

	return positions, nil
}

func (p *Postgres) GetHeldSymbols(ctx context.Context, limit int) (symbols []string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT DISTINCT symbol FROM positions ORDER BY symbol LIMIT $1`

	slog.Debug("GetHeldSymbols start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetHeldSymbols failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetHeldSymbols completed", slog.String("rqID", rqID))
		}
	}()

	err = p.txOrDb(ctx).SelectContext(ctx, &symbols, query, limit)
	if err != nil {
		return nil, err
	}

	return symbols, nil
}

// AddToPosition creates the position row on first buy of a symbol and
// increments share_count on subsequent buys.
func (p *Postgres) AddToPosition(ctx context.Context, accountID int64, symbol string, shares int) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		INSERT INTO positions(account_id, symbol, share_count)
		VALUES($1, $2, $3)
		ON CONFLICT (account_id, symbol) DO UPDATE SET
			share_count = positions.share_count + EXCLUDED.share_count
		`

	slog.Debug("AddToPosition start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("AddToPosition failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("AddToPosition completed", slog.String("rqID", rqID))
		}
	}()

	_, err = p.txOrDb(ctx).ExecContext(ctx, query, accountID, symbol, shares)
	if err != nil {
		return err
	}

	return nil
}

// ReducePosition decrements share_count only when enough shares are still held,
// then removes the row if the count reached exactly zero. Zero rows affected
// means a concurrent sale invalidated the precondition.
func (p *Postgres) ReducePosition(ctx context.Context, accountID int64, symbol string, shares int) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		UPDATE positions
		SET share_count = share_count - $1
		WHERE account_id = $2
		AND symbol = $3
		AND share_count > $1
		`
	deleteQuery := `
		DELETE FROM positions
		WHERE account_id = $2
		AND symbol = $3
		AND share_count = $1
		`

	slog.Debug("ReducePosition start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrConflict) {
			slog.Error("ReducePosition failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("ReducePosition completed", slog.String("rqID", rqID))
		}
	}()

	res, err := p.txOrDb(ctx).ExecContext(ctx, query, shares, accountID, symbol)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected > 0 {
		return nil
	}

	// Selling the entire holding removes the row instead of leaving share_count = 0.
	res, err = p.txOrDb(ctx).ExecContext(ctx, deleteQuery, shares, accountID, symbol)
	if err != nil {
		return err
	}

	affected, err = res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return repository.ErrConflict
	}

	return nil
}

// UpdateCashBalance applies delta (negative for a buy, positive for a sell)
// only when the resulting balance stays non-negative. Zero rows affected means
// a concurrent order spent the cash first.
func (p *Postgres) UpdateCashBalance(ctx context.Context, accountID int64, delta decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		UPDATE accounts
		SET cash_balance = cash_balance + $1
		WHERE account_id = $2
		AND cash_balance + $1 >= 0
		`

	slog.Debug("UpdateCashBalance start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrConflict) {
			slog.Error("UpdateCashBalance failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateCashBalance completed", slog.String("rqID", rqID))
		}
	}()

	res, err := p.txOrDb(ctx).ExecContext(ctx, query, delta, accountID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23514" { // check_violation
				return repository.ErrConflict
			}
		}
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return repository.ErrConflict
	}

	return nil
}

func (p *Postgres) InsertTradeRecord(ctx context.Context, record model.TradeRecord) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertTradeRecord"
	query := `
		INSERT INTO trade_records(account_id, side, symbol, share_count, price_per_share, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	slog.Debug(
		"InsertTradeRecord start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Any("record", record),
		slog.String("query", query),
	)
	defer func() {
		if err != nil {
			slog.Error("InsertTradeRecord failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertTradeRecord completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = p.txOrDb(ctx).ExecContext(
		ctx,
		query,
		record.AccountID,
		string(record.Side),
		record.Symbol,
		record.ShareCount,
		record.PricePerShare,
		record.TotalAmount,
	)

	if err != nil {
		return err
	}
	return nil
}

func (p *Postgres) GetTradeRecords(ctx context.Context, accountID int64, limit, offset int) (records []model.TradeRecord, hasNextPage bool, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetTradeRecords"
	params := map[string]any{
		"accountID": accountID,
		"limit":     limit,
		"offset":    offset,
	}
	query := `
		SELECT record_id, account_id, side, symbol, share_count, price_per_share, total_amount, dt_create
		FROM trade_records
		WHERE account_id = $1
		ORDER BY dt_create DESC, record_id DESC
		LIMIT $2
		OFFSET $3
		`

	slog.Debug("GetTradeRecords start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("GetTradeRecords failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTradeRecords completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	// select one extra row to know whether a next page exists
	rows, err := p.txOrDb(ctx).QueryxContext(ctx, query, accountID, limit+1, offset)
	if err != nil {
		return nil, false, err
	}

	defer rows.Close()

	i := 0
	records = make([]model.TradeRecord, 0, limit)
	for rows.Next() {
		i++
		var record dbModel.TradeRecord
		err = rows.StructScan(&record)
		if err != nil {
			return nil, false, err
		}

		if i > limit {
			hasNextPage = true
			break
		}
		records = append(records, dbConverter.ConvertTradeRecord(record))
	}

	return records, hasNextPage, nil
}
