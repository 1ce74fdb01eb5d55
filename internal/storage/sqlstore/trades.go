package sqlstore

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/apperrors"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

type tradeRow struct {
	ID          string  `db:"id"`
	OrderID     string  `db:"order_id"`
	Symbol      string  `db:"symbol"`
	Side        string  `db:"side"`
	Type        string  `db:"type"`
	Quantity    string  `db:"quantity"`
	Price       string  `db:"price"`
	Commission  string  `db:"commission"`
	Fees        string  `db:"fees"`
	RealizedPnL *string `db:"realized_pnl"`
	StrategyID  *string `db:"strategy_id"`
	ExecutedAt  string  `db:"executed_at"`
}

type tradeRepo struct{ db *sqlx.DB }

func toTradeRow(t *types.Trade) tradeRow {
	row := tradeRow{
		ID:         t.ID,
		OrderID:    t.OrderID,
		Symbol:     t.Symbol,
		Side:       string(t.Side),
		Type:       string(t.Type),
		Quantity:   t.Quantity.String(),
		Price:      t.Price.String(),
		Commission: t.Commission.String(),
		Fees:       t.Fees.String(),
		StrategyID: t.StrategyID,
		ExecutedAt: t.ExecutedAt.Format(timeLayout),
	}
	if t.RealizedPnL != nil {
		s := t.RealizedPnL.String()
		row.RealizedPnL = &s
	}
	return row
}

func (row tradeRow) toTrade() (*types.Trade, error) {
	quantity, err := decimal.NewFromString(row.Quantity)
	if err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(row.Price)
	if err != nil {
		return nil, err
	}
	commission, err := decimal.NewFromString(row.Commission)
	if err != nil {
		return nil, err
	}
	fees, err := decimal.NewFromString(row.Fees)
	if err != nil {
		return nil, err
	}
	t := &types.Trade{
		ID:         row.ID,
		OrderID:    row.OrderID,
		Symbol:     row.Symbol,
		Side:       types.OrderSide(row.Side),
		Type:       types.TradeType(row.Type),
		Quantity:   quantity,
		Price:      price,
		Commission: commission,
		Fees:       fees,
		StrategyID: row.StrategyID,
	}
	if row.RealizedPnL != nil {
		pnl, err := decimal.NewFromString(*row.RealizedPnL)
		if err != nil {
			return nil, err
		}
		t.RealizedPnL = &pnl
	}
	if t.ExecutedAt, err = parseTime(row.ExecutedAt); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *tradeRepo) Append(ctx context.Context, trade *types.Trade) error {
	row := toTradeRow(trade)
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO trades (id, order_id, symbol, side, type, quantity, price, commission, fees, realized_pnl, strategy_id, executed_at)
		VALUES (:id, :order_id, :symbol, :side, :type, :quantity, :price, :commission, :fees, :realized_pnl, :strategy_id, :executed_at)
	`, row)
	if err != nil {
		return apperrors.NewIntegrityError("trades.Append", err.Error())
	}
	return nil
}

func (r *tradeRepo) ListByOrderID(ctx context.Context, orderID string) ([]*types.Trade, error) {
	return r.query(ctx, `SELECT * FROM trades WHERE order_id=? ORDER BY executed_at`, orderID)
}

func (r *tradeRepo) ListBySymbol(ctx context.Context, symbol string) ([]*types.Trade, error) {
	return r.query(ctx, `SELECT * FROM trades WHERE symbol=? ORDER BY executed_at`, symbol)
}

func (r *tradeRepo) ListAll(ctx context.Context) ([]*types.Trade, error) {
	return r.query(ctx, `SELECT * FROM trades ORDER BY executed_at`)
}

func (r *tradeRepo) query(ctx context.Context, q string, args ...any) ([]*types.Trade, error) {
	var rows []tradeRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, apperrors.NewIntegrityError("trades.query", err.Error())
	}
	out := make([]*types.Trade, 0, len(rows))
	for _, row := range rows {
		t, err := row.toTrade()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
