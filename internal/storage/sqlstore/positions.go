package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/apperrors"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

type positionRow struct {
	Symbol        string  `db:"symbol"`
	Side          string  `db:"side"`
	Quantity      string  `db:"quantity"`
	AvgEntryPrice string  `db:"avg_entry_price"`
	CostBasis     string  `db:"cost_basis"`
	RealizedPnL   string  `db:"realized_pnl"`
	IsOpen        bool    `db:"is_open"`
	OpenedAt      string  `db:"opened_at"`
	ClosedAt      *string `db:"closed_at"`
}

type positionRepo struct{ db *sqlx.DB }

func toPositionRow(p *types.Position) positionRow {
	row := positionRow{
		Symbol:        p.Symbol,
		Side:          string(p.Side),
		Quantity:      p.Quantity.String(),
		AvgEntryPrice: p.AvgEntryPrice.String(),
		CostBasis:     p.CostBasis.String(),
		RealizedPnL:   p.RealizedPnL.String(),
		IsOpen:        p.IsOpen,
		OpenedAt:      p.OpenedAt.Format(timeLayout),
	}
	if p.ClosedAt != nil {
		s := p.ClosedAt.Format(timeLayout)
		row.ClosedAt = &s
	}
	return row
}

func (row positionRow) toPosition() (*types.Position, error) {
	quantity, err := decimal.NewFromString(row.Quantity)
	if err != nil {
		return nil, err
	}
	avgEntry, err := decimal.NewFromString(row.AvgEntryPrice)
	if err != nil {
		return nil, err
	}
	costBasis, err := decimal.NewFromString(row.CostBasis)
	if err != nil {
		return nil, err
	}
	realizedPnL, err := decimal.NewFromString(row.RealizedPnL)
	if err != nil {
		return nil, err
	}
	p := &types.Position{
		Symbol:        row.Symbol,
		Side:          types.PositionSide(row.Side),
		Quantity:      quantity,
		AvgEntryPrice: avgEntry,
		CostBasis:     costBasis,
		RealizedPnL:   realizedPnL,
		IsOpen:        row.IsOpen,
	}
	if p.OpenedAt, err = parseTime(row.OpenedAt); err != nil {
		return nil, err
	}
	if row.ClosedAt != nil {
		t, err := parseTime(*row.ClosedAt)
		if err != nil {
			return nil, err
		}
		p.ClosedAt = &t
	}
	return p, nil
}

func (r *positionRepo) GetBySymbol(ctx context.Context, symbol string) (*types.Position, error) {
	var row positionRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM positions WHERE symbol=?`, symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewIntegrityError("positions.GetBySymbol", err.Error())
	}
	return row.toPosition()
}

func (r *positionRepo) Upsert(ctx context.Context, position *types.Position) error {
	row := toPositionRow(position)
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO positions (symbol, side, quantity, avg_entry_price, cost_basis, realized_pnl, is_open, opened_at, closed_at)
		VALUES (:symbol, :side, :quantity, :avg_entry_price, :cost_basis, :realized_pnl, :is_open, :opened_at, :closed_at)
		ON CONFLICT(symbol) DO UPDATE SET side=excluded.side, quantity=excluded.quantity,
			avg_entry_price=excluded.avg_entry_price, cost_basis=excluded.cost_basis,
			realized_pnl=excluded.realized_pnl, is_open=excluded.is_open, closed_at=excluded.closed_at
	`, row)
	if err != nil {
		return apperrors.NewIntegrityError("positions.Upsert", err.Error())
	}
	return nil
}

func (r *positionRepo) ListOpen(ctx context.Context) ([]*types.Position, error) {
	var rows []positionRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM positions WHERE is_open=1 ORDER BY symbol`); err != nil {
		return nil, apperrors.NewIntegrityError("positions.ListOpen", err.Error())
	}
	out := make([]*types.Position, 0, len(rows))
	for _, row := range rows {
		p, err := row.toPosition()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
