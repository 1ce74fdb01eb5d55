package sqlstore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/apperrors"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

type snapshotRow struct {
	Timestamp        string `db:"timestamp"`
	Equity           string `db:"equity"`
	Cash             string `db:"cash"`
	BuyingPower      string `db:"buying_power"`
	MarketValue      string `db:"market_value"`
	UnrealizedPnL    string `db:"unrealized_pnl"`
	RealizedPnLTotal string `db:"realized_pnl_total"`
	OpenPositions    int    `db:"open_positions"`
}

type snapshotRepo struct{ db *sqlx.DB }

func (r *snapshotRepo) Append(ctx context.Context, snapshot *types.PortfolioSnapshot) error {
	row := snapshotRow{
		Timestamp:        snapshot.Timestamp.Format(timeLayout),
		Equity:           snapshot.Equity.String(),
		Cash:             snapshot.Cash.String(),
		BuyingPower:      snapshot.BuyingPower.String(),
		MarketValue:      snapshot.MarketValue.String(),
		UnrealizedPnL:    snapshot.UnrealizedPnL.String(),
		RealizedPnLTotal: snapshot.RealizedPnLTotal.String(),
		OpenPositions:    snapshot.OpenPositions,
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO portfolio_snapshots (timestamp, equity, cash, buying_power, market_value, unrealized_pnl, realized_pnl_total, open_positions)
		VALUES (:timestamp, :equity, :cash, :buying_power, :market_value, :unrealized_pnl, :realized_pnl_total, :open_positions)
	`, row)
	if err != nil {
		return apperrors.NewIntegrityError("snapshots.Append", err.Error())
	}
	return nil
}

func (r *snapshotRepo) ListRecent(ctx context.Context, since time.Time) ([]*types.PortfolioSnapshot, error) {
	var rows []snapshotRow
	err := r.db.SelectContext(ctx, &rows, `SELECT * FROM portfolio_snapshots WHERE timestamp >= ? ORDER BY timestamp`, since.Format(timeLayout))
	if err != nil {
		return nil, apperrors.NewIntegrityError("snapshots.ListRecent", err.Error())
	}
	out := make([]*types.PortfolioSnapshot, 0, len(rows))
	for _, row := range rows {
		ts, err := parseTime(row.Timestamp)
		if err != nil {
			return nil, err
		}
		out = append(out, &types.PortfolioSnapshot{
			Timestamp:        ts,
			Equity:           mustDecimalValue(row.Equity),
			Cash:             mustDecimalValue(row.Cash),
			BuyingPower:      mustDecimalValue(row.BuyingPower),
			MarketValue:      mustDecimalValue(row.MarketValue),
			UnrealizedPnL:    mustDecimalValue(row.UnrealizedPnL),
			RealizedPnLTotal: mustDecimalValue(row.RealizedPnLTotal),
			OpenPositions:    row.OpenPositions,
		})
	}
	return out, nil
}

func mustDecimalValue(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
