package sqlstore

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/apperrors"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

type strategyRow struct {
	ID           string  `db:"id"`
	Name         string  `db:"name"`
	StrategyType string  `db:"strategy_type"`
	ConfigJSON   string  `db:"config_json"`
	IsEnabled    bool    `db:"is_enabled"`
	IsActive     bool    `db:"is_active"`
	TotalTrades  int     `db:"total_trades"`
	WinRate      string  `db:"win_rate"`
	TotalPnL     string  `db:"total_pnl"`
	LastRunAt    *string `db:"last_run_at"`
}

type strategyRepo struct{ db *sqlx.DB }

func toStrategyRow(s *types.Strategy) (strategyRow, error) {
	configJSON, err := marshalJSON(s.Config)
	if err != nil {
		return strategyRow{}, err
	}
	row := strategyRow{
		ID:           s.ID,
		Name:         s.Name,
		StrategyType: s.StrategyType,
		ConfigJSON:   configJSON,
		IsEnabled:    s.IsEnabled,
		IsActive:     s.IsActive,
		TotalTrades:  s.TotalTrades,
		WinRate:      s.WinRate.String(),
		TotalPnL:     s.TotalPnL.String(),
	}
	if s.LastRunAt != nil {
		t := s.LastRunAt.Format(timeLayout)
		row.LastRunAt = &t
	}
	return row, nil
}

func (row strategyRow) toStrategy() (*types.Strategy, error) {
	winRate, err := decimal.NewFromString(row.WinRate)
	if err != nil {
		return nil, err
	}
	totalPnL, err := decimal.NewFromString(row.TotalPnL)
	if err != nil {
		return nil, err
	}
	var config map[string]any
	if err := unmarshalJSON(row.ConfigJSON, &config); err != nil {
		return nil, err
	}
	s := &types.Strategy{
		ID:           row.ID,
		Name:         row.Name,
		StrategyType: row.StrategyType,
		Config:       config,
		IsEnabled:    row.IsEnabled,
		IsActive:     row.IsActive,
		TotalTrades:  row.TotalTrades,
		WinRate:      winRate,
		TotalPnL:     totalPnL,
	}
	if row.LastRunAt != nil {
		t, err := parseTime(*row.LastRunAt)
		if err != nil {
			return nil, err
		}
		s.LastRunAt = &t
	}
	return s, nil
}

func (r *strategyRepo) Create(ctx context.Context, strategy *types.Strategy) error {
	row, err := toStrategyRow(strategy)
	if err != nil {
		return apperrors.NewIntegrityError("strategies.Create", err.Error())
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO strategies (id, name, strategy_type, config_json, is_enabled, is_active, total_trades, win_rate, total_pnl, last_run_at)
		VALUES (:id, :name, :strategy_type, :config_json, :is_enabled, :is_active, :total_trades, :win_rate, :total_pnl, :last_run_at)
	`, row)
	if err != nil {
		return apperrors.NewIntegrityError("strategies.Create", err.Error())
	}
	return nil
}

func (r *strategyRepo) Update(ctx context.Context, strategy *types.Strategy) error {
	row, err := toStrategyRow(strategy)
	if err != nil {
		return apperrors.NewIntegrityError("strategies.Update", err.Error())
	}
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE strategies SET name=:name, strategy_type=:strategy_type, config_json=:config_json,
			is_enabled=:is_enabled, is_active=:is_active, total_trades=:total_trades,
			win_rate=:win_rate, total_pnl=:total_pnl, last_run_at=:last_run_at
		WHERE id=:id
	`, row)
	if err != nil {
		return apperrors.NewIntegrityError("strategies.Update", err.Error())
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewIntegrityError("strategies.Update", "unknown strategy id "+strategy.ID)
	}
	return nil
}

func (r *strategyRepo) GetByID(ctx context.Context, id string) (*types.Strategy, error) {
	var row strategyRow
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM strategies WHERE id=?`, id); err != nil {
		return nil, apperrors.NewIntegrityError("strategies.GetByID", err.Error())
	}
	return row.toStrategy()
}

func (r *strategyRepo) ListAll(ctx context.Context) ([]*types.Strategy, error) {
	var rows []strategyRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM strategies ORDER BY id`); err != nil {
		return nil, apperrors.NewIntegrityError("strategies.ListAll", err.Error())
	}
	out := make([]*types.Strategy, 0, len(rows))
	for _, row := range rows {
		s, err := row.toStrategy()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
