package sqlstore

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/apperrors"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

type orderRow struct {
	ID             string          `db:"id"`
	ExternalID     *string         `db:"external_id"`
	Symbol         string          `db:"symbol"`
	Side           string          `db:"side"`
	Type           string          `db:"type"`
	Status         string          `db:"status"`
	Quantity       string          `db:"quantity"`
	Price          *string         `db:"price"`
	FilledQuantity string          `db:"filled_quantity"`
	AvgFillPrice   *string         `db:"avg_fill_price"`
	StrategyID     *string         `db:"strategy_id"`
	CreatedAt      string          `db:"created_at"`
	UpdatedAt      string          `db:"updated_at"`
	FilledAt       *string         `db:"filled_at"`
}

type orderRepo struct{ db *sqlx.DB }

func toOrderRow(o *types.Order) orderRow {
	row := orderRow{
		ID:             o.ID,
		ExternalID:     o.ExternalID,
		Symbol:         o.Symbol,
		Side:           string(o.Side),
		Type:           string(o.Type),
		Status:         string(o.Status),
		Quantity:       o.Quantity.String(),
		FilledQuantity: o.FilledQuantity.String(),
		StrategyID:     o.StrategyID,
		CreatedAt:      o.CreatedAt.Format(timeLayout),
		UpdatedAt:      o.UpdatedAt.Format(timeLayout),
	}
	if o.Price != nil {
		s := o.Price.String()
		row.Price = &s
	}
	if o.AvgFillPrice != nil {
		s := o.AvgFillPrice.String()
		row.AvgFillPrice = &s
	}
	if o.FilledAt != nil {
		s := o.FilledAt.Format(timeLayout)
		row.FilledAt = &s
	}
	return row
}

func (row orderRow) toOrder() (*types.Order, error) {
	quantity, err := decimal.NewFromString(row.Quantity)
	if err != nil {
		return nil, err
	}
	filled, err := decimal.NewFromString(row.FilledQuantity)
	if err != nil {
		return nil, err
	}
	o := &types.Order{
		ID:             row.ID,
		ExternalID:     row.ExternalID,
		Symbol:         row.Symbol,
		Side:           types.OrderSide(row.Side),
		Type:           types.OrderType(row.Type),
		Status:         types.OrderStatus(row.Status),
		Quantity:       quantity,
		FilledQuantity: filled,
		StrategyID:     row.StrategyID,
	}
	if row.Price != nil {
		p, err := decimal.NewFromString(*row.Price)
		if err != nil {
			return nil, err
		}
		o.Price = &p
	}
	if row.AvgFillPrice != nil {
		p, err := decimal.NewFromString(*row.AvgFillPrice)
		if err != nil {
			return nil, err
		}
		o.AvgFillPrice = &p
	}
	if o.CreatedAt, err = parseTime(row.CreatedAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseTime(row.UpdatedAt); err != nil {
		return nil, err
	}
	if row.FilledAt != nil {
		t, err := parseTime(*row.FilledAt)
		if err != nil {
			return nil, err
		}
		o.FilledAt = &t
	}
	return o, nil
}

func (r *orderRepo) Create(ctx context.Context, order *types.Order) error {
	row := toOrderRow(order)
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO orders (id, external_id, symbol, side, type, status, quantity, price,
			filled_quantity, avg_fill_price, strategy_id, created_at, updated_at, filled_at)
		VALUES (:id, :external_id, :symbol, :side, :type, :status, :quantity, :price,
			:filled_quantity, :avg_fill_price, :strategy_id, :created_at, :updated_at, :filled_at)
	`, row)
	if err != nil {
		return apperrors.NewIntegrityError("orders.Create", err.Error())
	}
	return nil
}

func (r *orderRepo) Update(ctx context.Context, order *types.Order) error {
	row := toOrderRow(order)
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE orders SET external_id=:external_id, status=:status, quantity=:quantity,
			price=:price, filled_quantity=:filled_quantity, avg_fill_price=:avg_fill_price,
			updated_at=:updated_at, filled_at=:filled_at
		WHERE id=:id
	`, row)
	if err != nil {
		return apperrors.NewIntegrityError("orders.Update", err.Error())
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewIntegrityError("orders.Update", "unknown order id "+order.ID)
	}
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*types.Order, error) {
	var row orderRow
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM orders WHERE id=?`, id); err != nil {
		return nil, apperrors.NewIntegrityError("orders.GetByID", err.Error())
	}
	return row.toOrder()
}

func (r *orderRepo) ListOpen(ctx context.Context) ([]*types.Order, error) {
	var rows []orderRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM orders WHERE status NOT IN ('filled','cancelled','rejected') ORDER BY created_at
	`)
	if err != nil {
		return nil, apperrors.NewIntegrityError("orders.ListOpen", err.Error())
	}
	return rowsToOrders(rows)
}

func rowsToOrders(rows []orderRow) ([]*types.Order, error) {
	out := make([]*types.Order, 0, len(rows))
	for _, row := range rows {
		o, err := row.toOrder()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
