package sqlstore

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/apperrors"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

type auditLogRow struct {
	ID          string  `db:"id"`
	EventType   string  `db:"event_type"`
	Description string  `db:"description"`
	DetailsJSON string  `db:"details_json"`
	UserID      *string `db:"user_id"`
	StrategyID  *string `db:"strategy_id"`
	OrderID     *string `db:"order_id"`
	Timestamp   string  `db:"timestamp"`
}

type auditLogRepo struct{ db *sqlx.DB }

func (r *auditLogRepo) Append(ctx context.Context, log *types.AuditLog) error {
	detailsJSON, err := marshalJSON(log.Details)
	if err != nil {
		return apperrors.NewIntegrityError("auditLogs.Append", err.Error())
	}
	row := auditLogRow{
		ID:          log.ID,
		EventType:   string(log.EventType),
		Description: log.Description,
		DetailsJSON: detailsJSON,
		UserID:      log.UserID,
		StrategyID:  log.StrategyID,
		OrderID:     log.OrderID,
		Timestamp:   log.Timestamp.Format(timeLayout),
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO audit_logs (id, event_type, description, details_json, user_id, strategy_id, order_id, timestamp)
		VALUES (:id, :event_type, :description, :details_json, :user_id, :strategy_id, :order_id, :timestamp)
	`, row)
	if err != nil {
		return apperrors.NewIntegrityError("auditLogs.Append", err.Error())
	}
	return nil
}

func (r *auditLogRepo) ListRecent(ctx context.Context, limit int) ([]*types.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []auditLogRow
	err := r.db.SelectContext(ctx, &rows, `SELECT * FROM audit_logs ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.NewIntegrityError("auditLogs.ListRecent", err.Error())
	}
	out := make([]*types.AuditLog, 0, len(rows))
	for _, row := range rows {
		var details map[string]any
		if err := unmarshalJSON(row.DetailsJSON, &details); err != nil {
			return nil, err
		}
		ts, err := parseTime(row.Timestamp)
		if err != nil {
			return nil, err
		}
		out = append(out, &types.AuditLog{
			ID:          row.ID,
			EventType:   types.AuditEventType(row.EventType),
			Description: row.Description,
			Details:     details,
			UserID:      row.UserID,
			StrategyID:  row.StrategyID,
			OrderID:     row.OrderID,
			Timestamp:   ts,
		})
	}
	return out, nil
}
