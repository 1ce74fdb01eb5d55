package sqlstore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/apperrors"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

type optimizationRunRow struct {
	RunID              string  `db:"run_id"`
	StrategyID         string  `db:"strategy_id"`
	Source             string  `db:"source"`
	Status             string  `db:"status"`
	RequestJSON        string  `db:"request_json"`
	ResultJSON         *string `db:"result_json"`
	SummaryMetricsJSON *string `db:"summary_metrics_json"`
	CreatedAt          string  `db:"created_at"`
	StartedAt          *string `db:"started_at"`
	CompletedAt        *string `db:"completed_at"`
}

type optimizationRunRepo struct{ db *sqlx.DB }

func toOptimizationRunRow(run *types.OptimizationRun) (optimizationRunRow, error) {
	requestJSON, err := marshalJSON(run.Request)
	if err != nil {
		return optimizationRunRow{}, err
	}
	row := optimizationRunRow{
		RunID:       run.RunID,
		StrategyID:  run.StrategyID,
		Source:      string(run.Source),
		Status:      string(run.Status),
		RequestJSON: requestJSON,
		CreatedAt:   run.CreatedAt.Format(timeLayout),
	}
	if run.Result != nil {
		s, err := marshalJSON(run.Result)
		if err != nil {
			return optimizationRunRow{}, err
		}
		row.ResultJSON = &s
	}
	if run.SummaryMetrics != nil {
		s, err := marshalJSON(run.SummaryMetrics)
		if err != nil {
			return optimizationRunRow{}, err
		}
		row.SummaryMetricsJSON = &s
	}
	if run.StartedAt != nil {
		s := run.StartedAt.Format(timeLayout)
		row.StartedAt = &s
	}
	if run.CompletedAt != nil {
		s := run.CompletedAt.Format(timeLayout)
		row.CompletedAt = &s
	}
	return row, nil
}

func (row optimizationRunRow) toOptimizationRun() (*types.OptimizationRun, error) {
	run := &types.OptimizationRun{
		RunID:      row.RunID,
		StrategyID: row.StrategyID,
		Source:     types.OptimizationSource(row.Source),
		Status:     types.OptimizationStatus(row.Status),
	}
	if err := unmarshalJSON(row.RequestJSON, &run.Request); err != nil {
		return nil, err
	}
	if row.ResultJSON != nil {
		if err := unmarshalJSON(*row.ResultJSON, &run.Result); err != nil {
			return nil, err
		}
	}
	if row.SummaryMetricsJSON != nil {
		if err := unmarshalJSON(*row.SummaryMetricsJSON, &run.SummaryMetrics); err != nil {
			return nil, err
		}
	}
	var err error
	if run.CreatedAt, err = parseTime(row.CreatedAt); err != nil {
		return nil, err
	}
	if row.StartedAt != nil {
		t, err := parseTime(*row.StartedAt)
		if err != nil {
			return nil, err
		}
		run.StartedAt = &t
	}
	if row.CompletedAt != nil {
		t, err := parseTime(*row.CompletedAt)
		if err != nil {
			return nil, err
		}
		run.CompletedAt = &t
	}
	return run, nil
}

func (r *optimizationRunRepo) Upsert(ctx context.Context, run *types.OptimizationRun) error {
	row, err := toOptimizationRunRow(run)
	if err != nil {
		return apperrors.NewIntegrityError("optimizationRuns.Upsert", err.Error())
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO optimization_runs (run_id, strategy_id, source, status, request_json, result_json, summary_metrics_json, created_at, started_at, completed_at)
		VALUES (:run_id, :strategy_id, :source, :status, :request_json, :result_json, :summary_metrics_json, :created_at, :started_at, :completed_at)
		ON CONFLICT(run_id) DO UPDATE SET status=excluded.status, result_json=excluded.result_json,
			summary_metrics_json=excluded.summary_metrics_json, started_at=excluded.started_at, completed_at=excluded.completed_at
	`, row)
	if err != nil {
		return apperrors.NewIntegrityError("optimizationRuns.Upsert", err.Error())
	}
	return nil
}

func (r *optimizationRunRepo) GetByID(ctx context.Context, runID string) (*types.OptimizationRun, error) {
	var row optimizationRunRow
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM optimization_runs WHERE run_id=?`, runID); err != nil {
		return nil, apperrors.NewIntegrityError("optimizationRuns.GetByID", err.Error())
	}
	return row.toOptimizationRun()
}

func (r *optimizationRunRepo) ListRecent(ctx context.Context, limit int) ([]*types.OptimizationRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []optimizationRunRow
	err := r.db.SelectContext(ctx, &rows, `SELECT * FROM optimization_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.NewIntegrityError("optimizationRuns.ListRecent", err.Error())
	}
	out := make([]*types.OptimizationRun, 0, len(rows))
	for _, row := range rows {
		run, err := row.toOptimizationRun()
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

func (r *optimizationRunRepo) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM optimization_runs WHERE created_at < ?`, olderThan.Format(timeLayout))
	if err != nil {
		return 0, apperrors.NewIntegrityError("optimizationRuns.Prune", err.Error())
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *optimizationRunRepo) Delete(ctx context.Context, runID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM optimization_runs WHERE run_id=?`, runID)
	if err != nil {
		return apperrors.NewIntegrityError("optimizationRuns.Delete", err.Error())
	}
	return nil
}
