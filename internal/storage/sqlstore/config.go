package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/apperrors"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

type configRepo struct{ db *sqlx.DB }

func (r *configRepo) Upsert(ctx context.Context, entry *types.ConfigEntry) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO config_entries (key, value, value_type, description)
		VALUES (:key, :value, :valuetype, :description)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, value_type=excluded.value_type, description=excluded.description
	`, map[string]any{
		"key": entry.Key, "value": entry.Value, "valuetype": string(entry.ValueType), "description": entry.Description,
	})
	if err != nil {
		return apperrors.NewIntegrityError("config.Upsert", err.Error())
	}
	return nil
}

func (r *configRepo) Get(ctx context.Context, key string) (*types.ConfigEntry, error) {
	var row struct {
		Key         string `db:"key"`
		Value       string `db:"value"`
		ValueType   string `db:"value_type"`
		Description string `db:"description"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT * FROM config_entries WHERE key=?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewIntegrityError("config.Get", err.Error())
	}
	return &types.ConfigEntry{
		Key:         row.Key,
		Value:       row.Value,
		ValueType:   types.ConfigValueType(row.ValueType),
		Description: row.Description,
	}, nil
}
