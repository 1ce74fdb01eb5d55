// Package sqlstore is a SQL-backed Storage Port implementation over
// jmoiron/sqlx and modernc.org/sqlite (a pure-Go, cgo-free driver), giving
// every repository interface a real persistence path.
package sqlstore

import (
	"context"
	_ "embed"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

// Store is the sqlx-backed Storage Port implementation.
type Store struct {
	db *sqlx.DB
}

// Open opens (and migrates) a sqlite database at dsn, e.g. "file:trader.db?_pragma=journal_mode(WAL)".
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Orders() storage.OrderRepository                     { return &orderRepo{db: s.db} }
func (s *Store) Trades() storage.TradeRepository                     { return &tradeRepo{db: s.db} }
func (s *Store) Positions() storage.PositionRepository               { return &positionRepo{db: s.db} }
func (s *Store) Strategies() storage.StrategyRepository              { return &strategyRepo{db: s.db} }
func (s *Store) Config() storage.ConfigRepository                    { return &configRepo{db: s.db} }
func (s *Store) AuditLogs() storage.AuditLogRepository               { return &auditLogRepo{db: s.db} }
func (s *Store) Snapshots() storage.PortfolioSnapshotRepository      { return &snapshotRepo{db: s.db} }
func (s *Store) OptimizationRuns() storage.OptimizationRunRepository { return &optimizationRunRepo{db: s.db} }
func (s *Store) Close() error                                        { return s.db.Close() }

func marshalJSON(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalJSON(s string, out any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), out)
}
