// Package storage defines the Storage Port: repository interfaces for every
// entity in the data model, with an in-memory (memstore) and a SQL-backed
// (sqlstore) implementation.
package storage

import (
	"context"
	"time"

	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

// OrderRepository manages Order rows.
type OrderRepository interface {
	Create(ctx context.Context, order *types.Order) error
	Update(ctx context.Context, order *types.Order) error
	GetByID(ctx context.Context, id string) (*types.Order, error)
	ListOpen(ctx context.Context) ([]*types.Order, error)
}

// TradeRepository manages append-only Trade rows.
type TradeRepository interface {
	Append(ctx context.Context, trade *types.Trade) error
	ListByOrderID(ctx context.Context, orderID string) ([]*types.Trade, error)
	ListAll(ctx context.Context) ([]*types.Trade, error)
	ListBySymbol(ctx context.Context, symbol string) ([]*types.Trade, error)
}

// PositionRepository manages Position rows, one per symbol.
type PositionRepository interface {
	GetBySymbol(ctx context.Context, symbol string) (*types.Position, error)
	Upsert(ctx context.Context, position *types.Position) error
	ListOpen(ctx context.Context) ([]*types.Position, error)
}

// StrategyRepository manages Strategy rows and their rollup stats.
type StrategyRepository interface {
	Create(ctx context.Context, strategy *types.Strategy) error
	Update(ctx context.Context, strategy *types.Strategy) error
	GetByID(ctx context.Context, id string) (*types.Strategy, error)
	ListAll(ctx context.Context) ([]*types.Strategy, error)
}

// ConfigRepository manages key/value config rows, also used for runner checkpoints.
type ConfigRepository interface {
	Upsert(ctx context.Context, entry *types.ConfigEntry) error
	Get(ctx context.Context, key string) (*types.ConfigEntry, error)
}

// AuditLogRepository manages append-only audit log rows.
type AuditLogRepository interface {
	Append(ctx context.Context, log *types.AuditLog) error
	ListRecent(ctx context.Context, limit int) ([]*types.AuditLog, error)
}

// PortfolioSnapshotRepository manages append-only portfolio snapshots.
type PortfolioSnapshotRepository interface {
	Append(ctx context.Context, snapshot *types.PortfolioSnapshot) error
	ListRecent(ctx context.Context, since time.Time) ([]*types.PortfolioSnapshot, error)
}

// OptimizationRunRepository manages optimizer run records.
type OptimizationRunRepository interface {
	Upsert(ctx context.Context, run *types.OptimizationRun) error
	GetByID(ctx context.Context, runID string) (*types.OptimizationRun, error)
	ListRecent(ctx context.Context, limit int) ([]*types.OptimizationRun, error)
	Prune(ctx context.Context, olderThan time.Time) (int, error)
	Delete(ctx context.Context, runID string) error
}

// Store aggregates all repositories; both memstore and sqlstore implement it.
type Store interface {
	Orders() OrderRepository
	Trades() TradeRepository
	Positions() PositionRepository
	Strategies() StrategyRepository
	Config() ConfigRepository
	AuditLogs() AuditLogRepository
	Snapshots() PortfolioSnapshotRepository
	OptimizationRuns() OptimizationRunRepository
	Close() error
}
