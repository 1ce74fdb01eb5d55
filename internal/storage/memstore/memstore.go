// Package memstore is an in-memory Storage Port implementation, the default
// for tests and for paper trading. Each repository guards its own table
// with its own sync.RWMutex, matching the teacher's guarded-map idiom.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/apperrors"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/storage"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

// Store is the in-memory Storage Port implementation.
type Store struct {
	orders     *orderRepo
	trades     *tradeRepo
	positions  *positionRepo
	strategies *strategyRepo
	config     *configRepo
	auditLogs  *auditLogRepo
	snapshots  *snapshotRepo
	optRuns    *optimizationRunRepo
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		orders:     &orderRepo{rows: make(map[string]*types.Order)},
		trades:     &tradeRepo{rows: make(map[string]*types.Trade)},
		positions:  &positionRepo{rows: make(map[string]*types.Position)},
		strategies: &strategyRepo{rows: make(map[string]*types.Strategy)},
		config:     &configRepo{rows: make(map[string]*types.ConfigEntry)},
		auditLogs:  &auditLogRepo{},
		snapshots:  &snapshotRepo{},
		optRuns:    &optimizationRunRepo{rows: make(map[string]*types.OptimizationRun)},
	}
}

func (s *Store) Orders() storage.OrderRepository                       { return s.orders }
func (s *Store) Trades() storage.TradeRepository                       { return s.trades }
func (s *Store) Positions() storage.PositionRepository                 { return s.positions }
func (s *Store) Strategies() storage.StrategyRepository                { return s.strategies }
func (s *Store) Config() storage.ConfigRepository                      { return s.config }
func (s *Store) AuditLogs() storage.AuditLogRepository                 { return s.auditLogs }
func (s *Store) Snapshots() storage.PortfolioSnapshotRepository        { return s.snapshots }
func (s *Store) OptimizationRuns() storage.OptimizationRunRepository   { return s.optRuns }
func (s *Store) Close() error                                          { return nil }

type orderRepo struct {
	mu   sync.RWMutex
	rows map[string]*types.Order
}

func (r *orderRepo) Create(ctx context.Context, order *types.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[order.ID]; exists {
		return apperrors.NewIntegrityError("orders.Create", "duplicate order id "+order.ID)
	}
	cp := *order
	r.rows[order.ID] = &cp
	return nil
}

func (r *orderRepo) Update(ctx context.Context, order *types.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[order.ID]; !exists {
		return apperrors.NewIntegrityError("orders.Update", "unknown order id "+order.ID)
	}
	cp := *order
	r.rows[order.ID] = &cp
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*types.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, apperrors.NewIntegrityError("orders.GetByID", "unknown order id "+id)
	}
	cp := *row
	return &cp, nil
}

func (r *orderRepo) ListOpen(ctx context.Context) ([]*types.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Order, 0)
	for _, row := range r.rows {
		if !row.Status.IsTerminal() {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type tradeRepo struct {
	mu   sync.RWMutex
	rows map[string]*types.Trade
}

func (r *tradeRepo) Append(ctx context.Context, trade *types.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *trade
	r.rows[trade.ID] = &cp
	return nil
}

func (r *tradeRepo) ListByOrderID(ctx context.Context, orderID string) ([]*types.Trade, error) {
	return r.filter(func(t *types.Trade) bool { return t.OrderID == orderID })
}

func (r *tradeRepo) ListBySymbol(ctx context.Context, symbol string) ([]*types.Trade, error) {
	return r.filter(func(t *types.Trade) bool { return t.Symbol == symbol })
}

func (r *tradeRepo) ListAll(ctx context.Context) ([]*types.Trade, error) {
	return r.filter(func(t *types.Trade) bool { return true })
}

func (r *tradeRepo) filter(pred func(*types.Trade) bool) ([]*types.Trade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Trade, 0)
	for _, row := range r.rows {
		if pred(row) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutedAt.Before(out[j].ExecutedAt) })
	return out, nil
}

type positionRepo struct {
	mu   sync.RWMutex
	rows map[string]*types.Position
}

func (r *positionRepo) GetBySymbol(ctx context.Context, symbol string) (*types.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[symbol]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *positionRepo) Upsert(ctx context.Context, position *types.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *position
	r.rows[position.Symbol] = &cp
	return nil
}

func (r *positionRepo) ListOpen(ctx context.Context) ([]*types.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Position, 0)
	for _, row := range r.rows {
		if row.IsOpen {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

type strategyRepo struct {
	mu   sync.RWMutex
	rows map[string]*types.Strategy
}

func (r *strategyRepo) Create(ctx context.Context, strategy *types.Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[strategy.ID]; exists {
		return apperrors.NewIntegrityError("strategies.Create", "duplicate strategy id "+strategy.ID)
	}
	cp := *strategy
	r.rows[strategy.ID] = &cp
	return nil
}

func (r *strategyRepo) Update(ctx context.Context, strategy *types.Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[strategy.ID]; !exists {
		return apperrors.NewIntegrityError("strategies.Update", "unknown strategy id "+strategy.ID)
	}
	cp := *strategy
	r.rows[strategy.ID] = &cp
	return nil
}

func (r *strategyRepo) GetByID(ctx context.Context, id string) (*types.Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, apperrors.NewIntegrityError("strategies.GetByID", "unknown strategy id "+id)
	}
	cp := *row
	return &cp, nil
}

func (r *strategyRepo) ListAll(ctx context.Context) ([]*types.Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Strategy, 0, len(r.rows))
	for _, row := range r.rows {
		cp := *row
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type configRepo struct {
	mu   sync.RWMutex
	rows map[string]*types.ConfigEntry
}

func (r *configRepo) Upsert(ctx context.Context, entry *types.ConfigEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	r.rows[entry.Key] = &cp
	return nil
}

func (r *configRepo) Get(ctx context.Context, key string) (*types.ConfigEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[key]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

type auditLogRepo struct {
	mu   sync.RWMutex
	rows []*types.AuditLog
}

func (r *auditLogRepo) Append(ctx context.Context, log *types.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *log
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *auditLogRepo) ListRecent(ctx context.Context, limit int) ([]*types.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.rows)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*types.AuditLog, limit)
	for i := 0; i < limit; i++ {
		cp := *r.rows[n-1-i]
		out[i] = &cp
	}
	return out, nil
}

type snapshotRepo struct {
	mu   sync.RWMutex
	rows []*types.PortfolioSnapshot
}

func (r *snapshotRepo) Append(ctx context.Context, snapshot *types.PortfolioSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *snapshot
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *snapshotRepo) ListRecent(ctx context.Context, since time.Time) ([]*types.PortfolioSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.PortfolioSnapshot, 0)
	for _, row := range r.rows {
		if row.Timestamp.After(since) || row.Timestamp.Equal(since) {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

type optimizationRunRepo struct {
	mu   sync.RWMutex
	rows map[string]*types.OptimizationRun
}

func (r *optimizationRunRepo) Upsert(ctx context.Context, run *types.OptimizationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.rows[run.RunID] = &cp
	return nil
}

func (r *optimizationRunRepo) GetByID(ctx context.Context, runID string) (*types.OptimizationRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[runID]
	if !ok {
		return nil, apperrors.NewIntegrityError("optimizationRuns.GetByID", "unknown run id "+runID)
	}
	cp := *row
	return &cp, nil
}

func (r *optimizationRunRepo) ListRecent(ctx context.Context, limit int) ([]*types.OptimizationRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.OptimizationRun, 0, len(r.rows))
	for _, row := range r.rows {
		cp := *row
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *optimizationRunRepo) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pruned := 0
	for id, row := range r.rows {
		if row.CreatedAt.Before(olderThan) {
			delete(r.rows, id)
			pruned++
		}
	}
	return pruned, nil
}

func (r *optimizationRunRepo) Delete(ctx context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, runID)
	return nil
}
