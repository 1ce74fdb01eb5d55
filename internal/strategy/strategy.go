// Package strategy implements the metrics-driven per-symbol trading
// strategy and the registry that looks strategies up by name.
package strategy

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

// Signal is a strategy's recommendation for one symbol at a point in
// time; the runner translates it into an order submission.
type Signal struct {
	Symbol      string
	Side        types.OrderSide
	Quantity    decimal.Decimal
	Reason      string
	GeneratedAt time.Time
}

// Strategy is the interface every trading strategy implements.
type Strategy interface {
	Name() string
	// OnTick evaluates one symbol's latest price against its historical
	// bar series and the prevailing market regime, returning a signal or
	// nil if no action is warranted.
	OnTick(symbol string, price decimal.Decimal, bars []*types.OHLCV, regime types.Regime) (*Signal, error)
	// Reset clears all per-symbol position state.
	Reset()
}

// Registry looks strategy constructors up by name.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]func(logger *zap.Logger, params types.StrategyParams) Strategy
}

// NewRegistry builds a registry pre-populated with the built-in
// metrics-driven strategy.
func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[string]func(*zap.Logger, types.StrategyParams) Strategy)}
	r.Register("metrics_driven", func(logger *zap.Logger, params types.StrategyParams) Strategy {
		return NewMetricsDrivenStrategy(logger, params)
	})
	return r
}

// Register adds a named strategy constructor.
func (r *Registry) Register(name string, ctor func(logger *zap.Logger, params types.StrategyParams) Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = ctor
}

// Create instantiates a strategy by name.
func (r *Registry) Create(name string, logger *zap.Logger, params types.StrategyParams) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.ctors[name]
	if !ok {
		return nil, false
	}
	return ctor(logger, params), true
}

// List returns all registered strategy names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	return names
}
