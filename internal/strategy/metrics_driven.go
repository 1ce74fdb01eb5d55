package strategy

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/screener"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

// position is a symbol's open state under the metrics-driven strategy.
// A symbol with no entry in the map has no open position.
type position struct {
	entryPrice    decimal.Decimal
	quantity      decimal.Decimal
	peakPrice     decimal.Decimal
	atrStopPrice  decimal.Decimal
	takeProfitPrice decimal.Decimal
}

// MetricsDrivenStrategy enters a symbol on a dip/z-score signal under an
// allowed regime, and exits on whichever of ATR-stop, trailing-stop, or
// take-profit price is hit first. State is kept per symbol so the same
// instance can drive an entire universe.
type MetricsDrivenStrategy struct {
	logger *zap.Logger
	params types.StrategyParams

	mu         sync.Mutex
	positions  map[string]*position
}

// NewMetricsDrivenStrategy builds a strategy instance bound to params.
func NewMetricsDrivenStrategy(logger *zap.Logger, params types.StrategyParams) *MetricsDrivenStrategy {
	return &MetricsDrivenStrategy{
		logger:    logger.Named("metrics_driven_strategy"),
		params:    params,
		positions: make(map[string]*position),
	}
}

// Name identifies the strategy.
func (s *MetricsDrivenStrategy) Name() string { return "metrics_driven" }

// Reset clears all open per-symbol state, as if the strategy had just
// been constructed.
func (s *MetricsDrivenStrategy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = make(map[string]*position)
}

// OnTick evaluates symbol against its historical bars and the prevailing
// market regime, returning an entry or exit signal, or nil.
func (s *MetricsDrivenStrategy) OnTick(symbol string, price decimal.Decimal, bars []*types.OHLCV, regime types.Regime) (*Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if pos, open := s.positions[symbol]; open {
		return s.evaluateExit(symbol, price, pos, now), nil
	}
	return s.evaluateEntry(symbol, price, bars, regime, now), nil
}

func (s *MetricsDrivenStrategy) evaluateEntry(symbol string, price decimal.Decimal, bars []*types.OHLCV, regime types.Regime, now time.Time) *Signal {
	if !s.regimeAllowed(regime) {
		return nil
	}
	ind := screener.Compute(bars, s.params.DipBuyThresholdPct, s.params.ZScoreEntryThreshold, s.params.TakeProfitPct, s.params.TrailingStopPct, s.params.AtrStopMult)
	if !ind.HasSMA50 || !ind.DipBuySignal {
		return nil
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	qty := s.params.PositionSizeNotional.Div(price)
	if qty.LessThan(decimal.NewFromInt(1)) {
		qty = decimal.NewFromInt(1)
	}

	stopLossPrice := price.Mul(decimal.NewFromInt(1).Sub(s.params.StopLossPct.Div(decimal.NewFromInt(100))))
	atrStopPrice := decimal.Min(ind.ATRStopPrice, stopLossPrice)

	s.positions[symbol] = &position{
		entryPrice:      price,
		quantity:        qty,
		peakPrice:       price,
		atrStopPrice:    atrStopPrice,
		takeProfitPrice: ind.TakeProfitPrice,
	}

	s.logger.Debug("entry signal",
		zap.String("symbol", symbol),
		zap.String("price", price.String()),
		zap.String("quantity", qty.String()),
		zap.String("atr_stop_price", atrStopPrice.String()),
		zap.String("take_profit_price", ind.TakeProfitPrice.String()),
		zap.String("regime", string(regime)),
	)

	return &Signal{
		Symbol:      symbol,
		Side:        types.OrderSideBuy,
		Quantity:    qty,
		Reason:      "dip_buy_signal",
		GeneratedAt: now,
	}
}

func (s *MetricsDrivenStrategy) evaluateExit(symbol string, price decimal.Decimal, pos *position, now time.Time) *Signal {
	if price.GreaterThan(pos.peakPrice) {
		pos.peakPrice = price
	}
	trailingStop := pos.peakPrice.Mul(decimal.NewFromInt(1).Sub(s.params.TrailingStopPct.Div(decimal.NewFromInt(100))))

	var reason string
	switch {
	case price.LessThanOrEqual(pos.atrStopPrice):
		reason = "atr_stop"
	case price.LessThanOrEqual(trailingStop):
		reason = "trailing_stop"
	case price.GreaterThanOrEqual(pos.takeProfitPrice):
		reason = "take_profit"
	default:
		return nil
	}

	qty := pos.quantity
	delete(s.positions, symbol)

	s.logger.Debug("exit signal",
		zap.String("symbol", symbol),
		zap.String("price", price.String()),
		zap.String("reason", reason),
	)

	return &Signal{
		Symbol:      symbol,
		Side:        types.OrderSideSell,
		Quantity:    qty,
		Reason:      reason,
		GeneratedAt: now,
	}
}

func (s *MetricsDrivenStrategy) regimeAllowed(regime types.Regime) bool {
	for _, r := range s.params.AllowedRegimes {
		if r == regime {
			return true
		}
	}
	return false
}
