// Package sizing provides the shared risk-based position sizing rule used
// by both the deterministic backtester and the live strategy runner.
package sizing

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PositionSizer applies the risk-based sizing rule against a given
// account state. It holds no mutable state of its own; one instance can
// be shared across symbols and goroutines.
type PositionSizer struct {
	logger *zap.Logger
}

// NewPositionSizer creates a position sizer.
func NewPositionSizer(logger *zap.Logger) *PositionSizer {
	return &PositionSizer{logger: logger.Named("sizing")}
}

var (
	minRiskPct = decimal.NewFromFloat(0.1)
	maxRiskPct = decimal.NewFromFloat(5)
	minSLPct   = decimal.NewFromFloat(0.5)
	maxSLPct   = decimal.NewFromFloat(10)
	floorNotional = decimal.NewFromInt(25)
	tenPct        = decimal.NewFromFloat(0.1)
)

// Calculate returns the target notional for a new entry:
//
//	min(cap, equity·risk_pct/sl_pct, 0.1·equity, cash)
//
// floored at $25. riskPct and slPct are clamped to their allowed ranges
// before use.
func (ps *PositionSizer) Calculate(equity, cap, cash, riskPct, slPct decimal.Decimal) decimal.Decimal {
	riskPct = clamp(riskPct, minRiskPct, maxRiskPct)
	slPct = clamp(slPct, minSLPct, maxSLPct)

	riskBased := equity.Mul(riskPct).Div(slPct)
	portfolioCap := equity.Mul(tenPct)

	size := decimal.Min(cap, riskBased, portfolioCap, cash)
	if size.LessThan(floorNotional) {
		return floorNotional
	}
	return size
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
