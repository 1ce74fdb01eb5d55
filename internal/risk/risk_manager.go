// Package risk implements the pre-trade risk gate and circuit breaker.
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/metrics"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/utils"
)

// Exposure is one symbol's current market value, used to evaluate
// portfolio and concentration limits without requiring the caller to
// hand over full position objects.
type Exposure struct {
	Symbol      string
	MarketValue decimal.Decimal
}

// ExposureFromPositions derives per-symbol market value from open
// positions, falling back to cost basis when no live price is known.
func ExposureFromPositions(positions []*types.Position, prices map[string]decimal.Decimal) []Exposure {
	out := make([]Exposure, 0, len(positions))
	for _, p := range positions {
		if !p.IsOpen {
			continue
		}
		mv := p.CostBasis
		if px, ok := prices[p.Symbol]; ok {
			mv = p.Quantity.Mul(px)
		}
		if mv.IsNegative() {
			mv = decimal.Zero
		}
		out = append(out, Exposure{Symbol: p.Symbol, MarketValue: mv})
	}
	return out
}

// Manager gates every order against the configured limits and trips a
// circuit breaker that halts all trading until manually cleared.
//
// Checks run in a fixed order and return on the first violation: unlike
// an accumulate-all-violations checker, a caller only ever needs the one
// reason an order was rejected.
type Manager struct {
	logger *zap.Logger
	mu     sync.Mutex

	limits types.RiskLimits
	now    func() time.Time

	dailyPnL      decimal.Decimal
	dailyResetAt  time.Time
	breakerActive bool
	breakerReason string
	consecLosses  int
	totalWins     int
	totalLosses   int
	peakEquity    decimal.Decimal
	currentEquity decimal.Decimal
	currentDDPct  decimal.Decimal
}

// NewManager builds a risk manager with clamped limits, matching the
// floors and ceilings of the reference implementation.
func NewManager(logger *zap.Logger, limits types.RiskLimits) *Manager {
	now := time.Now()
	return &Manager{
		logger:       logger.Named("risk"),
		limits:       clampLimits(limits),
		now:          time.Now,
		dailyResetAt: now.Truncate(24 * time.Hour),
	}
}

// SetClock overrides the time source; tests use this for deterministic
// daily-reset behavior. If the new clock's day is earlier than the current
// daily anchor, the anchor moves back to it so later days still reset.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	if d := now().Truncate(24 * time.Hour); d.Before(m.dailyResetAt) {
		m.dailyResetAt = d
	}
}

func clampLimits(l types.RiskLimits) types.RiskLimits {
	one := decimal.NewFromInt(1)
	if l.MaxPositionSize.LessThan(one) {
		l.MaxPositionSize = one
	}
	if l.DailyLossLimit.LessThan(one) {
		l.DailyLossLimit = one
	}
	if l.MaxPortfolioExposure.LessThan(one) {
		l.MaxPortfolioExposure = one
	}
	hundred := decimal.NewFromInt(100)
	l.MaxSymbolConcentrationPct = utils.ClampDecimal(l.MaxSymbolConcentrationPct, one, hundred)
	if l.MaxOpenPositions < 1 {
		l.MaxOpenPositions = 1
	}
	if l.MaxConsecutiveLosses < 1 {
		l.MaxConsecutiveLosses = 1
	}
	l.MaxDrawdownPct = utils.ClampDecimal(l.MaxDrawdownPct, one, decimal.NewFromInt(50))
	return l
}

// ValidateOrder checks a candidate order against every risk gate, in
// order, and returns the first violation encountered. A nil error means
// the order may proceed.
func (m *Manager) ValidateOrder(symbol string, quantity, price decimal.Decimal, exposures []Exposure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetDailyIfNeeded()

	if m.breakerActive {
		return fmt.Errorf("circuit breaker is active: %s", m.breakerReason)
	}

	normalized := utils.NormalizeSymbol(symbol)
	if !utils.ValidSymbol(normalized) {
		return fmt.Errorf("invalid symbol format: %q", symbol)
	}
	if quantity.LessThanOrEqual(decimal.Zero) || price.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("quantity and price must be positive")
	}

	orderValue := quantity.Mul(price)
	if orderValue.GreaterThan(m.limits.MaxPositionSize) {
		return fmt.Errorf("order value %s exceeds max position size %s", orderValue, m.limits.MaxPositionSize)
	}

	if m.dailyPnL.LessThan(m.limits.DailyLossLimit.Neg()) {
		return fmt.Errorf("daily loss limit reached (%s)", m.limits.DailyLossLimit)
	}

	byExisting := make(map[string]decimal.Decimal, len(exposures))
	var currentExposure decimal.Decimal
	for _, e := range exposures {
		byExisting[e.Symbol] = e.MarketValue
		currentExposure = currentExposure.Add(e.MarketValue)
	}
	projectedExposure := currentExposure.Add(orderValue)
	if projectedExposure.GreaterThan(m.limits.MaxPortfolioExposure) {
		return fmt.Errorf("portfolio exposure limit exceeded: projected %s > %s", projectedExposure, m.limits.MaxPortfolioExposure)
	}

	_, hasSymbol := byExisting[normalized]
	if !hasSymbol && len(byExisting) >= m.limits.MaxOpenPositions {
		return fmt.Errorf("max open positions reached (%d)", m.limits.MaxOpenPositions)
	}

	if currentExposure.GreaterThan(decimal.Zero) && projectedExposure.GreaterThan(decimal.Zero) {
		projectedSymbolValue := byExisting[normalized].Add(orderValue)
		projectedConcentrationPct := projectedSymbolValue.Div(projectedExposure).Mul(decimal.NewFromInt(100))
		if projectedConcentrationPct.GreaterThan(m.limits.MaxSymbolConcentrationPct) {
			return fmt.Errorf("symbol concentration limit exceeded: projected %s%% > %s%%",
				projectedConcentrationPct.StringFixed(2), m.limits.MaxSymbolConcentrationPct.StringFixed(2))
		}
	}

	return nil
}

// RecordTradeResult updates consecutive-loss tracking; three straight
// losers (by default) trips the breaker.
func (m *Manager) RecordTradeResult(pnl decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pnl.LessThan(decimal.Zero) {
		m.consecLosses++
		m.totalLosses++
		if m.consecLosses >= m.limits.MaxConsecutiveLosses {
			m.activateBreakerLocked(fmt.Sprintf("consecutive loss limit reached (%d losses in a row, limit=%d)",
				m.consecLosses, m.limits.MaxConsecutiveLosses))
		}
		return
	}
	m.consecLosses = 0
	if pnl.GreaterThan(decimal.Zero) {
		m.totalWins++
	}
}

// UpdateEquity feeds current account equity for drawdown tracking,
// tripping the breaker once the drop from peak equity exceeds the
// configured threshold.
func (m *Manager) UpdateEquity(equity decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if equity.LessThanOrEqual(decimal.Zero) {
		return
	}
	m.currentEquity = equity
	if equity.GreaterThan(m.peakEquity) {
		m.peakEquity = equity
	}
	if m.peakEquity.GreaterThan(decimal.Zero) {
		m.currentDDPct = m.peakEquity.Sub(equity).Div(m.peakEquity).Mul(decimal.NewFromInt(100))
	} else {
		m.currentDDPct = decimal.Zero
	}
	if m.currentDDPct.GreaterThanOrEqual(m.limits.MaxDrawdownPct) {
		m.activateBreakerLocked(fmt.Sprintf("drawdown kill switch triggered: %s%% drawdown from peak (limit=%s%%)",
			m.currentDDPct.StringFixed(1), m.limits.MaxDrawdownPct.StringFixed(1)))
	}
}

// UpdateDailyPnL accumulates realized P&L for the day and trips the
// breaker if it crosses the daily loss limit.
func (m *Manager) UpdateDailyPnL(pnl decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetDailyIfNeeded()

	m.dailyPnL = m.dailyPnL.Add(pnl)
	if m.dailyPnL.LessThan(m.limits.DailyLossLimit.Neg()) {
		m.activateBreakerLocked("daily loss limit exceeded")
	}
}

// ActivateCircuitBreaker halts all trading until Deactivate is called.
func (m *Manager) ActivateCircuitBreaker(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activateBreakerLocked(reason)
}

func (m *Manager) activateBreakerLocked(reason string) {
	m.breakerActive = true
	m.breakerReason = reason
	metrics.RiskBreakerTrips.WithLabelValues(reason).Inc()
	m.logger.Error("circuit breaker activated", zap.String("reason", reason))
}

// DeactivateCircuitBreaker clears the breaker and resets the
// consecutive-loss counter.
func (m *Manager) DeactivateCircuitBreaker() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breakerActive = false
	m.breakerReason = ""
	m.consecLosses = 0
	m.logger.Info("circuit breaker deactivated")
}

// Metrics is a snapshot of current risk state for observability.
type Metrics struct {
	DailyPnL           decimal.Decimal
	DailyLossLimit     decimal.Decimal
	DailyLossRemaining decimal.Decimal
	BreakerActive      bool
	BreakerReason      string
	ConsecutiveLosses  int
	MaxConsecutiveLoss int
	TotalWins          int
	TotalLosses        int
	PeakEquity         decimal.Decimal
	CurrentEquity      decimal.Decimal
	CurrentDrawdownPct decimal.Decimal
	MaxDrawdownPct     decimal.Decimal
}

// GetMetrics returns a point-in-time view of the risk manager's state.
func (m *Manager) GetMetrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetDailyIfNeeded()

	remaining := m.limits.DailyLossLimit.Add(m.dailyPnL)
	if remaining.LessThan(decimal.Zero) {
		remaining = decimal.Zero
	}
	return Metrics{
		DailyPnL:           m.dailyPnL,
		DailyLossLimit:     m.limits.DailyLossLimit,
		DailyLossRemaining: remaining,
		BreakerActive:      m.breakerActive,
		BreakerReason:      m.breakerReason,
		ConsecutiveLosses:  m.consecLosses,
		MaxConsecutiveLoss: m.limits.MaxConsecutiveLosses,
		TotalWins:          m.totalWins,
		TotalLosses:        m.totalLosses,
		PeakEquity:         m.peakEquity,
		CurrentEquity:      m.currentEquity,
		CurrentDrawdownPct: m.currentDDPct,
		MaxDrawdownPct:     m.limits.MaxDrawdownPct,
	}
}

func (m *Manager) resetDailyIfNeeded() {
	today := m.now().Truncate(24 * time.Hour)
	if today.After(m.dailyResetAt) {
		m.dailyPnL = decimal.Zero
		m.dailyResetAt = today
	}
}
