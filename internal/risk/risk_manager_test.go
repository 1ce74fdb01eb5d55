package risk_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/risk"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

func newTestManager() *risk.Manager {
	limits := types.DefaultRiskLimits()
	limits.MaxPositionSize = decimal.NewFromInt(10000)
	limits.MaxPortfolioExposure = decimal.NewFromInt(30000)
	limits.MaxSymbolConcentrationPct = decimal.NewFromInt(50)
	limits.MaxOpenPositions = 3
	limits.DailyLossLimit = decimal.NewFromInt(1000)
	limits.MaxConsecutiveLosses = 3
	limits.MaxDrawdownPct = decimal.NewFromInt(20)
	return risk.NewManager(zap.NewNop(), limits)
}

func TestValidateOrderRejectsOversizedOrder(t *testing.T) {
	m := newTestManager()
	err := m.ValidateOrder("AAPL", decimal.NewFromInt(1000), decimal.NewFromInt(100), nil)
	if err == nil {
		t.Fatal("expected an error for an order exceeding max position size")
	}
}

func TestValidateOrderRejectsInvalidSymbol(t *testing.T) {
	m := newTestManager()
	err := m.ValidateOrder("", decimal.NewFromInt(10), decimal.NewFromInt(100), nil)
	if err == nil {
		t.Fatal("expected an error for an invalid symbol")
	}
}

func TestValidateOrderRejectsWhenBreakerActive(t *testing.T) {
	m := newTestManager()
	m.ActivateCircuitBreaker("manual halt")
	err := m.ValidateOrder("AAPL", decimal.NewFromInt(10), decimal.NewFromInt(100), nil)
	if err == nil {
		t.Fatal("expected orders to be rejected while the breaker is active")
	}
}

func TestValidateOrderRejectsConcentrationBreach(t *testing.T) {
	m := newTestManager()
	exposures := []risk.Exposure{{Symbol: "MSFT", MarketValue: decimal.NewFromInt(9000)}}
	// Adding AAPL at this size pushes AAPL's share of the portfolio over 50%.
	err := m.ValidateOrder("AAPL", decimal.NewFromInt(100), decimal.NewFromInt(100), exposures)
	if err == nil {
		t.Fatal("expected a symbol concentration violation")
	}
}

func TestValidateOrderRejectsMaxOpenPositions(t *testing.T) {
	m := newTestManager()
	exposures := []risk.Exposure{
		{Symbol: "AAA", MarketValue: decimal.NewFromInt(100)},
		{Symbol: "BBB", MarketValue: decimal.NewFromInt(100)},
		{Symbol: "CCC", MarketValue: decimal.NewFromInt(100)},
	}
	err := m.ValidateOrder("DDD", decimal.NewFromInt(1), decimal.NewFromInt(10), exposures)
	if err == nil {
		t.Fatal("expected a max open positions violation for a new symbol")
	}
}

func TestRecordTradeResultTripsBreakerOnConsecutiveLosses(t *testing.T) {
	m := newTestManager()
	m.RecordTradeResult(decimal.NewFromInt(-10))
	m.RecordTradeResult(decimal.NewFromInt(-10))
	if m.GetMetrics().BreakerActive {
		t.Fatal("breaker should not trip before the configured consecutive loss limit")
	}
	m.RecordTradeResult(decimal.NewFromInt(-10))
	if !m.GetMetrics().BreakerActive {
		t.Fatal("expected the breaker to trip after three consecutive losses")
	}
}

func TestRecordTradeResultResetsStreakOnWin(t *testing.T) {
	m := newTestManager()
	m.RecordTradeResult(decimal.NewFromInt(-10))
	m.RecordTradeResult(decimal.NewFromInt(-10))
	m.RecordTradeResult(decimal.NewFromInt(50))
	if m.GetMetrics().ConsecutiveLosses != 0 {
		t.Fatal("a winning trade should reset the consecutive loss counter")
	}
}

func TestUpdateEquityTripsBreakerOnDrawdown(t *testing.T) {
	m := newTestManager()
	m.UpdateEquity(decimal.NewFromInt(100000))
	m.UpdateEquity(decimal.NewFromInt(75000)) // 25% drawdown, over the 20% limit
	if !m.GetMetrics().BreakerActive {
		t.Fatal("expected the drawdown breaker to trip")
	}
}

func TestUpdateDailyPnLTripsBreakerOnDailyLossLimit(t *testing.T) {
	m := newTestManager()
	m.UpdateDailyPnL(decimal.NewFromInt(-1500))
	if !m.GetMetrics().BreakerActive {
		t.Fatal("expected the breaker to trip once the daily loss limit is crossed")
	}
}

func TestDeactivateCircuitBreakerClearsState(t *testing.T) {
	m := newTestManager()
	m.ActivateCircuitBreaker("test halt")
	m.DeactivateCircuitBreaker()
	metrics := m.GetMetrics()
	if metrics.BreakerActive || metrics.BreakerReason != "" {
		t.Fatal("expected breaker state to be fully cleared")
	}
	if err := m.ValidateOrder("AAPL", decimal.NewFromInt(1), decimal.NewFromInt(100), nil); err != nil {
		t.Fatalf("expected orders to be accepted after clearing the breaker, got: %v", err)
	}
}

func TestDailyPnLResetsOnNewDay(t *testing.T) {
	m := newTestManager()
	day1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return day1 })
	m.UpdateDailyPnL(decimal.NewFromInt(-500))
	if m.GetMetrics().DailyPnL.IsZero() {
		t.Fatal("expected daily P&L to reflect the recorded loss")
	}

	day2 := day1.Add(25 * time.Hour)
	m.SetClock(func() time.Time { return day2 })
	if !m.GetMetrics().DailyPnL.IsZero() {
		t.Fatal("expected daily P&L to reset after crossing into a new day")
	}
}
