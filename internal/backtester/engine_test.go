package backtester_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/backtester"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

// fakeLoader serves a pre-built bar series regardless of the requested
// date range, trimmed to [start, end].
type fakeLoader struct {
	bars map[string][]*types.OHLCV
}

func (f *fakeLoader) LoadOHLCV(_ context.Context, symbol string, start, end time.Time) ([]*types.OHLCV, error) {
	var out []*types.OHLCV
	for _, b := range f.bars[symbol] {
		if b.Timestamp.Before(start) || b.Timestamp.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// rangeBoundSeries builds a flat, directionless daily series so the
// regime classifier reports range_bound throughout, with a single dip
// inserted partway through to trigger one entry.
func rangeBoundSeries(days int, base float64, dipAt int) []*types.OHLCV {
	bars := make([]*types.OHLCV, 0, days)
	date := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		close := base
		if i == dipAt {
			close = base * 0.85
		}
		bars = append(bars, &types.OHLCV{
			Timestamp: date.AddDate(0, 0, i),
			Open:      decimal.NewFromFloat(close),
			High:      decimal.NewFromFloat(close * 1.01),
			Low:       decimal.NewFromFloat(close * 0.98),
			Close:     decimal.NewFromFloat(close),
			Volume:    decimal.NewFromInt(1_000_000),
		})
	}
	return bars
}

func TestEngineRunProducesTradesAndEquityCurve(t *testing.T) {
	logger := zap.NewNop()

	const totalDays = 420
	const dipAt = 400
	loader := &fakeLoader{
		bars: map[string][]*types.OHLCV{
			"SPY":  rangeBoundSeries(totalDays, 400.0, -1),
			"AAPL": rangeBoundSeries(totalDays, 100.0, dipAt),
		},
	}

	engine := backtester.NewEngine(logger, loader, "SPY")

	params := types.DefaultStrategyParams()
	params.ZScoreEntryThreshold = decimal.NewFromFloat(10) // disable the z-score gate
	params.AllowedRegimes = []types.Regime{types.RegimeRangeBound}

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 330)
	end := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, totalDays-1)

	input := &types.BacktestInput{
		StrategyID:         "metrics_driven",
		Start:              start,
		End:                end,
		InitialCapital:     decimal.NewFromInt(10000),
		Symbols:            []string{"AAPL"},
		ParameterOverrides: params,
		MaxHoldDays:        30,
		SlippageBps:        decimal.NewFromInt(5),
	}

	report, err := engine.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(report.EquityCurve) == 0 {
		t.Fatal("expected a non-empty equity curve")
	}
	if len(report.Trades) == 0 {
		t.Fatal("expected at least one trade from the inserted dip")
	}
	if report.Diagnostics.Parameters["stop_loss_pct"].IsZero() {
		t.Fatal("expected diagnostics to record the parameters used")
	}
}

func TestEngineRunSkipsSymbolsWithoutEnoughWarmup(t *testing.T) {
	logger := zap.NewNop()

	loader := &fakeLoader{
		bars: map[string][]*types.OHLCV{
			"SPY":  rangeBoundSeries(100, 400.0, -1),
			"AAPL": rangeBoundSeries(100, 100.0, -1),
		},
	}
	engine := backtester.NewEngine(logger, loader, "SPY")

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 90)
	end := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 99)

	input := &types.BacktestInput{
		StrategyID:         "metrics_driven",
		Start:              start,
		End:                end,
		InitialCapital:     decimal.NewFromInt(10000),
		Symbols:            []string{"AAPL"},
		ParameterOverrides: types.DefaultStrategyParams(),
		MaxHoldDays:        30,
		SlippageBps:        decimal.NewFromInt(5),
	}

	report, err := engine.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(report.Trades) != 0 {
		t.Fatalf("expected no trades when warmup is insufficient, got %d", len(report.Trades))
	}
	if report.Diagnostics.BlockedReasons["insufficient_warmup"] == 0 {
		t.Fatal("expected insufficient_warmup to be recorded in diagnostics")
	}
}
