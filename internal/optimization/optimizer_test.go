package optimization_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/optimization"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

// fakeRunner scores a candidate purely from its StopLossPct so mutation
// toward a known target is easy to assert on, and records one synthetic
// trade per symbol so symbol trimming has something to rank.
type fakeRunner struct {
	target decimal.Decimal
	calls  int
}

func (f *fakeRunner) Run(_ context.Context, input *types.BacktestInput) (*types.BacktestReport, error) {
	f.calls++

	diff := input.ParameterOverrides.StopLossPct.Sub(f.target).Abs()
	diffF, _ := diff.Float64()
	sharpe := decimal.NewFromFloat(2.0 - diffF)

	trades := make([]*types.Trade, 0, len(input.Symbols))
	for i, s := range input.Symbols {
		pnl := decimal.NewFromInt(int64(len(input.Symbols) - i))
		trades = append(trades, &types.Trade{
			ID:          s + "-1",
			Symbol:      s,
			RealizedPnL: &pnl,
		})
	}

	return &types.BacktestReport{
		Metrics: types.PerformanceMetrics{
			SharpeRatio: sharpe,
			TotalReturn: decimal.NewFromFloat(5),
			WinRate:     decimal.NewFromFloat(60),
			MaxDrawdown: decimal.NewFromFloat(8),
			TotalTrades: 20,
		},
		Trades: trades,
		Diagnostics: types.DiagnosticsReport{
			BlockedReasons: map[string]int{},
			ExitReasons:    map[string]int{},
			Parameters:     map[string]decimal.Decimal{},
		},
	}, nil
}

func baseInput() types.BacktestInput {
	params := types.DefaultStrategyParams()
	return types.BacktestInput{
		StrategyID:         "metrics_driven",
		Start:              time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		End:                time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		InitialCapital:     decimal.NewFromInt(10000),
		Symbols:            []string{"AAPL", "MSFT", "GOOG", "AMZN"},
		ParameterOverrides: params,
		MaxHoldDays:        30,
		SlippageBps:        decimal.NewFromInt(5),
	}
}

func TestOptimizerRunReturnsBestScoringCandidate(t *testing.T) {
	runner := &fakeRunner{target: decimal.NewFromFloat(3.0)}
	opt := optimization.NewOptimizer(zap.NewNop(), runner, rand.New(rand.NewSource(1)))

	cfg := types.OptimizerConfig{Iterations: 15, Objective: types.ObjectiveBalanced, MinTrades: 5}
	result, err := opt.Run(context.Background(), baseInput(), cfg, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.Candidates) != 15 {
		t.Fatalf("expected 15 candidates, got %d", len(result.Candidates))
	}
	if result.BestScore < result.Candidates[0].Score {
		t.Fatal("expected BestScore to be the maximum among candidates")
	}
}

func TestOptimizerRunReturnsNonEmptyTrimmedSymbols(t *testing.T) {
	runner := &fakeRunner{target: types.DefaultStrategyParams().StopLossPct}
	opt := optimization.NewOptimizer(zap.NewNop(), runner, rand.New(rand.NewSource(2)))

	cfg := types.OptimizerConfig{Iterations: 3, Objective: types.ObjectiveBalanced, MinTrades: 5}
	result, err := opt.Run(context.Background(), baseInput(), cfg, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.TrimmedSymbols) == 0 {
		t.Fatal("expected a non-empty trimmed symbol set")
	}
}

func TestOptimizerRunHonorsCancellation(t *testing.T) {
	runner := &fakeRunner{target: decimal.NewFromFloat(3.0)}
	opt := optimization.NewOptimizer(zap.NewNop(), runner, rand.New(rand.NewSource(3)))

	calls := 0
	cancel := func() bool {
		calls++
		return calls > 1
	}

	cfg := types.OptimizerConfig{Iterations: 10, Objective: types.ObjectiveBalanced, MinTrades: 5}
	_, err := opt.Run(context.Background(), baseInput(), cfg, cancel)
	if err == nil {
		t.Fatal("expected an error when cancel triggers mid-search")
	}
}

func TestOptimizerRunStrictMinTradesPenalizesShortfall(t *testing.T) {
	runner := &fakeRunner{target: decimal.NewFromFloat(3.0)}
	opt := optimization.NewOptimizer(zap.NewNop(), runner, rand.New(rand.NewSource(4)))

	cfg := types.OptimizerConfig{Iterations: 1, Objective: types.ObjectiveBalanced, MinTrades: 1000, StrictMinTrades: true}
	result, err := opt.Run(context.Background(), baseInput(), cfg, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.BestScore >= 0 {
		t.Fatalf("expected a heavily penalized score, got %f", result.BestScore)
	}
}

func TestOptimizerRunSkipsWalkForwardOnShortRange(t *testing.T) {
	runner := &fakeRunner{target: decimal.NewFromFloat(3.0)}
	opt := optimization.NewOptimizer(zap.NewNop(), runner, rand.New(rand.NewSource(5)))

	input := baseInput()
	input.Start = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	input.End = time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)

	cfg := types.OptimizerConfig{Iterations: 2, Objective: types.ObjectiveBalanced, MinTrades: 5, WalkForwardFolds: 3}
	result, err := opt.Run(context.Background(), input, cfg, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.WalkForward != nil {
		t.Fatal("expected walk-forward to be skipped for a range under 120 days")
	}
}
