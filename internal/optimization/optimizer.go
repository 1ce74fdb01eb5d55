// Package optimization searches the tunable strategy parameter space by
// Gaussian local search, trims the traded universe to its best-performing
// subset, and optionally validates the winner with walk-forward folds.
package optimization

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/apperrors"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

// BacktestRunner runs one deterministic backtest; internal/backtester.Engine
// satisfies this.
type BacktestRunner interface {
	Run(ctx context.Context, input *types.BacktestInput) (*types.BacktestReport, error)
}

var trimFractions = []float64{1.0, 0.85, 0.70, 0.55, 0.40}

// Candidate is one evaluated parameter set.
type Candidate struct {
	Params types.StrategyParams
	Score  float64
	Report *types.BacktestReport
}

// FoldResult is one walk-forward test window's outcome.
type FoldResult struct {
	FoldNumber int
	TrainStart time.Time
	TrainEnd   time.Time
	TestStart  time.Time
	TestEnd    time.Time
	Score      float64
	Metrics    types.PerformanceMetrics
}

// WalkForwardReport summarizes a walk-forward validation pass.
type WalkForwardReport struct {
	Folds        []FoldResult
	PassRate     decimal.Decimal
	AverageScore decimal.Decimal
	WorstFold    *FoldResult
}

// Result is the full output of one optimizer run.
type Result struct {
	BestParams     types.StrategyParams
	BestScore      float64
	BestReport     *types.BacktestReport
	Candidates     []Candidate
	TrimmedSymbols []string
	WalkForward    *WalkForwardReport
}

// Optimizer runs the parameter search and symbol-trimming passes.
type Optimizer struct {
	logger *zap.Logger
	runner BacktestRunner
	rng    *rand.Rand
}

// NewOptimizer builds an optimizer bound to a backtest runner. rng may be
// nil to use a time-seeded source.
func NewOptimizer(logger *zap.Logger, runner BacktestRunner, rng *rand.Rand) *Optimizer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Optimizer{logger: logger.Named("optimizer"), runner: runner, rng: rng}
}

// Run searches parameters around base.ParameterOverrides, trims the symbol
// universe, and optionally validates with walk-forward folds. cancel is
// polled between candidates, trimmed subsets, and folds; when it returns
// true the run aborts with a CancellationError.
func (o *Optimizer) Run(ctx context.Context, base types.BacktestInput, cfg types.OptimizerConfig, cancel func() bool) (*Result, error) {
	candidates, err := o.searchParameters(ctx, base, cfg, cancel)
	if err != nil {
		return nil, err
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}

	trimmedSymbols, trimmedReport, trimmedScore, err := o.trimUniverse(ctx, base, cfg, best, cancel)
	if err != nil {
		return nil, err
	}
	if trimmedScore > best.Score {
		best = Candidate{Params: best.Params, Score: trimmedScore, Report: trimmedReport}
	}

	result := &Result{
		BestParams:     best.Params,
		BestScore:      best.Score,
		BestReport:     best.Report,
		Candidates:     candidates,
		TrimmedSymbols: trimmedSymbols,
	}

	if cfg.WalkForwardFolds > 0 {
		wf, err := o.walkForward(ctx, base, cfg, best.Params, trimmedSymbols, cancel)
		if err != nil {
			return nil, err
		}
		result.WalkForward = wf
	}

	return result, nil
}

func (o *Optimizer) searchParameters(ctx context.Context, base types.BacktestInput, cfg types.OptimizerConfig, cancel func() bool) ([]Candidate, error) {
	iterations := cfg.Iterations
	if iterations < 1 {
		iterations = 1
	}

	candidates := make([]Candidate, 0, iterations)
	for i := 0; i < iterations; i++ {
		if cancel != nil && cancel() {
			return nil, apperrors.NewCancellationError("optimizer.search_parameters")
		}

		params := base.ParameterOverrides
		if i > 0 {
			params = mutate(base.ParameterOverrides, o.rng)
		}

		input := base
		input.ParameterOverrides = params
		report, err := o.runner.Run(ctx, &input)
		if err != nil {
			return nil, err
		}

		score := scoreReport(cfg, report)
		candidates = append(candidates, Candidate{Params: params, Score: score, Report: report})
	}

	return candidates, nil
}

func (o *Optimizer) trimUniverse(ctx context.Context, base types.BacktestInput, cfg types.OptimizerConfig, winner Candidate, cancel func() bool) ([]string, *types.BacktestReport, float64, error) {
	ranked := rankSymbolsByPerformance(winner.Report.Trades, base.Symbols)

	bestSymbols := base.Symbols
	bestReport := winner.Report
	bestScore := winner.Score

	for _, frac := range trimFractions {
		if frac >= 1.0 {
			continue // already have the full-universe result from the winning candidate
		}
		if cancel != nil && cancel() {
			return nil, nil, 0, apperrors.NewCancellationError("optimizer.trim_universe")
		}

		n := int(float64(len(ranked))*frac + 0.5)
		if n < 1 {
			n = 1
		}
		subset := ranked[:n]

		input := base
		input.ParameterOverrides = winner.Params
		input.Symbols = subset
		report, err := o.runner.Run(ctx, &input)
		if err != nil {
			return nil, nil, 0, err
		}

		score := scoreReport(cfg, report)
		if score > bestScore {
			bestScore = score
			bestSymbols = subset
			bestReport = report
		}
	}

	return bestSymbols, bestReport, bestScore, nil
}

func (o *Optimizer) walkForward(ctx context.Context, base types.BacktestInput, cfg types.OptimizerConfig, params types.StrategyParams, symbols []string, cancel func() bool) (*WalkForwardReport, error) {
	totalDays := int(base.End.Sub(base.Start).Hours() / 24)
	if totalDays < 120 {
		o.logger.Warn("skipping walk-forward: range shorter than 120 days", zap.Int("total_days", totalDays))
		return nil, nil
	}

	windowDays := totalDays / (cfg.WalkForwardFolds + 1)
	if windowDays < 20 {
		o.logger.Warn("skipping walk-forward: test window shorter than 20 days", zap.Int("window_days", windowDays))
		return nil, nil
	}

	folds := make([]FoldResult, 0, cfg.WalkForwardFolds)
	var scoreSum decimal.Decimal
	var passCount int
	var worst *FoldResult

	for fold := 1; fold <= cfg.WalkForwardFolds; fold++ {
		if cancel != nil && cancel() {
			return nil, apperrors.NewCancellationError("optimizer.walk_forward")
		}

		trainEnd := base.Start.AddDate(0, 0, windowDays*fold)
		testStart := trainEnd
		testEnd := testStart.AddDate(0, 0, windowDays)
		if testEnd.After(base.End) {
			testEnd = base.End
		}
		if testEnd.Sub(testStart).Hours()/24 < 20 {
			continue
		}

		input := base
		input.ParameterOverrides = params
		input.Symbols = symbols
		input.Start = testStart
		input.End = testEnd

		report, err := o.runner.Run(ctx, &input)
		if err != nil {
			return nil, err
		}

		score := scoreReport(cfg, report)
		scoreDec := decimal.NewFromFloat(score)
		scoreSum = scoreSum.Add(scoreDec)
		if score > 0 {
			passCount++
		}

		result := FoldResult{
			FoldNumber: fold,
			TrainStart: base.Start,
			TrainEnd:   trainEnd,
			TestStart:  testStart,
			TestEnd:    testEnd,
			Score:      score,
			Metrics:    report.Metrics,
		}
		folds = append(folds, result)
		if worst == nil || result.Score < worst.Score {
			w := result
			worst = &w
		}
	}

	if len(folds) == 0 {
		return nil, nil
	}

	return &WalkForwardReport{
		Folds:        folds,
		PassRate:     decimal.NewFromInt(int64(passCount)).Div(decimal.NewFromInt(int64(len(folds)))),
		AverageScore: scoreSum.Div(decimal.NewFromInt(int64(len(folds)))),
		WorstFold:    worst,
	}, nil
}

// scoreReport applies the configured objective formula with a shortfall
// penalty against the run's total trade count.
func scoreReport(cfg types.OptimizerConfig, report *types.BacktestReport) float64 {
	m := report.Metrics
	trades := m.TotalTrades

	if cfg.StrictMinTrades && trades < cfg.MinTrades {
		shortfall := cfg.MinTrades - trades
		return -1_000_000 - 1000*float64(shortfall)
	}

	sharpe, _ := m.SharpeRatio.Float64()
	ret, _ := m.TotalReturn.Float64()
	winRate, _ := m.WinRate.Float64()
	drawdown, _ := m.MaxDrawdown.Float64()

	var raw float64
	switch cfg.Objective {
	case types.ObjectiveSharpe:
		raw = 110*sharpe + 1.1*ret + 0.12*winRate - 1.0*drawdown
	case types.ObjectiveReturn:
		raw = 3.1*ret + 30*sharpe + 0.08*winRate - 0.7*drawdown
	default: // balanced
		raw = 80*sharpe + 1.8*ret + 0.14*winRate - 0.9*drawdown
	}

	if trades < cfg.MinTrades {
		shortfall := float64(cfg.MinTrades - trades)
		raw -= 0.35 * shortfall
	}

	// Proxy for risk-breaker events: cash-insufficiency rejections reflect
	// the strategy over-committing capital under the candidate's sizing.
	if rejected := report.Diagnostics.BlockedReasons["insufficient_cash"]; rejected > 0 {
		raw -= 0.02 * float64(rejected)
	}

	return raw
}

type symbolPerf struct {
	symbol string
	pnl    decimal.Decimal
	wins   int
	total  int
}

// rankSymbolsByPerformance orders symbols by (pnl, win rate, trade count),
// each descending; symbols with no closed trades sort last in their
// original order.
func rankSymbolsByPerformance(trades []*types.Trade, universe []string) []string {
	stats := make(map[string]*symbolPerf, len(universe))
	for _, s := range universe {
		stats[s] = &symbolPerf{symbol: s}
	}
	for _, t := range trades {
		if t.RealizedPnL == nil {
			continue
		}
		s, ok := stats[t.Symbol]
		if !ok {
			continue
		}
		s.pnl = s.pnl.Add(*t.RealizedPnL)
		s.total++
		if t.RealizedPnL.GreaterThan(decimal.Zero) {
			s.wins++
		}
	}

	ranked := make([]*symbolPerf, 0, len(stats))
	seen := make(map[string]bool, len(stats))
	for _, sym := range universe {
		if seen[sym] {
			continue
		}
		seen[sym] = true
		ranked = append(ranked, stats[sym])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if (a.total == 0) != (b.total == 0) {
			return b.total == 0
		}
		if !a.pnl.Equal(b.pnl) {
			return a.pnl.GreaterThan(b.pnl)
		}
		aWin, bWin := winRate(a), winRate(b)
		if aWin != bWin {
			return aWin > bWin
		}
		return a.total > b.total
	})

	out := make([]string, len(ranked))
	for i, s := range ranked {
		out[i] = s.symbol
	}
	return out
}

func winRate(s *symbolPerf) float64 {
	if s.total == 0 {
		return 0
	}
	return float64(s.wins) / float64(s.total)
}
