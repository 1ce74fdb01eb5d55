// Package marketcache provides a disk-backed OHLCV cache in front of the
// broker's historical bar endpoint, plus a data quality gate so a stale
// or malformed cache entry doesn't silently corrupt a backtest.
package marketcache

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

// Validator checks historical bar integrity: extreme prices, volume
// anomalies, and OHLC consistency. It does not look for missing sessions.
type Validator struct {
	logger *zap.Logger

	ExpectedTradingDaysPerYear int
	MaxIntradayMove            float64
	MaxGapMove                 float64
	MinVolume                  float64
	MaxVolumeMultiple          float64
}

// Issue is one data quality problem found in a bar series.
type Issue struct {
	Type      string
	Severity  string // "critical", "high", "medium", "low"
	Timestamp time.Time
	Symbol    string
	Message   string
	BarIndex  int
}

// Report summarizes a quality assessment for one symbol's bar series.
type Report struct {
	Symbol       string
	TotalBars    int
	Issues       []Issue
	QualityScore int
	IsUsable     bool
	StartDate    time.Time
	EndDate      time.Time
}

// NewValidator builds a validator tuned for equity/ETF daily bars:
// ~252 trading days/year, 20% intraday circuit-breaker ceiling, 15% gap
// ceiling.
func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{
		logger:                     logger,
		ExpectedTradingDaysPerYear: 252,
		MaxIntradayMove:            0.20,
		MaxGapMove:                 0.15,
		MinVolume:                  1000,
		MaxVolumeMultiple:          10.0,
	}
}

// Validate runs every quality check and scores the series 0-100.
func (v *Validator) Validate(bars []*types.OHLCV, symbol string) *Report {
	if len(bars) == 0 {
		return &Report{
			Symbol:    symbol,
			Issues:    []Issue{{Type: "no_data", Severity: "critical", Message: "no bars provided"}},
			IsUsable:  false,
		}
	}

	var issues []Issue
	issues = append(issues, v.checkPriceAnomalies(bars, symbol)...)
	issues = append(issues, v.checkVolumeAnomalies(bars, symbol)...)
	issues = append(issues, v.checkOHLCConsistency(bars, symbol)...)
	issues = append(issues, v.checkDuplicatesAndOrder(bars, symbol)...)

	score := v.calculateQualityScore(len(bars), issues)
	return &Report{
		Symbol:       symbol,
		TotalBars:    len(bars),
		Issues:       issues,
		QualityScore: score,
		IsUsable:     score >= 70 && !v.hasCriticalIssues(issues),
		StartDate:    bars[0].Timestamp,
		EndDate:      bars[len(bars)-1].Timestamp,
	}
}

func (v *Validator) checkPriceAnomalies(bars []*types.OHLCV, symbol string) []Issue {
	var issues []Issue
	for i, bar := range bars {
		if bar.Open.LessThanOrEqual(decimal.Zero) || bar.High.LessThanOrEqual(decimal.Zero) ||
			bar.Low.LessThanOrEqual(decimal.Zero) || bar.Close.LessThanOrEqual(decimal.Zero) {
			issues = append(issues, Issue{Type: "non_positive_price", Severity: "critical", Timestamp: bar.Timestamp, Symbol: symbol, BarIndex: i})
			continue
		}
		if !bar.Low.IsZero() {
			intraday, _ := bar.High.Sub(bar.Low).Div(bar.Low).Float64()
			if intraday > v.MaxIntradayMove {
				issues = append(issues, Issue{Type: "extreme_intraday_move", Severity: "high", Timestamp: bar.Timestamp, Symbol: symbol, BarIndex: i})
			}
		}
		if i > 0 && !bars[i-1].Close.IsZero() {
			gap, _ := bar.Open.Sub(bars[i-1].Close).Div(bars[i-1].Close).Abs().Float64()
			if gap > v.MaxGapMove {
				issues = append(issues, Issue{Type: "large_gap", Severity: "medium", Timestamp: bar.Timestamp, Symbol: symbol, BarIndex: i})
			}
		}
	}
	return issues
}

func (v *Validator) checkVolumeAnomalies(bars []*types.OHLCV, symbol string) []Issue {
	var issues []Issue
	var total decimal.Decimal
	nonZero := 0
	for _, bar := range bars {
		if bar.Volume.GreaterThan(decimal.Zero) {
			total = total.Add(bar.Volume)
			nonZero++
		}
	}
	var avg float64
	if nonZero > 0 {
		avg, _ = total.Div(decimal.NewFromInt(int64(nonZero))).Float64()
	}
	for i, bar := range bars {
		vol, _ := bar.Volume.Float64()
		if bar.Volume.IsZero() {
			issues = append(issues, Issue{Type: "zero_volume", Severity: "low", Timestamp: bar.Timestamp, Symbol: symbol, BarIndex: i})
			continue
		}
		if vol < v.MinVolume {
			issues = append(issues, Issue{Type: "low_volume", Severity: "low", Timestamp: bar.Timestamp, Symbol: symbol, BarIndex: i})
		}
		if avg > 0 && vol > avg*v.MaxVolumeMultiple {
			issues = append(issues, Issue{Type: "volume_spike", Severity: "low", Timestamp: bar.Timestamp, Symbol: symbol, BarIndex: i})
		}
	}
	return issues
}

func (v *Validator) checkOHLCConsistency(bars []*types.OHLCV, symbol string) []Issue {
	var issues []Issue
	for i, bar := range bars {
		if bar.High.LessThan(bar.Open) || bar.High.LessThan(bar.Close) || bar.High.LessThan(bar.Low) ||
			bar.Low.GreaterThan(bar.Open) || bar.Low.GreaterThan(bar.Close) || bar.Low.GreaterThan(bar.High) {
			issues = append(issues, Issue{Type: "ohlc_inconsistent", Severity: "critical", Timestamp: bar.Timestamp, Symbol: symbol, BarIndex: i})
		}
	}
	return issues
}

func (v *Validator) checkDuplicatesAndOrder(bars []*types.OHLCV, symbol string) []Issue {
	var issues []Issue
	seen := make(map[int64]bool, len(bars))
	for i, bar := range bars {
		ts := bar.Timestamp.UnixNano()
		if seen[ts] {
			issues = append(issues, Issue{Type: "duplicate_timestamp", Severity: "high", Timestamp: bar.Timestamp, Symbol: symbol, BarIndex: i})
		}
		seen[ts] = true
		if i > 0 && bar.Timestamp.Before(bars[i-1].Timestamp) {
			issues = append(issues, Issue{Type: "out_of_order", Severity: "critical", Timestamp: bar.Timestamp, Symbol: symbol, BarIndex: i})
		}
	}
	return issues
}

func (v *Validator) calculateQualityScore(totalBars int, issues []Issue) int {
	penalty := 0.0
	for _, issue := range issues {
		switch issue.Severity {
		case "critical":
			penalty += 10.0
		case "high":
			penalty += 5.0
		case "medium":
			penalty += 2.0
		case "low":
			penalty += 0.5
		}
	}
	normalized := penalty / math.Max(1, float64(totalBars)/100) * 10
	return int(math.Max(0, math.Min(100, 100.0-normalized)))
}

func (v *Validator) hasCriticalIssues(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == "critical" {
			return true
		}
	}
	return false
}

// Clean sorts bars by timestamp, drops duplicates and bars with any
// non-positive price, and widens High/Low to encompass Open/Close, so an
// inverted-range bar is kept with High >= Low restored.
func Clean(bars []*types.OHLCV) []*types.OHLCV {
	if len(bars) == 0 {
		return bars
	}
	sorted := append([]*types.OHLCV(nil), bars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	cleaned := make([]*types.OHLCV, 0, len(sorted))
	seen := make(map[int64]bool, len(sorted))
	for _, bar := range sorted {
		ts := bar.Timestamp.UnixNano()
		if seen[ts] {
			continue
		}
		seen[ts] = true
		if bar.Open.LessThanOrEqual(decimal.Zero) || bar.High.LessThanOrEqual(decimal.Zero) ||
			bar.Low.LessThanOrEqual(decimal.Zero) || bar.Close.LessThanOrEqual(decimal.Zero) {
			continue
		}
		cleaned = append(cleaned, &types.OHLCV{
			Timestamp: bar.Timestamp,
			Open:      bar.Open,
			Close:     bar.Close,
			Volume:    bar.Volume,
			High:      decimal.Max(bar.Open, bar.High, bar.Close),
			Low:       decimal.Min(bar.Open, bar.Low, bar.Close),
		})
	}
	return cleaned
}
