// Package screener ranks the trading universe and derives the technical
// indicators the strategy and backtester act on.
package screener

import (
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

// Indicators is the derived technical state for one symbol at the last
// bar of the supplied series.
type Indicators struct {
	Close           decimal.Decimal
	ATR14           decimal.Decimal
	ATRPct          decimal.Decimal
	Z20             decimal.Decimal
	SMA50           decimal.Decimal
	HasSMA50        bool
	SMA250          decimal.Decimal
	HasSMA250       bool
	DipTrigger      decimal.Decimal
	DipBuySignal    bool
	TakeProfitPrice decimal.Decimal
	TrailingStop    decimal.Decimal
	ATRStopPrice    decimal.Decimal
}

// zWindowLive is the z-score lookback the live strategy and screener use
// (spec: 20-bar z-score).
const zWindowLive = 20

// Compute derives indicators from an ascending-by-date bar series, using
// the live strategy's 20-bar z-score window. bars must have at least 15
// entries (14 true ranges plus the seed close) for ATR to be meaningful;
// callers enforce the strategy's and backtester's own warmup minimums
// before calling this.
func Compute(bars []*types.OHLCV, dipBuyThresholdPct, zscoreEntryThreshold, takeProfitPct, trailingStopPct, atrStopMult decimal.Decimal) Indicators {
	return ComputeWithZWindow(bars, zWindowLive, dipBuyThresholdPct, zscoreEntryThreshold, takeProfitPct, trailingStopPct, atrStopMult)
}

// ComputeWithZWindow is Compute with an explicit z-score lookback; the
// backtester's entry signal uses a 50-bar window rather than the live
// strategy's 20-bar window.
func ComputeWithZWindow(bars []*types.OHLCV, zWindow int, dipBuyThresholdPct, zscoreEntryThreshold, takeProfitPct, trailingStopPct, atrStopMult decimal.Decimal) Indicators {
	n := len(bars)
	ind := Indicators{}
	if n == 0 {
		return ind
	}
	last := bars[n-1]
	ind.Close = last.Close

	ind.ATR14, ind.ATRPct = atr14(bars)

	closes := closesFloat(bars)
	if n >= zWindow+1 {
		window := closes[n-zWindow:]
		mean, std := stat.MeanStdDev(window, nil)
		popStd := std * math.Sqrt(float64(len(window)-1)/float64(len(window)))
		if popStd > 0 {
			ind.Z20 = decimal.NewFromFloat((closes[n-1] - mean) / popStd)
		}
	}

	if n >= 50 {
		ind.SMA50 = decimal.NewFromFloat(mean(closes[n-50:]))
		ind.HasSMA50 = true
	}
	if n >= 250 {
		ind.SMA250 = decimal.NewFromFloat(mean(closes[n-250:]))
		ind.HasSMA250 = true
	}

	if ind.HasSMA50 {
		ind.DipTrigger = ind.SMA50.Mul(decimal.NewFromInt(1).Sub(dipBuyThresholdPct.Div(decimal.NewFromInt(100))))
		ind.DipBuySignal = ind.Close.LessThanOrEqual(ind.DipTrigger) && ind.Z20.LessThanOrEqual(zscoreEntryThreshold)
	}

	ind.TakeProfitPrice = ind.Close.Mul(decimal.NewFromInt(1).Add(takeProfitPct.Div(decimal.NewFromInt(100))))

	trailWindow := 20
	if trailWindow > n {
		trailWindow = n
	}
	maxClose := bars[n-trailWindow].Close
	for _, b := range bars[n-trailWindow:] {
		if b.Close.GreaterThan(maxClose) {
			maxClose = b.Close
		}
	}
	ind.TrailingStop = maxClose.Mul(decimal.NewFromInt(1).Sub(trailingStopPct.Div(decimal.NewFromInt(100))))

	ind.ATRStopPrice = ind.Close.Mul(decimal.NewFromInt(1).Sub(atrStopMult.Mul(ind.ATRPct).Div(decimal.NewFromInt(100))))

	return ind
}

// atr14 computes the 14-period average true range and its percentage of
// the latest close, over the last 15 bars (14 true ranges).
func atr14(bars []*types.OHLCV) (atr, atrPct decimal.Decimal) {
	n := len(bars)
	lookback := 14
	if lookback > n-1 {
		lookback = n - 1
	}
	if lookback <= 0 {
		return decimal.Zero, decimal.Zero
	}
	start := n - lookback
	var sum decimal.Decimal
	for i := start; i < n; i++ {
		prevClose := bars[i-1].Close
		tr := trueRange(bars[i].High, bars[i].Low, prevClose)
		sum = sum.Add(tr)
	}
	atr = sum.Div(decimal.NewFromInt(int64(lookback)))
	close := bars[n-1].Close
	if close.GreaterThan(decimal.Zero) {
		atrPct = atr.Div(close).Mul(decimal.NewFromInt(100))
	}
	return atr, atrPct
}

func trueRange(high, low, prevClose decimal.Decimal) decimal.Decimal {
	hl := high.Sub(low).Abs()
	hc := high.Sub(prevClose).Abs()
	lc := low.Sub(prevClose).Abs()
	tr := hl
	if hc.GreaterThan(tr) {
		tr = hc
	}
	if lc.GreaterThan(tr) {
		tr = lc
	}
	return tr
}

func closesFloat(bars []*types.OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		f, _ := b.Close.Float64()
		out[i] = f
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// dailyReturns computes simple day-over-day returns from a close series.
func dailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out = append(out, (closes[i]-closes[i-1])/closes[i-1])
	}
	return out
}

func rms(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		sumSq += x * x
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}
