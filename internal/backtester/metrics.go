// Package backtester provides the deterministic daily backtest engine and
// its performance metrics calculation.
package backtester

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

// MetricsCalculator derives PerformanceMetrics and RiskMetrics from a
// completed run's trade log and equity curve.
type MetricsCalculator struct {
	logger *zap.Logger
}

// NewMetricsCalculator creates a new metrics calculator.
func NewMetricsCalculator(logger *zap.Logger) *MetricsCalculator {
	return &MetricsCalculator{logger: logger.Named("metrics")}
}

// Calculate calculates all performance metrics for a completed run.
func (mc *MetricsCalculator) Calculate(
	trades []*types.Trade,
	equityCurve []types.EquityCurvePoint,
	initialCapital decimal.Decimal,
	slippageApplied decimal.Decimal,
) *types.PerformanceMetrics {
	metrics := &types.PerformanceMetrics{SlippageApplied: slippageApplied}
	if len(trades) == 0 || len(equityCurve) == 0 {
		return metrics
	}

	var winningTrades, losingTrades int
	var totalWins, totalLosses decimal.Decimal
	var largestWin, largestLoss decimal.Decimal
	var consecutiveLosses, maxConsecutiveLosses int

	for _, trade := range trades {
		if trade.RealizedPnL == nil {
			continue
		}
		pnl := *trade.RealizedPnL
		if pnl.GreaterThan(decimal.Zero) {
			winningTrades++
			totalWins = totalWins.Add(pnl)
			if pnl.GreaterThan(largestWin) {
				largestWin = pnl
			}
			consecutiveLosses = 0
		} else if pnl.LessThan(decimal.Zero) {
			losingTrades++
			totalLosses = totalLosses.Add(pnl.Abs())
			if pnl.Abs().GreaterThan(largestLoss) {
				largestLoss = pnl.Abs()
			}
			consecutiveLosses++
			if consecutiveLosses > maxConsecutiveLosses {
				maxConsecutiveLosses = consecutiveLosses
			}
		}
	}

	metrics.TotalTrades = len(trades)
	metrics.WinningTrades = winningTrades
	metrics.LosingTrades = losingTrades
	metrics.LargestWin = largestWin
	metrics.LargestLoss = largestLoss
	metrics.MaxConsecutiveLosses = maxConsecutiveLosses

	if metrics.TotalTrades > 0 {
		metrics.WinRate = decimal.NewFromInt(int64(winningTrades)).Div(decimal.NewFromInt(int64(metrics.TotalTrades)))
	}
	if winningTrades > 0 {
		metrics.AvgWin = totalWins.Div(decimal.NewFromInt(int64(winningTrades)))
	}
	if losingTrades > 0 {
		metrics.AvgLoss = totalLosses.Div(decimal.NewFromInt(int64(losingTrades)))
	}
	if !totalLosses.IsZero() {
		metrics.ProfitFactor = totalWins.Div(totalLosses)
	}
	if metrics.TotalTrades > 0 {
		winPct := metrics.WinRate
		lossPct := decimal.NewFromFloat(1).Sub(winPct)
		metrics.Expectancy = winPct.Mul(metrics.AvgWin).Sub(lossPct.Mul(metrics.AvgLoss))
	}
	// AvgHoldDays is computed by the caller, which has access to matched
	// open/close trade pairs; left zero here and overwritten by the engine.

	if len(equityCurve) > 0 && !initialCapital.IsZero() {
		finalEquity := equityCurve[len(equityCurve)-1].Equity
		metrics.TotalReturn = finalEquity.Sub(initialCapital).Div(initialCapital)
	}

	returns := mc.dailyReturns(equityCurve)
	if len(returns) > 0 {
		avgDailyReturn := stat.Mean(returns, nil)
		metrics.AnnualizedReturn = decimal.NewFromFloat(avgDailyReturn * 252)
	}

	if len(returns) > 1 {
		avgReturn := stat.Mean(returns, nil)
		stdDev := stat.StdDev(returns, nil)
		metrics.AnnualizedVolatility = decimal.NewFromFloat(stdDev * math.Sqrt(252))
		if stdDev > 0 {
			metrics.SharpeRatio = decimal.NewFromFloat(avgReturn / stdDev * math.Sqrt(252))
		}
		downsideDev := mc.downsideDeviation(returns)
		if downsideDev > 0 {
			metrics.SortinoRatio = decimal.NewFromFloat(avgReturn / downsideDev * math.Sqrt(252))
		}
	}

	maxDD, maxDDDate := mc.maxDrawdown(equityCurve)
	metrics.MaxDrawdown = maxDD
	metrics.MaxDrawdownDate = maxDDDate

	if !metrics.MaxDrawdown.IsZero() {
		metrics.CalmarRatio = metrics.AnnualizedReturn.Div(metrics.MaxDrawdown)
		netProfit := totalWins.Sub(totalLosses)
		absMaxDDAmount := metrics.MaxDrawdown.Mul(initialCapital)
		if !absMaxDDAmount.IsZero() {
			metrics.RecoveryFactor = netProfit.Div(absMaxDDAmount)
		}
	}

	return metrics
}

// CalculateRiskMetrics calculates tail-risk statistics from the equity curve.
func (mc *MetricsCalculator) CalculateRiskMetrics(equityCurve []types.EquityCurvePoint) *types.RiskMetrics {
	if len(equityCurve) < 2 {
		return &types.RiskMetrics{}
	}

	returns := mc.dailyReturns(equityCurve)
	if len(returns) == 0 {
		return &types.RiskMetrics{}
	}

	metrics := &types.RiskMetrics{}

	dailyVol := stat.StdDev(returns, nil)
	metrics.DailyVolatility = decimal.NewFromFloat(dailyVol)
	metrics.AnnualVolatility = decimal.NewFromFloat(dailyVol * math.Sqrt(252))

	sortedReturns := make([]float64, len(returns))
	copy(sortedReturns, returns)
	sort.Float64s(sortedReturns)

	idx95 := int(float64(len(sortedReturns)) * 0.05)
	if idx95 >= 0 && idx95 < len(sortedReturns) {
		metrics.VaR95 = decimal.NewFromFloat(-sortedReturns[idx95])
	}

	idx99 := int(float64(len(sortedReturns)) * 0.01)
	if idx99 >= 0 && idx99 < len(sortedReturns) {
		metrics.VaR99 = decimal.NewFromFloat(-sortedReturns[idx99])
	}

	if idx95 > 0 {
		metrics.CVaR95 = decimal.NewFromFloat(-stat.Mean(sortedReturns[:idx95], nil))
	}

	return metrics
}

func (mc *MetricsCalculator) dailyReturns(equityCurve []types.EquityCurvePoint) []float64 {
	if len(equityCurve) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(equityCurve)-1)
	for i := 1; i < len(equityCurve); i++ {
		prevEquity := equityCurve[i-1].Equity
		currEquity := equityCurve[i].Equity
		if prevEquity.IsZero() {
			continue
		}
		ret := currEquity.Sub(prevEquity).Div(prevEquity)
		retFloat, _ := ret.Float64()
		returns = append(returns, retFloat)
	}

	return returns
}

func (mc *MetricsCalculator) maxDrawdown(equityCurve []types.EquityCurvePoint) (decimal.Decimal, time.Time) {
	if len(equityCurve) == 0 {
		return decimal.Zero, time.Time{}
	}

	var maxDD decimal.Decimal
	var maxDDDate time.Time
	peak := equityCurve[0].Equity

	for _, point := range equityCurve {
		if point.Equity.GreaterThan(peak) {
			peak = point.Equity
		}
		if !peak.IsZero() {
			dd := peak.Sub(point.Equity).Div(peak)
			if dd.GreaterThan(maxDD) {
				maxDD = dd
				maxDDDate = point.Timestamp
			}
		}
	}

	return maxDD, maxDDDate
}

func (mc *MetricsCalculator) downsideDeviation(returns []float64) float64 {
	var negativeReturns []float64
	for _, r := range returns {
		if r < 0 {
			negativeReturns = append(negativeReturns, r)
		}
	}
	if len(negativeReturns) == 0 {
		return 0
	}
	return stat.StdDev(negativeReturns, nil)
}
