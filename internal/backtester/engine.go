// Package backtester provides the deterministic daily backtest engine.
package backtester

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/metrics"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/screener"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/sizing"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

const (
	dateLayout        = "2006-01-02"
	warmupTradingDays = 320
	entryWarmupDays   = 50
	defaultRiskPct    = 1.0 // fixed risk-per-trade percentage (1.0 = 1%) passed to the position sizer
)

// DataLoader loads a symbol's ascending daily bar history between two
// dates, inclusive.
type DataLoader interface {
	LoadOHLCV(ctx context.Context, symbol string, start, end time.Time) ([]*types.OHLCV, error)
}

// Engine runs one deterministic, single-threaded backtest at a time.
type Engine struct {
	logger       *zap.Logger
	loader       DataLoader
	sizer        *sizing.PositionSizer
	metricsCalc  *MetricsCalculator
	regimeSymbol string
}

// NewEngine builds a backtest engine. regimeSymbol is the index (e.g.
// "SPY") whose closes drive the regime classifier.
func NewEngine(logger *zap.Logger, loader DataLoader, regimeSymbol string) *Engine {
	if regimeSymbol == "" {
		regimeSymbol = "SPY"
	}
	named := logger.Named("backtester")
	return &Engine{
		logger:       named,
		loader:       loader,
		sizer:        sizing.NewPositionSizer(named),
		metricsCalc:  NewMetricsCalculator(named),
		regimeSymbol: regimeSymbol,
	}
}

// openPosition is one symbol's live backtest position.
type openPosition struct {
	entryPrice      decimal.Decimal
	quantity        decimal.Decimal
	peakPrice       decimal.Decimal
	atrStopPrice    decimal.Decimal
	takeProfitPrice decimal.Decimal
	trailingStop    decimal.Decimal
	entryDate       time.Time
	daysHeld        int
}

// Run executes one deterministic backtest over input.Symbols between
// input.Start and input.End, both inclusive UTC dates.
func (e *Engine) Run(ctx context.Context, input *types.BacktestInput) (*types.BacktestReport, error) {
	runStart := time.Now()
	defer func() { metrics.BacktestRunDuration.Observe(time.Since(runStart).Seconds()) }()

	params := input.ParameterOverrides
	warmupStart := input.Start.AddDate(-2, 0, 0)

	indexBars, err := e.loader.LoadOHLCV(ctx, e.regimeSymbol, warmupStart, input.End)
	if err != nil {
		return nil, fmt.Errorf("loading regime index %s: %w", e.regimeSymbol, err)
	}
	indexByDate := indexDates(indexBars)

	symbolBars := make(map[string][]*types.OHLCV, len(input.Symbols))
	symbolDateIdx := make(map[string]map[string]int, len(input.Symbols))
	blockedReasons := map[string]int{}

	sortedSymbols := append([]string(nil), input.Symbols...)
	sort.Strings(sortedSymbols)

	for _, symbol := range sortedSymbols {
		bars, err := e.loader.LoadOHLCV(ctx, symbol, warmupStart, input.End)
		if err != nil {
			return nil, fmt.Errorf("loading bars for %s: %w", symbol, err)
		}
		startIdx := firstIndexOnOrAfter(bars, input.Start)
		if startIdx < warmupTradingDays {
			blockedReasons["insufficient_warmup"]++
			continue
		}
		symbolBars[symbol] = bars
		symbolDateIdx[symbol] = indexDates(bars)
	}

	tradingDates := unionDatesInRange(symbolBars, input.Start, input.End)

	cash := input.InitialCapital
	positions := make(map[string]*openPosition)
	lastClose := make(map[string]decimal.Decimal)
	var trades []*types.Trade
	var equityCurve []types.EquityCurvePoint
	exitReasons := map[string]int{}
	var slippageDollars decimal.Decimal
	var holdDaysSum decimal.Decimal
	var closedTradeCount int

	for _, date := range tradingDates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		symbolsToday := make([]string, 0, len(symbolBars))
		for _, symbol := range sortedSymbols {
			if _, ok := symbolDateIdx[symbol][date.Format(dateLayout)]; ok {
				symbolsToday = append(symbolsToday, symbol)
			}
		}

		for _, symbol := range symbolsToday {
			bars := symbolBars[symbol]
			idx := symbolDateIdx[symbol][date.Format(dateLayout)]
			today := bars[idx]
			lastClose[symbol] = today.Close
			history := bars[:idx+1]

			if pos, open := positions[symbol]; open {
				closed, trade, reason := e.evaluateExit(symbol, pos, today, history, params, input.MaxHoldDays, input.SlippageBps)
				if closed {
					cash = cash.Add(trade.Quantity.Mul(trade.Price))
					trades = append(trades, trade)
					exitReasons[reason]++
					holdDaysSum = holdDaysSum.Add(decimal.NewFromInt(int64(pos.daysHeld)))
					closedTradeCount++
					slippageDollars = slippageDollars.Add(pos.entryPrice.Sub(trade.Price).Abs().Mul(trade.Quantity).Abs())
					delete(positions, symbol)
				}
				continue
			}

			indexHistory := indexUpTo(indexBars, indexByDate, date)
			regime := screener.ClassifyRegime(indexHistory)
			if regime != types.RegimeRangeBound {
				blockedReasons["regime_not_range_bound"]++
				continue
			}
			if len(history) < entryWarmupDays {
				blockedReasons["insufficient_history"]++
				continue
			}

			ind := screener.ComputeWithZWindow(history, entryWarmupDays, params.DipBuyThresholdPct, params.ZScoreEntryThreshold, params.TakeProfitPct, params.TrailingStopPct, params.AtrStopMult)
			if !ind.HasSMA50 || !ind.DipBuySignal {
				blockedReasons["no_signal"]++
				continue
			}

			equity := currentEquity(cash, positions, lastClose)
			targetNotional := e.sizer.Calculate(equity, params.PositionSizeNotional, cash, decimal.NewFromFloat(defaultRiskPct), params.StopLossPct)

			fill := applyBuySlippage(today.Close, input.SlippageBps)
			qty := targetNotional.Div(fill)
			fillNotional := qty.Mul(fill)
			if fillNotional.GreaterThan(cash) {
				blockedReasons["insufficient_cash"]++
				continue
			}

			stopLossPrice := fill.Mul(decimal.NewFromInt(1).Sub(params.StopLossPct.Div(decimal.NewFromInt(100))))
			atrStopPrice := decimal.Min(ind.ATRStopPrice, stopLossPrice)
			takeProfitPrice := fill.Mul(decimal.NewFromInt(1).Add(params.TakeProfitPct.Div(decimal.NewFromInt(100))))
			trailingStop := fill.Mul(decimal.NewFromInt(1).Sub(params.TrailingStopPct.Div(decimal.NewFromInt(100))))

			positions[symbol] = &openPosition{
				entryPrice:      fill,
				quantity:        qty,
				peakPrice:       fill,
				atrStopPrice:    atrStopPrice,
				takeProfitPrice: takeProfitPrice,
				trailingStop:    trailingStop,
				entryDate:       date,
				daysHeld:        0,
			}
			cash = cash.Sub(fillNotional)
			slippageDollars = slippageDollars.Add(fill.Sub(today.Close).Abs().Mul(qty))

			trades = append(trades, &types.Trade{
				ID:         uuid.New().String(),
				OrderID:    uuid.New().String(),
				Symbol:     symbol,
				Side:       types.OrderSideBuy,
				Type:       types.TradeTypeOpen,
				Quantity:   qty,
				Price:      fill,
				ExecutedAt: date,
			})
		}

		equityCurve = append(equityCurve, types.EquityCurvePoint{
			Timestamp: date,
			Equity:    currentEquity(cash, positions, lastClose),
			Cash:      cash,
			Drawdown:  decimal.Zero, // computed across the full curve by MetricsCalculator
		})
	}

	// Force-close any positions still open at the end of the range.
	for _, symbol := range sortedSymbols {
		pos, open := positions[symbol]
		if !open {
			continue
		}
		close, ok := lastClose[symbol]
		if !ok {
			close = pos.entryPrice
		}
		exitPrice := applySellSlippage(close, input.SlippageBps)
		cash = cash.Add(pos.quantity.Mul(exitPrice))
		pnl := exitPrice.Sub(pos.entryPrice).Mul(pos.quantity)
		trades = append(trades, &types.Trade{
			ID:          uuid.New().String(),
			OrderID:     uuid.New().String(),
			Symbol:      symbol,
			Side:        types.OrderSideSell,
			Type:        types.TradeTypeClose,
			Quantity:    pos.quantity,
			Price:       exitPrice,
			RealizedPnL: &pnl,
			ExecutedAt:  input.End,
		})
		exitReasons["end_of_backtest"]++
		holdDaysSum = holdDaysSum.Add(decimal.NewFromInt(int64(pos.daysHeld)))
		closedTradeCount++
		delete(positions, symbol)
	}
	if len(equityCurve) > 0 {
		equityCurve[len(equityCurve)-1].Equity = cash
	}

	metrics := e.metricsCalc.Calculate(trades, equityCurve, input.InitialCapital, slippageDollars)
	if closedTradeCount > 0 {
		metrics.AvgHoldDays = holdDaysSum.Div(decimal.NewFromInt(int64(closedTradeCount)))
	}

	diagnostics := types.DiagnosticsReport{
		BlockedReasons: blockedReasons,
		ExitReasons:    exitReasons,
		Parameters:     parametersToMap(params),
		TopBlockers:    topReasons(blockedReasons, 3),
	}

	return &types.BacktestReport{
		Metrics:     *metrics,
		EquityCurve: equityCurve,
		Trades:      trades,
		Diagnostics: diagnostics,
	}, nil
}

// evaluateExit checks an open position's exit conditions in priority
// order (time, stop, take-profit) and ratchets its ATR stop and peak
// upward only.
func (e *Engine) evaluateExit(symbol string, pos *openPosition, today *types.OHLCV, history []*types.OHLCV, params types.StrategyParams, maxHoldDays int, slippageBps decimal.Decimal) (bool, *types.Trade, string) {
	pos.daysHeld++

	ind := screener.Compute(history, params.DipBuyThresholdPct, params.ZScoreEntryThreshold, params.TakeProfitPct, params.TrailingStopPct, params.AtrStopMult)
	if ind.ATRStopPrice.GreaterThan(pos.atrStopPrice) {
		pos.atrStopPrice = ind.ATRStopPrice
	}
	if today.High.GreaterThan(pos.peakPrice) {
		pos.peakPrice = today.High
	}
	newTrailing := pos.peakPrice.Mul(decimal.NewFromInt(1).Sub(params.TrailingStopPct.Div(decimal.NewFromInt(100))))
	if newTrailing.GreaterThan(pos.trailingStop) {
		pos.trailingStop = newTrailing
	}

	stopLine := decimal.Max(pos.atrStopPrice, pos.trailingStop)

	var reason string
	var exitPrice decimal.Decimal
	switch {
	case pos.daysHeld >= maxHoldDays:
		reason = "time_exit"
		exitPrice = applySellSlippage(today.Close, slippageBps)
	case today.Low.LessThanOrEqual(stopLine):
		reason = "stop_exit"
		exitPrice = applySellSlippage(stopLine, slippageBps)
	case today.High.GreaterThanOrEqual(pos.takeProfitPrice):
		reason = "take_profit"
		exitPrice = applySellSlippage(pos.takeProfitPrice, slippageBps)
	default:
		return false, nil, ""
	}

	pnl := exitPrice.Sub(pos.entryPrice).Mul(pos.quantity)
	trade := &types.Trade{
		ID:          uuid.New().String(),
		OrderID:     uuid.New().String(),
		Symbol:      symbol,
		Side:        types.OrderSideSell,
		Type:        types.TradeTypeClose,
		Quantity:    pos.quantity,
		Price:       exitPrice,
		RealizedPnL: &pnl,
		ExecutedAt:  today.Timestamp,
	}
	return true, trade, reason
}

func indexDates(bars []*types.OHLCV) map[string]int {
	out := make(map[string]int, len(bars))
	for i, b := range bars {
		out[b.Timestamp.Format(dateLayout)] = i
	}
	return out
}

func firstIndexOnOrAfter(bars []*types.OHLCV, date time.Time) int {
	for i, b := range bars {
		if !b.Timestamp.Before(date) {
			return i
		}
	}
	return len(bars)
}

func indexUpTo(bars []*types.OHLCV, byDate map[string]int, date time.Time) []*types.OHLCV {
	idx, ok := byDate[date.Format(dateLayout)]
	if !ok {
		// fall back to the latest bar strictly before date
		cut := 0
		for i, b := range bars {
			if b.Timestamp.After(date) {
				break
			}
			cut = i + 1
		}
		return bars[:cut]
	}
	return bars[:idx+1]
}

func unionDatesInRange(symbolBars map[string][]*types.OHLCV, start, end time.Time) []time.Time {
	seen := map[string]time.Time{}
	for _, bars := range symbolBars {
		for _, b := range bars {
			if b.Timestamp.Before(start) || b.Timestamp.After(end) {
				continue
			}
			seen[b.Timestamp.Format(dateLayout)] = b.Timestamp
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func currentEquity(cash decimal.Decimal, positions map[string]*openPosition, lastClose map[string]decimal.Decimal) decimal.Decimal {
	equity := cash
	for symbol, pos := range positions {
		close, ok := lastClose[symbol]
		if !ok {
			close = pos.entryPrice
		}
		equity = equity.Add(pos.quantity.Mul(close))
	}
	return equity
}

func parametersToMap(params types.StrategyParams) map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"position_size_notional": params.PositionSizeNotional,
		"stop_loss_pct":           params.StopLossPct,
		"take_profit_pct":         params.TakeProfitPct,
		"trailing_stop_pct":       params.TrailingStopPct,
		"atr_stop_mult":           params.AtrStopMult,
		"dip_buy_threshold_pct":   params.DipBuyThresholdPct,
		"zscore_entry_threshold":  params.ZScoreEntryThreshold,
	}
}

func topReasons(counts map[string]int, n int) []string {
	type kv struct {
		k string
		v int
	}
	pairs := make([]kv, 0, len(counts))
	for k, v := range counts {
		pairs = append(pairs, kv{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].v > pairs[j].v })
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.k
	}
	return out
}
