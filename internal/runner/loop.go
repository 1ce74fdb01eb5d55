package runner

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/apperrors"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/broker"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/metrics"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/screener"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/strategy"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

// barLookbackDays is the calendar window fetched ahead of each tick so
// indicator warmup (SMA250) has enough trading days behind it.
const barLookbackDays = 400

func (r *Runner) runLoop(ctx context.Context) {
	defer close(r.doneCh)
	r.logger.Info("scheduler loop started", zap.Duration("tickInterval", r.tickInterval))

	for {
		select {
		case <-r.stopCh:
			r.logger.Info("scheduler loop exited")
			return
		default:
		}

		r.tick(ctx)

		r.mu.Lock()
		interval := r.tickInterval
		if r.sleeping {
			interval = r.offHoursPollInterval
		}
		r.mu.Unlock()

		if !r.sleepWait(interval) {
			r.logger.Info("scheduler loop exited")
			return
		}
	}
}

// sleepWait blocks up to d, waking early on a stream update or stop
// signal. Returns false if the stop signal fired.
func (r *Runner) sleepWait(d time.Duration) bool {
	if d < 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		slice := sleepSlice
		if remaining < slice {
			slice = remaining
		}
		select {
		case <-r.stopCh:
			return false
		case <-r.streamWakeCh:
			return true
		case <-time.After(slice):
		}
	}
}

func (r *Runner) onBrokerTradeUpdate(_ broker.TradeUpdate) {
	select {
	case r.streamWakeCh <- struct{}{}:
	default:
	}
}

func (r *Runner) tick(ctx context.Context) {
	now := r.now()
	r.mu.Lock()
	r.lastPollAt = &now
	r.mu.Unlock()

	if err := r.ensureBrokerConnected(ctx); err != nil {
		r.recordPollError(ctx, err.Error())
		return
	}

	marketOpen, err := r.broker.IsMarketOpen(ctx)
	if err != nil {
		r.recordPollError(ctx, err.Error())
		return
	}

	r.mu.Lock()
	r.marketSessionOpen = &marketOpen
	r.mu.Unlock()

	if !marketOpen {
		r.enterSleepMode(ctx)
		r.recordPollSuccess()
		r.persistRuntimeState(ctx)
		return
	}

	r.mu.Lock()
	wasSleeping := r.sleeping
	r.mu.Unlock()
	if wasSleeping {
		r.resumeFromSleep(ctx)
	}

	r.processStrategies(ctx)
	r.recordPollSuccess()

	if err := r.reconcileOpenOrders(ctx); err != nil {
		r.logger.Error("error reconciling open orders", zap.Error(err))
	}
	if err := r.maybeReconcilePositions(ctx); err != nil {
		r.logger.Error("error during position reconciliation", zap.Error(err))
	}
	if err := r.recordPortfolioSnapshot(ctx); err != nil {
		r.logger.Error("error recording portfolio snapshot", zap.Error(err))
	}

	r.persistRuntimeState(ctx)
}

func (r *Runner) ensureBrokerConnected(ctx context.Context) error {
	if r.broker.IsConnected() {
		return nil
	}
	if err := r.broker.Connect(ctx); err != nil {
		return apperrors.NewBrokerError("connect", true, err)
	}
	r.logger.Info("broker reconnected in strategy runner loop")
	return nil
}

func (r *Runner) recordPollSuccess() {
	now := r.now()
	r.mu.Lock()
	r.pollSuccessCount++
	r.lastSuccessfulPollAt = &now
	r.mu.Unlock()
	metrics.RunnerPollSuccess.Inc()
}

func (r *Runner) recordPollError(ctx context.Context, message string) {
	r.mu.Lock()
	r.pollErrorCount++
	r.lastPollError = message
	r.mu.Unlock()
	metrics.RunnerPollError.Inc()
	r.logger.Error("error in scheduler loop", zap.String("error", message))
	r.auditPollError(ctx, message)
}

func (r *Runner) auditPollError(ctx context.Context, message string) {
	now := r.now()
	r.mu.Lock()
	if r.lastErrorAuditAt != nil && now.Sub(*r.lastErrorAuditAt) < errorAuditThrottle {
		r.mu.Unlock()
		return
	}
	r.lastErrorAuditAt = &now
	r.mu.Unlock()
	r.appendAudit(ctx, types.AuditError, "runner poll error: "+message, map[string]any{"source": "strategy_runner_poll"})
}

func (r *Runner) enterSleepMode(ctx context.Context) {
	r.mu.Lock()
	if r.sleeping {
		r.nextMarketOpenAt = r.safeNextMarketOpen(ctx)
		r.mu.Unlock()
		r.persistSleepState(ctx)
		return
	}
	now := r.now()
	r.sleeping = true
	r.sleepSince = &now
	r.nextMarketOpenAt = r.safeNextMarketOpen(ctx)
	r.status = StatusSleeping
	r.mu.Unlock()

	r.persistSleepState(ctx)
	r.appendAudit(ctx, types.AuditConfigUpdated, "runner entered off-hours sleep mode", map[string]any{
		"sleepSince": now,
	})
}

func (r *Runner) resumeFromSleep(ctx context.Context) {
	now := r.now()
	r.mu.Lock()
	r.sleeping = false
	r.lastResumeAt = &now
	r.lastCatchupAt = &now
	r.resumeCount++
	r.sleepSince = nil
	r.nextMarketOpenAt = nil
	r.status = StatusRunning
	count := r.resumeCount
	r.mu.Unlock()

	// Warm the bar cache immediately so the first post-resume tick isn't
	// working from a stale warmup window.
	r.mu.Lock()
	strategies := r.copyStrategiesLocked()
	r.mu.Unlock()
	for _, ls := range strategies {
		for _, symbol := range ls.symbols {
			_, _ = r.broker.GetHistoricalBars(ctx, symbol, now.AddDate(0, 0, -barLookbackDays), now, 0)
		}
	}

	r.persistSleepState(ctx)
	r.appendAudit(ctx, types.AuditConfigUpdated, "runner resumed after market open", map[string]any{
		"resumeAt":    now,
		"resumeCount": count,
	})
}

func (r *Runner) safeNextMarketOpen(ctx context.Context) *time.Time {
	t, err := r.broker.GetNextMarketOpen(ctx)
	if err != nil {
		r.logger.Debug("failed to fetch next market open from broker", zap.Error(err))
		return nil
	}
	return t
}

func (r *Runner) copyStrategiesLocked() []*loadedStrategy {
	out := make([]*loadedStrategy, 0, len(r.strategies))
	for _, ls := range r.strategies {
		out = append(out, ls)
	}
	return out
}

// processStrategies runs one tick for every loaded strategy: fetch the
// regime index, fetch each symbol's bars, call OnTick, and route any
// returned signal to the execution service.
func (r *Runner) processStrategies(ctx context.Context) {
	now := r.now()
	start := now.AddDate(0, 0, -barLookbackDays)

	r.mu.Lock()
	strategies := r.copyStrategiesLocked()
	r.mu.Unlock()

	indexBars, err := r.broker.GetHistoricalBars(ctx, r.regimeSymbol, start, now, 0)
	regime := types.RegimeUnknown
	if err != nil {
		r.logger.Error("failed to fetch regime index bars", zap.String("symbol", r.regimeSymbol), zap.Error(err))
	} else {
		regime = screener.ClassifyRegime(indexBars)
	}

	for _, ls := range strategies {
		for _, symbol := range ls.symbols {
			bars, err := r.broker.GetHistoricalBars(ctx, symbol, start, now, 0)
			if err != nil {
				r.recordStrategyError(ctx, ls.name, "error fetching data for "+symbol+": "+err.Error())
				continue
			}
			if len(bars) == 0 {
				continue
			}
			last := bars[len(bars)-1]

			signal, err := ls.instance.OnTick(symbol, last.Close, bars, regime)
			if err != nil {
				r.recordStrategyError(ctx, ls.name, err.Error())
				continue
			}
			if signal == nil {
				continue
			}
			r.executeSignal(ctx, ls, signal)
		}
	}
}

func (r *Runner) recordStrategyError(ctx context.Context, strategyName, message string) {
	r.mu.Lock()
	r.pollErrorCount++
	r.lastPollError = "strategy:" + strategyName + " -> " + message
	r.mu.Unlock()
	r.logger.Error("error in strategy", zap.String("strategy", strategyName), zap.String("error", message))
	r.auditPollError(ctx, r.lastPollError)
}

func (r *Runner) executeSignal(ctx context.Context, ls *loadedStrategy, signal *strategy.Signal) {
	order, err := r.execSvc.SubmitOrder(ctx, signal.Symbol, signal.Side, types.OrderTypeMarket, signal.Quantity, nil, &ls.strategyID)
	if err != nil {
		r.recordStrategyError(ctx, ls.name, "order execution failed: "+err.Error())
		return
	}
	r.logger.Info("executed signal",
		zap.String("strategy", ls.name),
		zap.String("symbol", signal.Symbol),
		zap.String("side", string(signal.Side)),
		zap.String("orderId", order.ID),
		zap.String("reason", signal.Reason))
}

// reconcileOpenOrders polls the broker for every non-terminal stored
// order and reconciles status changes, including fill processing.
func (r *Runner) reconcileOpenOrders(ctx context.Context) error {
	open, err := r.store.Orders().ListOpen(ctx)
	if err != nil {
		return err
	}
	for _, order := range open {
		if order.ExternalID == nil {
			r.logger.Warn("open order missing external id, skipping reconciliation", zap.String("orderId", order.ID))
			continue
		}
		if _, err := r.execSvc.UpdateOrderStatus(ctx, order); err != nil {
			r.logger.Error("failed to reconcile order", zap.String("orderId", order.ID), zap.Error(err))
		}
	}
	return nil
}

// maybeReconcilePositions diffs broker-reported vs. locally stored
// quantities per symbol, throttled to once every 5 minutes.
func (r *Runner) maybeReconcilePositions(ctx context.Context) error {
	now := r.now()
	r.mu.Lock()
	if !r.lastReconciliationRanAt.IsZero() && now.Sub(r.lastReconciliationRanAt) < reconcilePositionsEvery {
		r.mu.Unlock()
		return nil
	}
	r.lastReconciliationRanAt = now
	r.mu.Unlock()

	brokerPositions, err := r.broker.GetPositions(ctx)
	if err != nil {
		return err
	}
	localPositions, err := r.store.Positions().ListOpen(ctx)
	if err != nil {
		return err
	}

	brokerQty := make(map[string]decimal.Decimal)
	for _, p := range brokerPositions {
		brokerQty[p.Symbol] = brokerQty[p.Symbol].Add(p.Quantity)
	}
	localQty := make(map[string]decimal.Decimal)
	for _, p := range localPositions {
		localQty[p.Symbol] = localQty[p.Symbol].Add(p.Quantity)
	}

	symbols := make(map[string]struct{})
	for s := range brokerQty {
		symbols[s] = struct{}{}
	}
	for s := range localQty {
		symbols[s] = struct{}{}
	}

	discrepancies := 0
	threshold := decimal.NewFromFloat(1e-6)
	for s := range symbols {
		diff := brokerQty[s].Sub(localQty[s]).Abs()
		if diff.GreaterThan(threshold) {
			discrepancies++
		}
	}

	r.mu.Lock()
	r.lastReconciliationAt = &now
	r.lastReconciliationDiscrepancies = discrepancies
	r.mu.Unlock()
	metrics.RunnerReconciliationDiscrepancies.Set(float64(discrepancies))

	if discrepancies > 0 {
		r.appendAudit(ctx, types.AuditError, "runner reconciliation found discrepancies", map[string]any{
			"source": "strategy_runner_reconciliation", "count": discrepancies,
		})
	}
	return nil
}

// recordPortfolioSnapshot persists a point-in-time account snapshot for
// dashboard/analytics continuity.
func (r *Runner) recordPortfolioSnapshot(ctx context.Context) error {
	account, err := r.broker.GetAccountInfo(ctx)
	if err != nil {
		return err
	}
	positions, err := r.broker.GetPositions(ctx)
	if err != nil {
		return err
	}

	marketValue := decimal.Zero
	unrealizedPnL := decimal.Zero
	for _, p := range positions {
		mv := p.MarketValue
		if mv.LessThanOrEqual(decimal.Zero) && p.Quantity.Abs().GreaterThan(decimal.Zero) {
			price := p.CurrentPrice
			if price.LessThanOrEqual(decimal.Zero) {
				price = p.AvgEntryPrice
			}
			mv = p.Quantity.Abs().Mul(price)
		}
		if mv.GreaterThan(decimal.Zero) {
			marketValue = marketValue.Add(mv)
		}
		unrealizedPnL = unrealizedPnL.Add(p.UnrealizedPnL)
	}

	trades, err := r.store.Trades().ListAll(ctx)
	if err != nil {
		return err
	}
	realizedPnLTotal := decimal.Zero
	for _, t := range trades {
		if t.RealizedPnL != nil {
			realizedPnLTotal = realizedPnLTotal.Add(*t.RealizedPnL)
		}
	}

	snapshot := &types.PortfolioSnapshot{
		Timestamp:        r.now(),
		Equity:           decimal.Max(decimal.Zero, account.Equity),
		Cash:             decimal.Max(decimal.Zero, account.Cash),
		BuyingPower:      decimal.Max(decimal.Zero, account.BuyingPower),
		MarketValue:      decimal.Max(decimal.Zero, marketValue),
		UnrealizedPnL:    unrealizedPnL,
		RealizedPnLTotal: realizedPnLTotal,
		OpenPositions:    len(positions),
	}

	if r.riskMgr != nil {
		r.riskMgr.UpdateEquity(snapshot.Equity)
		if delta := realizedPnLTotal.Sub(r.lastRealizedPnLTotal); !delta.IsZero() {
			r.riskMgr.UpdateDailyPnL(delta)
		}
		r.lastRealizedPnLTotal = realizedPnLTotal
	}

	return r.store.Snapshots().Append(ctx, snapshot)
}
