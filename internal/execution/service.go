// Package execution orchestrates the order lifecycle from submission
// through fill reconciliation: validation, broker routing, storage
// persistence, and audit logging.
package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/apperrors"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/broker"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/budget"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/metrics"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/risk"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/storage"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/utils"
)

// Config controls the throttle and balance-adjusted guardrails the
// service applies on top of the risk manager's own limits.
type Config struct {
	MaxPositionSize     decimal.Decimal
	DailyRiskLimit      decimal.Decimal
	OrderThrottlePerMin int
	BudgetTrackingOn    bool
}

// Service executes orders end to end: validate, submit to broker,
// persist, reconcile fills.
type Service struct {
	logger *zap.Logger
	broker broker.Port
	store  storage.Store
	risk   *risk.Manager
	budget *budget.WeeklyTracker
	cfg    Config

	throttleMu sync.Mutex
	throttle   []time.Time
	now        func() time.Time
}

// NewService wires an execution service over a broker, storage, risk
// manager, and optional weekly budget tracker.
func NewService(logger *zap.Logger, b broker.Port, store storage.Store, riskMgr *risk.Manager, budgetTracker *budget.WeeklyTracker, cfg Config) *Service {
	if cfg.OrderThrottlePerMin < 1 {
		cfg.OrderThrottlePerMin = 60
	}
	return &Service{
		logger: logger.Named("execution"),
		broker: b,
		store:  store,
		risk:   riskMgr,
		budget: budgetTracker,
		cfg:    cfg,
		now:    time.Now,
	}
}

// SetClock overrides the time source for the order throttle; tests use
// this for deterministic windowing.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// acquireThrottleSlot enforces a rolling 60-second cap on submissions,
// evicting timestamps that have aged out of the window before counting.
func (s *Service) acquireThrottleSlot() bool {
	s.throttleMu.Lock()
	defer s.throttleMu.Unlock()

	now := s.now()
	windowStart := now.Add(-60 * time.Second)
	i := 0
	for i < len(s.throttle) && s.throttle[i].Before(windowStart) {
		i++
	}
	s.throttle = s.throttle[i:]
	if len(s.throttle) >= s.cfg.OrderThrottlePerMin {
		metrics.ThrottleRejections.Inc()
		return false
	}
	s.throttle = append(s.throttle, now)
	return true
}

// ValidateOrder runs every pre-trade gate in order and returns the first
// failure. A nil error means the order may be submitted.
func (s *Service) ValidateOrder(ctx context.Context, symbol string, side types.OrderSide, orderType types.OrderType, quantity decimal.Decimal, price *decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return apperrors.NewValidationError("quantity", "order quantity must be positive")
	}
	if orderType != types.OrderTypeMarket && price == nil {
		return apperrors.NewValidationError("price", "price required for limit/stop orders")
	}
	if price != nil && price.LessThanOrEqual(decimal.Zero) {
		return apperrors.NewValidationError("price", "price must be positive")
	}
	if KillSwitchActive() {
		return apperrors.NewValidationError("kill_switch", "trading is blocked: kill switch is active")
	}
	if !TradingEnabled() {
		return apperrors.NewValidationError("trading_enabled", "trading is disabled")
	}
	if !s.broker.IsConnected() {
		return apperrors.NewBrokerError("is_connected", true, fmt.Errorf("broker is not connected"))
	}

	tradable, err := s.broker.IsSymbolTradable(ctx, symbol)
	if err != nil {
		return apperrors.NewBrokerError("is_symbol_tradable", true, err)
	}
	if !tradable {
		return apperrors.NewValidationError("symbol", fmt.Sprintf("symbol %s is not tradable", symbol))
	}

	marketOpen, err := s.broker.IsMarketOpen(ctx)
	if err != nil {
		return apperrors.NewBrokerError("is_market_open", true, err)
	}
	if !marketOpen {
		return apperrors.NewValidationError("market_hours", "market is closed")
	}

	account, err := s.broker.GetAccountInfo(ctx)
	if err != nil {
		return apperrors.NewBrokerError("get_account_info", true, err)
	}

	if side != types.OrderSideBuy {
		return nil
	}

	estimatedPrice := decimal.Zero
	if orderType == types.OrderTypeMarket {
		quote, err := s.broker.GetMarketData(ctx, symbol)
		if err == nil && quote != nil {
			estimatedPrice = quote.Price
		} else if price != nil {
			estimatedPrice = *price
		}
		if estimatedPrice.LessThanOrEqual(decimal.Zero) {
			return apperrors.NewValidationError("price", "cannot validate market order without price data")
		}
	} else if price != nil {
		estimatedPrice = *price
	}

	orderValue := quantity.Mul(estimatedPrice)
	if orderValue.GreaterThan(account.BuyingPower) {
		return apperrors.NewRiskError("buying_power", fmt.Sprintf("insufficient buying power: need %s, have %s", orderValue.StringFixed(2), account.BuyingPower.StringFixed(2)))
	}

	effectiveMaxPosition := s.cfg.MaxPositionSize
	if account.Equity.GreaterThan(decimal.Zero) {
		equityCap := decimal.Max(decimal.NewFromInt(100), account.Equity.Mul(decimal.NewFromFloat(0.25)))
		effectiveMaxPosition = decimal.Min(effectiveMaxPosition, equityCap)
	}
	effectiveMaxPosition = decimal.Max(decimal.NewFromInt(1), effectiveMaxPosition)
	if orderValue.GreaterThan(effectiveMaxPosition) {
		return apperrors.NewRiskError("max_position_size", fmt.Sprintf("order value %s exceeds balance-adjusted maximum %s", orderValue.StringFixed(2), effectiveMaxPosition.StringFixed(2)))
	}

	if s.cfg.BudgetTrackingOn && s.budget != nil {
		if ok, reason := s.budget.CanTrade(orderValue); !ok {
			return apperrors.NewRiskError("weekly_budget", reason)
		}
	}

	if s.risk != nil {
		positions, err := s.store.Positions().ListOpen(ctx)
		if err != nil {
			return apperrors.NewIntegrityError("validate_order", err.Error())
		}
		prices := map[string]decimal.Decimal{symbol: estimatedPrice}
		exposures := risk.ExposureFromPositions(positions, prices)
		if err := s.risk.ValidateOrder(symbol, quantity, estimatedPrice, exposures); err != nil {
			return apperrors.NewRiskError("risk_manager", err.Error())
		}
	}

	return nil
}

// SubmitOrder validates, persists, and routes an order to the broker,
// reconciling an immediate fill if the broker returns one synchronously.
func (s *Service) SubmitOrder(ctx context.Context, symbol string, side types.OrderSide, orderType types.OrderType, quantity decimal.Decimal, price *decimal.Decimal, strategyID *string) (*types.Order, error) {
	if !s.acquireThrottleSlot() {
		return nil, apperrors.NewValidationError("throttle", fmt.Sprintf("order throttle exceeded: max %d orders/minute", s.cfg.OrderThrottlePerMin))
	}

	if err := s.ValidateOrder(ctx, symbol, side, orderType, quantity, price); err != nil {
		return nil, err
	}

	now := s.now()
	order := &types.Order{
		ID:         utils.GenerateOrderID(),
		Symbol:     symbol,
		Side:       side,
		Type:       orderType,
		Status:     types.OrderStatusPending,
		Quantity:   quantity,
		Price:      price,
		StrategyID: strategyID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Orders().Create(ctx, order); err != nil {
		return nil, apperrors.NewIntegrityError("submit_order", err.Error())
	}

	resp, err := s.broker.SubmitOrder(ctx, symbol, side, orderType, quantity, price)
	if err != nil {
		order.Status = types.OrderStatusRejected
		order.UpdatedAt = s.now()
		_ = s.store.Orders().Update(ctx, order)
		return nil, apperrors.NewBrokerError("submit_order", false, err)
	}

	order.ExternalID = &resp.ID
	order.Status = mapBrokerStatus(resp.Status)
	order.UpdatedAt = s.now()
	if resp.FilledQuantity.GreaterThan(decimal.Zero) {
		order.FilledQuantity = resp.FilledQuantity
		order.AvgFillPrice = resp.AvgFillPrice
		order.FilledAt = &order.UpdatedAt
	}
	if err := s.store.Orders().Update(ctx, order); err != nil {
		return nil, apperrors.NewIntegrityError("submit_order", err.Error())
	}

	s.logger.Info("order submitted",
		zap.String("orderId", order.ID),
		zap.Stringp("externalId", order.ExternalID),
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("status", string(order.Status)))

	if order.Status == types.OrderStatusFilled && resp.FilledQuantity.GreaterThan(decimal.Zero) && resp.AvgFillPrice != nil {
		if err := s.processFill(ctx, order, resp.FilledQuantity, *resp.AvgFillPrice); err != nil {
			s.logger.Error("failed to process immediate fill", zap.String("orderId", order.ID), zap.Error(err))
		}
		if s.cfg.BudgetTrackingOn && s.budget != nil && side == types.OrderSideBuy {
			s.budget.RecordTrade(resp.FilledQuantity.Mul(*resp.AvgFillPrice), true, nil)
		}
	}

	s.appendAudit(ctx, types.AuditOrderCreated, fmt.Sprintf("order created: %s %s %s", side, quantity.String(), symbol), map[string]any{
		"orderId": order.ID, "symbol": symbol, "side": string(side), "status": string(order.Status),
	}, &order.ID, strategyID)

	return order, nil
}

// UpdateOrderStatus polls the broker for the latest state of a resting
// order and reconciles any new fill.
func (s *Service) UpdateOrderStatus(ctx context.Context, order *types.Order) (*types.Order, error) {
	if order.ExternalID == nil {
		s.logger.Warn("order has no external id, cannot update status", zap.String("orderId", order.ID))
		return order, nil
	}

	resp, err := s.broker.GetOrder(ctx, *order.ExternalID)
	if err != nil {
		return order, apperrors.NewBrokerError("get_order", true, err)
	}

	newStatus := mapBrokerStatus(resp.Status)
	if newStatus == order.Status && resp.FilledQuantity.Equal(order.FilledQuantity) {
		return order, nil
	}

	order.Status = newStatus
	order.FilledQuantity = resp.FilledQuantity
	order.AvgFillPrice = resp.AvgFillPrice
	order.UpdatedAt = s.now()
	if newStatus == types.OrderStatusFilled {
		order.FilledAt = &order.UpdatedAt
	}
	if err := s.store.Orders().Update(ctx, order); err != nil {
		return order, apperrors.NewIntegrityError("update_order_status", err.Error())
	}

	s.logger.Info("order updated",
		zap.String("orderId", order.ID),
		zap.String("status", string(order.Status)),
		zap.String("filled", order.FilledQuantity.String()))

	if newStatus == types.OrderStatusFilled && resp.FilledQuantity.GreaterThan(decimal.Zero) && resp.AvgFillPrice != nil {
		if err := s.processFill(ctx, order, resp.FilledQuantity, *resp.AvgFillPrice); err != nil {
			return order, err
		}
	}
	return order, nil
}

// processFill records the trade, updates the matching position, and
// emits a fill audit log entry. A reduction that realizes P&L is
// reported to the risk manager so the consecutive-loss breaker sees it.
func (s *Service) processFill(ctx context.Context, order *types.Order, filledQty, avgPrice decimal.Decimal) error {
	trade := &types.Trade{
		ID:         utils.GenerateTradeID(),
		OrderID:    order.ID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   filledQty,
		Price:      avgPrice,
		Commission: decimal.Zero,
		Fees:       decimal.Zero,
		StrategyID: order.StrategyID,
		ExecutedAt: s.now(),
	}

	existing, err := s.store.Positions().GetBySymbol(ctx, order.Symbol)
	if err != nil {
		return apperrors.NewIntegrityError("process_fill", err.Error())
	}
	if existing == nil {
		trade.Type = types.TradeTypeOpen
	} else {
		trade.Type = types.TradeTypeAdjustment
	}

	updated, closed, tradePnL := applyFillToPosition(existing, order, filledQty, avgPrice, s.now())
	if existing != nil && !tradePnL.IsZero() {
		trade.RealizedPnL = &tradePnL
	}

	if err := s.store.Trades().Append(ctx, trade); err != nil {
		return apperrors.NewIntegrityError("process_fill", err.Error())
	}

	s.logger.Info("trade recorded",
		zap.String("tradeId", trade.ID), zap.String("side", string(order.Side)),
		zap.String("quantity", filledQty.String()), zap.String("price", avgPrice.String()))

	if err := s.store.Positions().Upsert(ctx, updated); err != nil {
		return apperrors.NewIntegrityError("process_fill", err.Error())
	}

	if existing == nil {
		s.appendAudit(ctx, types.AuditPositionOpened, fmt.Sprintf("position opened: %s %s %s", updated.Side, updated.Quantity.String(), order.Symbol), nil, &order.ID, order.StrategyID)
	} else {
		if closed {
			s.appendAudit(ctx, types.AuditPositionClosed, fmt.Sprintf("position closed: %s, P&L: %s", order.Symbol, updated.RealizedPnL.String()), nil, &order.ID, order.StrategyID)
		}
		if !tradePnL.IsZero() && s.risk != nil {
			s.risk.RecordTradeResult(tradePnL)
		}
	}

	s.appendAudit(ctx, types.AuditOrderFilled, fmt.Sprintf("order filled: %s %s %s", order.Side, filledQty.String(), order.Symbol), map[string]any{
		"orderId": order.ID, "tradeId": trade.ID, "symbol": order.Symbol, "quantity": filledQty.String(), "price": avgPrice.String(),
	}, &order.ID, order.StrategyID)

	return nil
}

// applyFillToPosition folds one fill into an existing or new position,
// averaging entry price on same-direction adds and realizing P&L on a
// reduction. It mirrors the weighted-average accounting the paper broker
// uses for its own simulated positions. The returned decimal is this
// fill's own realized P&L delta (zero for a same-direction add).
func applyFillToPosition(existing *types.Position, order *types.Order, filledQty, avgPrice decimal.Decimal, now time.Time) (*types.Position, bool, decimal.Decimal) {
	signedDelta := filledQty
	if order.Side == types.OrderSideSell {
		signedDelta = filledQty.Neg()
	}

	if existing == nil {
		side := types.PositionSideLong
		qty := filledQty
		if order.Side == types.OrderSideSell {
			side = types.PositionSideShort
		}
		return &types.Position{
			Symbol:        order.Symbol,
			Side:          side,
			Quantity:      qty,
			AvgEntryPrice: avgPrice,
			CostBasis:     qty.Mul(avgPrice),
			RealizedPnL:   decimal.Zero,
			IsOpen:        true,
			OpenedAt:      now,
		}, false, decimal.Zero
	}

	currentSigned := existing.Quantity
	if existing.Side == types.PositionSideShort {
		currentSigned = currentSigned.Neg()
	}
	newSigned := currentSigned.Add(signedDelta)

	sameDirection := (currentSigned.GreaterThanOrEqual(decimal.Zero) && signedDelta.GreaterThanOrEqual(decimal.Zero)) ||
		(currentSigned.LessThan(decimal.Zero) && signedDelta.LessThan(decimal.Zero))

	if sameDirection {
		totalCost := existing.CostBasis.Add(filledQty.Mul(avgPrice))
		totalQty := existing.Quantity.Add(filledQty)
		existing.AvgEntryPrice = totalCost.Div(totalQty)
		existing.Quantity = totalQty
		existing.CostBasis = totalCost
		return existing, false, decimal.Zero
	}

	closingQty := decimal.Min(existing.Quantity, filledQty)
	var pnl decimal.Decimal
	if existing.Side == types.PositionSideLong {
		pnl = avgPrice.Sub(existing.AvgEntryPrice).Mul(closingQty)
	} else {
		pnl = existing.AvgEntryPrice.Sub(avgPrice).Mul(closingQty)
	}
	existing.RealizedPnL = existing.RealizedPnL.Add(pnl)

	if newSigned.IsZero() {
		existing.Quantity = decimal.Zero
		existing.IsOpen = false
		closedAt := now
		existing.ClosedAt = &closedAt
		return existing, true, pnl
	}

	if (currentSigned.GreaterThan(decimal.Zero) && newSigned.LessThan(decimal.Zero)) ||
		(currentSigned.LessThan(decimal.Zero) && newSigned.GreaterThan(decimal.Zero)) {
		existing.Side = flipSide(existing.Side)
		existing.Quantity = newSigned.Abs()
		existing.AvgEntryPrice = avgPrice
		existing.CostBasis = existing.Quantity.Mul(avgPrice)
		return existing, false, pnl
	}

	existing.Quantity = newSigned.Abs()
	existing.CostBasis = existing.Quantity.Mul(existing.AvgEntryPrice)
	return existing, false, pnl
}

func flipSide(s types.PositionSide) types.PositionSide {
	if s == types.PositionSideLong {
		return types.PositionSideShort
	}
	return types.PositionSideLong
}

// mapBrokerStatus normalizes a broker-native status string into the
// engine's closed OrderStatus set. Unrecognized statuses map to PENDING,
// the safest default while reconciliation continues.
func mapBrokerStatus(brokerStatus string) types.OrderStatus {
	switch brokerStatus {
	case "submitted", "accepted", "new", "open":
		return types.OrderStatusOpen
	case "filled":
		return types.OrderStatusFilled
	case "partially_filled", "partial_fill":
		return types.OrderStatusPartiallyFilled
	case "cancelled", "canceled", "expired":
		return types.OrderStatusCancelled
	case "rejected":
		return types.OrderStatusRejected
	case "pending", "":
		return types.OrderStatusPending
	default:
		return types.OrderStatusPending
	}
}

func (s *Service) appendAudit(ctx context.Context, eventType types.AuditEventType, description string, details map[string]any, orderID, strategyID *string) {
	log := &types.AuditLog{
		ID:          utils.GenerateAuditID(),
		EventType:   eventType,
		Description: description,
		Details:     details,
		StrategyID:  strategyID,
		OrderID:     orderID,
		Timestamp:   s.now(),
	}
	if err := s.store.AuditLogs().Append(ctx, log); err != nil {
		s.logger.Warn("failed to append audit log", zap.Error(err))
	}
}
