package broker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/apperrors"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/utils"
)

// PaperBroker is a deterministic, in-memory simulated broker: market orders
// fill immediately against the last price fed via SetPrice, limit
// orders fill immediately when marketable and otherwise rest in the book
// until ProcessPendingOrders observes a crossing price.
type PaperBroker struct {
	logger *zap.Logger

	mu           sync.RWMutex
	connected    bool
	clock        func() time.Time
	limiter      *rate.Limiter
	marketOpenFn func(time.Time) bool

	cash      decimal.Decimal
	prices    map[string]*types.Quote
	bars      map[string][]*types.OHLCV
	orders    map[string]*OrderResponse
	positions map[string]*BrokerPosition

	nextOrderSeq  int
	slippageBps   decimal.Decimal
	commissionBps decimal.Decimal
}

// NewPaperBroker creates a paper broker seeded with the given starting cash.
func NewPaperBroker(logger *zap.Logger, initialCash decimal.Decimal) *PaperBroker {
	return &PaperBroker{
		logger:        logger.Named("broker.paper"),
		clock:         time.Now,
		limiter:       rate.NewLimiter(rate.Limit(20), 20), // 20 req/s burst 20, protects a future live vendor swap
		marketOpenFn:  defaultMarketOpen,
		cash:          initialCash,
		prices:        make(map[string]*types.Quote),
		bars:          make(map[string][]*types.OHLCV),
		orders:        make(map[string]*OrderResponse),
		positions:     make(map[string]*BrokerPosition),
		slippageBps:   decimal.NewFromInt(5),
		commissionBps: decimal.NewFromInt(0), // paper trading: commission-free by default
	}
}

func defaultMarketOpen(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	hm := t.Hour()*60 + t.Minute()
	return hm >= 9*60+30 && hm < 16*60
}

// SetClock overrides the broker's notion of "now" (for deterministic backtests/tests).
func (b *PaperBroker) SetClock(clock func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock = clock
}

// SetPrice feeds the latest known quote for a symbol.
func (b *PaperBroker) SetPrice(symbol string, quote types.Quote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[symbol] = &quote
}

// SetBars seeds historical OHLCV bars for a symbol.
func (b *PaperBroker) SetBars(symbol string, bars []*types.OHLCV) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bars[symbol] = bars
}

func (b *PaperBroker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	b.logger.Info("paper broker connected")
	return nil
}

func (b *PaperBroker) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	return nil
}

func (b *PaperBroker) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

func (b *PaperBroker) GetAccountInfo(ctx context.Context) (*AccountInfo, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewBrokerError("GetAccountInfo", true, err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	marketValue := decimal.Zero
	for _, pos := range b.positions {
		marketValue = marketValue.Add(pos.MarketValue)
	}

	equity := b.cash.Add(marketValue)

	return &AccountInfo{
		Cash:           b.cash,
		Equity:         equity,
		PortfolioValue: equity,
		BuyingPower:    b.cash,
		Status:         "ACTIVE",
	}, nil
}

func (b *PaperBroker) GetPositions(ctx context.Context) ([]BrokerPosition, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]BrokerPosition, 0, len(b.positions))
	for _, pos := range b.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (b *PaperBroker) SubmitOrder(ctx context.Context, symbol string, side types.OrderSide, orderType types.OrderType, quantity decimal.Decimal, price *decimal.Decimal) (*OrderResponse, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewBrokerError("SubmitOrder", true, err)
	}
	if orderType != types.OrderTypeMarket && price == nil {
		return nil, apperrors.NewValidationError("price", "required for non-market order types")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextOrderSeq++
	now := b.clock()
	resp := &OrderResponse{
		ID:        fmt.Sprintf("paper-%d", b.nextOrderSeq),
		Symbol:    symbol,
		Side:      side,
		Type:      orderType,
		Quantity:  quantity,
		Price:     price,
		Status:    "open",
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.orders[resp.ID] = resp

	b.tryFillLocked(resp)
	return resp, nil
}

// tryFillLocked attempts to fill a resting order against the last known
// price; market orders always fill, limit orders fill only when marketable.
// Caller must hold b.mu.
func (b *PaperBroker) tryFillLocked(order *OrderResponse) {
	quote, ok := b.prices[order.Symbol]
	if !ok {
		return
	}

	fillPrice := quote.Price
	switch order.Type {
	case types.OrderTypeMarket:
		// always marketable
	case types.OrderTypeLimit, types.OrderTypeStopLimit:
		limit := *order.Price
		if order.Side == types.OrderSideBuy && quote.Price.GreaterThan(limit) {
			return
		}
		if order.Side == types.OrderSideSell && quote.Price.LessThan(limit) {
			return
		}
		fillPrice = limit
	case types.OrderTypeStop:
		stop := *order.Price
		if order.Side == types.OrderSideBuy && quote.Price.LessThan(stop) {
			return
		}
		if order.Side == types.OrderSideSell && quote.Price.GreaterThan(stop) {
			return
		}
	}

	slippage := fillPrice.Mul(b.slippageBps).Div(decimal.NewFromInt(10000))
	if order.Side == types.OrderSideBuy {
		fillPrice = fillPrice.Add(slippage)
	} else {
		fillPrice = fillPrice.Sub(slippage)
	}
	fillPrice = utils.MaxDecimal(fillPrice, decimal.NewFromFloat(0.0001))

	cost := quantity_times_price(order.Quantity, fillPrice)
	commission := cost.Mul(b.commissionBps).Div(decimal.NewFromInt(10000))

	if order.Side == types.OrderSideBuy {
		b.cash = b.cash.Sub(cost).Sub(commission)
	} else {
		b.cash = b.cash.Add(cost).Sub(commission)
	}

	b.applyFillToPositionLocked(order.Symbol, order.Side, order.Quantity, fillPrice)

	order.FilledQuantity = order.Quantity
	order.AvgFillPrice = &fillPrice
	order.Status = "filled"
	order.UpdatedAt = b.clock()
}

func quantity_times_price(q, p decimal.Decimal) decimal.Decimal { return q.Mul(p) }

func (b *PaperBroker) applyFillToPositionLocked(symbol string, side types.OrderSide, quantity, price decimal.Decimal) {
	pos, ok := b.positions[symbol]
	signedQty := quantity
	if side == types.OrderSideSell {
		signedQty = quantity.Neg()
	}

	if !ok {
		posSide := types.PositionSideLong
		if side == types.OrderSideSell {
			posSide = types.PositionSideShort
		}
		b.positions[symbol] = &BrokerPosition{
			Symbol:        symbol,
			Quantity:      signedQty,
			Side:          posSide,
			AvgEntryPrice: price,
			CurrentPrice:  price,
			CostBasis:     quantity.Mul(price),
			MarketValue:   quantity.Mul(price),
		}
		return
	}

	newQty := pos.Quantity.Add(signedQty)
	if newQty.IsZero() {
		delete(b.positions, symbol)
		return
	}

	sameDirection := (pos.Quantity.IsPositive() && signedQty.IsPositive()) || (pos.Quantity.IsNegative() && signedQty.IsNegative())
	if sameDirection {
		totalCost := pos.AvgEntryPrice.Mul(pos.Quantity.Abs()).Add(price.Mul(signedQty.Abs()))
		pos.AvgEntryPrice = totalCost.Div(newQty.Abs())
	}
	pos.Quantity = newQty
	pos.CurrentPrice = price
	pos.CostBasis = pos.AvgEntryPrice.Mul(newQty.Abs())
	pos.MarketValue = price.Mul(newQty.Abs())
	if newQty.IsPositive() {
		pos.Side = types.PositionSideLong
	} else {
		pos.Side = types.PositionSideShort
	}
}

// ProcessPendingOrders re-attempts fills for all resting orders against
// current prices; call once per tick after prices are refreshed.
func (b *PaperBroker) ProcessPendingOrders() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, order := range b.orders {
		if order.Status == "open" {
			b.tryFillLocked(order)
		}
	}
}

func (b *PaperBroker) CancelOrder(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.orders[id]
	if !ok {
		return apperrors.NewIntegrityError("CancelOrder", "unknown order id "+id)
	}
	if order.Status == "filled" {
		return apperrors.NewValidationError("id", "order already filled")
	}
	order.Status = "cancelled"
	order.UpdatedAt = b.clock()
	return nil
}

func (b *PaperBroker) GetOrder(ctx context.Context, id string) (*OrderResponse, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	order, ok := b.orders[id]
	if !ok {
		return nil, apperrors.NewIntegrityError("GetOrder", "unknown order id "+id)
	}
	copied := *order
	return &copied, nil
}

func (b *PaperBroker) GetOrders(ctx context.Context, status string) ([]OrderResponse, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]OrderResponse, 0, len(b.orders))
	for _, order := range b.orders {
		if status == "" || order.Status == status {
			out = append(out, *order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (b *PaperBroker) GetMarketData(ctx context.Context, symbol string) (*types.Quote, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewBrokerError("GetMarketData", true, err)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	quote, ok := b.prices[symbol]
	if !ok {
		return nil, apperrors.NewBrokerError("GetMarketData", false, fmt.Errorf("no price data for %s", symbol))
	}
	copied := *quote
	return &copied, nil
}

func (b *PaperBroker) GetHistoricalBars(ctx context.Context, symbol string, start, end time.Time, limit int) ([]*types.OHLCV, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bars, ok := b.bars[symbol]
	if !ok {
		return nil, apperrors.NewBrokerError("GetHistoricalBars", false, fmt.Errorf("no bar data for %s", symbol))
	}

	out := make([]*types.OHLCV, 0, len(bars))
	for _, bar := range bars {
		if (bar.Timestamp.Equal(start) || bar.Timestamp.After(start)) && (end.IsZero() || !bar.Timestamp.After(end)) {
			out = append(out, bar)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (b *PaperBroker) IsMarketOpen(ctx context.Context) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.marketOpenFn(b.clock()), nil
}

func (b *PaperBroker) GetNextMarketOpen(ctx context.Context) (*time.Time, error) {
	b.mu.RLock()
	now := b.clock()
	b.mu.RUnlock()

	t := now
	for i := 0; i < 8; i++ {
		t = t.Add(24 * time.Hour)
		candidate := time.Date(t.Year(), t.Month(), t.Day(), 9, 30, 0, 0, t.Location())
		if b.marketOpenFn(candidate) {
			return &candidate, nil
		}
	}
	return nil, nil
}

func (b *PaperBroker) IsSymbolTradable(ctx context.Context, symbol string) (bool, error) {
	return utils.ValidSymbol(utils.NormalizeSymbol(symbol)), nil
}

func (b *PaperBroker) IsSymbolFractionable(ctx context.Context, symbol string) (bool, error) {
	return false, nil
}

func (b *PaperBroker) GetSymbolCapabilities(ctx context.Context, symbol string) (SymbolCapabilities, error) {
	tradable, _ := b.IsSymbolTradable(ctx, symbol)
	return SymbolCapabilities{Tradable: tradable, Fractionable: false, MarginEligible: false}, nil
}

// StartTradeUpdateStream is unsupported by the paper broker; it returns
// false per the Broker Port's documented default for non-streaming brokers.
func (b *PaperBroker) StartTradeUpdateStream(ctx context.Context, callback func(TradeUpdate)) bool {
	return false
}

func (b *PaperBroker) StopTradeUpdateStream() {}
