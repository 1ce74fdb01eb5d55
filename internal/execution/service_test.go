package execution_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/broker"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/execution"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/risk"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/storage/memstore"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

type fakeBroker struct {
	connected  bool
	marketOpen bool
	price      decimal.Decimal
	account    broker.AccountInfo
	nextOrder  broker.OrderResponse
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		connected:  true,
		marketOpen: true,
		price:      decimal.NewFromInt(100),
		account: broker.AccountInfo{
			Cash: decimal.NewFromInt(50000), Equity: decimal.NewFromInt(50000),
			PortfolioValue: decimal.NewFromInt(50000), BuyingPower: decimal.NewFromInt(50000),
		},
	}
}

func (f *fakeBroker) Connect(ctx context.Context) error    { f.connected = true; return nil }
func (f *fakeBroker) Disconnect(ctx context.Context) error { f.connected = false; return nil }
func (f *fakeBroker) IsConnected() bool                    { return f.connected }

func (f *fakeBroker) GetAccountInfo(ctx context.Context) (*broker.AccountInfo, error) {
	acc := f.account
	return &acc, nil
}
func (f *fakeBroker) GetPositions(ctx context.Context) ([]broker.BrokerPosition, error) {
	return nil, nil
}

func (f *fakeBroker) SubmitOrder(ctx context.Context, symbol string, side types.OrderSide, orderType types.OrderType, quantity decimal.Decimal, price *decimal.Decimal) (*broker.OrderResponse, error) {
	fillPrice := f.price
	resp := broker.OrderResponse{
		ID: "ext-1", Symbol: symbol, Side: side, Type: orderType,
		Quantity: quantity, FilledQuantity: quantity, AvgFillPrice: &fillPrice,
		Status: "filled", CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	return &resp, nil
}
func (f *fakeBroker) CancelOrder(ctx context.Context, id string) error { return nil }
func (f *fakeBroker) GetOrder(ctx context.Context, id string) (*broker.OrderResponse, error) {
	return &f.nextOrder, nil
}
func (f *fakeBroker) GetOrders(ctx context.Context, status string) ([]broker.OrderResponse, error) {
	return nil, nil
}

func (f *fakeBroker) GetMarketData(ctx context.Context, symbol string) (*types.Quote, error) {
	return &types.Quote{Symbol: symbol, Price: f.price, Timestamp: time.Now()}, nil
}
func (f *fakeBroker) GetHistoricalBars(ctx context.Context, symbol string, start, end time.Time, limit int) ([]*types.OHLCV, error) {
	return nil, nil
}

func (f *fakeBroker) IsMarketOpen(ctx context.Context) (bool, error) { return f.marketOpen, nil }
func (f *fakeBroker) GetNextMarketOpen(ctx context.Context) (*time.Time, error) {
	t := time.Now()
	return &t, nil
}

func (f *fakeBroker) IsSymbolTradable(ctx context.Context, symbol string) (bool, error) { return true, nil }
func (f *fakeBroker) IsSymbolFractionable(ctx context.Context, symbol string) (bool, error) {
	return true, nil
}
func (f *fakeBroker) GetSymbolCapabilities(ctx context.Context, symbol string) (broker.SymbolCapabilities, error) {
	return broker.SymbolCapabilities{Tradable: true}, nil
}

func (f *fakeBroker) StartTradeUpdateStream(ctx context.Context, callback func(broker.TradeUpdate)) bool {
	return false
}
func (f *fakeBroker) StopTradeUpdateStream() {}

func newTestService(b *fakeBroker) *execution.Service {
	svc, _ := newTestServiceWithRisk(b)
	return svc
}

func newTestServiceWithRisk(b *fakeBroker) (*execution.Service, *risk.Manager) {
	store := memstore.New()
	riskMgr := risk.NewManager(zap.NewNop(), types.DefaultRiskLimits())
	svc := execution.NewService(zap.NewNop(), b, store, riskMgr, nil, execution.Config{
		MaxPositionSize:     decimal.NewFromInt(100000),
		OrderThrottlePerMin: 5,
	})
	return svc, riskMgr
}

func TestSubmitOrderFillsMarketOrderImmediately(t *testing.T) {
	b := newFakeBroker()
	svc := newTestService(b)

	order, err := svc.SubmitOrder(context.Background(), "AAPL", types.OrderSideBuy, types.OrderTypeMarket, decimal.NewFromInt(10), nil, nil)
	if err != nil {
		t.Fatalf("SubmitOrder returned error: %v", err)
	}
	if order.Status != types.OrderStatusFilled {
		t.Fatalf("expected order to be filled, got status %s", order.Status)
	}
}

func TestSubmitOrderRejectsWhenMarketClosed(t *testing.T) {
	b := newFakeBroker()
	b.marketOpen = false
	svc := newTestService(b)

	_, err := svc.SubmitOrder(context.Background(), "AAPL", types.OrderSideBuy, types.OrderTypeMarket, decimal.NewFromInt(10), nil, nil)
	if err == nil {
		t.Fatal("expected an error when the market is closed")
	}
}

func TestSubmitOrderRejectsWhenKillSwitchActive(t *testing.T) {
	execution.SetKillSwitch(true)
	defer execution.SetKillSwitch(false)

	b := newFakeBroker()
	svc := newTestService(b)
	_, err := svc.SubmitOrder(context.Background(), "AAPL", types.OrderSideBuy, types.OrderTypeMarket, decimal.NewFromInt(10), nil, nil)
	if err == nil {
		t.Fatal("expected an error while the kill switch is active")
	}
}

func TestSubmitOrderEnforcesThrottle(t *testing.T) {
	b := newFakeBroker()
	svc := newTestService(b)

	var lastErr error
	for i := 0; i < 10; i++ {
		_, lastErr = svc.SubmitOrder(context.Background(), "AAPL", types.OrderSideBuy, types.OrderTypeMarket, decimal.NewFromInt(1), nil, nil)
	}
	if lastErr == nil {
		t.Fatal("expected the throttle to reject an order after exceeding the per-minute cap")
	}
}

func TestSubmitOrderRejectsWhenBrokerDisconnected(t *testing.T) {
	b := newFakeBroker()
	b.connected = false
	svc := newTestService(b)

	_, err := svc.SubmitOrder(context.Background(), "AAPL", types.OrderSideBuy, types.OrderTypeMarket, decimal.NewFromInt(10), nil, nil)
	if err == nil {
		t.Fatal("expected an error when the broker is not connected")
	}
}

func TestSubmitOrderRejectsStopOrderWithoutPrice(t *testing.T) {
	b := newFakeBroker()
	svc := newTestService(b)

	_, err := svc.SubmitOrder(context.Background(), "AAPL", types.OrderSideBuy, types.OrderTypeStop, decimal.NewFromInt(10), nil, nil)
	if err == nil {
		t.Fatal("expected an error for a stop order submitted without a price")
	}

	_, err = svc.SubmitOrder(context.Background(), "AAPL", types.OrderSideBuy, types.OrderTypeStopLimit, decimal.NewFromInt(10), nil, nil)
	if err == nil {
		t.Fatal("expected an error for a stop-limit order submitted without a price")
	}
}

func TestProcessFillReportsRealizedLossToRiskManager(t *testing.T) {
	b := newFakeBroker()
	svc, riskMgr := newTestServiceWithRisk(b)

	b.price = decimal.NewFromInt(100)
	if _, err := svc.SubmitOrder(context.Background(), "AAPL", types.OrderSideBuy, types.OrderTypeMarket, decimal.NewFromInt(10), nil, nil); err != nil {
		t.Fatalf("unexpected error opening position: %v", err)
	}

	b.price = decimal.NewFromInt(90)
	if _, err := svc.SubmitOrder(context.Background(), "AAPL", types.OrderSideSell, types.OrderTypeMarket, decimal.NewFromInt(10), nil, nil); err != nil {
		t.Fatalf("unexpected error closing position: %v", err)
	}

	if got := riskMgr.GetMetrics().ConsecutiveLosses; got != 1 {
		t.Fatalf("expected the closing loss to register with the risk manager, got %d consecutive losses", got)
	}
}
