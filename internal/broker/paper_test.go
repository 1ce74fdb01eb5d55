package broker_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/broker"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

func TestSubmitMarketOrderFillsImmediatelyAndUpdatesCash(t *testing.T) {
	b := broker.NewPaperBroker(zap.NewNop(), decimal.NewFromInt(10000))
	b.SetPrice("AAPL", types.Quote{Symbol: "AAPL", Price: decimal.NewFromInt(100), Timestamp: time.Now()})

	resp, err := b.SubmitOrder(context.Background(), "AAPL", types.OrderSideBuy, types.OrderTypeMarket, decimal.NewFromInt(10), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "filled" {
		t.Fatalf("expected order to be filled, got status %s", resp.Status)
	}
	if resp.FilledQuantity.IsZero() {
		t.Fatal("expected a non-zero filled quantity")
	}

	acc, err := b.GetAccountInfo(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acc.Cash.GreaterThanOrEqual(decimal.NewFromInt(10000)) {
		t.Fatalf("expected cash to decrease after buy, got %s", acc.Cash)
	}
}

func TestSubmitLimitOrderRestsWhenNotMarketable(t *testing.T) {
	b := broker.NewPaperBroker(zap.NewNop(), decimal.NewFromInt(10000))
	b.SetPrice("AAPL", types.Quote{Symbol: "AAPL", Price: decimal.NewFromInt(100), Timestamp: time.Now()})

	limit := decimal.NewFromInt(90)
	resp, err := b.SubmitOrder(context.Background(), "AAPL", types.OrderSideBuy, types.OrderTypeLimit, decimal.NewFromInt(5), &limit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "open" {
		t.Fatalf("expected a resting limit order, got status %s", resp.Status)
	}
}

func TestProcessPendingOrdersFillsRestingLimitWhenPriceCrosses(t *testing.T) {
	b := broker.NewPaperBroker(zap.NewNop(), decimal.NewFromInt(10000))
	b.SetPrice("AAPL", types.Quote{Symbol: "AAPL", Price: decimal.NewFromInt(100), Timestamp: time.Now()})

	limit := decimal.NewFromInt(90)
	resp, err := b.SubmitOrder(context.Background(), "AAPL", types.OrderSideBuy, types.OrderTypeLimit, decimal.NewFromInt(5), &limit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b.SetPrice("AAPL", types.Quote{Symbol: "AAPL", Price: decimal.NewFromInt(85), Timestamp: time.Now()})
	b.ProcessPendingOrders()

	updated, err := b.GetOrder(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != "filled" {
		t.Fatalf("expected the resting order to fill once price crossed, got %s", updated.Status)
	}
}

func TestSubmitOrderRejectsNonMarketOrderWithoutPrice(t *testing.T) {
	b := broker.NewPaperBroker(zap.NewNop(), decimal.NewFromInt(10000))
	_, err := b.SubmitOrder(context.Background(), "AAPL", types.OrderSideBuy, types.OrderTypeLimit, decimal.NewFromInt(5), nil)
	if err == nil {
		t.Fatal("expected an error for a limit order submitted without a price")
	}
}

func TestCancelOrderRejectsAlreadyFilledOrder(t *testing.T) {
	b := broker.NewPaperBroker(zap.NewNop(), decimal.NewFromInt(10000))
	b.SetPrice("AAPL", types.Quote{Symbol: "AAPL", Price: decimal.NewFromInt(100), Timestamp: time.Now()})

	resp, err := b.SubmitOrder(context.Background(), "AAPL", types.OrderSideBuy, types.OrderTypeMarket, decimal.NewFromInt(5), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.CancelOrder(context.Background(), resp.ID); err == nil {
		t.Fatal("expected cancelling a filled order to fail")
	}
}

func TestGetPositionsReflectsNetQuantityAfterBuyThenSell(t *testing.T) {
	b := broker.NewPaperBroker(zap.NewNop(), decimal.NewFromInt(10000))
	b.SetPrice("AAPL", types.Quote{Symbol: "AAPL", Price: decimal.NewFromInt(100), Timestamp: time.Now()})

	if _, err := b.SubmitOrder(context.Background(), "AAPL", types.OrderSideBuy, types.OrderTypeMarket, decimal.NewFromInt(10), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := b.SubmitOrder(context.Background(), "AAPL", types.OrderSideSell, types.OrderTypeMarket, decimal.NewFromInt(4), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	positions, err := b.GetPositions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected one open position, got %d", len(positions))
	}
	if !positions[0].Quantity.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected remaining quantity of 6, got %s", positions[0].Quantity)
	}
}

func TestGetPositionsRemovesSymbolWhenFullyClosed(t *testing.T) {
	b := broker.NewPaperBroker(zap.NewNop(), decimal.NewFromInt(10000))
	b.SetPrice("AAPL", types.Quote{Symbol: "AAPL", Price: decimal.NewFromInt(100), Timestamp: time.Now()})

	if _, err := b.SubmitOrder(context.Background(), "AAPL", types.OrderSideBuy, types.OrderTypeMarket, decimal.NewFromInt(10), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := b.SubmitOrder(context.Background(), "AAPL", types.OrderSideSell, types.OrderTypeMarket, decimal.NewFromInt(10), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	positions, err := b.GetPositions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 0 {
		t.Fatalf("expected the closed position to be removed, got %d", len(positions))
	}
}

func TestIsMarketOpenUsesInjectedClock(t *testing.T) {
	b := broker.NewPaperBroker(zap.NewNop(), decimal.NewFromInt(10000))

	weekday := time.Date(2026, 7, 27, 10, 0, 0, 0, time.UTC) // Monday, during session
	b.SetClock(func() time.Time { return weekday })
	open, err := b.IsMarketOpen(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !open {
		t.Fatal("expected market to be open on a weekday during session hours")
	}

	weekend := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC) // Saturday
	b.SetClock(func() time.Time { return weekend })
	open, err = b.IsMarketOpen(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if open {
		t.Fatal("expected market to be closed on a weekend")
	}
}

func TestGetMarketDataErrorsForUnknownSymbol(t *testing.T) {
	b := broker.NewPaperBroker(zap.NewNop(), decimal.NewFromInt(10000))
	if _, err := b.GetMarketData(context.Background(), "ZZZZ"); err == nil {
		t.Fatal("expected an error for a symbol with no seeded price")
	}
}

func TestIsSymbolTradableValidatesTickerFormat(t *testing.T) {
	b := broker.NewPaperBroker(zap.NewNop(), decimal.NewFromInt(10000))

	ok, err := b.IsSymbolTradable(context.Background(), "AAPL")
	if err != nil || !ok {
		t.Fatalf("expected AAPL to be tradable, err=%v ok=%v", err, ok)
	}

	ok, err = b.IsSymbolTradable(context.Background(), "1INVALID")
	if err != nil || ok {
		t.Fatalf("expected a malformed symbol to be rejected, err=%v ok=%v", err, ok)
	}
}
