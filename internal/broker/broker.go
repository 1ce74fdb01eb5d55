// Package broker defines the Broker Port and its paper-trading implementation.
package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

// AccountInfo is the broker's view of the trading account.
type AccountInfo struct {
	Cash           decimal.Decimal
	Equity         decimal.Decimal
	PortfolioValue decimal.Decimal
	BuyingPower    decimal.Decimal
	Status         string
	TradingBlocked bool
}

// BrokerPosition is one broker-reported open position.
type BrokerPosition struct {
	Symbol           string
	Quantity         decimal.Decimal // signed: negative for short
	Side             types.PositionSide
	AvgEntryPrice    decimal.Decimal
	CurrentPrice     decimal.Decimal
	MarketValue      decimal.Decimal
	CostBasis        decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	UnrealizedPnLPct decimal.Decimal
}

// OrderResponse is the broker's view of a submitted or queried order.
type OrderResponse struct {
	ID             string
	Symbol         string
	Side           types.OrderSide
	Type           types.OrderType
	Quantity       decimal.Decimal
	FilledQuantity decimal.Decimal
	Price          *decimal.Decimal
	AvgFillPrice   *decimal.Decimal
	Status         string // broker-native status string, mapped by the execution service
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SymbolCapabilities describes what a symbol supports on this broker.
type SymbolCapabilities struct {
	Tradable       bool
	Fractionable   bool
	MarginEligible bool
}

// TradeUpdate is pushed to a streaming callback when the broker supports it.
type TradeUpdate struct {
	OrderID string
	Status  string
	Symbol  string
}

// Port is the trading engine's abstraction over a brokerage. PaperBroker is
// the only implementation built out; a live vendor SDK sits behind the same
// interface (see LiveBroker stub).
type Port interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	GetAccountInfo(ctx context.Context) (*AccountInfo, error)
	GetPositions(ctx context.Context) ([]BrokerPosition, error)

	SubmitOrder(ctx context.Context, symbol string, side types.OrderSide, orderType types.OrderType, quantity decimal.Decimal, price *decimal.Decimal) (*OrderResponse, error)
	CancelOrder(ctx context.Context, id string) error
	GetOrder(ctx context.Context, id string) (*OrderResponse, error)
	GetOrders(ctx context.Context, status string) ([]OrderResponse, error)

	GetMarketData(ctx context.Context, symbol string) (*types.Quote, error)
	GetHistoricalBars(ctx context.Context, symbol string, start, end time.Time, limit int) ([]*types.OHLCV, error)

	IsMarketOpen(ctx context.Context) (bool, error)
	GetNextMarketOpen(ctx context.Context) (*time.Time, error)

	IsSymbolTradable(ctx context.Context, symbol string) (bool, error)
	IsSymbolFractionable(ctx context.Context, symbol string) (bool, error)
	GetSymbolCapabilities(ctx context.Context, symbol string) (SymbolCapabilities, error)

	// StartTradeUpdateStream/StopTradeUpdateStream are optional; a broker
	// that does not support streaming returns false from Start and treats
	// Stop as a no-op, per the Broker Port's documented default.
	StartTradeUpdateStream(ctx context.Context, callback func(TradeUpdate)) bool
	StopTradeUpdateStream()
}
