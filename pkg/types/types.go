// Package types provides shared domain type definitions for the trading engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide represents buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType represents the type of order.
//
// Stop-limit orders carry a single optional Price field used for both the
// stop trigger and the limit leg; a conforming broker adapter may split this
// into distinct fields without changing the rest of the contract.
type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStop      OrderType = "stop"
	OrderTypeStopLimit OrderType = "stop_limit"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
)

// IsTerminal reports whether the status is a terminal order state.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// PositionSide represents long or short exposure.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// TradeType distinguishes the role a trade plays against a position.
type TradeType string

const (
	TradeTypeOpen       TradeType = "open"
	TradeTypeClose      TradeType = "close"
	TradeTypeAdjustment TradeType = "adjustment"
)

// ConfigValueType tags how a Config value should be interpreted.
type ConfigValueType string

const (
	ConfigValueString ConfigValueType = "string"
	ConfigValueInt    ConfigValueType = "int"
	ConfigValueFloat  ConfigValueType = "float"
	ConfigValueBool   ConfigValueType = "bool"
	ConfigValueJSON   ConfigValueType = "json"
)

// AuditEventType enumerates the closed set of audit log event kinds.
type AuditEventType string

const (
	AuditOrderCreated     AuditEventType = "order_created"
	AuditOrderFilled      AuditEventType = "order_filled"
	AuditOrderCancelled   AuditEventType = "order_cancelled"
	AuditStrategyStarted  AuditEventType = "strategy_started"
	AuditStrategyStopped  AuditEventType = "strategy_stopped"
	AuditPositionOpened   AuditEventType = "position_opened"
	AuditPositionClosed   AuditEventType = "position_closed"
	AuditConfigUpdated    AuditEventType = "config_updated"
	AuditRunnerStarted    AuditEventType = "runner_started"
	AuditRunnerStopped    AuditEventType = "runner_stopped"
	AuditError            AuditEventType = "error"
)

// OptimizationSource records whether an optimizer run was triggered inline or via a worker.
type OptimizationSource string

const (
	OptimizationSourceSync  OptimizationSource = "sync"
	OptimizationSourceAsync OptimizationSource = "async"
)

// OptimizationStatus represents the lifecycle of an optimizer run.
type OptimizationStatus string

const (
	OptimizationQueued    OptimizationStatus = "queued"
	OptimizationRunning   OptimizationStatus = "running"
	OptimizationSucceeded OptimizationStatus = "succeeded"
	OptimizationFailed    OptimizationStatus = "failed"
	OptimizationCancelled OptimizationStatus = "cancelled"
)

// Regime is the coarse market-state label derived from index closes.
type Regime string

const (
	RegimeTrendingUp        Regime = "trending_up"
	RegimeTrendingDown      Regime = "trending_down"
	RegimeRangeBound        Regime = "range_bound"
	RegimeHighVolatility    Regime = "high_volatility_range"
	RegimeUnknown           Regime = "unknown"
)

// OHLCV is a single daily (or intraday) candlestick.
type OHLCV struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// Quote is the latest bid/ask/mid for a symbol at a point in time.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"` // mid of bid/ask
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Volume    decimal.Decimal `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

// Order represents a trading order. Status transitions are
// PENDING -> OPEN -> (PARTIALLY_FILLED)* -> terminal (FILLED/CANCELLED/REJECTED).
type Order struct {
	ID             string          `json:"id" db:"id"`
	ExternalID     *string         `json:"externalId,omitempty" db:"external_id"`
	Symbol         string          `json:"symbol" db:"symbol"`
	Side           OrderSide       `json:"side" db:"side"`
	Type           OrderType       `json:"type" db:"type"`
	Status         OrderStatus     `json:"status" db:"status"`
	Quantity       decimal.Decimal `json:"quantity" db:"quantity"`
	Price          *decimal.Decimal `json:"price,omitempty" db:"price"`
	FilledQuantity decimal.Decimal `json:"filledQuantity" db:"filled_quantity"`
	AvgFillPrice   *decimal.Decimal `json:"avgFillPrice,omitempty" db:"avg_fill_price"`
	StrategyID     *string         `json:"strategyId,omitempty" db:"strategy_id"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
	FilledAt       *time.Time      `json:"filledAt,omitempty" db:"filled_at"`
}

// Position represents a position in a single symbol. At most one open
// Position exists per (symbol, side) at a time.
type Position struct {
	Symbol        string          `json:"symbol" db:"symbol"`
	Side          PositionSide    `json:"side" db:"side"`
	Quantity      decimal.Decimal `json:"quantity" db:"quantity"`
	AvgEntryPrice decimal.Decimal `json:"avgEntryPrice" db:"avg_entry_price"`
	CostBasis     decimal.Decimal `json:"costBasis" db:"cost_basis"`
	RealizedPnL   decimal.Decimal `json:"realizedPnl" db:"realized_pnl"`
	IsOpen        bool            `json:"isOpen" db:"is_open"`
	OpenedAt      time.Time       `json:"openedAt" db:"opened_at"`
	ClosedAt      *time.Time      `json:"closedAt,omitempty" db:"closed_at"`
}

// Trade is an append-only record of an executed fill.
type Trade struct {
	ID          string          `json:"id" db:"id"`
	OrderID     string          `json:"orderId" db:"order_id"`
	Symbol      string          `json:"symbol" db:"symbol"`
	Side        OrderSide       `json:"side" db:"side"`
	Type        TradeType       `json:"type" db:"type"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Commission  decimal.Decimal `json:"commission" db:"commission"`
	Fees        decimal.Decimal `json:"fees" db:"fees"`
	RealizedPnL *decimal.Decimal `json:"realizedPnl,omitempty" db:"realized_pnl"`
	StrategyID  *string         `json:"strategyId,omitempty" db:"strategy_id"`
	ExecutedAt  time.Time       `json:"executedAt" db:"executed_at"`
}

// Strategy is a row describing a loaded strategy instance and its rollup stats.
type Strategy struct {
	ID           string         `json:"id" db:"id"`
	Name         string         `json:"name" db:"name"`
	StrategyType string         `json:"strategyType" db:"strategy_type"`
	Config       map[string]any `json:"config" db:"-"`
	IsEnabled    bool           `json:"isEnabled" db:"is_enabled"`
	IsActive     bool           `json:"isActive" db:"is_active"`
	TotalTrades  int            `json:"totalTrades" db:"total_trades"`
	WinRate      decimal.Decimal `json:"winRate" db:"win_rate"`
	TotalPnL     decimal.Decimal `json:"totalPnl" db:"total_pnl"`
	LastRunAt    *time.Time     `json:"lastRunAt,omitempty" db:"last_run_at"`
}

// ConfigEntry is a key/value row with upsert semantics, also used to persist
// runner checkpoint blobs.
type ConfigEntry struct {
	Key         string          `json:"key" db:"key"`
	Value       string          `json:"value" db:"value"`
	ValueType   ConfigValueType `json:"valueType" db:"value_type"`
	Description string          `json:"description" db:"description"`
}

// AuditLog is an append-only operational event record.
type AuditLog struct {
	ID          string         `json:"id" db:"id"`
	EventType   AuditEventType `json:"eventType" db:"event_type"`
	Description string         `json:"description" db:"description"`
	Details     map[string]any `json:"details" db:"-"`
	UserID      *string        `json:"userId,omitempty" db:"user_id"`
	StrategyID  *string        `json:"strategyId,omitempty" db:"strategy_id"`
	OrderID     *string        `json:"orderId,omitempty" db:"order_id"`
	Timestamp   time.Time      `json:"timestamp" db:"timestamp"`
}

// PortfolioSnapshot is an append-only point-in-time account snapshot, one per
// successful tick.
type PortfolioSnapshot struct {
	Timestamp        time.Time       `json:"timestamp" db:"timestamp"`
	Equity           decimal.Decimal `json:"equity" db:"equity"`
	Cash             decimal.Decimal `json:"cash" db:"cash"`
	BuyingPower      decimal.Decimal `json:"buyingPower" db:"buying_power"`
	MarketValue      decimal.Decimal `json:"marketValue" db:"market_value"`
	UnrealizedPnL    decimal.Decimal `json:"unrealizedPnl" db:"unrealized_pnl"`
	RealizedPnLTotal decimal.Decimal `json:"realizedPnlTotal" db:"realized_pnl_total"`
	OpenPositions    int             `json:"openPositions" db:"open_positions"`
}

// OptimizationRun is an upserted record of one optimizer invocation.
type OptimizationRun struct {
	RunID          string              `json:"runId" db:"run_id"`
	StrategyID     string              `json:"strategyId" db:"strategy_id"`
	Source         OptimizationSource  `json:"source" db:"source"`
	Status         OptimizationStatus  `json:"status" db:"status"`
	Request        map[string]any      `json:"request" db:"-"`
	Result         map[string]any      `json:"result,omitempty" db:"-"`
	SummaryMetrics map[string]decimal.Decimal `json:"summaryMetrics,omitempty" db:"-"`
	CreatedAt      time.Time           `json:"createdAt" db:"created_at"`
	StartedAt      *time.Time          `json:"startedAt,omitempty" db:"started_at"`
	CompletedAt    *time.Time          `json:"completedAt,omitempty" db:"completed_at"`
}

// EquityCurvePoint is one sample of the backtester's equity curve.
type EquityCurvePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Equity    decimal.Decimal `json:"equity"`
	Cash      decimal.Decimal `json:"cash"`
	Drawdown  decimal.Decimal `json:"drawdown"`
}

// PerformanceMetrics summarizes a completed backtest or optimizer candidate run.
type PerformanceMetrics struct {
	TotalReturn         decimal.Decimal `json:"totalReturn"`
	AnnualizedReturn    decimal.Decimal `json:"annualizedReturn"`
	AnnualizedVolatility decimal.Decimal `json:"annualizedVolatility"`
	SharpeRatio         decimal.Decimal `json:"sharpeRatio"`
	SortinoRatio        decimal.Decimal `json:"sortinoRatio"`
	MaxDrawdown         decimal.Decimal `json:"maxDrawdown"`
	MaxDrawdownDate     time.Time       `json:"maxDrawdownDate"`
	WinRate             decimal.Decimal `json:"winRate"`
	ProfitFactor        decimal.Decimal `json:"profitFactor"`
	TotalTrades         int             `json:"totalTrades"`
	WinningTrades       int             `json:"winningTrades"`
	LosingTrades        int             `json:"losingTrades"`
	AvgWin              decimal.Decimal `json:"avgWin"`
	AvgLoss             decimal.Decimal `json:"avgLoss"`
	LargestWin          decimal.Decimal `json:"largestWin"`
	LargestLoss         decimal.Decimal `json:"largestLoss"`
	Expectancy          decimal.Decimal `json:"expectancy"`
	CalmarRatio         decimal.Decimal `json:"calmarRatio"`
	MaxConsecutiveLosses int            `json:"maxConsecutiveLosses"`
	RecoveryFactor      decimal.Decimal `json:"recoveryFactor"`
	AvgHoldDays         decimal.Decimal `json:"avgHoldDays"`
	SlippageApplied     decimal.Decimal `json:"slippageApplied"`
}

// DiagnosticsReport captures why signals were blocked and why positions exited,
// for a single backtest run.
type DiagnosticsReport struct {
	BlockedReasons map[string]int `json:"blockedReasons"`
	ExitReasons    map[string]int `json:"exitReasons"`
	Parameters     map[string]decimal.Decimal `json:"parameters"`
	TopBlockers    []string       `json:"topBlockers"`
}

// RiskMetrics summarizes tail-risk statistics derived from an equity curve.
type RiskMetrics struct {
	DailyVolatility  decimal.Decimal `json:"dailyVolatility"`
	AnnualVolatility decimal.Decimal `json:"annualVolatility"`
	VaR95            decimal.Decimal `json:"var95"`
	VaR99            decimal.Decimal `json:"var99"`
	CVaR95           decimal.Decimal `json:"cvar95"`
}

// BacktestReport is the full output of a backtester run.
type BacktestReport struct {
	Metrics     PerformanceMetrics  `json:"metrics"`
	EquityCurve []EquityCurvePoint  `json:"equityCurve"`
	Trades      []*Trade            `json:"trades"`
	Diagnostics DiagnosticsReport   `json:"diagnostics"`
}
