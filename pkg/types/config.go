// Package types provides configuration types for the trading engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// TunableParam is the bounded description of one strategy parameter the
// optimizer is allowed to mutate.
type TunableParam struct {
	Name      string
	Min       decimal.Decimal
	Max       decimal.Decimal
	Step      decimal.Decimal
	IsInteger bool
}

// StrategyParams is the bounded set of fields a MetricsDrivenStrategy
// instance is configured with; this is the exact set the Optimizer mutates.
type StrategyParams struct {
	PositionSizeNotional  decimal.Decimal `json:"positionSizeNotional"`
	StopLossPct           decimal.Decimal `json:"stopLossPct"`
	TakeProfitPct         decimal.Decimal `json:"takeProfitPct"`
	TrailingStopPct       decimal.Decimal `json:"trailingStopPct"`
	AtrStopMult           decimal.Decimal `json:"atrStopMult"`
	DipBuyThresholdPct    decimal.Decimal `json:"dipBuyThresholdPct"`
	ZScoreEntryThreshold  decimal.Decimal `json:"zscoreEntryThreshold"`
	AllowedRegimes        []Regime        `json:"allowedRegimes"`
}

// DefaultStrategyParams returns the reference parameter set used when a
// strategy is loaded without overrides.
func DefaultStrategyParams() StrategyParams {
	return StrategyParams{
		PositionSizeNotional: decimal.NewFromInt(1000),
		StopLossPct:          decimal.NewFromFloat(5.0),
		TakeProfitPct:        decimal.NewFromFloat(10.0),
		TrailingStopPct:      decimal.NewFromFloat(6.0),
		AtrStopMult:          decimal.NewFromFloat(2.0),
		DipBuyThresholdPct:   decimal.NewFromFloat(3.0),
		ZScoreEntryThreshold: decimal.NewFromFloat(-1.5),
		AllowedRegimes:       []Regime{RegimeRangeBound},
	}
}

// TunableParamTable is the known set of optimizer-mutable parameters with
// their bounds, step size, and integer flag.
func TunableParamTable() []TunableParam {
	return []TunableParam{
		{Name: "position_size_notional", Min: decimal.NewFromInt(100), Max: decimal.NewFromInt(5000), Step: decimal.NewFromInt(50)},
		{Name: "stop_loss_pct", Min: decimal.NewFromFloat(0.5), Max: decimal.NewFromFloat(10), Step: decimal.NewFromFloat(0.1)},
		{Name: "take_profit_pct", Min: decimal.NewFromFloat(1), Max: decimal.NewFromFloat(30), Step: decimal.NewFromFloat(0.25)},
		{Name: "trailing_stop_pct", Min: decimal.NewFromFloat(0.5), Max: decimal.NewFromFloat(15), Step: decimal.NewFromFloat(0.1)},
		{Name: "atr_stop_mult", Min: decimal.NewFromFloat(0.5), Max: decimal.NewFromFloat(5), Step: decimal.NewFromFloat(0.1)},
		{Name: "dip_buy_threshold_pct", Min: decimal.NewFromFloat(0.5), Max: decimal.NewFromFloat(15), Step: decimal.NewFromFloat(0.1)},
		{Name: "zscore_entry_threshold", Min: decimal.NewFromFloat(-3), Max: decimal.NewFromFloat(-0.2), Step: decimal.NewFromFloat(0.05)},
	}
}

// BacktestInput is the input contract for one deterministic backtester run.
type BacktestInput struct {
	StrategyID         string          `json:"strategyId"`
	Start              time.Time       `json:"start"` // UTC date, inclusive
	End                time.Time       `json:"end"`   // UTC date, inclusive
	InitialCapital     decimal.Decimal `json:"initialCapital"`
	Symbols            []string        `json:"symbols"`
	ParameterOverrides StrategyParams  `json:"parameterOverrides"`
	MaxHoldDays        int             `json:"maxHoldDays"`
	SlippageBps        decimal.Decimal `json:"slippageBps"`
}

// RiskLimits configures the Risk Manager's pre-trade gates. Values are
// clamped to sane floors/ceilings at construction time.
type RiskLimits struct {
	MaxPositionSize        decimal.Decimal `json:"maxPositionSize"`
	MaxPortfolioExposure   decimal.Decimal `json:"maxPortfolioExposure"`
	MaxSymbolConcentrationPct decimal.Decimal `json:"maxSymbolConcentrationPct"`
	MaxOpenPositions       int             `json:"maxOpenPositions"`
	DailyLossLimit         decimal.Decimal `json:"dailyLossLimit"`
	MaxConsecutiveLosses   int             `json:"maxConsecutiveLosses"`
	MaxDrawdownPct         decimal.Decimal `json:"maxDrawdownPct"`
}

// DefaultRiskLimits mirrors the clamped defaults of the reference risk manager.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionSize:           decimal.NewFromInt(10000),
		MaxPortfolioExposure:      decimal.NewFromInt(100000),
		MaxSymbolConcentrationPct: decimal.NewFromInt(45),
		MaxOpenPositions:          25,
		DailyLossLimit:            decimal.NewFromInt(500),
		MaxConsecutiveLosses:      3,
		MaxDrawdownPct:            decimal.NewFromInt(15),
	}
}

// OptimizerObjective selects the scoring formula used by the Optimizer.
type OptimizerObjective string

const (
	ObjectiveBalanced OptimizerObjective = "balanced"
	ObjectiveSharpe   OptimizerObjective = "sharpe"
	ObjectiveReturn   OptimizerObjective = "return"
)

// OptimizerConfig configures one optimizer run.
type OptimizerConfig struct {
	Iterations       int                `json:"iterations"`
	Objective        OptimizerObjective `json:"objective"`
	MinTrades        int                `json:"minTrades"`
	StrictMinTrades  bool               `json:"strictMinTrades"`
	WalkForwardFolds int                `json:"walkForwardFolds"` // 0 disables walk-forward
}

// ServerConfig configures the optional ambient status/metrics surface; it has
// no bearing on trading-engine semantics.
type ServerConfig struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	ReadTimeout   time.Duration `json:"readTimeout"`
	WriteTimeout  time.Duration `json:"writeTimeout"`
	EnableMetrics bool          `json:"enableMetrics"`
}
