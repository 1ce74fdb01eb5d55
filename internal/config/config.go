// Package config loads the trading engine's layered configuration:
// built-in defaults, an optional YAML file, then TRADER_-prefixed
// environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

// Config is the fully resolved configuration for one server process.
type Config struct {
	Server       types.ServerConfig
	RiskLimits   types.RiskLimits
	Strategy     types.StrategyParams
	DataDir      string
	PaperTrading bool
	LogLevel     string

	Symbols             []string
	RegimeSymbol        string
	TickInterval        time.Duration
	StreamingEnabled    bool
	InitialCash         decimal.Decimal
	WeeklyBudget        decimal.Decimal
	BudgetTrackingOn    bool
	OrderThrottlePerMin int
	StorageDSN          string // empty selects the in-memory store
}

// Load builds a Config from defaults, an optional file at path (skipped if
// empty or missing), and environment variables prefixed TRADER_.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("reading config file %s: %w", path, err)
			}
		}
	}

	cfg := &Config{
		DataDir:      v.GetString("data_dir"),
		PaperTrading: v.GetBool("paper_trading"),
		LogLevel:     v.GetString("log_level"),
		Server: types.ServerConfig{
			Host:          v.GetString("server.host"),
			Port:          v.GetInt("server.port"),
			ReadTimeout:   v.GetDuration("server.read_timeout"),
			WriteTimeout:  v.GetDuration("server.write_timeout"),
			EnableMetrics: v.GetBool("server.enable_metrics"),
		},
		RiskLimits: riskLimitsFromViper(v),
		Strategy:   strategyParamsFromViper(v),

		Symbols:             v.GetStringSlice("runner.symbols"),
		RegimeSymbol:        v.GetString("runner.regime_symbol"),
		TickInterval:        v.GetDuration("runner.tick_interval"),
		StreamingEnabled:    v.GetBool("runner.streaming_enabled"),
		InitialCash:         mustDecimal(v.GetString("runner.initial_cash")),
		WeeklyBudget:        mustDecimal(v.GetString("runner.weekly_budget")),
		BudgetTrackingOn:    v.GetBool("runner.budget_tracking_on"),
		OrderThrottlePerMin: v.GetInt("runner.order_throttle_per_min"),
		StorageDSN:          v.GetString("storage.dsn"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("paper_trading", true)
	v.SetDefault("log_level", "info")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.enable_metrics", true)

	defaults := types.DefaultRiskLimits()
	v.SetDefault("risk.max_position_size", defaults.MaxPositionSize.String())
	v.SetDefault("risk.max_portfolio_exposure", defaults.MaxPortfolioExposure.String())
	v.SetDefault("risk.max_symbol_concentration_pct", defaults.MaxSymbolConcentrationPct.String())
	v.SetDefault("risk.max_open_positions", defaults.MaxOpenPositions)
	v.SetDefault("risk.daily_loss_limit", defaults.DailyLossLimit.String())
	v.SetDefault("risk.max_consecutive_losses", defaults.MaxConsecutiveLosses)
	v.SetDefault("risk.max_drawdown_pct", defaults.MaxDrawdownPct.String())

	params := types.DefaultStrategyParams()
	v.SetDefault("strategy.position_size_notional", params.PositionSizeNotional.String())
	v.SetDefault("strategy.stop_loss_pct", params.StopLossPct.String())
	v.SetDefault("strategy.take_profit_pct", params.TakeProfitPct.String())
	v.SetDefault("strategy.trailing_stop_pct", params.TrailingStopPct.String())
	v.SetDefault("strategy.atr_stop_mult", params.AtrStopMult.String())
	v.SetDefault("strategy.dip_buy_threshold_pct", params.DipBuyThresholdPct.String())
	v.SetDefault("strategy.zscore_entry_threshold", params.ZScoreEntryThreshold.String())

	v.SetDefault("runner.symbols", []string{"AAPL", "MSFT", "GOOG", "AMZN"})
	v.SetDefault("runner.regime_symbol", "SPY")
	v.SetDefault("runner.tick_interval", 60*time.Second)
	v.SetDefault("runner.streaming_enabled", false)
	v.SetDefault("runner.initial_cash", "100000")
	v.SetDefault("runner.weekly_budget", "5000")
	v.SetDefault("runner.budget_tracking_on", true)
	v.SetDefault("runner.order_throttle_per_min", 20)

	v.SetDefault("storage.dsn", "")
}

func riskLimitsFromViper(v *viper.Viper) types.RiskLimits {
	return types.RiskLimits{
		MaxPositionSize:           mustDecimal(v.GetString("risk.max_position_size")),
		MaxPortfolioExposure:      mustDecimal(v.GetString("risk.max_portfolio_exposure")),
		MaxSymbolConcentrationPct: mustDecimal(v.GetString("risk.max_symbol_concentration_pct")),
		MaxOpenPositions:          v.GetInt("risk.max_open_positions"),
		DailyLossLimit:            mustDecimal(v.GetString("risk.daily_loss_limit")),
		MaxConsecutiveLosses:      v.GetInt("risk.max_consecutive_losses"),
		MaxDrawdownPct:            mustDecimal(v.GetString("risk.max_drawdown_pct")),
	}
}

func strategyParamsFromViper(v *viper.Viper) types.StrategyParams {
	params := types.DefaultStrategyParams()
	params.PositionSizeNotional = mustDecimal(v.GetString("strategy.position_size_notional"))
	params.StopLossPct = mustDecimal(v.GetString("strategy.stop_loss_pct"))
	params.TakeProfitPct = mustDecimal(v.GetString("strategy.take_profit_pct"))
	params.TrailingStopPct = mustDecimal(v.GetString("strategy.trailing_stop_pct"))
	params.AtrStopMult = mustDecimal(v.GetString("strategy.atr_stop_mult"))
	params.DipBuyThresholdPct = mustDecimal(v.GetString("strategy.dip_buy_threshold_pct"))
	params.ZScoreEntryThreshold = mustDecimal(v.GetString("strategy.zscore_entry_threshold"))
	return params
}

func mustDecimal(s string) decimal.Decimal {
	parsed, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return parsed
}
