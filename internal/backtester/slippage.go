// Package backtester provides the deterministic daily backtest engine.
package backtester

import "github.com/shopspring/decimal"

// applySellSlippage and applyBuySlippage move a fill price against the
// trader by bps basis points: down on a sell/exit, up on a buy/entry.
func applySellSlippage(price, bps decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(1).Sub(bps.Div(decimal.NewFromInt(10000))))
}

func applyBuySlippage(price, bps decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(1).Add(bps.Div(decimal.NewFromInt(10000))))
}
