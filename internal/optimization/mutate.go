package optimization

import (
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

const (
	gaussianSigmaFraction = 0.12
	broadJumpProbability  = 0.20
)

// mutate produces a neighbor of base by perturbing each tunable field
// independently: usually a Gaussian step scaled to 12% of the field's
// span, occasionally (20% of the time) a broad uniform jump across the
// full range. Results are clamped to bounds, snapped to the field's step,
// and the cross-field constraints in enforceConstraints are re-applied
// afterward.
func mutate(base types.StrategyParams, rng *rand.Rand) types.StrategyParams {
	out := base
	for _, p := range types.TunableParamTable() {
		current := fieldValue(base, p.Name)
		next := mutateField(current, p, rng)
		setField(&out, p.Name, next)
	}
	enforceConstraints(&out)
	return out
}

func mutateField(current decimal.Decimal, p types.TunableParam, rng *rand.Rand) decimal.Decimal {
	span, _ := p.Max.Sub(p.Min).Float64()
	cur, _ := current.Float64()

	var next float64
	if rng.Float64() < broadJumpProbability {
		minF, _ := p.Min.Float64()
		next = minF + rng.Float64()*span
	} else {
		next = cur + rng.NormFloat64()*gaussianSigmaFraction*span
	}

	result := decimal.NewFromFloat(next)
	result = clampDecimal(result, p.Min, p.Max)
	result = snapToStep(result, p.Min, p.Step)
	if p.IsInteger {
		result = result.Round(0)
	}
	return result
}

func snapToStep(v, min, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return v
	}
	offset := v.Sub(min).Div(step)
	rounded := offset.Round(0)
	return min.Add(rounded.Mul(step))
}

func clampDecimal(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

// enforceConstraints re-applies the two cross-field relationships the
// independent per-field mutation can break: take-profit must clear its
// stop by a comfortable margin, and the trailing stop must track close
// behind the fixed stop rather than lag it.
func enforceConstraints(p *types.StrategyParams) {
	minTakeProfit := p.StopLossPct.Mul(decimal.NewFromFloat(1.8))
	if p.TakeProfitPct.LessThan(minTakeProfit) {
		p.TakeProfitPct = minTakeProfit
	}

	minTrailing := p.StopLossPct.Mul(decimal.NewFromFloat(0.9))
	if p.TrailingStopPct.LessThan(minTrailing) {
		p.TrailingStopPct = minTrailing
	}
}

func fieldValue(p types.StrategyParams, name string) decimal.Decimal {
	switch name {
	case "position_size_notional":
		return p.PositionSizeNotional
	case "stop_loss_pct":
		return p.StopLossPct
	case "take_profit_pct":
		return p.TakeProfitPct
	case "trailing_stop_pct":
		return p.TrailingStopPct
	case "atr_stop_mult":
		return p.AtrStopMult
	case "dip_buy_threshold_pct":
		return p.DipBuyThresholdPct
	case "zscore_entry_threshold":
		return p.ZScoreEntryThreshold
	default:
		return decimal.Zero
	}
}

func setField(p *types.StrategyParams, name string, v decimal.Decimal) {
	switch name {
	case "position_size_notional":
		p.PositionSizeNotional = v
	case "stop_loss_pct":
		p.StopLossPct = v
	case "take_profit_pct":
		p.TakeProfitPct = v
	case "trailing_stop_pct":
		p.TrailingStopPct = v
	case "atr_stop_mult":
		p.AtrStopMult = v
	case "dip_buy_threshold_pct":
		p.DipBuyThresholdPct = v
	case "zscore_entry_threshold":
		p.ZScoreEntryThreshold = v
	}
}
