package screener

import (
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

// ClassifyRegime labels the market state from an index's closing series
// (e.g. SPY), using the last 60 of the trailing 80 closes. It is a
// stateless classifier: the same input always yields the same label,
// unlike a fitted hidden-Markov model that carries memory of prior calls.
func ClassifyRegime(closes []*types.OHLCV) types.Regime {
	if len(closes) < 60 {
		return types.RegimeUnknown
	}
	window := closes
	if len(window) > 80 {
		window = window[len(window)-80:]
	}
	if len(window) > 60 {
		window = window[len(window)-60:]
	}

	first, _ := window[0].Close.Float64()
	last, _ := window[len(window)-1].Close.Float64()
	if first == 0 {
		return types.RegimeUnknown
	}
	trend := (last - first) / first

	closesF := closesFloat(window)
	returns := dailyReturns(closesF)
	vol := rms(returns)

	switch {
	case trend > 0.04 && vol < 0.02:
		return types.RegimeTrendingUp
	case trend < -0.04 && vol < 0.02:
		return types.RegimeTrendingDown
	case vol >= 0.02:
		return types.RegimeHighVolatility
	default:
		return types.RegimeRangeBound
	}
}

