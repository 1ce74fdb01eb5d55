package strategy_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/strategy"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

// flatBars builds an ascending daily bar series with a final dip below the
// 50-day average, so the dip-buy condition is satisfied deterministically.
func flatBars(n int, base float64, dipOnLast bool) []*types.OHLCV {
	bars := make([]*types.OHLCV, 0, n)
	date := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		close := base
		if dipOnLast && i == n-1 {
			close = base * 0.9
		}
		bars = append(bars, &types.OHLCV{
			Timestamp: date.AddDate(0, 0, i),
			Open:      decimal.NewFromFloat(close),
			High:      decimal.NewFromFloat(close * 1.01),
			Low:       decimal.NewFromFloat(close * 0.99),
			Close:     decimal.NewFromFloat(close),
			Volume:    decimal.NewFromInt(1_000_000),
		})
	}
	return bars
}

func testParams() types.StrategyParams {
	p := types.DefaultStrategyParams()
	p.ZScoreEntryThreshold = decimal.NewFromFloat(10) // disable the z-score gate for these tests
	p.AllowedRegimes = []types.Regime{types.RegimeRangeBound}
	return p
}

func TestMetricsDrivenStrategyEntersOnDip(t *testing.T) {
	s := strategy.NewMetricsDrivenStrategy(zap.NewNop(), testParams())
	bars := flatBars(60, 100.0, true)
	price := bars[len(bars)-1].Close

	sig, err := s.OnTick("AAPL", price, bars, types.RegimeRangeBound)
	if err != nil {
		t.Fatalf("OnTick returned error: %v", err)
	}
	if sig == nil {
		t.Fatal("expected an entry signal, got nil")
	}
	if sig.Side != types.OrderSideBuy {
		t.Fatalf("expected buy side, got %s", sig.Side)
	}
	if sig.Quantity.LessThan(decimal.NewFromInt(1)) {
		t.Fatalf("expected quantity >= 1, got %s", sig.Quantity)
	}
}

func TestMetricsDrivenStrategyNoEntryOutsideAllowedRegime(t *testing.T) {
	s := strategy.NewMetricsDrivenStrategy(zap.NewNop(), testParams())
	bars := flatBars(60, 100.0, true)
	price := bars[len(bars)-1].Close

	sig, err := s.OnTick("AAPL", price, bars, types.RegimeHighVolatility)
	if err != nil {
		t.Fatalf("OnTick returned error: %v", err)
	}
	if sig != nil {
		t.Fatalf("expected no signal outside allowed regime, got %+v", sig)
	}
}

func TestMetricsDrivenStrategyExitsOnTakeProfit(t *testing.T) {
	params := testParams()
	s := strategy.NewMetricsDrivenStrategy(zap.NewNop(), params)
	bars := flatBars(60, 100.0, true)
	entryPrice := bars[len(bars)-1].Close

	sig, err := s.OnTick("AAPL", entryPrice, bars, types.RegimeRangeBound)
	if err != nil || sig == nil {
		t.Fatalf("expected entry signal, got sig=%+v err=%v", sig, err)
	}

	takeProfitMult := decimal.NewFromInt(1).Add(params.TakeProfitPct.Div(decimal.NewFromInt(100)))
	exitPrice := entryPrice.Mul(takeProfitMult).Mul(decimal.NewFromFloat(1.01))

	exitSig, err := s.OnTick("AAPL", exitPrice, bars, types.RegimeRangeBound)
	if err != nil {
		t.Fatalf("OnTick returned error: %v", err)
	}
	if exitSig == nil {
		t.Fatal("expected an exit signal at the take-profit price, got nil")
	}
	if exitSig.Side != types.OrderSideSell {
		t.Fatalf("expected sell side, got %s", exitSig.Side)
	}
	if exitSig.Reason != "take_profit" {
		t.Fatalf("expected take_profit reason, got %s", exitSig.Reason)
	}
}

func TestMetricsDrivenStrategyResetClearsOpenPositions(t *testing.T) {
	s := strategy.NewMetricsDrivenStrategy(zap.NewNop(), testParams())
	bars := flatBars(60, 100.0, true)
	entryPrice := bars[len(bars)-1].Close

	if _, err := s.OnTick("AAPL", entryPrice, bars, types.RegimeRangeBound); err != nil {
		t.Fatalf("OnTick returned error: %v", err)
	}
	s.Reset()

	sig, err := s.OnTick("AAPL", entryPrice, bars, types.RegimeRangeBound)
	if err != nil {
		t.Fatalf("OnTick returned error: %v", err)
	}
	if sig == nil || sig.Side != types.OrderSideBuy {
		t.Fatalf("expected a fresh entry signal after reset, got %+v", sig)
	}
}
