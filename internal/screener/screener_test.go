package screener_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/screener"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

func barsFromCloses(closes []float64) []*types.OHLCV {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]*types.OHLCV, len(closes))
	for i, c := range closes {
		price := decimal.NewFromFloat(c)
		bars[i] = &types.OHLCV{
			Timestamp: start.AddDate(0, 0, i),
			Open:      price, High: price.Mul(decimal.NewFromFloat(1.005)), Low: price.Mul(decimal.NewFromFloat(0.995)), Close: price,
			Volume: decimal.NewFromInt(1_000_000),
		}
	}
	return bars
}

func TestClassifyRegimeUnknownWithInsufficientHistory(t *testing.T) {
	bars := barsFromCloses(repeat(100, 10))
	if got := screener.ClassifyRegime(bars); got != types.RegimeUnknown {
		t.Fatalf("expected unknown regime with <60 bars, got %s", got)
	}
}

func TestClassifyRegimeTrendingUp(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 * (1 + 0.001*float64(i))
	}
	bars := barsFromCloses(closes)
	if got := screener.ClassifyRegime(bars); got != types.RegimeTrendingUp {
		t.Fatalf("expected trending_up regime, got %s", got)
	}
}

func TestClassifyRegimeRangeBoundOnFlatSeries(t *testing.T) {
	bars := barsFromCloses(repeat(100, 80))
	if got := screener.ClassifyRegime(bars); got != types.RegimeRangeBound {
		t.Fatalf("expected range_bound regime for a flat series, got %s", got)
	}
}

func TestComputeIndicatorsDipBuySignal(t *testing.T) {
	closes := make([]float64, 60)
	for i := 0; i < 50; i++ {
		closes[i] = 100
	}
	for i := 50; i < 60; i++ {
		closes[i] = 80 // sharp drop under the 50-day average
	}
	bars := barsFromCloses(closes)

	ind := screener.Compute(bars,
		decimal.NewFromInt(10),  // dipBuyThresholdPct
		decimal.NewFromInt(0),   // zscoreEntryThreshold: accept any z-score <= 0
		decimal.NewFromInt(5),   // takeProfitPct
		decimal.NewFromInt(5),   // trailingStopPct
		decimal.NewFromInt(2),   // atrStopMult
	)
	if !ind.HasSMA50 {
		t.Fatal("expected SMA50 to be populated with 60 bars of history")
	}
	if !ind.DipBuySignal {
		t.Fatal("expected a dip buy signal after a sharp drop below the SMA50")
	}
}

func TestComputeZ20UsesPopulationStandardDeviation(t *testing.T) {
	// closes[1:21] == 1..20: a discrete-uniform series whose population
	// variance has the closed form (n^2-1)/12.
	closes := make([]float64, 21)
	for i := range closes {
		closes[i] = float64(i)
	}
	bars := barsFromCloses(closes)

	ind := screener.Compute(bars, decimal.NewFromInt(10), decimal.NewFromInt(0), decimal.NewFromInt(5), decimal.NewFromInt(5), decimal.NewFromInt(2))

	wantStd := 5.766281297335398 // population stddev of 1..20
	wantZ := (20.0 - 10.5) / wantStd

	gotZ, _ := ind.Z20.Float64()
	if diff := gotZ - wantZ; diff > 0.01 || diff < -0.01 {
		t.Fatalf("expected population-stddev z-score ~%.4f, got %.4f", wantZ, gotZ)
	}
}

func TestComputeWithZWindowUsesTheRequestedLookback(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%5) // small oscillation, same stats over any window length
	}
	closes[59] = 130 // sharp final move
	bars := barsFromCloses(closes)

	z20 := screener.Compute(bars, decimal.NewFromInt(10), decimal.NewFromInt(0), decimal.NewFromInt(5), decimal.NewFromInt(5), decimal.NewFromInt(2)).Z20
	z50 := screener.ComputeWithZWindow(bars, 50, decimal.NewFromInt(10), decimal.NewFromInt(0), decimal.NewFromInt(5), decimal.NewFromInt(5), decimal.NewFromInt(2)).Z20

	if z20.Equal(z50) {
		t.Fatal("expected the 20-bar and 50-bar z-scores to differ when the lookback actually changes the sample")
	}
}

func TestRankAppliesLiquidityGuardrail(t *testing.T) {
	candidates := []screener.Candidate{
		{Symbol: "LIQUID", Volume: 10_000_000, Price: 50, Sector: "tech", BrokerTradable: true, Fractionable: true},
		{Symbol: "THIN", Volume: 1000, Price: 5, Sector: "tech", BrokerTradable: true, Fractionable: true},
	}
	ranked := screener.Rank(candidates, 5, screener.Guardrails{MinDollarVolume: 1_000_000, MaxSpreadBps: 50})
	for _, r := range ranked {
		if r.Symbol == "THIN" {
			t.Fatal("expected the thinly traded candidate to be filtered out")
		}
	}
	if len(ranked) != 1 || ranked[0].Symbol != "LIQUID" {
		t.Fatalf("expected exactly LIQUID to survive the guardrail, got %+v", ranked)
	}
}

func TestSelectUniverseSeedOnlyNeverBackfills(t *testing.T) {
	universe := []screener.Candidate{
		{Symbol: "AAPL", Volume: 50_000_000, Price: 180, Sector: "tech", BrokerTradable: true, Fractionable: true},
		{Symbol: "MSFT", Volume: 40_000_000, Price: 300, Sector: "tech", BrokerTradable: true, Fractionable: true},
	}
	selected := screener.SelectUniverse(screener.ModeSeedOnly, []string{"AAPL"}, universe, 5, screener.Guardrails{MinDollarVolume: 1, MaxSpreadBps: 1000})
	if len(selected) != 1 || selected[0].Symbol != "AAPL" {
		t.Fatalf("expected seed-only mode to return just AAPL, got %+v", selected)
	}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
