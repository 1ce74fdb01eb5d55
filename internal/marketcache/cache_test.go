package marketcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/marketcache"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

type fakeSource struct {
	calls int
	bars  []*types.OHLCV
}

func (f *fakeSource) GetHistoricalBars(_ context.Context, _ string, _, _ time.Time, _ int) ([]*types.OHLCV, error) {
	f.calls++
	return f.bars, nil
}

func series(n int) []*types.OHLCV {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]*types.OHLCV, 0, n)
	for i := 0; i < n; i++ {
		price := decimal.NewFromFloat(100 + float64(i))
		bars = append(bars, &types.OHLCV{
			Timestamp: start.AddDate(0, 0, i),
			Open:      price, High: price.Mul(decimal.NewFromFloat(1.01)), Low: price.Mul(decimal.NewFromFloat(0.99)), Close: price,
			Volume: decimal.NewFromInt(5000),
		})
	}
	return bars
}

func TestCacheServesFromMemoryAfterFirstFetch(t *testing.T) {
	src := &fakeSource{bars: series(10)}
	cache, err := marketcache.New(zap.NewNop(), t.TempDir(), src)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)

	if _, err := cache.LoadOHLCV(context.Background(), "AAPL", start, end); err != nil {
		t.Fatalf("LoadOHLCV returned error: %v", err)
	}
	if _, err := cache.LoadOHLCV(context.Background(), "AAPL", start, end); err != nil {
		t.Fatalf("LoadOHLCV returned error: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("expected exactly one broker fetch, got %d", src.calls)
	}
}

func TestCacheFiltersToRequestedRange(t *testing.T) {
	src := &fakeSource{bars: series(30)}
	cache, err := marketcache.New(zap.NewNop(), t.TempDir(), src)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	start := time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)

	bars, err := cache.LoadOHLCV(context.Background(), "AAPL", start, end)
	if err != nil {
		t.Fatalf("LoadOHLCV returned error: %v", err)
	}
	for _, bar := range bars {
		if bar.Timestamp.Before(start) || bar.Timestamp.After(end) {
			t.Fatalf("bar %v outside requested range [%v, %v]", bar.Timestamp, start, end)
		}
	}
	if len(bars) == 0 {
		t.Fatal("expected at least one bar in range")
	}
}

func TestValidatorFlagsOHLCInconsistency(t *testing.T) {
	v := marketcache.NewValidator(zap.NewNop())
	bad := []*types.OHLCV{{
		Timestamp: time.Now(),
		Open:      decimal.NewFromInt(100),
		High:      decimal.NewFromInt(90), // inconsistent: High < Open
		Low:       decimal.NewFromInt(80),
		Close:     decimal.NewFromInt(95),
		Volume:    decimal.NewFromInt(1000),
	}}

	report := v.Validate(bad, "AAPL")
	if report.IsUsable {
		t.Fatal("expected OHLC-inconsistent series to be flagged unusable")
	}
}
