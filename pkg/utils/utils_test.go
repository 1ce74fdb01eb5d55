package utils_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/utils"
)

func TestNormalizeSymbolTrimsAndUppercases(t *testing.T) {
	if got := utils.NormalizeSymbol("  aapl "); got != "AAPL" {
		t.Fatalf("got %q", got)
	}
}

func TestValidSymbolAcceptsCommonTickerForms(t *testing.T) {
	cases := []string{"AAPL", "BRK.B", "SPY", "A"}
	for _, c := range cases {
		if !utils.ValidSymbol(c) {
			t.Errorf("expected %q to be valid", c)
		}
	}
}

func TestValidSymbolRejectsMalformedInput(t *testing.T) {
	cases := []string{"", "aapl", "1AAPL", "TOOLONGSYMBOL1"}
	for _, c := range cases {
		if utils.ValidSymbol(c) {
			t.Errorf("expected %q to be invalid", c)
		}
	}
}

func TestGenerateIDUsesPrefixAndIsUnique(t *testing.T) {
	a := utils.GenerateOrderID()
	b := utils.GenerateOrderID()

	if a == b {
		t.Fatal("expected distinct generated IDs")
	}
	if !strings.HasPrefix(a, "ord_") {
		t.Fatalf("expected ord_ prefix, got %s", a)
	}
}

func TestGenerateIDFamilyPrefixesAreDistinct(t *testing.T) {
	if !strings.HasPrefix(utils.GenerateTradeID(), "trd_") {
		t.Fatal("expected trd_ prefix")
	}
	if !strings.HasPrefix(utils.GenerateAuditID(), "aud_") {
		t.Fatal("expected aud_ prefix")
	}
	if !strings.HasPrefix(utils.GenerateRunID(), "run_") {
		t.Fatal("expected run_ prefix")
	}
}

func TestRoundToTickSizeFloorsToNearestTick(t *testing.T) {
	price := decimal.NewFromFloat(10.037)
	tick := decimal.NewFromFloat(0.01)

	got := utils.RoundToTickSize(price, tick)
	if !got.Equal(decimal.NewFromFloat(10.03)) {
		t.Fatalf("got %s", got)
	}
}

func TestRoundToTickSizeReturnsPriceUnchangedWhenTickIsZero(t *testing.T) {
	price := decimal.NewFromFloat(10.037)
	got := utils.RoundToTickSize(price, decimal.Zero)
	if !got.Equal(price) {
		t.Fatalf("expected unchanged price, got %s", got)
	}
}

func TestMinMaxClampDecimal(t *testing.T) {
	a := decimal.NewFromInt(5)
	b := decimal.NewFromInt(9)

	if !utils.MinDecimal(a, b).Equal(a) {
		t.Fatal("expected MinDecimal to return a")
	}
	if !utils.MaxDecimal(a, b).Equal(b) {
		t.Fatal("expected MaxDecimal to return b")
	}

	clamped := utils.ClampDecimal(decimal.NewFromInt(20), a, b)
	if !clamped.Equal(b) {
		t.Fatalf("expected clamp to cap at b, got %s", clamped)
	}
	clamped = utils.ClampDecimal(decimal.NewFromInt(1), a, b)
	if !clamped.Equal(a) {
		t.Fatalf("expected clamp to floor at a, got %s", clamped)
	}
}

func TestTimeRangeContainsBoundariesInclusive(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	tr := utils.TimeRange{Start: start, End: end}

	if !tr.Contains(start) || !tr.Contains(end) {
		t.Fatal("expected range boundaries to be inclusive")
	}
	if tr.Contains(end.Add(time.Second)) {
		t.Fatal("expected time past the end to be excluded")
	}
	if tr.Duration() != 24*time.Hour {
		t.Fatalf("unexpected duration: %s", tr.Duration())
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	cfg := utils.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2}

	result, err := utils.Retry(cfg, func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errTransient
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Fatalf("unexpected result: %d", result)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryReturnsErrorAfterExhaustingAttempts(t *testing.T) {
	cfg := utils.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2}

	_, err := utils.Retry(cfg, func() (int, error) {
		return 0, errTransient
	})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
}

var errTransient = &transientError{}

type transientError struct{}

func (e *transientError) Error() string { return "transient failure" }

func TestSMATracksWindowedAverageAndReadiness(t *testing.T) {
	sma := utils.NewSMA(3)

	if sma.Ready() {
		t.Fatal("expected SMA to not be ready before the window fills")
	}

	sma.Add(decimal.NewFromInt(10))
	sma.Add(decimal.NewFromInt(20))
	got := sma.Add(decimal.NewFromInt(30))

	if !sma.Ready() {
		t.Fatal("expected SMA to be ready once the window is full")
	}
	if !got.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected average of 20, got %s", got)
	}

	// window slides: drops the 10, adds 40 -> average of (20,30,40) = 30
	got = sma.Add(decimal.NewFromInt(40))
	if !got.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected sliding average of 30, got %s", got)
	}
}
