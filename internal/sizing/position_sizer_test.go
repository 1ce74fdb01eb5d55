package sizing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/sizing"
)

func TestCalculateUsesRiskBasedSizeWithinCaps(t *testing.T) {
	ps := sizing.NewPositionSizer(zap.NewNop())
	// equity*riskPct/slPct = 50000*0.01/0.02 = 25000, but portfolioCap (10% of
	// equity) is 5000, so the 10% portfolio cap should bind.
	got := ps.Calculate(
		decimal.NewFromInt(50000),
		decimal.NewFromInt(100000),
		decimal.NewFromInt(50000),
		decimal.NewFromFloat(1),
		decimal.NewFromFloat(2),
	)
	want := decimal.NewFromInt(5000)
	if !got.Equal(want) {
		t.Fatalf("expected portfolio cap of %s to bind, got %s", want, got)
	}
}

func TestCalculateFloorsAtMinimumNotional(t *testing.T) {
	ps := sizing.NewPositionSizer(zap.NewNop())
	got := ps.Calculate(
		decimal.NewFromInt(100),
		decimal.NewFromInt(100000),
		decimal.NewFromInt(100000),
		decimal.NewFromFloat(0.1),
		decimal.NewFromFloat(10),
	)
	if got.LessThan(decimal.NewFromInt(25)) {
		t.Fatalf("expected the $25 floor to apply, got %s", got)
	}
}

func TestCalculateNeverExceedsAvailableCash(t *testing.T) {
	ps := sizing.NewPositionSizer(zap.NewNop())
	got := ps.Calculate(
		decimal.NewFromInt(100000),
		decimal.NewFromInt(100000),
		decimal.NewFromInt(500), // very little cash available
		decimal.NewFromFloat(5),
		decimal.NewFromFloat(0.5),
	)
	if got.GreaterThan(decimal.NewFromInt(500)) {
		t.Fatalf("expected sizing to be capped at available cash, got %s", got)
	}
}

func TestCalculateClampsOutOfRangeRiskAndStopPercentages(t *testing.T) {
	ps := sizing.NewPositionSizer(zap.NewNop())
	// riskPct of 50 should clamp down to the 5% ceiling; slPct of 0.01
	// should clamp up to the 0.5% floor.
	clamped := ps.Calculate(
		decimal.NewFromInt(10000),
		decimal.NewFromInt(100000),
		decimal.NewFromInt(100000),
		decimal.NewFromInt(50),
		decimal.NewFromFloat(0.01),
	)
	unclampedEquivalent := ps.Calculate(
		decimal.NewFromInt(10000),
		decimal.NewFromInt(100000),
		decimal.NewFromInt(100000),
		decimal.NewFromInt(5),
		decimal.NewFromFloat(0.5),
	)
	if !clamped.Equal(unclampedEquivalent) {
		t.Fatalf("expected out-of-range inputs to clamp to the same result as their bounds, got %s vs %s", clamped, unclampedEquivalent)
	}
}
