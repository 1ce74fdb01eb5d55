package budget_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/budget"
)

func newTestTracker(t *testing.T, now time.Time, weeklyBudget decimal.Decimal) *budget.WeeklyTracker {
	t.Helper()
	tr := budget.NewWeeklyTracker(zap.NewNop(), weeklyBudget)
	tr.SetClock(func() time.Time { return now })
	return tr
}

func TestCanTradeAllowsWithinRemainingBudget(t *testing.T) {
	now := time.Date(2026, 7, 27, 10, 0, 0, 0, time.UTC) // a Monday
	tr := newTestTracker(t, now, decimal.NewFromInt(1000))

	ok, reason := tr.CanTrade(decimal.NewFromInt(500))
	if !ok {
		t.Fatalf("expected trade to be allowed, got reason: %s", reason)
	}
}

func TestCanTradeRejectsAmountExceedingRemainingBudget(t *testing.T) {
	now := time.Date(2026, 7, 27, 10, 0, 0, 0, time.UTC)
	tr := newTestTracker(t, now, decimal.NewFromInt(1000))

	ok, reason := tr.CanTrade(decimal.NewFromInt(1500))
	if ok {
		t.Fatal("expected trade to be rejected")
	}
	if reason == "" {
		t.Fatal("expected a rejection reason")
	}
}

func TestCanTradeRejectsNonPositiveAmount(t *testing.T) {
	now := time.Date(2026, 7, 27, 10, 0, 0, 0, time.UTC)
	tr := newTestTracker(t, now, decimal.NewFromInt(1000))

	ok, _ := tr.CanTrade(decimal.Zero)
	if ok {
		t.Fatal("expected a zero trade amount to be rejected")
	}
}

func TestRecordTradeAccumulatesUsedBudgetAndTradeCount(t *testing.T) {
	now := time.Date(2026, 7, 27, 10, 0, 0, 0, time.UTC)
	tr := newTestTracker(t, now, decimal.NewFromInt(1000))

	if ok := tr.RecordTrade(decimal.NewFromInt(300), true, nil); !ok {
		t.Fatal("expected trade to be recorded")
	}

	status := tr.GetStatus()
	if !status.UsedBudget.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected used budget of 300, got %s", status.UsedBudget)
	}
	if status.TradesThisWeek != 1 {
		t.Fatalf("expected 1 trade recorded, got %d", status.TradesThisWeek)
	}
	if !status.RemainingBudget.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("expected remaining budget of 700, got %s", status.RemainingBudget)
	}
}

func TestRecordTradeRejectsBuyExceedingRemainingBudget(t *testing.T) {
	now := time.Date(2026, 7, 27, 10, 0, 0, 0, time.UTC)
	tr := newTestTracker(t, now, decimal.NewFromInt(1000))

	if ok := tr.RecordTrade(decimal.NewFromInt(1500), true, nil); ok {
		t.Fatal("expected oversized buy to be rejected")
	}
	if !tr.GetStatus().UsedBudget.IsZero() {
		t.Fatal("expected used budget to remain zero after a rejected trade")
	}
}

func TestRecordTradeAccumulatesRealizedPnLEvenOnSells(t *testing.T) {
	now := time.Date(2026, 7, 27, 10, 0, 0, 0, time.UTC)
	tr := newTestTracker(t, now, decimal.NewFromInt(1000))

	loss := decimal.NewFromInt(-50)
	if ok := tr.RecordTrade(decimal.NewFromInt(200), false, &loss); !ok {
		t.Fatal("expected sell to be recorded")
	}

	status := tr.GetStatus()
	if !status.WeeklyPnL.Equal(loss) {
		t.Fatalf("expected weekly P&L of -50, got %s", status.WeeklyPnL)
	}
	if !status.UsedBudget.IsZero() {
		t.Fatal("a sell must not consume the weekly budget")
	}
}

func TestBudgetResetsAtMondayBoundary(t *testing.T) {
	monday := time.Date(2026, 7, 27, 10, 0, 0, 0, time.UTC)
	clock := monday
	tr := budget.NewWeeklyTracker(zap.NewNop(), decimal.NewFromInt(1000))
	tr.SetClock(func() time.Time { return clock })

	tr.RecordTrade(decimal.NewFromInt(400), true, nil)
	if tr.GetStatus().UsedBudget.IsZero() {
		t.Fatal("expected used budget to be non-zero before the reset")
	}

	// advance into the following Monday
	clock = monday.AddDate(0, 0, 7)
	status := tr.GetStatus()
	if !status.UsedBudget.IsZero() {
		t.Fatalf("expected budget to reset on the new week, got used=%s", status.UsedBudget)
	}
	if status.TradesThisWeek != 0 {
		t.Fatalf("expected trade count to reset, got %d", status.TradesThisWeek)
	}
}

func TestSetWeeklyBudgetRejectsNegativeValue(t *testing.T) {
	tr := budget.NewWeeklyTracker(zap.NewNop(), decimal.NewFromInt(1000))
	if err := tr.SetWeeklyBudget(decimal.NewFromInt(-1)); err == nil {
		t.Fatal("expected a negative budget to be rejected")
	}
}

func TestResetWeekClearsCounters(t *testing.T) {
	now := time.Date(2026, 7, 27, 10, 0, 0, 0, time.UTC)
	tr := newTestTracker(t, now, decimal.NewFromInt(1000))
	tr.RecordTrade(decimal.NewFromInt(400), true, nil)

	tr.ResetWeek()

	status := tr.GetStatus()
	if !status.UsedBudget.IsZero() || status.TradesThisWeek != 0 {
		t.Fatal("expected ResetWeek to clear used budget and trade count")
	}
}
