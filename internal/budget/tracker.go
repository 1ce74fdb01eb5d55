// Package budget tracks the weekly trading budget allocation and its usage.
package budget

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Status is a point-in-time snapshot of the weekly budget.
type Status struct {
	WeeklyBudget    decimal.Decimal
	UsedBudget      decimal.Decimal
	RemainingBudget decimal.Decimal
	UsedPercent     decimal.Decimal
	TradesThisWeek  int
	WeeklyPnL       decimal.Decimal
	WeekStart       time.Time
	DaysRemaining   int
}

// WeeklyTracker tracks weekly trading budget usage with a Monday-00:00-local
// reset boundary; resets are applied lazily on the next access.
type WeeklyTracker struct {
	mu sync.Mutex

	logger *zap.Logger

	weeklyBudget   decimal.Decimal
	weekStart      time.Time
	usedBudget     decimal.Decimal
	tradesThisWeek int
	weeklyPnL      decimal.Decimal

	now func() time.Time
}

// NewWeeklyTracker creates a tracker with the given weekly budget.
func NewWeeklyTracker(logger *zap.Logger, weeklyBudget decimal.Decimal) *WeeklyTracker {
	t := &WeeklyTracker{
		logger:       logger.Named("budget"),
		weeklyBudget: weeklyBudget,
		now:          time.Now,
	}
	t.weekStart = weekStart(t.now())
	return t
}

// SetClock overrides the tracker's notion of "now" (for deterministic tests)
// and re-anchors the stored week start to the new clock's week.
func (t *WeeklyTracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	t.weekStart = weekStart(now())
}

// weekStart returns 00:00 local time on the Monday of t's week.
func weekStart(t time.Time) time.Time {
	// time.Weekday: Sunday=0 .. Saturday=6. Days since Monday treats Sunday as 6.
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	d := t.AddDate(0, 0, -daysSinceMonday)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// checkReset resets counters if the current week's Monday is later than the
// tracker's stored week start. Caller must hold mu.
func (t *WeeklyTracker) checkReset() {
	current := weekStart(t.now())
	if current.After(t.weekStart) {
		t.weekStart = current
		t.usedBudget = decimal.Zero
		t.tradesThisWeek = 0
		t.weeklyPnL = decimal.Zero
		t.logger.Info("weekly budget reset", zap.Time("weekStart", t.weekStart))
	}
}

// RemainingBudget returns the remaining budget for the current week.
func (t *WeeklyTracker) RemainingBudget() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkReset()
	return t.remainingLocked()
}

func (t *WeeklyTracker) remainingLocked() decimal.Decimal {
	remaining := t.weeklyBudget.Sub(t.usedBudget)
	if remaining.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	return remaining
}

// GetStatus returns a full snapshot of the current week's budget state.
func (t *WeeklyTracker) GetStatus() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkReset()

	usedPercent := decimal.Zero
	if !t.weeklyBudget.IsZero() {
		usedPercent = t.usedBudget.Div(t.weeklyBudget).Mul(decimal.NewFromInt(100))
	}

	return Status{
		WeeklyBudget:    t.weeklyBudget,
		UsedBudget:      t.usedBudget,
		RemainingBudget: t.remainingLocked(),
		UsedPercent:     usedPercent,
		TradesThisWeek:  t.tradesThisWeek,
		WeeklyPnL:       t.weeklyPnL,
		WeekStart:       t.weekStart,
		DaysRemaining:   7 - (int(t.now().Weekday())+6)%7,
	}
}

// CanTrade reports whether a trade of the given notional amount is allowed
// under the remaining weekly budget, and a human-readable reason if not.
func (t *WeeklyTracker) CanTrade(amount decimal.Decimal) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkReset()

	if amount.LessThanOrEqual(decimal.Zero) {
		return false, "invalid trade amount"
	}

	remaining := t.remainingLocked()
	if amount.GreaterThan(remaining) {
		return false, "insufficient budget: " + remaining.StringFixed(2) + " remaining"
	}

	return true, "trade allowed"
}

// RecordTrade records a buy's notional against the budget, and accumulates
// realized P&L (positive or negative) regardless of side. Reset-then-apply:
// the weekly reset check always runs before the trade is applied.
func (t *WeeklyTracker) RecordTrade(amount decimal.Decimal, isBuy bool, realizedPnL *decimal.Decimal) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkReset()

	if isBuy {
		if amount.GreaterThan(t.remainingLocked()) {
			return false
		}
		t.usedBudget = t.usedBudget.Add(amount)
		t.tradesThisWeek++
	}

	if realizedPnL != nil {
		t.weeklyPnL = t.weeklyPnL.Add(*realizedPnL)
	}

	return true
}

// SetWeeklyBudget updates the weekly budget amount.
func (t *WeeklyTracker) SetWeeklyBudget(budget decimal.Decimal) error {
	if budget.LessThan(decimal.Zero) {
		return errNegativeBudget
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.weeklyBudget = budget
	return nil
}

// ResetWeek forcibly resets the tracker's counters (used in tests/admin tooling).
func (t *WeeklyTracker) ResetWeek() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.weekStart = weekStart(t.now())
	t.usedBudget = decimal.Zero
	t.tradesThisWeek = 0
	t.weeklyPnL = decimal.Zero
}

var errNegativeBudget = &budgetError{"budget must be non-negative"}

type budgetError struct{ msg string }

func (e *budgetError) Error() string { return e.msg }
