// Package runner implements the strategy runner: a single background
// control loop that polls the broker, dispatches loaded strategies, and
// keeps storage reconciled with broker state.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/apperrors"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/broker"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/execution"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/risk"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/storage"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/strategy"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/utils"
)

// Status is one of the runner's lifecycle states.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusRunning  Status = "running"
	StatusSleeping Status = "sleeping"
	StatusError    Status = "error"
)

const (
	minOffHoursPollInterval = 15 * time.Second
	stopJoinTimeout         = 5 * time.Second
	sleepSlice              = 500 * time.Millisecond
	errorAuditThrottle      = 30 * time.Second
	reconcilePositionsEvery = 5 * time.Minute
)

// loadedStrategy binds a strategy instance to the symbols it trades and
// the Strategy row it rolls results up to.
type loadedStrategy struct {
	strategyID string
	name       string
	symbols    []string
	instance   strategy.Strategy
}

// Runner is the process-wide scheduler for loaded strategies. One Runner
// drives at most one background loop; lifecycle calls are idempotent.
type Runner struct {
	logger *zap.Logger

	broker       broker.Port
	store        storage.Store
	execSvc      *execution.Service
	riskMgr      *risk.Manager
	regimeSymbol string

	tickInterval         time.Duration
	offHoursPollInterval time.Duration
	streamingEnabled     bool

	now func() time.Time

	// mu guards the strategy map and every status transition; the loop
	// only touches these fields while holding it.
	mu         sync.Mutex
	strategies map[string]*loadedStrategy
	status     Status

	stopCh       chan struct{}
	doneCh       chan struct{}
	streamWakeCh chan struct{}

	pollSuccessCount     int
	pollErrorCount       int
	lastPollError        string
	lastPollAt           *time.Time
	lastSuccessfulPollAt *time.Time
	lastErrorAuditAt     *time.Time

	sleeping         bool
	sleepSince       *time.Time
	nextMarketOpenAt *time.Time
	lastResumeAt     *time.Time
	lastCatchupAt    *time.Time
	resumeCount      int

	lastReconciliationAt            *time.Time
	lastReconciliationDiscrepancies int
	lastReconciliationRanAt         time.Time

	lastRealizedPnLTotal decimal.Decimal

	marketSessionOpen    *bool
	lastStatePersistedAt *time.Time
}

// New builds a runner bound to a broker, storage, execution service, and
// risk manager. tickInterval governs normal polling; the off-hours
// interval is derived as max(15s, tickInterval).
func New(logger *zap.Logger, b broker.Port, store storage.Store, execSvc *execution.Service, riskMgr *risk.Manager, regimeSymbol string, tickInterval time.Duration, streamingEnabled bool) *Runner {
	offHours := tickInterval
	if offHours < minOffHoursPollInterval {
		offHours = minOffHoursPollInterval
	}
	return &Runner{
		logger:               logger.Named("runner"),
		broker:               b,
		store:                store,
		execSvc:              execSvc,
		riskMgr:              riskMgr,
		regimeSymbol:         regimeSymbol,
		tickInterval:         tickInterval,
		offHoursPollInterval: offHours,
		streamingEnabled:     streamingEnabled,
		now:                  time.Now,
		strategies:           make(map[string]*loadedStrategy),
		status:               StatusStopped,
		streamWakeCh:         make(chan struct{}, 1),
	}
}

// SetClock overrides the time source; tests use this for deterministic
// checkpoint timestamps.
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// Restore loads the sleep and runtime checkpoints persisted by a prior
// process, if any. Call once before Start.
func (r *Runner) Restore(ctx context.Context) {
	r.restoreSleepState(ctx)
	r.restoreRuntimeState(ctx)
}

// LoadStrategy registers a strategy instance against its traded symbol
// set. Loading a name a second time replaces the prior instance.
func (r *Runner) LoadStrategy(strategyID, name string, symbols []string, instance strategy.Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[name] = &loadedStrategy{strategyID: strategyID, name: name, symbols: symbols, instance: instance}
	r.logger.Info("loaded strategy", zap.String("name", name), zap.Strings("symbols", symbols))
}

// RemoveStrategy unloads a strategy by name; a no-op if not loaded.
func (r *Runner) RemoveStrategy(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.strategies, name)
}

// Start connects the broker if needed, opens the trade-update stream when
// streaming is enabled, and launches the scheduler loop. Returns an error
// if already active or if no strategies are loaded.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.status != StatusStopped {
		r.mu.Unlock()
		return apperrors.NewValidationError("runner", fmt.Sprintf("already active (%s)", r.status))
	}
	if len(r.strategies) == 0 {
		r.mu.Unlock()
		return apperrors.NewValidationError("runner", "no strategies loaded")
	}

	if !r.broker.IsConnected() {
		if err := r.broker.Connect(ctx); err != nil {
			r.mu.Unlock()
			return apperrors.NewBrokerError("connect", true, err)
		}
	}

	if r.streamingEnabled {
		if started := r.broker.StartTradeUpdateStream(ctx, r.onBrokerTradeUpdate); !started {
			r.logger.Info("broker trade update stream unavailable, using polling fallback")
		}
	}

	r.status = StatusRunning
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.runLoop(ctx)
	r.persistRuntimeState(ctx)
	r.appendAudit(ctx, types.AuditRunnerStarted, "runner started", nil)

	r.logger.Info("runner started", zap.Int("strategies", len(r.strategies)))
	return nil
}

// Stop signals the loop to exit, waits up to stopJoinTimeout for it to
// finish, then tears down strategies and the broker connection.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.status == StatusStopped {
		r.mu.Unlock()
		return apperrors.NewValidationError("runner", "already stopped")
	}
	close(r.stopCh)
	doneCh := r.doneCh
	r.mu.Unlock()

	select {
	case <-doneCh:
	case <-time.After(stopJoinTimeout):
		r.logger.Warn("runner loop did not exit within the join timeout")
	}

	r.mu.Lock()
	for _, ls := range r.strategies {
		ls.instance.Reset()
	}
	if r.streamingEnabled {
		r.broker.StopTradeUpdateStream()
	}
	if r.broker.IsConnected() {
		_ = r.broker.Disconnect(ctx)
	}
	r.sleeping = false
	r.sleepSince = nil
	r.nextMarketOpenAt = nil
	r.status = StatusStopped
	r.mu.Unlock()

	r.persistSleepState(ctx)
	r.persistRuntimeState(ctx)
	r.appendAudit(ctx, types.AuditRunnerStopped, "runner stopped", nil)
	r.logger.Info("runner stopped")
	return nil
}

// RuntimeStatus is a snapshot of the runner's health counters and
// lifecycle state, suitable for an API status endpoint.
type RuntimeStatus struct {
	Status                          Status
	Strategies                      []string
	TickInterval                    time.Duration
	BrokerConnected                 bool
	PollSuccessCount                int
	PollErrorCount                  int
	LastPollError                   string
	LastPollAt                      *time.Time
	LastSuccessfulPollAt            *time.Time
	LastReconciliationAt            *time.Time
	LastReconciliationDiscrepancies int
	Sleeping                        bool
	SleepSince                      *time.Time
	NextMarketOpenAt                *time.Time
	LastResumeAt                    *time.Time
	LastCatchupAt                   *time.Time
	ResumeCount                     int
	MarketSessionOpen               *bool
	LastStatePersistedAt            *time.Time
}

// GetStatus returns a point-in-time snapshot of the runner's state.
func (r *Runner) GetStatus() RuntimeStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}

	return RuntimeStatus{
		Status:                          r.status,
		Strategies:                      names,
		TickInterval:                    r.tickInterval,
		BrokerConnected:                 r.broker.IsConnected(),
		PollSuccessCount:                r.pollSuccessCount,
		PollErrorCount:                  r.pollErrorCount,
		LastPollError:                   r.lastPollError,
		LastPollAt:                      r.lastPollAt,
		LastSuccessfulPollAt:            r.lastSuccessfulPollAt,
		LastReconciliationAt:            r.lastReconciliationAt,
		LastReconciliationDiscrepancies: r.lastReconciliationDiscrepancies,
		Sleeping:                        r.sleeping,
		SleepSince:                      r.sleepSince,
		NextMarketOpenAt:                r.nextMarketOpenAt,
		LastResumeAt:                    r.lastResumeAt,
		LastCatchupAt:                   r.lastCatchupAt,
		ResumeCount:                     r.resumeCount,
		MarketSessionOpen:               r.marketSessionOpen,
		LastStatePersistedAt:            r.lastStatePersistedAt,
	}
}

func (r *Runner) appendAudit(ctx context.Context, eventType types.AuditEventType, description string, details map[string]any) {
	if r.store == nil {
		return
	}
	log := &types.AuditLog{
		ID:          utils.GenerateAuditID(),
		EventType:   eventType,
		Description: description,
		Details:     details,
		Timestamp:   r.now(),
	}
	if err := r.store.AuditLogs().Append(ctx, log); err != nil {
		r.logger.Error("failed to append audit log", zap.Error(err))
	}
}
