package runner

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

const (
	sleepStateKey   = "runner_sleep_state"
	runtimeStateKey = "runner_runtime_state"
)

type sleepStatePayload struct {
	Sleeping         bool       `json:"sleeping"`
	SleepSince       *time.Time `json:"sleep_since"`
	NextMarketOpenAt *time.Time `json:"next_market_open_at"`
	LastResumeAt     *time.Time `json:"last_resume_at"`
	LastCatchupAt    *time.Time `json:"last_catchup_at"`
	ResumeCount      int        `json:"resume_count"`
}

type runtimeStatePayload struct {
	Status                          Status     `json:"status"`
	PollSuccessCount                int        `json:"poll_success_count"`
	PollErrorCount                  int        `json:"poll_error_count"`
	LastPollError                   string     `json:"last_poll_error"`
	LastPollAt                      *time.Time `json:"last_poll_at"`
	LastSuccessfulPollAt            *time.Time `json:"last_successful_poll_at"`
	LastReconciliationAt            *time.Time `json:"last_reconciliation_at"`
	LastReconciliationDiscrepancies int        `json:"last_reconciliation_discrepancies"`
	Sleeping                        bool       `json:"sleeping"`
	SleepSince                      *time.Time `json:"sleep_since"`
	NextMarketOpenAt                *time.Time `json:"next_market_open_at"`
	LastResumeAt                    *time.Time `json:"last_resume_at"`
	LastCatchupAt                   *time.Time `json:"last_catchup_at"`
	ResumeCount                     int        `json:"resume_count"`
	MarketSessionOpen               *bool      `json:"market_session_open"`
	BrokerConnected                 bool       `json:"broker_connected"`
	PersistedAt                     time.Time  `json:"persisted_at"`
}

// persistSleepState writes the sleep/resume checkpoint to Config so a
// restart can resume in the right phase rather than re-entering sleep.
func (r *Runner) persistSleepState(ctx context.Context) {
	if r.store == nil {
		return
	}
	r.mu.Lock()
	payload := sleepStatePayload{
		Sleeping:         r.sleeping,
		SleepSince:       r.sleepSince,
		NextMarketOpenAt: r.nextMarketOpenAt,
		LastResumeAt:     r.lastResumeAt,
		LastCatchupAt:    r.lastCatchupAt,
		ResumeCount:      r.resumeCount,
	}
	r.mu.Unlock()

	body, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("failed to marshal runner sleep-state checkpoint", zap.Error(err))
		return
	}
	entry := &types.ConfigEntry{
		Key:         sleepStateKey,
		Value:       string(body),
		ValueType:   types.ConfigValueJSON,
		Description: "Runner sleep/resume continuity checkpoint",
	}
	if err := r.store.Config().Upsert(ctx, entry); err != nil {
		r.logger.Error("failed to persist runner sleep-state checkpoint", zap.Error(err))
	}
}

// persistRuntimeState writes runtime health counters/state to Config for
// status continuity across restarts.
func (r *Runner) persistRuntimeState(ctx context.Context) {
	if r.store == nil {
		return
	}
	now := r.now()
	r.mu.Lock()
	payload := runtimeStatePayload{
		Status:                          r.status,
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
		BrokerConnected:                 r.broker.IsConnected(),
		PersistedAt:                     now,
	}
	r.mu.Unlock()

	body, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("failed to marshal runner runtime-state checkpoint", zap.Error(err))
		return
	}
	entry := &types.ConfigEntry{
		Key:         runtimeStateKey,
		Value:       string(body),
		ValueType:   types.ConfigValueJSON,
		Description: "Runner runtime health/status checkpoint",
	}
	if err := r.store.Config().Upsert(ctx, entry); err != nil {
		r.logger.Error("failed to persist runner runtime-state checkpoint", zap.Error(err))
		return
	}

	r.mu.Lock()
	r.lastStatePersistedAt = &now
	r.mu.Unlock()
}

func (r *Runner) restoreSleepState(ctx context.Context) {
	if r.store == nil {
		return
	}
	entry, err := r.store.Config().Get(ctx, sleepStateKey)
	if err != nil || entry == nil || entry.Value == "" {
		return
	}
	var payload sleepStatePayload
	if err := json.Unmarshal([]byte(entry.Value), &payload); err != nil {
		r.logger.Error("failed to restore runner sleep-state checkpoint", zap.Error(err))
		return
	}

	r.mu.Lock()
	r.sleeping = payload.Sleeping
	r.sleepSince = payload.SleepSince
	r.nextMarketOpenAt = payload.NextMarketOpenAt
	r.lastResumeAt = payload.LastResumeAt
	r.lastCatchupAt = payload.LastCatchupAt
	r.resumeCount = payload.ResumeCount
	if r.sleeping {
		r.status = StatusSleeping
	}
	r.mu.Unlock()
}

func (r *Runner) restoreRuntimeState(ctx context.Context) {
	if r.store == nil {
		return
	}
	entry, err := r.store.Config().Get(ctx, runtimeStateKey)
	if err != nil || entry == nil || entry.Value == "" {
		return
	}
	var payload runtimeStatePayload
	if err := json.Unmarshal([]byte(entry.Value), &payload); err != nil {
		r.logger.Error("failed to restore runner runtime-state checkpoint", zap.Error(err))
		return
	}

	r.mu.Lock()
	r.pollSuccessCount = payload.PollSuccessCount
	r.pollErrorCount = payload.PollErrorCount
	if payload.LastPollError != "" {
		r.lastPollError = payload.LastPollError
	}
	if payload.LastPollAt != nil {
		r.lastPollAt = payload.LastPollAt
	}
	if payload.LastSuccessfulPollAt != nil {
		r.lastSuccessfulPollAt = payload.LastSuccessfulPollAt
	}
	if payload.LastReconciliationAt != nil {
		r.lastReconciliationAt = payload.LastReconciliationAt
	}
	r.lastReconciliationDiscrepancies = payload.LastReconciliationDiscrepancies
	if payload.MarketSessionOpen != nil {
		r.marketSessionOpen = payload.MarketSessionOpen
	}
	r.mu.Unlock()
}
