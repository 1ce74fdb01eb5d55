package execution

import "sync"

var (
	killSwitchMu     sync.Mutex
	killSwitchActive bool

	tradingEnabledMu sync.Mutex
	tradingEnabled   = true
)

// SetKillSwitch flips the process-wide kill switch. While active, every
// order submission is rejected regardless of which Service instance
// receives it.
func SetKillSwitch(active bool) {
	killSwitchMu.Lock()
	defer killSwitchMu.Unlock()
	killSwitchActive = active
}

// KillSwitchActive reports the current kill switch state.
func KillSwitchActive() bool {
	killSwitchMu.Lock()
	defer killSwitchMu.Unlock()
	return killSwitchActive
}

// SetTradingEnabled flips the process-wide trading gate, independent of
// the kill switch; it models an operator-toggled settings flag rather
// than an emergency stop.
func SetTradingEnabled(enabled bool) {
	tradingEnabledMu.Lock()
	defer tradingEnabledMu.Unlock()
	tradingEnabled = enabled
}

// TradingEnabled reports the current trading-enabled state.
func TradingEnabled() bool {
	tradingEnabledMu.Lock()
	defer tradingEnabledMu.Unlock()
	return tradingEnabled
}
