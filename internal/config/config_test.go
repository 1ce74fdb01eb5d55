package config_test

import (
	"testing"
	"time"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/config"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if !cfg.PaperTrading {
		t.Fatal("expected paper trading to default to true")
	}
	if cfg.RegimeSymbol != "SPY" {
		t.Fatalf("expected default regime symbol SPY, got %s", cfg.RegimeSymbol)
	}
	if cfg.TickInterval != 60*time.Second {
		t.Fatalf("expected default tick interval of 60s, got %s", cfg.TickInterval)
	}
	if len(cfg.Symbols) == 0 {
		t.Fatal("expected a non-empty default symbol list")
	}
	if cfg.StorageDSN != "" {
		t.Fatalf("expected empty storage DSN by default (in-memory store), got %q", cfg.StorageDSN)
	}
}

func TestLoadAppliesEnvironmentOverride(t *testing.T) {
	t.Setenv("TRADER_RUNNER_REGIME_SYMBOL", "QQQ")
	t.Setenv("TRADER_PAPER_TRADING", "false")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.RegimeSymbol != "QQQ" {
		t.Fatalf("expected env override to set regime symbol to QQQ, got %s", cfg.RegimeSymbol)
	}
	if cfg.PaperTrading {
		t.Fatal("expected env override to disable paper trading")
	}
}

func TestLoadRiskLimitsDefaultsAreSane(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.RiskLimits.MaxOpenPositions <= 0 {
		t.Fatal("expected a positive default max open positions limit")
	}
	if cfg.RiskLimits.MaxDrawdownPct.IsZero() {
		t.Fatal("expected a non-zero default max drawdown limit")
	}
}
