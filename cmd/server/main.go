// Package main provides the entry point for the trading execution engine:
// broker connectivity, the strategy runner's scheduler loop, and a thin
// local status surface, wired from one layered configuration file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/api"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/broker"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/budget"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/config"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/execution"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/marketcache"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/risk"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/runner"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/storage"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/storage/memstore"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/storage/sqlstore"
	"github.com/sudipto00/StocksBot-CrossP-sub000/internal/strategy"
)

func main() {
	configPath := flag.String("config", "", "Path to an optional YAML config file")
	logLevel := flag.String("log-level", "", "Override log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := setupLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting trading execution engine",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Strings("symbols", cfg.Symbols),
		zap.Bool("paperTrading", cfg.PaperTrading),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(cfg.StorageDSN)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer store.Close()

	var brokerPort broker.Port
	if cfg.PaperTrading {
		brokerPort = broker.NewPaperBroker(logger, cfg.InitialCash)
	} else {
		brokerPort = broker.NewLiveBroker()
	}

	cache, err := marketcache.New(logger, cfg.DataDir, brokerAsBarSource(brokerPort))
	if err != nil {
		logger.Fatal("failed to initialize market cache", zap.Error(err))
	}
	_ = cache // exercised by the offline backtest/optimizer entry points, not the live runner's direct broker fetches

	riskManager := risk.NewManager(logger, cfg.RiskLimits)

	var budgetTracker *budget.WeeklyTracker
	if cfg.BudgetTrackingOn {
		budgetTracker = budget.NewWeeklyTracker(logger, cfg.WeeklyBudget)
	}

	execSvc := execution.NewService(logger, brokerPort, store, riskManager, budgetTracker, execution.Config{
		MaxPositionSize:     cfg.RiskLimits.MaxPositionSize,
		DailyRiskLimit:      cfg.RiskLimits.DailyLossLimit,
		OrderThrottlePerMin: cfg.OrderThrottlePerMin,
		BudgetTrackingOn:    cfg.BudgetTrackingOn,
	})

	tradingRunner := runner.New(logger, brokerPort, store, execSvc, riskManager, cfg.RegimeSymbol, cfg.TickInterval, cfg.StreamingEnabled)
	tradingRunner.Restore(ctx)

	registry := strategy.NewRegistry()
	for _, name := range registry.List() {
		instance, ok := registry.Create(name, logger, cfg.Strategy)
		if !ok {
			continue
		}
		tradingRunner.LoadStrategy(name, name, cfg.Symbols, instance)
	}

	apiServer := api.NewServer(logger, &cfg.Server, tradingRunner, riskManager)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := tradingRunner.Start(ctx); err != nil {
		logger.Fatal("failed to start strategy runner", zap.Error(err))
	}

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("status surface error", zap.Error(err))
		}
	}()

	logger.Info("trading engine started",
		zap.String("status", fmt.Sprintf("http://%s:%d/api/v1/status", cfg.Server.Host, cfg.Server.Port)),
		zap.Bool("paperTrading", cfg.PaperTrading),
	)

	<-sigChan
	logger.Info("shutdown signal received")
	cancel()

	if err := tradingRunner.Stop(context.Background()); err != nil {
		logger.Error("error stopping strategy runner", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during status surface shutdown", zap.Error(err))
	}

	logger.Info("trading engine stopped")
}

func openStore(dsn string) (storage.Store, error) {
	if dsn == "" {
		return memstore.New(), nil
	}
	return sqlstore.Open(dsn)
}

// brokerBarSource narrows a broker.Port down to the historical-bar fetch
// the market cache needs, so that package doesn't import broker just
// for its much larger Port interface.
type brokerBarSource struct {
	broker.Port
}

func brokerAsBarSource(b broker.Port) marketcache.BarSource {
	return brokerBarSource{b}
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
