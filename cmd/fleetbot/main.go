package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradingfleet/internal/backtest"
	"tradingfleet/internal/botmanager"
	"tradingfleet/internal/config"
	"tradingfleet/internal/executor"
	"tradingfleet/internal/logging"
	"tradingfleet/internal/marketdata"
	"tradingfleet/internal/orchestrator"
	"tradingfleet/internal/types"
	"tradingfleet/pkg/gateway"
)

// simUniverse seeds the SIMULATION gateway when no LIVE exchange is
// configured — a handful of representative USDT perpetuals so the
// Orchestrator's discovery/reconciliation cycle has something to select
// from out of the box.
var simUniverse = []types.Symbol{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT", "XRPUSDT"}

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "fleetbot: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logging)
	logging.InitGlobalLogger(cfg.Logging)
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	if err := os.MkdirAll(cfg.App.StateDirectory, 0755); err != nil {
		logger.Fatalf("fleetbot: creating state directory: %v", err)
	}

	simPrices := make(map[types.Symbol]float64, len(simUniverse))
	for _, s := range simUniverse {
		simPrices[s] = 100
	}
	gw, err := gateway.New(cfg.Exchange, logger, simUniverse, simPrices, cfg.Backtest.InitialCapital)
	if err != nil {
		logger.Fatalf("fleetbot: building gateway: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := gw.Connect(ctx); err != nil {
		logger.Fatalf("fleetbot: connecting gateway: %v", err)
	}

	router := marketdata.New()
	go router.Run(ctx, gw.PriceUpdates())

	exec := executor.New(gw, logger)
	bots := botmanager.New(*cfg, gw, router, exec, logger)
	opt := backtest.NewOptimizer(gw)
	orch := orchestrator.New(gw, opt, bots, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("fleetbot: received %s, shutting down", sig)
		cancel()
	}()

	logger.Infof("fleetbot: started in %s mode, reconciling every %s", cfg.Exchange.Mode, cfg.App.ReconciliationInterval)
	runCycleLoop(ctx, orch, cfg.App.ReconciliationInterval, logger)

	shutdown(bots, gw, cfg.App.ShutdownTimeout, logger)
	logger.Info("fleetbot: shutdown complete")
}

// runCycleLoop drives the Orchestrator once immediately, then on a fixed
// interval, until ctx is cancelled (§4.7's 15-minute cadence).
func runCycleLoop(ctx context.Context, orch *orchestrator.Orchestrator, interval time.Duration, log *logging.Logger) {
	runOnce := func() {
		if err := orch.RunCycle(ctx); err != nil {
			log.Warnf("fleetbot: reconciliation cycle failed: %v", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// shutdown performs the sequence §4.6 specifies: persist every agent's
// state, stop them all (without managing positions — only the
// Orchestrator's reconciliation drop-outs do that), then tear down the
// gateway itself.
func shutdown(bots *botmanager.Manager, gw gateway.Gateway, timeout time.Duration, log *logging.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	bots.Shutdown(shutdownCtx)
	if err := gw.Disconnect(); err != nil {
		log.Warnf("fleetbot: disconnecting gateway: %v", err)
	}
}
