package botmanager

import (
	"context"
	"testing"
	"time"

	"tradingfleet/internal/config"
	"tradingfleet/internal/executor"
	"tradingfleet/internal/marketdata"
	"tradingfleet/internal/types"
	"tradingfleet/pkg/gateway"
)

func testConfig(stateDir string) config.Config {
	return config.Config{
		App: config.AppConfig{StateDirectory: stateDir},
		Strategy: config.StrategyConfig{
			GridWidthPct:    1.0,
			MaxEntries:      5,
			RiskPctPerTrade: 1.0,
			MinHistoryBars:  50,
		},
		Risk:     config.RiskConfig{MaxEquityRiskPct: 3.0},
		Backtest: config.BacktestConfig{InitialCapital: 10000},
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	gw := gateway.NewSimulationGateway([]types.Symbol{"BTCUSDT"}, map[types.Symbol]float64{"BTCUSDT": 30000}, 10000, 1)
	if err := gw.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	router := marketdata.New()
	ex := executor.New(gw, nil)
	go router.Run(context.Background(), gw.PriceUpdates())
	return New(testConfig(t.TempDir()), gw, router, ex, nil)
}

func TestStartBotIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.StartBot(ctx, "BTCUSDT", Params{Period: 10, Multiplier: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.StartBot(ctx, "BTCUSDT", Params{Period: 10, Multiplier: 3}); err != nil {
		t.Fatalf("unexpected error on second start: %v", err)
	}
	if syms := m.ActiveSymbols(); len(syms) != 1 {
		t.Fatalf("expected exactly one active symbol, got %v", syms)
	}
}

func TestStopBotIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_ = m.StartBot(ctx, "BTCUSDT", Params{Period: 10, Multiplier: 3})

	if err := m.StopBot(ctx, "BTCUSDT", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.StopBot(ctx, "BTCUSDT", false); err != nil {
		t.Fatalf("unexpected error on second stop: %v", err)
	}
	if m.IsActive("BTCUSDT") {
		t.Fatal("expected BTCUSDT to no longer be active")
	}
}

func TestShutdownStopsEveryActiveBot(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_ = m.StartBot(ctx, "BTCUSDT", Params{Period: 10, Multiplier: 3})

	done := make(chan struct{})
	go func() {
		m.Shutdown(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Shutdown to complete promptly")
	}
	if len(m.ActiveSymbols()) != 0 {
		t.Fatal("expected no active symbols after shutdown")
	}
}
