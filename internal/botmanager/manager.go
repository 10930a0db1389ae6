// Package botmanager implements the Bot Manager (§4.6): the process-wide
// registry of running per-symbol agents. It is the only component that
// starts or stops an agent, and the only component that knows the full set
// of symbols currently trading.
package botmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradingfleet/internal/agent"
	"tradingfleet/internal/config"
	"tradingfleet/internal/executor"
	"tradingfleet/internal/logging"
	"tradingfleet/internal/marketdata"
	"tradingfleet/internal/portfolio"
	"tradingfleet/internal/types"
	"tradingfleet/pkg/gateway"
)

// Params are the per-symbol SuperTrend parameters the Orchestrator's
// backtest ranking selects for a symbol before starting its bot (§4.7).
type Params struct {
	Period     int
	Multiplier float64
}

type running struct {
	agent      *agent.Agent
	cancel     context.CancelFunc
	deregister func()
	done       chan struct{}
}

// Manager owns the active map of running agents plus the shared Router,
// Gateway, and Executor every agent is built from.
type Manager struct {
	mu     sync.Mutex
	cfg    config.Config
	gw     gateway.Gateway
	router *marketdata.Router
	exec   *executor.Executor
	log    *logging.Logger

	active map[types.Symbol]*running
}

// New builds a Manager. The Gateway, Router, and Executor are expected to
// already be running (Gateway.Connect and Router.Run started by the caller)
// — the Manager only starts and stops per-symbol agents on top of them.
func New(cfg config.Config, gw gateway.Gateway, router *marketdata.Router, exec *executor.Executor, log *logging.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		gw:     gw,
		router: router,
		exec:   exec,
		log:    log,
		active: make(map[types.Symbol]*running),
	}
}

// StartBot starts trading symbol with the given SuperTrend parameters.
// Starting a symbol that is already active is a no-op (§4.6 idempotence).
func (m *Manager) StartBot(ctx context.Context, symbol types.Symbol, params Params) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[symbol]; ok {
		return nil
	}

	a, err := agent.New(symbol, portfolio.Config{
		GridWidthPct:     m.cfg.Strategy.GridWidthPct,
		MaxEntries:       m.cfg.Strategy.MaxEntries,
		RiskPctPerTrade:  m.cfg.Strategy.RiskPctPerTrade,
		MaxEquityRiskPct: m.cfg.Risk.MaxEquityRiskPct,
	}, m.cfg.App.StateDirectory, m.cfg.Backtest.InitialCapital, m.exec, m.log)
	if err != nil {
		return fmt.Errorf("botmanager: starting %s: %w", symbol, err)
	}

	if err := m.gw.Subscribe([]types.Symbol{symbol}); err != nil {
		return fmt.Errorf("botmanager: subscribing %s: %w", symbol, err)
	}
	bars, prices, deregister := m.router.Register(symbol, params.Period, params.Multiplier, m.cfg.Strategy.MinHistoryBars)

	agentCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Run(agentCtx, bars, prices)
	}()

	m.active[symbol] = &running{agent: a, cancel: cancel, deregister: deregister, done: done}
	if m.log != nil {
		m.log.Infof("bot started: %s (period=%d multiplier=%.2f)", symbol, params.Period, params.Multiplier)
	}
	return nil
}

// StopBot stops symbol's agent. Stopping a symbol that is not active is a
// no-op (§4.6 idempotence). If managePosition is true and the agent is
// holding a position, drop-out handling (§4.4.6) flattens it — bounded by
// the agent's own drop-out timeout — before the agent's tasks are torn down.
func (m *Manager) StopBot(ctx context.Context, symbol types.Symbol, managePosition bool) error {
	m.mu.Lock()
	r, ok := m.active[symbol]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.active, symbol)
	m.mu.Unlock()

	if managePosition {
		if _, err := r.agent.Flatten(ctx); err != nil && m.log != nil {
			m.log.Warnf("botmanager: drop-out flatten for %s: %v", symbol, err)
		}
	}
	r.agent.Persist()

	r.cancel()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		if m.log != nil {
			m.log.Warnf("botmanager: %s did not stop within timeout", symbol)
		}
	}

	r.deregister()
	if err := m.gw.Unsubscribe([]types.Symbol{symbol}); err != nil && m.log != nil {
		m.log.Warnf("botmanager: unsubscribing %s: %v", symbol, err)
	}
	if m.log != nil {
		m.log.Infof("bot stopped: %s", symbol)
	}
	return nil
}

// Agent returns the running agent for symbol, for state inspection.
func (m *Manager) Agent(symbol types.Symbol) (*agent.Agent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.active[symbol]
	if !ok {
		return nil, false
	}
	return r.agent, true
}

// ActiveSymbols returns the symbols currently trading.
func (m *Manager) ActiveSymbols() []types.Symbol {
	m.mu.Lock()
	defer m.mu.Unlock()
	symbols := make([]types.Symbol, 0, len(m.active))
	for s := range m.active {
		symbols = append(symbols, s)
	}
	return symbols
}

// IsActive reports whether symbol currently has a running agent.
func (m *Manager) IsActive(symbol types.Symbol) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[symbol]
	return ok
}

// SaveAllStates persists every active agent's state, best-effort (§4.6).
func (m *Manager) SaveAllStates() {
	m.mu.Lock()
	agents := make([]*agent.Agent, 0, len(m.active))
	for _, r := range m.active {
		agents = append(agents, r.agent)
	}
	m.mu.Unlock()

	for _, a := range agents {
		a.Persist()
	}
}

// Shutdown saves every agent's state, then stops each one, in whatever
// order ActiveSymbols returns them — the stop order does not matter since
// agents do not interact with each other. A process shutdown does not flatten
// open positions; only the Orchestrator's drop-out handling does that (§4.6
// shutdown sequencing: save_all_states → cancel agent tasks → cancel core
// tasks → exit — no drop-out step).
func (m *Manager) Shutdown(ctx context.Context) {
	m.SaveAllStates()
	for _, symbol := range m.ActiveSymbols() {
		if err := m.StopBot(ctx, symbol, false); err != nil && m.log != nil {
			m.log.Warnf("botmanager: error stopping %s during shutdown: %v", symbol, err)
		}
	}
}
