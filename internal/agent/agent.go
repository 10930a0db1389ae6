// Package agent wires one symbol's Signal Generator, Portfolio/Grid Manager,
// and Order Executor together into the per-symbol pipeline the fleet runs
// one instance of per traded symbol (§3, §4.4.7 persistence).
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradingfleet/internal/executor"
	"tradingfleet/internal/logging"
	"tradingfleet/internal/marketdata"
	"tradingfleet/internal/portfolio"
	"tradingfleet/internal/signal"
	"tradingfleet/internal/types"
)

// Agent owns the full pipeline for one symbol: it consumes enriched bars,
// turns direction flips into signals, turns signals and fills into orders
// and state changes, and persists state after every change.
type Agent struct {
	symbol    types.Symbol
	generator *signal.Generator
	manager   *portfolio.Manager
	exec      *executor.Executor
	stateFile string
	log       *logging.Logger
}

// New builds an Agent for symbol, loading its persisted state from
// stateDir/<symbol>.json if present, or starting from
// types.DefaultAgentState(initialCapital) otherwise (§4.4.7).
func New(symbol types.Symbol, cfg portfolio.Config, stateDir string, initialCapital float64, exec *executor.Executor, log *logging.Logger) (*Agent, error) {
	stateFile := filepath.Join(stateDir, string(symbol)+".json")
	state, err := loadState(stateFile, initialCapital)
	if err != nil {
		return nil, fmt.Errorf("agent: loading state for %s: %w", symbol, err)
	}
	return &Agent{
		symbol:    symbol,
		generator: signal.New(symbol),
		manager:   portfolio.New(symbol, cfg, state, log),
		exec:      exec,
		stateFile: stateFile,
		log:       log,
	}, nil
}

func loadState(path string, initialCapital float64) (types.AgentState, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return types.DefaultAgentState(initialCapital), nil
	}
	if err != nil {
		return types.AgentState{}, err
	}
	var state types.AgentState
	if err := json.Unmarshal(data, &state); err != nil {
		return types.AgentState{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return state, nil
}

// Persist writes the agent's current state to disk, best-effort. The Bot
// Manager calls this from StopBot and from SaveAllStates during shutdown
// (§4.6); the agent also saves internally after every fill.
func (a *Agent) Persist() {
	a.saveState()
}

// saveState persists the agent's current state. A failure is logged and
// swallowed — the in-memory state remains authoritative for this process's
// lifetime regardless of whether the write succeeded (§4.4.7, best effort).
func (a *Agent) saveState() {
	if err := os.MkdirAll(filepath.Dir(a.stateFile), 0755); err != nil {
		if a.log != nil {
			a.log.Warnf("agent %s: could not create state directory: %v", a.symbol, err)
		}
		return
	}
	data, err := json.MarshalIndent(a.manager.State(), "", "  ")
	if err != nil {
		if a.log != nil {
			a.log.Warnf("agent %s: could not marshal state: %v", a.symbol, err)
		}
		return
	}
	if err := os.WriteFile(a.stateFile, data, 0644); err != nil {
		if a.log != nil {
			a.log.Warnf("agent %s: could not write state file: %v", a.symbol, err)
		}
	}
}

// Run consumes enriched bars and raw price ticks until ctx is canceled or
// bars closes. A price tick only updates last_known_price (§4.4.1); every
// bar that produces a signal flows through the manager into one or more
// orders, each submitted synchronously, with every resulting fill flowing
// back into the manager, which may itself emit further staged grid orders
// that are submitted the same way (§4.4.3–§4.4.5).
func (a *Agent) Run(ctx context.Context, bars <-chan marketdata.EnrichedBar, prices <-chan float64) {
	for {
		select {
		case <-ctx.Done():
			return
		case price, ok := <-prices:
			if !ok {
				prices = nil // stop selecting a closed channel; bars still drives shutdown
				continue
			}
			a.ObservePrice(price)
		case bar, ok := <-bars:
			if !ok {
				return
			}
			a.processBar(ctx, bar)
		}
	}
}

// ObservePrice records a raw trade tick as the agent's last_known_price,
// independent of the bar cadence (§4.4.1).
func (a *Agent) ObservePrice(price float64) {
	a.manager.UpdatePrice(price)
}

func (a *Agent) processBar(ctx context.Context, bar marketdata.EnrichedBar) {
	sig, ok := a.generator.Next(bar)
	if !ok {
		return
	}
	if a.log != nil {
		a.log.LogSignal(string(a.symbol), string(sig.Kind), sig.Reason)
	}

	orders, err := a.manager.HandleSignal(sig)
	if err != nil {
		if a.log != nil {
			a.log.Errorf("agent %s: signal handling failed: %v", a.symbol, err)
		}
		return
	}
	a.submitAndChain(ctx, orders)
}

// submitAndChain submits each order in turn and feeds its fill back into the
// manager, recursing into whatever further orders that fill produces (the
// first grid entry staging the remaining levels).
func (a *Agent) submitAndChain(ctx context.Context, orders []types.Order) {
	for _, order := range orders {
		fill, err := a.exec.Submit(ctx, order)
		if err != nil {
			continue // rejected or errored: not retried (§4.5)
		}
		_, staged, err := a.manager.HandleFill(fill)
		if err != nil {
			if a.log != nil {
				a.log.Errorf("agent %s: fill handling failed: %v", a.symbol, err)
			}
			continue
		}
		a.saveState()
		if len(staged) > 0 {
			a.submitAndChain(ctx, staged)
		}
	}
}

// State returns the agent's current AgentState, primarily for reporting.
func (a *Agent) State() types.AgentState {
	return a.manager.State()
}

// dropOutTimeout bounds how long Flatten waits for its exit fill before
// giving up (§4.4.6).
const dropOutTimeout = 30 * time.Second

// Flatten issues an EXIT_FLATTEN order for whatever position is currently
// held and waits for its fill, bounded by dropOutTimeout, for the Bot
// Manager's drop-out handling when a symbol is decommissioned (§4.4.6).
// It returns immediately with ok=false if the agent is already FLAT.
func (a *Agent) Flatten(ctx context.Context) (ok bool, err error) {
	order, needed := a.manager.RequestFlatten()
	if !needed {
		return false, nil
	}

	flattenCtx, cancel := context.WithTimeout(ctx, dropOutTimeout)
	defer cancel()

	fill, err := a.exec.Submit(flattenCtx, order)
	if err != nil {
		return false, fmt.Errorf("agent %s: drop-out flatten failed: %w", a.symbol, err)
	}
	if _, _, err := a.manager.HandleFill(fill); err != nil {
		return false, fmt.Errorf("agent %s: drop-out fill handling failed: %w", a.symbol, err)
	}
	a.saveState()
	return true, nil
}
