// Package orchestrator implements the Orchestrator (§4.7): the fleet-wide
// controller that runs a 15-minute universe-refresh, backtest, and
// bot-reconciliation cycle, deciding which symbols trade and with which
// SuperTrend parameters.
package orchestrator

import (
	"context"
	"sort"
	"sync"

	"tradingfleet/internal/backtest"
	"tradingfleet/internal/botmanager"
	"tradingfleet/internal/logging"
	"tradingfleet/internal/types"
	"tradingfleet/pkg/gateway"
)

// topN is how many ranked candidates stay selected between cycles (§4.7
// step 5).
const topN = 5

// Orchestrator owns the tradable universe, the current selection, and drives
// one reconciliation cycle at a time against the Bot Manager.
type Orchestrator struct {
	gw    gateway.Gateway
	opt   *backtest.Optimizer
	bots  *botmanager.Manager
	log   *logging.Logger

	mu               sync.Mutex
	tradableUniverse map[types.Symbol]bool
	currentSelection map[types.Symbol]botmanager.Params
}

// New builds an Orchestrator. gw is used both for the universe refresh and
// the discovery fetch; opt drives the per-ticker backtest; bots is the Bot
// Manager whose active set this Orchestrator reconciles towards.
func New(gw gateway.Gateway, opt *backtest.Optimizer, bots *botmanager.Manager, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		gw:               gw,
		opt:              opt,
		bots:             bots,
		log:              log,
		tradableUniverse: make(map[types.Symbol]bool),
		currentSelection: make(map[types.Symbol]botmanager.Params),
	}
}

// ranked is one candidate's backtest result, kept only long enough to sort
// and reconcile.
type ranked struct {
	symbol types.Symbol
	params botmanager.Params
	profit float64
}

// RunCycle executes one full cycle (§4.7 steps 1-9). A failed universe
// refresh with no previous universe, or a failed discovery fetch, aborts the
// cycle with an error; a failed refresh with a previous universe reuses it.
// An abort, or an empty candidate intersection, leaves the current selection
// and whatever bots are already running untouched.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	// Step 1: refresh the tradable universe; reuse the previous one on
	// failure, abort the cycle if there has never been one.
	if universe, err := o.gw.GetInstruments(ctx); err != nil {
		o.logf("universe refresh failed, reusing previous: %v", err)
		o.mu.Lock()
		empty := len(o.tradableUniverse) == 0
		o.mu.Unlock()
		if empty {
			return errAbort("no tradable universe available and refresh failed")
		}
	} else {
		o.mu.Lock()
		o.tradableUniverse = make(map[types.Symbol]bool, len(universe))
		for _, s := range universe {
			o.tradableUniverse[s] = true
		}
		o.mu.Unlock()
	}

	// Step 2: fetch the discovery endpoint's candidate list.
	candidates, err := o.gw.GetTopCandidates(ctx)
	if err != nil {
		return errAbort("discovery fetch failed: " + err.Error())
	}

	// Step 3: intersect with the tradable universe.
	o.mu.Lock()
	universe := o.tradableUniverse
	o.mu.Unlock()
	valid := make([]types.Symbol, 0, len(candidates))
	for _, c := range candidates {
		if universe[c] {
			valid = append(valid, c)
		}
	}
	if len(valid) == 0 {
		o.logf("no discovery candidates are in the tradable universe, skipping cycle")
		return nil
	}

	// Step 4: backtest every valid candidate in parallel.
	results := o.optimizeAll(ctx, valid)

	// Step 5: rank by net_profit descending, take the top N.
	sort.Slice(results, func(i, j int) bool { return results[i].profit > results[j].profit })
	if len(results) > topN {
		results = results[:topN]
	}
	newSelection := make(map[types.Symbol]botmanager.Params, len(results))
	for _, r := range results {
		newSelection[r.symbol] = r.params
	}

	// Step 6: reconcile by set-diff against the current selection.
	o.mu.Lock()
	previous := o.currentSelection
	o.mu.Unlock()
	toStop, toStart := diff(previous, newSelection)

	// Step 7: stop dropped symbols, managing any open position.
	for _, sym := range toStop {
		if err := o.bots.StopBot(ctx, sym, true); err != nil {
			o.logf("stopping %s: %v", sym, err)
		}
	}

	// Step 8: start newly selected symbols.
	for _, sym := range toStart {
		if err := o.bots.StartBot(ctx, sym, newSelection[sym]); err != nil {
			o.logf("starting %s: %v", sym, err)
		}
	}

	// Step 9: the new selection becomes current.
	o.mu.Lock()
	o.currentSelection = newSelection
	o.mu.Unlock()
	return nil
}

// optimizeAll runs the Backtester's optimize() across every candidate
// concurrently (§4.7 step 4), collecting only non-null results.
func (o *Orchestrator) optimizeAll(ctx context.Context, symbols []types.Symbol) []ranked {
	out := make([]ranked, len(symbols))
	var wg sync.WaitGroup
	wg.Add(len(symbols))
	for i, sym := range symbols {
		go func(i int, sym types.Symbol) {
			defer wg.Done()
			result, err := o.opt.Optimize(ctx, sym)
			if err != nil {
				o.logf("optimizing %s: %v", sym, err)
				return
			}
			if result == nil {
				return
			}
			out[i] = ranked{
				symbol: sym,
				params: botmanager.Params{Period: result.Best.Period, Multiplier: result.Best.Multiplier},
				profit: result.Best.NetProfit,
			}
		}(i, sym)
	}
	wg.Wait()

	collected := out[:0]
	for _, r := range out {
		if r.symbol != "" {
			collected = append(collected, r)
		}
	}
	return collected
}

// diff computes which symbols should stop (present in previous, absent from
// next) and which should start (present in next, absent from previous) —
// (§4.7 step 6, §8 scenario 4).
func diff(previous, next map[types.Symbol]botmanager.Params) (toStop, toStart []types.Symbol) {
	for sym := range previous {
		if _, ok := next[sym]; !ok {
			toStop = append(toStop, sym)
		}
	}
	for sym := range next {
		if _, ok := previous[sym]; !ok {
			toStart = append(toStart, sym)
		}
	}
	return toStop, toStart
}

func (o *Orchestrator) logf(format string, args ...interface{}) {
	if o.log != nil {
		o.log.Warnf("orchestrator: "+format, args...)
	}
}

// errAbort is a cycle-abort error: logged by the caller, never fatal to the
// process (§4.7, §7).
type errAbort string

func (e errAbort) Error() string { return string(e) }
