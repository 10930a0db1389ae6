// Package marketdata implements the Market Data Router (§4.2): it turns raw
// trade prints from the Gateway into 1-minute OHLCV bars, keeps a rolling
// 500-bar history per symbol, dispatches an enriched bar — SuperTrend
// direction plus a diagnostics snapshot — to every agent registered for
// that symbol once warmed up, and fans out every raw tick as a price update
// so an agent's last_known_price never lags behind the current bar (§4.4.1).
package marketdata

import (
	"context"
	"sync"
	"time"

	"tradingfleet/internal/indicator"
	"tradingfleet/internal/types"
)

// maxHistory bounds the in-memory bar history per symbol (§4.2).
const maxHistory = 500

// resampleInterval is the tick-to-bar cadence (§4.2).
const resampleInterval = time.Minute

// EnrichedBar is what the Router dispatches once per completed bar per
// registered symbol.
type EnrichedBar struct {
	Bar         types.OHLCVBar
	Direction   indicator.Direction
	Diagnostics indicator.Diagnostics
}

type symbolState struct {
	buffer      types.TickBuffer
	history     []types.OHLCVBar
	period      int
	multiplier  float64
	minHistory  int
	subscribers map[chan EnrichedBar]struct{}
	priceSubs   map[chan float64]struct{}
}

// Router owns all per-symbol tick buffering and bar history. One Router
// serves every agent in the process.
type Router struct {
	mu      sync.Mutex
	symbols map[types.Symbol]*symbolState
}

// New builds an empty Router.
func New() *Router {
	return &Router{symbols: make(map[types.Symbol]*symbolState)}
}

// Register starts tracking symbol with the given SuperTrend parameters and
// returns a channel of enriched bars, a channel of raw price ticks, and a
// deregister function. minHistory is an operator-configured warm-up floor
// (internal/config.StrategyConfig.MinHistoryBars) — the Router withholds
// enriched bars until history exceeds whichever of period or minHistory is
// larger (§4.2 step 3). Calling Register for a symbol that is already
// registered replaces its parameters and adds another subscriber.
func (r *Router) Register(symbol types.Symbol, period int, multiplier float64, minHistory int) (<-chan EnrichedBar, <-chan float64, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, exists := r.symbols[symbol]
	if !exists {
		st = &symbolState{
			subscribers: make(map[chan EnrichedBar]struct{}),
			priceSubs:   make(map[chan float64]struct{}),
		}
		r.symbols[symbol] = st
	}
	st.period = period
	st.multiplier = multiplier
	st.minHistory = minHistory

	ch := make(chan EnrichedBar, 16)
	st.subscribers[ch] = struct{}{}

	priceCh := make(chan float64, 64)
	st.priceSubs[priceCh] = struct{}{}

	deregister := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if st, ok := r.symbols[symbol]; ok {
			delete(st.subscribers, ch)
			delete(st.priceSubs, priceCh)
			if len(st.subscribers) == 0 {
				delete(r.symbols, symbol)
			}
		}
		close(ch)
		close(priceCh)
	}
	return ch, priceCh, deregister
}

// AddTick feeds one trade print into symbol's resample buffer and
// immediately fans it out, drop-oldest, to every price subscriber — this is
// the continuous price_chan of §5's five-channel model, independent of the
// once-per-minute bar cadence. Ticks for a symbol with no registered
// subscriber are dropped — there is nothing to resample or forward for.
func (r *Router) AddTick(symbol types.Symbol, price float64) {
	r.mu.Lock()
	st, ok := r.symbols[symbol]
	if !ok {
		r.mu.Unlock()
		return
	}
	st.buffer.Add(price)
	subs := make([]chan float64, 0, len(st.priceSubs))
	for ch := range st.priceSubs {
		subs = append(subs, ch)
	}
	r.mu.Unlock()

	for _, ch := range subs {
		sendPriceDropOldest(ch, price)
	}
}

// Run drains updates into per-symbol tick buffers and resamples every
// symbol once per resampleInterval until ctx is canceled.
func (r *Router) Run(ctx context.Context, updates <-chan types.PriceUpdate) {
	ticker := time.NewTicker(resampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			r.AddTick(u.Symbol, u.Price)
		case now := <-ticker.C:
			r.resampleAll(now)
		}
	}
}

func (r *Router) resampleAll(now time.Time) {
	r.mu.Lock()
	type dispatch struct {
		subs []chan EnrichedBar
		bar  EnrichedBar
	}
	var pending []dispatch

	for _, st := range r.symbols {
		bar, ok := st.buffer.ResampleOHLC(now)
		if !ok {
			continue // silent minute — don't synthesize a bar (§4.2)
		}
		st.history = append(st.history, bar)
		if len(st.history) > maxHistory {
			st.history = st.history[len(st.history)-maxHistory:]
		}

		warmup := st.period
		if st.minHistory > warmup {
			warmup = st.minHistory
		}
		if len(st.history) <= warmup {
			continue // not enough history yet for a stable SuperTrend band (§4.2 step 3)
		}

		series := indicator.ComputeSuperTrend(st.history, st.period, st.multiplier)
		_, dir, ok := series.Last()
		if !ok {
			continue
		}
		diag := indicator.Snapshot(st.history)

		subs := make([]chan EnrichedBar, 0, len(st.subscribers))
		for ch := range st.subscribers {
			subs = append(subs, ch)
		}
		pending = append(pending, dispatch{subs: subs, bar: EnrichedBar{Bar: bar, Direction: dir, Diagnostics: diag}})
	}
	r.mu.Unlock()

	for _, d := range pending {
		for _, ch := range d.subs {
			sendBarDropOldest(ch, d.bar)
		}
	}
}

// sendBarDropOldest pushes bar onto ch, discarding the oldest buffered bar to
// make room rather than block the resample tick when ch is full (§5).
func sendBarDropOldest(ch chan EnrichedBar, bar EnrichedBar) {
	select {
	case ch <- bar:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- bar:
		default:
		}
	}
}

// sendPriceDropOldest is sendBarDropOldest's counterpart for the raw price
// channel — ticks arrive far more often than bars, so the same backpressure
// rule applies even more.
func sendPriceDropOldest(ch chan float64, price float64) {
	select {
	case ch <- price:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- price:
		default:
		}
	}
}
