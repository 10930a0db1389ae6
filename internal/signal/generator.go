// Package signal implements the Signal Generator (§4.3): a pure function of
// the previous bar's SuperTrend direction against the bar before it that
// emits ENTRY_LONG/ENTRY_SHORT on a confirmed flip, with duplicate-signal
// suppression. Deciding from the previous bar rather than the one just
// received is deliberate (§4.3): it mirrors the original strategy's use of
// the last fully-formed candle rather than the newest one, so a flip is
// acted on only once it has survived an additional bar.
package signal

import (
	"tradingfleet/internal/indicator"
	"tradingfleet/internal/marketdata"
	"tradingfleet/internal/types"
)

// Generator tracks the last two directions seen for one symbol and decides
// from the older of the two (the previous bar, relative to the bar just
// received) so it only emits a signal once a flip is one bar old.
type Generator struct {
	symbol types.Symbol

	// previous is the direction of the bar immediately preceding the one
	// just received; baseline is the direction before that. A signal fires
	// when previous and baseline disagree — the flip is confirmed against
	// the bar it is being compared to, not against the bar that produced it.
	previous    indicator.Direction
	hasPrevious bool
	baseline    indicator.Direction
	hasBaseline bool
}

// New builds a Generator for symbol. No signal is emitted until two bars
// have shifted through the window — there is no prior direction to flip
// from, and then no confirming bar yet to flip against.
func New(symbol types.Symbol) *Generator {
	return &Generator{symbol: symbol}
}

// Next evaluates one enriched bar and returns a signal if the previous bar's
// SuperTrend direction flipped relative to the bar before it. ok is false
// when there is nothing to emit (warming up, or direction unchanged).
func (g *Generator) Next(bar marketdata.EnrichedBar) (types.TradeSignal, bool) {
	sig, ok := g.evaluate()

	g.baseline, g.hasBaseline = g.previous, g.hasPrevious
	g.previous, g.hasPrevious = bar.Direction, true

	return sig, ok
}

func (g *Generator) evaluate() (types.TradeSignal, bool) {
	if !g.hasPrevious || !g.hasBaseline || g.previous == g.baseline {
		return types.TradeSignal{}, false
	}

	switch g.previous {
	case indicator.Up:
		return types.TradeSignal{Symbol: g.symbol, Kind: types.EntryLong, Reason: "supertrend flipped up"}, true
	case indicator.Down:
		return types.TradeSignal{Symbol: g.symbol, Kind: types.EntryShort, Reason: "supertrend flipped down"}, true
	default:
		return types.TradeSignal{}, false
	}
}
