package types

// SignalKind is the decision a Signal Generator emits (§3). Signals describe
// a desired state, not a transition — the Portfolio manager decides whether
// flattening and reversal are required.
type SignalKind string

const (
	EntryLong  SignalKind = "ENTRY_LONG"
	EntryShort SignalKind = "ENTRY_SHORT"
)

// TradeSignal is emitted by the Signal Generator onto an agent's signal channel.
type TradeSignal struct {
	Symbol Symbol     `json:"symbol"`
	Kind   SignalKind `json:"kind"`
	Reason string     `json:"reason"`
}
