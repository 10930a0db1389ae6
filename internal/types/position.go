package types

import "math"

// PositionStatus is derived from sign(position_size) (§4.4.1).
type PositionStatus string

const (
	PositionFlat  PositionStatus = "FLAT"
	PositionLong  PositionStatus = "LONG"
	PositionShort PositionStatus = "SHORT"
)

// zeroTolerance is the epsilon used when deciding whether a fill crosses the
// position through zero (§4.4.4).
const zeroTolerance = 1e-9

// AgentState is the durable, per-symbol record the Portfolio/Grid Manager
// owns exclusively (§3). position_size is signed: positive is LONG, negative
// is SHORT, zero is FLAT.
type AgentState struct {
	BalanceReal     float64   `json:"balance_real"`
	PositionSize    float64   `json:"position_size"`
	AvgEntryPrice   float64   `json:"avg_entry_price"`
	NEntries        int       `json:"n_entries"`
	LongGridPrices  []float64 `json:"long_grid_prices"`
	ShortGridPrices []float64 `json:"short_grid_prices"`
}

// DefaultAgentState is the state a freshly constructed agent starts from when
// no persisted file exists yet (§4.4.7).
func DefaultAgentState(initialCapital float64) AgentState {
	return AgentState{
		BalanceReal:     initialCapital,
		LongGridPrices:  []float64{},
		ShortGridPrices: []float64{},
	}
}

// Status derives position_status from the signed position size.
func (s AgentState) Status() PositionStatus {
	switch {
	case s.PositionSize > zeroTolerance:
		return PositionLong
	case s.PositionSize < -zeroTolerance:
		return PositionShort
	default:
		return PositionFlat
	}
}

// CrossesThroughZero reports whether applying a signed delta to the current
// position would flatten it (§4.4.4's "signed size crosses through 0").
func (s AgentState) CrossesThroughZero(signedDelta float64) bool {
	return math.Abs(s.PositionSize+signedDelta) < zeroTolerance
}

// ApplyEntryFill folds a same-direction entry fill into the position: the new
// average entry price is the volume-weighted blend of the existing position
// value and the fill value, per §4.4.4's scaling-in rule. signedQty carries
// the direction (positive adds to LONG, negative adds to SHORT).
func (s *AgentState) ApplyEntryFill(signedQty, price float64) {
	existingValue := s.PositionSize * s.AvgEntryPrice
	fillValue := signedQty * price
	newSize := s.PositionSize + signedQty
	if math.Abs(newSize) > zeroTolerance {
		s.AvgEntryPrice = (existingValue + fillValue) / newSize
	}
	s.PositionSize = newSize
	s.NEntries++
}

// ApplyFlatteningFill realizes PnL against the current average entry price,
// credits it to balance_real, and resets all position-carrying fields
// (§4.4.4, the §8 flat-state invariant). qty is the unsigned fill quantity;
// closingSide is the side of the fill that closed the position (a SELL closes
// a LONG, a BUY closes a SHORT).
func (s *AgentState) ApplyFlatteningFill(qty, price float64, closingSide OrderSide) (pnl float64) {
	switch closingSide {
	case OrderSideSell:
		pnl = (price - s.AvgEntryPrice) * qty
	case OrderSideBuy:
		pnl = (s.AvgEntryPrice - price) * qty
	}
	s.BalanceReal += pnl
	s.resetToFlat()
	return pnl
}

// resetToFlat clears position-carrying fields, preserving balance_real. Called
// once a flattening fill has been applied (§4.4.4, §8 invariant).
func (s *AgentState) resetToFlat() {
	s.PositionSize = 0
	s.AvgEntryPrice = 0
	s.NEntries = 0
	s.LongGridPrices = []float64{}
	s.ShortGridPrices = []float64{}
}
