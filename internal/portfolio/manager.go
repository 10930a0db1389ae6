// Package portfolio implements the Portfolio/Grid Manager (§4.4): the sole
// owner of a symbol's AgentState. It turns signals into sized entry orders,
// folds fill confirmations back into state, and stages the multi-entry grid
// once a position is open.
package portfolio

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"tradingfleet/internal/logging"
	"tradingfleet/internal/types"
)

// Config is the fleet-wide strategy/risk parameters a Manager sizes and
// stages against (internal/config.StrategyConfig + RiskConfig, narrowed to
// what this package needs).
type Config struct {
	GridWidthPct     float64
	MaxEntries       int
	RiskPctPerTrade  float64
	MaxEquityRiskPct float64
}

// Manager owns one symbol's AgentState for the lifetime of its agent.
// Everything that can change state — a signal, a fill — goes through it;
// nothing else is allowed to touch the state directly (§3 Ownership).
type Manager struct {
	mu     sync.Mutex
	symbol types.Symbol
	cfg    Config
	state  types.AgentState
	log    *logging.Logger

	// gridOrderIDs tracks the currently-staged grid levels, keyed by side
	// and price, so a re-stage never double-issues a level (§4.4.5).
	gridOrderIDs map[string]bool

	// lastPrice is last_known_price (§4.4.1): maintained continuously from
	// the price channel, independent of bar closes, and not persisted.
	lastPrice    float64
	hasLastPrice bool
}

// New builds a Manager starting from state (the persisted state, or
// types.DefaultAgentState if none existed yet).
func New(symbol types.Symbol, cfg Config, state types.AgentState, log *logging.Logger) *Manager {
	return &Manager{
		symbol:       symbol,
		cfg:          cfg,
		state:        state,
		log:          log,
		gridOrderIDs: make(map[string]bool),
	}
}

// State returns a copy of the current AgentState, safe for persistence.
func (m *Manager) State() types.AgentState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// UpdatePrice records the latest trade price for this symbol. Called on
// every raw tick from the Router's price channel, not just on bar closes, so
// last_known_price never lags the market by up to a full bar period (§4.4.1).
func (m *Manager) UpdatePrice(price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPrice = price
	m.hasLastPrice = true
}

// HandleSignal reacts to a Signal Generator decision (§4.4.3). A signal in
// the direction the agent already holds is a no-op — scaling happens only
// through grid fills, never through a repeated signal. A signal opposite the
// held direction flattens the position immediately; the reversal itself is
// deferred to whatever signal arrives after the agent is confirmed flat, so
// HandleSignal never emits both a flatten and a fresh entry for one signal.
// Sizing and flatten logging both use last_known_price, not the bar that
// carried the signal (§4.4.1, §4.4.2).
func (m *Manager) HandleSignal(sig types.TradeSignal) ([]types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := m.state.Status()
	wantLong := sig.Kind == types.EntryLong

	switch status {
	case types.PositionFlat:
		if !m.hasLastPrice {
			return nil, fmt.Errorf("portfolio: no last known price yet for %s, cannot size an entry", m.symbol)
		}
		return m.openEntry(wantLong, m.lastPrice)
	case types.PositionLong:
		if wantLong {
			return nil, nil
		}
		return m.flatten(m.lastPrice)
	case types.PositionShort:
		if !wantLong {
			return nil, nil
		}
		return m.flatten(m.lastPrice)
	default:
		return nil, fmt.Errorf("portfolio: unknown position status %q", status)
	}
}

func (m *Manager) openEntry(long bool, price float64) ([]types.Order, error) {
	qty := ComputePositionSize(m.state.BalanceReal, m.cfg.RiskPctPerTrade, m.cfg.GridWidthPct, m.cfg.MaxEquityRiskPct, price)
	if qty <= 0 {
		return nil, fmt.Errorf("portfolio: computed non-positive position size for %s at price %v", m.symbol, price)
	}
	side := types.OrderSideSell
	if long {
		side = types.OrderSideBuy
	}
	order := types.NewMarketOrder(newOrderID(m.symbol, types.TagGridEntry1), m.symbol, side, qty, types.TagGridEntry1)
	if m.log != nil {
		m.log.LogOrder(string(m.symbol), string(side), string(order.Type), order.Tag, qty, price)
	}
	return []types.Order{order}, nil
}

// RequestFlatten builds an EXIT_FLATTEN order for whatever position is
// currently held, for use by the Bot Manager's drop-out handling (§4.4.6)
// when a symbol is decommissioned independent of any signal. ok is false
// when the position is already FLAT — there is nothing to flatten.
func (m *Manager) RequestFlatten() (order types.Order, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status() == types.PositionFlat {
		return types.Order{}, false
	}
	orders, _ := m.flatten(m.state.AvgEntryPrice)
	return orders[0], true
}

func (m *Manager) flatten(price float64) ([]types.Order, error) {
	qty := m.state.PositionSize
	if qty < 0 {
		qty = -qty
	}
	side := types.OrderSideSell
	if m.state.PositionSize < 0 {
		side = types.OrderSideBuy
	}
	order := types.NewMarketOrder(newOrderID(m.symbol, types.TagExitFlatten), m.symbol, side, qty, types.TagExitFlatten)
	if m.log != nil {
		m.log.LogOrder(string(m.symbol), string(side), string(order.Type), order.Tag, qty, price)
	}
	return []types.Order{order}, nil
}

// HandleFill folds a confirmed fill into state (§4.4.4) and, on the entry
// that opens a fresh position, stages the remaining grid levels (§4.4.5).
// pnl is non-zero only for a flattening fill.
func (m *Manager) HandleFill(fill types.FillConfirmation) (pnl float64, staged []types.Order, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch fill.Tag {
	case types.TagExitFlatten:
		pnl = m.state.ApplyFlatteningFill(fill.Quantity, fill.Price, fill.Side)
		m.gridOrderIDs = make(map[string]bool)
		if m.log != nil {
			m.log.LogFill(string(fill.Symbol), string(fill.Side), fill.Tag, fill.Quantity, fill.Price, pnl)
		}
		return pnl, nil, nil

	case types.TagGridEntry1:
		signedQty := signedQuantity(fill.Side, fill.Quantity)
		m.state.ApplyEntryFill(signedQty, fill.Price)
		if m.log != nil {
			m.log.LogFill(string(fill.Symbol), string(fill.Side), fill.Tag, fill.Quantity, fill.Price, 0)
		}
		staged = m.stageGrid(fill.Side, fill.Price)
		return 0, staged, nil

	case types.TagGridEntryN:
		signedQty := signedQuantity(fill.Side, fill.Quantity)
		m.state.ApplyEntryFill(signedQty, fill.Price)
		if m.log != nil {
			m.log.LogFill(string(fill.Symbol), string(fill.Side), fill.Tag, fill.Quantity, fill.Price, 0)
		}
		return 0, nil, nil

	default:
		return 0, nil, fmt.Errorf("portfolio: fill with unrecognized tag %q", fill.Tag)
	}
}

// stageGrid computes and emits the remaining LIMIT entries below (long) or
// above (short) the first entry's fill price, up to cfg.MaxEntries-1 levels
// (§4.4.5). It records each level it issues so a later call — there
// should not be one before a flatten, but defensively — won't reissue a
// level still resting.
func (m *Manager) stageGrid(firstSide types.OrderSide, basePrice float64) []types.Order {
	long := firstSide == types.OrderSideBuy
	gridFrac := m.cfg.GridWidthPct / 100

	var prices []float64
	var levelSide types.OrderSide
	if long {
		prices = types.ComputeLongGridPrices(basePrice, gridFrac, m.cfg.MaxEntries)
		levelSide = types.OrderSideBuy
		m.state.LongGridPrices = prices
	} else {
		prices = types.ComputeShortGridPrices(basePrice, gridFrac, m.cfg.MaxEntries)
		levelSide = types.OrderSideSell
		m.state.ShortGridPrices = prices
	}

	qty := ComputePositionSize(m.state.BalanceReal, m.cfg.RiskPctPerTrade, m.cfg.GridWidthPct, m.cfg.MaxEquityRiskPct, basePrice)
	orders := make([]types.Order, 0, len(prices))
	for i, p := range prices {
		level := fmt.Sprintf("%s@%v", levelSide, p)
		if m.gridOrderIDs[level] {
			continue // defensive: never double-issue a level still tracked as resting
		}
		m.gridOrderIDs[level] = true
		id := newOrderID(m.symbol, types.TagGridEntryN)
		order := types.NewLimitOrder(id, m.symbol, levelSide, qty, p, types.TagGridEntryN)
		orders = append(orders, order)
		if m.log != nil {
			m.log.LogGridStage(string(m.symbol), "staged", i+1, p)
		}
	}
	return orders
}

func signedQuantity(side types.OrderSide, qty float64) float64 {
	if side == types.OrderSideSell {
		return -qty
	}
	return qty
}

// newOrderID builds a locally-unique, human-readable order ID. It is not a
// venue order ID — the Gateway assigns that on placement — but a client-side
// correlation key the executor and logs can use before the gateway replies.
func newOrderID(symbol types.Symbol, tag string) string {
	return fmt.Sprintf("%s-%s-%s", symbol, tag, uuid.New().String())
}
