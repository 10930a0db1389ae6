package gateway

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"tradingfleet/internal/types"
)

// tickInterval matches the ~2Hz random-walk cadence the original connector's
// simulation mode runs at (§4.1, original_source/exchange_connector.py).
const tickInterval = 500 * time.Millisecond

// SimulationGateway is an in-process Gateway that generates a random walk
// per subscribed symbol and fills every order immediately: MARKET orders at
// the symbol's current simulated price, LIMIT orders at their own price. It
// rejects only orders for a symbol it has no price for, and never drops a
// connection.
type SimulationGateway struct {
	mu          sync.RWMutex
	subscribed  map[types.Symbol]bool
	prices      map[types.Symbol]float64
	instruments []types.Symbol
	balance     float64

	updates chan types.PriceUpdate
	rng     *rand.Rand

	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewSimulationGateway builds a simulation gateway seeded with an initial
// price per instrument and a starting wallet balance.
func NewSimulationGateway(instruments []types.Symbol, initialPrices map[types.Symbol]float64, initialBalance float64, seed int64) *SimulationGateway {
	prices := make(map[types.Symbol]float64, len(initialPrices))
	for sym, p := range initialPrices {
		prices[sym] = p
	}
	return &SimulationGateway{
		subscribed:  make(map[types.Symbol]bool),
		prices:      prices,
		instruments: instruments,
		balance:     initialBalance,
		updates:     make(chan types.PriceUpdate, 1024),
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (g *SimulationGateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	if g.connected {
		g.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.connected = true
	g.mu.Unlock()

	g.wg.Add(1)
	go g.tickLoop(runCtx)
	return nil
}

func (g *SimulationGateway) Disconnect() error {
	g.mu.Lock()
	if !g.connected {
		g.mu.Unlock()
		return nil
	}
	g.connected = false
	cancel := g.cancel
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	g.wg.Wait()
	return nil
}

func (g *SimulationGateway) Subscribe(symbols []types.Symbol) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range symbols {
		g.subscribed[s] = true
		if _, ok := g.prices[s]; !ok {
			g.prices[s] = 100 + g.rng.Float64()*900
		}
	}
	return nil
}

func (g *SimulationGateway) Unsubscribe(symbols []types.Symbol) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range symbols {
		delete(g.subscribed, s)
	}
	return nil
}

func (g *SimulationGateway) PriceUpdates() <-chan types.PriceUpdate {
	return g.updates
}

// PlaceOrder fills instantly at the symbol's current simulated price — the
// order's own Price field is ignored for MARKET orders, and honored as the
// fill price for LIMIT orders (no resting-order book is modeled).
func (g *SimulationGateway) PlaceOrder(ctx context.Context, order types.Order) (types.FillConfirmation, error) {
	g.mu.RLock()
	price, ok := g.prices[order.Symbol]
	g.mu.RUnlock()
	if !ok {
		return types.FillConfirmation{}, &ErrOrderRejected{Reason: fmt.Sprintf("unknown symbol %s", order.Symbol)}
	}
	fillPrice := price
	if order.Type == types.OrderTypeLimit {
		fillPrice = order.Price
	}
	return types.FillConfirmation{
		Symbol:   order.Symbol,
		OrderID:  order.ID,
		Side:     order.Side,
		Quantity: order.Quantity,
		Price:    fillPrice,
		Tag:      order.Tag,
		Time:     time.Now(),
	}, nil
}

// GetKlines synthesizes a history ending at the current time, bucketed by
// period, since there is no real venue to query in SIMULATION mode. Bars are
// scaled from the symbol's current simulated price: the same (symbol, bucket)
// yields the same bar only while that price is unchanged, and once the tick
// generator has moved it, a re-fetch of the same bucket yields a different bar.
func (g *SimulationGateway) GetKlines(ctx context.Context, symbol types.Symbol, period time.Duration, limit int, since *time.Time) ([]types.OHLCVBar, error) {
	g.mu.RLock()
	base, ok := g.prices[symbol]
	g.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("gateway: unknown symbol %s", symbol)
	}

	end := time.Now().Truncate(period)
	var start time.Time
	if since != nil {
		start = since.Truncate(period).Add(period)
	} else {
		start = end.Add(-period * time.Duration(limit-1))
	}
	if start.After(end) {
		return nil, nil
	}

	bars := make([]types.OHLCVBar, 0, limit)
	for ts := start; !ts.After(end) && len(bars) < limit; ts = ts.Add(period) {
		price := deterministicPrice(symbol, base, ts, period)
		bars = append(bars, types.OHLCVBar{
			Timestamp: ts,
			Open:      price,
			High:      price * 1.0015,
			Low:       price * 0.9985,
			Close:     price,
			Volume:    1,
		})
	}
	return bars, nil
}

// deterministicPrice derives a price for symbol at bucket ts — the same
// bucket always hashes to the same pseudo-random step, so for an unchanged
// base a re-fetch of an overlapping window reproduces identical bars.
func deterministicPrice(symbol types.Symbol, base float64, ts time.Time, period time.Duration) float64 {
	bucket := ts.Unix() / int64(period/time.Second+1)
	h := fnv.New64a()
	h.Write([]byte(symbol))
	seed := int64(h.Sum64()) ^ bucket
	r := rand.New(rand.NewSource(seed))
	walk := (r.Float64() - 0.5) * 0.02 // +/-1%
	return base * (1 + walk)
}

func (g *SimulationGateway) GetInstruments(ctx context.Context) ([]types.Symbol, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]types.Symbol, len(g.instruments))
	copy(out, g.instruments)
	return out, nil
}

// GetTopCandidates has no external discovery feed to call in SIMULATION
// mode, so it reuses the configured instrument set — capped at 25, as the
// real discovery endpoint is (§6) — giving the Orchestrator a stable,
// deterministic candidate list to exercise its reconciliation logic against.
func (g *SimulationGateway) GetTopCandidates(ctx context.Context) ([]types.Symbol, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := len(g.instruments)
	if n > 25 {
		n = 25
	}
	out := make([]types.Symbol, n)
	copy(out, g.instruments[:n])
	return out, nil
}

func (g *SimulationGateway) GetWalletBalance(ctx context.Context) (float64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.balance, nil
}

func (g *SimulationGateway) IsConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}

func (g *SimulationGateway) tickLoop(ctx context.Context) {
	defer g.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.emitTicks()
		}
	}
}

func (g *SimulationGateway) emitTicks() {
	g.mu.Lock()
	symbols := make([]types.Symbol, 0, len(g.subscribed))
	for s := range g.subscribed {
		symbols = append(symbols, s)
	}
	for _, s := range symbols {
		price := g.prices[s]
		walk := (g.rng.Float64() - 0.5) * 2 * 0.001 * price // +/-0.1% per tick
		price += walk
		if price < 0.01 {
			price = 0.01
		}
		g.prices[s] = price
	}
	g.mu.Unlock()

	for _, s := range symbols {
		g.mu.RLock()
		price := g.prices[s]
		g.mu.RUnlock()
		update := types.PriceUpdate{Symbol: s, Price: price}
		select {
		case g.updates <- update:
		default:
			// drop-oldest: make room for the freshest tick rather than block the generator
			select {
			case <-g.updates:
			default:
			}
			select {
			case g.updates <- update:
			default:
			}
		}
	}
}
