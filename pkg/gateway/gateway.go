// Package gateway implements the Exchange Gateway abstraction (§4.1): the
// fleet's only boundary with the outside market, in LIVE (real exchange,
// websocket + REST) and SIMULATION (in-process random walk) flavors.
package gateway

import (
	"context"
	"time"

	"tradingfleet/internal/types"
)

// Gateway is the interface every component above it programs against. A
// process runs with exactly one Gateway for its whole lifetime, selected by
// config.ExchangeConfig.Mode at startup (§4.1).
type Gateway interface {
	// Connect establishes the underlying transport. For SIMULATION this is a
	// no-op beyond starting the tick generator.
	Connect(ctx context.Context) error

	// Disconnect tears the transport down. Safe to call more than once.
	Disconnect() error

	// Subscribe registers symbols for price updates. Subscribing to an
	// already-subscribed symbol is a no-op.
	Subscribe(symbols []types.Symbol) error

	// Unsubscribe deregisters symbols. Unsubscribing from a symbol that was
	// never subscribed is a no-op.
	Unsubscribe(symbols []types.Symbol) error

	// PriceUpdates returns the channel every subscribed symbol's trade
	// prints are published on.
	PriceUpdates() <-chan types.PriceUpdate

	// PlaceOrder submits order and blocks until the gateway has a
	// confirmed fill or a definitive rejection — the Order Executor does not
	// poll for order status (§4.5).
	PlaceOrder(ctx context.Context, order types.Order) (types.FillConfirmation, error)

	// GetInstruments returns the set of symbols currently tradable on the
	// venue itself, used by the Orchestrator's universe refresh (§4.7 step 1).
	GetInstruments(ctx context.Context) ([]types.Symbol, error)

	// GetTopCandidates fetches the configured discovery endpoint's ranked
	// candidate list — up to 25 tickers — used by the Orchestrator's
	// candidate-selection step (§4.7 step 2, §6). This is a distinct external
	// feed from GetInstruments: it ranks by the venue's own discovery
	// criteria and says nothing about tradability.
	GetTopCandidates(ctx context.Context) ([]types.Symbol, error)

	// GetKlines fetches historical OHLCV bars for symbol at the given bar
	// period, strictly increasing by timestamp. If since is non-nil, only
	// bars after that timestamp are requested (the Backtester's incremental
	// fetch, §4.8); otherwise the venue's default history window applies,
	// bounded by limit.
	GetKlines(ctx context.Context, symbol types.Symbol, period time.Duration, limit int, since *time.Time) ([]types.OHLCVBar, error)

	// GetWalletBalance returns the account's current quote-currency equity.
	GetWalletBalance(ctx context.Context) (float64, error)

	// IsConnected reports whether the transport is currently up.
	IsConnected() bool
}

// ErrOrderRejected is returned by PlaceOrder when the venue declines the
// order outright (§7). The Order Executor does not retry on this error.
type ErrOrderRejected struct {
	Reason string
}

func (e *ErrOrderRejected) Error() string { return "order rejected: " + e.Reason }

// restEnvelope is the generic Bybit-style REST response wrapper
// (`{retCode, retMsg, result}`) that the LIVE REST calls decode (§4.1). The
// SIMULATION gateway does not use it.
type restEnvelope struct {
	RetCode int         `json:"retCode"`
	RetMsg  string      `json:"retMsg"`
	Result  interface{} `json:"result"`
}

// defaultPingInterval mirrors the venue's documented websocket keepalive
// cadence (§4.1).
const defaultPingInterval = 20 * time.Second
