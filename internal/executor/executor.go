// Package executor implements the Order Executor (§4.5): the only component
// that talks to the Gateway on an agent's behalf. It has no state of its own
// beyond the Gateway handle — every order is submitted exactly once and
// never retried on rejection (§7).
package executor

import (
	"context"
	"fmt"

	"tradingfleet/internal/logging"
	"tradingfleet/internal/types"
	"tradingfleet/pkg/gateway"
)

// Executor submits orders to a Gateway and reports the result back onto a
// fill channel, or logs and drops a rejection (§4.5 — a rejected order is
// not retried; the agent simply stays in whatever state it was in before
// submitting).
type Executor struct {
	gw  gateway.Gateway
	log *logging.Logger
}

// New builds an Executor bound to gw.
func New(gw gateway.Gateway, log *logging.Logger) *Executor {
	return &Executor{gw: gw, log: log}
}

// Submit places order and returns its fill confirmation. A rejection is
// returned as an error — not a panic, not a retry — so the caller can
// decide whether anything needs to be logged or surfaced upstream.
func (e *Executor) Submit(ctx context.Context, order types.Order) (types.FillConfirmation, error) {
	fill, err := e.gw.PlaceOrder(ctx, order)
	if err != nil {
		var rejected *gateway.ErrOrderRejected
		if ok := asOrderRejected(err, &rejected); ok {
			if e.log != nil {
				e.log.Warnf("order %s (%s %s %s) rejected: %s", order.ID, order.Symbol, order.Side, order.Tag, rejected.Reason)
			}
			return types.FillConfirmation{}, err
		}
		return types.FillConfirmation{}, fmt.Errorf("executor: submit %s: %w", order.ID, err)
	}
	if e.log != nil {
		e.log.LogFill(string(fill.Symbol), string(fill.Side), fill.Tag, fill.Quantity, fill.Price, 0)
	}
	return fill, nil
}

// Run drains orders from in, submits each one, and pushes confirmed fills
// onto out. It exits when ctx is cancelled or in is closed. A rejected or
// errored submission is logged and dropped — the agent that issued it is
// responsible for noticing the absence of a fill, not the executor for
// retrying on its behalf (§4.5).
func (e *Executor) Run(ctx context.Context, in <-chan types.Order, out chan<- types.FillConfirmation) {
	for {
		select {
		case <-ctx.Done():
			return
		case order, ok := <-in:
			if !ok {
				return
			}
			fill, err := e.Submit(ctx, order)
			if err != nil {
				continue
			}
			select {
			case out <- fill:
			case <-ctx.Done():
				return
			}
		}
	}
}

func asOrderRejected(err error, target **gateway.ErrOrderRejected) bool {
	rejected, ok := err.(*gateway.ErrOrderRejected)
	if ok {
		*target = rejected
	}
	return ok
}
