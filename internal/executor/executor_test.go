package executor

import (
	"context"
	"testing"
	"time"

	"tradingfleet/internal/types"
	"tradingfleet/pkg/gateway"
)

func TestSubmitReturnsFillForKnownSymbol(t *testing.T) {
	gw := gateway.NewSimulationGateway([]types.Symbol{"BTCUSDT"}, map[types.Symbol]float64{"BTCUSDT": 30000}, 10000, 1)
	e := New(gw, nil)

	order := types.NewMarketOrder("ord-1", "BTCUSDT", types.OrderSideBuy, 0.1, types.TagGridEntry1)
	fill, err := e.Submit(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fill.Symbol != "BTCUSDT" || fill.Quantity != 0.1 || fill.Price != 30000 {
		t.Fatalf("unexpected fill: %+v", fill)
	}
}

func TestSubmitReturnsRejectionForUnknownSymbol(t *testing.T) {
	gw := gateway.NewSimulationGateway(nil, nil, 10000, 1)
	e := New(gw, nil)

	order := types.NewMarketOrder("ord-1", "DOGEUSDT", types.OrderSideBuy, 1, types.TagGridEntry1)
	if _, err := e.Submit(context.Background(), order); err == nil {
		t.Fatal("expected a rejection error for an unknown symbol")
	}
}

func TestRunDrainsOrdersAndPublishesFills(t *testing.T) {
	gw := gateway.NewSimulationGateway([]types.Symbol{"BTCUSDT"}, map[types.Symbol]float64{"BTCUSDT": 30000}, 10000, 1)
	e := New(gw, nil)

	orders := make(chan types.Order, 2)
	fills := make(chan types.FillConfirmation, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go e.Run(ctx, orders, fills)

	orders <- types.NewMarketOrder("ord-1", "BTCUSDT", types.OrderSideBuy, 0.1, types.TagGridEntry1)
	orders <- types.NewMarketOrder("ord-2", "DOGEUSDT", types.OrderSideBuy, 1, types.TagGridEntry1)

	select {
	case fill := <-fills:
		if fill.OrderID != "ord-1" {
			t.Fatalf("expected fill for ord-1, got %+v", fill)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fill")
	}

	select {
	case fill := <-fills:
		t.Fatalf("did not expect a fill for the rejected order, got %+v", fill)
	case <-time.After(100 * time.Millisecond):
	}
}
