package gateway

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tradingfleet/internal/types"
)

func TestSimulationGatewayEmitsTicksAfterSubscribe(t *testing.T) {
	g := NewSimulationGateway([]types.Symbol{"BTCUSDT"}, map[types.Symbol]float64{"BTCUSDT": 30000}, 10000, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := g.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer g.Disconnect()

	if err := g.Subscribe([]types.Symbol{"BTCUSDT"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	select {
	case update := <-g.PriceUpdates():
		if update.Symbol != "BTCUSDT" {
			t.Fatalf("expected BTCUSDT, got %s", update.Symbol)
		}
		if update.Price <= 0 {
			t.Fatalf("expected positive price, got %v", update.Price)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a price update")
	}
}

func TestSimulationGatewayPlaceOrderFillsImmediately(t *testing.T) {
	g := NewSimulationGateway([]types.Symbol{"BTCUSDT"}, map[types.Symbol]float64{"BTCUSDT": 30000}, 10000, 1)
	ctx := context.Background()
	_ = g.Connect(ctx)
	defer g.Disconnect()
	_ = g.Subscribe([]types.Symbol{"BTCUSDT"})

	order := types.NewMarketOrder("order-1", "BTCUSDT", types.OrderSideBuy, 0.01, types.TagGridEntry1)
	fill, err := g.PlaceOrder(ctx, order)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if fill.Price != 30000 {
		t.Fatalf("expected fill at 30000, got %v", fill.Price)
	}
	if fill.Quantity != 0.01 {
		t.Fatalf("expected quantity 0.01, got %v", fill.Quantity)
	}
}

func TestSimulationGatewayRejectsUnknownSymbol(t *testing.T) {
	g := NewSimulationGateway(nil, nil, 10000, 1)
	ctx := context.Background()
	_ = g.Connect(ctx)
	defer g.Disconnect()

	order := types.NewMarketOrder("order-1", "ETHUSDT", types.OrderSideBuy, 1, "")
	if _, err := g.PlaceOrder(ctx, order); err == nil {
		t.Fatal("expected an error placing an order for an unknown symbol")
	}
}

func TestSimulationGatewayWalletBalance(t *testing.T) {
	g := NewSimulationGateway(nil, nil, 12345, 1)
	bal, err := g.GetWalletBalance(context.Background())
	if err != nil {
		t.Fatalf("get wallet balance: %v", err)
	}
	if bal != 12345 {
		t.Fatalf("expected 12345, got %v", bal)
	}
}

func TestSimulationGatewayGetTopCandidatesCapsAt25(t *testing.T) {
	symbols := make([]types.Symbol, 30)
	for i := range symbols {
		symbols[i] = types.Symbol(fmt.Sprintf("SYM%d", i))
	}
	g := NewSimulationGateway(symbols, nil, 10000, 1)
	out, err := g.GetTopCandidates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 25 {
		t.Fatalf("expected GetTopCandidates to cap at 25, got %d", len(out))
	}
}

func TestSimulationGatewayGetKlinesIsDeterministicAcrossOverlappingWindows(t *testing.T) {
	g := NewSimulationGateway([]types.Symbol{"BTCUSDT"}, map[types.Symbol]float64{"BTCUSDT": 30000}, 10000, 1)

	first, err := g.GetKlines(context.Background(), "BTCUSDT", time.Minute, 50, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) == 0 {
		t.Fatal("expected a non-empty initial history")
	}

	second, err := g.GetKlines(context.Background(), "BTCUSDT", time.Minute, 50, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("expected the same window to reproduce the same bar count, got %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Timestamp != second[i].Timestamp || first[i].Close != second[i].Close {
			t.Fatalf("expected identical bars at index %d for an overlapping window, got %+v vs %+v", i, first[i], second[i])
		}
	}

	for i := 1; i < len(first); i++ {
		if !first[i].Timestamp.After(first[i-1].Timestamp) {
			t.Fatalf("expected strictly increasing timestamps at index %d", i)
		}
	}

	since := first[len(first)-1].Timestamp
	incremental, err := g.GetKlines(context.Background(), "BTCUSDT", time.Minute, 50, &since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, b := range incremental {
		if !b.Timestamp.After(since) {
			t.Fatalf("expected every incremental bar to be strictly after %v, got %v", since, b.Timestamp)
		}
	}
}

func TestSimulationGatewayGetKlinesUnknownSymbol(t *testing.T) {
	g := NewSimulationGateway(nil, nil, 10000, 1)
	if _, err := g.GetKlines(context.Background(), "ZZZUSDT", time.Minute, 10, nil); err == nil {
		t.Fatal("expected an error fetching klines for an unknown symbol")
	}
}
