package portfolio

import (
	"testing"

	"tradingfleet/internal/types"
)

func testConfig() Config {
	return Config{
		GridWidthPct:     1.0,
		MaxEntries:       5,
		RiskPctPerTrade:  1.0,
		MaxEquityRiskPct: 3.0,
	}
}

func TestHandleSignalOpensLongFromFlat(t *testing.T) {
	m := New("BTCUSDT", testConfig(), types.DefaultAgentState(10000), nil)
	m.UpdatePrice(30000)
	orders, err := m.HandleSignal(types.TradeSignal{Symbol: "BTCUSDT", Kind: types.EntryLong})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected exactly one order, got %d", len(orders))
	}
	o := orders[0]
	if o.Side != types.OrderSideBuy || o.Type != types.OrderTypeMarket || o.Tag != types.TagGridEntry1 {
		t.Fatalf("unexpected first entry order: %+v", o)
	}
	if diff := o.Quantity - 0.3333333333333333; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected qty ~0.3333, got %v", o.Quantity)
	}
}

func TestHandleSignalSameDirectionIsNoOp(t *testing.T) {
	m := New("BTCUSDT", testConfig(), types.AgentState{PositionSize: 1, AvgEntryPrice: 30000, BalanceReal: 10000, NEntries: 1}, nil)
	m.UpdatePrice(30500)
	orders, err := m.HandleSignal(types.TradeSignal{Symbol: "BTCUSDT", Kind: types.EntryLong})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orders != nil {
		t.Fatalf("expected no orders for a repeated same-direction signal, got %+v", orders)
	}
}

func TestHandleSignalOppositeDirectionFlattensFirst(t *testing.T) {
	m := New("BTCUSDT", testConfig(), types.AgentState{PositionSize: 1, AvgEntryPrice: 30000, BalanceReal: 10000, NEntries: 1}, nil)
	m.UpdatePrice(29000)
	orders, err := m.HandleSignal(types.TradeSignal{Symbol: "BTCUSDT", Kind: types.EntryShort})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected exactly one flatten order, got %d", len(orders))
	}
	o := orders[0]
	if o.Side != types.OrderSideSell || o.Tag != types.TagExitFlatten || o.Quantity != 1 {
		t.Fatalf("unexpected flatten order: %+v", o)
	}
}

func TestHandleFillFirstEntryStagesGrid(t *testing.T) {
	m := New("BTCUSDT", testConfig(), types.DefaultAgentState(10000), nil)
	pnl, staged, err := m.HandleFill(types.FillConfirmation{
		Symbol: "BTCUSDT", Side: types.OrderSideBuy, Quantity: 0.3333333333333333,
		Price: 30000, Tag: types.TagGridEntry1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pnl != 0 {
		t.Fatalf("expected zero pnl on an entry fill, got %v", pnl)
	}
	if len(staged) != 4 {
		t.Fatalf("expected 4 staged grid levels for MaxEntries=5, got %d", len(staged))
	}
	for i, o := range staged {
		if o.Type != types.OrderTypeLimit || o.Side != types.OrderSideBuy || o.Tag != types.TagGridEntryN {
			t.Fatalf("staged level %d malformed: %+v", i, o)
		}
		if o.Price >= 30000 {
			t.Fatalf("staged long level %d should be below base price, got %v", i, o.Price)
		}
	}
	st := m.State()
	if st.PositionSize != 0.3333333333333333 || st.NEntries != 1 {
		t.Fatalf("unexpected state after first entry fill: %+v", st)
	}
}

func TestHandleFillScalingInBlendsAvgEntryPrice(t *testing.T) {
	m := New("BTCUSDT", testConfig(), types.AgentState{
		PositionSize: 1, AvgEntryPrice: 30000, BalanceReal: 10000, NEntries: 1,
	}, nil)
	_, _, err := m.HandleFill(types.FillConfirmation{
		Symbol: "BTCUSDT", Side: types.OrderSideBuy, Quantity: 1,
		Price: 29000, Tag: types.TagGridEntryN,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st := m.State()
	if st.PositionSize != 2 {
		t.Fatalf("expected position size 2, got %v", st.PositionSize)
	}
	wantAvg := 29500.0 // (1*30000 + 1*29000) / 2
	if diff := st.AvgEntryPrice - wantAvg; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected blended avg entry %v, got %v", wantAvg, st.AvgEntryPrice)
	}
}

func TestHandleFillFlattenRealizesPnLAndResets(t *testing.T) {
	m := New("BTCUSDT", testConfig(), types.AgentState{
		PositionSize: 1, AvgEntryPrice: 30000, BalanceReal: 10000, NEntries: 1,
	}, nil)
	pnl, staged, err := m.HandleFill(types.FillConfirmation{
		Symbol: "BTCUSDT", Side: types.OrderSideSell, Quantity: 1,
		Price: 31000, Tag: types.TagExitFlatten,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if staged != nil {
		t.Fatalf("a flattening fill should never stage new grid levels, got %+v", staged)
	}
	if pnl != 1000 {
		t.Fatalf("expected realized pnl 1000, got %v", pnl)
	}
	st := m.State()
	if st.Status() != types.PositionFlat || st.BalanceReal != 11000 {
		t.Fatalf("expected flat state with balance 11000, got %+v", st)
	}
}

func TestHandleFillUnrecognizedTagErrors(t *testing.T) {
	m := New("BTCUSDT", testConfig(), types.DefaultAgentState(10000), nil)
	if _, _, err := m.HandleFill(types.FillConfirmation{Symbol: "BTCUSDT", Tag: "BOGUS"}); err == nil {
		t.Fatal("expected an error for an unrecognized fill tag")
	}
}

func TestRequestFlattenNoOpWhenFlat(t *testing.T) {
	m := New("BTCUSDT", testConfig(), types.DefaultAgentState(10000), nil)
	if _, ok := m.RequestFlatten(); ok {
		t.Fatal("expected no flatten order when already flat")
	}
}

func TestRequestFlattenClosesLongPosition(t *testing.T) {
	m := New("BTCUSDT", testConfig(), types.AgentState{
		PositionSize: 1.5, AvgEntryPrice: 30000, BalanceReal: 10000, NEntries: 2,
	}, nil)
	order, ok := m.RequestFlatten()
	if !ok {
		t.Fatal("expected a flatten order for an open long position")
	}
	if order.Side != types.OrderSideSell || order.Tag != types.TagExitFlatten || order.Quantity != 1.5 {
		t.Fatalf("unexpected flatten order: %+v", order)
	}
}

func TestRequestFlattenClosesShortPosition(t *testing.T) {
	m := New("BTCUSDT", testConfig(), types.AgentState{
		PositionSize: -2, AvgEntryPrice: 30000, BalanceReal: 10000, NEntries: 1,
	}, nil)
	order, ok := m.RequestFlatten()
	if !ok {
		t.Fatal("expected a flatten order for an open short position")
	}
	if order.Side != types.OrderSideBuy || order.Quantity != 2 {
		t.Fatalf("unexpected flatten order: %+v", order)
	}
}
