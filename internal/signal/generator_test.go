package signal

import (
	"testing"

	"tradingfleet/internal/indicator"
	"tradingfleet/internal/marketdata"
	"tradingfleet/internal/types"
)

func bar(dir indicator.Direction) marketdata.EnrichedBar {
	return marketdata.EnrichedBar{Direction: dir}
}

func TestNoSignalOnFirstBar(t *testing.T) {
	g := New("BTCUSDT")
	if _, ok := g.Next(bar(indicator.Up)); ok {
		t.Fatal("expected no signal on the first observed bar")
	}
}

func TestNoSignalOnSecondBarEvenOnAnImmediateFlip(t *testing.T) {
	g := New("BTCUSDT")
	g.Next(bar(indicator.Down))
	if _, ok := g.Next(bar(indicator.Up)); ok {
		t.Fatal("expected no signal on the second bar — there is no confirming bar yet to flip against")
	}
}

func TestNoSignalWhenDirectionNeverChanges(t *testing.T) {
	g := New("BTCUSDT")
	g.Next(bar(indicator.Up))
	g.Next(bar(indicator.Up))
	if _, ok := g.Next(bar(indicator.Up)); ok {
		t.Fatal("expected no signal when direction repeats")
	}
}

func TestEntryLongOnFlipToUpConfirmedOneBarLater(t *testing.T) {
	g := New("BTCUSDT")
	g.Next(bar(indicator.Down))
	if _, ok := g.Next(bar(indicator.Up)); ok {
		t.Fatal("expected no signal yet — the flip to Up has not been confirmed by a further bar")
	}
	sig, ok := g.Next(bar(indicator.Up))
	if !ok {
		t.Fatal("expected a confirmed signal once Up has persisted for a further bar")
	}
	if sig.Kind != types.EntryLong {
		t.Fatalf("expected ENTRY_LONG, got %s", sig.Kind)
	}
}

func TestEntryShortOnFlipToDownConfirmedOneBarLater(t *testing.T) {
	g := New("BTCUSDT")
	g.Next(bar(indicator.Up))
	g.Next(bar(indicator.Down))
	sig, ok := g.Next(bar(indicator.Down))
	if !ok {
		t.Fatal("expected a confirmed signal once Down has persisted for a further bar")
	}
	if sig.Kind != types.EntryShort {
		t.Fatalf("expected ENTRY_SHORT, got %s", sig.Kind)
	}
}

func TestDuplicateSuppressionAcrossMultipleBars(t *testing.T) {
	g := New("BTCUSDT")
	g.Next(bar(indicator.Down))
	_, ok1 := g.Next(bar(indicator.Up))   // unconfirmed flip
	_, ok2 := g.Next(bar(indicator.Up))   // confirmed: fires
	_, ok3 := g.Next(bar(indicator.Up))   // sustained Up: no repeat signal
	_, ok4 := g.Next(bar(indicator.Down)) // unconfirmed flip back
	_, ok5 := g.Next(bar(indicator.Down)) // confirmed: fires
	if ok1 || !ok2 || ok3 || ok4 || !ok5 {
		t.Fatalf("expected signal pattern [false, true, false, false, true], got [%v, %v, %v, %v, %v]", ok1, ok2, ok3, ok4, ok5)
	}
}
