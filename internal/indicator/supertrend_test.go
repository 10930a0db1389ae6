package indicator

import (
	"testing"
	"time"

	"tradingfleet/internal/types"
)

func makeBars(closes []float64) []types.OHLCVBar {
	bars := make([]types.OHLCVBar, len(closes))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		high := c * 1.002
		low := c * 0.998
		bars[i] = types.NewOHLCVBar(base.Add(time.Duration(i)*time.Minute), c, high, low, c, 1.0)
	}
	return bars
}

func TestComputeSuperTrendEmpty(t *testing.T) {
	s := ComputeSuperTrend(nil, 10, 3.0)
	if _, _, ok := s.Last(); ok {
		t.Fatal("expected no last value for an empty series")
	}
}

func TestComputeSuperTrendLengthMatchesInput(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.1
	}
	s := ComputeSuperTrend(makeBars(closes), 10, 3.0)
	if len(s.Line) != len(closes) || len(s.Direction) != len(closes) {
		t.Fatalf("expected series length %d, got line=%d dir=%d", len(closes), len(s.Line), len(s.Direction))
	}
}

func TestComputeSuperTrendFlipsOnSharpDrop(t *testing.T) {
	closes := make([]float64, 80)
	for i := 0; i < 60; i++ {
		closes[i] = 100 + float64(i)*0.5 // steady uptrend
	}
	for i := 60; i < 80; i++ {
		closes[i] = closes[59] - float64(i-59)*5 // sharp reversal
	}
	s := ComputeSuperTrend(makeBars(closes), 10, 3.0)

	_, dirBeforeDrop, ok := SuperTrendSeries{Line: s.Line[:60], Direction: s.Direction[:60]}.Last()
	if !ok {
		t.Fatal("expected a direction before the drop")
	}
	_, dirAfterDrop, ok := s.Last()
	if !ok {
		t.Fatal("expected a final direction")
	}
	if dirBeforeDrop != Up {
		t.Fatalf("expected uptrend before the drop, got %v", dirBeforeDrop)
	}
	if dirAfterDrop != Down {
		t.Fatalf("expected the sharp reversal to flip direction to Down, got %v", dirAfterDrop)
	}
}
