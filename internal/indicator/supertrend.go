// Package indicator computes the SuperTrend direction that drives signal
// generation (§4.3, §9) and a secondary diagnostics snapshot used only for
// observability (§4.2's enriched_history).
package indicator

import (
	"tradingfleet/internal/types"

	"github.com/cinar/indicator"
)

// Direction is the SuperTrend trend direction: +1 for uptrend, -1 for
// downtrend. There is no zero value — SuperTrend always picks a side.
type Direction int

const (
	Down Direction = -1
	Up   Direction = 1
)

// SuperTrendSeries is the per-bar output of ComputeSuperTrend, aligned
// index-for-index with the input bars.
type SuperTrendSeries struct {
	Line      []float64
	Direction []Direction
}

// Last returns the most recent line value and direction. ok is false for an
// empty series.
func (s SuperTrendSeries) Last() (line float64, dir Direction, ok bool) {
	n := len(s.Direction)
	if n == 0 {
		return 0, 0, false
	}
	return s.Line[n-1], s.Direction[n-1], true
}

// ComputeSuperTrend computes the SuperTrend line and direction for bars,
// using an ATR of the given period banded by multiplier around each bar's
// HL2 (§9's design note: this is the one indicator that decides entries, and
// it is computed directly rather than through a generic indicator call).
//
// The ATR values themselves come from cinar/indicator's Atr primitive; the
// band construction and flip logic are SuperTrend's own.
func ComputeSuperTrend(bars []types.OHLCVBar, period int, multiplier float64) SuperTrendSeries {
	n := len(bars)
	out := SuperTrendSeries{Line: make([]float64, n), Direction: make([]Direction, n)}
	if n == 0 {
		return out
	}

	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
	}
	atr, _ := indicator.Atr(period, highs, lows, closes)

	finalUpper := make([]float64, n)
	finalLower := make([]float64, n)

	for i, b := range bars {
		hl2 := b.GetHL2()
		basicUpper := hl2 + multiplier*atr[i]
		basicLower := hl2 - multiplier*atr[i]

		if i == 0 {
			finalUpper[i] = basicUpper
			finalLower[i] = basicLower
			out.Line[i] = basicUpper
			out.Direction[i] = Down
			continue
		}

		if basicUpper < finalUpper[i-1] || closes[i-1] > finalUpper[i-1] {
			finalUpper[i] = basicUpper
		} else {
			finalUpper[i] = finalUpper[i-1]
		}
		if basicLower > finalLower[i-1] || closes[i-1] < finalLower[i-1] {
			finalLower[i] = basicLower
		} else {
			finalLower[i] = finalLower[i-1]
		}

		prevLine := out.Line[i-1]
		switch out.Direction[i-1] {
		case Down:
			if closes[i] <= finalUpper[i] {
				out.Line[i] = finalUpper[i]
				out.Direction[i] = Down
			} else {
				out.Line[i] = finalLower[i]
				out.Direction[i] = Up
			}
		case Up:
			if closes[i] >= finalLower[i] {
				out.Line[i] = finalLower[i]
				out.Direction[i] = Up
			} else {
				out.Line[i] = finalUpper[i]
				out.Direction[i] = Down
			}
		default:
			_ = prevLine
			if closes[i] > finalUpper[i] {
				out.Line[i] = finalLower[i]
				out.Direction[i] = Up
			} else {
				out.Line[i] = finalUpper[i]
				out.Direction[i] = Down
			}
		}
	}
	return out
}
