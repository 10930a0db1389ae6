package types

import "time"

// OHLCVBar is one candle, indexed by its close-of-bar timestamp. Within a
// symbol's history, bars are strictly increasing in time and evenly spaced
// by the bar period.
type OHLCVBar struct {
	Timestamp time.Time `json:"ts"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// NewOHLCVBar creates a new bar.
func NewOHLCVBar(ts time.Time, open, high, low, close, volume float64) OHLCVBar {
	return OHLCVBar{Timestamp: ts, Open: open, High: high, Low: low, Close: close, Volume: volume}
}

// GetTypicalPrice returns (high + low + close) / 3.
func (b OHLCVBar) GetTypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// GetHL2 returns (high + low) / 2.
func (b OHLCVBar) GetHL2() float64 {
	return (b.High + b.Low) / 2
}

// GetRange returns the high-low range of the bar.
func (b OHLCVBar) GetRange() float64 {
	return b.High - b.Low
}

// IsBullish reports whether the bar closed at or above where it opened.
func (b OHLCVBar) IsBullish() bool {
	return b.Close >= b.Open
}

// PriceUpdate is emitted per inbound trade tick (§3).
type PriceUpdate struct {
	Symbol Symbol  `json:"symbol"`
	Price  float64 `json:"price"`
}

// TickBuffer accumulates raw trade prices for one symbol between resamples (§4.2).
type TickBuffer struct {
	prices []float64
}

// Add appends a trade price to the buffer.
func (t *TickBuffer) Add(price float64) {
	t.prices = append(t.prices, price)
}

// Len reports the number of buffered ticks.
func (t *TickBuffer) Len() int {
	return len(t.prices)
}

// ResampleOHLC drains the buffer into a single OHLC bar over the prior minute
// window using first/max/min/last, timestamped at ts. ok is false if the
// buffer held no ticks this window — callers must not synthesize a bar for a
// silent minute.
func (t *TickBuffer) ResampleOHLC(ts time.Time) (bar OHLCVBar, ok bool) {
	if len(t.prices) == 0 {
		return OHLCVBar{}, false
	}
	first := t.prices[0]
	last := t.prices[len(t.prices)-1]
	hi, lo := first, first
	for _, p := range t.prices {
		if p > hi {
			hi = p
		}
		if p < lo {
			lo = p
		}
	}
	bar = OHLCVBar{Timestamp: ts, Open: first, High: hi, Low: lo, Close: last, Volume: float64(len(t.prices))}
	t.prices = t.prices[:0]
	return bar, true
}
