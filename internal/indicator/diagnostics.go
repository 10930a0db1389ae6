package indicator

import (
	"tradingfleet/internal/types"

	"github.com/cinar/indicator"
)

// Diagnostics is the read-only indicator snapshot attached to a Market Data
// Router dispatch's enriched_history (§4.2). It exists purely for
// observability — nothing downstream of the Signal Generator reads it, and
// SuperTrend remains the sole input to entry decisions.
type Diagnostics struct {
	SMA            float64 `json:"sma"`
	EMA            float64 `json:"ema"`
	RSI            float64 `json:"rsi"`
	MACD           float64 `json:"macd"`
	MACDSignal     float64 `json:"macd_signal"`
	BollingerUpper float64 `json:"bollinger_upper"`
	BollingerMid   float64 `json:"bollinger_mid"`
	BollingerLower float64 `json:"bollinger_lower"`
}

// Snapshot computes a Diagnostics struct from the trailing bars using
// cinar/indicator's Sma/Ema/Rsi/Macd/BollingerBands, taking the last value
// of each series. It returns the zero value if there isn't enough history
// for any indicator to have a defined value yet.
func Snapshot(bars []types.OHLCVBar) Diagnostics {
	if len(bars) < 2 {
		return Diagnostics{}
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	sma := indicator.Sma(20, closes)
	ema := indicator.Ema(20, closes)
	rsi, _ := indicator.Rsi(closes)
	macdLine, macdSignal := indicator.Macd(closes)
	bbUpper, bbMiddle, bbLower := indicator.BollingerBands(closes)

	return Diagnostics{
		SMA:            lastNonZero(sma),
		EMA:            lastNonZero(ema),
		RSI:            lastNonZero(rsi),
		MACD:           lastNonZero(macdLine),
		MACDSignal:     lastNonZero(macdSignal),
		BollingerUpper: lastNonZero(bbUpper),
		BollingerMid:   lastNonZero(bbMiddle),
		BollingerLower: lastNonZero(bbLower),
	}
}

func lastNonZero(values []float64) float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] != 0 {
			return values[i]
		}
	}
	return 0
}
