// Package types holds the value types shared across the fleet: symbols,
// strategy parameters, OHLCV bars, orders, fills and the persisted per-agent
// state.
package types

// Symbol is an opaque instrument identifier, e.g. "BTCUSDT". Comparable by value.
type Symbol string

// StrategyParams is the tuple a backtest run resolves to and an agent is started with.
type StrategyParams struct {
	TimeframeMinutes      int     `json:"timeframe_minutes"`
	SupertrendPeriod      int     `json:"supertrend_period"`
	SupertrendMultiplier  float64 `json:"supertrend_multiplier"`
}

// TimeframeGrid and ParamGrid enumerate the search space the backtester sweeps (§4.8).
var (
	TimeframeGrid  = []int{1, 5, 15}
	PeriodGrid     = []int{20, 30, 40}
	MultiplierGrid = []float64{2.0, 2.5, 3.0, 3.5, 4.0}
)
