// Package backtest implements the Vectorized Backtester (§4.8): an
// incrementally-cached historical kline fetch and a SuperTrend
// parameter/timeframe grid search used by the Orchestrator to rank
// candidate tickers every cycle.
package backtest

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tradingfleet/internal/indicator"
	"tradingfleet/internal/types"
	"tradingfleet/pkg/gateway"
)

// periods and multipliers are the SuperTrend parameter grid; timeframes is
// the bar-period grid. Together they form the 3x3x5 = 45 combinations swept
// per ticker (§4.8).
var (
	periods     = []int{20, 30, 40}
	multipliers = []float64{2.0, 2.5, 3.0, 3.5, 4.0}
	timeframes  = []time.Duration{1 * time.Minute, 5 * time.Minute, 15 * time.Minute}
)

// unprofitableSentinel is the net_profit value assigned to a combination
// that could not be evaluated because there are fewer bars than the period
// (§4.8 edge cases). An empty return series scores {0, 0} instead.
const unprofitableSentinel = -100.0

// Combo is one point in the parameter/timeframe grid, together with its
// backtested performance.
type Combo struct {
	Timeframe  time.Duration
	Period     int
	Multiplier float64
	NetProfit  float64
	WinRate    float64
}

// Result is the best combination found for a ticker, or nil if every
// combination across every timeframe scored at or below the -100 sentinel
// (§4.8 step 3).
type Result struct {
	Symbol types.Symbol
	Best   Combo
	// All holds every evaluated combination, sorted by NetProfit descending,
	// for CSV/JSON export (§4.8's "one row per combination" ledger).
	All []Combo
}

// Optimizer runs the Backtester's per-ticker grid search, caching historical
// bars across repeated calls for the same (ticker, timeframe).
type Optimizer struct {
	cache *klineCache
}

// NewOptimizer builds an Optimizer that fetches historical bars through gw.
func NewOptimizer(gw gateway.Gateway) *Optimizer {
	return &Optimizer{cache: newKlineCache(gw)}
}

// Optimize runs optimize(ticker) (§4.8): for every timeframe, fetches (or
// extends) the cached kline history, then sweeps every (period, multiplier)
// pair computing SuperTrend-driven strategy performance. It returns the best
// combination found, or nil if even the best one is at or below the -100
// sentinel.
func (o *Optimizer) Optimize(ctx context.Context, symbol types.Symbol) (*Result, error) {
	var all []Combo

	for _, tf := range timeframes {
		bars, err := o.cache.fetch(ctx, symbol, tf)
		if err != nil {
			continue
		}
		for _, period := range periods {
			for _, mult := range multipliers {
				perf := evaluate(bars, period, mult)
				all = append(all, Combo{
					Timeframe:  tf,
					Period:     period,
					Multiplier: mult,
					NetProfit:  perf.netProfit,
					WinRate:    perf.winRate,
				})
			}
		}
	}

	if len(all) == 0 {
		return nil, nil
	}

	sortByNetProfitDesc(all)
	best := all[0]
	if best.NetProfit <= unprofitableSentinel {
		return nil, nil
	}
	return &Result{Symbol: symbol, Best: best, All: all}, nil
}

type performance struct {
	netProfit float64
	winRate   float64
}

// evaluate computes one (period, multiplier) combination's net_profit and
// win_rate over bars (§4.8 step 2). Position at bar t is +1 when SuperTrend
// direction is up, else -1; strategy return at t is close-to-close percent
// change times the position carried INTO that bar (position at t-1) — a
// signal only starts earning from the bar after it fires.
func evaluate(bars []types.OHLCVBar, period int, multiplier float64) performance {
	if len(bars) < period {
		return performance{netProfit: unprofitableSentinel, winRate: 0}
	}

	st := indicator.ComputeSuperTrend(bars, period, multiplier)

	equity := decimal.NewFromInt(1)
	wins, losses := 0, 0
	tradedAny := false

	for i := 1; i < len(bars); i++ {
		if bars[i-1].Close == 0 {
			continue
		}
		pctChange := (bars[i].Close - bars[i-1].Close) / bars[i-1].Close
		position := 1.0
		if st.Direction[i-1] < 0 {
			position = -1.0
		}
		strategyReturn := pctChange * position
		if strategyReturn == 0 {
			continue
		}
		tradedAny = true
		equity = equity.Mul(decimal.NewFromFloat(1 + strategyReturn))
		switch {
		case strategyReturn > 0:
			wins++
		case strategyReturn < 0:
			losses++
		}
	}

	if !tradedAny {
		return performance{netProfit: 0, winRate: 0}
	}

	netProfit, _ := equity.Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).Float64()
	winRate := 0.0
	if total := wins + losses; total > 0 {
		winRate = float64(wins) / float64(total) * 100
	}
	return performance{netProfit: netProfit, winRate: winRate}
}

// sortByNetProfitDesc orders combos from best to worst performance.
func sortByNetProfitDesc(combos []Combo) {
	for i := 1; i < len(combos); i++ {
		for j := i; j > 0 && combos[j].NetProfit > combos[j-1].NetProfit; j-- {
			combos[j], combos[j-1] = combos[j-1], combos[j]
		}
	}
}
