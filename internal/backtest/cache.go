package backtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"tradingfleet/internal/types"
	"tradingfleet/pkg/gateway"
)

// window is how far back the cache retains bars for a (ticker, timeframe)
// pair — the Backtester only ever evaluates the trailing 48 hours (§4.8).
const window = 48 * time.Hour

// incrementalLimit bounds every fetch after the first: once a cache entry
// exists, only bars newer than its last timestamp are requested, up to this
// many (§4.8 step 1).
const incrementalLimit = 200

// cacheKey identifies one (ticker, timeframe) kline series.
type cacheKey struct {
	symbol types.Symbol
	period time.Duration
}

// klineCache holds the per-(ticker,timeframe) bar history the Backtester
// accumulates across repeated optimize() calls, deduplicated by timestamp
// and trimmed to the trailing window so memory does not grow unbounded
// across an Orchestrator's lifetime of 15-minute cycles.
type klineCache struct {
	mu   sync.Mutex
	gw   gateway.Gateway
	bars map[cacheKey][]types.OHLCVBar
}

func newKlineCache(gw gateway.Gateway) *klineCache {
	return &klineCache{gw: gw, bars: make(map[cacheKey][]types.OHLCVBar)}
}

// fetch returns the up-to-date bar history for (symbol, period), fetching
// the initial 48h window on first use and only the incremental tail on
// every call after (§4.8 step 1).
func (c *klineCache) fetch(ctx context.Context, symbol types.Symbol, period time.Duration) ([]types.OHLCVBar, error) {
	key := cacheKey{symbol: symbol, period: period}

	c.mu.Lock()
	existing := c.bars[key]
	c.mu.Unlock()

	var (
		fresh []types.OHLCVBar
		err   error
	)
	if len(existing) == 0 {
		limit := int(window / period)
		fresh, err = c.gw.GetKlines(ctx, symbol, period, limit, nil)
	} else {
		since := existing[len(existing)-1].Timestamp
		fresh, err = c.gw.GetKlines(ctx, symbol, period, incrementalLimit, &since)
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	merged := mergeBars(c.bars[key], fresh)
	merged = trimToWindow(merged, window)
	c.bars[key] = merged
	return merged, nil
}

// mergeBars combines two bar slices, keeping the newest value for any
// timestamp that appears in both, and returns the result sorted ascending.
func mergeBars(existing, fresh []types.OHLCVBar) []types.OHLCVBar {
	byTimestamp := make(map[time.Time]types.OHLCVBar, len(existing)+len(fresh))
	for _, b := range existing {
		byTimestamp[b.Timestamp] = b
	}
	for _, b := range fresh {
		byTimestamp[b.Timestamp] = b
	}
	out := make([]types.OHLCVBar, 0, len(byTimestamp))
	for _, b := range byTimestamp {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// trimToWindow drops every bar older than w before the newest bar's
// timestamp.
func trimToWindow(bars []types.OHLCVBar, w time.Duration) []types.OHLCVBar {
	if len(bars) == 0 {
		return bars
	}
	cutoff := bars[len(bars)-1].Timestamp.Add(-w)
	start := 0
	for start < len(bars) && bars[start].Timestamp.Before(cutoff) {
		start++
	}
	return bars[start:]
}
