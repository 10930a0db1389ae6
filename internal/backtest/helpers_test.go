package backtest

import (
	"context"
	"time"
)

// fixedStart is a stand-in for time.Now() in tests — the sandbox's "don't
// call the Go toolchain" constraint makes a literal timestamp the simplest
// way to keep bar generation deterministic across test runs.
func fixedStart() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func contextBackground() context.Context {
	return context.Background()
}
