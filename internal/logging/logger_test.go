package logging

import (
	"testing"

	"tradingfleet/internal/config"
)

func TestNewLoggerDefaultsToInfo(t *testing.T) {
	l := NewLogger(config.LoggingConfig{Level: "bogus", Format: "text", Output: "stdout"})
	if l.Level.String() != "info" {
		t.Fatalf("expected fallback level info, got %s", l.Level.String())
	}
}

func TestNewComponentLoggerTagsComponent(t *testing.T) {
	InitGlobalLogger(config.LoggingConfig{Level: "debug", Format: "text", Output: "stdout"})
	l := NewComponentLogger("portfolio")
	if l.component != "portfolio" {
		t.Fatalf("expected component 'portfolio', got %q", l.component)
	}
}

func TestStructuredHelpersDoNotPanic(t *testing.T) {
	InitGlobalLogger(config.LoggingConfig{Level: "debug", Format: "text", Output: "stdout"})
	l := NewComponentLogger("test")
	l.LogSignal("BTCUSDT", "ENTRY_LONG", "supertrend flipped up")
	l.LogOrder("BTCUSDT", "BUY", "MARKET", "GRID_ENTRY_1", 0.01, 29850)
	l.LogFill("BTCUSDT", "BUY", "GRID_ENTRY_1", 0.01, 29850, 0)
	l.LogGridStage("BTCUSDT", "staged", 2, 29551.5)
	l.LogReconciliation(1, 1, 5)
	l.LogReconnect(1, 0, nil)
	l.LogBacktest("BTCUSDT", 5, 20, 3.0, 12.5, 55.0)
}
