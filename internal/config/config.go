// Package config loads the fleet's configuration entirely from environment
// variables, with typed accessors and defaults for every setting (§11).
package config

import (
	"fmt"
	"time"
)

// Config is the complete, immutable configuration a process is built from.
// It is loaded once at startup; nothing in the fleet mutates it afterward.
type Config struct {
	App      AppConfig
	Exchange ExchangeConfig
	Strategy StrategyConfig
	Risk     RiskConfig
	Backtest BacktestConfig
	Logging  LoggingConfig
}

// AppConfig carries process-wide settings that aren't specific to any one
// component.
type AppConfig struct {
	Environment            string        // "development", "production"
	StateDirectory         string        // where per-symbol AgentState files live (§4.4.7)
	ShutdownTimeout        time.Duration // bound on graceful agent/task shutdown
	ReconciliationInterval time.Duration // Orchestrator cycle period (§4.7), default 15m
}

// ExchangeConfig selects and parameterizes the Exchange Gateway (§4.1).
type ExchangeConfig struct {
	Mode                  string // "LIVE" or "SIMULATION"
	APIKey                string
	APISecret             string
	RESTBaseURL           string
	WSBaseURL             string
	DiscoveryURL          string
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	RateLimitPerSecond    float64
	RateLimitBurst        int
	LeverageMultiplier    int // applied to every symbol on subscribe, LIVE mode only
}

// StrategyConfig holds the fleet-wide strategy constants that are not part
// of the per-symbol backtested StrategyParams (§4.4).
type StrategyConfig struct {
	GridWidthPct    float64 // spacing between grid levels, percent (e.g. 1.0 = 1%)
	MaxEntries      int     // cap on scaled-in entries per side
	RiskPctPerTrade float64 // percent of balance_real risked per entry
	MinHistoryBars  int     // floor on history length before SuperTrend is dispatched, on top of the per-symbol period
}

// RiskConfig holds the portfolio-wide risk ceilings (§4.4.2).
type RiskConfig struct {
	MaxEquityRiskPct float64 // hard cap on risked equity per position, e.g. 3.0
}

// BacktestConfig parameterizes the Vectorized Backtester (§4.8).
type BacktestConfig struct {
	InitialCapital       float64
	ResultsDirectory     string
	InitialHistoryHours  int // loaded but not read: the kline cache uses a fixed 48h window
	IncrementalFetchBars int // loaded but not read: the kline cache uses a fixed 200-bar incremental limit
	MaxConcurrency       int // loaded but not read: the Orchestrator runs one backtest goroutine per candidate
}

// LoggingConfig parameterizes the logging package (§10).
type LoggingConfig struct {
	Level      string // "debug", "info", "warn", "error"
	Format     string // "json", "text"
	Output     string // "stdout", "file", "both"
	Directory  string
	MaxSize    int // max MB per file
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// Load builds a Config from the process environment, filling in defaults for
// anything unset.
func Load() *Config {
	return &Config{
		App: AppConfig{
			Environment:            GetEnv("FLEET_ENVIRONMENT", "development"),
			StateDirectory:         GetEnv("FLEET_STATE_DIR", "./state"),
			ShutdownTimeout:        GetEnvDuration("FLEET_SHUTDOWN_TIMEOUT", 30*time.Second),
			ReconciliationInterval: GetEnvDuration("FLEET_RECONCILE_INTERVAL", 15*time.Minute),
		},
		Exchange: ExchangeConfig{
			Mode:                  GetEnv("EXCHANGE_MODE", "SIMULATION"),
			APIKey:                GetEnv("EXCHANGE_API_KEY", ""),
			APISecret:             GetEnv("EXCHANGE_API_SECRET", ""),
			RESTBaseURL:           GetEnv("EXCHANGE_REST_URL", "https://api.bybit.com"),
			WSBaseURL:             GetEnv("EXCHANGE_WS_URL", "wss://stream.bybit.com/v5/public/linear"),
			DiscoveryURL:          GetEnv("EXCHANGE_DISCOVERY_URL", ""),
			PingInterval:          GetEnvDuration("EXCHANGE_PING_INTERVAL", 20*time.Second),
			ReconnectInitialDelay: GetEnvDuration("EXCHANGE_RECONNECT_INITIAL_DELAY", 5*time.Second),
			ReconnectMaxDelay:     GetEnvDuration("EXCHANGE_RECONNECT_MAX_DELAY", 15*time.Second),
			RateLimitPerSecond:    GetEnvFloat("EXCHANGE_RATE_LIMIT_PER_SEC", 10.0),
			RateLimitBurst:        GetEnvInt("EXCHANGE_RATE_LIMIT_BURST", 20),
			LeverageMultiplier:    GetEnvInt("LEVERAGE_MULTIPLIER", 10),
		},
		Strategy: StrategyConfig{
			GridWidthPct:    GetEnvFloat("STRATEGY_GRID_WIDTH_PCT", 1.0),
			MaxEntries:      GetEnvInt("STRATEGY_MAX_ENTRIES", 2),
			RiskPctPerTrade: GetEnvFloat("STRATEGY_RISK_PCT_PER_TRADE", 1.0),
			MinHistoryBars:  GetEnvInt("STRATEGY_MIN_HISTORY_BARS", 50),
		},
		Risk: RiskConfig{
			MaxEquityRiskPct: GetEnvFloat("RISK_MAX_EQUITY_RISK_PCT", 3.0),
		},
		Backtest: BacktestConfig{
			InitialCapital:       GetEnvFloat("BACKTEST_INITIAL_CAPITAL", 10000.0),
			ResultsDirectory:     GetEnv("BACKTEST_RESULTS_DIR", "./backtest_results"),
			InitialHistoryHours:  GetEnvInt("BACKTEST_INITIAL_HISTORY_HOURS", 48),
			IncrementalFetchBars: GetEnvInt("BACKTEST_INCREMENTAL_FETCH_BARS", 200),
			MaxConcurrency:       GetEnvInt("BACKTEST_MAX_CONCURRENCY", 4),
		},
		Logging: LoggingConfig{
			Level:      GetEnv("LOG_LEVEL", "info"),
			Format:     GetEnv("LOG_FORMAT", "text"),
			Output:     GetEnv("LOG_OUTPUT", "stdout"),
			Directory:  GetEnv("LOG_DIRECTORY", "./logs"),
			MaxSize:    GetEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: GetEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:     GetEnvInt("LOG_MAX_AGE_DAYS", 30),
			Compress:   GetEnvBool("LOG_COMPRESS", true),
		},
	}
}

// Validate returns the first condition that must stop startup (§7's fatal
// class): an exchange mode the gateway doesn't implement, or a risk
// parameter that would make position sizing meaningless.
func (c *Config) Validate() error {
	if c.Exchange.Mode != "LIVE" && c.Exchange.Mode != "SIMULATION" {
		return fmt.Errorf("config: EXCHANGE_MODE must be LIVE or SIMULATION, got %q", c.Exchange.Mode)
	}
	if c.Exchange.Mode == "LIVE" && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return fmt.Errorf("config: EXCHANGE_API_KEY and EXCHANGE_API_SECRET are required in LIVE mode")
	}
	if c.Strategy.GridWidthPct <= 0 {
		return fmt.Errorf("config: STRATEGY_GRID_WIDTH_PCT must be positive, got %v", c.Strategy.GridWidthPct)
	}
	if c.Strategy.MaxEntries < 1 {
		return fmt.Errorf("config: STRATEGY_MAX_ENTRIES must be at least 1, got %d", c.Strategy.MaxEntries)
	}
	if c.Risk.MaxEquityRiskPct <= 0 || c.Risk.MaxEquityRiskPct > 100 {
		return fmt.Errorf("config: RISK_MAX_EQUITY_RISK_PCT must be in (0, 100], got %v", c.Risk.MaxEquityRiskPct)
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("config: BACKTEST_INITIAL_CAPITAL must be positive, got %v", c.Backtest.InitialCapital)
	}
	return nil
}

// Warnings returns non-fatal misconfigurations worth logging (§7's warning
// class) — settings that are internally consistent but unusual enough that
// a typo is the likelier explanation.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Strategy.RiskPctPerTrade > c.Risk.MaxEquityRiskPct {
		warnings = append(warnings, fmt.Sprintf(
			"STRATEGY_RISK_PCT_PER_TRADE (%.2f) exceeds RISK_MAX_EQUITY_RISK_PCT (%.2f); every sized entry will be clamped",
			c.Strategy.RiskPctPerTrade, c.Risk.MaxEquityRiskPct))
	}
	if c.Exchange.RateLimitPerSecond <= 0 {
		warnings = append(warnings, "EXCHANGE_RATE_LIMIT_PER_SEC is zero or negative; REST calls will never be throttled")
	}
	if c.App.ReconciliationInterval < time.Minute {
		warnings = append(warnings, "FLEET_RECONCILE_INTERVAL is under a minute; the discovery endpoint may rate-limit the orchestrator")
	}
	return warnings
}
