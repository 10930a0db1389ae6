package gateway

import (
	"fmt"

	"tradingfleet/internal/config"
	"tradingfleet/internal/logging"
	"tradingfleet/internal/types"
)

// New builds the Gateway selected by cfg.Mode (§4.1). SIMULATION needs a
// seed universe and starting prices since nothing upstream has discovered
// instruments yet at process start.
func New(cfg config.ExchangeConfig, log *logging.Logger, simUniverse []types.Symbol, simInitialPrices map[types.Symbol]float64, simInitialBalance float64) (Gateway, error) {
	switch cfg.Mode {
	case "LIVE":
		return NewLiveGateway(cfg, log), nil
	case "SIMULATION":
		return NewSimulationGateway(simUniverse, simInitialPrices, simInitialBalance, 1), nil
	default:
		return nil, fmt.Errorf("gateway: unknown mode %q", cfg.Mode)
	}
}
