package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Export writes result as a JSON snapshot and a CSV ledger (one row per
// evaluated combination, sorted by net profit) under dir, named after the
// ticker and the export time (§4.8: "additionally exportable as a JSON
// snapshot and a CSV trade/performance ledger").
func Export(result *Result, dir string) error {
	if result == nil {
		return fmt.Errorf("backtest: cannot export a nil result")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("backtest: creating export directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	base := fmt.Sprintf("%s_%s", result.Symbol, timestamp)

	if err := exportJSON(result, filepath.Join(dir, base+".json")); err != nil {
		return err
	}
	return exportCSV(result, filepath.Join(dir, base+".csv"))
}

func exportJSON(result *Result, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("backtest: marshaling result: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func exportCSV(result *Result, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("backtest: creating csv ledger: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"timeframe_minutes", "period", "multiplier", "net_profit", "win_rate"}); err != nil {
		return err
	}
	for _, c := range result.All {
		row := []string{
			fmt.Sprintf("%d", int(c.Timeframe/time.Minute)),
			fmt.Sprintf("%d", c.Period),
			fmt.Sprintf("%.1f", c.Multiplier),
			fmt.Sprintf("%.4f", c.NetProfit),
			fmt.Sprintf("%.4f", c.WinRate),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
