package portfolio

// ComputePositionSize implements the fixed-fractional risk formula (§4.4.2):
// risk riskPctPerTrade percent of balance against a grid-width-percent stop,
// then clamp the dollar risk to maxEquityRiskPct percent of balance.
func ComputePositionSize(balanceReal, riskPctPerTrade, gridWidthPct, maxEquityRiskPct, price float64) float64 {
	if price <= 0 || gridWidthPct <= 0 {
		return 0
	}
	riskAmount := balanceReal * (riskPctPerTrade / 100)
	qty := (riskAmount / (gridWidthPct / 100)) / price

	maxRiskAmount := balanceReal * (maxEquityRiskPct / 100)
	dollarRiskAtStop := qty * price * (gridWidthPct / 100)
	if dollarRiskAtStop > maxRiskAmount {
		qty = (maxRiskAmount / (gridWidthPct / 100)) / price
	}
	return qty
}
