package backtest

// buildResult compiles the final RunResult from the engine's trade
// manager, account, and config snapshot. Called once, after the bar
// stream is exhausted and remaining trades force-closed.
func (e *Engine) buildResult() *RunResult {
	closed := e.trades.ClosedTrades()
	records := make([]TradeRecord, 0, len(closed))
	for _, t := range closed {
		records = append(records, NewTradeRecord(t))
	}

	finalCapital := e.account.currentCapital
	if len(e.account.equityCurve) > 0 {
		finalCapital = e.account.equityCurve[len(e.account.equityCurve)-1].Equity
	}

	calc := NewMetricsCalculator(records, e.account.equityCurve, e.account.initialCapital, e.cfg.RiskFreeRate)

	return &RunResult{
		Config:            e.cfg,
		InitialCapital:    e.account.initialCapital,
		FinalCapital:      finalCapital,
		EquityCurve:       e.account.equityCurve,
		Trades:            records,
		Metrics:           calc.CalculateAllMetrics(),
		PerSymbol:         calc.PerSymbol(),
		PerStrengthBucket: calc.PerStrengthBucket(),
	}
}
