package performance

import "position-core/internal/domain"

// isWin classifies a trade outcome. Zero realized P/L counts as a loss.
func isWin(realizedPL float64) bool {
	return realizedPL > 0
}

// initialStats builds the stats for the first trade folded into a
// period bucket.
func initialStats(info *domain.LiquidationInfo) domain.PerformanceStats {
	stats := domain.PerformanceStats{
		TotalTrades:     1,
		TotalRealizedPL: info.RealizedPL,
		AveragePL:       info.RealizedPL,
		AveragePLRatio:  info.PLRatio,
		TotalFee:        info.Fee,
		TotalInvestment: info.OpenPrice * info.Amount,
	}

	if isWin(info.RealizedPL) {
		stats.WinCount = 1
		stats.WinRate = 100
		stats.MaxProfit = info.RealizedPL
		stats.TotalProfit = info.RealizedPL
	} else {
		stats.LoseCount = 1
		stats.WinRate = 0
		// MaxLoss stays signed, TotalLoss is a magnitude.
		stats.MaxLoss = info.RealizedPL
		stats.TotalLoss = -info.RealizedPL
	}

	// ProfitLossRatio needs both a win and a loss; undefined here.
	return stats
}

// mergeStats folds one more trade into existing stats and recomputes
// the derived fields from the new totals.
func mergeStats(old domain.PerformanceStats, info *domain.LiquidationInfo) domain.PerformanceStats {
	stats := old
	stats.ProfitLossRatio = nil

	oldTrades := old.TotalTrades
	stats.TotalTrades = oldTrades + 1

	if isWin(info.RealizedPL) {
		stats.WinCount++
		stats.TotalProfit += info.RealizedPL
		if info.RealizedPL > stats.MaxProfit {
			stats.MaxProfit = info.RealizedPL
		}
	} else {
		stats.LoseCount++
		stats.TotalLoss += -info.RealizedPL
		if info.RealizedPL < stats.MaxLoss {
			stats.MaxLoss = info.RealizedPL
		}
	}

	stats.TotalRealizedPL += info.RealizedPL
	stats.TotalFee += info.Fee
	stats.TotalInvestment += info.OpenPrice * info.Amount

	stats.WinRate = float64(stats.WinCount) / float64(stats.TotalTrades) * 100
	stats.AveragePL = stats.TotalRealizedPL / float64(stats.TotalTrades)

	// Trade-count-weighted running mean. Uses the prior record's
	// TotalTrades, not the audit list length.
	stats.AveragePLRatio = (old.AveragePLRatio*float64(oldTrades) + info.PLRatio) / float64(stats.TotalTrades)

	if stats.WinCount > 0 && stats.LoseCount > 0 {
		averageLoss := stats.TotalLoss / float64(stats.LoseCount)
		if averageLoss != 0 {
			ratio := (stats.TotalProfit / float64(stats.WinCount)) / averageLoss
			stats.ProfitLossRatio = &ratio
		}
	}

	return stats
}
