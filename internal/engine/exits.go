package engine

import (
	"time"

	"jongga-bot/internal/store"
	"jongga-bot/internal/types"
)

// Exit rule tags. They label orders, logs, trade rows and metrics.
const (
	RuleVIGuard       = "vi_guard"
	RuleGapDownPanic  = "gap_down_panic"
	RuleStopLoss      = "stop_loss"
	RulePartialProfit = "partial_profit"
	RuleTrailingStop  = "trailing_stop"
	RuleTimeCut       = "time_cut"
	RuleManual        = "manual"
)

type exitKind int

const (
	// exitNone: no rule fired this tick.
	exitNone exitKind = iota
	// exitSkip: quote is untrustworthy (volatility interruption), evaluate
	// nothing and touch nothing.
	exitSkip
	// exitHold: a sell rule fired but the early-session grace suppresses
	// execution; re-evaluated next tick.
	exitHold
	exitSellAll
	exitSellPartial
)

type exitAction struct {
	Kind exitKind
	Rule string
	Qty  int64 // partial sells only
}

// evaluateExit runs the exit ladder for one position against a fresh quote
// and the broker-reported holding. Pure: no I/O, no state mutation. The
// high-water mark must already be raised for this tick; maxProfit is the
// post-raise value.
//
// Ladder order is significant: the volatility guard veils everything, panic
// and stop-loss precede profit-taking, and the trailing stop runs last.
func evaluateExit(cfg *store.Config, pos types.Position, d *types.PriceDetail, hold types.Holding, maxProfit float64, now time.Time) exitAction {
	atOpen := now.Hour() == cfg.Session.OpenHour
	profit := pos.ProfitRate(d.Price)

	// Zero accumulated volume in the first session minute means the symbol
	// opened into a volatility interruption; the quote is not a trade price.
	if atOpen && now.Minute() <= 1 && d.AccumVolume == 0 {
		return exitAction{Kind: exitSkip, Rule: RuleVIGuard}
	}

	// During the first grace minutes a dislocated open routinely prints
	// through the stop; sells detected here are held, not executed.
	grace := atOpen && now.Minute() < cfg.Exit.GraceMinutes

	if atOpen && now.Minute() < 5 && profit <= cfg.Exit.GapDownPanicRate {
		if grace {
			return exitAction{Kind: exitHold, Rule: RuleGapDownPanic}
		}
		return exitAction{Kind: exitSellAll, Rule: RuleGapDownPanic}
	}

	if profit <= cfg.Exit.StopLossRate {
		if grace {
			return exitAction{Kind: exitHold, Rule: RuleStopLoss}
		}
		return exitAction{Kind: exitSellAll, Rule: RuleStopLoss}
	}

	if !pos.HasPartialSold && profit >= cfg.Exit.PartialProfitRate {
		// Size from the broker-reported quantity, not the local mirror, and
		// only when that many shares are actually free to sell. A gated
		// partial (zero shares, or resting orders locking them) still lets
		// the trailing stop below protect the position this tick.
		qty := int64(float64(hold.Qty) * cfg.Exit.PartialSellRatio)
		if qty > 0 && hold.OrderableQty >= qty {
			return exitAction{Kind: exitSellPartial, Rule: RulePartialProfit, Qty: qty}
		}
	}

	if maxProfit >= cfg.Exit.TrailingTriggerRate && profit <= maxProfit-cfg.Exit.TrailingStopGap {
		return exitAction{Kind: exitSellAll, Rule: RuleTrailingStop}
	}

	return exitAction{Kind: exitNone}
}
