package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"jongga-bot/internal/types"
)

func position(avg float64) types.Position {
	return types.Position{Symbol: "005930", Name: "삼성전자", Qty: 10, AvgBuyPrice: avg, EntryTime: kst(9, 0, 0).AddDate(0, 0, -1)}
}

func quote(price int64) *types.PriceDetail {
	return &types.PriceDetail{Symbol: "005930", Price: price, Open: price, High: price, AccumVolume: 100}
}

func TestExitNoRuleFires(t *testing.T) {
	cfg := testConfig()
	pos := position(70000)
	act := evaluateExit(cfg, pos, quote(70100), holding("005930", 10, 70000), 0.0014, kst(9, 30, 0))
	assert.Equal(t, exitNone, act.Kind)
}

func TestExitVIGuard(t *testing.T) {
	cfg := testConfig()
	pos := position(70000)
	d := quote(60000)
	d.AccumVolume = 0

	// First session minute with no prints: not a trade price, touch nothing.
	act := evaluateExit(cfg, pos, d, holding("005930", 10, 70000), 0, kst(9, 0, 30))
	assert.Equal(t, exitSkip, act.Kind)
	assert.Equal(t, RuleVIGuard, act.Rule)

	// Same quote with volume is a real dislocation.
	d.AccumVolume = 1
	act = evaluateExit(cfg, pos, d, holding("005930", 10, 70000), 0, kst(9, 0, 30))
	assert.NotEqual(t, exitSkip, act.Kind)
}

func TestExitGapDownPanic(t *testing.T) {
	cfg := testConfig()
	pos := position(70000)
	down3pct := quote(67900) // -3.0%

	// Inside the grace minutes the sell is held.
	act := evaluateExit(cfg, pos, down3pct, holding("005930", 10, 70000), 0, kst(9, 2, 0))
	assert.Equal(t, exitHold, act.Kind)
	assert.Equal(t, RuleGapDownPanic, act.Rule)

	// Grace over, still in the first five minutes: panic out.
	act = evaluateExit(cfg, pos, down3pct, holding("005930", 10, 70000), 0, kst(9, 4, 0))
	assert.Equal(t, exitSellAll, act.Kind)
	assert.Equal(t, RuleGapDownPanic, act.Rule)

	// Later in the session the same loss is a plain stop.
	act = evaluateExit(cfg, pos, down3pct, holding("005930", 10, 70000), 0, kst(9, 30, 0))
	assert.Equal(t, exitSellAll, act.Kind)
	assert.Equal(t, RuleStopLoss, act.Rule)
}

func TestExitStopLossBoundary(t *testing.T) {
	cfg := testConfig()
	pos := position(100000)

	// -2.2% breaches the -2% stop.
	act := evaluateExit(cfg, pos, quote(97800), holding("005930", 10, 100000), 0, kst(9, 30, 0))
	assert.Equal(t, exitSellAll, act.Kind)
	assert.Equal(t, RuleStopLoss, act.Rule)

	// -1.9% does not.
	act = evaluateExit(cfg, pos, quote(98100), holding("005930", 10, 100000), 0, kst(9, 30, 0))
	assert.Equal(t, exitNone, act.Kind)

	// Exactly -2% fires.
	act = evaluateExit(cfg, pos, quote(98000), holding("005930", 10, 100000), -0.02, kst(9, 30, 0))
	assert.Equal(t, exitSellAll, act.Kind)
}

func TestExitStopLossHeldByGrace(t *testing.T) {
	cfg := testConfig()
	pos := position(100000)

	act := evaluateExit(cfg, pos, quote(97000), holding("005930", 10, 100000), 0, kst(9, 1, 0))
	assert.Equal(t, exitHold, act.Kind)

	// Grace applies only at the open hour.
	act = evaluateExit(cfg, pos, quote(97000), holding("005930", 10, 100000), 0, kst(10, 1, 0))
	assert.Equal(t, exitSellAll, act.Kind)
}

func TestExitPartialTakeProfit(t *testing.T) {
	cfg := testConfig()
	pos := position(100000)
	up := quote(101500) // +1.5%

	act := evaluateExit(cfg, pos, up, holding("005930", 10, 100000), 0.015, kst(9, 30, 0))
	assert.Equal(t, exitSellPartial, act.Kind)
	assert.Equal(t, RulePartialProfit, act.Rule)
	assert.Equal(t, int64(5), act.Qty, "half of the broker-reported quantity")
}

func TestExitPartialOnlyOnce(t *testing.T) {
	cfg := testConfig()
	pos := position(100000)
	pos.HasPartialSold = true

	act := evaluateExit(cfg, pos, quote(101500), holding("005930", 5, 100000), 0.015, kst(9, 30, 0))
	assert.Equal(t, exitNone, act.Kind)
}

func TestExitPartialBlockedByRestingOrders(t *testing.T) {
	cfg := testConfig()
	pos := position(100000)
	h := holding("005930", 10, 100000)
	h.OrderableQty = 3 // 7 shares locked behind resting orders

	act := evaluateExit(cfg, pos, quote(101500), h, 0.015, kst(9, 30, 0))
	assert.Equal(t, exitNone, act.Kind, "cannot sell 5 when only 3 are free")
}

func TestExitGatedPartialStillTrails(t *testing.T) {
	cfg := testConfig()
	pos := position(100000)
	h := holding("005930", 10, 100000)
	h.OrderableQty = 3

	// Partial is gated, but a +3% peak giving back to +1.5% must still
	// trigger the trailing stop on the same tick.
	act := evaluateExit(cfg, pos, quote(101500), h, 0.03, kst(9, 30, 0))
	assert.Equal(t, exitSellAll, act.Kind)
	assert.Equal(t, RuleTrailingStop, act.Rule)
}

func TestExitPartialZeroQty(t *testing.T) {
	cfg := testConfig()
	pos := position(100000)
	pos.Qty = 1

	act := evaluateExit(cfg, pos, quote(101500), holding("005930", 1, 100000), 0.015, kst(9, 30, 0))
	assert.Equal(t, exitNone, act.Kind, "floor(1*0.5) is zero shares")
}

func TestExitTrailingStop(t *testing.T) {
	cfg := testConfig()
	pos := position(100000)

	// Peak +3%, now +1.8%: gave back more than the 1% gap.
	act := evaluateExit(cfg, pos, quote(101800), holding("005930", 10, 100000), 0.03, kst(9, 30, 0))
	assert.Equal(t, exitSellAll, act.Kind)
	assert.Equal(t, RuleTrailingStop, act.Rule)

	// Peak +3%, now +2.5%: still inside the gap.
	act = evaluateExit(cfg, pos, quote(102500), holding("005930", 10, 100000), 0.03, kst(9, 30, 0))
	assert.Equal(t, exitNone, act.Kind)

	// Peak below the trigger never trails.
	act = evaluateExit(cfg, pos, quote(100100), holding("005930", 10, 100000), 0.015, kst(9, 30, 0))
	assert.Equal(t, exitNone, act.Kind)
}

func TestExitPartialPrecedesTrailing(t *testing.T) {
	cfg := testConfig()
	pos := position(100000)

	// Both partial TP and trailing conditions hold; the one-shot partial wins.
	act := evaluateExit(cfg, pos, quote(101500), holding("005930", 10, 100000), 0.03, kst(9, 30, 0))
	assert.Equal(t, exitSellPartial, act.Kind)
}
