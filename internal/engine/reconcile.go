package engine

import (
	"context"
	"fmt"
	"time"

	"jongga-bot/internal/interfaces"
	"jongga-bot/internal/logger"
	"jongga-bot/internal/metrics"
	"jongga-bot/internal/types"
)

// StrategyTag marks positions opened (or adopted) by this bot in logs and
// trade rows.
const StrategyTag = "JONGGA"

// Reconciler aligns the local position mirror with the broker's balance
// report. The broker always wins: local state is overwritten, never argued
// with.
type Reconciler struct {
	store    *Store
	brk      interfaces.Broker
	notifier interfaces.Notifier
	clock    Clock
}

func NewReconciler(st *Store, brk interfaces.Broker, n interfaces.Notifier, clock Clock) *Reconciler {
	return &Reconciler{store: st, brk: brk, notifier: n, clock: clock}
}

// Reconcile fetches holdings and folds them into the store. On fetch failure
// it returns ok=false and the caller must skip the whole monitoring pass; a
// failed fetch never reads as "account is empty". The returned map is the
// broker snapshot, used downstream for sell sizing.
func (r *Reconciler) Reconcile(ctx context.Context) (map[string]types.Holding, bool) {
	holdings, err := r.brk.FetchHoldings(ctx)
	if err != nil {
		logger.Warn(ctx, "Holdings fetch failed, skipping reconciliation pass", "error", err.Error())
		return nil, false
	}
	now := r.clock.Now()

	for _, pos := range r.store.List() {
		h, held := holdings[pos.Symbol]
		if !held {
			// Sold outside the bot (manual order, fill race). Drop it and
			// keep it out for the rest of the day.
			r.store.Remove(pos.Symbol)
			metrics.ReconcileEvents.WithLabelValues("remove").Inc()
			logger.Info(ctx, "Position gone from broker, removed", "symbol", pos.Symbol, "name", pos.Name)
			r.notifier.Notify(ctx, fmt.Sprintf("⚠️ %s(%s) no longer held at broker, tracking stopped", pos.Name, pos.Symbol))
			continue
		}
		if h.Qty != pos.Qty {
			still := r.store.Resync(pos.Symbol, h.Qty, h.AvgPrice)
			metrics.ReconcileEvents.WithLabelValues("resync").Inc()
			if !still {
				logger.Info(ctx, "Position quantity reached zero, removed", "symbol", pos.Symbol)
				continue
			}
			logger.Info(ctx, "Position resynced to broker quantities",
				"symbol", pos.Symbol, "qty", h.Qty, "avg_price", h.AvgPrice, "was_qty", pos.Qty)
		}
	}

	for sym, h := range holdings {
		if r.adopt(h, now) {
			metrics.ReconcileEvents.WithLabelValues("adopt").Inc()
			logger.Info(ctx, "Adopted broker holding", "symbol", sym, "name", h.Name, "qty", h.Qty)
		}
	}
	return holdings, true
}

func (r *Reconciler) adopt(h types.Holding, now time.Time) bool {
	return r.store.Adopt(h, now, StrategyTag)
}
