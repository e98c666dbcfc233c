package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"jongga-bot/internal/interfaces"
	"jongga-bot/internal/logger"
	"jongga-bot/internal/metrics"
	"jongga-bot/internal/store"
	"jongga-bot/internal/tradelog"
	"jongga-bot/internal/types"
)

// slotGuardSecond closes each minute slot early: an order placed in the last
// seconds would race the tranche index flip, and in the final slot would rest
// unfilled into the close.
const slotGuardSecond = 50

// Scheduler drip-feeds the day's entry budget across the entry window: one
// tranche slot per whole minute, one limit buy per symbol per slot. Progress
// only moves forward on venue-accepted orders, so a missed slot is skipped,
// never replayed.
type Scheduler struct {
	cfg      *store.Config
	brk      interfaces.Broker
	store    *Store
	notifier interfaces.Notifier
	trades   *tradelog.Store
	dayClock *DayClock

	mu     sync.Mutex
	halted bool // deposit exhausted, no more entries today
}

func NewScheduler(cfg *store.Config, brk interfaces.Broker, st *Store, n interfaces.Notifier, trades *tradelog.Store, dc *DayClock) *Scheduler {
	return &Scheduler{cfg: cfg, brk: brk, store: st, notifier: n, trades: trades, dayClock: dc}
}

// Halted reports whether today's entries were aborted for lack of funds.
func (s *Scheduler) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

func (s *Scheduler) halt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halted = true
}

// Reset clears the halt for the next session.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halted = false
}

// insufficientFunds recognizes the venue's deposit-exhausted rejection
// (KIS msg1 carries "부족" for both real and paper accounts).
func insufficientFunds(msg string) bool {
	return strings.Contains(msg, "부족") || strings.Contains(strings.ToLower(msg), "insufficient")
}

// Tick runs one scheduling pass at now against the day's targets. Safe to
// call every few seconds; idempotent within a tranche slot.
func (s *Scheduler) Tick(ctx context.Context, now time.Time, targets []types.Candidate, alloc Allocation) {
	if s.Halted() {
		return
	}
	idx := s.dayClock.TrancheIndex(now)
	if idx < 0 || idx >= s.cfg.Entry.SplitBuyCount {
		return
	}
	if now.Second() >= slotGuardSecond {
		return
	}

	for _, c := range targets {
		if s.store.IsBlacklisted(c.Symbol) {
			continue
		}
		if s.store.Progress(c.Symbol) > idx {
			continue
		}
		s.buyTranche(ctx, now, c, alloc, idx)
	}
}

func (s *Scheduler) buyTranche(ctx context.Context, now time.Time, c types.Candidate, alloc Allocation, idx int) {
	// Size against a fresh ask, not the screening-time price.
	d, err := s.brk.FetchPriceDetail(ctx, c.Symbol)
	if err != nil {
		logger.Warn(ctx, "Quote unavailable, tranche skipped", "symbol", c.Symbol, "tranche", idx+1, "error", err.Error())
		return
	}
	ask := d.BestAsk
	if ask <= 0 {
		ask = d.Price
	}
	if ask <= 0 {
		return
	}
	qty := alloc.PerTranche / ask
	if qty <= 0 {
		logger.Info(ctx, "Tranche budget below one share, skipped",
			"symbol", c.Symbol, "ask", ask, "per_tranche", alloc.PerTranche)
		return
	}

	ref := uuid.NewString()
	resp, err := s.brk.SubmitOrder(ctx, types.OrderReq{
		Symbol: c.Symbol,
		Side:   types.SideBuy,
		Qty:    qty,
		Price:  ask,
		Ref:    ref,
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Buy order failed", err, "symbol", c.Symbol, "tranche", idx+1)
		return
	}
	if !resp.Accepted {
		if insufficientFunds(resp.Message) {
			logger.Warn(ctx, "Deposit exhausted, aborting today's entries",
				"symbol", c.Symbol, "tranche", idx+1, "message", resp.Message)
			s.notifier.Notify(ctx, "⛔ Buy rejected for insufficient funds. No more entries today.")
			s.halt()
			return
		}
		logger.Warn(ctx, "Buy order rejected by venue",
			"symbol", c.Symbol, "tranche", idx+1, "message", resp.Message)
		return
	}

	s.store.AdvanceTranche(c.Symbol, s.cfg.Entry.SplitBuyCount)
	metrics.Orders.WithLabelValues(string(types.SideBuy)).Inc()
	logger.Trade(ctx, c.Symbol, string(types.SideBuy), qty, ask, resp.OrderID,
		"tranche", idx+1, "name", c.Name)

	if err := s.trades.Append(ctx, tradelog.Entry{
		Time:     now,
		Symbol:   c.Symbol,
		Name:     c.Name,
		Side:     string(types.SideBuy),
		Strategy: StrategyTag,
		Rule:     fmt.Sprintf("tranche_%d", idx+1),
		Qty:      qty,
		Price:    ask,
		OrderRef: ref,
		OrderID:  resp.OrderID,
	}); err != nil {
		logger.ErrorWithErr(ctx, "Trade log write failed", err, "symbol", c.Symbol)
	}

	s.notifier.Notify(ctx, fmt.Sprintf("🛒 BUY %s(%s) %d shares @ %d KRW (tranche %d/%d)",
		c.Name, c.Symbol, qty, ask, idx+1, s.cfg.Entry.SplitBuyCount))
}
