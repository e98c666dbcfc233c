package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"jongga-bot/internal/eod"
	"jongga-bot/internal/interfaces"
	"jongga-bot/internal/logger"
	"jongga-bot/internal/metrics"
	"jongga-bot/internal/store"
	"jongga-bot/internal/tradelog"
	"jongga-bot/internal/types"
)

// Engine drives the daily trading cycle: wait for a live session, monitor and
// exit overnight positions, liquidate at the time cut, enter new positions in
// the late-session window and reset after the close. One Engine runs one
// account.
type Engine struct {
	cfg        *store.Config
	brk        interfaces.Broker
	notifier   interfaces.Notifier
	trades     *tradelog.Store
	clock      Clock
	dayClock   *DayClock
	store      *Store
	screener   *Screener
	scheduler  *Scheduler
	reconciler *Reconciler

	mu             sync.Mutex
	phase          Phase
	entriesEnabled bool
	targeted       bool
	timeCutDone    bool
	targets        []types.Candidate
	alloc          Allocation
	lastEquity     int64
	lastSchedTick  time.Time

	holidayDay    string
	holidayClosed bool
}

func New(cfg *store.Config, brk interfaces.Broker, n interfaces.Notifier, trades *tradelog.Store, clock Clock) *Engine {
	st := NewStore(cfg.Screen.Exclude)
	dc := NewDayClock(cfg)
	return &Engine{
		cfg:            cfg,
		brk:            brk,
		notifier:       n,
		trades:         trades,
		clock:          clock,
		dayClock:       dc,
		store:          st,
		screener:       NewScreener(cfg, brk, st),
		scheduler:      NewScheduler(cfg, brk, st, n, trades, dc),
		reconciler:     NewReconciler(st, brk, n, clock),
		phase:          PhaseAwaitingOpen,
		entriesEnabled: true,
	}
}

// Run executes the day cycle until ctx is cancelled. A panic in one step is
// logged and the loop continues after a short pause; the bot must outlive a
// bad tick.
func (e *Engine) Run(ctx context.Context) error {
	logger.Info(ctx, "Engine started", "mode", e.cfg.Mode, "dry_run", e.cfg.DryRun,
		"condition", e.cfg.ConditionName)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.step(ctx)
	}
}

func (e *Engine) step(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "Engine step panicked", "panic", fmt.Sprint(r), "phase", e.Phase().String())
			sleepCtx(ctx, 5*time.Second)
		}
	}()

	switch e.Phase() {
	case PhaseAwaitingOpen:
		e.awaitOpen(ctx)
	case PhaseMonitoring, PhaseEntering, PhaseLiquidating:
		e.monitorTick(ctx)
	case PhaseResetting:
		e.endDay(ctx)
	default:
		e.setPhase(PhaseAwaitingOpen)
	}
}

// awaitOpen blocks until today is a trading day with a live tape. Weekends
// and exchange holidays sleep through to the next wake-up. A session past the
// open with zero probe volume is a delayed open; keep probing.
func (e *Engine) awaitOpen(ctx context.Context) {
	now := e.clock.Now()

	if e.dayClock.IsWeekend(now) {
		logger.Info(ctx, "Weekend, sleeping until next wake-up", "wake", e.dayClock.NextWake(now))
		sleepUntil(ctx, e.dayClock.NextWake(now))
		return
	}

	closed, err := e.isHoliday(ctx, now)
	if err != nil {
		logger.Warn(ctx, "Holiday check failed, retrying", "error", err.Error())
		sleepCtx(ctx, time.Minute)
		return
	}
	if closed {
		logger.Info(ctx, "Exchange holiday, sleeping until next wake-up", "wake", e.dayClock.NextWake(now))
		sleepUntil(ctx, e.dayClock.NextWake(now))
		return
	}

	if e.dayClock.PastClose(now) {
		e.setPhase(PhaseResetting)
		return
	}
	if open := e.dayClock.SessionOpen(now); now.Before(open) {
		logger.Info(ctx, "Waiting for market open", "open", open)
		sleepUntil(ctx, open)
		return
	}

	// Exam-day style delayed opens print no volume after the nominal open.
	d, err := e.brk.FetchPriceDetail(ctx, e.cfg.ProbeSymbol)
	if err != nil || d.AccumVolume == 0 {
		logger.Info(ctx, "Tape not live yet, probing again", "probe", e.cfg.ProbeSymbol)
		sleepCtx(ctx, 30*time.Second)
		return
	}

	logger.Info(ctx, "Session live, monitoring", "probe_volume", d.AccumVolume)
	e.notifier.Notify(ctx, fmt.Sprintf("🔔 Session live (%s). Monitoring started.", now.Format("2006-01-02")))
	e.setPhase(PhaseMonitoring)
}

func (e *Engine) isHoliday(ctx context.Context, now time.Time) (bool, error) {
	day := now.Format("2006-01-02")
	e.mu.Lock()
	if e.holidayDay == day {
		closed := e.holidayClosed
		e.mu.Unlock()
		return closed, nil
	}
	e.mu.Unlock()

	closed, err := e.brk.CheckHoliday(ctx, now)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	e.holidayDay = day
	e.holidayClosed = closed
	e.mu.Unlock()
	return closed, nil
}

// monitorTick is one pass of the intraday loop: reconcile, run exits, handle
// the time cut, and during the entry window target and place tranches.
func (e *Engine) monitorTick(ctx context.Context) {
	now := e.clock.Now()
	if e.dayClock.PastClose(now) {
		e.setPhase(PhaseResetting)
		return
	}

	switch {
	case e.dayClock.InEntryWindow(now):
		e.setPhase(PhaseEntering)
	case e.dayClock.PastTimeCut(now) && !e.timeCutSpent():
		e.setPhase(PhaseLiquidating)
	default:
		e.setPhase(PhaseMonitoring)
	}

	if e.dayClock.InEntryWindow(now) && e.entriesOn() {
		e.targetEntries(ctx, now)
		e.mu.Lock()
		due := now.Sub(e.lastSchedTick) >= time.Duration(e.cfg.Poll.SchedulerMillis)*time.Millisecond
		if due {
			e.lastSchedTick = now
		}
		targets, alloc := e.targets, e.alloc
		e.mu.Unlock()
		if due && len(targets) > 0 {
			e.scheduler.Tick(ctx, now, targets, alloc)
		}
	}

	holdings, ok := e.reconciler.Reconcile(ctx)
	if ok {
		metrics.OpenPositions.Set(float64(e.store.Count()))
		e.runExits(ctx, now, holdings)
	}

	sleepCtx(ctx, time.Duration(e.cfg.Poll.MonitorMillis)*time.Millisecond)
}

func (e *Engine) runExits(ctx context.Context, now time.Time, holdings map[string]types.Holding) {
	if e.dayClock.PastTimeCut(now) && !e.timeCutSpent() && !e.dayClock.InEntryWindow(now) {
		// Keep retrying failed sells every pass; only a fully flat book
		// settles the cut, so later adoptions are left alone.
		if e.liquidate(ctx, now, holdings, RuleTimeCut) {
			e.markTimeCut()
		}
		return
	}

	for _, pos := range e.store.List() {
		h, held := holdings[pos.Symbol]
		if !held {
			continue
		}
		d, err := e.brk.FetchPriceDetail(ctx, pos.Symbol)
		if err != nil {
			continue
		}
		mark := e.store.RaiseHighWater(pos.Symbol, pos.ProfitRate(d.Price))

		act := evaluateExit(e.cfg, pos, d, h, mark, now)
		switch act.Kind {
		case exitSkip:
			logger.Debug(ctx, "Quote frozen, exit evaluation skipped", "symbol", pos.Symbol, "rule", act.Rule)
		case exitHold:
			// Once every ten seconds, not every tick.
			if now.Second()%10 == 0 {
				logger.Risk(ctx, pos.Symbol, act.Rule,
					"held_by_grace", true, "profit_rate", pos.ProfitRate(d.Price))
			}
		case exitSellAll:
			e.sellPosition(ctx, now, pos, h.Qty, d.Price, act.Rule)
		case exitSellPartial:
			e.sellPartial(ctx, now, pos, h, act.Qty, d.Price)
		}
	}
}

// liquidate market-sells every tracked position in the snapshot. Reports
// whether every sell it attempted was accepted.
func (e *Engine) liquidate(ctx context.Context, now time.Time, holdings map[string]types.Holding, rule string) bool {
	allSold := true
	for _, pos := range e.store.List() {
		h, held := holdings[pos.Symbol]
		if !held || h.Qty <= 0 {
			continue
		}
		if !e.sellPosition(ctx, now, pos, h.Qty, h.Price, rule) {
			allSold = false
		}
	}
	return allSold
}

func (e *Engine) sellPosition(ctx context.Context, now time.Time, pos types.Position, qty, price int64, rule string) bool {
	if qty <= 0 {
		return true
	}
	ref := uuid.NewString()
	resp, err := e.brk.SubmitOrder(ctx, types.OrderReq{
		Symbol: pos.Symbol,
		Side:   types.SideSell,
		Qty:    qty,
		Ref:    ref,
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Sell order failed", err, "symbol", pos.Symbol, "rule", rule)
		return false
	}
	if !resp.Accepted {
		logger.Warn(ctx, "Sell order rejected by venue", "symbol", pos.Symbol, "rule", rule, "message", resp.Message)
		return false
	}

	e.store.Remove(pos.Symbol)
	metrics.Orders.WithLabelValues(string(types.SideSell)).Inc()
	metrics.Exits.WithLabelValues(rule).Inc()
	logger.Trade(ctx, pos.Symbol, string(types.SideSell), qty, price, resp.OrderID, "rule", rule)

	holdMins := 0
	if !pos.EntryTime.IsZero() {
		holdMins = int(now.Sub(pos.EntryTime) / time.Minute)
	}
	if err := e.trades.Append(ctx, tradelog.Entry{
		Time:        now,
		Symbol:      pos.Symbol,
		Name:        pos.Name,
		Side:        string(types.SideSell),
		Strategy:    pos.Strategy,
		Rule:        rule,
		Qty:         qty,
		Price:       price,
		AvgBuyPrice: pos.AvgBuyPrice,
		HoldMinutes: holdMins,
		OrderRef:    ref,
		OrderID:     resp.OrderID,
	}); err != nil {
		logger.ErrorWithErr(ctx, "Trade log write failed", err, "symbol", pos.Symbol)
	}

	e.notifier.Notify(ctx, fmt.Sprintf("📤 SELL %s(%s) %d shares @ %d KRW [%s] %+.2f%%",
		pos.Name, pos.Symbol, qty, price, rule, pos.ProfitRate(price)*100))
	return true
}

func (e *Engine) sellPartial(ctx context.Context, now time.Time, pos types.Position, h types.Holding, qty, price int64) {
	ref := uuid.NewString()
	resp, err := e.brk.SubmitOrder(ctx, types.OrderReq{
		Symbol: pos.Symbol,
		Side:   types.SideSell,
		Qty:    qty,
		Ref:    ref,
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Partial sell failed", err, "symbol", pos.Symbol)
		return
	}
	if !resp.Accepted {
		logger.Warn(ctx, "Partial sell rejected by venue", "symbol", pos.Symbol, "message", resp.Message)
		return
	}

	e.store.MarkPartialSold(pos.Symbol, h.Qty-qty)
	metrics.Orders.WithLabelValues(string(types.SideSell)).Inc()
	metrics.Exits.WithLabelValues(RulePartialProfit).Inc()
	logger.Trade(ctx, pos.Symbol, string(types.SideSell), qty, price, resp.OrderID, "rule", RulePartialProfit)

	if err := e.trades.Append(ctx, tradelog.Entry{
		Time:        now,
		Symbol:      pos.Symbol,
		Name:        pos.Name,
		Side:        string(types.SideSell),
		Strategy:    pos.Strategy,
		Rule:        RulePartialProfit,
		Qty:         qty,
		Price:       price,
		AvgBuyPrice: pos.AvgBuyPrice,
		HoldMinutes: int(now.Sub(pos.EntryTime) / time.Minute),
		OrderRef:    ref,
		OrderID:     resp.OrderID,
	}); err != nil {
		logger.ErrorWithErr(ctx, "Trade log write failed", err, "symbol", pos.Symbol)
	}

	e.notifier.Notify(ctx, fmt.Sprintf("💰 Partial take-profit %s(%s): sold %d of %d @ %d KRW",
		pos.Name, pos.Symbol, qty, h.Qty, price))
}

// targetEntries runs once per day at the start of the entry window: snapshot
// equity, screen candidates and size the budget. Failures leave the day
// untargeted so the next tick retries while the window is open.
func (e *Engine) targetEntries(ctx context.Context, now time.Time) {
	e.mu.Lock()
	done := e.targeted
	e.mu.Unlock()
	if done {
		return
	}

	equity, err := e.brk.FetchEquity(ctx)
	if err != nil {
		logger.Warn(ctx, "Equity fetch failed, retrying", "error", err.Error())
		return
	}
	metrics.Equity.Set(float64(equity))

	if equity < e.cfg.Entry.MinEquity {
		logger.Warn(ctx, "Equity below entry floor, no entries today",
			"equity", equity, "floor", e.cfg.Entry.MinEquity)
		e.notifier.Notify(ctx, fmt.Sprintf("⛔ Equity %d KRW below floor %d KRW, skipping entries today",
			equity, e.cfg.Entry.MinEquity))
		e.finishTargeting(nil, Allocation{Equity: equity}, equity)
		return
	}

	picks, err := e.screener.Screen(ctx)
	if err != nil {
		logger.Warn(ctx, "Screening failed, retrying", "error", err.Error())
		return
	}

	alloc := Allocate(equity, e.cfg.Entry.AssetWeight, e.cfg.Entry.MaxStocks, e.cfg.Entry.SplitBuyCount)
	targets := FilterAffordable(picks, alloc, e.cfg.Entry.MaxStocks)
	e.finishTargeting(targets, alloc, equity)

	if len(targets) == 0 {
		logger.Info(ctx, "No entry targets today")
		e.notifier.Notify(ctx, "🔍 No entry candidates passed screening today.")
		return
	}
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, fmt.Sprintf("%s(%s) @ %d", t.Name, t.Symbol, t.Price))
	}
	logger.Info(ctx, "Entry targets selected", "count", len(targets),
		"per_stock", alloc.PerStock, "per_tranche", alloc.PerTranche)
	e.notifier.Notify(ctx, fmt.Sprintf("🎯 Targets (%d/%d tranches of %d KRW each):\n%s",
		len(targets), e.cfg.Entry.SplitBuyCount, alloc.PerTranche, strings.Join(names, "\n")))
}

func (e *Engine) finishTargeting(targets []types.Candidate, alloc Allocation, equity int64) {
	e.mu.Lock()
	e.targeted = true
	e.targets = targets
	e.alloc = alloc
	e.lastEquity = equity
	e.mu.Unlock()
}

// endDay summarizes the session, pushes the report and resets day-scoped
// state, then sleeps through to the next wake-up.
func (e *Engine) endDay(ctx context.Context) {
	now := e.clock.Now()
	logger.Info(ctx, "Session over, summarizing day")

	if path, err := eod.SummarizeDay(ctx, e.trades, now); err != nil {
		logger.ErrorWithErr(ctx, "Day summary export failed", err)
	} else if path != "" {
		logger.Info(ctx, "Day summary exported", "path", path)
	}
	if report, err := eod.RenderDay(ctx, e.trades, now); err == nil && report != "" {
		e.notifier.Notify(ctx, report)
	}

	e.store.ResetDay()
	e.scheduler.Reset()
	e.mu.Lock()
	e.targeted = false
	e.timeCutDone = false
	e.targets = nil
	e.alloc = Allocation{}
	e.mu.Unlock()

	wake := e.dayClock.NextWake(now)
	logger.Info(ctx, "Day reset, sleeping until next wake-up", "wake", wake)
	e.setPhase(PhaseAwaitingOpen)
	sleepUntil(ctx, wake)
}

// Phase returns the current day-cycle phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) setPhase(p Phase) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != p {
		e.phase = p
	}
}

func (e *Engine) entriesOn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entriesEnabled
}

func (e *Engine) timeCutSpent() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeCutDone
}

func (e *Engine) markTimeCut() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeCutDone = true
}

// PauseEntries disables new entries until ResumeEntries. Exits keep running.
func (e *Engine) PauseEntries() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entriesEnabled = false
}

// ResumeEntries re-enables new entries.
func (e *Engine) ResumeEntries() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entriesEnabled = true
}

// LiquidateAll market-sells every tracked position. Used by the manual /sell
// command; positions stay blacklisted for the day.
func (e *Engine) LiquidateAll(ctx context.Context) {
	holdings, err := e.brk.FetchHoldings(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Holdings fetch failed, manual liquidation aborted", err)
		e.notifier.Notify(ctx, "⚠️ Could not fetch holdings, liquidation aborted.")
		return
	}
	e.liquidate(ctx, e.clock.Now(), holdings, RuleManual)
}

// Status renders the control-surface snapshot.
func (e *Engine) Status() string {
	e.mu.Lock()
	phase := e.phase
	enabled := e.entriesEnabled
	equity := e.lastEquity
	e.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Phase: %s\nEntries: %v\n", phase, enabled)
	if equity > 0 {
		fmt.Fprintf(&sb, "Equity: %d KRW\n", equity)
	}
	positions := e.store.List()
	if len(positions) == 0 {
		sb.WriteString("Positions: none\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Positions (%d):\n", len(positions))
	for _, p := range positions {
		fmt.Fprintf(&sb, "  %s(%s) %d @ %.0f, peak %+.2f%%\n",
			p.Name, p.Symbol, p.Qty, p.AvgBuyPrice, p.MaxProfitRate*100)
	}
	return sb.String()
}

// Report renders today's trade table for the /report command.
func (e *Engine) Report(ctx context.Context) (string, error) {
	return eod.RenderDay(ctx, e.trades, e.clock.Now())
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func sleepUntil(ctx context.Context, at time.Time) {
	sleepCtx(ctx, time.Until(at))
}
