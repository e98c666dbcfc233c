package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jongga-bot/internal/tradelog"
	"jongga-bot/internal/types"
)

func newTestScheduler(t *testing.T, brk *mockBroker) (*Scheduler, *Store, *mockNotifier, *tradelog.Store) {
	t.Helper()
	trades, err := tradelog.Open(filepath.Join(t.TempDir(), "trades.db"))
	require.NoError(t, err)
	t.Cleanup(func() { trades.Close() })

	cfg := testConfig()
	st := NewStore(nil)
	n := &mockNotifier{}
	return NewScheduler(cfg, brk, st, n, trades, NewDayClock(cfg)), st, n, trades
}

func askQuote(symbol string, ask int64) *types.PriceDetail {
	return &types.PriceDetail{Symbol: symbol, Price: ask, BestAsk: ask, Open: ask, High: ask}
}

func target(symbol string, price int64) types.Candidate {
	return types.Candidate{Symbol: symbol, Name: "N-" + symbol, Price: price}
}

func TestSchedulerBuysOneTranchePerSlot(t *testing.T) {
	brk := &mockBroker{details: map[string]*types.PriceDetail{"A": askQuote("A", 10000)}}
	s, st, n, _ := newTestScheduler(t, brk)
	alloc := Allocation{PerStock: 2_000_000, PerTranche: 500_000}

	// First slot fills, the second call in the same slot is a no-op.
	s.Tick(context.Background(), kst(15, 10, 5), []types.Candidate{target("A", 10000)}, alloc)
	s.Tick(context.Background(), kst(15, 10, 30), []types.Candidate{target("A", 10000)}, alloc)

	orders := brk.submitted()
	require.Len(t, orders, 1)
	assert.Equal(t, types.SideBuy, orders[0].Side)
	assert.Equal(t, int64(50), orders[0].Qty, "500000 budget at ask 10000")
	assert.Equal(t, int64(10000), orders[0].Price, "limit at best ask")
	assert.Equal(t, 1, st.Progress("A"))
	assert.NotEmpty(t, n.messages)

	// Next minute opens the next slot.
	s.Tick(context.Background(), kst(15, 11, 5), []types.Candidate{target("A", 10000)}, alloc)
	assert.Len(t, brk.submitted(), 2)
	assert.Equal(t, 2, st.Progress("A"))
}

func TestSchedulerMissedSlotIsSkippedNotReplayed(t *testing.T) {
	brk := &mockBroker{details: map[string]*types.PriceDetail{"A": askQuote("A", 10000)}}
	s, st, _, _ := newTestScheduler(t, brk)
	alloc := Allocation{PerTranche: 500_000}

	// First tick arrives in slot 2; only one order goes out.
	s.Tick(context.Background(), kst(15, 12, 5), []types.Candidate{target("A", 10000)}, alloc)

	assert.Len(t, brk.submitted(), 1)
	assert.Equal(t, 1, st.Progress("A"))
}

func TestSchedulerOutsideWindow(t *testing.T) {
	brk := &mockBroker{details: map[string]*types.PriceDetail{"A": askQuote("A", 10000)}}
	s, _, _, _ := newTestScheduler(t, brk)
	alloc := Allocation{PerTranche: 500_000}
	targets := []types.Candidate{target("A", 10000)}

	s.Tick(context.Background(), kst(15, 9, 0), targets, alloc)
	s.Tick(context.Background(), kst(15, 20, 0), targets, alloc)

	assert.Empty(t, brk.submitted())
}

func TestSchedulerFinalSecondsGuard(t *testing.T) {
	brk := &mockBroker{details: map[string]*types.PriceDetail{"A": askQuote("A", 10000)}}
	s, _, _, _ := newTestScheduler(t, brk)
	alloc := Allocation{PerTranche: 500_000}

	s.Tick(context.Background(), kst(15, 19, 55), []types.Candidate{target("A", 10000)}, alloc)

	assert.Empty(t, brk.submitted(), "no orders in the last seconds of the window")
}

func TestSchedulerGuardsEverySlotBoundary(t *testing.T) {
	brk := &mockBroker{details: map[string]*types.PriceDetail{"A": askQuote("A", 10000)}}
	s, st, _, _ := newTestScheduler(t, brk)
	alloc := Allocation{PerTranche: 500_000}
	targets := []types.Candidate{target("A", 10000)}

	// Mid-window slot, final seconds: blocked so the fill cannot race the
	// next tranche index.
	s.Tick(context.Background(), kst(15, 12, 50), targets, alloc)
	s.Tick(context.Background(), kst(15, 12, 59), targets, alloc)
	assert.Empty(t, brk.submitted())
	assert.Equal(t, 0, st.Progress("A"))

	// One second earlier in the same slot is fine.
	s.Tick(context.Background(), kst(15, 12, 49), targets, alloc)
	assert.Len(t, brk.submitted(), 1)
	assert.Equal(t, 1, st.Progress("A"))
}

func TestSchedulerRejectionDoesNotAdvance(t *testing.T) {
	brk := &mockBroker{
		details:      map[string]*types.PriceDetail{"A": askQuote("A", 10000)},
		rejectOrders: true,
	}
	s, st, _, _ := newTestScheduler(t, brk)
	alloc := Allocation{PerTranche: 500_000}

	s.Tick(context.Background(), kst(15, 10, 5), []types.Candidate{target("A", 10000)}, alloc)

	assert.Len(t, brk.submitted(), 1)
	assert.Equal(t, 0, st.Progress("A"), "venue rejection must not advance progress")
}

func TestSchedulerInsufficientFundsHaltsDay(t *testing.T) {
	brk := &mockBroker{
		details:      map[string]*types.PriceDetail{"A": askQuote("A", 10000)},
		rejectOrders: true,
		rejectMsg:    "모의투자 주문가능금액이 부족합니다",
	}
	s, _, n, _ := newTestScheduler(t, brk)
	alloc := Allocation{PerTranche: 500_000}
	targets := []types.Candidate{target("A", 10000)}

	s.Tick(context.Background(), kst(15, 10, 5), targets, alloc)
	require.True(t, s.Halted())
	assert.NotEmpty(t, n.messages)

	// Later slots submit nothing.
	s.Tick(context.Background(), kst(15, 12, 5), targets, alloc)
	assert.Len(t, brk.submitted(), 1)

	s.Reset()
	assert.False(t, s.Halted())
}

func TestSchedulerSkipsBlacklisted(t *testing.T) {
	brk := &mockBroker{details: map[string]*types.PriceDetail{"A": askQuote("A", 10000)}}
	s, st, _, _ := newTestScheduler(t, brk)
	st.Blacklist("A")
	alloc := Allocation{PerTranche: 500_000}

	s.Tick(context.Background(), kst(15, 10, 5), []types.Candidate{target("A", 10000)}, alloc)

	assert.Empty(t, brk.submitted())
}

func TestSchedulerBudgetBelowOneShare(t *testing.T) {
	brk := &mockBroker{details: map[string]*types.PriceDetail{"A": askQuote("A", 600_000)}}
	s, st, _, _ := newTestScheduler(t, brk)
	alloc := Allocation{PerTranche: 500_000}

	s.Tick(context.Background(), kst(15, 10, 5), []types.Candidate{target("A", 600_000)}, alloc)

	assert.Empty(t, brk.submitted())
	assert.Equal(t, 0, st.Progress("A"))
}

func TestSchedulerQuoteFailureSkipsSymbol(t *testing.T) {
	brk := &mockBroker{details: map[string]*types.PriceDetail{"B": askQuote("B", 10000)}}
	s, _, _, _ := newTestScheduler(t, brk)
	alloc := Allocation{PerTranche: 500_000}

	s.Tick(context.Background(), kst(15, 10, 5),
		[]types.Candidate{target("A", 10000), target("B", 10000)}, alloc)

	orders := brk.submitted()
	require.Len(t, orders, 1)
	assert.Equal(t, "B", orders[0].Symbol)
}

func TestSchedulerRecordsTrade(t *testing.T) {
	brk := &mockBroker{details: map[string]*types.PriceDetail{"A": askQuote("A", 10000)}}
	s, _, _, trades := newTestScheduler(t, brk)
	alloc := Allocation{PerTranche: 500_000}
	now := kst(15, 10, 5)

	s.Tick(context.Background(), now, []types.Candidate{target("A", 10000)}, alloc)

	rows, err := trades.DayTrades(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "BUY", rows[0].Side)
	assert.Equal(t, "tranche_1", rows[0].Rule)
	assert.Equal(t, int64(50), rows[0].Qty)
	assert.NotEmpty(t, rows[0].OrderRef)
}
