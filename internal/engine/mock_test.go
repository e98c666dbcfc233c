package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"jongga-bot/internal/store"
	"jongga-bot/internal/types"
)

// mockBroker is a scriptable in-memory venue for engine tests.
type mockBroker struct {
	mu sync.Mutex

	holiday     bool
	holidayErr  error
	equity      int64
	equityErr   error
	holdings    map[string]types.Holding
	holdingsErr error
	candidates  []types.RawCandidate
	candErr     error
	details     map[string]*types.PriceDetail

	rejectOrders bool
	rejectMsg    string
	orderErr     error
	orders       []types.OrderReq
}

func (m *mockBroker) CheckHoliday(ctx context.Context, date time.Time) (bool, error) {
	return m.holiday, m.holidayErr
}

func (m *mockBroker) FetchEquity(ctx context.Context) (int64, error) {
	return m.equity, m.equityErr
}

func (m *mockBroker) FetchHoldings(ctx context.Context) (map[string]types.Holding, error) {
	if m.holdingsErr != nil {
		return nil, m.holdingsErr
	}
	out := make(map[string]types.Holding, len(m.holdings))
	for k, v := range m.holdings {
		out[k] = v
	}
	return out, nil
}

func (m *mockBroker) FetchConditionCandidates(ctx context.Context, name string) ([]types.RawCandidate, error) {
	return m.candidates, m.candErr
}

func (m *mockBroker) FetchPriceDetail(ctx context.Context, symbol string) (*types.PriceDetail, error) {
	d, ok := m.details[symbol]
	if !ok {
		return nil, errors.New("no quote")
	}
	cp := *d
	return &cp, nil
}

func (m *mockBroker) SubmitOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	if m.orderErr != nil {
		return types.OrderResp{}, m.orderErr
	}
	m.mu.Lock()
	m.orders = append(m.orders, req)
	m.mu.Unlock()
	if m.rejectOrders {
		msg := m.rejectMsg
		if msg == "" {
			msg = "order rejected"
		}
		return types.OrderResp{Accepted: false, Message: msg}, nil
	}
	return types.OrderResp{OrderID: "ODR-1", Accepted: true}, nil
}

func (m *mockBroker) submitted() []types.OrderReq {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.OrderReq, len(m.orders))
	copy(out, m.orders)
	return out
}

type mockNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockNotifier) Notify(ctx context.Context, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, text)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// kst builds an instant on a fixed weekday in the exchange timezone.
func kst(hour, min, sec int) time.Time {
	return time.Date(2025, 11, 17, hour, min, sec, 0, KST) // a Monday
}

func testConfig() *store.Config {
	cfg := &store.Config{Mode: "MOCK", ConditionName: "jongga"}
	cfg.Entry.MaxStocks = 3
	cfg.Entry.SplitBuyCount = 4
	cfg.Entry.AssetWeight = 0.7
	cfg.Screen.MinRate = 5.0
	cfg.Screen.MinWick = 0.0
	cfg.Screen.MaxWick = 0.3
	cfg.Exit.StopLossRate = -0.02
	cfg.Exit.GapDownPanicRate = -0.02
	cfg.Exit.PartialProfitRate = 0.01
	cfg.Exit.PartialSellRatio = 0.5
	cfg.Exit.TrailingTriggerRate = 0.02
	cfg.Exit.TrailingStopGap = 0.01
	cfg.Exit.GraceMinutes = 3
	cfg.Session.OpenHour = 9
	cfg.Session.TimeCutHour = 10
	cfg.Session.EntryHour = 15
	cfg.Session.EntryMinute = 10
	cfg.Session.EntryWindowMins = 10
	cfg.Session.CloseHour = 15
	cfg.Session.CloseMinute = 35
	cfg.Session.WakeHour = 8
	cfg.Session.WakeMinute = 50
	return cfg
}
