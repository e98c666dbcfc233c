package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jongga-bot/internal/types"
)

// goodQuote is a candle that passes every screen predicate: +10% from open,
// small upper wick, net program buying, off the limit.
func goodQuote(symbol string, volume int64) *types.PriceDetail {
	return &types.PriceDetail{
		Symbol:        symbol,
		Name:          "N-" + symbol,
		Price:         11000,
		Open:          10000,
		High:          11100,
		Low:           9900,
		UpperLimit:    13000,
		AccumVolume:   volume,
		ProgramNetBuy: 1000,
	}
}

func hit(symbol, name string) types.RawCandidate {
	return types.RawCandidate{Symbol: symbol, Name: name}
}

func newTestScreener(brk *mockBroker, exclude []string) (*Screener, *Store) {
	st := NewStore(exclude)
	return NewScreener(testConfig(), brk, st), st
}

func TestScreenRanksByTradedValue(t *testing.T) {
	brk := &mockBroker{
		candidates: []types.RawCandidate{hit("A", "AlphaCo"), hit("B", "BetaCo"), hit("C", "GammaCo")},
		details: map[string]*types.PriceDetail{
			"A": goodQuote("A", 1000),
			"B": goodQuote("B", 9000),
			"C": goodQuote("C", 5000),
		},
	}
	s, _ := newTestScreener(brk, nil)

	picks, err := s.Screen(context.Background())
	require.NoError(t, err)
	require.Len(t, picks, 3)
	assert.Equal(t, "B", picks[0].Symbol)
	assert.Equal(t, "C", picks[1].Symbol)
	assert.Equal(t, "A", picks[2].Symbol)
}

func TestScreenCapsAtMaxStocks(t *testing.T) {
	brk := &mockBroker{
		candidates: []types.RawCandidate{hit("A", "a"), hit("B", "b"), hit("C", "c"), hit("D", "d")},
		details: map[string]*types.PriceDetail{
			"A": goodQuote("A", 4000),
			"B": goodQuote("B", 3000),
			"C": goodQuote("C", 2000),
			"D": goodQuote("D", 1000),
		},
	}
	s, _ := newTestScreener(brk, nil)

	picks, err := s.Screen(context.Background())
	require.NoError(t, err)
	assert.Len(t, picks, 3)
}

func TestScreenNameFilters(t *testing.T) {
	cfg := testConfig()
	cfg.Screen.NameExclude = []string{"스팩", "ETF"}
	cfg.Screen.NameSuffix = []string{"우"}
	brk := &mockBroker{
		candidates: []types.RawCandidate{
			hit("A", "하나스팩12호"),
			hit("B", "KODEX ETF"),
			hit("C", "삼성전자우"),
			hit("D", "우리금융"), // leading 우 is not a suffix match
		},
		details: map[string]*types.PriceDetail{"D": goodQuote("D", 1000)},
	}
	st := NewStore(nil)
	s := NewScreener(cfg, brk, st)

	picks, err := s.Screen(context.Background())
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, "D", picks[0].Symbol)
}

func TestScreenSkipsExcludedAndBlacklisted(t *testing.T) {
	brk := &mockBroker{
		candidates: []types.RawCandidate{hit("A", "a"), hit("B", "b"), hit("C", "c")},
		details: map[string]*types.PriceDetail{
			"A": goodQuote("A", 1000),
			"B": goodQuote("B", 1000),
			"C": goodQuote("C", 1000),
		},
	}
	s, st := newTestScreener(brk, []string{"A"})
	st.Blacklist("B")

	picks, err := s.Screen(context.Background())
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, "C", picks[0].Symbol)
}

func TestScreenQuoteFailureDropsOneCandidate(t *testing.T) {
	brk := &mockBroker{
		candidates: []types.RawCandidate{hit("A", "a"), hit("B", "b")},
		details:    map[string]*types.PriceDetail{"B": goodQuote("B", 1000)},
	}
	s, _ := newTestScreener(brk, nil)

	picks, err := s.Screen(context.Background())
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, "B", picks[0].Symbol)
}

func TestScreenFilterPredicates(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*types.PriceDetail)
	}{
		{"no open", func(d *types.PriceDetail) { d.Open = 0 }},
		{"below min rate", func(d *types.PriceDetail) { d.Price = 10400 }}, // +4%
		{"bearish candle", func(d *types.PriceDetail) { d.Price = 9500; d.Low = 9400 }},
		{"wick too long", func(d *types.PriceDetail) { d.High = 11500 }}, // wick 0.33
		{"locked at upper limit", func(d *types.PriceDetail) { d.UpperLimit = 11000 }},
		{"program net selling", func(d *types.PriceDetail) { d.ProgramNetBuy = -500 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := goodQuote("A", 1000)
			tc.mutate(d)
			brk := &mockBroker{
				candidates: []types.RawCandidate{hit("A", "a")},
				details:    map[string]*types.PriceDetail{"A": d},
			}
			s, _ := newTestScreener(brk, nil)

			picks, err := s.Screen(context.Background())
			require.NoError(t, err)
			assert.Empty(t, picks)
		})
	}
}

func TestScreenWickBoundary(t *testing.T) {
	// open 10000, price 11000, high 11250: wick = 250/1250 = 0.2, in band.
	d := goodQuote("A", 1000)
	d.High = 11250
	brk := &mockBroker{
		candidates: []types.RawCandidate{hit("A", "a")},
		details:    map[string]*types.PriceDetail{"A": d},
	}
	s, _ := newTestScreener(brk, nil)

	picks, err := s.Screen(context.Background())
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.InDelta(t, 0.2, picks[0].WickRatio, 1e-9)
}
