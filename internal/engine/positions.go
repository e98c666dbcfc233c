package engine

import (
	"sort"
	"sync"
	"time"

	"jongga-bot/internal/types"
)

// Store is the single authoritative mapping of owned symbols to position
// state, plus the day-scoped tranche progress and re-entry blacklist. All
// access is serialized through one mutex; no method performs network I/O, so
// the lock is never held across a round trip. Reads hand out copies.
type Store struct {
	mu        sync.Mutex
	positions map[string]*types.Position
	progress  map[string]int
	blacklist map[string]struct{}
	exclude   map[string]struct{}
}

// NewStore creates an empty store. Symbols in exclude are never adopted or
// touched by the bot (long-term manual holdings sharing the account).
func NewStore(exclude []string) *Store {
	ex := make(map[string]struct{}, len(exclude))
	for _, s := range exclude {
		ex[s] = struct{}{}
	}
	return &Store{
		positions: make(map[string]*types.Position),
		progress:  make(map[string]int),
		blacklist: make(map[string]struct{}),
		exclude:   ex,
	}
}

// Get returns a copy of the position for symbol.
func (s *Store) Get(symbol string) (types.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[symbol]
	if !ok {
		return types.Position{}, false
	}
	return *p, true
}

// List returns copies of all open positions, sorted by symbol.
func (s *Store) List() []types.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Count returns the number of open positions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}

// Adopt registers a broker-reported holding the bot is not yet tracking.
// Excluded, blacklisted and already-tracked symbols are ignored; returns
// whether a position was created.
func (s *Store) Adopt(h types.Holding, now time.Time, strategy string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.Qty <= 0 {
		return false
	}
	if _, off := s.exclude[h.Symbol]; off {
		return false
	}
	if _, banned := s.blacklist[h.Symbol]; banned {
		return false
	}
	if _, tracked := s.positions[h.Symbol]; tracked {
		return false
	}
	s.positions[h.Symbol] = &types.Position{
		Symbol:      h.Symbol,
		Name:        h.Name,
		Qty:         h.Qty,
		AvgBuyPrice: h.AvgPrice,
		EntryTime:   now,
		Strategy:    strategy,
	}
	return true
}

// Resync overwrites quantity and cost basis with broker-reported values.
// A zero quantity removes the position and blacklists the symbol. Returns
// whether the symbol is still tracked afterwards.
func (s *Store) Resync(symbol string, qty int64, avgPrice float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[symbol]
	if !ok {
		return false
	}
	if qty <= 0 {
		delete(s.positions, symbol)
		s.blacklist[symbol] = struct{}{}
		return false
	}
	p.Qty = qty
	p.AvgBuyPrice = avgPrice
	return true
}

// Remove drops the position and blacklists the symbol for the day.
// Returns the removed position.
func (s *Store) Remove(symbol string) (types.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[symbol]
	if !ok {
		return types.Position{}, false
	}
	delete(s.positions, symbol)
	s.blacklist[symbol] = struct{}{}
	return *p, true
}

// RaiseHighWater lifts the position's max profit rate to rate if higher and
// returns the current high-water mark. The mark never decreases.
func (s *Store) RaiseHighWater(symbol string, rate float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[symbol]
	if !ok {
		return 0
	}
	if rate > p.MaxProfitRate {
		p.MaxProfitRate = rate
	}
	return p.MaxProfitRate
}

// MarkPartialSold flags the position's one-shot partial take-profit as spent
// and records the post-sale quantity.
func (s *Store) MarkPartialSold(symbol string, remainingQty int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[symbol]
	if !ok {
		return
	}
	p.HasPartialSold = true
	p.Qty = remainingQty
}

// Blacklist bans the symbol from new entries for the rest of the day.
func (s *Store) Blacklist(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[symbol] = struct{}{}
}

// IsBlacklisted reports whether symbol was banned today.
func (s *Store) IsBlacklisted(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, banned := s.blacklist[symbol]
	return banned
}

// IsExcluded reports whether symbol is permanently off-limits.
func (s *Store) IsExcluded(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, off := s.exclude[symbol]
	return off
}

// Progress returns the number of entry tranches already executed for symbol.
func (s *Store) Progress(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress[symbol]
}

// AdvanceTranche moves the symbol's tranche progress forward by one, capped
// at max. Returns false when the cap is already reached.
func (s *Store) AdvanceTranche(symbol string, max int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.progress[symbol] >= max {
		return false
	}
	s.progress[symbol]++
	return true
}

// ResetDay clears all day-scoped state for the next session. Positions still
// held at the broker are re-adopted by the next reconciliation pass.
func (s *Store) ResetDay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = make(map[string]*types.Position)
	s.progress = make(map[string]int)
	s.blacklist = make(map[string]struct{})
}
