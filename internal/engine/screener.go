package engine

import (
	"context"
	"sort"
	"strings"

	"jongga-bot/internal/interfaces"
	"jongga-bot/internal/logger"
	"jongga-bot/internal/store"
	"jongga-bot/internal/types"
)

// Screener turns raw condition-search hits into a ranked, filtered list of
// buyable candidates. Each pass refetches authoritative quotes; a failed
// quote drops that one candidate, never the whole pass.
type Screener struct {
	cfg   *store.Config
	brk   interfaces.Broker
	store *Store
}

func NewScreener(cfg *store.Config, brk interfaces.Broker, st *Store) *Screener {
	return &Screener{cfg: cfg, brk: brk, store: st}
}

// excludedByName rejects instrument classes the strategy never trades:
// leveraged/inverse funds, SPACs, trusts, preferred shares, bonds and
// futures-linked products, matched by configured substrings and suffixes.
func (s *Screener) excludedByName(name string) bool {
	for _, sub := range s.cfg.Screen.NameExclude {
		if strings.Contains(name, sub) {
			return true
		}
	}
	for _, suf := range s.cfg.Screen.NameSuffix {
		if strings.HasSuffix(name, suf) {
			return true
		}
	}
	return false
}

// Screen runs the full candidate pipeline and returns up to MaxStocks
// candidates ranked by descending traded value.
func (s *Screener) Screen(ctx context.Context) ([]types.Candidate, error) {
	hits, err := s.brk.FetchConditionCandidates(ctx, s.cfg.ConditionName)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		logger.Info(ctx, "Condition search returned no hits", "condition", s.cfg.ConditionName)
		return nil, nil
	}

	var survivors []types.Candidate
	for _, hit := range hits {
		if s.excludedByName(hit.Name) {
			continue
		}
		if s.store.IsExcluded(hit.Symbol) || s.store.IsBlacklisted(hit.Symbol) {
			continue
		}

		detail, err := s.brk.FetchPriceDetail(ctx, hit.Symbol)
		if err != nil {
			// One bad quote costs one candidate, not the pass.
			continue
		}
		if keep, why := s.filter(detail); !keep {
			logger.Debug(ctx, "Candidate rejected", "symbol", hit.Symbol, "name", hit.Name, "reason", why)
			continue
		}

		survivors = append(survivors, types.Candidate{
			Symbol:      hit.Symbol,
			Name:        detail.Name,
			Price:       detail.Price,
			WickRatio:   detail.WickRatio(),
			TradedValue: detail.TradedValue(),
		})
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].TradedValue > survivors[j].TradedValue
	})
	if len(survivors) > s.cfg.Entry.MaxStocks {
		survivors = survivors[:s.cfg.Entry.MaxStocks]
	}
	return survivors, nil
}

// filter applies the quote-level predicates in order; the first failure wins.
func (s *Screener) filter(d *types.PriceDetail) (bool, string) {
	if d.Open <= 0 {
		return false, "no opening price"
	}
	if d.RateFromOpen() < s.cfg.Screen.MinRate {
		return false, "below minimum rate from open"
	}
	if d.Price <= d.Open {
		return false, "not a bullish candle"
	}
	wick := d.WickRatio()
	if wick < s.cfg.Screen.MinWick || wick > s.cfg.Screen.MaxWick {
		return false, "wick ratio outside band"
	}
	if d.UpperLimit > 0 && d.Price >= d.UpperLimit {
		return false, "locked at upper limit"
	}
	if d.ProgramNetBuy*d.Price <= 0 {
		return false, "no net program buying"
	}
	return true, ""
}
