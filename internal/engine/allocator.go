package engine

import "jongga-bot/internal/types"

// Allocation is the per-stock and per-tranche capital budget derived from a
// fresh account equity snapshot.
type Allocation struct {
	Equity     int64
	PerStock   int64
	PerTranche int64
}

// Allocate sizes the entry budget: per_stock = floor(E*weight/maxStocks),
// per_tranche = floor(per_stock/split).
func Allocate(equity int64, weight float64, maxStocks, split int) Allocation {
	perStock := int64(float64(equity)*weight) / int64(maxStocks)
	return Allocation{
		Equity:     equity,
		PerStock:   perStock,
		PerTranche: perStock / int64(split),
	}
}

// FilterAffordable drops candidates whose price exceeds the per-tranche
// limit and backfills from the tail, preserving the screener's ranking.
// Never reorders survivors.
func FilterAffordable(candidates []types.Candidate, alloc Allocation, maxStocks int) []types.Candidate {
	picks := make([]types.Candidate, 0, maxStocks)
	for _, c := range candidates {
		if len(picks) >= maxStocks {
			break
		}
		if c.Price > alloc.PerTranche {
			continue
		}
		picks = append(picks, c)
	}
	return picks
}
