package interfaces

import (
	"context"
	"time"

	"jongga-bot/internal/types"
)

// Broker is the brokerage access seam. Implementations must be safe for
// concurrent use; every method is a single bounded network round trip.
type Broker interface {
	// CheckHoliday reports whether the market is closed on the given date.
	CheckHoliday(ctx context.Context, date time.Time) (bool, error)
	// FetchEquity returns the account's net asset value in KRW.
	// Zero means the snapshot is unusable.
	FetchEquity(ctx context.Context) (int64, error)
	// FetchHoldings returns the authoritative holdings keyed by symbol.
	// An error means the fetch failed and must not be read as "no holdings".
	FetchHoldings(ctx context.Context) (map[string]types.Holding, error)
	// FetchConditionCandidates runs the named condition search.
	// An empty result is not an error.
	FetchConditionCandidates(ctx context.Context, name string) ([]types.RawCandidate, error)
	// FetchPriceDetail returns the current quote for one symbol. An error
	// means the symbol is unavailable this tick.
	FetchPriceDetail(ctx context.Context, symbol string) (*types.PriceDetail, error)
	// SubmitOrder places a cash order. Transport failures surface as err;
	// venue rejections come back in the response with Accepted=false.
	SubmitOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error)
}
