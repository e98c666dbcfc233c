// Package brokerobs wraps a Broker with logging and tracing middleware so the
// client itself stays free of observability concerns.
package brokerobs

import (
	"context"
	"time"

	"jongga-bot/internal/interfaces"
	"jongga-bot/internal/logger"
	"jongga-bot/internal/trace"
	"jongga-bot/internal/types"
)

type observableBroker struct {
	broker interfaces.Broker
}

var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware.
func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{broker: broker}
}

func (ob *observableBroker) CheckHoliday(ctx context.Context, date time.Time) (bool, error) {
	ctx, span := trace.StartSpan(ctx, "broker.CheckHoliday")
	defer span.End()

	closed, err := ob.broker.CheckHoliday(ctx, date)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Holiday check failed", err, "date", date.Format("2006-01-02"))
		return false, err
	}
	logger.DebugSkip(ctx, 1, "Holiday check completed", "date", date.Format("2006-01-02"), "closed", closed)
	return closed, nil
}

func (ob *observableBroker) FetchEquity(ctx context.Context) (int64, error) {
	ctx, span := trace.StartSpan(ctx, "broker.FetchEquity")
	defer span.End()

	equity, err := ob.broker.FetchEquity(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch account equity", err)
		return 0, err
	}
	logger.DebugSkip(ctx, 1, "Account equity fetched", "equity", equity)
	return equity, nil
}

func (ob *observableBroker) FetchHoldings(ctx context.Context) (map[string]types.Holding, error) {
	ctx, span := trace.StartSpan(ctx, "broker.FetchHoldings")
	defer span.End()

	holdings, err := ob.broker.FetchHoldings(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch holdings", err)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Holdings fetched", "count", len(holdings))
	return holdings, nil
}

func (ob *observableBroker) FetchConditionCandidates(ctx context.Context, name string) ([]types.RawCandidate, error) {
	ctx, span := trace.StartSpan(ctx, "broker.FetchConditionCandidates")
	defer span.End()

	hits, err := ob.broker.FetchConditionCandidates(ctx, name)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Condition search failed", err, "condition", name)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Condition search completed", "condition", name, "hits", len(hits))
	return hits, nil
}

func (ob *observableBroker) FetchPriceDetail(ctx context.Context, symbol string) (*types.PriceDetail, error) {
	ctx, span := trace.StartSpan(ctx, "broker.FetchPriceDetail")
	defer span.End()

	detail, err := ob.broker.FetchPriceDetail(ctx, symbol)
	if err != nil {
		logger.DebugSkip(ctx, 1, "Price detail unavailable this tick", "symbol", symbol, "error", err)
		return nil, err
	}
	return detail, nil
}

func (ob *observableBroker) SubmitOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	ctx, span := trace.StartSpan(ctx, "broker.SubmitOrder")
	defer span.End()

	resp, err := ob.broker.SubmitOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Order submission failed", err,
			"symbol", req.Symbol, "side", string(req.Side), "qty", req.Qty, "price", req.Price)
		return resp, err
	}
	if !resp.Accepted {
		logger.DebugSkip(ctx, 1, "Order rejected by venue",
			"symbol", req.Symbol, "side", string(req.Side), "qty", req.Qty, "message", resp.Message)
	}
	return resp, nil
}
