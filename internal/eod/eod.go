// Package eod aggregates the day's trades into per-symbol summaries, exports
// a CSV under the log directory and renders a text table for the notifier.
package eod

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"jongga-bot/internal/tradelog"
)

type aggRow struct {
	Symbol      string
	Name        string
	BuyQty      int64
	BuyValue    float64
	SellQty     int64
	SellValue   float64
	RealizedPnL float64
}

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func eodCSVPath(t time.Time) string {
	return filepath.Join(logDir(), "eod", t.Format("2006-01-02")+".csv")
}

func aggregate(trades []tradelog.Entry) []*aggRow {
	aggs := map[string]*aggRow{}
	for _, tr := range trades {
		row := aggs[tr.Symbol]
		if row == nil {
			row = &aggRow{Symbol: tr.Symbol, Name: tr.Name}
			aggs[tr.Symbol] = row
		}
		switch tr.Side {
		case "BUY":
			row.BuyQty += tr.Qty
			row.BuyValue += float64(tr.Qty) * float64(tr.Price)
		case "SELL":
			row.SellQty += tr.Qty
			row.SellValue += float64(tr.Qty) * float64(tr.Price)
		}
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]*aggRow, 0, len(keys))
	for _, k := range keys {
		r := aggs[k]
		var buyAvg, sellAvg float64
		if r.BuyQty > 0 {
			buyAvg = r.BuyValue / float64(r.BuyQty)
		}
		if r.SellQty > 0 {
			sellAvg = r.SellValue / float64(r.SellQty)
		}
		matched := r.BuyQty
		if r.SellQty < matched {
			matched = r.SellQty
		}
		r.RealizedPnL = float64(matched) * (sellAvg - buyAvg)
		rows = append(rows, r)
	}
	return rows
}

// SummarizeDay writes the CSV summary for the given day and returns its path.
// Returns an empty path when the day had no trades.
func SummarizeDay(ctx context.Context, store *tradelog.Store, day time.Time) (string, error) {
	trades, err := store.DayTrades(ctx, day)
	if err != nil {
		return "", err
	}
	rows := aggregate(trades)
	if len(rows) == 0 {
		return "", nil
	}

	outPath := eodCSVPath(day)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	defer w.Flush()
	headers := []string{"symbol", "name", "buy_qty", "buy_avg", "sell_qty", "sell_avg", "realized_pnl"}
	if err := w.Write(headers); err != nil {
		return "", err
	}
	for _, r := range rows {
		var buyAvg, sellAvg float64
		if r.BuyQty > 0 {
			buyAvg = r.BuyValue / float64(r.BuyQty)
		}
		if r.SellQty > 0 {
			sellAvg = r.SellValue / float64(r.SellQty)
		}
		rec := []string{
			r.Symbol, r.Name,
			strconv.FormatInt(r.BuyQty, 10), fmt.Sprintf("%.2f", buyAvg),
			strconv.FormatInt(r.SellQty, 10), fmt.Sprintf("%.2f", sellAvg),
			fmt.Sprintf("%.0f", r.RealizedPnL),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	return outPath, nil
}

// RenderDay returns a monospace table of the day's trades for the notifier.
// Empty string when nothing traded.
func RenderDay(ctx context.Context, store *tradelog.Store, day time.Time) (string, error) {
	trades, err := store.DayTrades(ctx, day)
	if err != nil {
		return "", err
	}
	if len(trades) == 0 {
		return "", nil
	}

	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.Header("Time", "Symbol", "Side", "Qty", "Price", "Rule")
	for _, tr := range trades {
		table.Append(
			tr.Time.Format("15:04:05"),
			tr.Symbol,
			tr.Side,
			strconv.FormatInt(tr.Qty, 10),
			strconv.FormatInt(tr.Price, 10),
			tr.Rule,
		)
	}
	table.Render()

	var totalPnL float64
	for _, r := range aggregate(trades) {
		totalPnL += r.RealizedPnL
	}
	fmt.Fprintf(&sb, "Realized PnL: %+.0f KRW\n", totalPnL)
	return sb.String(), nil
}
