// Package tradelog persists executed trades to a local SQLite database.
// The table is append-only; day-scoped queries feed the /report command and
// the end-of-day summary.
package tradelog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    traded_at    DATETIME NOT NULL,
    trade_day    TEXT     NOT NULL,
    symbol       TEXT     NOT NULL,
    name         TEXT     NOT NULL DEFAULT '',
    side         TEXT     NOT NULL,
    strategy     TEXT     NOT NULL DEFAULT '',
    rule         TEXT     NOT NULL DEFAULT '',
    qty          INTEGER  NOT NULL,
    price        INTEGER  NOT NULL,
    avg_buy      REAL     NOT NULL DEFAULT 0,
    hold_minutes INTEGER  NOT NULL DEFAULT 0,
    order_ref    TEXT     NOT NULL DEFAULT '',
    order_id     TEXT     NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_trades_day    ON trades(trade_day);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
`

// Entry is one executed trade.
type Entry struct {
	Time        time.Time
	Symbol      string
	Name        string
	Side        string // BUY or SELL
	Strategy    string
	Rule        string // exit rule, or tranche tag for buys
	Qty         int64
	Price       int64
	AvgBuyPrice float64 // cost basis at the time of a sell
	HoldMinutes int
	OrderRef    string
	OrderID     string
}

// Store is a SQLite-backed trade log.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the database at the given path and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open trade db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply trade schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append writes one trade row. The trade day is derived from the entry time
// so day queries stay cheap.
func (s *Store) Append(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (traded_at, trade_day, symbol, name, side, strategy, rule,
		                    qty, price, avg_buy, hold_minutes, order_ref, order_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Time, e.Time.Format("2006-01-02"), e.Symbol, e.Name, e.Side, e.Strategy,
		e.Rule, e.Qty, e.Price, e.AvgBuyPrice, e.HoldMinutes, e.OrderRef, e.OrderID)
	if err != nil {
		return fmt.Errorf("append trade: %w", err)
	}
	return nil
}

// DayTrades returns all trades recorded on the given day, oldest first.
func (s *Store) DayTrades(ctx context.Context, day time.Time) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT traded_at, symbol, name, side, strategy, rule, qty, price,
		       avg_buy, hold_minutes, order_ref, order_id
		FROM trades WHERE trade_day = ? ORDER BY traded_at ASC`,
		day.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("query day trades: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Time, &e.Symbol, &e.Name, &e.Side, &e.Strategy, &e.Rule,
			&e.Qty, &e.Price, &e.AvgBuyPrice, &e.HoldMinutes, &e.OrderRef, &e.OrderID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
