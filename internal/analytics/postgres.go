package analytics

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresHistory persists the history series in Postgres via pgx.
type PostgresHistory struct {
	pool *pgxpool.Pool
}

// NewPostgresHistory constructs a HistoryStore backed by the provided pool.
func NewPostgresHistory(pool *pgxpool.Pool) *PostgresHistory {
	return &PostgresHistory{pool: pool}
}

func (p *PostgresHistory) ensurePool() (*pgxpool.Pool, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("history store: nil pool")
	}
	return p.pool, nil
}

// UpsertDaily records or replaces a session result keyed by calendar date.
func (p *PostgresHistory) UpsertDaily(ctx context.Context, day DailyPnL) error {
	pool, err := p.ensurePool()
	if err != nil {
		return err
	}
	const stmt = `
INSERT INTO daily_pnl (day, pnl)
VALUES ($1, $2)
ON CONFLICT (day) DO UPDATE SET pnl = EXCLUDED.pnl`
	if _, err := pool.Exec(ctx, stmt, day.Date.UTC(), day.PnL.String()); err != nil {
		return fmt.Errorf("history store: upsert daily pnl: %w", err)
	}
	return nil
}

// Series returns the trailing window of daily results, oldest first.
func (p *PostgresHistory) Series(ctx context.Context, window int) ([]DailyPnL, error) {
	pool, err := p.ensurePool()
	if err != nil {
		return nil, err
	}
	if window <= 0 {
		window = defaultSeriesWindow
	}
	const stmt = `
SELECT day, pnl::text
FROM daily_pnl
ORDER BY day DESC
LIMIT $1`
	rows, err := pool.Query(ctx, stmt, window)
	if err != nil {
		return nil, fmt.Errorf("history store: select series: %w", err)
	}
	defer rows.Close()

	var out []DailyPnL
	for rows.Next() {
		var day DailyPnL
		var raw string
		if err := rows.Scan(&day.Date, &raw); err != nil {
			return nil, fmt.Errorf("history store: scan series row: %w", err)
		}
		pnl, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("history store: parse pnl %q: %w", raw, err)
		}
		day.PnL = pnl
		out = append(out, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history store: iterate series: %w", err)
	}
	// Rows arrive newest first; callers expect oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// RecordTrade appends a completed trade.
func (p *PostgresHistory) RecordTrade(ctx context.Context, trade CompletedTrade) error {
	pool, err := p.ensurePool()
	if err != nil {
		return err
	}
	const stmt = `
INSERT INTO completed_trades (strategy_id, strategy_type, pnl, closed_at)
VALUES ($1, $2, $3, $4)`
	_, err = pool.Exec(ctx, stmt,
		trade.StrategyID.String(), string(trade.Type), trade.PnL.String(), trade.ClosedAt.UTC())
	if err != nil {
		return fmt.Errorf("history store: insert completed trade: %w", err)
	}
	return nil
}

// TradeCounts reports winners and total completed trades.
func (p *PostgresHistory) TradeCounts(ctx context.Context) (int, int, error) {
	pool, err := p.ensurePool()
	if err != nil {
		return 0, 0, err
	}
	const stmt = `
SELECT COUNT(*) FILTER (WHERE pnl > 0), COUNT(*)
FROM completed_trades`
	var wins, completed int
	if err := pool.QueryRow(ctx, stmt).Scan(&wins, &completed); err != nil {
		return 0, 0, fmt.Errorf("history store: count trades: %w", err)
	}
	return wins, completed, nil
}

const defaultSeriesWindow = 365

var _ HistoryStore = (*PostgresHistory)(nil)
var _ HistoryStore = (*MemoryHistory)(nil)
