package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfadesk/riskcore/internal/schema"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("parse day %q: %v", value, err)
	}
	return parsed
}

func TestMemoryHistoryUpsertReplacesSameDay(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistory()

	d := day(t, "2026-08-27")
	if err := store.UpsertDaily(ctx, DailyPnL{Date: d, PnL: decimal.NewFromInt(100)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.UpsertDaily(ctx, DailyPnL{Date: d, PnL: decimal.NewFromInt(-40)}); err != nil {
		t.Fatalf("upsert replace: %v", err)
	}

	got, err := store.Series(ctx, 0)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("series length = %d, want 1", len(got))
	}
	if want := decimal.NewFromInt(-40); !got[0].PnL.Equal(want) {
		t.Fatalf("pnl = %s, want %s", got[0].PnL, want)
	}
}

func TestMemoryHistorySeriesOldestFirstWindowed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistory()

	days := []string{"2026-08-25", "2026-08-27", "2026-08-26"}
	for i, d := range days {
		err := store.UpsertDaily(ctx, DailyPnL{Date: day(t, d), PnL: decimal.NewFromInt(int64(i + 1))})
		if err != nil {
			t.Fatalf("upsert %s: %v", d, err)
		}
	}

	got, err := store.Series(ctx, 2)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("series length = %d, want 2", len(got))
	}
	if !got[0].Date.Before(got[1].Date) {
		t.Fatalf("series not oldest first: %v then %v", got[0].Date, got[1].Date)
	}
	if got[0].Date.Format("2006-01-02") != "2026-08-26" {
		t.Fatalf("window kept %s, want trailing days", got[0].Date.Format("2006-01-02"))
	}
}

func TestMemoryHistoryTradeCounts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistory()

	results := []int64{250, -80, 120, 0}
	for _, pnl := range results {
		trade := CompletedTrade{
			StrategyID: schema.NewStrategyID(),
			Type:       schema.StrategyIronCondor,
			PnL:        decimal.NewFromInt(pnl),
			ClosedAt:   time.Now(),
		}
		if err := store.RecordTrade(ctx, trade); err != nil {
			t.Fatalf("record trade: %v", err)
		}
	}

	wins, completed, err := store.TradeCounts(ctx)
	if err != nil {
		t.Fatalf("trade counts: %v", err)
	}
	if wins != 2 || completed != 4 {
		t.Fatalf("counts = %d/%d, want 2/4", wins, completed)
	}
}
