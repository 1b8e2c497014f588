package analytics_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/alfadesk/riskcore/internal/analytics"
	"github.com/alfadesk/riskcore/internal/persistence/migrations"
	"github.com/alfadesk/riskcore/internal/schema"
)

// Set RISKCORE_PG_TESTS=1 to run the container-backed history store tests.
const pgTestsEnv = "RISKCORE_PG_TESTS"

var (
	testPool    *pgxpool.Pool
	pgContainer testcontainers.Container
)

func TestMain(m *testing.M) {
	if os.Getenv(pgTestsEnv) == "" {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_PASSWORD": "secret", "POSTGRES_USER": "postgres", "POSTGRES_DB": "riskcore"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}
	pgContainer = container

	exitCode := 0
	if err := initialiseDatabase(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres history tests aborted: %v\n", err)
		exitCode = 1
	} else {
		exitCode = m.Run()
	}

	if testPool != nil {
		testPool.Close()
	}
	_ = pgContainer.Terminate(ctx)
	os.Exit(exitCode)
}

func initialiseDatabase(ctx context.Context) error {
	host, err := pgContainer.Host(ctx)
	if err != nil {
		return fmt.Errorf("container host: %w", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return fmt.Errorf("container port: %w", err)
	}
	dsn := fmt.Sprintf("postgres://postgres:secret@%s:%s/riskcore?sslmode=disable", host, port.Port())

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return fmt.Errorf("runtime caller lookup failed")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
	migrationsDir := filepath.Join(root, "db", "migrations")
	if err := migrations.Apply(ctx, dsn, migrationsDir, nil); err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("pgx pool: %w", err)
	}
	testPool = pool
	return nil
}

func requirePool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testPool == nil {
		t.Skipf("set %s=1 to run container-backed tests", pgTestsEnv)
	}
	return testPool
}

func TestPostgresHistoryDailyRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := analytics.NewPostgresHistory(requirePool(t))

	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		day := analytics.DailyPnL{Date: base.AddDate(0, 0, i), PnL: decimal.NewFromInt(int64(i*10 - 20))}
		if err := store.UpsertDaily(ctx, day); err != nil {
			t.Fatalf("upsert day %d: %v", i, err)
		}
	}
	// Replace the newest session.
	replaced := analytics.DailyPnL{Date: base.AddDate(0, 0, 4), PnL: decimal.NewFromInt(999)}
	if err := store.UpsertDaily(ctx, replaced); err != nil {
		t.Fatalf("upsert replacement: %v", err)
	}

	got, err := store.Series(ctx, 3)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("series length = %d, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].Date.Before(got[i].Date) {
			t.Fatalf("series not oldest first at %d: %v then %v", i, got[i-1].Date, got[i].Date)
		}
	}
	last := got[len(got)-1]
	if !last.PnL.Equal(decimal.NewFromInt(999)) {
		t.Fatalf("newest pnl = %s, want 999", last.PnL)
	}
}

func TestPostgresHistoryTradeCounts(t *testing.T) {
	ctx := context.Background()
	store := analytics.NewPostgresHistory(requirePool(t))

	results := []int64{500, -125, 80}
	for _, pnl := range results {
		trade := analytics.CompletedTrade{
			StrategyID: schema.NewStrategyID(),
			Type:       schema.StrategyStraddle,
			PnL:        decimal.NewFromInt(pnl),
			ClosedAt:   time.Now().UTC(),
		}
		if err := store.RecordTrade(ctx, trade); err != nil {
			t.Fatalf("record trade: %v", err)
		}
	}

	wins, completed, err := store.TradeCounts(ctx)
	if err != nil {
		t.Fatalf("trade counts: %v", err)
	}
	if completed < 3 {
		t.Fatalf("completed = %d, want at least 3", completed)
	}
	if wins < 2 {
		t.Fatalf("wins = %d, want at least 2", wins)
	}
}
