// Command sweep runs a single reconciliation sweep and exits. It is
// meant for cron-style operation alongside (or instead of) the
// long-running server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"position-core/internal/orderfeed"
	"position-core/internal/performance"
	"position-core/internal/reconcile"
	"position-core/internal/storage"
	chstore "position-core/internal/storage/clickhouse"
	"position-core/internal/storage/memory"
	"position-core/internal/storage/migrations"
	pgstore "position-core/internal/storage/postgres"
	"position-core/internal/sweep"
)

// allStores holds all storage implementations.
type allStores struct {
	positions   storage.PositionStore
	records     storage.PerformanceRecordStore
	transitions storage.TransitionLogStore
}

// createStores creates all required stores, applying migrations for the
// database-backed ones.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			positions:   memory.NewPositionStore(),
			records:     memory.NewPerformanceRecordStore(),
			transitions: memory.NewTransitionLogStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		positions:   pgstore.NewPositionStore(pool),
		records:     pgstore.NewPerformanceRecordStore(pool),
		transitions: chstore.NewTransitionLogStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

func main() {
	loadEnvFile()

	wsEndpoint := flag.String("ws-endpoint", os.Getenv("ORDER_FEED_WS_ENDPOINT"), "Order feed WebSocket endpoint")
	feedChannel := flag.String("feed-channel", "orders", "Order feed channel to subscribe")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	staleThreshold := flag.Duration("stale-threshold", reconcile.DefaultStaleThreshold, "How long a position may sit in a pending state before it expires")
	feedWarmup := flag.Duration("feed-warmup", 10*time.Second, "How long to collect feed events before sweeping")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall timeout for the sweep")

	flag.Parse()

	logger := log.New(os.Stdout, "[sweep] ", log.LstdFlags|log.Lshortfile)

	if *wsEndpoint == "" {
		logger.Fatal("--ws-endpoint is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	engine, err := reconcile.NewDefaultEngine(*staleThreshold)
	if err != nil {
		logger.Fatalf("Failed to build reconciliation engine: %v", err)
	}

	aggregator, err := performance.New(performance.Config{
		Store:  stores.records,
		Logger: log.New(os.Stdout, "[performance] ", log.LstdFlags),
	})
	if err != nil {
		logger.Fatalf("Failed to build performance aggregator: %v", err)
	}

	cache, err := warmCache(ctx, *wsEndpoint, *feedChannel, *feedWarmup, logger)
	if err != nil {
		logger.Fatalf("Failed to warm order status cache: %v", err)
	}

	runner, err := sweep.NewRunner(sweep.Options{
		Positions:     stores.positions,
		TransitionLog: stores.transitions,
		Source:        cache,
		Engine:        engine,
		Aggregator:    aggregator,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatalf("Failed to build sweep runner: %v", err)
	}

	summary, err := runner.Sweep(ctx)
	if err != nil {
		logger.Fatalf("Sweep failed: %v", err)
	}

	fmt.Printf("Swept %d positions: %d transitioned, %d expired, %d maintained, %d skipped, %d rejected, %d conflicts, %d errors, %d liquidations aggregated\n",
		summary.Swept, summary.Transitions, summary.Expired, summary.Maintained,
		summary.Skipped, summary.Rejected, summary.Conflicts, summary.Errors,
		summary.LiquidationsAggregated)
}

// warmCache subscribes to the order feed and collects events for the
// warmup window so the sweep sees current order state.
func warmCache(ctx context.Context, endpoint, channel string, warmup time.Duration, logger *log.Logger) (*orderfeed.StatusCache, error) {
	client, err := orderfeed.NewClient(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed client: %w", err)
	}
	defer client.Close()

	events, err := client.Subscribe(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("subscribe %q: %w", channel, err)
	}

	cache := orderfeed.NewStatusCache()

	logger.Printf("Collecting feed events for %v...", warmup)
	warmupCtx, cancel := context.WithTimeout(ctx, warmup)
	defer cancel()
	cache.Run(warmupCtx, events)

	logger.Printf("Cache warmed with %d orders", cache.Len())
	return cache, nil
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
