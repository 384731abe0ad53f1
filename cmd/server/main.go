// Package main provides the unified position service:
// - Order feed (continuous): WebSocket order events into the status cache
// - Reconciliation sweep (scheduled): open positions against observed orders
// - Performance aggregation: liquidations folded into per-period stats
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"position-core/internal/observability"
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

// Server holds all components of the unified service.
type Server struct {
	wsEndpoint    string
	feedChannel   string
	sweepInterval time.Duration

	stores *allStores
	runner *sweep.Runner
	cache  *orderfeed.StatusCache
	logger *log.Logger

	// State
	mu           sync.Mutex
	feedStarted  time.Time
	lastSweep    time.Time
	sweepRunning bool
	sweepRuns    int
	lastSummary  *sweep.Summary
}

// allStores holds all storage implementations.
type allStores struct {
	positions   storage.PositionStore
	records     storage.PerformanceRecordStore
	transitions storage.TransitionLogStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("ORDER_FEED_WS_ENDPOINT"), "Order feed WebSocket endpoint")
	feedChannel := flag.String("feed-channel", "orders", "Order feed channel to subscribe")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	sweepInterval := flag.Duration("sweep-interval", 5*time.Minute, "Reconciliation sweep interval")
	staleThreshold := flag.Duration("stale-threshold", reconcile.DefaultStaleThreshold, "How long a position may sit in a pending state before it expires")
	metricsAddr := flag.String("metrics-addr", ":9090", "HTTP address for health/metrics/status")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *wsEndpoint == "" {
		logger.Fatal("--ws-endpoint is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

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

	cache := orderfeed.NewStatusCache()

	runner, err := sweep.NewRunner(sweep.Options{
		Positions:     stores.positions,
		TransitionLog: stores.transitions,
		Source:        cache,
		Engine:        engine,
		Aggregator:    aggregator,
		Logger:        log.New(os.Stdout, "[sweep] ", log.LstdFlags|log.Lshortfile),
	})
	if err != nil {
		logger.Fatalf("Failed to build sweep runner: %v", err)
	}

	server := &Server{
		wsEndpoint:    *wsEndpoint,
		feedChannel:   *feedChannel,
		sweepInterval: *sweepInterval,
		stores:        stores,
		runner:        runner,
		cache:         cache,
		logger:        logger,
	}

	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	go server.startHTTPServer(*metricsAddr)

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
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

// Run starts the order feed and the sweep scheduler. It blocks until
// the context is cancelled or a component fails.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting position service...")

	errCh := make(chan error, 2)

	go func() {
		if err := s.runOrderFeed(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("order feed: %w", err)
		}
	}()

	go func() {
		if err := s.runSweepScheduler(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("sweep scheduler: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runOrderFeed connects to the feed and pumps events into the cache.
func (s *Server) runOrderFeed(ctx context.Context) error {
	s.logger.Println("Starting order feed...")

	client, err := orderfeed.NewClient(ctx, s.wsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("create feed client: %w", err)
	}
	defer client.Close()

	events, err := client.Subscribe(ctx, s.feedChannel)
	if err != nil {
		return fmt.Errorf("subscribe %q: %w", s.feedChannel, err)
	}

	s.mu.Lock()
	s.feedStarted = time.Now()
	s.mu.Unlock()

	s.logger.Printf("Order feed started (channel %q)", s.feedChannel)
	s.cache.Run(ctx, events)
	return ctx.Err()
}

// runSweepScheduler runs the reconciliation sweep on schedule.
func (s *Server) runSweepScheduler(ctx context.Context) error {
	s.logger.Printf("Starting sweep scheduler (interval: %v)...", s.sweepInterval)

	// Run immediately on start
	s.runSweep(ctx)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

// runSweep executes one reconciliation sweep.
func (s *Server) runSweep(ctx context.Context) {
	s.mu.Lock()
	if s.sweepRunning {
		s.mu.Unlock()
		s.logger.Println("Sweep already running, skipping...")
		return
	}
	s.sweepRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sweepRunning = false
		s.lastSweep = time.Now()
		s.sweepRuns++
		s.mu.Unlock()
	}()

	summary, err := s.runner.Sweep(ctx)
	if err != nil {
		s.logger.Printf("Sweep error: %v", err)
		return
	}

	s.mu.Lock()
	s.lastSummary = summary
	s.mu.Unlock()
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status        string         `json:"status"`
	Uptime        string         `json:"uptime"`
	FeedStarted   time.Time      `json:"feed_started"`
	TrackedOrders int            `json:"tracked_orders"`
	LastSweep     time.Time      `json:"last_sweep,omitempty"`
	SweepRuns     int            `json:"sweep_runs"`
	SweepRunning  bool           `json:"sweep_running"`
	LastSummary   *sweep.Summary `json:"last_summary,omitempty"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:        "running",
		Uptime:        time.Since(s.feedStarted).String(),
		FeedStarted:   s.feedStarted,
		TrackedOrders: s.cache.Len(),
		LastSweep:     s.lastSweep,
		SweepRuns:     s.sweepRuns,
		SweepRunning:  s.sweepRunning,
		LastSummary:   s.lastSummary,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
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
