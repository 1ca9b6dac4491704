// Package main runs the launch sniper: it watches venue programs for new
// token launches, buys through the fastest available execution method, and
// manages tiered take-profit exits with a circuit breaker over the whole
// pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"solana-launch-sniper/internal/breaker"
	"solana-launch-sniper/internal/config"
	"solana-launch-sniper/internal/discovery"
	"solana-launch-sniper/internal/engine"
	"solana-launch-sniper/internal/executor"
	"solana-launch-sniper/internal/executor/jupiter"
	"solana-launch-sniper/internal/position"
	"solana-launch-sniper/internal/ratelimit"
	"solana-launch-sniper/internal/risk"
	"solana-launch-sniper/internal/solana"
	"solana-launch-sniper/internal/storage"
	chstore "solana-launch-sniper/internal/storage/clickhouse"
	"solana-launch-sniper/internal/storage/memory"
	"solana-launch-sniper/internal/storage/migrations"
	pgstore "solana-launch-sniper/internal/storage/postgres"
	"solana-launch-sniper/internal/wallet"
)

type stores struct {
	breakerState storage.BreakerStateStore
	positions    storage.PositionStore
	attempts     storage.AttemptStore
	cleanup      func()
}

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	loader, err := config.Load(*configPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg := loader.Current()

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(loader, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("sniper exited", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(loader *config.Loader, logger *zap.Logger) error {
	cfg := loader.Current()

	keyMaterial := os.Getenv(config.WalletKeyEnv)
	if keyMaterial == "" {
		return fmt.Errorf("%s environment variable is required", config.WalletKeyEnv)
	}
	signer, err := wallet.NewFromBase58(keyMaterial)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	logger.Info("wallet loaded", zap.String("pubkey", signer.PublicKey()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := createStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer st.cleanup()

	limiter := ratelimit.New(cfg.LimiterSettings())
	rpc := solana.NewHTTPClient(cfg.RPC.Endpoint,
		solana.WithTimeout(time.Duration(cfg.RPC.TimeoutMs)*time.Millisecond),
		solana.WithRateLimiter(limiter))

	ws, err := solana.NewWSClient(ctx, cfg.RPC.WSEndpoint, nil, logger)
	if err != nil {
		return fmt.Errorf("connect websocket: %w", err)
	}
	defer ws.Close()

	jup := jupiter.NewClient(
		jupiter.WithBaseURL(cfg.Jupiter.BaseURL),
		jupiter.WithRateLimit(cfg.Jupiter.RequestsPerS, cfg.Jupiter.Burst))

	brk, err := breaker.New(ctx, cfg.BreakerSettings(), st.breakerState, logger)
	if err != nil {
		return fmt.Errorf("init breaker: %w", err)
	}

	gate, err := risk.NewGate(ctx, cfg.RiskLimits(), brk, st.positions, logger)
	if err != nil {
		return fmt.Errorf("init risk gate: %w", err)
	}

	dispatcher := executor.NewDispatcher(rpc, signer, jup, brk, st.attempts, executor.Config{
		PlatformAdmin:  cfg.Executor.PlatformAdmin,
		CurveType:      cfg.Executor.CurveType,
		ConfigIndex:    cfg.Executor.ConfigIndex,
		ConfirmTimeout: time.Duration(cfg.Executor.ConfirmTimeoutMs) * time.Millisecond,
		SimulateFirst:  cfg.Executor.SimulateFirst,
		Policies:       cfg.RetryPolicies(),
	}, logger)

	manager := position.NewManager(dispatcher, dispatcher, gate, cfg.PositionSettings(), logger)

	// Resume monitoring for positions that survived a restart.
	open, err := st.positions.List(ctx)
	if err != nil {
		return fmt.Errorf("list open positions: %w", err)
	}
	for _, p := range open {
		if p.TiersComplete() {
			continue
		}
		manager.Track(ctx, p, p.Platform, p.Creator)
		logger.Info("resumed position monitor",
			zap.String("mint", p.Mint),
			zap.Uint64("remaining", p.RemainingAmount))
	}

	feed := discovery.NewWSLaunchFeed(ws, discovery.NewLaunchDetector(), logger)

	eng, err := engine.New(engine.Options{
		Feed:    feed,
		Gate:    gate,
		Trader:  dispatcher,
		Tracker: manager,
		Config: engine.Config{
			BuyAmountSOL: cfg.Trade.BuyAmountSOL,
			BuySlippage:  cfg.Trade.BuySlippage,
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	// A config edit retunes the running process: risk limits, breaker
	// thresholds, rate caps, retry policies, and the tier ladder all take
	// effect without a restart. Endpoints and storage still need one.
	loader.OnReload = func(c *config.Config) {
		gate.SetLimits(c.RiskLimits())
		brk.SetConfig(c.BreakerSettings())
		limiter.SetConfig(c.LimiterSettings())
		dispatcher.SetPolicies(c.RetryPolicies())
		manager.SetConfig(c.PositionSettings())
	}
	loader.Watch()

	return eng.Run(ctx)
}

// createStores wires either in-memory stores or the database pair, running
// embedded migrations on the latter.
func createStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Storage.Backend == "memory" {
		return &stores{
			breakerState: memory.NewBreakerStateStore(),
			positions:    memory.NewPositionStore(),
			attempts:     memory.NewAttemptStore(),
			cleanup:      func() {},
		}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
		conn.Close()
		pool.Close()
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	return &stores{
		breakerState: pgstore.NewBreakerStateStore(pool),
		positions:    pgstore.NewPositionStore(pool),
		attempts:     chstore.NewAttemptStore(conn),
		cleanup: func() {
			conn.Close()
			pool.Close()
		},
	}, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
