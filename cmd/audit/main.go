// Package main reconciles persisted positions against on-chain token
// balances. The persisted ledger is authoritative; the audit only reports
// drift, it never mutates state.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"solana-launch-sniper/internal/codec"
	"solana-launch-sniper/internal/config"
	"solana-launch-sniper/internal/domain"
	"solana-launch-sniper/internal/solana"
	pgstore "solana-launch-sniper/internal/storage/postgres"
	"solana-launch-sniper/internal/wallet"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to config file (optional)")
	owner := flag.String("owner", "", "wallet public key to audit (defaults to the configured wallet)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*configPath, *owner, logger); err != nil {
		logger.Fatal("audit failed", zap.Error(err))
	}
}

func run(configPath, owner string, logger *zap.Logger) error {
	loader, err := config.Load(configPath, logger)
	if err != nil {
		return err
	}
	cfg := loader.Current()

	if cfg.Storage.Backend != "database" {
		return errors.New("audit requires storage.backend=database, memory state does not outlive the process")
	}

	if owner == "" {
		keyMaterial := os.Getenv(config.WalletKeyEnv)
		if keyMaterial == "" {
			return fmt.Errorf("pass -owner or set %s", config.WalletKeyEnv)
		}
		signer, err := wallet.NewFromBase58(keyMaterial)
		if err != nil {
			return fmt.Errorf("load wallet: %w", err)
		}
		owner = signer.PublicKey()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	rpc := solana.NewHTTPClient(cfg.RPC.Endpoint)
	positions, err := pgstore.NewPositionStore(pool).List(ctx)
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}
	if len(positions) == 0 {
		logger.Info("no open positions to audit")
		return nil
	}

	var drifted int
	for _, p := range positions {
		if err := auditPosition(ctx, rpc, owner, p, logger); err != nil {
			drifted++
		}
	}

	logger.Info("audit complete",
		zap.Int("positions", len(positions)),
		zap.Int("drifted", drifted))
	if drifted > 0 {
		return fmt.Errorf("%d of %d positions drifted from chain state", drifted, len(positions))
	}
	return nil
}

// auditPosition compares one ledger row against the owner's token account.
// A missing account with a non-zero ledger balance is drift too: the tokens
// were moved or burned outside the engine.
func auditPosition(ctx context.Context, rpc solana.RPCClient, owner string, p *domain.Position, logger *zap.Logger) error {
	log := logger.With(zap.String("mint", p.Mint))

	ata, err := codec.AssociatedTokenAddress(owner, p.Mint, codec.TokenProgramID)
	if err != nil {
		log.Error("derive token account", zap.Error(err))
		return err
	}

	onChain, err := rpc.GetTokenAccountBalance(ctx, ata.Address)
	if err != nil {
		log.Warn("token account unreadable",
			zap.String("account", ata.Address),
			zap.Uint64("ledger_remaining", p.RemainingAmount),
			zap.Error(err))
		return err
	}

	if onChain == p.RemainingAmount {
		log.Info("position consistent",
			zap.Uint64("remaining", p.RemainingAmount),
			zap.Bool("tier1_sold", p.Tier1Sold),
			zap.Bool("tier2_sold", p.Tier2Sold))
		return nil
	}

	diff := int64(onChain) - int64(p.RemainingAmount)
	log.Warn("position drifted",
		zap.Uint64("ledger_remaining", p.RemainingAmount),
		zap.Uint64("on_chain", onChain),
		zap.Int64("diff", diff),
		zap.Float64("diff_tokens", float64(diff)/math.Pow10(int(p.Decimals))))
	return fmt.Errorf("drift on %s", p.Mint)
}
