// Package engine connects launch discovery to trade execution: every
// launch event is risk-gated, bought, recorded, and handed to the
// position manager for its tiered exit.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-launch-sniper/internal/codec"
	"solana-launch-sniper/internal/discovery"
	"solana-launch-sniper/internal/domain"
	"solana-launch-sniper/internal/executor"
	"solana-launch-sniper/internal/risk"
)

const lamportsPerSOL = 1e9

// Trader executes an admitted order. Satisfied by executor.Dispatcher.
type Trader interface {
	Execute(ctx context.Context, order executor.Order) (*executor.Result, error)
}

// Tracker owns post-buy position monitoring. Satisfied by position.Manager.
type Tracker interface {
	Track(ctx context.Context, p *domain.Position, platform domain.Platform, creator string)
	Shutdown()
}

// Config holds per-trade sizing.
type Config struct {
	BuyAmountSOL float64
	BuySlippage  float64
}

// Options collects the engine's collaborators.
type Options struct {
	Feed    discovery.Feed
	Gate    *risk.Gate
	Trader  Trader
	Tracker Tracker
	Config  Config
	Logger  *zap.Logger
}

// Engine is the trade pipeline. One instance per process.
type Engine struct {
	feed    discovery.Feed
	gate    *risk.Gate
	trader  Trader
	tracker Tracker
	config  Config
	logger  *zap.Logger

	wg  sync.WaitGroup
	now func() time.Time
}

// New validates the wiring and returns an engine ready to Run.
func New(opts Options) (*Engine, error) {
	if opts.Feed == nil {
		return nil, errors.New("engine: feed is required")
	}
	if opts.Gate == nil {
		return nil, errors.New("engine: risk gate is required")
	}
	if opts.Trader == nil {
		return nil, errors.New("engine: trader is required")
	}
	if opts.Tracker == nil {
		return nil, errors.New("engine: tracker is required")
	}
	if opts.Config.BuyAmountSOL <= 0 {
		return nil, fmt.Errorf("engine: buy amount %f must be positive", opts.Config.BuyAmountSOL)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		feed:    opts.Feed,
		gate:    opts.Gate,
		trader:  opts.Trader,
		tracker: opts.Tracker,
		config:  opts.Config,
		logger:  logger.Named("engine"),
		now:     time.Now,
	}, nil
}

// Run consumes launch events until the context is cancelled or the feed
// closes, then drains in-flight buys and stops all position monitors.
func (e *Engine) Run(ctx context.Context) error {
	events, err := e.feed.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribing to launch feed: %w", err)
	}
	e.logger.Info("engine started",
		zap.Float64("buy_amount_sol", e.config.BuyAmountSOL),
		zap.Float64("buy_slippage", e.config.BuySlippage))

	defer func() {
		e.wg.Wait()
		e.tracker.Shutdown()
		e.logger.Info("engine stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			e.handleLaunch(ctx, ev)
		}
	}
}

// handleLaunch admits the mint synchronously so the gate's reservation is
// in place before the next event, then buys on its own goroutine.
func (e *Engine) handleLaunch(ctx context.Context, ev *discovery.LaunchEvent) {
	log := e.logger.With(
		zap.String("mint", ev.Mint),
		zap.String("platform", string(ev.Platform)),
		zap.String("launch_sig", ev.Signature))

	lamports := uint64(e.config.BuyAmountSOL * lamportsPerSOL)
	if err := e.gate.Admit(ctx, ev.Mint, lamports); err != nil {
		var blocked *risk.BlockedError
		if errors.As(err, &blocked) {
			log.Info("launch not admitted", zap.Strings("reasons", blocked.Reasons))
		} else {
			log.Warn("admission failed", zap.Error(err))
		}
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.buy(ctx, ev, lamports, log)
	}()
}

func (e *Engine) buy(ctx context.Context, ev *discovery.LaunchEvent, lamports uint64, log *zap.Logger) {
	order := executor.Order{
		Request: domain.SwapRequest{
			InputMint:  codec.WSOLMint,
			OutputMint: ev.Mint,
			AmountIn:   lamports,
			Slippage:   e.config.BuySlippage,
			Side:       domain.SideBuy,
		},
		Platform:      ev.Platform,
		Creator:       ev.Developer,
		CurveEligible: true,
	}

	res, err := e.trader.Execute(ctx, order)
	if err != nil {
		e.gate.Release(ev.Mint)
		if errors.Is(err, executor.ErrNoLiquidity) {
			log.Info("buy skipped, no liquidity")
		} else {
			log.Warn("buy failed", zap.Error(err))
		}
		return
	}

	entryPrice := res.Price
	if entryPrice <= 0 && res.QuotedOut > 0 {
		entryPrice = (float64(lamports) / lamportsPerSOL) /
			(float64(res.QuotedOut) / math.Pow10(int(res.Decimals)))
	}

	now := e.now()
	p := &domain.Position{
		Mint:            ev.Mint,
		Platform:        ev.Platform,
		Creator:         ev.Developer,
		Decimals:        res.Decimals,
		EntryPrice:      entryPrice,
		EntryAmount:     res.QuotedOut,
		RemainingAmount: res.QuotedOut,
		EntryTime:       now,
		LastPriceCheck:  now,
	}
	if err := e.gate.RecordTrade(ctx, p); err != nil {
		log.Error("recording position", zap.Error(err))
	}

	log.Info("position opened",
		zap.String("signature", res.Signature),
		zap.String("method", string(res.Method)),
		zap.Uint64("tokens", res.QuotedOut),
		zap.Float64("entry_price", entryPrice))

	e.tracker.Track(ctx, p, ev.Platform, ev.Developer)
}
