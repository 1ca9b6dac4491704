// Package position runs the tiered exit lifecycle for open holdings. Each
// tracked mint gets one monitor goroutine that re-quotes the pool on an
// interval and fires the profit tiers exactly once each.
package position

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-launch-sniper/internal/codec"
	"solana-launch-sniper/internal/domain"
	"solana-launch-sniper/internal/executor"
)

// Executor submits sell orders.
type Executor interface {
	Execute(ctx context.Context, order executor.Order) (*executor.Result, error)
}

// PriceSource re-quotes the venue pool.
type PriceSource interface {
	CurrentPrice(ctx context.Context, mint string, platform domain.Platform, creator string) (float64, error)
}

// Ledger persists position mutations and realized P&L.
type Ledger interface {
	UpdatePosition(ctx context.Context, p *domain.Position) error
	ClosePosition(ctx context.Context, mint string, pnlSOL float64) error
}

// Config holds tier thresholds and monitor timing.
type Config struct {
	PollInterval time.Duration
	// Staleness force-stops a monitor that cannot get a fresh price.
	Staleness time.Duration

	Tier1Multiple float64 // price multiple that arms tier 1
	Tier1Fraction float64 // fraction of the entry amount sold at tier 1
	Tier2Multiple float64
	Tier2Fraction float64 // fraction of the remaining amount sold at tier 2

	SellSlippage float64
}

// DefaultConfig returns the standard tier ladder.
func DefaultConfig() Config {
	return Config{
		PollInterval:  2 * time.Second,
		Staleness:     10 * time.Minute,
		Tier1Multiple: 10,
		Tier1Fraction: 0.30,
		Tier2Multiple: 100,
		Tier2Fraction: 0.50,
		SellSlippage:  0.10,
	}
}

// monitor is one running lifecycle. stop guards the cancel so every exit
// path (tiers complete, staleness, shutdown) releases it exactly once.
type monitor struct {
	cancel context.CancelFunc
	done   chan struct{}
	stop   sync.Once
}

// Manager owns all monitors. Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	monitors map[string]*monitor

	exec   Executor
	prices PriceSource
	ledger Ledger
	config Config
	logger *zap.Logger
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewManager creates a manager with no running monitors.
func NewManager(exec Executor, prices PriceSource, ledger Ledger, config Config, logger *zap.Logger) *Manager {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.Staleness <= 0 {
		config.Staleness = DefaultConfig().Staleness
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		monitors: make(map[string]*monitor),
		exec:     exec,
		prices:   prices,
		ledger:   ledger,
		config:   config,
		logger:   logger.Named("position"),
		now:      time.Now,
	}
}

// SetConfig swaps tier thresholds and timings; used by config hot reload.
// Running monitors pick the new thresholds up on their next tick; the poll
// interval applies to monitors started afterwards.
func (m *Manager) SetConfig(config Config) {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.Staleness <= 0 {
		config.Staleness = DefaultConfig().Staleness
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = config
}

// settings returns a copy of the active config.
func (m *Manager) settings() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Track starts monitoring a position. A mint already being tracked is a
// no-op; restarts re-enter here with the persisted position.
func (m *Manager) Track(ctx context.Context, p *domain.Position, platform domain.Platform, creator string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, running := m.monitors[p.Mint]; running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	mon := &monitor{cancel: cancel, done: make(chan struct{})}
	m.monitors[p.Mint] = mon

	m.wg.Add(1)
	go m.run(runCtx, mon, p, platform, creator)

	m.logger.Info("position tracked",
		zap.String("mint", p.Mint),
		zap.Float64("entry_price", p.EntryPrice),
		zap.Uint64("remaining", p.RemainingAmount))
}

// Stop cancels one monitor and waits for it to exit.
func (m *Manager) Stop(mint string) {
	m.mu.Lock()
	mon, ok := m.monitors[mint]
	m.mu.Unlock()
	if !ok {
		return
	}
	mon.stop.Do(mon.cancel)
	<-mon.done
}

// Tracked reports whether a monitor is running for the mint.
func (m *Manager) Tracked(mint string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.monitors[mint]
	return ok
}

// Shutdown cancels every monitor and waits for all of them.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for _, mon := range m.monitors {
		mon.stop.Do(mon.cancel)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) finish(mint string, mon *monitor) {
	mon.stop.Do(mon.cancel)
	close(mon.done)

	m.mu.Lock()
	delete(m.monitors, mint)
	m.mu.Unlock()
	m.wg.Done()
}

// run is the monitor loop. It exits on tiers complete, staleness, or
// cancellation; the position row outlives a staleness or shutdown exit so
// the audit pass can reconcile it later.
func (m *Manager) run(ctx context.Context, mon *monitor, p *domain.Position, platform domain.Platform, creator string) {
	defer m.finish(p.Mint, mon)

	log := m.logger.With(zap.String("mint", p.Mint))
	ticker := time.NewTicker(m.settings().PollInterval)
	defer ticker.Stop()

	lastGood := m.now()
	var realizedPnL float64

	for {
		select {
		case <-ctx.Done():
			log.Info("monitor stopped", zap.Float64("realized_pnl_sol", realizedPnL))
			return
		case <-ticker.C:
		}

		price, err := m.prices.CurrentPrice(ctx, p.Mint, platform, creator)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if staleness := m.settings().Staleness; m.now().Sub(lastGood) >= staleness {
				log.Warn("price stale, monitor force-stopped",
					zap.Duration("staleness", staleness),
					zap.Error(err))
				return
			}
			log.Debug("price check failed", zap.Error(err))
			continue
		}
		lastGood = m.now()
		p.LastPriceCheck = lastGood

		pnl, sold := m.checkTiers(ctx, p, platform, creator, price, log)
		realizedPnL += pnl
		if sold {
			if err := m.ledger.UpdatePosition(ctx, p); err != nil {
				log.Error("persist position", zap.Error(err))
			}
		}

		if p.TiersComplete() {
			if err := m.ledger.ClosePosition(ctx, p.Mint, realizedPnL); err != nil {
				log.Error("close position", zap.Error(err))
			}
			log.Info("tiers complete, position closed",
				zap.Float64("realized_pnl_sol", realizedPnL),
				zap.Uint64("remaining", p.RemainingAmount))
			return
		}
	}
}

// checkTiers fires at most one tier per tick. Each tier arms once: a failed
// sell leaves the flag clear so the next tick retries.
func (m *Manager) checkTiers(ctx context.Context, p *domain.Position, platform domain.Platform, creator string, price float64, log *zap.Logger) (pnlSOL float64, sold bool) {
	if p.EntryPrice <= 0 {
		return 0, false
	}
	cfg := m.settings()
	multiple := price / p.EntryPrice

	switch {
	case !p.Tier1Sold && multiple >= cfg.Tier1Multiple:
		amount := fractionOf(p.EntryAmount, cfg.Tier1Fraction)
		pnl, ok := m.sell(ctx, p, platform, creator, amount, price, log.With(zap.Int("tier", 1)))
		if !ok {
			return 0, false
		}
		p.Tier1Sold = true
		p.ApplySell(amount)
		return pnl, true

	case p.Tier1Sold && !p.Tier2Sold && multiple >= cfg.Tier2Multiple:
		amount := fractionOf(p.RemainingAmount, cfg.Tier2Fraction)
		pnl, ok := m.sell(ctx, p, platform, creator, amount, price, log.With(zap.Int("tier", 2)))
		if !ok {
			return 0, false
		}
		p.Tier2Sold = true
		p.ApplySell(amount)
		return pnl, true
	}
	return 0, false
}

// sell executes one tier sell. The realized P&L rides on the order so the
// breaker sees it with the outcome.
func (m *Manager) sell(ctx context.Context, p *domain.Position, platform domain.Platform, creator string, amount uint64, price float64, log *zap.Logger) (float64, bool) {
	if amount == 0 || amount > p.RemainingAmount {
		return 0, false
	}

	tokens := float64(amount) / math.Pow10(int(p.Decimals))
	pnl := (price - p.EntryPrice) * tokens

	order := executor.Order{
		Request: domain.SwapRequest{
			InputMint:  p.Mint,
			OutputMint: codec.WSOLMint,
			AmountIn:   amount,
			Slippage:   m.settings().SellSlippage,
			Side:       domain.SideSell,
		},
		Platform:       platform,
		Creator:        creator,
		RealizedPnLSOL: pnl,
	}

	res, err := m.exec.Execute(ctx, order)
	if err != nil {
		if errors.Is(err, executor.ErrNoLiquidity) {
			log.Warn("tier sell has no venue", zap.Error(err))
		} else {
			log.Error("tier sell failed", zap.Error(err))
		}
		return 0, false
	}

	log.Info("tier sold",
		zap.String("signature", res.Signature),
		zap.Uint64("amount", amount),
		zap.Float64("price", price),
		zap.Float64("pnl_sol", pnl))
	return pnl, true
}

func fractionOf(amount uint64, fraction float64) uint64 {
	if fraction <= 0 {
		return 0
	}
	if fraction >= 1 {
		return amount
	}
	return uint64(float64(amount) * fraction)
}
