// Package risk owns the trade-admission gate and the position ledger.
// All ledger mutation goes through RecordTrade / ClosePosition; other
// components only read admission decisions.
package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-launch-sniper/internal/domain"
	"solana-launch-sniper/internal/storage"
)

// BlockedError carries every violated admission condition, not just the
// first, so callers can log all of them.
type BlockedError struct {
	Mint    string
	Reasons []string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("trade blocked for %s: %v", e.Mint, e.Reasons)
}

// Admitter is the circuit-breaker admission surface the gate consults.
// Allow may hold state (a half-open breaker grants a single trial);
// CancelTrial returns an unused grant when the admitted trade never
// reaches execution.
type Admitter interface {
	Allow(ctx context.Context) error
	CancelTrial()
}

// Limits holds risk thresholds.
type Limits struct {
	MaxDailyLossSOL   float64
	MaxSingleTradeSOL float64 // per-trade spend cap, in SOL
	MaxPositions      int
	Cooldown          time.Duration
}

// DefaultLimits returns conservative limits.
func DefaultLimits() Limits {
	return Limits{
		MaxDailyLossSOL:   1.0,
		MaxSingleTradeSOL: 0.1,
		MaxPositions:      3,
		Cooldown:          30 * time.Second,
	}
}

const lamportsPerSOL = 1_000_000_000

// Gate is the process-wide risk gate. Safe for concurrent use.
type Gate struct {
	mu        sync.Mutex
	limits    Limits
	breaker   Admitter
	store     storage.PositionStore
	logger    *zap.Logger
	positions map[string]*domain.Position
	// reserved holds mints admitted but not yet bought. First admitted wins;
	// concurrent duplicates are rejected, not queued.
	reserved    map[string]struct{}
	lastTradeAt time.Time
	dailyPnLSOL float64
	dayStarted  time.Time
	now         func() time.Time
}

// NewGate loads the persisted position set and returns a ready gate.
// Persisted state is authoritative for the per-mint dedupe invariant.
func NewGate(ctx context.Context, limits Limits, breaker Admitter, store storage.PositionStore, logger *zap.Logger) (*Gate, error) {
	persisted, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load persisted positions: %w", err)
	}

	positions := make(map[string]*domain.Position, len(persisted))
	for _, p := range persisted {
		positions[p.Mint] = p
	}

	g := &Gate{
		limits:     limits,
		breaker:    breaker,
		store:      store,
		logger:     logger.Named("risk"),
		positions:  positions,
		reserved:   make(map[string]struct{}),
		dayStarted: time.Now(),
		now:        time.Now,
	}

	if len(positions) > 0 {
		g.logger.Info("position ledger restored", zap.Int("positions", len(positions)))
	}
	return g, nil
}

// SetLimits swaps risk thresholds; used by config hot reload.
func (g *Gate) SetLimits(limits Limits) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limits = limits
}

// Admit checks every admission condition, collecting all violations. On
// success the mint is reserved: a concurrent Admit for the same mint fails
// until Release or RecordTrade.
func (g *Gate) Admit(ctx context.Context, mint string, amountLamports uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollDailyWindow()

	var reasons []string

	if g.dailyPnLSOL <= -g.limits.MaxDailyLossSOL {
		reasons = append(reasons, fmt.Sprintf(
			"daily loss limit reached: pnl %.4f SOL, limit %.4f SOL", g.dailyPnLSOL, g.limits.MaxDailyLossSOL))
	}

	amountSOL := float64(amountLamports) / lamportsPerSOL
	if amountSOL > g.limits.MaxSingleTradeSOL {
		reasons = append(reasons, fmt.Sprintf(
			"amount %.4f SOL exceeds single trade limit %.4f SOL", amountSOL, g.limits.MaxSingleTradeSOL))
	}

	open := len(g.positions) + len(g.reserved)
	if open >= g.limits.MaxPositions {
		reasons = append(reasons, fmt.Sprintf(
			"open positions %d at limit %d", open, g.limits.MaxPositions))
	}

	if !g.lastTradeAt.IsZero() {
		if since := g.now().Sub(g.lastTradeAt); since < g.limits.Cooldown {
			reasons = append(reasons, fmt.Sprintf(
				"cooldown active: %s since last trade, need %s", since.Round(time.Millisecond), g.limits.Cooldown))
		}
	}

	if _, exists := g.positions[mint]; exists {
		reasons = append(reasons, fmt.Sprintf("existing open position for mint %s", mint))
	} else if _, pending := g.reserved[mint]; pending {
		reasons = append(reasons, fmt.Sprintf("buy already in flight for mint %s", mint))
	}

	if len(reasons) > 0 {
		return &BlockedError{Mint: mint, Reasons: reasons}
	}

	// The breaker is consulted last and only when everything else passed:
	// Allow consumes the half-open trial slot, and a trade blocked for any
	// other reason must not burn it.
	if err := g.breaker.Allow(ctx); err != nil {
		return &BlockedError{Mint: mint, Reasons: []string{err.Error()}}
	}

	g.reserved[mint] = struct{}{}
	return nil
}

// Release drops a reservation after a buy that never produced an outcome
// (no liquidity, dispatch rejected). The breaker trial granted at Admit is
// returned so the next admission can claim it; if the trade did execute,
// RecordSuccess/RecordFailure has already settled the trial and the cancel
// is a no-op.
func (g *Gate) Release(mint string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.reserved, mint)
	g.breaker.CancelTrial()
}

// RecordTrade converts a reservation into an open position and persists it.
func (g *Gate) RecordTrade(ctx context.Context, p *domain.Position) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.reserved, p.Mint)
	if _, exists := g.positions[p.Mint]; exists {
		return fmt.Errorf("position for mint %s already open", p.Mint)
	}

	g.positions[p.Mint] = p
	g.lastTradeAt = g.now()

	if err := g.store.Upsert(ctx, p); err != nil {
		return fmt.Errorf("persist position: %w", err)
	}
	return nil
}

// UpdatePosition persists a mutated position (tier sells).
func (g *Gate) UpdatePosition(ctx context.Context, p *domain.Position) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.positions[p.Mint]; !exists {
		return fmt.Errorf("no open position for mint %s", p.Mint)
	}
	g.positions[p.Mint] = p

	if err := g.store.Upsert(ctx, p); err != nil {
		return fmt.Errorf("persist position: %w", err)
	}
	return nil
}

// ClosePosition removes a position from the ledger, feeding its realized
// P&L into the rolling daily total.
func (g *Gate) ClosePosition(ctx context.Context, mint string, pnlSOL float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollDailyWindow()
	g.dailyPnLSOL += pnlSOL
	delete(g.positions, mint)

	if err := g.store.Delete(ctx, mint); err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	return nil
}

// OpenPositions returns the number of open (not reserved) positions.
func (g *Gate) OpenPositions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.positions)
}

// Position returns a copy of the open position for mint, if any.
func (g *Gate) Position(mint string) (*domain.Position, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.positions[mint]
	if !ok {
		return nil, false
	}
	copy := *p
	return &copy, true
}

// DailyPnL returns the rolling daily realized P&L in SOL.
func (g *Gate) DailyPnL() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dailyPnLSOL
}

// rollDailyWindow resets daily P&L on a rolling 24h boundary. Caller holds
// the lock.
func (g *Gate) rollDailyWindow() {
	if g.now().Sub(g.dayStarted) < 24*time.Hour {
		return
	}
	g.dailyPnLSOL = 0
	g.dayStarted = g.now()
}
