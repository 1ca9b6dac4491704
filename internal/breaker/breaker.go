// Package breaker implements the global trade-admission circuit breaker.
// One instance guards the whole process; construct it at the root and pass
// it down, never as a package global.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-launch-sniper/internal/domain"
	"solana-launch-sniper/internal/storage"
)

const dailyWindow = 24 * time.Hour

// CircuitOpenError signals that trading is blocked by breaker state.
type CircuitOpenError struct {
	RetryAt time.Time
	Reason  string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open (%s), next attempt at %s", e.Reason, e.RetryAt.Format(time.RFC3339))
}

// Config holds trip thresholds.
type Config struct {
	// DailyLossSOL opens the breaker once daily losses reach this amount.
	DailyLossSOL float64
	// ErrorThreshold opens the breaker after this many consecutive failures.
	ErrorThreshold int
	// SingleLossSOL opens the breaker on any one trade losing this much.
	SingleLossSOL float64
	// RecoveryWindow is how long the breaker stays open before a trial.
	RecoveryWindow time.Duration
}

// DefaultConfig returns conservative thresholds.
func DefaultConfig() Config {
	return Config{
		DailyLossSOL:   1.0,
		ErrorThreshold: 5,
		SingleLossSOL:  0.5,
		RecoveryWindow: 30 * time.Minute,
	}
}

// Breaker is the trade-admission state machine. Safe for concurrent use;
// every mutation is persisted through the store before the lock releases.
type Breaker struct {
	mu            sync.Mutex
	config        Config
	state         domain.BreakerState
	trialInFlight bool
	store         storage.BreakerStateStore
	logger        *zap.Logger
	now           func() time.Time
}

// New loads persisted state (fresh closed state when none exists) and
// returns a ready breaker.
func New(ctx context.Context, config Config, store storage.BreakerStateStore, logger *zap.Logger) (*Breaker, error) {
	b := &Breaker{
		config: config,
		store:  store,
		logger: logger.Named("breaker"),
		now:    time.Now,
	}

	state, err := store.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		b.state = domain.BreakerState{
			Status:       domain.BreakerClosed,
			DayStartedAt: b.now(),
		}
		if err := store.Save(ctx, &b.state); err != nil {
			return nil, fmt.Errorf("persist initial breaker state: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load breaker state: %w", err)
	default:
		b.state = *state
		b.logger.Info("breaker state restored",
			zap.String("status", state.Status),
			zap.Int("consecutive_failures", state.ConsecutiveFailures),
			zap.Float64("daily_loss_sol", state.DailyLossSOL))
	}

	return b, nil
}

// SetConfig swaps trip thresholds; used by config hot reload. New
// thresholds apply from the next recorded outcome; an already-open breaker
// keeps its recovery deadline.
func (b *Breaker) SetConfig(config Config) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.config = config
}

// Allow reports whether a trade may proceed right now. While open, requests
// before the recovery deadline fail; the first request after it flips the
// breaker to half-open and admits exactly one trial trade.
func (b *Breaker) Allow(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.rollDailyWindow(ctx, now)

	switch b.state.Status {
	case domain.BreakerClosed:
		return nil

	case domain.BreakerOpen:
		if now.Before(b.state.NextAttemptAt) {
			return &CircuitOpenError{RetryAt: b.state.NextAttemptAt, Reason: "recovery window active"}
		}
		b.state.Status = domain.BreakerHalfOpen
		b.trialInFlight = true
		b.persist(ctx)
		b.logger.Info("breaker half-open, admitting trial trade")
		return nil

	case domain.BreakerHalfOpen:
		if b.trialInFlight {
			return &CircuitOpenError{RetryAt: b.state.NextAttemptAt, Reason: "trial trade in flight"}
		}
		b.trialInFlight = true
		return nil

	default:
		return &CircuitOpenError{RetryAt: b.state.NextAttemptAt, Reason: "unknown breaker status"}
	}
}

// CancelTrial returns an unused half-open trial slot. Callers invoke it
// when an admitted trade is abandoned before execution (no liquidity,
// dispatch rejected), so the slot does not stay claimed forever. After a
// settled trial the breaker is closed or open again and this is a no-op.
func (b *Breaker) CancelTrial() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state.Status != domain.BreakerHalfOpen || !b.trialInFlight {
		return
	}
	b.trialInFlight = false
	b.logger.Info("trial trade abandoned before execution, slot returned")
}

// RecordSuccess feeds a successful trade outcome. pnlSOL may still be
// negative (a losing but executed trade).
func (b *Breaker) RecordSuccess(ctx context.Context, pnlSOL float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.rollDailyWindow(ctx, now)

	b.state.DailyTrades++
	b.state.ConsecutiveFailures = 0
	if pnlSOL < 0 {
		b.state.DailyLossSOL += -pnlSOL
	}

	if b.state.Status == domain.BreakerHalfOpen {
		b.state.Status = domain.BreakerClosed
		b.trialInFlight = false
		b.logger.Info("breaker closed after successful trial")
	}

	b.checkThresholds(now, pnlSOL)
	b.persist(ctx)
}

// RecordFailure feeds a failed trade outcome.
func (b *Breaker) RecordFailure(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.rollDailyWindow(ctx, now)

	b.state.DailyTrades++
	b.state.ConsecutiveFailures++

	if b.state.Status == domain.BreakerHalfOpen {
		b.open(now, "trial trade failed")
	} else if b.state.ConsecutiveFailures >= b.config.ErrorThreshold {
		b.open(now, "consecutive failure threshold")
	}

	b.persist(ctx)
}

// State returns a copy of the current snapshot.
func (b *Breaker) State() domain.BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// checkThresholds trips the breaker on loss limits. Caller holds the lock.
func (b *Breaker) checkThresholds(now time.Time, pnlSOL float64) {
	if b.state.Status == domain.BreakerOpen {
		return
	}
	if pnlSOL < 0 && -pnlSOL >= b.config.SingleLossSOL {
		b.open(now, "single trade loss threshold")
		return
	}
	if b.state.DailyLossSOL >= b.config.DailyLossSOL {
		b.open(now, "daily loss threshold")
	}
}

// open transitions to OPEN with a fresh recovery window. Caller holds the lock.
func (b *Breaker) open(now time.Time, reason string) {
	b.state.Status = domain.BreakerOpen
	b.state.NextAttemptAt = now.Add(b.config.RecoveryWindow)
	b.trialInFlight = false
	b.logger.Warn("breaker opened",
		zap.String("reason", reason),
		zap.Time("next_attempt_at", b.state.NextAttemptAt),
		zap.Float64("daily_loss_sol", b.state.DailyLossSOL),
		zap.Int("consecutive_failures", b.state.ConsecutiveFailures))
}

// rollDailyWindow resets daily counters on a rolling 24h boundary measured
// from the last reset, independent of wall-clock midnight. Caller holds the
// lock.
func (b *Breaker) rollDailyWindow(ctx context.Context, now time.Time) {
	if now.Sub(b.state.DayStartedAt) < dailyWindow {
		return
	}
	b.state.DailyLossSOL = 0
	b.state.DailyTrades = 0
	b.state.DayStartedAt = now
	b.persist(ctx)
	b.logger.Info("breaker daily counters reset")
}

// persist saves the snapshot. Persistence failures are logged, not fatal:
// the in-memory machine keeps protecting the process either way.
func (b *Breaker) persist(ctx context.Context) {
	if err := b.store.Save(ctx, &b.state); err != nil {
		b.logger.Error("persist breaker state", zap.Error(err))
	}
}
