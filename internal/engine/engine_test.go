package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solana-launch-sniper/internal/codec"
	"solana-launch-sniper/internal/discovery"
	"solana-launch-sniper/internal/domain"
	"solana-launch-sniper/internal/executor"
	"solana-launch-sniper/internal/risk"
	"solana-launch-sniper/internal/storage/memory"
)

type stubFeed struct {
	events chan *discovery.LaunchEvent
	err    error
}

func (f *stubFeed) Subscribe(ctx context.Context) (<-chan *discovery.LaunchEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

type stubTrader struct {
	mu     sync.Mutex
	orders []executor.Order
	fn     func(order executor.Order) (*executor.Result, error)
}

func (t *stubTrader) Execute(ctx context.Context, order executor.Order) (*executor.Result, error) {
	t.mu.Lock()
	t.orders = append(t.orders, order)
	t.mu.Unlock()
	if t.fn != nil {
		return t.fn(order)
	}
	return &executor.Result{
		Signature: "sig-1",
		Method:    domain.MethodBondingCurve,
		AmountIn:  order.Request.AmountIn,
		QuotedOut: 1_000_000_000,
		MinOut:    900_000_000,
		Price:     0.00005,
		Decimals:  6,
	}, nil
}

func (t *stubTrader) calls() []executor.Order {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]executor.Order(nil), t.orders...)
}

type stubTracker struct {
	mu       sync.Mutex
	tracked  []*domain.Position
	shutdown bool
}

func (t *stubTracker) Track(ctx context.Context, p *domain.Position, platform domain.Platform, creator string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracked = append(t.tracked, p)
}

func (t *stubTracker) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shutdown = true
}

func (t *stubTracker) positions() []*domain.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*domain.Position(nil), t.tracked...)
}

type allowAll struct{}

func (allowAll) Allow(ctx context.Context) error { return nil }
func (allowAll) CancelTrial()                    {}

func testGate(t *testing.T, limits risk.Limits) *risk.Gate {
	t.Helper()
	gate, err := risk.NewGate(context.Background(), limits, allowAll{}, memory.NewPositionStore(), zap.NewNop())
	require.NoError(t, err)
	return gate
}

func launchEvent(mint string) *discovery.LaunchEvent {
	return &discovery.LaunchEvent{
		Mint:      mint,
		Platform:  domain.PlatformBondingCurve,
		Developer: "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
		Signature: "launch-sig",
		Slot:      100,
	}
}

func newTestEngine(t *testing.T, feed discovery.Feed, gate *risk.Gate, trader Trader, tracker Tracker) *Engine {
	t.Helper()
	e, err := New(Options{
		Feed:    feed,
		Gate:    gate,
		Trader:  trader,
		Tracker: tracker,
		Config:  Config{BuyAmountSOL: 0.05, BuySlippage: 0.05},
		Logger:  zap.NewNop(),
	})
	require.NoError(t, err)
	return e
}

func runUntilClosed(t *testing.T, e *Engine, feed *stubFeed, events ...*discovery.LaunchEvent) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	for _, ev := range events {
		feed.events <- ev
	}
	close(feed.events)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop after feed closed")
	}
}

func TestRun_BuysAndTracksLaunch(t *testing.T) {
	feed := &stubFeed{events: make(chan *discovery.LaunchEvent)}
	gate := testGate(t, risk.DefaultLimits())
	trader := &stubTrader{}
	tracker := &stubTracker{}
	e := newTestEngine(t, feed, gate, trader, tracker)

	runUntilClosed(t, e, feed, launchEvent("mint-1"))

	orders := trader.calls()
	require.Len(t, orders, 1)
	assert.Equal(t, codec.WSOLMint, orders[0].Request.InputMint)
	assert.Equal(t, "mint-1", orders[0].Request.OutputMint)
	assert.Equal(t, uint64(50_000_000), orders[0].Request.AmountIn)
	assert.Equal(t, domain.SideBuy, orders[0].Request.Side)
	assert.True(t, orders[0].CurveEligible)

	tracked := tracker.positions()
	require.Len(t, tracked, 1)
	assert.Equal(t, "mint-1", tracked[0].Mint)
	assert.Equal(t, uint64(1_000_000_000), tracked[0].EntryAmount)
	assert.Equal(t, 0.00005, tracked[0].EntryPrice)
	assert.Equal(t, uint8(6), tracked[0].Decimals, "mint decimals ride from execution to the position")

	assert.Equal(t, 1, gate.OpenPositions())
	assert.True(t, tracker.shutdown, "run exit must stop monitors")
}

func TestRun_ReleasesReservationOnFailedBuy(t *testing.T) {
	feed := &stubFeed{events: make(chan *discovery.LaunchEvent)}
	gate := testGate(t, risk.DefaultLimits())
	trader := &stubTrader{fn: func(executor.Order) (*executor.Result, error) {
		return nil, errors.New("submitting: rpc down")
	}}
	tracker := &stubTracker{}
	e := newTestEngine(t, feed, gate, trader, tracker)

	runUntilClosed(t, e, feed, launchEvent("mint-1"))

	assert.Len(t, trader.calls(), 1)
	assert.Empty(t, tracker.positions())
	assert.Equal(t, 0, gate.OpenPositions())

	// The released mint is admissible again.
	require.NoError(t, gate.Admit(context.Background(), "mint-1", 50_000_000))
}

func TestRun_NoLiquidityIsSkip(t *testing.T) {
	feed := &stubFeed{events: make(chan *discovery.LaunchEvent)}
	gate := testGate(t, risk.DefaultLimits())
	trader := &stubTrader{fn: func(executor.Order) (*executor.Result, error) {
		return nil, executor.ErrNoLiquidity
	}}
	tracker := &stubTracker{}
	e := newTestEngine(t, feed, gate, trader, tracker)

	runUntilClosed(t, e, feed, launchEvent("mint-1"))

	assert.Empty(t, tracker.positions())
	assert.Equal(t, 0, gate.OpenPositions())
}

func TestRun_BlockedLaunchNeverTrades(t *testing.T) {
	feed := &stubFeed{events: make(chan *discovery.LaunchEvent)}
	limits := risk.DefaultLimits()
	limits.MaxSingleTradeSOL = 0.01
	gate := testGate(t, limits)
	trader := &stubTrader{}
	tracker := &stubTracker{}
	e := newTestEngine(t, feed, gate, trader, tracker)

	runUntilClosed(t, e, feed, launchEvent("mint-1"))

	assert.Empty(t, trader.calls())
	assert.Empty(t, tracker.positions())
}

func TestRun_ContextCancel(t *testing.T) {
	feed := &stubFeed{events: make(chan *discovery.LaunchEvent)}
	gate := testGate(t, risk.DefaultLimits())
	tracker := &stubTracker{}
	e := newTestEngine(t, feed, gate, &stubTrader{}, tracker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop on cancel")
	}
	assert.True(t, tracker.shutdown)
}

func TestRun_SubscribeError(t *testing.T) {
	feed := &stubFeed{err: errors.New("ws down")}
	gate := testGate(t, risk.DefaultLimits())
	e := newTestEngine(t, feed, gate, &stubTrader{}, &stubTracker{})

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscribing")
}

func TestNew_Validation(t *testing.T) {
	gate := testGate(t, risk.DefaultLimits())
	feed := &stubFeed{events: make(chan *discovery.LaunchEvent)}

	_, err := New(Options{Gate: gate, Trader: &stubTrader{}, Tracker: &stubTracker{}, Config: Config{BuyAmountSOL: 0.05}})
	assert.Error(t, err)

	_, err = New(Options{Feed: feed, Gate: gate, Trader: &stubTrader{}, Tracker: &stubTracker{}})
	assert.Error(t, err, "zero buy amount rejected")
}
