package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestLimiter(window time.Duration, keyCap, globalCap int) *Limiter {
	return New(Config{
		Window:        window,
		DefaultKeyCap: keyCap,
		GlobalCap:     globalCap,
	})
}

func TestLimiter_AdmitsUpToCap(t *testing.T) {
	l := newTestLimiter(time.Second, 3, 100)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx, "rpc", "sendTransaction"); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("calls under cap took %v, expected no delay", elapsed)
	}
}

func TestLimiter_DelaysOverCap(t *testing.T) {
	window := 300 * time.Millisecond
	l := newTestLimiter(window, 2, 100)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Wait(ctx, "rpc", "getAccountInfo"); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}

	// Third call within the window must wait until the oldest timestamp
	// leaves the window.
	start := time.Now()
	if err := l.Wait(ctx, "rpc", "getAccountInfo"); err != nil {
		t.Fatalf("Wait over cap: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < window-50*time.Millisecond {
		t.Errorf("over-cap call delayed only %v, want ~%v", elapsed, window)
	}
}

func TestLimiter_GlobalCapSharedAcrossKeys(t *testing.T) {
	window := 300 * time.Millisecond
	l := newTestLimiter(window, 100, 2)
	ctx := context.Background()

	if err := l.Wait(ctx, "rpc", "a"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := l.Wait(ctx, "jupiter", "b"); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	start := time.Now()
	if err := l.Wait(ctx, "rpc", "c"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < window-50*time.Millisecond {
		t.Errorf("global cap not enforced: delayed only %v", elapsed)
	}
}

func TestLimiter_SeparateKeysIndependent(t *testing.T) {
	l := newTestLimiter(time.Second, 1, 100)
	ctx := context.Background()

	if err := l.Wait(ctx, "rpc", "a"); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	start := time.Now()
	if err := l.Wait(ctx, "rpc", "b"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("independent key delayed %v", elapsed)
	}
}

func TestLimiter_SetConfigAppliesNewCaps(t *testing.T) {
	l := newTestLimiter(time.Second, 1, 100)
	ctx := context.Background()

	if err := l.Wait(ctx, "rpc", "a"); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	// A reload raises the per-key cap; the next call is admitted without
	// waiting out the original window.
	l.SetConfig(Config{Window: time.Second, DefaultKeyCap: 5, GlobalCap: 100})

	start := time.Now()
	if err := l.Wait(ctx, "rpc", "a"); err != nil {
		t.Fatalf("Wait after reload: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("raised cap still delayed %v", elapsed)
	}
}

func TestLimiter_SetConfigNormalizesZeroFields(t *testing.T) {
	l := newTestLimiter(time.Second, 1, 100)
	l.SetConfig(Config{})

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.config.Window != DefaultWindow || l.config.GlobalCap != DefaultGlobalCap || l.config.DefaultKeyCap != DefaultKeyCap {
		t.Errorf("config = %+v, want defaults", l.config)
	}
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := newTestLimiter(5*time.Second, 1, 100)

	if err := l.Wait(context.Background(), "rpc", "a"); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx, "rpc", "a")
	if err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestLimiter_ConcurrentCallers(t *testing.T) {
	l := newTestLimiter(200*time.Millisecond, 50, 100)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Wait(ctx, "rpc", "concurrent"); err != nil {
				t.Errorf("Wait: %v", err)
			}
		}()
	}
	wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	if got := len(l.calls["rpc:concurrent"]); got != 40 {
		t.Errorf("recorded %d calls, want 40", got)
	}
}
