package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

// TestReconnect_InitialDelay tests first retry uses initial delay
func TestReconnect_InitialDelay(t *testing.T) {
	cfg := ReconnectConfig{
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          1 * time.Second,
		BackoffMultiplier: 2.0,
		JitterPercent:     0, // No jitter for predictable timing
	}

	rm := NewReconnectManager(cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	attemptTimes := []time.Time{}

	connectFunc := func(_ context.Context) error {
		attemptTimes = append(attemptTimes, time.Now())
		if len(attemptTimes) >= 2 {
			cancel() // Stop after 2 attempts
		}
		return errors.New("connection failed")
	}

	_ = rm.Reconnect(ctx, connectFunc)

	if len(attemptTimes) < 2 {
		t.Fatalf("expected at least 2 attempts, got %d", len(attemptTimes))
	}

	// Allow generous tolerance for system timing variability.
	delay := attemptTimes[1].Sub(attemptTimes[0])
	if delay < 50*time.Millisecond || delay > 400*time.Millisecond {
		t.Errorf("expected ~100-200ms between first attempts, got %v", delay)
	}
}

// TestReconnect_Success tests a succeeding connect resets backoff
func TestReconnect_Success(t *testing.T) {
	cfg := ReconnectConfig{
		InitialDelay:      10 * time.Millisecond,
		MaxDelay:          100 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterPercent:     0,
	}

	rm := NewReconnectManager(cfg, zap.NewNop())

	attempts := 0
	connectFunc := func(_ context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection failed")
		}
		return nil
	}

	err := rm.Reconnect(context.Background(), connectFunc)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}

	rm.mu.Lock()
	backoff := rm.currentBackoff
	rm.mu.Unlock()
	if backoff != cfg.InitialDelay {
		t.Errorf("backoff after success = %v, want reset to %v", backoff, cfg.InitialDelay)
	}
}

// TestReconnect_MaxAttempts tests the attempt budget is enforced
func TestReconnect_MaxAttempts(t *testing.T) {
	cfg := ReconnectConfig{
		InitialDelay:      5 * time.Millisecond,
		MaxDelay:          20 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterPercent:     0,
		MaxAttempts:       4,
	}

	rm := NewReconnectManager(cfg, zap.NewNop())

	attempts := 0
	connectFunc := func(_ context.Context) error {
		attempts++
		return errors.New("connection refused")
	}

	err := rm.Reconnect(context.Background(), connectFunc)
	if !errors.Is(err, ErrReconnectExhausted) {
		t.Fatalf("expected ErrReconnectExhausted, got %v", err)
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want exactly 4", attempts)
	}
}

// TestReconnect_ZeroMaxAttemptsRetriesForever tests zero means unbounded
func TestReconnect_ZeroMaxAttemptsRetriesForever(t *testing.T) {
	cfg := ReconnectConfig{
		InitialDelay:      1 * time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterPercent:     0,
		MaxAttempts:       0,
	}

	rm := NewReconnectManager(cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	connectFunc := func(_ context.Context) error {
		attempts++
		if attempts >= 20 {
			cancel()
		}
		return errors.New("connection failed")
	}

	err := rm.Reconnect(ctx, connectFunc)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts < 20 {
		t.Errorf("attempts = %d, want at least 20", attempts)
	}
}

// TestReconnect_ContextCancellation tests cancel stops retries promptly
func TestReconnect_ContextCancellation(t *testing.T) {
	cfg := ReconnectConfig{
		InitialDelay:      10 * time.Second, // Long delay: cancel must win
		MaxDelay:          time.Minute,
		BackoffMultiplier: 2.0,
		JitterPercent:     0,
	}

	rm := NewReconnectManager(cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := rm.Reconnect(ctx, func(_ context.Context) error {
		return errors.New("never reached")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation took %v, want prompt exit", elapsed)
	}
}

// TestIncrementBackoff_CapsAtMax tests backoff never exceeds MaxDelay
func TestIncrementBackoff_CapsAtMax(t *testing.T) {
	cfg := ReconnectConfig{
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          300 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterPercent:     0,
	}

	rm := NewReconnectManager(cfg, zap.NewNop())

	for i := 0; i < 10; i++ {
		rm.incrementBackoff()
	}

	rm.mu.Lock()
	backoff := rm.currentBackoff
	rm.mu.Unlock()

	if backoff != cfg.MaxDelay {
		t.Errorf("backoff = %v, want capped at %v", backoff, cfg.MaxDelay)
	}
}
