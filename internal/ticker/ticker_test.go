package ticker

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewTicker(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	ticker := NewTicker(func(context.Context) error { return nil }, 1*time.Second, 5*time.Second, logger)

	if ticker == nil {
		t.Fatal("expected ticker to be created")
	}

	if ticker.interval != 1*time.Second {
		t.Errorf("expected interval 1s, got %v", ticker.interval)
	}
	if ticker.timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", ticker.timeout)
	}
}

func TestTickerStart(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})

	var runs int32
	refresh := func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}

	// Create ticker with short interval for testing
	ticker := NewTicker(refresh, 100*time.Millisecond, time.Second, logger)

	// Start ticker with context
	ctx, cancel := context.WithTimeout(context.Background(), 450*time.Millisecond)
	defer cancel()

	done := make(chan bool)
	go func() {
		ticker.Start(ctx)
		done <- true
	}()

	// Wait for context to timeout
	<-ctx.Done()

	// Wait for ticker to stop
	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Error("ticker did not stop after context cancel")
	}

	// one immediate run plus roughly four ticks
	if n := atomic.LoadInt32(&runs); n < 3 {
		t.Errorf("expected at least 3 refreshes, got %d", n)
	}
}

func TestTickerSurvivesRefreshErrors(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})

	var runs int32
	refresh := func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return errors.New("upstream unavailable")
	}

	ticker := NewTicker(refresh, 20*time.Millisecond, time.Second, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	ticker.Start(ctx)

	if n := atomic.LoadInt32(&runs); n < 2 {
		t.Errorf("expected refresh to keep running after errors, got %d runs", n)
	}
}

func TestTickerRunTimeout(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})

	var sawDeadline int32
	refresh := func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			atomic.StoreInt32(&sawDeadline, 1)
		}
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := NewTicker(refresh, time.Hour, 10*time.Millisecond, logger)

	start := time.Now()
	ticker.run(context.Background())
	if time.Since(start) > time.Second {
		t.Error("refresh was not bounded by the timeout")
	}
	if atomic.LoadInt32(&sawDeadline) != 1 {
		t.Error("expected refresh context to carry a deadline")
	}
}
