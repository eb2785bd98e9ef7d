package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestEveryRunsImmediatelyAndOnTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int64
	done := make(chan struct{})

	go func() {
		Every(ctx, 5*time.Millisecond, "test", zap.NewNop(), func(context.Context) error {
			if runs.Add(1) >= 3 {
				cancel()
			}
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}

	if runs.Load() < 3 {
		t.Fatalf("expected at least 3 runs, got %d", runs.Load())
	}
}

func TestEveryKeepsRunningAfterTaskError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int64
	done := make(chan struct{})

	go func() {
		Every(ctx, 5*time.Millisecond, "test", zap.NewNop(), func(context.Context) error {
			if runs.Add(1) >= 2 {
				cancel()
			}
			return errors.New("pass failed")
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}

	if runs.Load() < 2 {
		t.Fatalf("task errors must not stop the loop, got %d runs", runs.Load())
	}
}
