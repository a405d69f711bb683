package wait

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestForSucceedsImmediately(t *testing.T) {
	calls := 0
	err := For(context.Background(), time.Hour, time.Hour, func(ctx context.Context) (bool, error) {
		calls++
		return true, nil
	})
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 probe call, got %d", calls)
	}
}

func TestForSucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := For(context.Background(), time.Millisecond, time.Second, func(ctx context.Context) (bool, error) {
		calls++
		return calls >= 3, nil
	})
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	if calls < 3 {
		t.Errorf("expected at least 3 probe calls, got %d", calls)
	}
}

func TestForTimesOut(t *testing.T) {
	err := For(context.Background(), time.Millisecond, 10*time.Millisecond, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "not met within") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestForPropagatesProbeError(t *testing.T) {
	probeErr := errors.New("probe exploded")
	err := For(context.Background(), time.Millisecond, time.Second, func(ctx context.Context) (bool, error) {
		return false, probeErr
	})
	if !errors.Is(err, probeErr) {
		t.Errorf("expected probe error, got %v", err)
	}
}

func TestForHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := For(ctx, time.Millisecond, time.Second, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
