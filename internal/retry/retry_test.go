package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func quick(attempts int) Config {
	return Config{
		Attempts:       attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoSuccessFirstTry(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), quick(3), nil, func(context.Context) error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("Do() = %v after %d calls, want nil after 1", err, calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), quick(3), nil, func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Do() = %v, want wrapped boom", err)
	}
	if calls != 3 {
		t.Fatalf("made %d calls, want 3", calls)
	}
}

func TestDoPermanentStops(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), quick(5), nil, func(context.Context) error {
		calls++
		return Permanent(boom)
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("Do() = %v after %d calls, want boom after 1", err, calls)
	}
}

func TestDoRecovers(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), quick(3), nil, func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("Do() = %v after %d calls, want nil after 2", err, calls)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{Attempts: 10, InitialBackoff: time.Hour, Multiplier: 1}

	calls := 0
	err := Do(ctx, cfg, nil, func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("Do() = %v after %d calls, want context.Canceled after 1", err, calls)
	}
}
