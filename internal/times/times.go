// Package times provides utility functions related to times and timers.
package times

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"chansync/internal/domain/logger"
)

// WaitTime sleeps for d unless ctx is done first.
func WaitTime(ctx context.Context, d time.Duration, reason string) error {
	if d <= 0 {
		return nil
	}
	logger.Pl.I("Sleeping %v %s", d.Round(time.Second), reason)

	waitTimer := time.NewTimer(d)
	defer waitTimer.Stop()

	select {
	case <-waitTimer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while sleeping %s: %w", reason, context.Cause(ctx))
	}
}

// RandomSecsDuration returns a random duration between 0 and s seconds.
func RandomSecsDuration(s int) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(rand.IntN(s+1)) * time.Second
}
