package pipeline

import (
	"context"
	"errors"
	"time"
)

// ErrInactive means the work invocation produced no observable activity
// within the watchdog threshold and was aborted.
var ErrInactive = errors.New("work invocation inactive")

// runWithWatchdog runs fn with a child context that is canceled if fn
// reports no activity (via the onActivity callback handed to it) for
// longer than timeout. A zero timeout disables the watchdog.
func runWithWatchdog(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, onActivity func()) error) error {
	if timeout <= 0 {
		return fn(ctx, func() {})
	}

	childCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	activity := make(chan struct{}, 1)
	onActivity := func() {
		select {
		case activity <- struct{}{}:
		default:
		}
	}

	fired := make(chan struct{})
	watchdogDone := make(chan struct{})
	go func() {
		defer close(watchdogDone)
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		for {
			select {
			case <-childCtx.Done():
				return
			case <-activity:
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(timeout)
			case <-timer.C:
				close(fired)
				cancel()
				return
			}
		}
	}()

	err := fn(childCtx, onActivity)
	cancel()
	<-watchdogDone

	select {
	case <-fired:
		// The abort belongs to the watchdog, not the caller.
		if ctx.Err() == nil {
			return ErrInactive
		}
	default:
	}
	return err
}
