package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jpillora/backoff"

	"cryptoSpotBot/internal/ports"
)

// RunContinuous runs cycles until ctx is cancelled. Failed cycles back off
// exponentially; after MaxConsecutiveErrors failures in a row the loop stops
// with ErrCircuitOpen and a fatal notification. Cancellation returns nil.
func (b *Bot) RunContinuous(ctx context.Context) error {
	op := "RunContinuous"
	bo := &backoff.Backoff{
		Min:    b.cfg.ErrorBackoffMin,
		Max:    b.cfg.ErrorBackoffMax,
		Factor: 2,
	}
	b.setRunning(true)
	defer b.setRunning(false)

	b.logger.Info(ctx, op+": trading loop started", map[string]interface{}{
		"strategy":      b.strategy.Name(),
		"scan_interval": b.cfg.ScanInterval.String(),
		"max_errors":    b.cfg.MaxConsecutiveErrors,
	})

	for {
		err := b.safeCycle(ctx)
		if ctx.Err() != nil {
			b.logger.Info(ctx, op+": trading loop stopped")
			return nil
		}

		wait := b.cfg.ScanInterval
		if err != nil {
			failures := b.recordFailure()
			b.logger.Error(ctx, err, op+": cycle failed", map[string]interface{}{
				"consecutive_errors": failures,
				"max_errors":         b.cfg.MaxConsecutiveErrors,
			})
			if failures >= b.cfg.MaxConsecutiveErrors {
				msg := fmt.Sprintf("Trading loop stopped after %d consecutive errors: %v", failures, err)
				b.notifyError(context.WithoutCancel(ctx), msg)
				return fmt.Errorf("%w: %d consecutive errors: %w", ports.ErrCircuitOpen, failures, err)
			}
			b.notifyError(ctx, fmt.Sprintf("Trading cycle failed (%d/%d): %v", failures, b.cfg.MaxConsecutiveErrors, err))
			wait = bo.Duration()
		} else {
			b.recordSuccess()
			bo.Reset()
		}

		if err := b.sleep(ctx, wait); err != nil {
			b.logger.Info(ctx, op+": trading loop stopped")
			return nil
		}
	}
}

// safeCycle runs one cycle and turns a panic into an error.
func (b *Bot) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	_, err = b.RunCycle(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (b *Bot) setRunning(v bool) {
	b.mu.Lock()
	b.running = v
	b.mu.Unlock()
}

func (b *Bot) recordFailure() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cycles++
	b.lastCycle = b.now()
	b.consecutiveErrors++
	return b.consecutiveErrors
}

func (b *Bot) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cycles++
	b.lastCycle = b.now()
	b.consecutiveErrors = 0
}

// RunOnce runs a single cycle, for scheduled invocation.
func (b *Bot) RunOnce(ctx context.Context) (*CycleReport, error) {
	report, err := b.RunCycle(ctx)
	if err != nil {
		b.recordFailure()
		return report, err
	}
	b.recordSuccess()
	return report, nil
}
