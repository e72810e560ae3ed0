package interaction

import (
	"context"
	"fmt"
	"time"

	"github.com/JustJay7/uyap-extractor/internal/browser"
)

// Condition is polled by WaitUntil. Returning an error stops the wait
// immediately with that error.
type Condition func() (bool, error)

// WaitUntil polls cond every PollInterval until it reports true, returns an
// error, the timeout elapses (browser.ErrTimeout) or ctx is done.
func (c *Controller) WaitUntil(ctx context.Context, timeout time.Duration, cond Condition) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		ok, err := cond()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w after %s", browser.ErrTimeout, timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Settle pauses for d. It is reserved for the places where the portal
// offers nothing to wait on, such as re-opening a widget it just rebuilt.
func (c *Controller) Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
