package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/tracker-probe/internal/browser"
)

// condition is polled by waitUntil.
type condition func(ctx context.Context) (bool, error)

// waitUntil polls cond every WaitInterval until it holds or timeout elapses.
// It reports false on timeout. Errors from individual polls are retried;
// the last one is returned on timeout unless it was a missing element.
func (p *Prober) waitUntil(ctx context.Context, timeout time.Duration, cond condition) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error

	for {
		ok, err := cond(waitCtx)
		if err == nil && ok {
			return true, nil
		}

		lastErr = err

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return false, err
			}

			if lastErr != nil && !errors.Is(lastErr, browser.ErrNoSuchElement) && !errors.Is(lastErr, context.DeadlineExceeded) {
				return false, lastErr
			}

			return false, nil
		case <-time.After(p.timing.WaitInterval):
		}
	}
}

// present holds once loc matches at least one element.
func (p *Prober) present(loc browser.Locator) condition {
	return func(ctx context.Context) (bool, error) {
		n, err := p.page.Count(ctx, loc)
		return n > 0, err
	}
}

// visible holds once the first match of loc is visible.
func (p *Prober) visible(loc browser.Locator) condition {
	return func(ctx context.Context) (bool, error) {
		n, err := p.page.Count(ctx, loc)
		if err != nil || n == 0 {
			return false, err
		}

		return p.page.Visible(ctx, loc, 0)
	}
}

func (p *Prober) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// reasonError carries a human readable failure reason while still matching
// its sentinel through errors.Is.
type reasonError struct {
	kind   error
	reason string
}

func (e *reasonError) Error() string { return e.reason }
func (e *reasonError) Unwrap() error { return e.kind }

func reasonf(kind error, format string, args ...any) error {
	return &reasonError{kind: kind, reason: fmt.Sprintf(format, args...)}
}
