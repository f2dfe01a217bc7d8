package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
	"git.home.luguber.info/inful/docsetbot/internal/logfields"
)

// sleep is replaced in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the policy's
// retries are exhausted. Only errors classified as retryable are retried.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := p.Delay(attempt)
			slog.Debug("Retrying operation",
				slog.String("operation", op),
				logfields.Attempt(attempt),
				slog.Duration("delay", delay),
				logfields.Error(err))
			if serr := sleep(ctx, delay); serr != nil {
				return fmt.Errorf("%s: %w (last error: %w)", op, serr, err)
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !derrors.IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		if attempt >= p.MaxRetries {
			return derrors.Wrap(err, derrors.GetCategory(err), derrors.SeverityError,
				fmt.Sprintf("%s failed after %d attempts", op, attempt+1)).
				WithContext("operation", op)
		}
	}
}
