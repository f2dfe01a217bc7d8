package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsetbot/internal/config"
	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
)

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = orig })
	return &slept
}

func TestDoSucceedsAfterRetryableFailures(t *testing.T) {
	slept := noSleep(t)
	p := NewPolicy(config.RetryBackoffLinear, time.Second, 10*time.Second, 3)

	calls := 0
	err := Do(t.Context(), p, "fetch", func(context.Context) error {
		calls++
		if calls < 3 {
			return derrors.GitNetworkError("origin", errors.New("connection reset"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	noSleep(t)
	perm := derrors.GitAuthError("origin", errors.New("401"))

	calls := 0
	err := Do(t.Context(), DefaultPolicy(), "push", func(context.Context) error {
		calls++
		return perm
	})

	assert.Equal(t, 1, calls)
	assert.Same(t, perm, err)
}

func TestDoExhaustsRetries(t *testing.T) {
	noSleep(t)
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 2)

	calls := 0
	err := Do(t.Context(), p, "latest-release", func(context.Context) error {
		calls++
		return derrors.ForgeRateLimited(errors.New("403 rate limit"))
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, derrors.IsCategory(err, derrors.CategoryForge))
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	calls := 0
	err := Do(ctx, NewPolicy(config.RetryBackoffFixed, time.Hour, time.Hour, 5), "clone", func(context.Context) error {
		calls++
		cancel()
		return derrors.GitNetworkError("origin", errors.New("timeout"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
