package retry

import (
	"errors"
	"time"

	"git.home.luguber.info/inful/docsetbot/internal/config"
)

// Policy is the backoff schedule for transient forge and git failures.
type Policy struct {
	Mode       config.RetryBackoffMode
	Initial    time.Duration // delay before the first retry
	Max        time.Duration // ceiling for every delay
	MaxRetries int           // retries after the first attempt
}

// DefaultPolicy retries twice with a linear 1s step capped at 30s.
func DefaultPolicy() Policy {
	return Policy{
		Mode:       config.RetryBackoffLinear,
		Initial:    time.Second,
		Max:        30 * time.Second,
		MaxRetries: 2,
	}
}

// NewPolicy overlays the given settings on DefaultPolicy. Non-positive
// durations, a negative retry count and unknown modes keep the default.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if mode.Valid() {
		p.Mode = mode
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	p.Initial = min(p.Initial, p.Max)
	return p
}

// FromConfig builds the policy described by the retry section of cfg.
func FromConfig(cfg *config.Config) Policy {
	initial, maxDelay := cfg.RetryDelays()
	return NewPolicy(cfg.Retry.Backoff, initial, maxDelay, cfg.Retry.MaxRetries)
}

// Delay is the wait before retry n, counting from 1.
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case config.RetryBackoffFixed:
		d = p.Initial
	case config.RetryBackoffExponential:
		d = p.Initial
		for i := 1; i < n && d < p.Max; i++ {
			d *= 2
		}
	default:
		d = p.Initial * time.Duration(n)
	}
	return min(d, p.Max)
}

// Validate rejects policies Do cannot apply.
func (p Policy) Validate() error {
	var errs []error
	if p.Initial <= 0 {
		errs = append(errs, errors.New("retry: initial delay must be positive"))
	}
	if p.Max <= 0 {
		errs = append(errs, errors.New("retry: max delay must be positive"))
	}
	if p.MaxRetries < 0 {
		errs = append(errs, errors.New("retry: max retries cannot be negative"))
	}
	return errors.Join(errs...)
}
