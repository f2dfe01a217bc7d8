package config

import "strings"

// RetryBackoffMode selects how the delay grows between attempts.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// Valid reports whether m names a supported mode.
func (m RetryBackoffMode) Valid() bool {
	switch m {
	case RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential:
		return true
	}
	return false
}

// NormalizeRetryBackoff trims and lowercases raw. Unknown values are kept so
// validation can report them.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return RetryBackoffMode(strings.ToLower(strings.TrimSpace(raw)))
}
