package forge

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	gh "github.com/google/go-github/v80/github"

	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
)

var (
	// ErrNotFound signals that the repository or resource does not exist or is not visible.
	ErrNotFound = errors.New("forge: not found")
	// ErrNoRelease signals that a repository has no published release.
	ErrNoRelease = errors.New("forge: no published release")
)

// APIError is a non-success GitHub API response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// wrapError converts go-github errors into classified errors.
func (c *Client) wrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var rateLimitErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateLimitErr) || errors.As(err, &abuseErr) {
		return derrors.ForgeRateLimited(err).
			WithContext("operation", operation).
			WithContext("remaining", c.limiter.Remaining()).
			WithContext("reset_at", c.limiter.ResetTime())
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		apiErr := &APIError{StatusCode: ghErr.Response.StatusCode, Message: ghErr.Message}
		if ghErr.Response.Request != nil {
			apiErr.URL = ghErr.Response.Request.URL.String()
		}
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			return derrors.Wrap(apiErr, derrors.CategoryAuth, derrors.SeverityFatal, "forge authentication failed").
				WithContext("operation", operation)
		case apiErr.StatusCode == http.StatusNotFound:
			return derrors.ForgeRequestFailed(operation, fmt.Errorf("%w: %w", ErrNotFound, apiErr))
		case apiErr.StatusCode >= http.StatusInternalServerError:
			return derrors.WrapRetryable(apiErr, derrors.CategoryForge, derrors.SeverityWarning, "forge server error").
				WithContext("operation", operation)
		default:
			return derrors.ForgeRequestFailed(operation, apiErr)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return derrors.NetworkTimeout(c.gh.BaseURL.String(), err).WithContext("operation", operation)
	}

	return derrors.ForgeRequestFailed(operation, err)
}

// IsNotFound reports whether err signals a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
