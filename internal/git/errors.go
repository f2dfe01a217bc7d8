package git

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
)

// ErrNothingToCommit is returned by CommitAll when the tree has no changes.
var ErrNothingToCommit = errors.New("nothing to commit")

// AuthError is a rejected credential or missing permission.
type AuthError struct {
	Op, URL string
	Err     error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError is a missing repository, branch or tag.
type NotFoundError struct {
	Op, URL string
	Err     error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found %s: %v", e.Op, e.URL, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

// NetworkError is a transient transport failure.
type NetworkError struct {
	Op, URL string
	Err     error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s network error for %s: %v", e.Op, e.URL, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// classify wraps go-git failures into typed, categorized errors.
func classify(op, url string, err error) error {
	if err == nil {
		return nil
	}
	url = redact(url)

	var noMatch git.NoMatchingRefSpecError
	var netErr net.Error
	l := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrInvalidAuthMethod):
		return derrors.GitAuthError(url, &AuthError{Op: op, URL: url, Err: err})
	case errors.Is(err, transport.ErrRepositoryNotFound),
		errors.Is(err, plumbing.ErrReferenceNotFound),
		errors.As(err, &noMatch),
		strings.Contains(l, "couldn't find remote ref"):
		return derrors.Wrap(&NotFoundError{Op: op, URL: url, Err: err}, derrors.CategoryGit, derrors.SeverityFatal, "git reference not found").
			WithContext("repository", url)
	case errors.As(err, &netErr),
		strings.Contains(l, "connection reset"),
		strings.Contains(l, "connection refused"),
		strings.Contains(l, "unexpected eof"),
		strings.Contains(l, "timeout"):
		return derrors.GitNetworkError(url, &NetworkError{Op: op, URL: url, Err: err})
	default:
		return derrors.Wrap(err, derrors.CategoryGit, derrors.SeverityFatal, op+" failed").
			WithContext("repository", url)
	}
}
