// Package errors classifies failures so that the pipeline, the daemon and the
// CLI agree on what went wrong, whether it is worth retrying and how the
// process should exit.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory groups failures by the subsystem that produced them.
type ErrorCategory string

const (
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryAuth       ErrorCategory = "auth"
	CategoryNetwork    ErrorCategory = "network"
	CategoryGit        ErrorCategory = "git"
	CategoryForge      ErrorCategory = "forge"
	CategoryGenerate   ErrorCategory = "generate"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryRuntime    ErrorCategory = "runtime"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity tells callers whether processing can continue.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
	SeverityInfo    ErrorSeverity = "info"
)

// ContextFields carries key/value details attached to a ClassifiedError.
type ContextFields map[string]any

// ClassifiedError wraps a cause with a category, a severity and a retry hint.
type ClassifiedError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

func (e *ClassifiedError) Error() string {
	head := fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
	if e.Cause == nil {
		return head
	}
	return head + ": " + e.Cause.Error()
}

func (e *ClassifiedError) Unwrap() error { return e.Cause }

// WithContext records a detail on the error and returns it for chaining.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	if e.Context == nil {
		e.Context = ContextFields{}
	}
	e.Context[key] = value
	return e
}

// New returns an error without an underlying cause.
func New(category ErrorCategory, severity ErrorSeverity, message string) *ClassifiedError {
	return &ClassifiedError{Category: category, Severity: severity, Message: message}
}

// Wrap classifies err.
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *ClassifiedError {
	ce := New(category, severity, message)
	ce.Cause = err
	return ce
}

// WrapRetryable classifies err and marks it as transient.
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *ClassifiedError {
	ce := Wrap(err, category, severity, message)
	ce.Retryable = true
	return ce
}

// AsClassified returns the outermost ClassifiedError in err's chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	ok := stderrors.As(err, &ce)
	return ce, ok
}

// IsCategory reports whether the outermost classification of err is category.
func IsCategory(err error, category ErrorCategory) bool {
	ce, ok := AsClassified(err)
	return ok && ce.Category == category
}

// IsRetryable reports whether the outermost classification of err is transient.
// Unclassified errors are never retried.
func IsRetryable(err error) bool {
	ce, ok := AsClassified(err)
	return ok && ce.Retryable
}

// GetCategory returns the category of err, or CategoryInternal when it carries none.
func GetCategory(err error) ErrorCategory {
	if ce, ok := AsClassified(err); ok {
		return ce.Category
	}
	return CategoryInternal
}
