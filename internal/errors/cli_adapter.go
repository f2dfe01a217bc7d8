package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// exitCodes maps categories to process exit statuses. Anything unlisted exits 1.
var exitCodes = map[ErrorCategory]int{
	CategoryValidation: 2,
	CategoryAuth:       5,
	CategoryConfig:     7,
	CategoryNetwork:    8,
	CategoryGit:        8,
	CategoryForge:      8,
	CategoryInternal:   10,
	CategoryGenerate:   11,
	CategoryFileSystem: 11,
	CategoryRuntime:    12,
}

// CLIErrorAdapter turns command errors into a message on stderr and an exit status.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter returns an adapter writing to stderr. A nil logger uses slog.Default.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger, out: os.Stderr, exit: os.Exit}
}

// ExitCodeFor returns the exit status for err; nil maps to 0.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	ce, ok := AsClassified(err)
	if !ok {
		return 1
	}
	if code, known := exitCodes[ce.Category]; known {
		return code
	}
	return 1
}

// FormatError renders err for the terminal. User-correctable categories show
// only the message unless the adapter is verbose.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	ce, ok := AsClassified(err)
	switch {
	case !ok:
		return "Error: " + err.Error()
	case a.verbose:
		return ce.Error()
	case ce.Category == CategoryConfig, ce.Category == CategoryValidation, ce.Category == CategoryAuth:
		return ce.Message
	default:
		return fmt.Sprintf("%s: %s", ce.Category, ce.Message)
	}
}

// HandleError prints err, logs its details when they matter and exits.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	if a.loggable(err) {
		a.log(err)
	}
	_, _ = fmt.Fprintln(a.out, a.FormatError(err))
	a.exit(a.ExitCodeFor(err))
}

func (a *CLIErrorAdapter) loggable(err error) bool {
	ce, ok := AsClassified(err)
	if a.verbose || !ok {
		return true
	}
	return ce.Severity == SeverityFatal || ce.Category == CategoryInternal || ce.Category == CategoryRuntime
}

func (a *CLIErrorAdapter) log(err error) {
	ce, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Command failed", slog.String("error", err.Error()))
		return
	}
	attrs := make([]slog.Attr, 0, len(ce.Context)+3)
	attrs = append(attrs, slog.String("category", string(ce.Category)))
	for k, v := range ce.Context {
		attrs = append(attrs, slog.Any(k, v))
	}
	if ce.Retryable {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	if ce.Cause != nil {
		attrs = append(attrs, slog.String("cause", ce.Cause.Error()))
	}
	level := slog.LevelError
	switch ce.Severity {
	case SeverityInfo:
		level = slog.LevelInfo
	case SeverityWarning:
		level = slog.LevelWarn
	}
	a.logger.LogAttrs(context.Background(), level, ce.Message, attrs...)
}
