package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyLibrary    = "library"
	KeyVersion    = "version"
	KeyTag        = "tag"
	KeyRepo       = "repository"
	KeyBranch     = "branch"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyCommand    = "command"
	KeyDurationMS = "duration_ms"
	KeyAttempt    = "attempt"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Library(name string) slog.Attr    { return slog.String(KeyLibrary, name) }
func Version(v string) slog.Attr       { return slog.String(KeyVersion, v) }
func Tag(t string) slog.Attr           { return slog.String(KeyTag, t) }
func Repository(r string) slog.Attr    { return slog.String(KeyRepo, r) }
func Branch(b string) slog.Attr        { return slog.String(KeyBranch, b) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Command(c string) slog.Attr       { return slog.String(KeyCommand, c) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Attempt(n int) slog.Attr          { return slog.Int(KeyAttempt, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
