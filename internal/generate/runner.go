package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
	"git.home.luguber.info/inful/docsetbot/internal/logfields"
)

// ErrBinaryNotFound signals that an external tool is missing from PATH.
var ErrBinaryNotFound = errors.New("binary not found in PATH")

// Command is one invocation of an external tool.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  map[string]string // added to the process environment
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes external commands. Tests swap in a fake.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands as child processes and streams their output to slog.
type ExecRunner struct {
	// TailLines is how many trailing output lines are kept for error messages.
	TailLines int
}

// NewExecRunner returns a runner keeping the last 20 output lines for errors.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{TailLines: 20}
}

func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	path, err := exec.LookPath(c.Name)
	if err != nil {
		return derrors.GeneratorFailed(c.Name, fmt.Errorf("%w: %w", ErrBinaryNotFound, err))
	}

	out := &logWriter{command: c.Name, max: r.TailLines}
	cmd := exec.CommandContext(ctx, path, c.Args...) // #nosec G204 -- commands come from configuration
	cmd.Dir = c.Dir
	cmd.Env = mergeEnv(os.Environ(), c.Env)
	cmd.Stdout = out
	cmd.Stderr = out

	slog.Info("Running command", logfields.Command(c.String()), logfields.Path(c.Dir))
	err = cmd.Run()
	out.flush()
	if err != nil {
		if ctx.Err() != nil {
			return derrors.GeneratorFailed(c.String(), ctx.Err())
		}
		return derrors.GeneratorFailed(c.String(), fmt.Errorf("%w\n%s", err, out.tailString()))
	}
	return nil
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, overridden := extra[name]; !overridden {
			env = append(env, kv)
		}
	}
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// logWriter forwards complete output lines to the debug log and keeps a tail.
type logWriter struct {
	mu      sync.Mutex
	command string
	buf     bytes.Buffer
	tail    []string
	max     int
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Incomplete line stays buffered.
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.emit(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

func (w *logWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if rest := w.buf.String(); rest != "" {
		w.emit(rest)
		w.buf.Reset()
	}
}

func (w *logWriter) emit(line string) {
	slog.Debug(line, logfields.Command(w.command))
	if w.max <= 0 {
		return
	}
	w.tail = append(w.tail, line)
	if len(w.tail) > w.max {
		w.tail = w.tail[len(w.tail)-w.max:]
	}
}

func (w *logWriter) tailString() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.Join(w.tail, "\n")
}
