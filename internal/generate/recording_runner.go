package generate

import (
	"context"
	"sync"
)

// RecordingRunner records commands instead of executing them. An optional
// Handler simulates the command's effect on disk.
type RecordingRunner struct {
	mu       sync.Mutex
	commands []Command
	Handler  func(ctx context.Context, cmd Command) error
}

func (r *RecordingRunner) Run(ctx context.Context, cmd Command) error {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()
	if r.Handler != nil {
		return r.Handler(ctx, cmd)
	}
	return nil
}

// Commands returns the recorded commands in order.
func (r *RecordingRunner) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}
