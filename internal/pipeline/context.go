package pipeline

import (
	"context"

	"git.home.luguber.info/inful/docsetbot/internal/forge"
	"git.home.luguber.info/inful/docsetbot/internal/pin"
)

// runContext carries what stages of one run learn about the world.
type runContext struct {
	ctx     context.Context
	id      string
	pin     pin.Pin
	version string

	upstream *forge.Repository
	fork     *forge.Repository
	pr       *forge.PullRequest

	notes map[string]string
}

// note attaches a key/value to the current stage's success event.
func (rc *runContext) note(key, value string) {
	if rc.notes == nil {
		rc.notes = make(map[string]string)
	}
	rc.notes[key] = value
}

func (rc *runContext) takeNotes() map[string]string {
	n := rc.notes
	rc.notes = nil
	return n
}
