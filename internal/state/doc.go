// Package state records pipeline runs and their stage events in SQLite.
//
// A run covers one invocation of the pipeline for a (library, version) pair.
// Every stage start and finish is appended as an event, so a run's history can
// be replayed with EventsForRun. The published pull request URL is kept on the
// run row, which lets later invocations detect that a version was already
// contributed.
package state
