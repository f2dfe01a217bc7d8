// Package daemon keeps a docset current: a cron job checks for new releases of
// the documentation source and runs the pipeline when the pin moves or the
// pinned version was never published. An admin HTTP server exposes metrics,
// health and run history, and configuration edits are picked up live.
package daemon
