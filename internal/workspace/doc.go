// Package workspace manages the per-run working directory that holds the
// documentation source checkout, the generated docset and the aggregator fork.
package workspace
