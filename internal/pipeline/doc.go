// Package pipeline runs the docset publication stages.
//
// The stages mirror the manual workflow for contributing a docset to an
// aggregator repository:
//
//	build:      clone, docs, icon, dash
//	contribute: fork, create-directory, remove-old, copy-contents,
//	            fill-forms, commit, push, pull-request
//
// Stages run strictly in this order and the run stops at the first failure.
// Every stage transition is recorded in the state store, published as an event
// and counted by the metrics recorder. The version used throughout comes from
// the pin file; Check compares it against the latest upstream release.
package pipeline
