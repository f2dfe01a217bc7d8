// Package forge talks to the GitHub REST API: release lookup for the
// documentation source, forking the aggregator, and opening pull requests.
package forge
