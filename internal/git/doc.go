// Package git wraps go-git for the two checkouts a run needs: the documentation
// source pinned at a release tag, and a fork of the aggregator repository that
// receives the docset commit.
package git
