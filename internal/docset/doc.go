// Package docset lays out a generated docset inside the aggregator repository:
// the per-docset directory, the tarball, icons, docset.json and README.md.
package docset
