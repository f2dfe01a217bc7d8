// Package generate drives the external documentation build and the docset
// generator, and prepares the docset icons.
package generate
