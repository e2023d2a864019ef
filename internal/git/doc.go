// Package git reads repository state for build provenance.
package git
