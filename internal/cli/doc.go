// Package cli implements the dockhand command line interface.
//
// It resolves daemon connection settings from flags and the standard
// DOCKER_* environment variables, and exposes commands for issuing raw
// requests and packaging build-context archives.
package cli
