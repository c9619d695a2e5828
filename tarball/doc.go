// Package tarball builds the tar archives uploaded to a container
// daemon as build contexts.
//
// Build walks a directory tree in deterministic lexicographic order,
// applies dockerignore-style exclusion rules, and preserves relative
// paths, permission bits and symlinks. The tar stream can be emitted
// raw, gzip-compressed, or compressed in parallel across a bounded
// worker pool.
package tarball
