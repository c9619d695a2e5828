// Package dockhand provides the transport layer for talking to a
// container-management daemon (Docker- or Podman-compatible) over a
// Unix domain socket or a TCP/TLS endpoint.
//
// A Connection is constructed from an Endpoint and carries all of its
// configuration (TLS material, timeouts, body-size limits) explicitly,
// so multiple connections with different trust material can coexist in
// one process. Requests are assembled with NewRequest and dispatched
// with Connection.Send; responses can be buffered with ReadAll or pulled
// lazily with Stream. The tarball subpackage builds the compressed
// build-context archives uploaded through this transport.
package dockhand
