package dockhand

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Endpoint is the parsed address of a container daemon: either the
// filesystem path of a Unix socket or an HTTP(S) host. Exactly one of
// Path and Host is populated. Endpoints are immutable values created by
// ParseEndpoint.
type Endpoint struct {
	// Scheme is "unix", "http" or "https".
	Scheme string

	// Host is the host[:port] of a TCP endpoint.
	Host string

	// Path is the socket path of a Unix endpoint.
	Path string
}

// ParseEndpoint classifies a daemon address of the form unix://<path>,
// http://host[:port] or https://host[:port]. The tcp:// scheme is
// accepted as an alias for http://, matching the conventional value of
// DOCKER_HOST. Parsing is pure and deterministic; an unrecognized
// scheme or an empty Unix socket path is reported as an invalid
// endpoint.
func ParseEndpoint(address string) (Endpoint, error) {
	const op = "parse endpoint"

	if path, ok := strings.CutPrefix(address, "unix://"); ok {
		if path == "" {
			return Endpoint{}, newError(KindInvalidEndpoint, op, fmt.Errorf("unix endpoint %q has no socket path", address))
		}
		return Endpoint{Scheme: "unix", Path: path}, nil
	}

	u, err := url.Parse(address)
	if err != nil {
		return Endpoint{}, newError(KindInvalidEndpoint, op, err)
	}

	scheme := u.Scheme
	if scheme == "tcp" {
		scheme = "http"
	}

	switch scheme {
	case "http", "https":
		if u.Host == "" {
			return Endpoint{}, newError(KindInvalidEndpoint, op, fmt.Errorf("endpoint %q has no host", address))
		}
		return Endpoint{Scheme: scheme, Host: u.Host}, nil
	default:
		return Endpoint{}, newError(KindInvalidEndpoint, op, fmt.Errorf("unsupported scheme %q in endpoint %q", u.Scheme, address))
	}
}

// IsUnix reports whether the endpoint is a Unix domain socket.
func (e Endpoint) IsUnix() bool {
	return e.Scheme == "unix"
}

// UsesTLS reports whether connections to the endpoint are wrapped in a
// TLS session before any request is sent.
func (e Endpoint) UsesTLS() bool {
	return e.Scheme == "https"
}

// String returns the endpoint in the same form ParseEndpoint accepts.
func (e Endpoint) String() string {
	if e.IsUnix() {
		return "unix://" + e.Path
	}
	return e.Scheme + "://" + e.Host
}

// hostPort returns the dial address of a TCP endpoint, defaulting the
// port from the scheme when the configuration omitted one.
func (e Endpoint) hostPort() string {
	if _, _, err := net.SplitHostPort(e.Host); err == nil {
		return e.Host
	}
	host := strings.Trim(e.Host, "[]")
	if e.UsesTLS() {
		return net.JoinHostPort(host, "443")
	}
	return net.JoinHostPort(host, "80")
}
