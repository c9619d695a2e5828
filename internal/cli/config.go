package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/ryanmoran/dockhand"
)

// DefaultHost is the daemon address used when neither --host nor
// DOCKER_HOST is set.
const DefaultHost = "unix:///var/run/docker.sock"

// options holds the raw persistent flag values before resolution
// against the environment.
type options struct {
	host          string
	timeout       time.Duration
	maxBody       string
	tlsCA         string
	tlsCert       string
	tlsKey        string
	tlsSkipVerify bool
	verbose       bool
}

type clientConfig struct {
	Host        string
	TLS         *dockhand.TLSOptions
	Timeout     time.Duration
	MaxBodySize int64
	Verbose     bool
}

// resolveConfig combines flag values with the environment, following
// the conventions of the docker CLI: flags win, then DOCKER_HOST,
// DOCKER_CERT_PATH and DOCKER_TLS_VERIFY, then defaults.
func resolveConfig(opts options, environ []string) (clientConfig, error) {
	lookup := make(map[string]string)
	for _, variable := range environ {
		if key, value, ok := strings.Cut(variable, "="); ok {
			lookup[key] = value
		}
	}

	host := opts.host
	if host == "" {
		host = lookup["DOCKER_HOST"]
	}
	if host == "" {
		host = DefaultHost
	}

	config := clientConfig{
		Host:    host,
		Timeout: opts.timeout,
		Verbose: opts.verbose,
	}

	if opts.maxBody != "" {
		size, err := units.RAMInBytes(opts.maxBody)
		if err != nil {
			return clientConfig{}, fmt.Errorf("failed to parse --max-body %q: %w\nUse a size like 512MB or 1GiB", opts.maxBody, err)
		}
		config.MaxBodySize = size
	}

	switch {
	case opts.tlsCA != "" || opts.tlsCert != "" || opts.tlsKey != "" || opts.tlsSkipVerify:
		config.TLS = &dockhand.TLSOptions{
			CAFile:             opts.tlsCA,
			CertFile:           opts.tlsCert,
			KeyFile:            opts.tlsKey,
			InsecureSkipVerify: opts.tlsSkipVerify,
		}
	case lookup["DOCKER_CERT_PATH"] != "":
		dir := lookup["DOCKER_CERT_PATH"]
		config.TLS = &dockhand.TLSOptions{
			CAFile:             filepath.Join(dir, "ca.pem"),
			CertFile:           filepath.Join(dir, "cert.pem"),
			KeyFile:            filepath.Join(dir, "key.pem"),
			InsecureSkipVerify: lookup["DOCKER_TLS_VERIFY"] == "",
		}
	}

	return config, nil
}

// connect opens a Connection for the resolved configuration.
func (c clientConfig) connect() (*dockhand.Connection, error) {
	opts := dockhand.Options{
		TLS:         c.TLS,
		Timeout:     c.Timeout,
		MaxBodySize: c.MaxBodySize,
	}
	if c.Verbose {
		logger := logrus.New()
		logger.SetLevel(logrus.TraceLevel)
		opts.Logger = logger
	}
	return dockhand.Dial(c.Host, opts)
}
