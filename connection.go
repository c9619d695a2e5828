package dockhand

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/docker/go-connections/sockets"
	"github.com/docker/go-connections/tlsconfig"
	"github.com/sirupsen/logrus"
)

// DefaultMaxBodySize is the ReadAll buffering cap applied when Options
// does not set one. It protects against unbounded daemon output.
const DefaultMaxBodySize = 64 << 20

// dummyHost is the placeholder authority used in request URLs for Unix
// socket endpoints, which have no meaningful host.
const dummyHost = "docker"

// TLSOptions carries the certificate material for an encrypted TCP
// endpoint. All paths are optional; a nil TLSOptions on an https
// endpoint uses the system trust store.
type TLSOptions struct {
	CAFile   string
	CertFile string
	KeyFile  string

	// InsecureSkipVerify disables server certificate verification.
	InsecureSkipVerify bool
}

// Options configures a Connection. Everything here is carried per
// Connection instance; there is no process-wide state.
type Options struct {
	// TLS supplies client certificate material for https endpoints.
	TLS *TLSOptions

	// Timeout is the per-request deadline, covering the body. Zero
	// means no deadline. A deadline already present on the request
	// context takes precedence.
	Timeout time.Duration

	// MaxBodySize caps Response.ReadAll buffering. Zero means
	// DefaultMaxBodySize.
	MaxBodySize int64

	// APIVersion, when set, prefixes every request path with
	// "/v<version>".
	APIVersion APIVersion

	// Logger receives trace-level request logging. Defaults to the
	// logrus standard logger.
	Logger *logrus.Logger
}

// Connection owns a connector bound to one Endpoint and is shared by
// all requests issued through it. It is a connection factory rather
// than a single socket: the underlying transport opens and reuses
// sockets on demand. A Connection is safe for concurrent use; no
// ordering is guaranteed across concurrent requests.
type Connection struct {
	endpoint Endpoint
	client   *http.Client
	baseURL  string
	dial     func(ctx context.Context) (net.Conn, error)
	timeout  time.Duration
	maxBody  int64
	version  APIVersion
	log      *logrus.Logger
}

// Dial parses the daemon address and opens a Connection to it.
func Dial(address string, opts Options) (*Connection, error) {
	endpoint, err := ParseEndpoint(address)
	if err != nil {
		return nil, err
	}
	return New(endpoint, opts)
}

// New builds a Connection for the given endpoint. The connector kind
// (Unix socket, plain TCP, or TLS-wrapped TCP) is selected here once;
// the request and response layers stay transport-agnostic.
func New(endpoint Endpoint, opts Options) (*Connection, error) {
	const op = "new connection"

	var tlsConfig *tls.Config
	if opts.TLS != nil {
		config, err := tlsconfig.Client(tlsconfig.Options{
			CAFile:             opts.TLS.CAFile,
			CertFile:           opts.TLS.CertFile,
			KeyFile:            opts.TLS.KeyFile,
			InsecureSkipVerify: opts.TLS.InsecureSkipVerify,
		})
		if err != nil {
			return nil, newError(KindTLS, op, err)
		}
		tlsConfig = config
	}

	transport := &http.Transport{TLSClientConfig: tlsConfig}

	conn := &Connection{
		endpoint: endpoint,
		timeout:  opts.Timeout,
		maxBody:  opts.MaxBodySize,
		version:  opts.APIVersion,
		log:      opts.Logger,
	}
	if conn.maxBody <= 0 {
		conn.maxBody = DefaultMaxBodySize
	}
	if conn.log == nil {
		conn.log = logrus.StandardLogger()
	}

	if endpoint.IsUnix() {
		if err := sockets.ConfigureTransport(transport, "unix", endpoint.Path); err != nil {
			return nil, newError(KindInvalidEndpoint, op, err)
		}
		conn.baseURL = "http://" + dummyHost
		conn.dial = func(ctx context.Context) (net.Conn, error) {
			var dialer net.Dialer
			return dialer.DialContext(ctx, "unix", endpoint.Path)
		}
	} else {
		if err := sockets.ConfigureTransport(transport, "tcp", endpoint.Host); err != nil {
			return nil, newError(KindInvalidEndpoint, op, err)
		}
		conn.baseURL = endpoint.Scheme + "://" + endpoint.Host
		address := endpoint.hostPort()
		if endpoint.UsesTLS() {
			dialer := &tls.Dialer{Config: tlsConfig}
			conn.dial = func(ctx context.Context) (net.Conn, error) {
				return dialer.DialContext(ctx, "tcp", address)
			}
		} else {
			conn.dial = func(ctx context.Context) (net.Conn, error) {
				var dialer net.Dialer
				return dialer.DialContext(ctx, "tcp", address)
			}
		}
	}

	conn.client = &http.Client{Transport: transport}
	return conn, nil
}

// Endpoint returns the endpoint the connection was built for.
func (c *Connection) Endpoint() Endpoint {
	return c.endpoint
}

// Send dispatches the request and returns as soon as the response
// headers arrive; the body is not read eagerly. The caller must consume
// or close the returned Response to release the underlying socket.
func (c *Connection) Send(ctx context.Context, req Request) (*Response, error) {
	op := fmt.Sprintf("%s %s", req.method, req.path)

	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.requestURL(req), req.body)
	if err != nil {
		cancel()
		return nil, newError(KindInvalidEndpoint, op, err)
	}
	for key, values := range req.header {
		httpReq.Header[key] = values
	}
	if req.body != nil {
		httpReq.ContentLength = req.contentLength
	}

	c.log.WithFields(logrus.Fields{
		"method": req.method,
		"url":    httpReq.URL.String(),
	}).Trace("sending request")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		cancel()
		return nil, classifyDial(op, err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		op:         op,
		body:       httpResp.Body,
		maxBody:    c.maxBody,
		cancel:     cancel,
	}, nil
}

// Get issues a GET request to the given path.
func (c *Connection) Get(ctx context.Context, path string) (*Response, error) {
	req, err := NewRequest(http.MethodGet, path).Build()
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, req)
}

// GetJSON issues a GET request and decodes the buffered response body
// into v. Status handling is the caller's concern; the body is decoded
// whatever the status code.
func (c *Connection) GetJSON(ctx context.Context, path string, v any) error {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	return resp.JSON(v)
}

// Head issues a HEAD request to the given path.
func (c *Connection) Head(ctx context.Context, path string) (*Response, error) {
	req, err := NewRequest(http.MethodHead, path).Build()
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, req)
}

// Delete issues a DELETE request to the given path.
func (c *Connection) Delete(ctx context.Context, path string) (*Response, error) {
	req, err := NewRequest(http.MethodDelete, path).Build()
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, req)
}

// Upgrade sends the request over a dedicated connection, asking the
// daemon to switch protocols, and hands back the raw duplex stream on a
// 101 response. The stream is used for attach-style endpoints that
// multiplex stdio frames after the HTTP exchange; pair it with
// FrameReader for non-TTY sessions. Options.Timeout bounds the
// handshake only; the upgraded stream carries no deadline. The caller
// owns the returned connection and must close it.
func (c *Connection) Upgrade(ctx context.Context, req Request) (net.Conn, error) {
	op := fmt.Sprintf("upgrade %s %s", req.method, req.path)

	if c.timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
	}

	netConn, err := c.dial(ctx)
	if err != nil {
		return nil, classifyDial(op, err)
	}

	httpReq, err := http.NewRequest(req.method, c.requestURL(req), req.body)
	if err != nil {
		netConn.Close()
		return nil, newError(KindInvalidEndpoint, op, err)
	}
	for key, values := range req.header {
		httpReq.Header[key] = values
	}
	httpReq.Header.Set("Connection", "Upgrade")
	httpReq.Header.Set("Upgrade", "tcp")

	if deadline, ok := ctx.Deadline(); ok {
		_ = netConn.SetDeadline(deadline)
	}

	if err := httpReq.Write(netConn); err != nil {
		netConn.Close()
		return nil, classifyStream(op, err)
	}

	reader := bufio.NewReader(netConn)
	httpResp, err := http.ReadResponse(reader, httpReq)
	if err != nil {
		netConn.Close()
		return nil, classifyStream(op, err)
	}
	if httpResp.StatusCode != http.StatusSwitchingProtocols {
		httpResp.Body.Close()
		netConn.Close()
		return nil, newError(KindConnectionFailed, op, fmt.Errorf("daemon did not upgrade the connection (status %d)", httpResp.StatusCode))
	}

	// Clear the handshake deadline; the upgraded stream lives until
	// the caller closes it.
	_ = netConn.SetDeadline(time.Time{})

	return &upgradedConn{Conn: netConn, reader: reader}, nil
}

// Close releases idle sockets held by the connector. In-flight
// responses keep their sockets until they are closed.
func (c *Connection) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *Connection) requestURL(req Request) string {
	path := req.path
	if !c.version.IsZero() {
		path = c.version.Path(path)
	}
	u := c.baseURL + path
	if q := req.QueryString(); q != "" {
		u += "?" + q
	}
	return u
}

// upgradedConn routes reads through the buffered reader so response
// bytes that arrived alongside the 101 are not lost.
type upgradedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (c *upgradedConn) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}
