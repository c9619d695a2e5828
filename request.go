package dockhand

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type queryParam struct {
	key   string
	value string
}

// Request is an immutable outbound request assembled by a
// RequestBuilder. A Request is built fresh for every call and never
// reused; streaming bodies in particular can only be sent once.
type Request struct {
	method        string
	path          string
	query         []queryParam
	header        http.Header
	body          io.Reader
	contentLength int64
	defaultType   string
}

// Method returns the HTTP method of the request.
func (r Request) Method() string {
	return r.method
}

// Path returns the request path, without the query string.
func (r Request) Path() string {
	return r.path
}

// QueryString encodes the query parameters in the order they were
// added. Parameters with empty values are encoded as bare keys.
func (r Request) QueryString() string {
	if len(r.query) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, p := range r.query {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.key))
		if p.value != "" {
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(p.value))
		}
	}
	return sb.String()
}

// Header returns a copy of the request headers.
func (r Request) Header() http.Header {
	return r.header.Clone()
}

// ContentLength returns the body length in bytes, or -1 for a
// streaming body of unknown length sent with chunked transfer
// encoding.
func (r Request) ContentLength() int64 {
	return r.contentLength
}

// RequestBuilder assembles a Request uniformly regardless of which
// transport will carry it. The zero builder is not usable; start with
// NewRequest.
type RequestBuilder struct {
	req Request
	err error
}

// NewRequest starts building a request with the given method and path.
// The path is used as provided; callers percent-encode any segments
// that need it.
func NewRequest(method, path string) *RequestBuilder {
	return &RequestBuilder{
		req: Request{
			method: method,
			path:   path,
			header: make(http.Header),
		},
	}
}

// Query appends a query parameter. Order is preserved in the encoded
// request.
func (b *RequestBuilder) Query(key, value string) *RequestBuilder {
	b.req.query = append(b.req.query, queryParam{key: key, value: value})
	return b
}

// Header sets a header on the request. Keys are case-insensitive.
// Headers set here are never overridden by body defaults.
func (b *RequestBuilder) Header(key, value string) *RequestBuilder {
	b.req.header.Set(key, value)
	return b
}

// BufferedBody attaches a fully buffered body with a known
// content length. The contentType is applied only if the caller has not
// set a Content-Type header explicitly.
func (b *RequestBuilder) BufferedBody(data []byte, contentType string) *RequestBuilder {
	b.req.body = bytes.NewReader(data)
	b.req.contentLength = int64(len(data))
	b.req.defaultType = contentType
	return b
}

// StreamingBody attaches a lazy body of unknown length. The request is
// sent with chunked transfer encoding. The contentType is applied only
// if the caller has not set a Content-Type header explicitly.
func (b *RequestBuilder) StreamingBody(r io.Reader, contentType string) *RequestBuilder {
	b.req.body = r
	b.req.contentLength = -1
	b.req.defaultType = contentType
	return b
}

// JSONBody marshals v and attaches it as a buffered application/json
// body. A marshaling failure is reported from Build.
func (b *RequestBuilder) JSONBody(v any) *RequestBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		b.err = newError(KindSerialization, "encode request body", err)
		return b
	}
	return b.BufferedBody(data, "application/json")
}

// TarBody attaches a streaming tar archive body, typically a build
// context produced by the tarball package.
func (b *RequestBuilder) TarBody(r io.Reader) *RequestBuilder {
	return b.StreamingBody(r, "application/x-tar")
}

// Build finalizes the request. The returned Request is immutable.
func (b *RequestBuilder) Build() (Request, error) {
	if b.err != nil {
		return Request{}, b.err
	}
	req := b.req
	req.header = b.req.header.Clone()
	if req.defaultType != "" && req.header.Get("Content-Type") == "" {
		req.header.Set("Content-Type", req.defaultType)
	}
	return req, nil
}
