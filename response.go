package dockhand

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const streamChunkSize = 32 << 10

// Response wraps the daemon's reply. The body is lazy: nothing is read
// from the socket until ReadAll, JSON, Stream or JSONStream is called,
// and it can be consumed at most once. An unconsumed Response must be
// closed to release the socket.
type Response struct {
	StatusCode int
	Header     http.Header

	op       string
	body     io.ReadCloser
	maxBody  int64
	cancel   context.CancelFunc
	consumed bool
}

// ContentType returns the Content-Type response header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// ReadAll buffers the entire body into memory and closes it. Bodies
// larger than the configured maximum fail with a BodyTooLarge error;
// use Stream for output of unbounded size.
func (r *Response) ReadAll() ([]byte, error) {
	if err := r.consume(); err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r.body, r.maxBody+1))
	if err != nil {
		return nil, classifyStream(r.op, err)
	}
	if int64(len(data)) > r.maxBody {
		return nil, newError(KindBodyTooLarge, r.op, fmt.Errorf("response body exceeds the %d byte buffering limit", r.maxBody))
	}
	return data, nil
}

// JSON buffers the body and decodes it as a single JSON document
// into v.
func (r *Response) JSON(v any) error {
	data, err := r.ReadAll()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return newError(KindSerialization, r.op, err)
	}
	return nil
}

// Stream returns a lazy, forward-only sequence of body chunks. Chunks
// arrive in the order the daemon produced them. Closing the stream
// before exhaustion releases the underlying socket promptly.
func (r *Response) Stream() (*Stream, error) {
	if err := r.consume(); err != nil {
		return nil, err
	}
	return &Stream{resp: r, buf: make([]byte, streamChunkSize)}, nil
}

// JSONStream returns a decoder over a line-delimited JSON body, the
// framing the daemon uses for build output and progress events.
func (r *Response) JSONStream() (*JSONStream, error) {
	if err := r.consume(); err != nil {
		return nil, err
	}
	return &JSONStream{resp: r, dec: json.NewDecoder(r.body)}, nil
}

// Close releases the body and any request deadline. It is safe to call
// more than once.
func (r *Response) Close() error {
	r.consumed = true
	err := r.body.Close()
	r.cancel()
	return err
}

func (r *Response) consume() error {
	if r.consumed {
		return newError(KindIO, r.op, ErrStreamConsumed)
	}
	r.consumed = true
	return nil
}

// Stream is a pull-based iterator over response body chunks. The usual
// loop is:
//
//	for stream.Next() {
//		process(stream.Bytes())
//	}
//	if err := stream.Err(); err != nil { ... }
type Stream struct {
	resp  *Response
	buf   []byte
	chunk []byte
	err   error
	done  bool
}

// Next pulls the next chunk, blocking until data arrives, the body
// ends, or the stream fails. It returns false once no further chunk is
// available; Err distinguishes normal exhaustion from failure.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	for {
		n, err := s.resp.body.Read(s.buf)
		if n > 0 {
			s.chunk = s.buf[:n]
			if err != nil {
				s.finish(err)
			}
			return true
		}
		if err != nil {
			s.finish(err)
			return false
		}
	}
}

// Bytes returns the chunk produced by the last call to Next. The slice
// is reused between calls.
func (s *Stream) Bytes() []byte {
	return s.chunk
}

// Err returns the error that terminated the stream, or nil if the body
// ended normally.
func (s *Stream) Err() error {
	return s.err
}

// Close abandons the stream and releases the underlying socket without
// draining the remaining body.
func (s *Stream) Close() error {
	s.done = true
	return s.resp.Close()
}

func (s *Stream) finish(err error) {
	s.done = true
	if !errors.Is(err, io.EOF) {
		s.err = classifyStream(s.resp.op, err)
	}
	s.resp.Close()
}

// JSONStream decodes consecutive JSON records from a streaming body.
type JSONStream struct {
	resp *Response
	dec  *json.Decoder
}

// More reports whether another record is available.
func (s *JSONStream) More() bool {
	return s.dec.More()
}

// Decode reads the next record into v. Malformed records are reported
// as serialization errors; transport failures keep their own kinds.
func (s *JSONStream) Decode(v any) error {
	err := s.dec.Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return io.EOF
	}

	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return newError(KindSerialization, s.resp.op, err)
	}
	return classifyStream(s.resp.op, err)
}

// Close releases the underlying socket.
func (s *JSONStream) Close() error {
	return s.resp.Close()
}
