package dockhand

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
)

// Kind classifies an Error into one of the failure categories every
// operation in this module reports. Callers should branch on the kind;
// the wrapped cause is attached for diagnostics only and is not part of
// the contract.
type Kind uint8

const (
	KindIO Kind = iota + 1
	KindInvalidEndpoint
	KindConnectionFailed
	KindTLS
	KindTimeout
	KindSerialization
	KindArchive
	KindBodyTooLarge
)

// String returns a short human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io error"
	case KindInvalidEndpoint:
		return "invalid endpoint"
	case KindConnectionFailed:
		return "connection failed"
	case KindTLS:
		return "tls error"
	case KindTimeout:
		return "timeout"
	case KindSerialization:
		return "serialization error"
	case KindArchive:
		return "archive error"
	case KindBodyTooLarge:
		return "body too large"
	default:
		return "unknown error"
	}
}

// Error is the single error type surfaced by every operation in this
// module. The same type is used regardless of which transport produced
// the failure; the transport only shows up in the wrapped diagnostic.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error returns the formatted error message including the operation,
// the kind, and the wrapped cause when one is present.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err (or anything it wraps) is an *Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// ErrStreamConsumed is reported when a response body is consumed a
// second time. Streaming bodies are forward-only and can be read at
// most once.
var ErrStreamConsumed = errors.New("response body already consumed")

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// classifyDial maps failures that happen while establishing a request
// onto the error taxonomy. Anything that is neither a deadline nor a
// TLS failure is considered a connection failure: refused sockets,
// unresolvable names, and unreachable hosts all land here so that the
// transport kind never leaks into the error type.
func classifyDial(op string, err error) *Error {
	switch {
	case isTimeout(err):
		return newError(KindTimeout, op, err)
	case isTLSFailure(err):
		return newError(KindTLS, op, err)
	default:
		return newError(KindConnectionFailed, op, err)
	}
}

// classifyStream maps failures that happen while consuming an already
// established stream. Connection resets and truncated reads are plain
// IO errors; deadlines keep their own kind so callers can distinguish
// "daemon hung" from "daemon died".
func classifyStream(op string, err error) *Error {
	switch {
	case isTimeout(err):
		return newError(KindTimeout, op, err)
	case isTLSFailure(err):
		return newError(KindTLS, op, err)
	default:
		return newError(KindIO, op, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func isTLSFailure(err error) bool {
	var (
		record   tls.RecordHeaderError
		verify   *tls.CertificateVerificationError
		unknown  x509.UnknownAuthorityError
		hostname x509.HostnameError
		invalid  x509.CertificateInvalidError
	)
	return errors.As(err, &record) ||
		errors.As(err, &verify) ||
		errors.As(err, &unknown) ||
		errors.As(err, &hostname) ||
		errors.As(err, &invalid)
}
