package dockhand

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// StreamType identifies which daemon stream a multiplexed frame
// belongs to.
type StreamType byte

const (
	StreamStdin StreamType = iota
	StreamStdout
	StreamStderr
)

// String returns the conventional stream name.
func (t StreamType) String() string {
	switch t {
	case StreamStdin:
		return "stdin"
	case StreamStdout:
		return "stdout"
	case StreamStderr:
		return "stderr"
	default:
		return fmt.Sprintf("stream(%d)", byte(t))
	}
}

// Frame is one unit of multiplexed daemon output: the stream it
// belongs to and its payload.
type Frame struct {
	Type StreamType
	Data []byte
}

// FrameReader demultiplexes the attach framing used by non-TTY
// sessions: an 8 byte header carrying the stream id and a big-endian
// payload length, followed by the payload. Frames typically arrive on
// the stream returned by Connection.Upgrade.
type FrameReader struct {
	r      io.Reader
	header [8]byte
}

// NewFrameReader wraps r, which must produce daemon attach framing.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// Next reads one frame. It returns io.EOF when the stream ends cleanly
// on a frame boundary; a stream cut mid-frame or an unknown stream id
// is a typed error.
func (f *FrameReader) Next() (Frame, error) {
	const op = "read frame"

	if _, err := io.ReadFull(f.r, f.header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, classifyStream(op, err)
	}

	id := f.header[0]
	if id > byte(StreamStderr) {
		return Frame{}, newError(KindIO, op, fmt.Errorf("invalid stream id %d in frame header", id))
	}

	data := make([]byte, binary.BigEndian.Uint32(f.header[4:]))
	if _, err := io.ReadFull(f.r, data); err != nil {
		return Frame{}, classifyStream(op, err)
	}

	return Frame{Type: StreamType(id), Data: data}, nil
}

// DemuxCopy copies frames from src until EOF, routing stderr frames to
// stderr and everything else to stdout. It returns the number of
// payload bytes written.
func DemuxCopy(stdout, stderr io.Writer, src io.Reader) (int64, error) {
	frames := NewFrameReader(src)

	var written int64
	for {
		frame, err := frames.Next()
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, err
		}

		dst := stdout
		if frame.Type == StreamStderr {
			dst = stderr
		}
		n, err := dst.Write(frame.Data)
		written += int64(n)
		if err != nil {
			return written, newError(KindIO, "copy frame", err)
		}
	}
}
