package dockhand_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ryanmoran/dockhand"
)

func frame(id byte, payload string) []byte {
	header := make([]byte, 8)
	header[0] = id
	binary.BigEndian.PutUint32(header[4:], uint32(len(payload)))
	return append(header, payload...)
}

func TestFrameReader(t *testing.T) {
	t.Run("decodes a single frame", func(t *testing.T) {
		reader := dockhand.NewFrameReader(bytes.NewReader(frame(1, "hello")))

		f, err := reader.Next()
		require.NoError(t, err)
		require.Equal(t, dockhand.StreamStdout, f.Type)
		require.Equal(t, []byte("hello"), f.Data)

		_, err = reader.Next()
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("decodes interleaved stdout and stderr frames", func(t *testing.T) {
		var multiplexed bytes.Buffer
		multiplexed.Write(frame(1, "out-1"))
		multiplexed.Write(frame(2, "err-1"))
		multiplexed.Write(frame(1, "out-2"))
		multiplexed.Write(frame(0, "in-1"))

		reader := dockhand.NewFrameReader(&multiplexed)

		var frames []dockhand.Frame
		for {
			f, err := reader.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			frames = append(frames, f)
		}

		require.Equal(t, []dockhand.Frame{
			{Type: dockhand.StreamStdout, Data: []byte("out-1")},
			{Type: dockhand.StreamStderr, Data: []byte("err-1")},
			{Type: dockhand.StreamStdout, Data: []byte("out-2")},
			{Type: dockhand.StreamStdin, Data: []byte("in-1")},
		}, frames)
	})

	t.Run("decodes an empty frame", func(t *testing.T) {
		reader := dockhand.NewFrameReader(bytes.NewReader(frame(1, "")))

		f, err := reader.Next()
		require.NoError(t, err)
		require.Equal(t, dockhand.StreamStdout, f.Type)
		require.Empty(t, f.Data)
	})

	t.Run("failure cases", func(t *testing.T) {
		t.Run("when the stream identifier is unknown", func(t *testing.T) {
			reader := dockhand.NewFrameReader(bytes.NewReader(frame(7, "payload")))

			_, err := reader.Next()
			require.Error(t, err)
			require.True(t, dockhand.IsKind(err, dockhand.KindIO))
			require.Contains(t, err.Error(), "invalid stream id 7")
		})

		t.Run("when the header is truncated", func(t *testing.T) {
			reader := dockhand.NewFrameReader(bytes.NewReader([]byte{1, 0, 0}))

			_, err := reader.Next()
			require.Error(t, err)
			require.True(t, dockhand.IsKind(err, dockhand.KindIO))
		})

		t.Run("when the payload is truncated", func(t *testing.T) {
			truncated := frame(1, "hello")[:10]
			reader := dockhand.NewFrameReader(bytes.NewReader(truncated))

			_, err := reader.Next()
			require.Error(t, err)
			require.True(t, dockhand.IsKind(err, dockhand.KindIO))
		})
	})
}

func TestDemuxCopy(t *testing.T) {
	t.Run("routes frames to the matching writers", func(t *testing.T) {
		var multiplexed bytes.Buffer
		multiplexed.Write(frame(1, "out-1 "))
		multiplexed.Write(frame(2, "err-1 "))
		multiplexed.Write(frame(1, "out-2"))
		multiplexed.Write(frame(2, "err-2"))

		var stdout, stderr bytes.Buffer
		written, err := dockhand.DemuxCopy(&stdout, &stderr, &multiplexed)
		require.NoError(t, err)

		require.Equal(t, "out-1 out-2", stdout.String())
		require.Equal(t, "err-1 err-2", stderr.String())
		require.Equal(t, int64(21), written)
	})

	t.Run("stops on a malformed frame", func(t *testing.T) {
		var multiplexed bytes.Buffer
		multiplexed.Write(frame(1, "out-1"))
		multiplexed.Write(frame(9, "junk"))

		var stdout, stderr bytes.Buffer
		written, err := dockhand.DemuxCopy(&stdout, &stderr, &multiplexed)
		require.Error(t, err)
		require.True(t, dockhand.IsKind(err, dockhand.KindIO))
		require.Equal(t, int64(5), written)
		require.Equal(t, "out-1", stdout.String())
	})
}
