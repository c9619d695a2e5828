package tarball

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"
)

type chunk struct {
	index int
	data  []byte
}

// compressParallel reads the tar stream from r in fixed-size chunks and
// compresses each chunk on its own worker as an independent gzip
// member. Workers may finish out of order; results are keyed by chunk
// index and written to w strictly in submission order, so the
// concatenation is always a valid multi-member gzip stream.
func compressParallel(w io.Writer, r io.Reader, chunkSize, workers int) error {
	const op = "compress archive"

	group, ctx := errgroup.WithContext(context.Background())
	jobs := make(chan chunk, workers)
	results := make(chan chunk, workers)

	group.Go(func() error {
		defer close(jobs)
		for index := 0; ; index++ {
			buf := make([]byte, chunkSize)
			n, err := io.ReadFull(r, buf)
			if n > 0 {
				select {
				case jobs <- chunk{index: index, data: buf[:n]}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					return nil
				}
				return err
			}
		}
	})

	var pool errgroup.Group
	for i := 0; i < workers; i++ {
		pool.Go(func() error {
			for job := range jobs {
				member, err := deflateChunk(job.data)
				if err != nil {
					return err
				}
				select {
				case results <- chunk{index: job.index, data: member}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	group.Go(func() error {
		defer close(results)
		return pool.Wait()
	})

	group.Go(func() error {
		pending := make(map[int][]byte)
		next := 0
		for result := range results {
			pending[result.index] = result.data
			for {
				member, ok := pending[next]
				if !ok {
					break
				}
				if _, err := w.Write(member); err != nil {
					return err
				}
				delete(pending, next)
				next++
			}
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return newArchiveError(op, err)
	}
	return nil
}

func deflateChunk(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
