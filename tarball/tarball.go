package tarball

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"

	"github.com/ryanmoran/dockhand"
)

// ErrPathEscapesRoot is reported when a followed symlink resolves
// outside the build context root.
var ErrPathEscapesRoot = errors.New("archive entry resolves outside the build context root")

// Compression selects how the tar stream is encoded.
type Compression int

const (
	// CompressionNone emits the raw tar stream.
	CompressionNone Compression = iota

	// CompressionGzip pipes the tar stream through a single gzip
	// encoder.
	CompressionGzip

	// CompressionParallelGzip splits the tar stream into fixed-size
	// chunks and compresses them concurrently. The output is a
	// multi-member gzip stream that any standard decoder accepts.
	CompressionParallelGzip
)

// DefaultChunkSize is the parallel-mode chunk size used when Options
// does not set one.
const DefaultChunkSize = 1 << 20

// Options configures an archive build.
type Options struct {
	Compression Compression

	// Exclude holds dockerignore-syntax patterns; matching paths are
	// left out of the archive.
	Exclude []string

	// FollowSymlinks archives the content of symlinks to regular
	// files inside the root instead of symlink entries. Symlinks to
	// directories are always preserved as symlink entries. A link
	// whose target resolves outside the root fails the build with
	// ErrPathEscapesRoot.
	FollowSymlinks bool

	// ChunkSize is the parallel-mode chunk size in bytes. Zero means
	// DefaultChunkSize.
	ChunkSize int

	// Workers bounds the parallel-mode compression pool. Zero means
	// one worker per available CPU.
	Workers int
}

func (o Options) chunkSize() int {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	return DefaultChunkSize
}

func (o Options) workerCount() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Build writes an archive of the directory tree at root to w. The
// traversal order is lexicographic by path, so repeated builds from
// unchanged input are byte-identical in serial modes.
func Build(w io.Writer, root string, opts Options) error {
	const op = "build archive"

	switch opts.Compression {
	case CompressionNone:
		return buildTar(w, root, opts)

	case CompressionGzip:
		gz, err := gzip.NewWriterLevel(w, gzip.BestCompression)
		if err != nil {
			return newArchiveError(op, err)
		}
		if err := buildTar(gz, root, opts); err != nil {
			gz.Close()
			return err
		}
		if err := gz.Close(); err != nil {
			return newArchiveError(op, err)
		}
		return nil

	case CompressionParallelGzip:
		pr, pw := io.Pipe()
		go func() {
			pw.CloseWithError(buildTar(pw, root, opts))
		}()
		err := compressParallel(w, pr, opts.chunkSize(), opts.workerCount())
		// Unblock the tar producer if compression stopped early.
		pr.CloseWithError(err)
		return err

	default:
		return newArchiveError(op, fmt.Errorf("unknown compression mode %d", opts.Compression))
	}
}

// Archive builds the archive into a pipe and returns the reading end,
// so the caller can stream it as a request body without buffering the
// whole context in memory. A build failure surfaces as the read error.
// The caller must close the returned reader.
func Archive(root string, opts Options) (io.ReadCloser, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, newArchiveError("build archive", err)
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(Build(pw, root, opts))
	}()
	return pr, nil
}

// ReadIgnoreFile loads dockerignore-syntax patterns from the file at
// path, for use as Options.Exclude. A missing file yields no patterns.
func ReadIgnoreFile(path string) ([]string, error) {
	const op = "read ignore file"

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, newArchiveError(op, err)
	}
	defer file.Close()

	patterns, err := ignorefile.ReadAll(file)
	if err != nil {
		return nil, newArchiveError(op, err)
	}
	return patterns, nil
}

func buildTar(w io.Writer, root string, opts Options) error {
	const op = "build archive"

	root, err := filepath.Abs(root)
	if err != nil {
		return newArchiveError(op, err)
	}
	// Canonicalize so that followed links inside the tree compare
	// against the real root.
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	var matcher *patternmatcher.PatternMatcher
	if len(opts.Exclude) > 0 {
		matcher, err = patternmatcher.New(opts.Exclude)
		if err != nil {
			return newArchiveError(op, err)
		}
	}

	tw := tar.NewWriter(w)
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		if matcher != nil {
			matched, err := matcher.MatchesOrParentMatches(name)
			if err != nil {
				return err
			}
			if matched {
				// A directory can only be skipped wholesale when no
				// negated pattern could re-include something below it.
				if entry.IsDir() && !matcher.Exclusions() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if entry.IsDir() {
			// Directories are implied by the entries below them and
			// recreated on extraction.
			return nil
		}

		return appendEntry(tw, path, name, entry, root, opts.FollowSymlinks)
	})
	if err != nil {
		tw.Close()
		return newArchiveError(op, err)
	}
	if err := tw.Close(); err != nil {
		return newArchiveError(op, err)
	}
	return nil
}

func appendEntry(tw *tar.Writer, path, name string, entry fs.DirEntry, root string, follow bool) error {
	info, err := entry.Info()
	if err != nil {
		return err
	}

	var link string
	if info.Mode()&fs.ModeSymlink != 0 {
		if follow {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil {
				return err
			}
			if err := ensureWithinRoot(root, resolved); err != nil {
				return err
			}
			target, err := os.Stat(path)
			if err != nil {
				return err
			}
			if !target.IsDir() {
				info = target
			}
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	header.Name = name

	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	if header.Typeflag != tar.TypeReg {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(tw, file); err != nil {
		return err
	}
	return nil
}

func ensureWithinRoot(root, resolved string) error {
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrPathEscapesRoot, resolved)
	}
	return nil
}

func newArchiveError(op string, err error) error {
	var derr *dockhand.Error
	if errors.As(err, &derr) {
		return err
	}
	return &dockhand.Error{Kind: dockhand.KindArchive, Op: op, Err: err}
}
