package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/go-units"
	"github.com/moby/term"
	"github.com/spf13/cobra"

	"github.com/ryanmoran/dockhand/tarball"
)

var buildFlags struct {
	output      string
	compression string
	chunkSize   string
	workers     int
	excludes    []string
	follow      bool
}

var buildCmd = &cobra.Command{
	Use:   "build DIR",
	Short: "Package a directory into a build-context archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]

		patterns, err := tarball.ReadIgnoreFile(filepath.Join(dir, ".dockerignore"))
		if err != nil {
			return err
		}
		patterns = append(patterns, buildFlags.excludes...)

		opts := tarball.Options{
			Exclude:        patterns,
			FollowSymlinks: buildFlags.follow,
			Workers:        buildFlags.workers,
		}

		switch buildFlags.compression {
		case "none":
			opts.Compression = tarball.CompressionNone
		case "gzip":
			opts.Compression = tarball.CompressionGzip
		case "parallel":
			opts.Compression = tarball.CompressionParallelGzip
		default:
			return fmt.Errorf("unknown compression %q, expected none, gzip or parallel", buildFlags.compression)
		}

		if buildFlags.chunkSize != "" {
			size, err := units.RAMInBytes(buildFlags.chunkSize)
			if err != nil {
				return fmt.Errorf("failed to parse --chunk-size %q: %w\nUse a size like 1MB", buildFlags.chunkSize, err)
			}
			opts.ChunkSize = int(size)
		}

		if buildFlags.output != "" && buildFlags.output != "-" {
			file, err := os.Create(buildFlags.output)
			if err != nil {
				return fmt.Errorf("failed to create %q: %w", buildFlags.output, err)
			}
			if err := tarball.Build(file, dir, opts); err != nil {
				file.Close()
				os.Remove(buildFlags.output)
				return err
			}
			return file.Close()
		}

		if _, isTerminal := term.GetFdInfo(os.Stdout); isTerminal {
			return errors.New("refusing to write archive data to a terminal; use -o or redirect stdout")
		}
		return tarball.Build(os.Stdout, dir, opts)
	},
}

func init() {
	fs := buildCmd.Flags()
	fs.StringVarP(&buildFlags.output, "output", "o", "-", "output file, or - for stdout")
	fs.StringVar(&buildFlags.compression, "compression", "gzip", "compression mode: none, gzip or parallel")
	fs.StringVar(&buildFlags.chunkSize, "chunk-size", "", "parallel-mode chunk size, e.g. 1MB")
	fs.IntVar(&buildFlags.workers, "workers", 0, "parallel-mode worker count (0 means one per CPU)")
	fs.StringArrayVar(&buildFlags.excludes, "exclude", nil, "dockerignore-syntax pattern to exclude (repeatable)")
	fs.BoolVar(&buildFlags.follow, "follow-symlinks", false, "archive symlink targets instead of symlink entries")
	rootCmd.AddCommand(buildCmd)
}
