package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ryanmoran/dockhand"
)

var flags options

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "dockhand",
	Short: "Talk to a container daemon over its raw transport",
	Long: `dockhand speaks the raw HTTP transport of a Docker- or
Podman-compatible daemon over a Unix socket or a TCP/TLS endpoint.

Get started:
  dockhand get /_ping            Check that the daemon answers
  dockhand get /info             Fetch daemon information
  dockhand get /events --stream  Follow the daemon event stream
  dockhand build . -o ctx.tgz    Package a build-context archive`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.host, "host", "", "daemon address (default DOCKER_HOST or "+DefaultHost+")")
	pf.DurationVar(&flags.timeout, "timeout", 0, "per-request deadline (0 disables)")
	pf.StringVar(&flags.maxBody, "max-body", "", "maximum buffered response body size, e.g. 512MB")
	pf.StringVar(&flags.tlsCA, "tls-ca", "", "path to the CA bundle")
	pf.StringVar(&flags.tlsCert, "tls-cert", "", "path to the client certificate")
	pf.StringVar(&flags.tlsKey, "tls-key", "", "path to the client key")
	pf.BoolVar(&flags.tlsSkipVerify, "tls-skip-verify", false, "skip server certificate verification")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable trace-level request logging")
}

func connect() (*dockhand.Connection, error) {
	config, err := resolveConfig(flags, os.Environ())
	if err != nil {
		return nil, err
	}
	return config.connect()
}
