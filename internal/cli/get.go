package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var getStream bool

var getCmd = &cobra.Command{
	Use:   "get PATH",
	Short: "Send a GET request to the daemon and print the response body",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := connect()
		if err != nil {
			return err
		}
		defer conn.Close()

		resp, err := conn.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if getStream {
			stream, err := resp.Stream()
			if err != nil {
				return err
			}
			defer stream.Close()

			for stream.Next() {
				if _, err := os.Stdout.Write(stream.Bytes()); err != nil {
					return fmt.Errorf("failed to write response chunk: %w", err)
				}
			}
			return stream.Err()
		}

		body, err := resp.ReadAll()
		if err != nil {
			return err
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		_, err = os.Stdout.Write(body)
		return err
	},
}

func init() {
	getCmd.Flags().BoolVar(&getStream, "stream", false, "stream the response body instead of buffering it")
	rootCmd.AddCommand(getCmd)
}
