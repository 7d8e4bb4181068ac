package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/release-publisher/internal/apperr"
	"github.com/oshokin/release-publisher/internal/hashing"
	"github.com/oshokin/release-publisher/internal/service/common"
)

func newHashCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hash <file|->...",
		Short: "Print the BLAKE3 digest expected by --hash.",
		Example: `  release-publisher hash dist/app-win-x64.zip
  curl -sL https://cdn.example.com/v2.1.0/app.zip | release-publisher hash -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			progress := common.NewProgress(os.Stderr, a.interactive)

			for _, name := range args {
				var (
					digest string
					err    error
				)

				if name == "-" {
					digest, err = hashing.Reader(a.stdin, -1, nil)
				} else {
					progress.Start("hashing " + name)
					digest, err = hashing.File(name, progress.Bytes("hashing "+name))
					progress.Stop("")
				}

				if err != nil {
					return apperr.IO("hash "+name, err)
				}

				if _, err = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", digest, name); err != nil {
					return err
				}
			}

			return nil
		},
	}
}
