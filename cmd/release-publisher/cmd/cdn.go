package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCDNCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cdn",
		Short: "Manage the CDN in front of the release bucket.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge <url>...",
		Short: "Purge cached copies of URLs.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			purger, err := a.purger(cfg)
			if err != nil {
				return err
			}

			if err = purger.Purge(cmd.Context(), args...); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Purged %d URL(s).\n", len(args))

			return err
		},
	})

	return cmd
}
