package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/storage"
)

func newStorageCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Upload or delete single objects in the release bucket.",
	}

	cmd.AddCommand(newStorageUploadCommand(a), newStorageDeleteCommand(a))

	return cmd
}

func newStorageUploadCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file> <remote-path>",
		Short: "Upload a file, purge its CDN URL and print it.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.WithName(cmd.Context(), "storage")

			cfg, err := a.loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			store, err := a.store(ctx, cfg)
			if err != nil {
				return err
			}

			purger, err := a.purger(cfg)
			if err != nil {
				return err
			}

			obj, err := storage.UploadFile(ctx, store, args[0], args[1])
			if err != nil {
				return err
			}

			url := cfg.PublicURL(obj.Key)
			if err = purger.Purge(ctx, url); err != nil {
				return err
			}

			logger.InfoKV(ctx, "Uploaded", "key", obj.Key, "size", obj.Size)

			_, err = fmt.Fprintln(cmd.OutOrStdout(), url)

			return err
		},
	}
}

func newStorageDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <remote-path>",
		Short: "Delete an object and purge its CDN URL.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.WithName(cmd.Context(), "storage")

			cfg, err := a.loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			store, err := a.store(ctx, cfg)
			if err != nil {
				return err
			}

			purger, err := a.purger(cfg)
			if err != nil {
				return err
			}

			obj, err := store.Find(ctx, args[0])
			if err != nil {
				return err
			}

			if err = store.Delete(ctx, obj); err != nil {
				return err
			}

			url := cfg.PublicURL(obj.Key)
			if err = purger.Purge(ctx, url); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", url)

			return err
		},
	}
}
