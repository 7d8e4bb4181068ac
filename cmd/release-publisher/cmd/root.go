package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oshokin/release-publisher/internal/apperr"
	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/service/publisher"
	"github.com/oshokin/release-publisher/internal/version"
)

// Execute runs the CLI and exits with a non-zero status on error.
func Execute() {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err := newRootCommand(newApp()).ExecuteContext(ctx)

	stop()

	if err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "release-publisher",
		Short: "Publish signed update manifests.",
		Long: `Publishes signed release records to the update manifest clients poll.

Artifacts are hashed with BLAKE3, every record is signed with an Ed25519 key,
the merged manifest is uploaded to the release bucket and the CDN cache is
purged. Settings come from an optional YAML file and SM_* environment
variables; secrets may live in the system keyring.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(a.logLevel)
			if !ok {
				return apperr.Validation("parse flags", fmt.Errorf("unknown log level %q", a.logLevel))
			}

			logger.SetLevel(level)

			a.logLevelSet = cmd.Flags().Changed("log-level")

			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newPublishCommand(a),
		newPublishBatchCommand(a),
		newPublishFilesCommand(a),
		newCheckCommand(a),
		newKeysCommand(a),
		newStorageCommand(a),
		newCDNCommand(a),
		newConfigCommand(a),
		newHashCommand(a),
		version.NewCommand(),
	)

	return root
}

// reportError prints err with its kind. Failed cleanups get an extra alert
// because they leave paid-for objects behind.
func reportError(w io.Writer, err error) {
	var cleanupErr *apperr.CleanupError

	failedCleanup := errors.As(err, &cleanupErr)

	if errors.Is(err, publisher.ErrAborted) && !failedCleanup {
		_, _ = fmt.Fprintln(w, "Aborted.")

		return
	}

	red := color.New(color.FgRed, color.Bold)

	_, _ = red.Fprintf(w, "Error (%s): ", apperr.KindOf(err))
	_, _ = fmt.Fprintln(w, err)

	if failedCleanup {
		_, _ = red.Fprint(w, "ALERT: ")
		_, _ = fmt.Fprintf(w, "cleanup failed, remove these artifacts manually: %s\n", strings.Join(cleanupErr.Orphaned, ", "))

		if cleanupErr.Failures != nil {
			_, _ = fmt.Fprintln(w, cleanupErr.Failures)
		}
	}
}
