package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/release-publisher/internal/apperr"
	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/secrets"
)

// errConfigExists is returned by `config init` when the file would be replaced.
var errConfigExists = errors.New("settings file already exists, pass --force to replace it")

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage settings and the API credentials kept in the system keyring.",
	}

	cmd.AddCommand(
		newConfigInitCommand(a),
		newConfigSetCommand(a),
		newConfigUnsetCommand(a),
		newConfigShowCommand(a),
	)

	return cmd
}

func newConfigInitCommand(a *app) *cobra.Command {
	var (
		cfg   config.Config
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a settings file.",
		Long: `Writes the settings file named by --config. Credentials are never written
to it; store them with "config set".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.configPath
			if path == "" {
				path = config.DefaultConfigFilename
			}

			if _, err := os.Stat(filepath.Clean(path)); err == nil && !force {
				return apperr.Validation("write settings", fmt.Errorf("%w: %s", errConfigExists, path))
			}

			if err := config.Save(path, &cfg); err != nil {
				return apperr.Validation("write settings", err)
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s.\n", path)

			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.CDNRoot, "cdn-root", "", "public base URL of the release bucket")
	flags.StringVar(&cfg.ManifestPath, "manifest-path", config.DefaultManifestPath, "object key of the manifest")
	flags.StringVar(&cfg.UpdateManifestURL, "update-manifest-url", "", "public manifest URL (default <cdn-root>/<manifest-path>)")
	flags.StringVar(&cfg.B2APIID, "b2-api-id", "", "storage application key id")
	flags.StringVar(&cfg.B2BucketName, "b2-bucket-name", "", "release bucket")
	flags.StringVar(&cfg.B2Endpoint, "b2-endpoint", "", "S3-compatible endpoint of the bucket")
	flags.StringVar(&cfg.B2Region, "b2-region", config.DefaultRegion, "bucket region")
	flags.StringVar(&cfg.CFZoneID, "cf-zone-id", "", "Cloudflare zone id")
	flags.DurationVar(&cfg.Timeout, "timeout", config.DefaultTimeout, "bound for every network call")
	flags.BoolVar(&cfg.Verbose, "verbose", false, "log at debug level")
	flags.BoolVar(&force, "force", false, "replace an existing file")

	_ = cmd.MarkFlagRequired("cdn-root")

	return cmd
}

func newConfigSetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Store an API credential in the keyring.",
		Long: `Stores an API credential in the keyring. Without a value the first line of
stdin is used, which keeps the secret out of the shell history.

Keys: ` + strings.Join(secrets.CredentialKeys(), ", "),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := secrets.CheckCredentialKey(key); err != nil {
				return apperr.Validation("store credential", err)
			}

			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				line, err := readLine(a.stdin)
				if err != nil {
					return apperr.Validation("read credential", err)
				}

				value = line
			}

			if value == "" {
				return apperr.Validation("store credential", fmt.Errorf("%s: empty value", key))
			}

			if err := a.secrets.Set(key, value); err != nil {
				return apperr.Validation("store credential", err)
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Stored %s.\n", key)

			return err
		},
	}
}

func newConfigUnsetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove an API credential from the keyring.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := secrets.CheckCredentialKey(key); err != nil {
				return apperr.Validation("remove credential", err)
			}

			if err := a.secrets.Delete(key); err != nil {
				return apperr.Validation("remove credential", err)
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", key)

			return err
		},
	}
}

func newConfigShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings with credentials masked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			_, _ = fmt.Fprintln(out, "Keyring:")

			for _, key := range secrets.CredentialKeys() {
				value, err := a.secrets.Get(key)

				switch {
				case errors.Is(err, secrets.ErrNotFound):
					value = "(not set)"
				case err != nil:
					return apperr.Validation("read credential", err)
				default:
					value = secrets.Mask(value)
				}

				_, _ = fmt.Fprintf(out, "  %s: %s\n", key, value)
			}

			cfg, err := a.loadConfig(cmd.Context())
			if err != nil {
				_, err = fmt.Fprintf(out, "Settings: not configured (%v)\n", err)

				return err
			}

			cfg.B2APIKey = secrets.Mask(cfg.B2APIKey)
			cfg.CFCachePurgeToken = secrets.Mask(cfg.CFCachePurgeToken)

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal settings: %w", err)
			}

			_, _ = fmt.Fprintln(out, "Settings:")
			_, err = out.Write(data)

			return err
		},
	}
}

func readLine(r io.Reader) (string, error) {
	if r == nil {
		return "", io.ErrUnexpectedEOF
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	return strings.TrimSpace(line), nil
}
