package cmd

import (
	"crypto/ed25519"

	"github.com/spf13/cobra"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/service/checker"
	"github.com/oshokin/release-publisher/internal/signing"
)

func newCheckCommand(a *app) *cobra.Command {
	var (
		verify    bool
		output    string
		publicKey string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Print the live update manifest.",
		Long: `Fetches the manifest past any cache and prints it. With --verify every
record signature is checked against the configured signing key, or against
--public-key when given, and the command fails if any record is invalid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			opts := checker.Options{
				Format: output,
				Verify: verify,
				Out:    cmd.OutOrStdout(),
			}

			if verify {
				if opts.PublicKey, err = a.verificationKey(cfg, publicKey); err != nil {
					return err
				}
			}

			_, err = checker.Run(cmd.Context(), a.manifests(cfg), opts)

			return err
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "verify every record signature")
	cmd.Flags().StringVarP(&output, "output", "o", checker.FormatJSON, "output format (json, yaml)")
	cmd.Flags().StringVar(&publicKey, "public-key", "", "public key to verify with (authorized_keys or base64)")

	return cmd
}

func (a *app) verificationKey(cfg *config.Config, encoded string) (ed25519.PublicKey, error) {
	if encoded != "" {
		return signing.ParsePublicKey(encoded)
	}

	signer, err := a.signer(cfg)
	if err != nil {
		return nil, err
	}

	return signer.PublicKey(), nil
}
