package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oshokin/release-publisher/internal/apperr"
	"github.com/oshokin/release-publisher/internal/signing"
)

func newKeysCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the Ed25519 signing key kept in the system keyring.",
	}

	cmd.AddCommand(
		newKeysNewCommand(a),
		newKeysPublicCommand(a),
		newKeysImportCommand(a),
		newKeysExportCommand(a),
	)

	return cmd
}

func newKeysNewCommand(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a new signing key.",
		Long: `Generates an Ed25519 key and stores it in the keyring. Clients trust the
matching public key, so an existing key is only replaced with --force.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signer, err := signing.GenerateAndStore(a.secrets, force)
			if err != nil {
				return err
			}

			return printPublicKey(cmd.OutOrStdout(), signer)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "replace an existing key")

	return cmd
}

func newKeysPublicCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "public",
		Short: "Print the public key.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signer, err := a.signer(nil)
			if err != nil {
				return err
			}

			return printPublicKey(cmd.OutOrStdout(), signer)
		},
	}
}

func newKeysImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Store an OpenSSH Ed25519 private key read from a file or stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				contents []byte
				err      error
			)

			if args[0] == "-" {
				contents, err = io.ReadAll(a.stdin)
			} else {
				contents, err = os.ReadFile(filepath.Clean(args[0]))
			}

			if err != nil {
				return apperr.Validation("read private key", err)
			}

			signer, err := signing.Import(a.secrets, string(contents))
			if err != nil {
				return err
			}

			return printPublicKey(cmd.OutOrStdout(), signer)
		},
	}
}

func newKeysExportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the private key in OpenSSH form.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signer, err := signing.LoadSigner(a.secrets, "")
			if err != nil {
				return err
			}

			encoded, err := signer.Export()
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), encoded)

			return err
		},
	}
}

func printPublicKey(w io.Writer, signer *signing.Signer) error {
	authorized, err := signing.EncodePublicKey(signer.PublicKey())
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s\n%s\n", authorized, signing.EncodePublicKeyRaw(signer.PublicKey()))

	return err
}
