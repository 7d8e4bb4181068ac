package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/release-publisher/internal/domain/release"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/service/common"
	"github.com/oshokin/release-publisher/internal/service/publisher"
)

func newPublishCommand(a *app) *cobra.Command {
	var (
		flags    releaseFlags
		platform string
		url      string
		hash     string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish one platform's already hosted artifact.",
		Example: `  release-publisher publish --version 2.1.0 --channel stable --platform win-x64 \
    --url https://cdn.example.com/v2.1.0/app-win-x64.zip --hash <blake3-hex>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			artifact, err := parseArtifactSpec(platform + "=" + url + "#" + hash)
			if err != nil {
				return err
			}

			req, err := flags.request([]publisher.Artifact{artifact})
			if err != nil {
				return err
			}

			return runPublish(cmd, a, req)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&platform, "platform", "", "platform id ("+joinNames(release.Platforms())+")")
	cmd.Flags().StringVar(&url, "url", "", "public download URL of the artifact")
	cmd.Flags().StringVar(&hash, "hash", "", "hex BLAKE3 digest of the artifact")

	_ = cmd.MarkFlagRequired("platform")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("hash")

	return cmd
}

func newPublishBatchCommand(a *app) *cobra.Command {
	var (
		flags releaseFlags
		specs []string
	)

	cmd := &cobra.Command{
		Use:   "publish-batch",
		Short: "Publish several already hosted artifacts to one channel at once.",
		Example: `  release-publisher publish-batch --version 2.1.0 \
    --artifact win-x64=https://cdn.example.com/v2.1.0/win.zip#<hash> \
    --artifact linux-x64=https://cdn.example.com/v2.1.0/linux.tar.gz#<hash>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			artifacts := make([]publisher.Artifact, 0, len(specs))

			for _, spec := range specs {
				artifact, err := parseArtifactSpec(spec)
				if err != nil {
					return err
				}

				artifacts = append(artifacts, artifact)
			}

			req, err := flags.request(artifacts)
			if err != nil {
				return err
			}

			return runPublish(cmd, a, req)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringArrayVar(&specs, "artifact", nil, "PLATFORM=URL#HASH, repeatable")

	_ = cmd.MarkFlagRequired("artifact")

	return cmd
}

func newPublishFilesCommand(a *app) *cobra.Command {
	var (
		flags     releaseFlags
		specs     []string
		remoteDir string
	)

	cmd := &cobra.Command{
		Use:   "publish-files",
		Short: "Upload local artifacts and publish them to one channel.",
		Long: `Hashes and uploads each file to <remote-dir>/<file name> in the release
bucket, then publishes records pointing at their CDN URLs. Uploaded files
are deleted again if the publish does not go through.`,
		Example: `  release-publisher publish-files --version 2.1.0 --file win-x64=dist/app-win-x64.zip`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir := remoteDir
			if dir == "" {
				dir = "v" + flags.version
			}

			artifacts := make([]publisher.Artifact, 0, len(specs))

			for _, spec := range specs {
				artifact, err := parseFileSpec(spec, dir)
				if err != nil {
					return err
				}

				artifacts = append(artifacts, artifact)
			}

			req, err := flags.request(artifacts)
			if err != nil {
				return err
			}

			return runPublish(cmd, a, req)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringArrayVar(&specs, "file", nil, "PLATFORM=PATH, repeatable")
	cmd.Flags().StringVar(&remoteDir, "remote-dir", "", "bucket directory for the files (default v<version>)")

	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runPublish(cmd *cobra.Command, a *app, req publisher.Request) error {
	ctx := logger.WithName(cmd.Context(), cmd.Name())

	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}

	signer, err := a.signer(cfg)
	if err != nil {
		return err
	}

	deps := publisher.Dependencies{
		Manifests: a.manifests(cfg),
		Signer:    signer,
		Confirmer: common.SurveyConfirmer{},
		Progress:  common.NewProgress(os.Stderr, a.interactive),
		Out:       cmd.OutOrStdout(),
	}

	// Input errors are reported before any credentials are resolved.
	if err = publisher.New(cfg, deps).Validate(&req); err != nil {
		return err
	}

	// Dry runs never touch storage or the CDN, so they need no credentials.
	if !req.DryRun {
		if deps.Store, err = a.store(ctx, cfg); err != nil {
			return err
		}

		if deps.Purger, err = a.purger(cfg); err != nil {
			return err
		}
	}

	result, err := publisher.New(cfg, deps).Publish(ctx, req)
	if err != nil {
		return err
	}

	printResult(cmd, result)

	return nil
}

func printResult(cmd *cobra.Command, result *publisher.Result) {
	out := cmd.OutOrStdout()

	if result.State != publisher.StateDone {
		_, _ = fmt.Fprintln(out, "Dry run: nothing was uploaded.")

		return
	}

	for _, platform := range result.Records.SortedPlatforms() {
		record := result.Records[platform]
		_, _ = fmt.Fprintf(out, "Published %s %s on %s: %s\n", platform, record.Version, record.Channel, record.URL)
	}

	_, _ = fmt.Fprintf(out, "Purged %d URL(s).\n", len(result.Purged))
}
