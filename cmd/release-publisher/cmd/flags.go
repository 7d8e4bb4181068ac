package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/release-publisher/internal/apperr"
	"github.com/oshokin/release-publisher/internal/domain/release"
	"github.com/oshokin/release-publisher/internal/service/publisher"
)

var (
	// errArtifactSpec is returned for a malformed --artifact value.
	errArtifactSpec = errors.New("expected PLATFORM=URL#HASH")
	// errFileSpec is returned for a malformed --file value.
	errFileSpec = errors.New("expected PLATFORM=PATH")
)

// releaseFlags are shared by every publish command.
type releaseFlags struct {
	version   string
	channel   string
	kind      string
	changelog string
	date      string
	yes       bool
	dryRun    bool
}

func (f *releaseFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.version, "version", "", "semantic version of the release (required)")
	flags.StringVar(&f.channel, "channel", string(release.ChannelStable), "release channel ("+joinNames(release.Channels())+")")
	flags.StringVar(&f.kind, "type", "normal", "update type flags, e.g. normal or critical,mandatory")
	flags.StringVar(&f.changelog, "changelog", "", "changelog URL or text")
	flags.StringVar(&f.date, "date", "", "release date, ISO-8601; naive values are UTC (default now)")
	flags.BoolVarP(&f.yes, "yes", "y", false, "publish without asking for confirmation")
	flags.BoolVar(&f.dryRun, "dry-run", false, "show the diff without uploading anything")

	_ = cmd.MarkFlagRequired("version")
}

// request converts the flags and artifacts into a publish request.
func (f *releaseFlags) request(artifacts []publisher.Artifact) (publisher.Request, error) {
	channel, err := release.ParseChannel(f.channel)
	if err != nil {
		return publisher.Request{}, err
	}

	kind, err := release.ParseUpdateType(f.kind)
	if err != nil {
		return publisher.Request{}, err
	}

	var releaseDate time.Time

	if f.date != "" {
		releaseDate, err = release.ParseReleaseDate(f.date)
		if err != nil {
			return publisher.Request{}, apperr.Validation("parse flags", err)
		}
	}

	return publisher.Request{
		Version:     strings.TrimSpace(f.version),
		Channel:     channel,
		Type:        kind,
		Changelog:   f.changelog,
		ReleaseDate: releaseDate,
		Artifacts:   artifacts,
		Confirmed:   f.yes,
		DryRun:      f.dryRun,
	}, nil
}

// parseArtifactSpec parses PLATFORM=URL#HASH. The hash is split off at the
// last '#', so URLs may contain fragments.
func parseArtifactSpec(spec string) (publisher.Artifact, error) {
	platformName, rest, ok := strings.Cut(spec, "=")
	if !ok {
		return publisher.Artifact{}, apperr.Validation("parse artifact", fmt.Errorf("%q: %w", spec, errArtifactSpec))
	}

	i := strings.LastIndex(rest, "#")
	if i <= 0 || i == len(rest)-1 {
		return publisher.Artifact{}, apperr.Validation("parse artifact", fmt.Errorf("%q: %w", spec, errArtifactSpec))
	}

	platform, err := release.ParsePlatform(platformName)
	if err != nil {
		return publisher.Artifact{}, err
	}

	return publisher.Artifact{
		Platform: platform,
		Source: publisher.HostedArtifact{
			URL:         rest[:i],
			ContentHash: strings.ToLower(rest[i+1:]),
		},
	}, nil
}

// parseFileSpec parses PLATFORM=PATH and places the file under remoteDir.
func parseFileSpec(spec, remoteDir string) (publisher.Artifact, error) {
	platformName, path, ok := strings.Cut(spec, "=")
	if !ok || path == "" {
		return publisher.Artifact{}, apperr.Validation("parse file", fmt.Errorf("%q: %w", spec, errFileSpec))
	}

	platform, err := release.ParsePlatform(platformName)
	if err != nil {
		return publisher.Artifact{}, err
	}

	return publisher.Artifact{
		Platform: platform,
		Source: publisher.LocalArtifact{
			Path:       path,
			RemotePath: publisher.RemotePath(remoteDir, path),
		},
	}, nil
}

// joinNames renders a closed set for help texts.
func joinNames[T ~string](values []T) string {
	names := make([]string, 0, len(values))
	for _, value := range values {
		names = append(names, string(value))
	}

	return strings.Join(names, ", ")
}
