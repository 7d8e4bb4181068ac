package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-publisher/internal/apperr"
	"github.com/oshokin/release-publisher/internal/domain/release"
	"github.com/oshokin/release-publisher/internal/service/publisher"
)

const testHash = "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"

// TestParseArtifactSpec splits platform, URL and hash and keeps URL fragments.
func TestParseArtifactSpec(t *testing.T) {
	t.Parallel()

	artifact, err := parseArtifactSpec("win-x64=https://cdn.example.com/a.zip#frag#" + testHash)
	require.NoError(t, err)
	require.Equal(t, publisher.Artifact{
		Platform: release.PlatformWindowsX64,
		Source: publisher.HostedArtifact{
			URL:         "https://cdn.example.com/a.zip#frag",
			ContentHash: testHash,
		},
	}, artifact)

	for _, spec := range []string{
		"win-x64",
		"win-x64=https://cdn.example.com/a.zip",
		"win-x64=https://cdn.example.com/a.zip#",
		"win-x64=#" + testHash,
		"android-arm=https://cdn.example.com/a.zip#" + testHash,
	} {
		_, err = parseArtifactSpec(spec)
		require.True(t, apperr.IsKind(err, apperr.KindValidation), spec)
	}
}

// TestParseFileSpec places files under the remote directory.
func TestParseFileSpec(t *testing.T) {
	t.Parallel()

	artifact, err := parseFileSpec("linux-x64=dist/app.tar.gz", "v1.2.3")
	require.NoError(t, err)
	require.Equal(t, publisher.LocalArtifact{Path: "dist/app.tar.gz", RemotePath: "v1.2.3/app.tar.gz"}, artifact.Source)

	_, err = parseFileSpec("linux-x64=", "v1")
	require.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = parseFileSpec("mips=app", "v1")
	require.ErrorIs(t, err, release.ErrUnknownPlatform)
}

// TestReleaseFlagsRequest parses channel, type and date flags.
func TestReleaseFlagsRequest(t *testing.T) {
	t.Parallel()

	flags := releaseFlags{
		version: " 2.1.0 ",
		channel: "preview",
		kind:    "critical,mandatory",
		date:    "2024-03-04 05:06:07",
		yes:     true,
	}

	req, err := flags.request(nil)
	require.NoError(t, err)
	require.Equal(t, "2.1.0", req.Version)
	require.Equal(t, release.ChannelPreview, req.Channel)
	require.Equal(t, release.UpdateTypeCritical|release.UpdateTypeMandatory, req.Type)
	require.True(t, req.ReleaseDate.Equal(time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)))
	require.True(t, req.Confirmed)
	require.False(t, req.DryRun)

	bad := flags
	bad.kind = "urgent"
	_, err = bad.request(nil)
	require.ErrorIs(t, err, release.ErrUnknownUpdateType)

	bad = flags
	bad.channel = "nightly"
	_, err = bad.request(nil)
	require.ErrorIs(t, err, release.ErrUnknownChannel)

	bad = flags
	bad.date = "yesterday"
	_, err = bad.request(nil)
	require.ErrorIs(t, err, release.ErrInvalidReleaseDate)
}
