package publisher

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/oshokin/release-publisher/internal/apperr"
	"github.com/oshokin/release-publisher/internal/domain/release"
)

var (
	// ErrNoArtifacts is returned when a request names no platform.
	ErrNoArtifacts = errors.New("at least one artifact is required")
	// ErrDuplicatePlatform is returned when a platform appears twice in one request.
	ErrDuplicatePlatform = errors.New("platform listed more than once")
	// ErrMissingSource is returned for an artifact without a source.
	ErrMissingSource = errors.New("artifact source is required")
	// ErrMissingHash is returned for a hosted artifact without a content hash.
	ErrMissingHash = errors.New("content hash is required for an already hosted artifact")
	// ErrMissingPath is returned for a local artifact without a file path.
	ErrMissingPath = errors.New("local file path is required")
	// ErrMissingRemotePath is returned for a local artifact without a destination.
	ErrMissingRemotePath = errors.New("remote path is required")
	// ErrNotAFile is returned when a local artifact path is a directory.
	ErrNotAFile = errors.New("not a regular file")
)

// Source tells where an artifact comes from. It is either a HostedArtifact
// or a LocalArtifact.
type Source interface {
	isSource()
}

// HostedArtifact is already reachable at URL; the caller vouches for its hash.
type HostedArtifact struct {
	// URL is the public download URL.
	URL string
	// ContentHash is the hex BLAKE3 digest of the artifact.
	ContentHash string
}

// LocalArtifact is a file that is hashed and uploaded during the publish.
type LocalArtifact struct {
	// Path is the local file.
	Path string
	// RemotePath is the object key the file is uploaded to.
	RemotePath string
}

func (HostedArtifact) isSource() {}

func (LocalArtifact) isSource() {}

// Artifact is one platform build to publish.
type Artifact struct {
	Platform release.Platform
	Source   Source
}

// Request describes one publish against one channel.
type Request struct {
	// Version is the strict semantic version of the release.
	Version string
	// Channel is the target channel.
	Channel release.Channel
	// Type holds the update type flags.
	Type release.UpdateType
	// Changelog is a URL or short text shared by every record.
	Changelog string
	// ReleaseDate defaults to the current time when zero.
	ReleaseDate time.Time
	// Artifacts lists the platforms to publish, at most one per platform.
	Artifacts []Artifact
	// Confirmed skips the interactive confirmation.
	Confirmed bool
	// DryRun stops after the diff without touching storage or the CDN.
	DryRun bool
}

// Validate checks the request without any I/O besides stat-ing local files.
func (r *Request) Validate() error {
	const op = "validate request"

	if len(r.Artifacts) == 0 {
		return apperr.Validation(op, ErrNoArtifacts)
	}

	if !r.Channel.Valid() {
		return apperr.Validation(op, fmt.Errorf("%w: %q", release.ErrUnknownChannel, r.Channel))
	}

	if !r.Type.Valid() {
		return apperr.Validation(op, fmt.Errorf("%w: %d", release.ErrUnknownUpdateType, r.Type))
	}

	seen := make(map[release.Platform]struct{}, len(r.Artifacts))

	for _, artifact := range r.Artifacts {
		if !artifact.Platform.Valid() {
			return apperr.Validation(op, fmt.Errorf("%w: %q", release.ErrUnknownPlatform, artifact.Platform))
		}

		if _, ok := seen[artifact.Platform]; ok {
			return apperr.Validation(op, fmt.Errorf("%w: %s", ErrDuplicatePlatform, artifact.Platform))
		}

		seen[artifact.Platform] = struct{}{}

		if err := validateSource(artifact.Source); err != nil {
			return apperr.Validation(op, fmt.Errorf("%s: %w", artifact.Platform, err))
		}
	}

	return nil
}

func validateSource(source Source) error {
	switch s := source.(type) {
	case HostedArtifact:
		if strings.TrimSpace(s.URL) == "" {
			return release.ErrMissingURL
		}

		if s.ContentHash == "" {
			return ErrMissingHash
		}

		return release.ValidateContentHash(s.ContentHash)
	case LocalArtifact:
		if s.Path == "" {
			return ErrMissingPath
		}

		if strings.Trim(s.RemotePath, "/") == "" {
			return ErrMissingRemotePath
		}

		info, err := os.Stat(s.Path)
		if err != nil {
			return err
		}

		if !info.Mode().IsRegular() {
			return fmt.Errorf("%s: %w", s.Path, ErrNotAFile)
		}

		return nil
	default:
		return ErrMissingSource
	}
}

// RemotePath joins an upload directory and the base name of a local file.
func RemotePath(dir, file string) string {
	return strings.TrimPrefix(path.Join(dir, path.Base(strings.ReplaceAll(file, "\\", "/"))), "/")
}
