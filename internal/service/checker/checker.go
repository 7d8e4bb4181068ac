package checker

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/release-publisher/internal/apperr"
	"github.com/oshokin/release-publisher/internal/domain/release"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/repository/manifest"
	"github.com/oshokin/release-publisher/internal/signing"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	// ErrInvalidSignatures is returned when at least one record fails verification.
	ErrInvalidSignatures = errors.New("manifest has records with invalid signatures")
	// errUnknownFormat is returned for an unsupported output format.
	errUnknownFormat = errors.New("unknown output format")
)

// Options controls what Run prints and checks.
type Options struct {
	// Format is FormatJSON (default) or FormatYAML.
	Format string
	// Verify checks every record against PublicKey.
	Verify bool
	// PublicKey is required when Verify is set.
	PublicKey ed25519.PublicKey
	// Out receives the manifest and the verification report.
	Out io.Writer
}

// Verification is the outcome for one record.
type Verification struct {
	Channel  release.Channel
	Platform release.Platform
	Version  string
	Valid    bool
}

// Report is what Run found.
type Report struct {
	Manifest      release.Manifest
	Verifications []Verification
}

// Check fetches and parses the live manifest. A missing manifest is an
// error here, distinguishable with errors.Is(err, manifest.ErrNotFound).
func Check(ctx context.Context, repo manifest.Repository) (release.Manifest, error) {
	return repo.Fetch(ctx)
}

// Run fetches the manifest, prints it and verifies it when asked.
func Run(ctx context.Context, repo manifest.Repository, opts Options) (*Report, error) {
	ctx = logger.WithName(ctx, "checker")

	if opts.Out == nil {
		opts.Out = io.Discard
	}

	format := strings.ToLower(opts.Format)
	if format == "" {
		format = FormatJSON
	}

	if format != FormatJSON && format != FormatYAML {
		return nil, apperr.Validation("check", fmt.Errorf("%w: %q", errUnknownFormat, opts.Format))
	}

	if opts.Verify && len(opts.PublicKey) == 0 {
		return nil, apperr.Signature("check", signing.ErrNoSigningKey)
	}

	current, err := Check(ctx, repo)
	if err != nil {
		return nil, err
	}

	if err = render(opts.Out, format, current); err != nil {
		return nil, err
	}

	report := &Report{
		Manifest: current,
	}

	if !opts.Verify {
		return report, nil
	}

	report.Verifications, err = Verify(opts.PublicKey, current)
	if err != nil {
		return nil, err
	}

	invalid := 0

	for _, v := range report.Verifications {
		status := "ok"
		if !v.Valid {
			status = "INVALID"
			invalid++
		}

		_, _ = fmt.Fprintf(opts.Out, "%-12s %-10s %-16s %s\n", v.Channel, v.Platform, v.Version, status)
	}

	logger.InfoKV(ctx, "Verified manifest", "records", len(report.Verifications), "invalid", invalid)

	if invalid > 0 {
		return report, apperr.Signature("verify manifest", fmt.Errorf("%w: %d of %d", ErrInvalidSignatures, invalid, len(report.Verifications)))
	}

	return report, nil
}

// Verify checks every record of m in display order.
func Verify(publicKey ed25519.PublicKey, m release.Manifest) ([]Verification, error) {
	var results []Verification

	for _, channel := range m.SortedChannels() {
		set := m[channel]

		for _, platform := range set.SortedPlatforms() {
			record := set[platform]

			valid, err := signing.VerifyRecord(publicKey, record)
			if err != nil {
				return nil, err
			}

			results = append(results, Verification{
				Channel:  channel,
				Platform: platform,
				Version:  record.Version,
				Valid:    valid,
			})
		}
	}

	return results, nil
}

func render(out io.Writer, format string, m release.Manifest) error {
	var (
		data []byte
		err  error
	)

	if format == FormatYAML {
		data, err = yaml.Marshal(m)
	} else {
		data, err = m.Marshal()
	}

	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	_, err = out.Write(data)

	return err
}
