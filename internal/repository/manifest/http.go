package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/oshokin/release-publisher/internal/apperr"
	"github.com/oshokin/release-publisher/internal/domain/release"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/version"
)

// Repository reads the live manifest.
type Repository interface {
	// Fetch returns the live manifest or an error matching ErrNotFound.
	Fetch(ctx context.Context) (release.Manifest, error)
}

// ErrNotFound is returned when no manifest has been published yet.
var ErrNotFound = errors.New("manifest not found")

// errUnexpectedStatus is returned for any other non-success response.
var errUnexpectedStatus = errors.New("unexpected response status")

// maxManifestSize caps how much of a response body is read.
const maxManifestSize = 16 << 20

// HTTPRepository fetches the manifest from its public URL.
type HTTPRepository struct {
	url    string
	client *http.Client
}

// NewHTTPRepository returns a repository for url. A nil client gets a
// pooled client bounded by timeout.
func NewHTTPRepository(url string, client *http.Client, timeout time.Duration) *HTTPRepository {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
		client.Timeout = timeout
	}

	return &HTTPRepository{
		url:    url,
		client: client,
	}
}

// URL returns the manifest URL.
func (r *HTTPRepository) URL() string {
	return r.url
}

// Fetch downloads and parses the manifest.
func (r *HTTPRepository) Fetch(ctx context.Context) (release.Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, apperr.Validation("fetch manifest", err)
	}

	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, apperr.Transport("fetch manifest", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	logger.DebugKV(ctx, "manifest response", "url", r.url, "status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperr.Transport("fetch manifest", fmt.Errorf("%s: %w", r.url, ErrNotFound))
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, apperr.Transport("fetch manifest", fmt.Errorf("%w: %s", errUnexpectedStatus, resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, apperr.Transport("fetch manifest", err)
	}

	return release.Parse(body)
}

// Load is Fetch with "not published yet" mapped to an empty manifest.
func Load(ctx context.Context, repo Repository) (release.Manifest, bool, error) {
	manifest, err := repo.Fetch(ctx)
	if errors.Is(err, ErrNotFound) {
		logger.Info(ctx, "no manifest published yet, starting from an empty one")

		return release.New(), false, nil
	}

	if err != nil {
		return nil, false, err
	}

	return manifest, true, nil
}
