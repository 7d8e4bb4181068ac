package manifest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-publisher/internal/apperr"
	"github.com/oshokin/release-publisher/internal/domain/release"
)

const document = `{
  "stable": {
    "win-x64": {
      "version": "2.5.0",
      "releaseDate": "2024-01-02T03:04:05+00:00",
      "channel": "stable",
      "type": 1,
      "url": "https://cdn.example.com/v2.5.0/app-win.zip",
      "changelog": "https://cdn.example.com/changelog.md",
      "hashBlake3": "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262",
      "signature": "c2ln"
    }
  }
}`

func serve(t *testing.T, status int, body string) (*HTTPRepository, <-chan http.Header) {
	t.Helper()

	seen := make(chan http.Header, 8)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return NewHTTPRepository(server.URL+"/update.json", server.Client(), 0), seen
}

// TestFetch parses the document and sends cache-busting headers.
func TestFetch(t *testing.T) {
	t.Parallel()

	repo, seen := serve(t, http.StatusOK, document)

	manifest, err := repo.Fetch(context.Background())
	require.NoError(t, err)

	record, ok := manifest.Get(release.ChannelStable, release.PlatformWindowsX64)
	require.True(t, ok)
	require.Equal(t, "2.5.0", record.Version)

	headers := <-seen
	require.Equal(t, "no-cache", headers.Get("Cache-Control"))
	require.Equal(t, "no-cache", headers.Get("Pragma"))
	require.Contains(t, headers.Get("User-Agent"), "release-publisher/")
}

// TestFetch_Failures classifies not-found, server and parse failures.
func TestFetch_Failures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	missing, _ := serve(t, http.StatusNotFound, "")
	_, err := missing.Fetch(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	broken, _ := serve(t, http.StatusInternalServerError, "oops")
	_, err = broken.Fetch(ctx)
	require.True(t, apperr.IsKind(err, apperr.KindTransport))
	require.NotErrorIs(t, err, ErrNotFound)

	garbage, _ := serve(t, http.StatusOK, "{not json")
	_, err = garbage.Fetch(ctx)
	require.True(t, apperr.IsKind(err, apperr.KindParse))
}

// TestLoad maps a missing manifest to an empty one and passes other errors through.
func TestLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	missing, _ := serve(t, http.StatusNotFound, "")
	manifest, found, err := Load(ctx, missing)
	require.NoError(t, err)
	require.False(t, found)
	require.Empty(t, manifest)

	present, _ := serve(t, http.StatusOK, document)
	manifest, found, err = Load(ctx, present)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, manifest, 1)

	broken, _ := serve(t, http.StatusBadGateway, "")
	_, _, err = Load(ctx, broken)
	require.Error(t, err)
}
