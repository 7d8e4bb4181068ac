package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-publisher/internal/cdn"
	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/repository/manifest"
	"github.com/oshokin/release-publisher/internal/signing"
	"github.com/oshokin/release-publisher/internal/storage"
)

const bucketName = "releases"

// cloud emulates a path-style S3 bucket whose objects are also served
// publicly under /cdn/, plus the Cloudflare purge endpoint.
type cloud struct {
	mu      sync.Mutex
	objects map[string][]byte
	purged  []string
	// failPut makes uploads of the listed keys fail.
	failPut map[string]bool
}

func (c *cloud) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case strings.HasPrefix(r.URL.Path, "/cdn/"):
		c.serveCDN(w, r)
	case strings.HasPrefix(r.URL.Path, "/zones/"):
		c.servePurge(w, r)
	case strings.HasPrefix(r.URL.Path, "/"+bucketName):
		c.serveBucket(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (c *cloud) serveCDN(w http.ResponseWriter, r *http.Request) {
	data, ok := c.objects[strings.TrimPrefix(r.URL.Path, "/cdn/")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)

		return
	}

	_, _ = w.Write(data)
}

func (c *cloud) servePurge(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Files []string `json:"files"`
	}

	_ = json.NewDecoder(r.Body).Decode(&body)
	c.purged = append(c.purged, body.Files...)

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"success":true,"errors":[],"messages":[],"result":{"id":"zone"}}`))
}

func (c *cloud) serveBucket(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/"+bucketName), "/")

	switch {
	case key == "" && r.Method == http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		if c.failPut[key] {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		data, _ := io.ReadAll(r.Body)
		c.objects[key] = data
		w.Header().Set("ETag", `"`+strconv.Itoa(len(data))+`"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead:
		data, ok := c.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		delete(c.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (c *cloud) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.objects))
	for key := range c.objects {
		keys = append(keys, key)
	}

	return keys
}

func (c *cloud) object(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.objects[key]

	return data, ok
}

func (c *cloud) purgedURLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.purged...)
}

// env holds real collaborators wired to the emulated cloud.
type env struct {
	cloud     *cloud
	cfg       *config.Config
	store     *storage.S3Store
	purger    *cdn.CloudflarePurger
	manifests *manifest.HTTPRepository
	signer    *signing.Signer
}

func newEnv(t *testing.T) *env {
	t.Helper()

	c := &cloud{
		objects: make(map[string][]byte),
		failPut: make(map[string]bool),
	}

	server := httptest.NewServer(c)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		CDNRoot:      server.URL + "/cdn",
		B2Endpoint:   server.URL,
		B2BucketName: bucketName,
		LockFile:     filepath.Join(t.TempDir(), "publish.lock"),
		Timeout:      10 * time.Second,
	}
	require.NoError(t, config.Validate(cfg))

	ctx := context.Background()

	store, err := storage.NewS3Store(ctx, storage.S3Options{
		Endpoint:        cfg.B2Endpoint,
		Region:          cfg.B2Region,
		Bucket:          cfg.B2BucketName,
		AccessKeyID:     "key-id",
		SecretAccessKey: "key",
		HTTPClient:      server.Client(),
	})
	require.NoError(t, err)
	require.NoError(t, store.Authenticate(ctx))

	purger, err := cdn.NewCloudflarePurger("zone", "token", cdn.WithBaseURL(server.URL), cdn.WithHTTPClient(server.Client()))
	require.NoError(t, err)

	key, err := signing.GenerateKey()
	require.NoError(t, err)

	signer, err := signing.NewSigner(key)
	require.NoError(t, err)

	return &env{
		cloud:     c,
		cfg:       cfg,
		store:     store,
		purger:    purger,
		manifests: manifest.NewHTTPRepository(cfg.UpdateManifestURL, server.Client(), cfg.Timeout),
		signer:    signer,
	}
}
