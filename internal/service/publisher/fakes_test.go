package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-publisher/internal/apperr"
	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/release"
	"github.com/oshokin/release-publisher/internal/repository/manifest"
	"github.com/oshokin/release-publisher/internal/signing"
	"github.com/oshokin/release-publisher/internal/storage"
)

var errInjected = errors.New("injected failure")

var _ storage.Store = (*memoryStore)(nil)

// memoryStore is a storage.Store keeping objects in memory with optional failures.
type memoryStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failPut    map[string]bool
	failDelete bool
	puts       int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		objects: make(map[string][]byte),
		failPut: make(map[string]bool),
	}
}

func (m *memoryStore) Put(_ context.Context, key string, body io.ReadSeeker, _ int64, _ string) (*storage.Object, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.puts++

	if m.failPut[key] {
		return nil, apperr.Transport("upload "+key, errInjected)
	}

	m.objects[key] = data

	return &storage.Object{Key: key, Size: int64(len(data)), VersionID: fmt.Sprintf("v%d", m.puts)}, nil
}

func (m *memoryStore) Find(_ context.Context, key string) (*storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}

	return &storage.Object{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Delete(_ context.Context, obj *storage.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failDelete {
		return apperr.Transport("delete "+obj.Key, errInjected)
	}

	delete(m.objects, obj.Key)

	return nil
}

func (m *memoryStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

func (m *memoryStore) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]

	return data, ok
}

// storeManifests serves the manifest object of a memoryStore, like the CDN in front of the bucket.
type storeManifests struct {
	store *memoryStore
	key   string
	err   error
	calls int
	// onFetch runs before every fetch.
	onFetch func()
}

func (s *storeManifests) Fetch(context.Context) (release.Manifest, error) {
	s.calls++

	if s.onFetch != nil {
		s.onFetch()
	}

	if s.err != nil {
		return nil, s.err
	}

	data, ok := s.store.get(s.key)
	if !ok {
		return nil, apperr.Transport("fetch manifest", manifest.ErrNotFound)
	}

	return release.Parse(data)
}

// authStore is a memoryStore that also checks credentials.
type authStore struct {
	*memoryStore

	authCalls int
	authErr   error
}

func (a *authStore) Authenticate(context.Context) error {
	a.authCalls++

	return a.authErr
}

// recordingPurger remembers purged URLs.
type recordingPurger struct {
	mu     sync.Mutex
	purged [][]string
	err    error
}

func (p *recordingPurger) Purge(_ context.Context, urls ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}

	p.purged = append(p.purged, urls)

	return nil
}

// fixture wires a Service to in-memory collaborators.
type fixture struct {
	cfg       *config.Config
	store     *memoryStore
	manifests *storeManifests
	purger    *recordingPurger
	signer    *signing.Signer
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key, err := signing.GenerateKey()
	require.NoError(t, err)

	signer, err := signing.NewSigner(key)
	require.NoError(t, err)

	cfg := &config.Config{
		CDNRoot:  "https://cdn.example.com",
		LockFile: filepath.Join(t.TempDir(), "publish.lock"),
	}
	require.NoError(t, config.Validate(cfg))

	store := newMemoryStore()

	return &fixture{
		cfg:       cfg,
		store:     store,
		manifests: &storeManifests{store: store, key: cfg.ManifestPath},
		purger:    new(recordingPurger),
		signer:    signer,
		now:       time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
	}
}

func (f *fixture) service(answer bool, out io.Writer) *Service {
	return New(f.cfg, Dependencies{
		Manifests: f.manifests,
		Store:     f.store,
		Purger:    f.purger,
		Signer:    f.signer,
		Confirmer: confirmer(answer),
		Out:       out,
		Now:       func() time.Time { return f.now },
	})
}

// seed stores a manifest document as if it had been published earlier.
func (f *fixture) seed(t *testing.T, m release.Manifest) []byte {
	t.Helper()

	for _, set := range m {
		for _, record := range set {
			require.NoError(t, f.signer.SignRecord(record))
		}
	}

	data, err := m.Marshal()
	require.NoError(t, err)

	f.store.objects[f.cfg.ManifestPath] = data

	return data
}

func (f *fixture) live(t *testing.T) release.Manifest {
	t.Helper()

	data, ok := f.store.get(f.cfg.ManifestPath)
	require.True(t, ok, "manifest not uploaded")

	m, err := release.Parse(data)
	require.NoError(t, err)

	return m
}

type confirmer bool

func (c confirmer) Confirm(context.Context, string) (bool, error) {
	return bool(c), nil
}

const (
	hashA = "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"
	hashB = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
)

func hosted(platform release.Platform, url, hash string) Artifact {
	return Artifact{
		Platform: platform,
		Source:   HostedArtifact{URL: url, ContentHash: hash},
	}
}

func writeArtifact(t *testing.T, name, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func record(version string, channel release.Channel, url, hash string) *release.Record {
	return &release.Record{
		Version:     version,
		ReleaseDate: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Channel:     channel,
		Type:        release.UpdateTypeNormal,
		URL:         url,
		Changelog:   "https://cdn.example.com/changelog.md",
		ContentHash: hash,
	}
}
