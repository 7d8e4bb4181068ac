package cdn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/release-publisher/internal/apperr"
)

type purgeServer struct {
	mu       sync.Mutex
	requests []map[string][]string
	auth     []string
	status   int
	success  bool
}

func (s *purgeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Method != http.MethodPost || r.URL.Path != "/zones/zone-1/purge_cache" {
		w.WriteHeader(http.StatusNotFound)

		return
	}

	var body map[string][]string

	_ = json.NewDecoder(r.Body).Decode(&body)
	s.requests = append(s.requests, body)
	s.auth = append(s.auth, r.Header.Get("Authorization"))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(s.status)

	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":  s.success,
		"errors":   []any{},
		"messages": []any{},
		"result":   map[string]string{"id": "zone-1"},
	})
}

func newTestPurger(t *testing.T, srv *purgeServer) *CloudflarePurger {
	t.Helper()

	server := httptest.NewServer(srv)
	t.Cleanup(server.Close)

	purger, err := NewCloudflarePurger("zone-1", "token", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	require.NoError(t, err)

	return purger
}

// TestNewCloudflarePurger_Validation requires both zone and token.
func TestNewCloudflarePurger_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewCloudflarePurger("", "token")
	require.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = NewCloudflarePurger("zone", "")
	require.True(t, apperr.IsKind(err, apperr.KindValidation))
}

// TestPurge sends the file list with the bearer token.
func TestPurge(t *testing.T) {
	t.Parallel()

	srv := &purgeServer{status: http.StatusOK, success: true}
	purger := newTestPurger(t, srv)

	urls := []string{"https://cdn.example.com/update.json", "https://cdn.example.com/a.zip"}
	require.NoError(t, purger.Purge(context.Background(), urls...))

	require.Len(t, srv.requests, 1)
	require.Equal(t, urls, srv.requests[0]["files"])
	require.Equal(t, "Bearer token", srv.auth[0])

	// Nothing to purge means no request.
	require.NoError(t, purger.Purge(context.Background()))
	require.Len(t, srv.requests, 1)
}

// TestPurge_Failure reports HTTP and API failures as transport errors.
func TestPurge_Failure(t *testing.T) {
	t.Parallel()

	failing := newTestPurger(t, &purgeServer{status: http.StatusForbidden})
	err := failing.Purge(context.Background(), "https://cdn.example.com/update.json")
	require.True(t, apperr.IsKind(err, apperr.KindTransport))

	rejected := newTestPurger(t, &purgeServer{status: http.StatusOK, success: false})
	err = rejected.Purge(context.Background(), "https://cdn.example.com/update.json")
	require.ErrorIs(t, err, errPurgeRejected)
	require.True(t, apperr.IsKind(err, apperr.KindTransport))
}
