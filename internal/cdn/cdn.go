// Package cdn invalidates cached copies of public URLs.
package cdn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudflare/cloudflare-go"

	"github.com/oshokin/release-publisher/internal/apperr"
	"github.com/oshokin/release-publisher/internal/version"
)

// Purger drops cached copies of the given URLs.
type Purger interface {
	Purge(ctx context.Context, urls ...string) error
}

var (
	// errZoneRequired is returned when no zone id is configured.
	errZoneRequired = errors.New("cloudflare zone id must be provided (SM_CF_ZONE_ID)")
	// errTokenRequired is returned when no API token is configured.
	errTokenRequired = errors.New("cloudflare cache purge token must be provided (SM_CF_CACHE_PURGE_TOKEN)")
	// errPurgeRejected is returned when the API answers without success.
	errPurgeRejected = errors.New("purge rejected")
)

// Option configures a CloudflarePurger.
type Option func(*options)

type options struct {
	baseURL    string
	httpClient *http.Client
}

// WithBaseURL points the client at another API root, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client, typically to bound request time.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// CloudflarePurger purges single files from a Cloudflare zone.
type CloudflarePurger struct {
	api    *cloudflare.API
	zoneID string
}

// NewCloudflarePurger builds a purger for the zone.
func NewCloudflarePurger(zoneID, token string, opts ...Option) (*CloudflarePurger, error) {
	if zoneID == "" {
		return nil, apperr.Validation("configure cdn", errZoneRequired)
	}

	if token == "" {
		return nil, apperr.Validation("configure cdn", errTokenRequired)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	apiOpts := []cloudflare.Option{
		cloudflare.UserAgent(version.UserAgent()),
		// A purge failure is reported to the operator instead of retried.
		cloudflare.UsingRetryPolicy(0, 0, 0),
	}

	if o.baseURL != "" {
		apiOpts = append(apiOpts, cloudflare.BaseURL(strings.TrimRight(o.baseURL, "/")))
	}

	if o.httpClient != nil {
		apiOpts = append(apiOpts, cloudflare.HTTPClient(o.httpClient))
	}

	api, err := cloudflare.NewWithAPIToken(token, apiOpts...)
	if err != nil {
		return nil, apperr.Validation("configure cdn", err)
	}

	return &CloudflarePurger{
		api:    api,
		zoneID: zoneID,
	}, nil
}

// Purge invalidates urls. An empty list is a no-op.
func (p *CloudflarePurger) Purge(ctx context.Context, urls ...string) error {
	if len(urls) == 0 {
		return nil
	}

	resp, err := p.api.PurgeCache(ctx, p.zoneID, cloudflare.PurgeCacheRequest{
		Files: urls,
	})
	if err != nil {
		return apperr.Transport("purge cache", err)
	}

	if !resp.Success {
		return apperr.Transport("purge cache", fmt.Errorf("%w: %v", errPurgeRejected, resp.Errors))
	}

	return nil
}
