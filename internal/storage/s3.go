package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/oshokin/release-publisher/internal/apperr"
)

var (
	// errBucketRequired is returned when no bucket name is configured.
	errBucketRequired = errors.New("bucket name must be provided (SM_B2_BUCKET_NAME)")
	// errEndpointRequired is returned when no S3 endpoint is configured.
	errEndpointRequired = errors.New("storage endpoint must be provided (SM_B2_ENDPOINT)")
	// errCredentialsRequired is returned when the key pair is incomplete.
	errCredentialsRequired = errors.New("storage key id and key must be provided (SM_B2_API_ID, SM_B2_API_KEY)")
)

// S3Options configures an S3Store.
type S3Options struct {
	// Endpoint is the S3-compatible endpoint URL.
	Endpoint string
	// Region is used for request signing.
	Region string
	// Bucket is the bucket name.
	Bucket string
	// AccessKeyID is the application key id.
	AccessKeyID string
	// SecretAccessKey is the application key.
	SecretAccessKey string
	// Timeout bounds each request. Zero means no client-side limit.
	Timeout time.Duration
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// S3Store is a Store backed by an S3-compatible bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds a client for the bucket. No request is sent until the
// first call; use Authenticate to check credentials up front.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	switch {
	case opts.Bucket == "":
		return nil, apperr.Validation("configure storage", errBucketRequired)
	case opts.Endpoint == "":
		return nil, apperr.Validation("configure storage", errEndpointRequired)
	case opts.AccessKeyID == "" || opts.SecretAccessKey == "":
		return nil, apperr.Validation("configure storage", errCredentialsRequired)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
		httpClient.Timeout = opts.Timeout
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		),
		awsconfig.WithHTTPClient(httpClient),
		// Every failure surfaces to the workflow, which owns compensation.
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	)
	if err != nil {
		return nil, apperr.Validation("configure storage", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(strings.TrimRight(opts.Endpoint, "/"))
		o.UsePathStyle = true
		// B2 rejects the default trailing checksums.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &S3Store{
		client: client,
		bucket: opts.Bucket,
	}, nil
}

// Authenticate checks that the credentials can reach the bucket.
func (s *S3Store) Authenticate(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return apperr.Transport("authenticate storage", err)
	}

	return nil
}

// Put uploads body under key.
func (s *S3Store) Put(
	ctx context.Context,
	key string,
	body io.ReadSeeker,
	size int64,
	contentType string,
) (*Object, error) {
	if contentType == "" {
		contentType = ContentTypeBinary
	}

	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, apperr.Transport("upload "+key, err)
	}

	return &Object{
		Key:       key,
		Size:      size,
		ETag:      aws.ToString(out.ETag),
		VersionID: aws.ToString(out.VersionId),
	}, nil
}

// Find looks up the object at key.
func (s *S3Store) Find(ctx context.Context, key string) (*Object, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.Transport("find "+key, fmt.Errorf("%s: %w", key, ErrObjectNotFound))
		}

		return nil, apperr.Transport("find "+key, err)
	}

	return &Object{
		Key:       key,
		Size:      aws.ToInt64(out.ContentLength),
		ETag:      aws.ToString(out.ETag),
		VersionID: aws.ToString(out.VersionId),
	}, nil
}

// Delete removes the object, pinned to its version when known.
func (s *S3Store) Delete(ctx context.Context, obj *Object) error {
	input := &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(obj.Key),
	}

	if obj.VersionID != "" {
		input.VersionId = aws.String(obj.VersionID)
	}

	if _, err := s.client.DeleteObject(ctx, input); err != nil {
		return apperr.Transport("delete "+obj.Key, err)
	}

	return nil
}

func isNotFound(err error) bool {
	var (
		notFound  *types.NotFound
		noSuchKey *types.NoSuchKey
		response  *awshttp.ResponseError
	)

	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		return true
	case errors.As(err, &response):
		return response.HTTPStatusCode() == http.StatusNotFound
	default:
		return false
	}
}
