package artifact

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	// DefaultRegion is used when no region is configured.
	DefaultRegion = "us-east-1"

	// archiveContentType is sent with every uploaded archive.
	archiveContentType = "application/zip"
)

var errBucketRequired = errors.New("s3 bucket required")

// Config holds the S3 destination.
type Config struct {
	// Bucket receives the archives.
	Bucket string
	// Region defaults to DefaultRegion.
	Region string
	// Endpoint is an optional custom endpoint, e.g. a MinIO URL.
	Endpoint string
	// PathStyle forces path-style addressing.
	PathStyle bool
}

// Option customizes store construction.
type Option func(*options)

type options struct {
	httpClient  *http.Client
	credentials aws.CredentialsProvider
}

// WithHTTPClient sets the HTTP client used by the S3 client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithCredentials replaces the default credentials chain.
func WithCredentials(provider aws.CredentialsProvider) Option {
	return func(o *options) {
		o.credentials = provider
	}
}

// S3Store uploads archives to a single bucket. Object keys are used as given.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store creates a store from cfg.
func NewS3Store(ctx context.Context, cfg Config, opts ...Option) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errBucketRequired
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if o.credentials != nil {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(o.credentials))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(so *s3.Options) {
		so.UsePathStyle = cfg.PathStyle

		if cfg.Endpoint != "" {
			so.BaseEndpoint = aws.String(cfg.Endpoint)
		}

		if o.httpClient != nil {
			so.HTTPClient = o.httpClient
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Publish uploads the file at filePath under key and returns its s3:// URI.
func (s *S3Store) Publish(ctx context.Context, key, filePath string, metadata map[string]string) (string, error) {
	key = strings.TrimPrefix(key, "/")

	f, err := os.Open(filepath.Clean(filePath))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(archiveContentType),
		Metadata:      metadata,
	}

	if _, err = s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}

	return "s3://" + s.bucket + "/" + key, nil
}
