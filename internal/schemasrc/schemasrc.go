// Package schemasrc loads schema descriptors from local files or S3.
//
// A source is either a filesystem path or an s3://bucket/key URI:
//
//	s, err := schemasrc.Load(ctx, "filters.yaml")
//	s, err := schemasrc.Load(ctx, "s3://configs/filters.yaml", schemasrc.WithRegion("eu-west-1"))
//
// Every failure is an *errors.Error with a Q2xx code.
package schemasrc

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/queryguard/internal/errors"
	"github.com/vango-dev/queryguard/pkg/schema"
)

// maxDescriptorBytes bounds descriptor downloads.
const maxDescriptorBytes = 1 << 20

// Option configures Load.
type Option func(*options)

type options struct {
	region       string
	endpoint     string
	usePathStyle bool
	credentials  aws.CredentialsProvider
	httpClient   *http.Client
	logger       *slog.Logger
}

// WithRegion sets the S3 region. Defaults to AWS_REGION, then us-east-1.
func WithRegion(region string) Option {
	return func(o *options) {
		if region != "" {
			o.region = region
		}
	}
}

// WithEndpoint points the S3 client at an S3-compatible endpoint.
func WithEndpoint(endpoint string, usePathStyle bool) Option {
	return func(o *options) {
		o.endpoint = endpoint
		o.usePathStyle = usePathStyle
	}
}

// WithCredentials overrides the environment credentials.
func WithCredentials(p aws.CredentialsProvider) Option {
	return func(o *options) {
		o.credentials = p
	}
}

// WithHTTPClient sets the client used for S3 requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Load reads and parses the descriptor at src.
func Load(ctx context.Context, src string, opts ...Option) (*schema.Schema, error) {
	o := &options{
		region: os.Getenv("AWS_REGION"),
		logger: slog.Default(),
	}
	if o.region == "" {
		o.region = "us-east-1"
	}
	for _, opt := range opts {
		opt(o)
	}

	data, err := read(ctx, src, o)
	if err != nil {
		return nil, err
	}

	s, err := schema.Parse(data)
	if err != nil {
		return nil, errors.New("Q202").
			WithDetail(err.Error()).
			WithLocation(src, 0).
			Wrap(err)
	}
	o.logger.Debug("schema loaded", "source", src, "fields", s.Len())
	return s, nil
}

func read(ctx context.Context, src string, o *options) ([]byte, error) {
	if src == "" {
		return nil, errors.New("Q201").WithDetail("No schema source given.")
	}

	if !strings.Contains(src, "://") {
		return readFile(src)
	}

	u, err := url.Parse(src)
	if err != nil {
		return nil, errors.New("Q203").WithDetailf("%q is not a valid URI", src).Wrap(err)
	}
	switch u.Scheme {
	case "file":
		return readFile(u.Path)
	case "s3":
		bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
		if bucket == "" || key == "" {
			return nil, errors.New("Q203").WithDetailf("%q must name a bucket and key", src)
		}
		return readS3(ctx, bucket, key, o)
	default:
		return nil, errors.New("Q203").WithDetailf("scheme %q is not supported", u.Scheme)
	}
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("Q201").WithDetail("Cannot read " + path).Wrap(err)
	}
	return data, nil
}

func readS3(ctx context.Context, bucket, key string, o *options) ([]byte, error) {
	s3opts := s3.Options{
		Region:       o.region,
		Credentials:  o.credentialsProvider(),
		BaseEndpoint: endpointPtr(o.endpoint),
		UsePathStyle: o.usePathStyle,
	}
	if o.httpClient != nil {
		s3opts.HTTPClient = o.httpClient
	}
	client := s3.New(s3opts)

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.New("Q204").
			WithDetailf("GetObject s3://%s/%s", bucket, key).
			Wrap(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxDescriptorBytes+1))
	if err != nil {
		return nil, errors.New("Q204").Wrap(err)
	}
	if len(data) > maxDescriptorBytes {
		return nil, errors.New("Q202").WithDetailf("s3://%s/%s exceeds %d bytes", bucket, key, maxDescriptorBytes)
	}
	o.logger.Debug("schema downloaded", "bucket", bucket, "key", key, "bytes", len(data))
	return data, nil
}

func (o *options) credentialsProvider() aws.CredentialsProvider {
	if o.credentials != nil {
		return o.credentials
	}
	if os.Getenv("AWS_ACCESS_KEY_ID") == "" {
		return aws.AnonymousCredentials{}
	}
	return aws.NewCredentialsCache(aws.CredentialsProviderFunc(envCredentials))
}

func envCredentials(context.Context) (aws.Credentials, error) {
	return aws.Credentials{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "environment",
	}, nil
}

func endpointPtr(endpoint string) *string {
	if endpoint == "" {
		return nil
	}
	return aws.String(endpoint)
}
