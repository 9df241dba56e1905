package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kailas-cloud/audiosearch/internal/domain"
)

// s3API is the subset of *s3.Client used by S3Fetcher.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options configures the AWS client.
type S3Options struct {
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// S3Fetcher opens s3://bucket/key objects.
type S3Fetcher struct {
	client s3API
}

// NewS3Fetcher wraps an existing client.
func NewS3Fetcher(client s3API) *S3Fetcher {
	return &S3Fetcher{client: client}
}

// NewS3FetcherFromEnv builds a client from the default AWS credential chain.
func NewS3FetcherFromEnv(ctx context.Context, opts S3Options) (*S3Fetcher, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.UsePathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return NewS3Fetcher(client), nil
}

// Open streams the object body.
func (f *S3Fetcher) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := splitBucketKey(uri)
	if err != nil {
		return nil, err
	}
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("s3 get %s/%s: %w", bucket, key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3 get %s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}
