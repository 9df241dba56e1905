package source

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kailas-cloud/audiosearch/internal/domain"
)

// MinioOptions configures an S3-compatible endpoint.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// MinioFetcher opens minio://bucket/key objects.
type MinioFetcher struct {
	client *minio.Client
}

// NewMinioFetcher creates a fetcher for the configured endpoint.
func NewMinioFetcher(opts MinioOptions) (*MinioFetcher, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinioFetcher{client: client}, nil
}

// Open stats then streams the object.
func (f *MinioFetcher) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := splitBucketKey(uri)
	if err != nil {
		return nil, err
	}
	obj, err := f.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get %s/%s: %w", bucket, key, err)
	}
	// GetObject is lazy; Stat surfaces missing keys before decoding starts.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return nil, fmt.Errorf("minio get %s/%s: %w", bucket, key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("minio stat %s/%s: %w", bucket, key, err)
	}
	return obj, nil
}
