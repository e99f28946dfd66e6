package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

// Client adapts minio.Client to domain.Storage, scoped to a single bucket.
type Client struct {
	cli    *minio.Client
	bucket string
}

// Config carries the MINIO_* settings needed to dial the object store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// New builds a storage client and verifies the configured bucket exists.
func New(ctx context.Context, cfg Config) (*Client, error) {
	host, secure := ResolveEndpoint(cfg.Endpoint, cfg.UseSSL)

	cli, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("op=storage_new: %w: %w", domain.ErrInternal, err)
	}

	ok, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("op=storage_new: bucket_exists: %w: %w", domain.ErrInternal, err)
	}
	if !ok {
		return nil, fmt.Errorf("op=storage_new: bucket %q not found: %w", cfg.Bucket, domain.ErrInternal)
	}

	return &Client{cli: cli, bucket: cfg.Bucket}, nil
}

// Put uploads data under key. No internal retries: callers classify and
// wrap failures per spec.
func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := c.cli.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("op=storage_put key=%s: %w: %w", key, domain.ErrInternal, err)
	}
	return nil
}

// Get downloads the object stored at key.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.cli.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("op=storage_get key=%s: %w: %w", key, domain.ErrInternal, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		var errResp minio.ErrorResponse
		if asErrResponse(err, &errResp) && errResp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("op=storage_get key=%s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("op=storage_get key=%s: %w: %w", key, domain.ErrInternal, err)
	}
	return data, nil
}

func asErrResponse(err error, out *minio.ErrorResponse) bool {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "" {
		return false
	}
	*out = resp
	return true
}

var _ domain.Storage = (*Client)(nil)
