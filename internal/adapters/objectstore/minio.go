package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// minioAPI is the subset of *minio.Client used here.
type minioAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// Minio stores videos in a MinIO (or any S3-compatible) bucket.
type Minio struct {
	client     minioAPI
	bucket     string
	publicBase string
}

// Compile-time interface check.
var _ Store = (*Minio)(nil)

// MinioConfig holds connection settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Bucket    string
	// PublicBaseURL prefixes returned URLs; defaults to the endpoint.
	PublicBaseURL string
}

// NewMinio connects to MinIO.
func NewMinio(cfg MinioConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	base := cfg.PublicBaseURL
	if base == "" {
		scheme := "http"
		if cfg.Secure {
			scheme = "https"
		}
		base = scheme + "://" + cfg.Endpoint
	}
	return newMinio(client, cfg.Bucket, base), nil
}

func newMinio(client minioAPI, bucket, publicBase string) *Minio {
	return &Minio{client: client, bucket: bucket, publicBase: publicBase}
}

// EnsureBucket creates the bucket if it does not exist.
func (m *Minio) EnsureBucket(ctx context.Context) error {
	ok, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", m.bucket, err)
	}
	if ok {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket %s: %w", m.bucket, err)
	}
	return nil
}

func (m *Minio) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if len(body) == 0 {
		return "", ErrEmptyBody
	}
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", m.bucket, key, err)
	}
	return joinURL(m.publicBase, m.bucket, key), nil
}
