package objectstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the subset of *s3.Client used here.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stores videos in an AWS S3 bucket.
type S3 struct {
	client     s3API
	bucket     string
	publicBase string
}

// Compile-time interface check.
var _ Store = (*S3)(nil)

// NewS3 wraps an S3 client. publicBase defaults to the virtual-hosted bucket URL.
func NewS3(client s3API, bucket, region, publicBase string) *S3 {
	if publicBase == "" {
		publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return &S3{client: client, bucket: bucket, publicBase: publicBase}
}

func (s *S3) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if len(body) == 0 {
		return "", ErrEmptyBody
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return joinURL(s.publicBase, key), nil
}
