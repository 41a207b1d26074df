package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Service uploads media assets to Amazon S3 (or compatible APIs).
type S3Service struct {
	client        *s3.Client
	uploader      *manager.Uploader
	region        string
	publicBaseURL string
}

// NewS3Service wraps an S3 client. publicBaseURL, when non-empty, is used as
// the base for returned object URLs (CDN or path-style endpoint); otherwise
// the standard virtual-hosted S3 URL for the region is built.
func NewS3Service(client *s3.Client, region, publicBaseURL string) *S3Service {
	return &S3Service{
		client:        client,
		uploader:      manager.NewUploader(client),
		region:        region,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *S3Service) UploadFile(ctx context.Context, localPath, key string, opts UploadOptions) (Object, error) {
	if opts.Bucket == "" {
		return Object{}, fmt.Errorf("storage bucket is required")
	}
	if strings.TrimSpace(key) == "" {
		return Object{}, fmt.Errorf("object key is required")
	}

	fullKey := strings.TrimPrefix(key, "/")
	if prefix := strings.Trim(opts.KeyPrefix, "/"); prefix != "" {
		fullKey = prefix + "/" + fullKey
	}

	f, err := os.Open(localPath)
	if err != nil {
		return Object{}, fmt.Errorf("open staged file %s: %w", localPath, err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket: aws.String(opts.Bucket),
		Key:    aws.String(fullKey),
		Body:   f,
		ACL:    types.ObjectCannedACLPublicRead,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", fullKey, err)
	}

	return Object{Key: fullKey, URL: s.objectURL(opts.Bucket, fullKey)}, nil
}

func (s *S3Service) DeleteObject(ctx context.Context, bucket, key string) error {
	if bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("object key is required")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func (s *S3Service) objectURL(bucket, key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	escaped = strings.TrimPrefix(escaped, "/")
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.region, escaped)
}

var _ Service = (*S3Service)(nil)
