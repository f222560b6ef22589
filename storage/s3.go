package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mhpenta/imageloop"
)

// PutObjectAPI is the part of the S3 client S3Storage uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Ensure *s3.Client implements PutObjectAPI
var _ PutObjectAPI = (*s3.Client)(nil)

// S3Config holds S3 storage configuration.
type S3Config struct {
	Bucket string
	Prefix string // Optional key prefix
	Region string // AWS region (optional, uses default if empty)

	// Endpoint overrides the S3 endpoint, for S3-compatible services.
	Endpoint     string
	UsePathStyle bool

	// PublicBaseURL, when set, is used to build returned URLs instead of s3:// URIs.
	PublicBaseURL string
}

// S3Storage saves images as objects in an S3 bucket.
// Key structure: <prefix>/<continuation>/<image>.<ext>
type S3Storage struct {
	client PutObjectAPI
	cfg    S3Config
}

// Ensure S3Storage implements imageloop.Storage.
var _ imageloop.Storage = (*S3Storage)(nil)

// NewS3Storage creates an S3Storage using the default AWS credential chain.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3StorageWithClient(client, cfg), nil
}

// NewS3StorageWithClient creates an S3Storage with a custom client.
func NewS3StorageWithClient(client PutObjectAPI, cfg S3Config) *S3Storage {
	return &S3Storage{client: client, cfg: cfg}
}

// SaveFile uploads data under the configured prefix and returns its URL.
func (s *S3Storage) SaveFile(ctx context.Context, data []byte, path string, contentType string) (string, error) {
	key := s.key(path)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to S3: %w", err)
	}

	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key, nil
	}
	return fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, key), nil
}

func (s *S3Storage) key(path string) string {
	path = strings.TrimLeft(path, "/")
	prefix := strings.Trim(s.cfg.Prefix, "/")
	if prefix == "" {
		return path
	}
	return prefix + "/" + path
}
