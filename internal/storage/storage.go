// Package storage persists generated media (synthesized audio, rendered
// certificates) to S3 or, for local development, to disk.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"coursejobs/internal/config"
)

// Store writes blobs under stable keys and answers existence probes. Upload
// must be safe to repeat for the same key: the second write overwrites the
// first, which is exactly what retried jobs want.
type Store interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// New picks S3 when a bucket is configured, local disk otherwise.
func New(ctx context.Context, cfg config.Config) (Store, error) {
	if cfg.MediaS3Bucket == "" {
		return &Local{BaseDir: cfg.MediaOutputDir, PublicBase: cfg.MediaPublicBase}, nil
	}
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &S3{client: client, bucket: cfg.MediaS3Bucket, publicBase: cfg.MediaPublicBase}, nil
}

func newS3Client(ctx context.Context, cfg config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.MediaS3Region),
	}
	if cfg.MediaS3Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               cfg.MediaS3Endpoint,
					HostnameImmutable: cfg.MediaS3PathStyle,
					SigningRegion:     cfg.MediaS3Region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.MediaS3PathStyle
	}), nil
}

// S3 stores blobs in a bucket.
type S3 struct {
	client     *s3.Client
	bucket     string
	publicBase string
}

func (s *S3) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	key = sanitizeKey(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return s.url(key), nil
}

func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	key = sanitizeKey(key)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("head object: %w", err)
	}
	return true, nil
}

func (s *S3) url(key string) string {
	if s.publicBase != "" {
		return strings.TrimSuffix(s.publicBase, "/") + "/" + key
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

// Local writes blobs under a base directory. Used in development and tests.
type Local struct {
	BaseDir    string
	PublicBase string
}

func (l *Local) Upload(_ context.Context, key string, body []byte, _ string) (string, error) {
	key = sanitizeKey(key)
	path := filepath.Join(l.BaseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dirs: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	if l.PublicBase != "" {
		return strings.TrimSuffix(l.PublicBase, "/") + "/" + key, nil
	}
	return path, nil
}

func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	path := filepath.Join(l.BaseDir, filepath.FromSlash(sanitizeKey(key)))
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func sanitizeKey(key string) string {
	key = filepath.ToSlash(filepath.Clean(key))
	key = strings.TrimPrefix(key, "/")
	for strings.HasPrefix(key, "../") {
		key = strings.TrimPrefix(key, "../")
	}
	return key
}
