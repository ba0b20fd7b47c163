// Package s3store reads objects from S3-compatible storage through minio-go.
package s3store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yungbote/catalog-search-backend/internal/platform/envutil"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	UseSSL          bool
}

func ConfigFromEnv() Config {
	return Config{
		Endpoint:        envutil.String("S3_ENDPOINT", "s3.amazonaws.com"),
		AccessKeyID:     envutil.String("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: envutil.String("S3_SECRET_ACCESS_KEY", ""),
		SessionToken:    envutil.String("S3_SESSION_TOKEN", ""),
		Region:          envutil.String("S3_REGION", ""),
		UseSSL:          envutil.Bool("S3_USE_SSL", true),
	}
}

type Reader struct {
	log    *logger.Logger
	client *minio.Client
}

func New(log *logger.Logger, cfg Config) (*Reader, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	if endpoint == "" {
		return nil, fmt.Errorf("S3_ENDPOINT is required")
	}
	opts := &minio.Options{Secure: cfg.UseSSL, Region: cfg.Region}
	if cfg.AccessKeyID != "" {
		opts.Creds = credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	} else {
		opts.Creds = credentials.NewEnvAWS()
	}
	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Reader{log: log.With("service", "S3Reader"), client: client}, nil
}

// Open stats the object first so missing keys fail here rather than on the
// first Read.
func (r *Reader) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if r == nil || r.client == nil {
		return nil, fmt.Errorf("s3 reader not configured")
	}
	obj, err := r.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 get s3://%s/%s: %w", bucket, key, err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("s3 stat s3://%s/%s: %w", bucket, key, err)
	}
	return obj, nil
}

// ParseS3URI splits s3://bucket/path/to/object.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3:// uri: %q", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri needs bucket and object: %q", uri)
	}
	return bucket, key, nil
}
