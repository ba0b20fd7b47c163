package gcp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

// ObjectReader opens gs:// objects for the image fetcher.
type ObjectReader struct {
	log          *logger.Logger
	client       *storage.Client
	emulatorHost string
	http         *http.Client
}

func NewObjectReader(ctx context.Context, log *logger.Logger, cfg ObjectStorageConfig) (*ObjectReader, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateObjectStorageConfig(cfg); err != nil {
		return nil, err
	}
	r := &ObjectReader{log: log.With("service", "GCSObjectReader")}
	if cfg.IsEmulatorMode() {
		r.emulatorHost = strings.TrimRight(cfg.EmulatorHost, "/")
		r.http = http.DefaultClient
		log.Info("GCS object reader using emulator", "host", r.emulatorHost)
		return r, nil
	}
	opts := ClientOptions(storage.ScopeReadOnly)
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	r.client = client
	return r, nil
}

// Open returns a reader for bucket/key. The reader must be closed.
func (r *ObjectReader) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if r == nil {
		return nil, fmt.Errorf("gcs object reader not configured")
	}
	if r.emulatorHost != "" {
		u := fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", r.emulatorHost, url.PathEscape(bucket), url.PathEscape(key))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := r.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("gcs emulator download: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			_ = resp.Body.Close()
			return nil, fmt.Errorf("gcs emulator download failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return resp.Body, nil
	}
	rc, err := r.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs open gs://%s/%s: %w", bucket, key, err)
	}
	return rc, nil
}

func (r *ObjectReader) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

// ParseGSURI splits gs://bucket/path/to/object.
func ParseGSURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// uri: %q", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("gs uri needs bucket and object: %q", uri)
	}
	return bucket, key, nil
}
