// Package imagefetch loads product images from http(s), gs:// and s3://
// sources with a size cap and validates that the bytes decode as an image.
package imagefetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/yungbote/catalog-search-backend/internal/observability"
	"github.com/yungbote/catalog-search-backend/internal/platform/gcp"
	"github.com/yungbote/catalog-search-backend/internal/platform/httpx"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/platform/s3store"
)

const (
	DefaultMaxBytes = 10 << 20
	DefaultTimeout  = 15 * time.Second
)

var (
	ErrUnsupportedSource = errors.New("unsupported image source")
	ErrTooLarge          = errors.New("image exceeds size limit")
	ErrNotImage          = errors.New("content is not a decodable image")
)

// ObjectOpener is satisfied by gcp.ObjectReader and s3store.Reader.
type ObjectOpener interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

type Image struct {
	URI    string
	Bytes  []byte
	Format string
	Width  int
	Height int
}

type Options struct {
	HTTPClient *http.Client
	GCS        ObjectOpener
	S3         ObjectOpener
	MaxBytes   int64
	Timeout    time.Duration
	Metrics    *observability.Metrics
}

type Fetcher struct {
	log      *logger.Logger
	http     *http.Client
	gcs      ObjectOpener
	s3       ObjectOpener
	maxBytes int64
	timeout  time.Duration
	metrics  *observability.Metrics
}

func New(log *logger.Logger, opts Options) *Fetcher {
	if log == nil {
		log = logger.Nop()
	}
	f := &Fetcher{
		log:      log.With("service", "ImageFetcher"),
		http:     opts.HTTPClient,
		gcs:      opts.GCS,
		s3:       opts.S3,
		maxBytes: opts.MaxBytes,
		timeout:  opts.Timeout,
		metrics:  opts.Metrics,
	}
	if f.http == nil {
		f.http = &http.Client{}
	}
	if f.maxBytes <= 0 {
		f.maxBytes = DefaultMaxBytes
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	return f
}

// Fetch downloads uri within the fetch timeout and checks the image header.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (*Image, error) {
	uri = strings.TrimSpace(uri)
	scheme := schemeOf(uri)
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	img, err := f.fetch(ctx, scheme, uri)
	status := "success"
	switch {
	case errors.Is(err, ErrTooLarge):
		status = "too_large"
	case errors.Is(err, ErrNotImage):
		status = "not_image"
	case err != nil:
		status = "error"
	}
	f.metrics.IncImageFetch(scheme, status)
	return img, err
}

func (f *Fetcher) fetch(ctx context.Context, scheme, uri string) (*Image, error) {
	var (
		rc  io.ReadCloser
		err error
	)
	switch scheme {
	case "http", "https":
		rc, err = f.openHTTP(ctx, uri)
	case "gs":
		if f.gcs == nil {
			return nil, fmt.Errorf("%w: gs:// reader not configured", ErrUnsupportedSource)
		}
		bucket, key, perr := gcp.ParseGSURI(uri)
		if perr != nil {
			return nil, perr
		}
		rc, err = f.gcs.Open(ctx, bucket, key)
	case "s3":
		if f.s3 == nil {
			return nil, fmt.Errorf("%w: s3:// reader not configured", ErrUnsupportedSource)
		}
		bucket, key, perr := s3store.ParseS3URI(uri)
		if perr != nil {
			return nil, perr
		}
		rc, err = f.s3.Open(ctx, bucket, key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, uri)
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", uri, err)
	}
	if int64(len(raw)) > f.maxBytes {
		return nil, fmt.Errorf("%w: %s larger than %d bytes", ErrTooLarge, uri, f.maxBytes)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotImage, uri, err)
	}
	return &Image{URI: uri, Bytes: raw, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

func (f *Fetcher) openHTTP(ctx context.Context, uri string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, httpx.NewStatusError("image", resp, body)
	}
	if resp.ContentLength > f.maxBytes {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s declares %d bytes", ErrTooLarge, uri, resp.ContentLength)
	}
	return resp.Body, nil
}

func schemeOf(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "invalid"
	}
	s := strings.ToLower(u.Scheme)
	if s == "" {
		return "none"
	}
	return s
}
