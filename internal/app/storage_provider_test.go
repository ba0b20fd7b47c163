package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/yungbote/catalog-search-backend/internal/platform/gcp"
	"github.com/yungbote/catalog-search-backend/internal/platform/imagefetch"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/platform/s3store"
)

type stubOpener struct{ opened []string }

func (s *stubOpener) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	s.opened = append(s.opened, bucket+"/"+key)
	return io.NopCloser(strings.NewReader("not an image")), nil
}

type closeCounter struct{ n int }

func (c *closeCounter) Close() error { c.n++; return nil }

func stubStorage(t *testing.T, gcsErr, s3Err error) (*stubOpener, *stubOpener, *closeCounter) {
	t.Helper()
	origGCS, origS3 := newGCSReader, newS3Reader
	t.Cleanup(func() {
		newGCSReader = origGCS
		newS3Reader = origS3
	})
	gcs, s3, closer := &stubOpener{}, &stubOpener{}, &closeCounter{}
	newGCSReader = func(context.Context, *logger.Logger, gcp.ObjectStorageConfig) (imagefetch.ObjectOpener, io.Closer, error) {
		if gcsErr != nil {
			return nil, nil, gcsErr
		}
		return gcs, closer, nil
	}
	newS3Reader = func(*logger.Logger, s3store.Config) (imagefetch.ObjectOpener, error) {
		if s3Err != nil {
			return nil, s3Err
		}
		return s3, nil
	}
	return gcs, s3, closer
}

func TestResolveImageSourcesWiresObjectStores(t *testing.T) {
	t.Setenv("S3_ENABLED", "true")
	gcs, s3, closer := stubStorage(t, nil, nil)

	src, err := resolveImageSources(context.Background(), logger.Nop(), gcp.ObjectStorageConfig{Mode: gcp.ObjectStorageModeGCS}, nil)
	if err != nil {
		t.Fatalf("resolveImageSources: %v", err)
	}
	ctx := context.Background()
	if _, err := src.Fetcher.Fetch(ctx, "gs://bucket/a.png"); !errors.Is(err, imagefetch.ErrNotImage) {
		t.Fatalf("gs fetch: want ErrNotImage got=%v", err)
	}
	if _, err := src.Fetcher.Fetch(ctx, "s3://bucket/b.png"); !errors.Is(err, imagefetch.ErrNotImage) {
		t.Fatalf("s3 fetch: want ErrNotImage got=%v", err)
	}
	if len(gcs.opened) != 1 || gcs.opened[0] != "bucket/a.png" {
		t.Fatalf("gcs opened: got=%v", gcs.opened)
	}
	if len(s3.opened) != 1 || s3.opened[0] != "bucket/b.png" {
		t.Fatalf("s3 opened: got=%v", s3.opened)
	}
	src.Close()
	if closer.n != 1 {
		t.Fatalf("closers: want=1 got=%d", closer.n)
	}
}

func TestResolveImageSourcesDegradesWhenClientsFail(t *testing.T) {
	t.Setenv("S3_ENABLED", "true")
	stubStorage(t, errors.New("no default credentials"), errors.New("bad endpoint"))

	src, err := resolveImageSources(context.Background(), logger.Nop(), gcp.ObjectStorageConfig{Mode: gcp.ObjectStorageModeGCS}, nil)
	if err != nil {
		t.Fatalf("resolveImageSources: %v", err)
	}
	if _, err := src.Fetcher.Fetch(context.Background(), "gs://bucket/a.png"); !errors.Is(err, imagefetch.ErrUnsupportedSource) {
		t.Fatalf("gs fetch: want ErrUnsupportedSource got=%v", err)
	}
	if _, err := src.Fetcher.Fetch(context.Background(), "s3://bucket/a.png"); !errors.Is(err, imagefetch.ErrUnsupportedSource) {
		t.Fatalf("s3 fetch: want ErrUnsupportedSource got=%v", err)
	}
}

func TestResolveImageSourcesRejectsBadStorageConfig(t *testing.T) {
	stubStorage(t, nil, nil)
	_, err := resolveImageSources(context.Background(), logger.Nop(), gcp.ObjectStorageConfig{Mode: gcp.ObjectStorageModeGCSEmulator}, nil)
	if code := storageProviderBootstrapErrorCode(err); code != StorageProviderBootstrapErrorMissingEmulatorHost {
		t.Fatalf("code: want=%s got=%s (%v)", StorageProviderBootstrapErrorMissingEmulatorHost, code, err)
	}
}
