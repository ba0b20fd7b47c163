package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/yungbote/catalog-search-backend/internal/observability"
	"github.com/yungbote/catalog-search-backend/internal/platform/envutil"
	"github.com/yungbote/catalog-search-backend/internal/platform/gcp"
	"github.com/yungbote/catalog-search-backend/internal/platform/imagefetch"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/platform/s3store"
)

var (
	newGCSReader = func(ctx context.Context, log *logger.Logger, cfg gcp.ObjectStorageConfig) (imagefetch.ObjectOpener, io.Closer, error) {
		r, err := gcp.NewObjectReader(ctx, log, cfg)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	}
	newS3Reader = func(log *logger.Logger, cfg s3store.Config) (imagefetch.ObjectOpener, error) {
		return s3store.New(log, cfg)
	}
)

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidMode         StorageProviderBootstrapErrorCode = "invalid_mode"
	StorageProviderBootstrapErrorMissingEmulatorHost StorageProviderBootstrapErrorCode = "missing_emulator_host"
	StorageProviderBootstrapErrorInvalidEmulatorHost StorageProviderBootstrapErrorCode = "invalid_emulator_host"
	StorageProviderBootstrapErrorConnectFailed       StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code         StorageProviderBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "object storage bootstrap failed"
	}
	return fmt.Sprintf(
		"object storage bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

type imageSources struct {
	Fetcher *imagefetch.Fetcher
	closers []io.Closer
}

func (s *imageSources) Close() {
	for _, c := range s.closers {
		_ = c.Close()
	}
}

// resolveImageSources builds the fetcher used for product images. A bad
// GCS_MODE is fatal; a GCS or S3 client that cannot be created only disables
// that scheme, so affected images are reported as fetch failures.
func resolveImageSources(ctx context.Context, log *logger.Logger, storageCfg gcp.ObjectStorageConfig, metrics *observability.Metrics) (*imageSources, error) {
	out := &imageSources{}
	opts := imagefetch.Options{
		MaxBytes: int64(envutil.Int("IMAGE_FETCH_MAX_BYTES", imagefetch.DefaultMaxBytes)),
		Timeout:  envutil.Duration("IMAGE_FETCH_TIMEOUT", imagefetch.DefaultTimeout),
		Metrics:  metrics,
	}

	if err := gcp.ValidateObjectStorageConfig(storageCfg); err != nil {
		classified := classifyStorageProviderBootstrapError(storageCfg, err)
		log.Error("Object storage provider selection failed",
			"mode", storageCfg.Mode,
			"emulator_host", storageCfg.EmulatorHost,
			"error", classified,
		)
		return nil, classified
	}
	log.Info("Selecting object storage provider", "mode", storageCfg.Mode, "emulator_host", storageCfg.EmulatorHost)
	gcs, closer, err := newGCSReader(ctx, log, storageCfg)
	if err != nil {
		log.Warn("GCS reader unavailable; gs:// images will fail to fetch",
			"error_code", storageProviderBootstrapErrorCode(classifyStorageProviderBootstrapError(storageCfg, err)),
			"error", err,
		)
	} else {
		opts.GCS = gcs
		out.closers = append(out.closers, closer)
	}

	if envutil.Bool("S3_ENABLED", false) {
		s3, err := newS3Reader(log, s3store.ConfigFromEnv())
		if err != nil {
			log.Warn("S3 reader unavailable; s3:// images will fail to fetch", "error", err)
		} else {
			opts.S3 = s3
		}
	}

	out.Fetcher = imagefetch.New(log, opts)
	return out, nil
}

func classifyStorageProviderBootstrapError(storageCfg gcp.ObjectStorageConfig, err error) error {
	wrap := func(code StorageProviderBootstrapErrorCode) error {
		return &StorageProviderBootstrapError{
			Code:         code,
			Mode:         string(storageCfg.Mode),
			EmulatorHost: storageCfg.EmulatorHost,
			Cause:        err,
		}
	}
	var cfgErr *gcp.ObjectStorageConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case gcp.ObjectStorageConfigErrorInvalidMode:
			return wrap(StorageProviderBootstrapErrorInvalidMode)
		case gcp.ObjectStorageConfigErrorMissingEmulatorHost:
			return wrap(StorageProviderBootstrapErrorMissingEmulatorHost)
		case gcp.ObjectStorageConfigErrorInvalidEmulatorHost:
			return wrap(StorageProviderBootstrapErrorInvalidEmulatorHost)
		}
	}
	return wrap(StorageProviderBootstrapErrorConnectFailed)
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Code != "" {
			return bootstrapErr.Code
		}
	}
	return StorageProviderBootstrapErrorConnectFailed
}
