package indexing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/catalog-search-backend/internal/platform/envutil"
)

var ErrIndexNotConfigured = errors.New("vector index not configured")

type ConfigErrorCode string

const (
	ConfigErrorMissingIndex    ConfigErrorCode = "missing_index"
	ConfigErrorMissingEmbedder ConfigErrorCode = "missing_embedder"
	ConfigErrorMissingRepo     ConfigErrorCode = "missing_repo"
	ConfigErrorInvalidScope    ConfigErrorCode = "invalid_scope"
)

type ConfigError struct {
	Code   ConfigErrorCode
	Detail string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid indexing config"
	}
	if e.Detail == "" {
		return fmt.Sprintf("indexing config error: %s", e.Code)
	}
	return fmt.Sprintf("indexing config error: %s: %s", e.Code, e.Detail)
}

// Unwrap lets callers match a missing index with errors.Is(err, ErrIndexNotConfigured).
func (e *ConfigError) Unwrap() error {
	if e != nil && e.Code == ConfigErrorMissingIndex {
		return ErrIndexNotConfigured
	}
	return nil
}

type Config struct {
	TextBatchSize  int `yaml:"text_batch_size"`
	ImageBatchSize int `yaml:"image_batch_size"`
	MaxTextRunes   int `yaml:"max_text_runes"`
	// ImageConcurrency bounds parallel fetch+embed within one image batch.
	ImageConcurrency int `yaml:"image_concurrency"`
	ImagesPerMinute  int `yaml:"images_per_minute"`
	// TextBatchesPerSecond paces text embedding batches; 0 disables pacing.
	TextBatchesPerSecond float64 `yaml:"text_batches_per_second"`
	// ImageContextText sends the product name alongside each image.
	ImageContextText bool `yaml:"image_context_text"`
	// Statuses restricts the catalog scan; empty means every product.
	Statuses []string `yaml:"statuses"`
}

func DefaultConfig() Config {
	return Config{
		TextBatchSize:        100,
		ImageBatchSize:       3,
		MaxTextRunes:         4000,
		ImageConcurrency:     3,
		ImagesPerMinute:      8,
		TextBatchesPerSecond: 2,
	}
}

func ConfigFromEnv() Config {
	d := DefaultConfig()
	return Config{
		TextBatchSize:        envutil.Int("INDEX_TEXT_BATCH_SIZE", d.TextBatchSize),
		ImageBatchSize:       envutil.Int("INDEX_IMAGE_BATCH_SIZE", d.ImageBatchSize),
		MaxTextRunes:         envutil.Int("INDEX_TEXT_MAX_RUNES", d.MaxTextRunes),
		ImageConcurrency:     envutil.Int("INDEX_IMAGE_CONCURRENCY", d.ImageConcurrency),
		ImagesPerMinute:      envutil.Int("INDEX_IMAGE_REQUESTS_PER_MINUTE", d.ImagesPerMinute),
		TextBatchesPerSecond: envutil.Float("INDEX_TEXT_BATCHES_PER_SECOND", d.TextBatchesPerSecond),
		ImageContextText:     envutil.Bool("INDEX_IMAGE_CONTEXT_TEXT", false),
		Statuses:             splitCSV(envutil.String("INDEX_PRODUCT_STATUSES", "")),
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.TextBatchSize <= 0 {
		c.TextBatchSize = d.TextBatchSize
	}
	if c.ImageBatchSize <= 0 {
		c.ImageBatchSize = d.ImageBatchSize
	}
	if c.MaxTextRunes <= 0 {
		c.MaxTextRunes = d.MaxTextRunes
	}
	if c.ImageConcurrency <= 0 {
		c.ImageConcurrency = 1
	}
	if c.ImagesPerMinute <= 0 {
		c.ImagesPerMinute = d.ImagesPerMinute
	}
	if c.TextBatchesPerSecond < 0 {
		c.TextBatchesPerSecond = 0
	}
	return c
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
