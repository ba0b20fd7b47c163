package app

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/catalog-search-backend/internal/data/db"
	"github.com/yungbote/catalog-search-backend/internal/modules/indexing"
	"github.com/yungbote/catalog-search-backend/internal/modules/retrieval"
	"github.com/yungbote/catalog-search-backend/internal/platform/envutil"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/temporalx"
)

type EmbeddingProvider string

const (
	EmbeddingProviderVertex EmbeddingProvider = "vertex"
	EmbeddingProviderOpenAI EmbeddingProvider = "openai"
)

type Config struct {
	LogMode     string
	MetricsAddr string

	// VectorProvider is empty when it should follow the object storage mode.
	VectorProvider string
	// TextEmbeddingProvider selects the text model; image embeddings are always Vertex.
	TextEmbeddingProvider EmbeddingProvider

	DB        db.Config
	Temporal  temporalx.Config
	Indexing  indexing.Config
	Retrieval retrieval.Config
}

// fileOverlay mirrors the tunables that may be set from CONFIG_FILE.
type fileOverlay struct {
	Indexing  *indexing.Config  `yaml:"indexing"`
	Retrieval *retrieval.Config `yaml:"retrieval"`
}

// LoadConfig reads the environment, then applies CONFIG_FILE on top of the
// indexing and retrieval tunables.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		LogMode:               envutil.String("LOG_MODE", "development"),
		MetricsAddr:           envutil.String("METRICS_ADDR", ":9090"),
		VectorProvider:        strings.ToLower(envutil.String("VECTOR_PROVIDER", "")),
		TextEmbeddingProvider: EmbeddingProvider(strings.ToLower(envutil.String("TEXT_EMBEDDING_PROVIDER", string(EmbeddingProviderVertex)))),
		DB:                    db.ConfigFromEnv(),
		Temporal:              temporalx.LoadConfig(),
		Indexing:              indexing.ConfigFromEnv(),
		Retrieval:             retrieval.ConfigFromEnv(),
	}
	path := envutil.String("CONFIG_FILE", "")
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read CONFIG_FILE: %w", err)
	}
	if err := applyOverlay(&cfg, raw); err != nil {
		return cfg, fmt.Errorf("parse CONFIG_FILE %s: %w", path, err)
	}
	if log != nil {
		log.Info("Applied config overlay", "path", path)
	}
	return cfg, nil
}

func applyOverlay(cfg *Config, raw []byte) error {
	overlay := fileOverlay{Indexing: &cfg.Indexing, Retrieval: &cfg.Retrieval}
	return yaml.Unmarshal(raw, &overlay)
}
