package vertex

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/catalog-search-backend/internal/platform/envutil"
)

type Config struct {
	Project  string
	Location string
	// BaseURL overrides https://{location}-aiplatform.googleapis.com.
	BaseURL string

	TextModel      string
	TextDimensions int
	ImageModel     string
	ImageDimension int

	TextIndex            string
	ImageIndex           string
	IndexEndpoint        string
	TextDeployedIndexID  string
	ImageDeployedIndexID string
	PublicEndpointDomain string
	// DistanceIsSimilarity is set for DOT_PRODUCT indexes, whose findNeighbors
	// "distance" grows with similarity.
	DistanceIsSimilarity bool

	Timeout time.Duration
}

func ConfigFromEnv() Config {
	project := envutil.String("VERTEX_PROJECT", "")
	if project == "" {
		project = envutil.String("GOOGLE_CLOUD_PROJECT", "")
	}
	return Config{
		Project:              project,
		Location:             envutil.String("VERTEX_LOCATION", "us-central1"),
		BaseURL:              envutil.String("VERTEX_BASE_URL", ""),
		TextModel:            envutil.String("VERTEX_TEXT_MODEL", "gemini-embedding-001"),
		TextDimensions:       envutil.Int("VERTEX_TEXT_DIMENSIONS", 0),
		ImageModel:           envutil.String("VERTEX_IMAGE_MODEL", "multimodalembedding@001"),
		ImageDimension:       envutil.Int("VERTEX_IMAGE_DIMENSION", 1408),
		TextIndex:            envutil.String("VERTEX_TEXT_INDEX", ""),
		ImageIndex:           envutil.String("VERTEX_IMAGE_INDEX", ""),
		IndexEndpoint:        envutil.String("VERTEX_INDEX_ENDPOINT", ""),
		TextDeployedIndexID:  envutil.String("VERTEX_TEXT_DEPLOYED_INDEX_ID", ""),
		ImageDeployedIndexID: envutil.String("VERTEX_IMAGE_DEPLOYED_INDEX_ID", ""),
		PublicEndpointDomain: envutil.String("VERTEX_PUBLIC_ENDPOINT_DOMAIN", ""),
		DistanceIsSimilarity: envutil.Bool("VERTEX_DISTANCE_IS_SIMILARITY", false),
		Timeout:              envutil.Duration("VERTEX_TIMEOUT", 60*time.Second),
	}
}

func (c Config) apiBase() string {
	if b := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"); b != "" {
		return b
	}
	return "https://" + c.Location + "-aiplatform.googleapis.com"
}

func (c Config) neighborsBase() string {
	d := strings.TrimRight(strings.TrimSpace(c.PublicEndpointDomain), "/")
	if d == "" {
		return c.apiBase()
	}
	if strings.HasPrefix(d, "http://") || strings.HasPrefix(d, "https://") {
		return d
	}
	return "https://" + d
}

func (c Config) modelPath(model string) string {
	return fmt.Sprintf("/v1/projects/%s/locations/%s/publishers/google/models/%s:predict", c.Project, c.Location, model)
}

// ValidateEmbedding reports what is missing for the prediction endpoints.
func (c Config) ValidateEmbedding() error {
	if strings.TrimSpace(c.Project) == "" {
		return fmt.Errorf("VERTEX_PROJECT (or GOOGLE_CLOUD_PROJECT) is required")
	}
	if strings.TrimSpace(c.Location) == "" {
		return fmt.Errorf("VERTEX_LOCATION is required")
	}
	return nil
}

// ValidateIndex reports what is missing for the vector search endpoints.
func (c Config) ValidateIndex() error {
	if err := c.ValidateEmbedding(); err != nil {
		return err
	}
	if strings.TrimSpace(c.IndexEndpoint) == "" {
		return fmt.Errorf("VERTEX_INDEX_ENDPOINT is required")
	}
	if strings.TrimSpace(c.TextIndex) == "" && strings.TrimSpace(c.ImageIndex) == "" {
		return fmt.Errorf("VERTEX_TEXT_INDEX or VERTEX_IMAGE_INDEX is required")
	}
	return nil
}
