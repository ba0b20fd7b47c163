package qdrant

import (
	"errors"
	"testing"
)

func TestResolveConfigFromEnvValid(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_COLLECTION", "products")
	t.Setenv("QDRANT_TEXT_DIM", "768")
	t.Setenv("QDRANT_IMAGE_DIM", "1408")

	cfg, err := ResolveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", err)
	}
	if cfg.URL != "http://qdrant:6333" {
		t.Fatalf("URL: want=%q got=%q", "http://qdrant:6333", cfg.URL)
	}
	if cfg.Collection != "products" {
		t.Fatalf("Collection: want=%q got=%q", "products", cfg.Collection)
	}
	if cfg.Dims["text"] != 768 || cfg.Dims["images"] != 1408 {
		t.Fatalf("Dims: got=%v", cfg.Dims)
	}
}

func TestResolveConfigFromEnvDefaultsCollection(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_COLLECTION", "")
	t.Setenv("QDRANT_TEXT_DIM", "")
	t.Setenv("QDRANT_IMAGE_DIM", "")

	cfg, err := ResolveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", err)
	}
	if cfg.Collection != "catalog" {
		t.Fatalf("Collection: want=%q got=%q", "catalog", cfg.Collection)
	}
	if len(cfg.Dims) != 0 {
		t.Fatalf("Dims: want empty got=%v", cfg.Dims)
	}
}

func TestResolveConfigFromEnvErrors(t *testing.T) {
	cases := []struct {
		name string
		url  string
		dim  string
		want ConfigErrorCode
	}{
		{name: "missing url", url: "", want: ConfigErrorMissingURL},
		{name: "relative url", url: "qdrant:6333", want: ConfigErrorInvalidURL},
		{name: "bad dim", url: "http://qdrant:6333", dim: "abc", want: ConfigErrorInvalidVectorDim},
		{name: "negative dim", url: "http://qdrant:6333", dim: "-4", want: ConfigErrorInvalidVectorDim},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("QDRANT_URL", tc.url)
			t.Setenv("QDRANT_TEXT_DIM", tc.dim)
			t.Setenv("QDRANT_IMAGE_DIM", "")
			_, err := ResolveConfigFromEnv()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got=%T (%v)", err, err)
			}
			if cfgErr.Code != tc.want {
				t.Fatalf("code: want=%q got=%q", tc.want, cfgErr.Code)
			}
		})
	}
}
