package vertex

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/catalog-search-backend/internal/platform/embedding"
)

var (
	_ embedding.TextEmbedder  = (*TextEmbedder)(nil)
	_ embedding.ImageEmbedder = (*ImageEmbedder)(nil)
)

type TextEmbedder struct {
	c *Client
}

func NewTextEmbedder(c *Client) *TextEmbedder { return &TextEmbedder{c: c} }

type textInstance struct {
	Content  string `json:"content"`
	TaskType string `json:"task_type,omitempty"`
}

type textParameters struct {
	OutputDimensionality int  `json:"outputDimensionality,omitempty"`
	AutoTruncate         bool `json:"autoTruncate"`
}

type textPredictRequest struct {
	Instances  []textInstance `json:"instances"`
	Parameters textParameters `json:"parameters"`
}

type textPredictResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
}

// maxInstances is the per-request cap: the gemini embedding models accept a
// single instance, older text models up to 250.
func (e *TextEmbedder) maxInstances() int {
	if strings.HasPrefix(e.c.cfg.TextModel, "gemini-embedding") {
		return 1
	}
	return 250
}

func (e *TextEmbedder) EmbedText(ctx context.Context, text string, task embedding.TaskType) ([]float32, error) {
	out, err := e.EmbedTexts(ctx, []string{text}, task)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *TextEmbedder) EmbedTexts(ctx context.Context, texts []string, task embedding.TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	start := time.Now()
	out, err := e.embedAll(ctx, texts, task)
	e.c.metrics.ObserveEmbedding("vertex", "text", err, time.Since(start))
	return out, err
}

func (e *TextEmbedder) embedAll(ctx context.Context, texts []string, task embedding.TaskType) ([][]float32, error) {
	url := e.c.cfg.apiBase() + e.c.cfg.modelPath(e.c.cfg.TextModel)
	step := e.maxInstances()
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += step {
		end := i + step
		if end > len(texts) {
			end = len(texts)
		}
		req := textPredictRequest{
			Instances:  make([]textInstance, 0, end-i),
			Parameters: textParameters{OutputDimensionality: e.c.cfg.TextDimensions, AutoTruncate: true},
		}
		for _, t := range texts[i:end] {
			req.Instances = append(req.Instances, textInstance{Content: t, TaskType: string(task)})
		}
		resp, err := doJSON[textPredictResponse](e.c, ctx, url, req)
		if err != nil {
			return nil, err
		}
		if len(resp.Predictions) != end-i {
			return nil, fmt.Errorf("vertex text predict: want %d predictions got %d", end-i, len(resp.Predictions))
		}
		for _, p := range resp.Predictions {
			if len(p.Embeddings.Values) == 0 {
				return nil, fmt.Errorf("vertex text predict: empty embedding")
			}
			out = append(out, p.Embeddings.Values)
		}
	}
	return out, nil
}

type ImageEmbedder struct {
	c *Client
}

func NewImageEmbedder(c *Client) *ImageEmbedder { return &ImageEmbedder{c: c} }

type imagePayload struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	GCSURI             string `json:"gcsUri,omitempty"`
}

type imageInstance struct {
	Image imagePayload `json:"image"`
	Text  string       `json:"text,omitempty"`
}

type imagePredictRequest struct {
	Instances  []imageInstance `json:"instances"`
	Parameters struct {
		Dimension int `json:"dimension,omitempty"`
	} `json:"parameters"`
}

type imagePredictResponse struct {
	Predictions []struct {
		ImageEmbedding []float32 `json:"imageEmbedding"`
	} `json:"predictions"`
}

// EmbedImage sends raw bytes when present, otherwise a gs:// URI. Context
// text rides along on the same instance.
func (e *ImageEmbedder) EmbedImage(ctx context.Context, in embedding.ImageInput) ([]float32, error) {
	start := time.Now()
	out, err := e.embed(ctx, in)
	e.c.metrics.ObserveEmbedding("vertex", "image", err, time.Since(start))
	return out, err
}

func (e *ImageEmbedder) embed(ctx context.Context, in embedding.ImageInput) ([]float32, error) {
	inst := imageInstance{Text: strings.TrimSpace(in.ContextText)}
	switch {
	case len(in.Bytes) > 0:
		inst.Image.BytesBase64Encoded = base64.StdEncoding.EncodeToString(in.Bytes)
	case strings.HasPrefix(in.URI, "gs://"):
		inst.Image.GCSURI = in.URI
	default:
		return nil, fmt.Errorf("vertex image predict: bytes or gs:// uri required")
	}
	req := imagePredictRequest{Instances: []imageInstance{inst}}
	req.Parameters.Dimension = e.c.cfg.ImageDimension

	url := e.c.cfg.apiBase() + e.c.cfg.modelPath(e.c.cfg.ImageModel)
	resp, err := doJSON[imagePredictResponse](e.c, ctx, url, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Predictions) == 0 || len(resp.Predictions[0].ImageEmbedding) == 0 {
		return nil, fmt.Errorf("vertex image predict: empty embedding")
	}
	return resp.Predictions[0].ImageEmbedding, nil
}
