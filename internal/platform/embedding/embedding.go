// Package embedding defines the provider contracts used by indexing and retrieval
// and the quota-aware retry policy wrapped around them.
package embedding

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/catalog-search-backend/internal/platform/httpx"
)

type TaskType string

const (
	TaskRetrievalDocument TaskType = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    TaskType = "RETRIEVAL_QUERY"
)

type TextEmbedder interface {
	EmbedText(ctx context.Context, text string, task TaskType) ([]float32, error)
	// EmbedTexts returns one vector per input, in input order.
	EmbedTexts(ctx context.Context, texts []string, task TaskType) ([][]float32, error)
}

// ImageInput carries either raw bytes or a provider-readable URI (gs://...).
type ImageInput struct {
	Bytes       []byte
	URI         string
	ContextText string
}

type ImageEmbedder interface {
	EmbedImage(ctx context.Context, in ImageInput) ([]float32, error)
}

// ErrQuotaExhausted marks provider rejections caused by rate or quota limits.
var ErrQuotaExhausted = errors.New("embedding quota exhausted")

// IsQuotaExhausted reports whether err is a quota rejection: the sentinel,
// an HTTP 429, or a gRPC ResourceExhausted status.
func IsQuotaExhausted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExhausted) {
		return true
	}
	if httpx.StatusCode(err) == http.StatusTooManyRequests {
		return true
	}
	if s, ok := status.FromError(err); ok && s.Code() == codes.ResourceExhausted {
		return true
	}
	return false
}
