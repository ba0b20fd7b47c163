package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/platform/vectorindex"
)

const (
	payloadDatapointIDKey = "datapoint_id"
	maxErrorBodyBytes     = 1024
)

var pointIDNamespaceUUID = uuid.MustParse("6f0a4c3e-2b7d-4d55-9a61-3c1f0e9b8a27")

// Index adapts Qdrant collections to vectorindex.Index. Qdrant point ids must
// be UUIDs, so each datapoint id is hashed into a v5 UUID and the original is
// kept in the payload.
type Index struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client

	mu        sync.RWMutex
	distances map[string]string
}

var _ vectorindex.Index = (*Index)(nil)

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantSearchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func NewIndex(ctx context.Context, log *logger.Logger, cfg Config, httpClient *http.Client) (*Index, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	s := &Index{
		log:       log.With("service", "QdrantIndex"),
		cfg:       cfg,
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		http:      httpClient,
		distances: map[string]string{},
	}
	if err := s.verifyReady(ctx); err != nil {
		return nil, err
	}
	log.Info("Qdrant vector index selected", "url", s.baseURL, "collection", cfg.Collection)
	return s, nil
}

func (s *Index) Upsert(ctx context.Context, namespace string, points []vectorindex.Datapoint) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}
	dim := s.cfg.Dims[namespace]
	body := make([]map[string]any, 0, len(points))
	for _, p := range points {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return opErr(op, OperationErrorValidation, "datapoint id is required", nil)
		}
		if len(p.Values) == 0 {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("datapoint %q has empty values", id), nil)
		}
		if dim > 0 && len(p.Values) != dim {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("datapoint %q dimension mismatch: expected=%d got=%d", id, dim, len(p.Values)), nil)
		}
		body = append(body, map[string]any{
			"id":      pointID(namespace, id),
			"vector":  p.Values,
			"payload": map[string]any{payloadDatapointIDKey: id},
		})
	}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath(namespace, "/points?wait=true"), map[string]any{"points": body}, nil)
}

func (s *Index) Delete(ctx context.Context, namespace string, ids []string) error {
	const op = "delete"
	pointIDs := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		pid := pointID(namespace, id)
		if _, ok := seen[pid]; ok {
			continue
		}
		seen[pid] = struct{}{}
		pointIDs = append(pointIDs, pid)
	}
	if len(pointIDs) == 0 {
		return nil
	}
	return s.doJSON(ctx, op, http.MethodPost, s.collectionPath(namespace, "/points/delete?wait=true"), map[string]any{"points": pointIDs}, nil)
}

func (s *Index) Query(ctx context.Context, namespace string, vector []float32, k int) ([]vectorindex.Neighbor, error) {
	const op = "query"
	if k <= 0 {
		return []vectorindex.Neighbor{}, nil
	}
	if len(vector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if dim := s.cfg.Dims[namespace]; dim > 0 && len(vector) != dim {
		return nil, opErr(op, OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", dim, len(vector)), nil)
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"with_vector":  false,
	}
	var raw []qdrantSearchResultItem
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath(namespace, "/points/search"), req, &raw); err != nil {
		return nil, err
	}
	out := make([]vectorindex.Neighbor, 0, len(raw))
	for _, item := range raw {
		id := extractDatapointID(item)
		if id == "" {
			continue
		}
		out = append(out, vectorindex.Neighbor{ID: id, Distance: s.toDistance(namespace, item.Score)})
	}
	vectorindex.SortNeighbors(out)
	return out, nil
}

// verifyReady checks liveness and records each known collection's distance
// metric so scores can be mapped onto distances.
func (s *Index) verifyReady(ctx context.Context) error {
	const op = "bootstrap_verify"
	readyReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ready request failed", err)
	}
	s.authorize(readyReq)
	readyResp, err := s.http.Do(readyReq)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_ = readyResp.Body.Close()
	if readyResp.StatusCode < 200 || readyResp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: readyResp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", readyResp.StatusCode),
		}
	}

	for namespace, dim := range s.cfg.Dims {
		var result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		}
		if err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath(namespace, ""), nil, &result); err != nil {
			return err
		}
		size := result.Config.Params.Vectors.Size
		if size != 0 && dim > 0 && size != dim {
			return &OperationError{
				Code:      OperationErrorValidation,
				Operation: op,
				Message: fmt.Sprintf("qdrant collection %q vector size mismatch: expected=%d actual=%d",
					s.collectionName(namespace), dim, size),
			}
		}
		s.mu.Lock()
		s.distances[namespace] = strings.TrimSpace(result.Config.Params.Vectors.Distance)
		s.mu.Unlock()
	}
	return nil
}

func (s *Index) toDistance(namespace string, score float64) float64 {
	s.mu.RLock()
	metric := strings.ToLower(s.distances[namespace])
	s.mu.RUnlock()
	switch metric {
	case "euclid", "manhattan":
		if score < 0 {
			score = -score
		}
		return score
	default:
		return vectorindex.DistanceFromSimilarity(score)
	}
}

func (s *Index) authorize(req *http.Request) {
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
}

func (s *Index) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}
	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") || strings.EqualFold(statusString, "acknowledged") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}
	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil && strings.TrimSpace(statusObject.Error) != "" {
		return strings.TrimSpace(statusObject.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func pointID(namespace, datapointID string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(namespace+"|"+datapointID)).String()
}

func (s *Index) collectionName(namespace string) string {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return s.cfg.Collection
	}
	return s.cfg.Collection + "_" + namespace
}

func (s *Index) collectionPath(namespace, suffix string) string {
	return "/collections/" + s.collectionName(namespace) + suffix
}

func extractDatapointID(item qdrantSearchResultItem) string {
	if id, ok := item.Payload[payloadDatapointIDKey].(string); ok {
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return decodePointID(item.ID)
}

func decodePointID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var idString string
	if err := json.Unmarshal(raw, &idString); err == nil {
		return strings.TrimSpace(idString)
	}
	var idNumber int64
	if err := json.Unmarshal(raw, &idNumber); err == nil {
		return fmt.Sprintf("%d", idNumber)
	}
	return strings.TrimSpace(string(raw))
}
