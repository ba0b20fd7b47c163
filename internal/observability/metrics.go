package observability

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/catalog-search-backend/internal/platform/envutil"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

type Metrics struct {
	registry *prometheus.Registry

	vectorOps       *prometheus.HistogramVec
	vectorProvider  *prometheus.GaugeVec
	vectorBootstrap *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec

	embedRequests *prometheus.HistogramVec
	imageFetches  *prometheus.CounterVec

	rebuildItems    *prometheus.CounterVec
	rebuildDuration *prometheus.HistogramVec
	admissionWait   prometheus.Histogram

	retrievalLatency *prometheus.HistogramVec
	retrievalResults *prometheus.HistogramVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

// Init installs the process-wide metrics when METRICS_ENABLED is set.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		instance = NewMetrics(reg)
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

// NewMetrics registers every collector on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	latency := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}
	return &Metrics{
		registry: reg,
		vectorOps: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cs_vector_index_operation_duration_seconds",
			Help:    "Vector index operation latency by provider/operation/status.",
			Buckets: latency,
		}, []string{"provider", "operation", "status"}),
		vectorProvider: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cs_vector_index_provider_active",
			Help: "Active vector index provider (1 = active).",
		}, []string{"provider"}),
		vectorBootstrap: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cs_vector_index_bootstrap_total",
			Help: "Vector index bootstrap attempts by provider/status/code.",
		}, []string{"provider", "status", "code"}),
		breakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cs_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open).",
		}, []string{"name"}),
		embedRequests: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cs_embedding_request_duration_seconds",
			Help:    "Embedding provider latency by provider/modality/status.",
			Buckets: latency,
		}, []string{"provider", "modality", "status"}),
		imageFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cs_image_fetch_total",
			Help: "Image source fetches by scheme/status.",
		}, []string{"scheme", "status"}),
		rebuildItems: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cs_index_rebuild_items_total",
			Help: "Rebuild item outcomes by scope/status.",
		}, []string{"scope", "status"}),
		rebuildDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cs_index_rebuild_duration_seconds",
			Help:    "Rebuild wall time by scope/status.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"scope", "status"}),
		admissionWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cs_admission_wait_seconds",
			Help:    "Time spent blocked by the per-minute admission window.",
			Buckets: []float64{0, 0.5, 1, 5, 15, 30, 45, 60, 75},
		}),
		retrievalLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cs_retrieval_duration_seconds",
			Help:    "Retrieval latency by kind/strategy/status.",
			Buckets: latency,
		}, []string{"kind", "strategy", "status"}),
		retrievalResults: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cs_retrieval_results",
			Help:    "Number of results returned by kind.",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
		}, []string{"kind"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *Metrics) ObserveVectorIndexOperation(provider, operation string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	m.vectorOps.WithLabelValues(provider, operation, statusLabel(err)).Observe(dur.Seconds())
}

func (m *Metrics) SetVectorIndexProviderActive(provider string) {
	if m == nil {
		return
	}
	m.vectorProvider.Reset()
	m.vectorProvider.WithLabelValues(provider).Set(1)
}

func (m *Metrics) ObserveVectorIndexBootstrap(provider, status, code string) {
	if m == nil {
		return
	}
	m.vectorBootstrap.WithLabelValues(provider, status, code).Inc()
}

func (m *Metrics) SetCircuitBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(state)
}

func (m *Metrics) ObserveEmbedding(provider, modality string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	m.embedRequests.WithLabelValues(provider, modality, statusLabel(err)).Observe(dur.Seconds())
}

func (m *Metrics) IncImageFetch(scheme, status string) {
	if m == nil {
		return
	}
	m.imageFetches.WithLabelValues(scheme, status).Inc()
}

func (m *Metrics) AddRebuildItems(scope, status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rebuildItems.WithLabelValues(scope, status).Add(float64(n))
}

func (m *Metrics) ObserveRebuild(scope string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	m.rebuildDuration.WithLabelValues(scope, statusLabel(err)).Observe(dur.Seconds())
}

func (m *Metrics) ObserveAdmissionWait(dur time.Duration) {
	if m == nil {
		return
	}
	m.admissionWait.Observe(dur.Seconds())
}

func (m *Metrics) ObserveRetrieval(kind, strategy string, err error, dur time.Duration, results int) {
	if m == nil {
		return
	}
	m.retrievalLatency.WithLabelValues(kind, strategy, statusLabel(err)).Observe(dur.Seconds())
	if err == nil {
		m.retrievalResults.WithLabelValues(kind).Observe(float64(results))
	}
}
