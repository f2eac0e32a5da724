// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "libris"

var (
	// Recommendations
	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommendation_duration_seconds",
			Help:      "Time to produce a recommendation list",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"source"}, // "cache", "computed"
	)

	RecommendationCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommendation_candidates",
			Help:      "Distinct candidate publications scored per computation",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// Cache
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendation_cache_requests_total",
			Help:      "Recommendation cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "error"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Favorites
	FavoriteOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "favorite_operations_total",
			Help:      "Favorite add/remove attempts by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Similarity ingestion
	SimilarityEdgesImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "similarity_edges_imported_total",
			Help:      "Directed similarity edges written by imports",
		},
	)

	SimilarityImports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "similarity_imports_total",
			Help:      "Similarity import runs by status",
		},
		[]string{"status"}, // "success", "failed"
	)

	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Favorite outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeDuplicate = "duplicate"
	OutcomeLimit     = "limit"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
)

// RecordFavorite counts one favorite operation.
func RecordFavorite(operation, outcome string) {
	FavoriteOperations.WithLabelValues(operation, outcome).Inc()
}

// ObserveRecommendation records a computed or cached recommendation.
func ObserveRecommendation(source string, took time.Duration) {
	RecommendationDuration.WithLabelValues(source).Observe(took.Seconds())
}

// RecordImport records a finished similarity import.
func RecordImport(edges int, err error) {
	if err != nil {
		SimilarityImports.WithLabelValues("failed").Inc()
		return
	}
	SimilarityImports.WithLabelValues("success").Inc()
	SimilarityEdgesImported.Add(float64(edges))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware records request latency keyed by the matched chi route pattern,
// so path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}
