package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Path      string `yaml:"path" mapstructure:"path"`
	Port      int    `yaml:"port" mapstructure:"port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

type MetricsManager struct {
	config   MetricsConfig
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	searchRequests       *prometheus.CounterVec
	searchDuration       *prometheus.HistogramVec
	searchResults        *prometheus.HistogramVec
	rejectedParameters   *prometheus.CounterVec
	unknownAttributes    *prometheus.CounterVec
	facetErrors          *prometheus.CounterVec
	indexOperations      *prometheus.CounterVec
	indexOperationDurVec *prometheus.HistogramVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	dbConnections    prometheus.Gauge
	dbConnectionsMax prometheus.Gauge

	uptimeSeconds prometheus.Gauge
	buildInfo     *prometheus.GaugeVec
}

func NewMetricsManager(config MetricsConfig) *MetricsManager {
	if !config.Enabled {
		return &MetricsManager{config: config}
	}

	registry := prometheus.NewRegistry()

	namespace := config.Namespace
	if namespace == "" {
		namespace = "querygate"
	}

	mm := &MetricsManager{
		config:   config,
		registry: registry,
	}

	mm.httpRequestsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	mm.httpRequestDuration = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	mm.httpResponseSize = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(1024, 2, 10),
		},
		[]string{"method", "path"},
	)

	mm.searchRequests = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of search requests by outcome",
		},
		[]string{"index_uid", "status"},
	)

	mm.searchDuration = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"index_uid"},
	)

	mm.searchResults = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "results_count",
			Help:      "Number of search results returned",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"index_uid"},
	)

	mm.rejectedParameters = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "rejected_parameters_total",
			Help:      "Total number of requests rejected for an invalid parameter",
		},
		[]string{"parameter"},
	)

	mm.unknownAttributes = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "unknown_attributes_total",
			Help:      "Total number of unknown attribute names skipped during normalization",
		},
		[]string{"parameter"},
	)

	mm.facetErrors = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "facet_errors_total",
			Help:      "Total number of facet parameter errors by kind",
		},
		[]string{"kind"},
	)

	mm.indexOperations = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "operations_total",
			Help:      "Total number of index definition operations",
		},
		[]string{"operation", "status"},
	)

	mm.indexOperationDurVec = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "operation_duration_seconds",
			Help:      "Index definition operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	mm.cacheHits = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	mm.cacheMisses = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	mm.dbConnections = promauto.With(registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "connections_active",
			Help:      "Number of active database connections",
		},
	)

	mm.dbConnectionsMax = promauto.With(registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "connections_max",
			Help:      "Maximum number of database connections",
		},
	)

	mm.uptimeSeconds = promauto.With(registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "uptime_seconds",
			Help:      "System uptime in seconds",
		},
	)

	mm.buildInfo = promauto.With(registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_time"},
	)

	return mm
}

func (mm *MetricsManager) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration, responseSize int64) {
	if !mm.config.Enabled {
		return
	}

	mm.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	mm.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	mm.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

func (mm *MetricsManager) RecordSearchRequest(indexUID, status string, duration time.Duration, resultCount int) {
	if !mm.config.Enabled {
		return
	}

	mm.searchRequests.WithLabelValues(indexUID, status).Inc()
	mm.searchDuration.WithLabelValues(indexUID).Observe(duration.Seconds())
	mm.searchResults.WithLabelValues(indexUID).Observe(float64(resultCount))
}

func (mm *MetricsManager) RecordRejectedParameter(parameter string) {
	if !mm.config.Enabled {
		return
	}
	mm.rejectedParameters.WithLabelValues(parameter).Inc()
}

func (mm *MetricsManager) RecordUnknownAttribute(parameter string) {
	if !mm.config.Enabled {
		return
	}
	mm.unknownAttributes.WithLabelValues(parameter).Inc()
}

func (mm *MetricsManager) RecordFacetError(kind string) {
	if !mm.config.Enabled {
		return
	}
	mm.facetErrors.WithLabelValues(kind).Inc()
}

func (mm *MetricsManager) RecordIndexOperation(operation, status string, duration time.Duration) {
	if !mm.config.Enabled {
		return
	}

	mm.indexOperations.WithLabelValues(operation, status).Inc()
	mm.indexOperationDurVec.WithLabelValues(operation).Observe(duration.Seconds())
}

func (mm *MetricsManager) RecordCacheHit(cacheType string) {
	if !mm.config.Enabled {
		return
	}
	mm.cacheHits.WithLabelValues(cacheType).Inc()
}

func (mm *MetricsManager) RecordCacheMiss(cacheType string) {
	if !mm.config.Enabled {
		return
	}
	mm.cacheMisses.WithLabelValues(cacheType).Inc()
}

func (mm *MetricsManager) SetDatabaseConnections(active, max int) {
	if !mm.config.Enabled {
		return
	}
	mm.dbConnections.Set(float64(active))
	mm.dbConnectionsMax.Set(float64(max))
}

func (mm *MetricsManager) SetUptime(startTime time.Time) {
	if !mm.config.Enabled {
		return
	}
	mm.uptimeSeconds.Set(time.Since(startTime).Seconds())
}

func (mm *MetricsManager) SetBuildInfo(version, commit, buildTime string) {
	if !mm.config.Enabled {
		return
	}
	mm.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

func (mm *MetricsManager) Handler() http.Handler {
	if !mm.config.Enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{})
}

func (mm *MetricsManager) MetricsMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mm.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			wrapped := &metricsResponseWriter{ResponseWriter: w}

			next.ServeHTTP(wrapped, r)

			mm.RecordHTTPRequest(
				r.Method,
				r.URL.Path,
				wrapped.statusCode,
				time.Since(start),
				wrapped.size,
			)
		})
	}
}

type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int64
}

func (mrw *metricsResponseWriter) WriteHeader(statusCode int) {
	mrw.statusCode = statusCode
	mrw.ResponseWriter.WriteHeader(statusCode)
}

func (mrw *metricsResponseWriter) Write(data []byte) (int, error) {
	size, err := mrw.ResponseWriter.Write(data)
	mrw.size += int64(size)
	return size, err
}

func (mm *MetricsManager) IsEnabled() bool {
	return mm.config.Enabled
}

func (mm *MetricsManager) StartUptimeTracker(ctx context.Context, startTime time.Time) {
	if !mm.config.Enabled {
		return
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mm.SetUptime(startTime)
			}
		}
	}()
}
