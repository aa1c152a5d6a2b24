// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector holds the server's Prometheus metrics on a private registry.
// All methods are safe to call on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec

	predictRequestsTotal *prometheus.CounterVec
	predictDuration      *prometheus.HistogramVec

	imagesGenerated *prometheus.CounterVec
	bytesWritten    prometheus.Counter
	batchChunks     *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a Collector with metric names prefixed by namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.toolCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of MCP tool calls",
		},
		[]string{"tool", "status"},
	)

	c.toolCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "MCP tool call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"tool"},
	)

	c.predictRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predict_requests_total",
			Help:      "Total number of predict calls to the Imagen API",
		},
		[]string{"model", "status"},
	)

	c.predictDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "predict_duration_seconds",
			Help:      "Predict call duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"model"},
	)

	c.imagesGenerated = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_generated_total",
			Help:      "Total number of images returned by the API",
		},
		[]string{"model"},
	)

	c.bytesWritten = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Total bytes of image data written to disk",
		},
	)

	c.batchChunks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_chunks_total",
			Help:      "Total number of batch chunks started",
		},
		[]string{"size"},
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordToolCall records one tool invocation.
func (c *Collector) RecordToolCall(tool string, isError bool, duration time.Duration) {
	if c == nil {
		return
	}
	c.toolCallsTotal.WithLabelValues(tool, statusLabel(isError)).Inc()
	c.toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordPredict records one predict call.
func (c *Collector) RecordPredict(model string, statusCode int, duration time.Duration) {
	if c == nil {
		return
	}
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	c.predictRequestsTotal.WithLabelValues(model, status).Inc()
	c.predictDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordImages counts images returned for model.
func (c *Collector) RecordImages(model string, count int) {
	if c == nil || count <= 0 {
		return
	}
	c.imagesGenerated.WithLabelValues(model).Add(float64(count))
}

// RecordBytesWritten counts bytes persisted to disk.
func (c *Collector) RecordBytesWritten(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.bytesWritten.Add(float64(n))
}

// RecordBatchChunk counts a started batch chunk.
func (c *Collector) RecordBatchChunk(size int) {
	if c == nil {
		return
	}
	c.batchChunks.WithLabelValues(strconv.Itoa(size)).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func statusLabel(isError bool) string {
	if isError {
		return "error"
	}
	return "ok"
}
