// Package metrics exposes Prometheus metrics for the recognition pipeline.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics contains the metrics recorded by batch runs and identity operations.
// All record methods are safe to call on a nil receiver.
type PipelineMetrics struct {
	ImagesProcessed   *prometheus.CounterVec
	FacesDetected     prometheus.Counter
	MatchDecisions    *prometheus.CounterVec
	ImageDuration     prometheus.Histogram
	BatchRuns         *prometheus.CounterVec
	GalleryIdentities prometheus.Gauge
	GalleryVectors    prometheus.Gauge

	registry *prometheus.Registry
}

// NewPipelineMetrics creates the metrics and registers them with registry.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.ImagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facesys_images_processed_total",
			Help: "Images handled by batch runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
	m.FacesDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "facesys_faces_detected_total",
			Help: "Faces persisted by batch runs.",
		},
	)
	m.MatchDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facesys_match_decisions_total",
			Help: "Matcher decisions partitioned by tier (strict, relaxed, new).",
		},
		[]string{"tier"},
	)
	m.ImageDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "facesys_image_duration_seconds",
			Help:    "Time taken to detect, match and persist the faces of one image.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		},
	)
	m.BatchRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facesys_batch_runs_total",
			Help: "Batch runs partitioned by final status.",
		},
		[]string{"status"},
	)
	m.GalleryIdentities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "facesys_gallery_identities",
			Help: "Identities currently held by the in-memory gallery.",
		},
	)
	m.GalleryVectors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "facesys_gallery_embeddings",
			Help: "Embeddings currently held by the in-memory gallery.",
		},
	)
}

// Describe implements prometheus.Collector.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ImagesProcessed.Describe(ch)
	m.FacesDetected.Describe(ch)
	m.MatchDecisions.Describe(ch)
	m.ImageDuration.Describe(ch)
	m.BatchRuns.Describe(ch)
	m.GalleryIdentities.Describe(ch)
	m.GalleryVectors.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ImagesProcessed.Collect(ch)
	m.FacesDetected.Collect(ch)
	m.MatchDecisions.Collect(ch)
	m.ImageDuration.Collect(ch)
	m.BatchRuns.Collect(ch)
	m.GalleryIdentities.Collect(ch)
	m.GalleryVectors.Collect(ch)
}

// RecordImage counts one image with its outcome ("processed", "skipped", "failed").
func (m *PipelineMetrics) RecordImage(outcome string, faces int, d time.Duration) {
	if m == nil {
		return
	}
	m.ImagesProcessed.WithLabelValues(outcome).Inc()
	m.FacesDetected.Add(float64(faces))
	m.ImageDuration.Observe(d.Seconds())
}

func (m *PipelineMetrics) RecordMatch(tier string) {
	if m == nil {
		return
	}
	m.MatchDecisions.WithLabelValues(tier).Inc()
}

func (m *PipelineMetrics) RecordBatch(status string) {
	if m == nil {
		return
	}
	m.BatchRuns.WithLabelValues(status).Inc()
}

func (m *PipelineMetrics) SetGallerySize(identities, embeddings int) {
	if m == nil {
		return
	}
	m.GalleryIdentities.Set(float64(identities))
	m.GalleryVectors.Set(float64(embeddings))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
