package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineMetricsRecord(t *testing.T) {
	m, err := NewPipelineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordImage("processed", 2, 50*time.Millisecond)
	m.RecordImage("skipped", 0, time.Millisecond)
	m.RecordMatch("strict")
	m.RecordMatch("new")
	m.RecordMatch("new")
	m.RecordBatch("completed")
	m.SetGallerySize(3, 7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImagesProcessed.WithLabelValues("processed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FacesDetected))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MatchDecisions.WithLabelValues("new")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchRuns.WithLabelValues("completed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.GalleryIdentities))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.GalleryVectors))
}

func TestPipelineMetricsNilSafe(t *testing.T) {
	var m *PipelineMetrics
	assert.NotPanics(t, func() {
		m.RecordImage("processed", 1, time.Second)
		m.RecordMatch("strict")
		m.RecordBatch("failed")
		m.SetGallerySize(1, 1)
	})
}

func TestPipelineMetricsHandler(t *testing.T) {
	m, err := NewPipelineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	m.RecordMatch("relaxed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `facesys_match_decisions_total{tier="relaxed"} 1`)
}

func TestDuplicateRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewPipelineMetrics(registry)
	require.NoError(t, err)
	_, err = NewPipelineMetrics(registry)
	assert.Error(t, err)
}
