package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecordGeneration(t *testing.T) {
	m := NewMetrics()

	m.RecordGeneration(ModeBuffered, OutcomeSuccess, 2*time.Second)
	m.RecordGeneration(ModeBuffered, OutcomeSuccess, time.Second)
	m.RecordGeneration(ModeStreaming, OutcomeError, time.Second)
	m.RecordTopicShift("shift")

	body := scrape(t, m)
	assert.Contains(t, body, `promptmap_generations_total{mode="buffered",outcome="success"} 2`)
	assert.Contains(t, body, `promptmap_generations_total{mode="streaming",outcome="error"} 1`)
	assert.Contains(t, body, `promptmap_topic_shift_checks_total{result="shift"} 1`)
	assert.Contains(t, body, `promptmap_generation_duration_seconds_count{mode="buffered"} 2`)
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.ThreadsCreatedTotal.Inc()

	body := scrape(t, m)
	assert.Contains(t, body, "promptmap_threads_created_total 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics()
		NewMetrics()
	})
}
