package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveConnectIncrementsCounters(t *testing.T) {
	tr := NewTracker()
	tr.ObserveConnect("h0", nil)
	tr.ObserveConnect("h0", errors.New("boom"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	tr.Handler().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "tether_connects_total")
	assert.Contains(t, body, "tether_connect_errors_total")
}

func TestObserveCallRecordsDurationAndErrors(t *testing.T) {
	tr := NewTracker()
	tr.ObserveCall("h0", "greet", 10*time.Millisecond, nil)
	tr.ObserveCall("h0", "greet", 5*time.Millisecond, errors.New("nope"))

	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, "tether_call_duration_seconds")
	assert.Contains(t, body, `callable="greet"`)
}

func TestObserveBytesReturnsHumanSize(t *testing.T) {
	tr := NewTracker()
	s := tr.ObserveBytesSent("h0", 2048)
	assert.NotEmpty(t, s)
	r := tr.ObserveBytesReceived("h0", 4096)
	assert.NotEmpty(t, r)
}

func TestObserveImportTracksMisses(t *testing.T) {
	tr := NewTracker()
	tr.ObserveImport("h0", true)
	tr.ObserveImport("h0", false)

	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "tether_import_misses_total")
}

func TestSetQueueDepthIsExposed(t *testing.T) {
	tr := NewTracker()
	tr.SetQueueDepth("h0", 3)

	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "tether_queue_depth")
}

func TestMultipleTrackersDoNotCollide(t *testing.T) {
	a := NewTracker()
	b := NewTracker()
	a.ObserveConnect("h0", nil)
	b.ObserveConnect("h1", nil)
	require.NotSame(t, a, b)
}
