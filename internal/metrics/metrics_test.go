package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterAndGauge(t *testing.T) {
	r := NewRegistry("test", "")

	c := r.RegisterCounter("events_total", "events", nil)
	c.Inc()
	c.Add(2)
	assert.Equal(t, uint64(3), c.Value())
	assert.Same(t, c, r.RegisterCounter("events_total", "events", nil))

	g := r.RegisterGauge("depth", "depth", nil)
	g.Set(5)
	g.Dec()
	assert.Equal(t, int64(4), g.Value())
}

func TestLabelledCountersAreDistinct(t *testing.T) {
	r := NewRegistry("test", "")

	a := r.RegisterCounter("gestures_total", "g", Labels{"sequence": "single"})
	b := r.RegisterCounter("gestures_total", "g", Labels{"sequence": "hold"})
	a.Inc()

	assert.NotSame(t, a, b)
	assert.Equal(t, uint64(0), b.Value())
	assert.Same(t, a, r.GetCounter("gestures_total", Labels{"sequence": "single"}))
}

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := NewHistogram("press", "p", nil, []float64{0.1, 0.5, 1})
	h.Observe(0.05)
	h.Observe(0.2)
	h.Observe(0.5)
	h.Observe(3)

	assert.Equal(t, []uint64{1, 3, 3, 4}, h.Cumulative())
	assert.Equal(t, uint64(4), h.Count())
	assert.InDelta(t, 3.75, h.Sum(), 1e-9)
}

func TestWritePrometheus(t *testing.T) {
	r := NewRegistry("keybowd", "")
	m := NewKeypadMetrics(r)
	m.TransitionObserved(true)
	m.TransitionObserved(false)
	m.GestureEmitted("single")
	m.ObservePress(200 * time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, r.WritePrometheus(&buf))
	out := buf.String()

	assert.Equal(t, 1, strings.Count(out, "# TYPE keybowd_transitions_total counter"))
	assert.Contains(t, out, `keybowd_transitions_total{state="press"} 1`)
	assert.Contains(t, out, `keybowd_gestures_total{sequence="single"} 1`)
	assert.Contains(t, out, `keybowd_press_duration_seconds_bucket{le="0.2"} 1`)
	assert.Contains(t, out, `keybowd_press_duration_seconds_count 1`)
}

func TestNilKeypadMetrics(t *testing.T) {
	var m *KeypadMetrics
	assert.NotPanics(t, func() {
		m.TransitionObserved(true)
		m.TransitionDropped()
		m.ScriptFailed()
		m.GestureEmitted("hold")
		m.EmptyResult()
		m.ObservePress(time.Second)
		m.SetTimelineEntries(3)
		m.SetQueueDepth(1)
		m.UpdateUptime()
	})
}

func TestHTTPHandlerJSON(t *testing.T) {
	r := NewRegistry("keybowd", "")
	r.RegisterCounter("x_total", "x", nil).Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	r.HTTPHandler().ServeHTTP(rec, req)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"keybowd_x_total": 1`)
}
