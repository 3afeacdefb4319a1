package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// KeypadMetrics holds the keypad and gesture metrics. All methods are safe
// to call on a nil receiver, which records nothing.
type KeypadMetrics struct {
	registry *Registry
	started  time.Time

	Presses            *Counter
	Releases           *Counter
	DroppedTransitions *Counter
	ScriptErrors       *Counter
	EmptyResults       *Counter

	TimelineEntries *Gauge
	QueueDepth      *Gauge
	UptimeSeconds   *Gauge

	PressDuration *Histogram
}

// NewKeypadMetrics registers the keypad metrics on registry (Default() when nil).
func NewKeypadMetrics(registry *Registry) *KeypadMetrics {
	if registry == nil {
		registry = Default()
	}

	return &KeypadMetrics{
		registry: registry,
		started:  time.Now(),

		Presses: registry.RegisterCounter(
			"transitions_total",
			"Raw key transitions observed",
			Labels{"state": "press"},
		),
		Releases: registry.RegisterCounter(
			"transitions_total",
			"Raw key transitions observed",
			Labels{"state": "release"},
		),
		DroppedTransitions: registry.RegisterCounter(
			"dropped_transitions_total",
			"Transitions discarded because the hardware mailbox was full",
			nil,
		),
		ScriptErrors: registry.RegisterCounter(
			"script_errors_total",
			"Scripted replays aborted by a malformed command",
			nil,
		),
		EmptyResults: registry.RegisterCounter(
			"empty_results_total",
			"Polls that published no gesture",
			nil,
		),
		TimelineEntries: registry.RegisterGauge(
			"timeline_entries",
			"Entries currently held in the transition timeline",
			nil,
		),
		QueueDepth: registry.RegisterGauge(
			"queue_depth",
			"Results waiting in the output queue",
			nil,
		),
		UptimeSeconds: registry.RegisterGauge(
			"uptime_seconds",
			"Seconds since metrics were initialised",
			nil,
		),
		PressDuration: registry.RegisterHistogram(
			"press_duration_seconds",
			"Time between a key press and its release",
			nil,
			PressBuckets,
		),
	}
}

// Registry returns the registry the metrics were registered on.
func (m *KeypadMetrics) Registry() *Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// TransitionObserved counts a raw press or release.
func (m *KeypadMetrics) TransitionObserved(pressed bool) {
	if m == nil {
		return
	}
	if pressed {
		m.Presses.Inc()
	} else {
		m.Releases.Inc()
	}
}

// TransitionDropped counts a transition lost to mailbox overflow.
func (m *KeypadMetrics) TransitionDropped() {
	if m == nil {
		return
	}
	m.DroppedTransitions.Inc()
}

// ScriptFailed counts an aborted scripted replay.
func (m *KeypadMetrics) ScriptFailed() {
	if m == nil {
		return
	}
	m.ScriptErrors.Inc()
}

// GestureEmitted counts a published gesture of the named sequence.
func (m *KeypadMetrics) GestureEmitted(sequence string) {
	if m == nil {
		return
	}
	m.registry.RegisterCounter(
		"gestures_total",
		"Gestures published to consumers",
		Labels{"sequence": sequence},
	).Inc()
}

// EmptyResult counts a poll that published the empty marker.
func (m *KeypadMetrics) EmptyResult() {
	if m == nil {
		return
	}
	m.EmptyResults.Inc()
}

// ObservePress records how long a key was held.
func (m *KeypadMetrics) ObservePress(d time.Duration) {
	if m == nil {
		return
	}
	m.PressDuration.ObserveDuration(d)
}

// SetTimelineEntries records the timeline size.
func (m *KeypadMetrics) SetTimelineEntries(n int) {
	if m == nil {
		return
	}
	m.TimelineEntries.Set(int64(n))
}

// SetQueueDepth records the output queue length.
func (m *KeypadMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(int64(n))
}

// UpdateUptime refreshes the uptime gauge.
func (m *KeypadMetrics) UpdateUptime() {
	if m == nil {
		return
	}
	m.UptimeSeconds.Set(int64(time.Since(m.started).Seconds()))
}

// Serve exposes registry on addr at /metrics, plus any extra routes, until
// ctx is done.
func Serve(ctx context.Context, addr string, registry *Registry, routes map[string]http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.HTTPHandler())
	for path, h := range routes {
		mux.Handle(path, h)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
