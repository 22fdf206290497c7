// ABOUTME: Prometheus instrumentation for the conversation sync engine.
// ABOUTME: Counters live on a dedicated registry exposed via Handler for the debug endpoint.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the sync-engine counters. A nil *Metrics is valid and
// turns every record call into a no-op, so components can take it
// optionally.
type Metrics struct {
	registry *prometheus.Registry

	framesTotal       *prometheus.CounterVec
	duplicatesDropped prometheus.Counter
	malformedFrames   prometheus.Counter
	staleDropped      prometheus.Counter
	pagesFetched      prometheus.Counter
	fetchFailures     prometheus.Counter
	draftsSaved       prometheus.Counter
	draftsCleared     prometheus.Counter
	typingStarted     prometheus.Counter
	typingStopped     prometheus.Counter
}

// New creates a Metrics bundle with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		framesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opdesk_live_frames_total",
			Help: "Inbound live-channel frames by kind.",
		}, []string{"kind"}),
		duplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opdesk_duplicate_messages_dropped_total",
			Help: "Live messages dropped because their id was already cached.",
		}),
		malformedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opdesk_malformed_frames_total",
			Help: "Push payloads that failed structural validation.",
		}),
		staleDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opdesk_stale_completions_dropped_total",
			Help: "Async completions discarded because their conversation was switched away.",
		}),
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opdesk_history_pages_fetched_total",
			Help: "History pages successfully fetched.",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opdesk_history_fetch_failures_total",
			Help: "History fetch requests that failed.",
		}),
		draftsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opdesk_drafts_saved_total",
			Help: "Draft autosave and switch-away persists.",
		}),
		draftsCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opdesk_drafts_cleared_total",
			Help: "Draft fields cleared after a successful send.",
		}),
		typingStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opdesk_typing_started_total",
			Help: "Typing-started presence signals emitted.",
		}),
		typingStopped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opdesk_typing_stopped_total",
			Help: "Typing-stopped presence signals emitted.",
		}),
	}

	reg.MustRegister(
		m.framesTotal,
		m.duplicatesDropped,
		m.malformedFrames,
		m.staleDropped,
		m.pagesFetched,
		m.fetchFailures,
		m.draftsSaved,
		m.draftsCleared,
		m.typingStarted,
		m.typingStopped,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Frame records an inbound frame of the given kind.
func (m *Metrics) Frame(kind string) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(kind).Inc()
}

// DuplicateDropped records a live message dropped as a duplicate.
func (m *Metrics) DuplicateDropped() {
	if m == nil {
		return
	}
	m.duplicatesDropped.Inc()
}

// MalformedFrame records a push payload that failed to decode.
func (m *Metrics) MalformedFrame() {
	if m == nil {
		return
	}
	m.malformedFrames.Inc()
}

// StaleDropped records a completion discarded after a conversation switch.
func (m *Metrics) StaleDropped() {
	if m == nil {
		return
	}
	m.staleDropped.Inc()
}

// PageFetched records a successfully ingested history page.
func (m *Metrics) PageFetched() {
	if m == nil {
		return
	}
	m.pagesFetched.Inc()
}

// FetchFailed records a failed history fetch.
func (m *Metrics) FetchFailed() {
	if m == nil {
		return
	}
	m.fetchFailures.Inc()
}

// DraftSaved records a persisted draft write.
func (m *Metrics) DraftSaved() {
	if m == nil {
		return
	}
	m.draftsSaved.Inc()
}

// DraftCleared records a draft field cleared on send.
func (m *Metrics) DraftCleared() {
	if m == nil {
		return
	}
	m.draftsCleared.Inc()
}

// TypingStarted records an emitted typing-started signal.
func (m *Metrics) TypingStarted() {
	if m == nil {
		return
	}
	m.typingStarted.Inc()
}

// TypingStopped records an emitted typing-stopped signal.
func (m *Metrics) TypingStopped() {
	if m == nil {
		return
	}
	m.typingStopped.Inc()
}
