// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Namespace prefixes every metric name.
const Namespace = "docchat"

// =============================================================================
// METRICS
// =============================================================================

// Metrics holds the collectors used by the API client and chat sessions.
type Metrics struct {
	// HTTP calls against the conversation service
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Streaming answers
	StreamsTotal       *prometheus.CounterVec
	StreamDuration     prometheus.Histogram
	TimeToFirstProse   prometheus.Histogram
	StreamChunksTotal  prometheus.Counter
	StreamBytesTotal   prometheus.Counter
	DocsParseFailures  prometheus.Counter
	StreamsInFlight    prometheus.Gauge
	FeedbackTotal      *prometheus.CounterVec
	ConversationResets prometheus.Counter
}

// New creates and registers all collectors on reg. A nil reg registers on the
// process-wide default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "api_requests_total",
			Help:      "Total number of conversation service requests",
		},
		[]string{"endpoint", "outcome"},
	)

	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Duration of conversation service requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	m.StreamsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "streams_total",
			Help:      "Total number of streamed answers by outcome",
		},
		[]string{"outcome"},
	)

	m.StreamDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stream_duration_seconds",
			Help:      "Time from first byte to end of a streamed answer",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	m.TimeToFirstProse = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stream_first_prose_seconds",
			Help:      "Time until the first visible prose chunk",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	m.StreamChunksTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "stream_chunks_total",
			Help:      "Total number of decoded stream chunks",
		},
	)

	m.StreamBytesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "stream_bytes_total",
			Help:      "Total number of bytes read from answer streams",
		},
	)

	m.DocsParseFailures = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "supporting_docs_parse_failures_total",
			Help:      "Supporting document sections that failed to parse",
		},
	)

	m.StreamsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "streams_in_flight",
			Help:      "Number of answers currently streaming",
		},
	)

	m.FeedbackTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "feedback_total",
			Help:      "Feedback submissions by value and outcome",
		},
		[]string{"value", "outcome"},
	)

	m.ConversationResets = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "conversation_resets_total",
			Help:      "Number of conversations reset by the user",
		},
	)

	return m
}

// =============================================================================
// RECORDING
// =============================================================================

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeCanceled = "canceled"
)

// OutcomeOf maps an error to an outcome label.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}

// ObserveRequest records one conversation service call.
func (m *Metrics) ObserveRequest(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// StreamStarted marks a stream as in flight.
func (m *Metrics) StreamStarted() {
	if m == nil {
		return
	}
	m.StreamsInFlight.Inc()
}

// StreamFinished records a completed stream.
func (m *Metrics) StreamFinished(outcome string, duration, firstProse time.Duration, chunks, bytes int) {
	if m == nil {
		return
	}
	m.StreamsInFlight.Dec()
	m.StreamsTotal.WithLabelValues(outcome).Inc()
	if duration > 0 {
		m.StreamDuration.Observe(duration.Seconds())
	}
	if firstProse > 0 {
		m.TimeToFirstProse.Observe(firstProse.Seconds())
	}
	m.StreamChunksTotal.Add(float64(chunks))
	m.StreamBytesTotal.Add(float64(bytes))
}

// DocsParseFailed counts a malformed supporting docs section.
func (m *Metrics) DocsParseFailed() {
	if m == nil {
		return
	}
	m.DocsParseFailures.Inc()
}

// FeedbackSubmitted records a feedback attempt.
func (m *Metrics) FeedbackSubmitted(positive bool, outcome string) {
	if m == nil {
		return
	}
	value := "negative"
	if positive {
		value = "positive"
	}
	m.FeedbackTotal.WithLabelValues(value, outcome).Inc()
}

// ConversationReset counts a reset.
func (m *Metrics) ConversationReset() {
	if m == nil {
		return
	}
	m.ConversationResets.Inc()
}

// =============================================================================
// EXPOSITION
// =============================================================================

// Handler returns an HTTP handler serving the metrics gathered by g. A nil g
// serves the default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
