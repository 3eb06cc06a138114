// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	CommentsIngested   prometheus.Counter
	CommentsApproved   prometheus.Counter
	CommentsBlocked    prometheus.Counter
	ModerationCacheHit prometheus.Counter
	ClassifierCalls    prometheus.Counter
	ClassifierFailures prometheus.Counter
	VMixPushes         prometheus.Counter
	VMixPushFailures   prometheus.Counter
	AdapterErrors      prometheus.Counter

	// Histograms (seconds)
	ModerationDuration prometheus.Observer

	// Gauges
	FeedSizeGauge       prometheus.Gauge
	SourcesRunningGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CommentsIngested = promauto.NewCounter(prometheus.CounterOpts{Name: "chatfeed_comments_ingested_total", Help: "Number of comments received from all sources"})
		CommentsApproved = promauto.NewCounter(prometheus.CounterOpts{Name: "chatfeed_comments_approved_total", Help: "Number of comments that passed moderation"})
		CommentsBlocked = promauto.NewCounter(prometheus.CounterOpts{Name: "chatfeed_comments_blocked_total", Help: "Number of comments rejected by moderation"})
		ModerationCacheHit = promauto.NewCounter(prometheus.CounterOpts{Name: "chatfeed_moderation_cache_hits_total", Help: "Number of moderation results served from cache"})
		ClassifierCalls = promauto.NewCounter(prometheus.CounterOpts{Name: "chatfeed_classifier_calls_total", Help: "Number of external classifier invocations"})
		ClassifierFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "chatfeed_classifier_failures_total", Help: "Number of failed or unparsable classifier responses"})
		VMixPushes = promauto.NewCounter(prometheus.CounterOpts{Name: "chatfeed_vmix_pushes_total", Help: "Number of successful pushes to the vMix sink"})
		VMixPushFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "chatfeed_vmix_push_failures_total", Help: "Number of failed pushes to the vMix sink"})
		AdapterErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "chatfeed_adapter_errors_total", Help: "Number of source adapter errors (isolated, non-fatal)"})
		ModerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chatfeed_moderation_duration_seconds", Help: "Moderation duration seconds (including classifier round trips)", Buckets: prometheus.DefBuckets})
		FeedSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chatfeed_feed_size", Help: "Current number of buffered comments"})
		SourcesRunningGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chatfeed_sources_running", Help: "Number of source adapters currently running"})
	})
}

// SetFeedSize records the current buffered comment count.
func SetFeedSize(n int) {
	if FeedSizeGauge != nil {
		FeedSizeGauge.Set(float64(n))
	}
}

// SetSourcesRunning records the number of running adapters.
func SetSourcesRunning(n int) {
	if SourcesRunningGauge != nil {
		SourcesRunningGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
