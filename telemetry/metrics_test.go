package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCountersInitialized(t *testing.T) {
	Init()

	if CommentsIngested == nil {
		t.Error("CommentsIngested counter not initialized")
	}
	if CommentsBlocked == nil {
		t.Error("CommentsBlocked counter not initialized")
	}
	if VMixPushes == nil {
		t.Error("VMixPushes counter not initialized")
	}
	if ModerationDuration == nil {
		t.Error("ModerationDuration histogram not initialized")
	}
}

func TestInitIdempotent(t *testing.T) {
	Init()
	first := CommentsIngested
	Init()
	if CommentsIngested != first {
		t.Error("Init re-registered counters")
	}
}

func TestGaugeSetters(t *testing.T) {
	Init()
	SetFeedSize(7)
	SetSourcesRunning(2)

	metric := &dto.Metric{}
	if err := FeedSizeGauge.Write(metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if got := metric.Gauge.GetValue(); got != 7 {
		t.Errorf("feed size gauge = %v, want 7", got)
	}
	metric = &dto.Metric{}
	if err := SourcesRunningGauge.Write(metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if got := metric.Gauge.GetValue(); got != 2 {
		t.Errorf("sources gauge = %v, want 2", got)
	}
}

func TestTimeFuncRecordsObservation(t *testing.T) {
	Init()

	testHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration",
		Buckets: prometheus.DefBuckets,
	})
	prometheus.MustRegister(testHistogram)
	defer prometheus.Unregister(testHistogram)

	executed := false
	d := TimeFunc(testHistogram, func() {
		time.Sleep(5 * time.Millisecond)
		executed = true
	})
	if !executed {
		t.Error("TimeFunc did not execute provided function")
	}
	if d <= 0 {
		t.Errorf("expected positive duration, got %v", d)
	}

	// Verify observation was recorded
	metric := &dto.Metric{}
	if err := testHistogram.Write(metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Histogram == nil || *metric.Histogram.SampleCount == 0 {
		t.Error("TimeFunc did not record observation in histogram")
	}
}

func TestCorrelationRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Errorf("expected empty correlation on fresh context, got %q", got)
	}
	ctx = WithCorrelation(ctx, "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("GetCorrelation = %q, want abc-123", got)
	}
	if l := LoggerWithCorr(ctx); l == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}
