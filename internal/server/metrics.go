package server

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/Brownie44l1/foundry-express/internal/server"

// Metrics holds server runtime metrics. Counters are kept locally for
// Snapshot and mirrored to an OpenTelemetry meter.
type Metrics struct {
	RequestsTotal     atomic.Int64
	ActiveConnections atomic.Int64
	ErrorsTotal       atomic.Int64
	Errors4xx         atomic.Int64
	Errors5xx         atomic.Int64

	TotalLatencyNs atomic.Int64

	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewMetrics records to the global meter provider
func NewMetrics() *Metrics {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter records to meter. Instruments that fail to register
// fall back to no-ops.
func NewMetricsWithMeter(meter metric.Meter) *Metrics {
	m := &Metrics{}

	requests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Requests served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		otel.Handle(err)
		requests = noop.Int64Counter{}
	}
	m.requests = requests

	latency, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("Time spent serving a request"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		otel.Handle(err)
		latency = noop.Float64Histogram{}
	}
	m.latency = latency

	return m
}

// RecordRequest records a completed request
func (m *Metrics) RecordRequest(method string, statusCode int, duration time.Duration) {
	m.RequestsTotal.Add(1)
	m.TotalLatencyNs.Add(duration.Nanoseconds())

	if statusCode >= 400 && statusCode < 500 {
		m.Errors4xx.Add(1)
	} else if statusCode >= 500 {
		m.Errors5xx.Add(1)
		m.ErrorsTotal.Add(1)
	}

	attrs := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.response.status_code", strconv.Itoa(statusCode)),
	)
	ctx := context.Background()
	m.requests.Add(ctx, 1, attrs)
	m.latency.Record(ctx, float64(duration)/float64(time.Millisecond), attrs)
}

// AverageLatency returns average request latency
func (m *Metrics) AverageLatency() time.Duration {
	totalReqs := m.RequestsTotal.Load()
	if totalReqs == 0 {
		return 0
	}

	avgNs := m.TotalLatencyNs.Load() / totalReqs
	return time.Duration(avgNs)
}

type MetricsSnapshot struct {
	RequestsTotal     int64
	ActiveConnections int64
	ErrorsTotal       int64
	Errors4xx         int64
	Errors5xx         int64
	AverageLatency    time.Duration
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		RequestsTotal:     m.RequestsTotal.Load(),
		ActiveConnections: m.ActiveConnections.Load(),
		ErrorsTotal:       m.ErrorsTotal.Load(),
		Errors4xx:         m.Errors4xx.Load(),
		Errors5xx:         m.Errors5xx.Load(),
		AverageLatency:    m.AverageLatency(),
	}
}
