// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, distributed tracing, structured logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/peezy/hyperfy-eliza-client"

// Decision outcome attribute values for [Metrics.DecisionOutcomes].
const (
	OutcomeAct    = "act"
	OutcomeSilent = "silent"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// TurnDuration tracks end-to-end turn latency (stimulus received to
	// decision returned, excluding the detached commit).
	TurnDuration metric.Float64Histogram

	// BackendDuration tracks generative backend call latency.
	BackendDuration metric.Float64Histogram

	// BackendRequests counts backend calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	BackendRequests metric.Int64Counter

	// DecisionOutcomes counts classified decisions. Use with attributes:
	//   attribute.String("agent_id", ...), attribute.String("outcome", "act"|"silent")
	DecisionOutcomes metric.Int64Counter

	// BehaviorDispatches counts behavior dispatches. Use with attributes:
	//   attribute.String("behavior", ...), attribute.String("status", ...)
	BehaviorDispatches metric.Int64Counter

	// TurnFailures counts failed turns by error class. Use with attribute:
	//   attribute.String("class", ...)
	TurnFailures metric.Int64Counter

	// ActiveAgents tracks the number of currently registered agents.
	ActiveAgents metric.Int64UpDownCounter

	// DecisionSubscribers tracks live decision-feed connections.
	DecisionSubscribers metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// generative backend round trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TurnDuration, err = m.Float64Histogram("hyperfy.turn.duration",
		metric.WithDescription("End-to-end latency of one decision turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BackendDuration, err = m.Float64Histogram("hyperfy.backend.duration",
		metric.WithDescription("Latency of generative backend calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.BackendRequests, err = m.Int64Counter("hyperfy.backend.requests",
		metric.WithDescription("Total generative backend requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.DecisionOutcomes, err = m.Int64Counter("hyperfy.decision.outcomes",
		metric.WithDescription("Total classified decisions by agent and outcome."),
	); err != nil {
		return nil, err
	}
	if met.BehaviorDispatches, err = m.Int64Counter("hyperfy.behavior.dispatches",
		metric.WithDescription("Total behavior dispatches by behavior name and status."),
	); err != nil {
		return nil, err
	}
	if met.TurnFailures, err = m.Int64Counter("hyperfy.turn.failures",
		metric.WithDescription("Total failed turns by error class."),
	); err != nil {
		return nil, err
	}

	if met.ActiveAgents, err = m.Int64UpDownCounter("hyperfy.active_agents",
		metric.WithDescription("Number of currently registered agents."),
	); err != nil {
		return nil, err
	}
	if met.DecisionSubscribers, err = m.Int64UpDownCounter("hyperfy.decision_subscribers",
		metric.WithDescription("Number of live decision-feed connections."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("hyperfy.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordBackendRequest records one backend call with the standard attribute
// set.
func (m *Metrics) RecordBackendRequest(ctx context.Context, provider, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	)
	m.BackendRequests.Add(ctx, 1, attrs)
	m.BackendDuration.Record(ctx, seconds, attrs)
}

// RecordDecisionOutcome records one classified decision.
func (m *Metrics) RecordDecisionOutcome(ctx context.Context, agentID, outcome string) {
	m.DecisionOutcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("agent_id", agentID),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordBehaviorDispatch records one behavior dispatch.
func (m *Metrics) RecordBehaviorDispatch(ctx context.Context, behaviorName, status string) {
	m.BehaviorDispatches.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("behavior", behaviorName),
			attribute.String("status", status),
		),
	)
}

// RecordTurnFailure records one failed turn by error class.
func (m *Metrics) RecordTurnFailure(ctx context.Context, class string) {
	m.TurnFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("class", class)))
}
