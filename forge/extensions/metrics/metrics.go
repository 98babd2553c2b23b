// Package metrics provides a Prometheus-backed event.Emitter that
// turns forge's workflow/operation/compensation events into counters,
// gauges, and histograms.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/forgekit/forge/event"
)

// Collector records Prometheus metrics for every event a Foundry or
// Smith emits. It implements event.Emitter, so it can be registered
// directly via WithFoundryEmitter/WithSmithEmitter, or composed with
// other emitters through event.MultiEmitter.
type Collector struct {
	inflightOperations prometheus.Gauge
	workflowDuration   *prometheus.HistogramVec
	operationLatency   *prometheus.HistogramVec
	operationFailures  *prometheus.CounterVec
	compensations      *prometheus.CounterVec
	restores           *prometheus.CounterVec

	mu      sync.Mutex
	running map[string]struct{}
}

// New registers and returns a Collector on registry. If registry is
// nil, prometheus.DefaultRegisterer is used.
func New(registry prometheus.Registerer) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Collector{
		inflightOperations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "forge",
			Name:      "inflight_operations",
			Help:      "Number of operations currently executing across all foundries",
		}),
		workflowDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "forge",
			Name:      "workflow_duration_ms",
			Help:      "Workflow run duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000},
		}, []string{"workflow_id", "status"}),
		operationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "forge",
			Name:      "operation_latency_ms",
			Help:      "Per-operation execution duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}, []string{"operation_name", "status"}),
		operationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forge",
			Name:      "operation_failures_total",
			Help:      "Cumulative count of operation execution failures",
		}, []string{"operation_name"}),
		compensations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forge",
			Name:      "compensations_total",
			Help:      "Cumulative count of completed Saga compensation runs, by workflow",
		}, []string{"workflow_id"}),
		restores: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forge",
			Name:      "restores_total",
			Help:      "Cumulative count of per-operation Restore calls during compensation, by outcome",
		}, []string{"operation_name", "status"}),
		running: make(map[string]struct{}),
	}
}

// Emit implements event.Emitter.
func (c *Collector) Emit(ev event.Event) {
	switch ev.Kind {
	case event.OperationStarted:
		c.mu.Lock()
		c.running[ev.OperationID] = struct{}{}
		c.inflightOperations.Set(float64(len(c.running)))
		c.mu.Unlock()

	case event.OperationCompleted:
		c.stopTracking(ev.OperationID)
		c.operationLatency.WithLabelValues(ev.OpName, "success").Observe(msOf(ev.Duration))

	case event.OperationFailed:
		c.stopTracking(ev.OperationID)
		c.operationLatency.WithLabelValues(ev.OpName, "error").Observe(msOf(ev.Duration))
		c.operationFailures.WithLabelValues(ev.OpName).Inc()

	case event.WorkflowCompleted:
		c.workflowDuration.WithLabelValues(ev.WorkflowID, "success").Observe(msOf(ev.Duration))

	case event.WorkflowFailed:
		c.workflowDuration.WithLabelValues(ev.WorkflowID, "error").Observe(msOf(ev.Duration))

	case event.CompensationCompleted:
		c.compensations.WithLabelValues(ev.WorkflowID).Inc()

	case event.OperationRestoreCompleted:
		c.restores.WithLabelValues(ev.OpName, "success").Inc()

	case event.OperationRestoreFailed:
		c.restores.WithLabelValues(ev.OpName, "error").Inc()
	}
}

func (c *Collector) stopTracking(operationID string) {
	c.mu.Lock()
	delete(c.running, operationID)
	c.inflightOperations.Set(float64(len(c.running)))
	c.mu.Unlock()
}

func msOf(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
