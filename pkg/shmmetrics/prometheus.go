// Package shmmetrics implements shm.Recorder against Prometheus and,
// optionally, OpenTelemetry, keeping pkg/shm itself free of a hard
// dependency on either.
package shmmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fnaldaq/shmring/pkg/shm"
)

// PromRecorder counts buffer allocations and state transitions, and tracks
// ready-to-read/write gauges, all registered under the given namespace.
type PromRecorder struct {
	allocations    prometheus.Counter
	transitions    *prometheus.CounterVec
	staleReclaims  *prometheus.CounterVec
	readReady      prometheus.Gauge
	writeReady     prometheus.Gauge
}

// NewPromRecorder constructs and registers a PromRecorder's metrics against
// reg. Pass prometheus.DefaultRegisterer to use the global registry.
func NewPromRecorder(reg prometheus.Registerer, namespace string) *PromRecorder {
	r := &PromRecorder{
		allocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffer_allocations_total",
			Help:      "Total number of buffers successfully claimed for writing.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffer_state_transitions_total",
			Help:      "Total number of buffer state transitions, labeled by from/to state.",
		}, []string{"from", "to"}),
		staleReclaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffer_stale_reclaims_total",
			Help:      "Total number of stale-owner reclaims, labeled by the state reclaimed from.",
		}, []string{"from"}),
		readReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffers_read_ready",
			Help:      "Number of buffers currently readable by this manager.",
		}),
		writeReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffers_write_ready",
			Help:      "Number of buffers currently claimable for writing.",
		}),
	}

	reg.MustRegister(r.allocations, r.transitions, r.staleReclaims, r.readReady, r.writeReady)
	return r
}

func (r *PromRecorder) BufferAllocated() {
	r.allocations.Inc()
}

func (r *PromRecorder) StateTransition(from, to shm.State) {
	r.transitions.WithLabelValues(from.String(), to.String()).Inc()
}

func (r *PromRecorder) StaleReclaimed(buffer int, from shm.State) {
	r.staleReclaims.WithLabelValues(from.String()).Inc()
}

func (r *PromRecorder) ReadyCounts(readReady, writeReady int) {
	r.readReady.Set(float64(readReady))
	r.writeReady.Set(float64(writeReady))
}
