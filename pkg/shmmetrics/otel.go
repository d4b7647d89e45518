package shmmetrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fnaldaq/shmring/pkg/shm"
)

// OTelRecorder mirrors PromRecorder's events through the OTel metric API,
// for deployments that export via an OTel collector instead of a /metrics
// endpoint. Both recorders implement shm.Recorder independently; a caller
// that wants both wires a small fan-out Recorder of its own.
type OTelRecorder struct {
	ctx context.Context

	allocations   metric.Int64Counter
	transitions   metric.Int64Counter
	staleReclaims metric.Int64Counter
	readReady     metric.Int64Gauge
	writeReady    metric.Int64Gauge
}

// NewOTelRecorder creates the instruments for an OTelRecorder against the
// given Meter. ctx is used for every Add/Record call; shm.Recorder's
// interface has no context parameter, so one is captured at construction.
func NewOTelRecorder(ctx context.Context, meter metric.Meter) (*OTelRecorder, error) {
	allocations, err := meter.Int64Counter("shm.buffer.allocations",
		metric.WithDescription("Total number of buffers successfully claimed for writing."))
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("shm.buffer.state_transitions",
		metric.WithDescription("Total number of buffer state transitions."))
	if err != nil {
		return nil, err
	}
	staleReclaims, err := meter.Int64Counter("shm.buffer.stale_reclaims",
		metric.WithDescription("Total number of stale-owner reclaims."))
	if err != nil {
		return nil, err
	}
	readReady, err := meter.Int64Gauge("shm.buffers.read_ready",
		metric.WithDescription("Number of buffers currently readable by this manager."))
	if err != nil {
		return nil, err
	}
	writeReady, err := meter.Int64Gauge("shm.buffers.write_ready",
		metric.WithDescription("Number of buffers currently claimable for writing."))
	if err != nil {
		return nil, err
	}

	return &OTelRecorder{
		ctx:           ctx,
		allocations:   allocations,
		transitions:   transitions,
		staleReclaims: staleReclaims,
		readReady:     readReady,
		writeReady:    writeReady,
	}, nil
}

func (r *OTelRecorder) BufferAllocated() {
	r.allocations.Add(r.ctx, 1)
}

func (r *OTelRecorder) StateTransition(from, to shm.State) {
	r.transitions.Add(r.ctx, 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
}

func (r *OTelRecorder) StaleReclaimed(buffer int, from shm.State) {
	r.staleReclaims.Add(r.ctx, 1, metric.WithAttributes(
		attribute.String("from", from.String()),
	))
}

func (r *OTelRecorder) ReadyCounts(readReady, writeReady int) {
	r.readReady.Record(r.ctx, int64(readReady))
	r.writeReady.Record(r.ctx, int64(writeReady))
}
