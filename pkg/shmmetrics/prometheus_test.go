package shmmetrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/fnaldaq/shmring/pkg/shm"
	"github.com/fnaldaq/shmring/pkg/shmmetrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestPromRecorderCountsAllocations(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := shmmetrics.NewPromRecorder(reg, "test")

	r.BufferAllocated()
	r.BufferAllocated()
	r.StateTransition(shm.Writing, shm.Full)
	r.StaleReclaimed(0, shm.Writing)
	r.ReadyCounts(3, 1)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)

	var found bool
	for _, mf := range mfs {
		if mf.GetName() == "test_buffer_allocations_total" {
			found = true
			require.Equal(t, float64(2), mf.Metric[0].GetCounter().GetValue())
		}
	}
	require.True(t, found, "expected buffer_allocations_total metric to be registered")
}
