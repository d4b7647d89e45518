package shmhealth_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fnaldaq/shmring/pkg/shm"
	"github.com/fnaldaq/shmring/pkg/shmhealth"
)

var keyCounter int64 = 0x4000

func nextKey() int {
	return int(atomic.AddInt64(&keyCounter, 1))
}

func TestHealthHandlerLivenessAndReadiness(t *testing.T) {
	m, err := shm.NewManager(shm.Config{
		Key:                nextKey(),
		BufferCount:        2,
		MaxBufferSize:      16,
		StaleBufferTimeout: time.Second,
	})
	require.NoError(t, err)
	require.True(t, m.IsValid())
	t.Cleanup(func() { _ = m.Close() })

	handler := shmhealth.NewHandler(m)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)

	// Before any write no buffer is Full, so read-readiness is false, but
	// write-readiness has Empty buffers available, so the segment is ready.
	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	rw = httptest.NewRecorder()
	handler.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)
}

func TestHealthHandlerNotLiveWhenInvalid(t *testing.T) {
	invalid := &shm.Manager{}
	handler := shmhealth.NewHandler(invalid)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, req)
	require.Equal(t, http.StatusServiceUnavailable, rw.Code)
}
