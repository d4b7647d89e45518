package shm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fnaldaq/shmring/pkg/shm"
)

func TestMustPanicsOnFatalError(t *testing.T) {
	m := newSegment(t, nextKey(), 2, 64)

	require.Panics(t, func() {
		// MarkBufferFull on an Empty buffer is a state violation: nothing
		// has claimed it for writing yet.
		shm.Must(m.MarkBufferFull(0, shm.Unowned))
	})
}

func TestMustReadAndMustWritePassThroughOnSuccess(t *testing.T) {
	m := newSegment(t, nextKey(), 2, 64)

	buffer := m.GetBufferForWriting(false)
	require.NotEqual(t, -1, buffer)

	n := shm.MustWrite(m.Write(buffer, []byte("payload")))
	require.Equal(t, len("payload"), n)
	require.NoError(t, m.MarkBufferFull(buffer, shm.Unowned))

	readBuffer := m.GetBufferForReading()
	require.NotEqual(t, -1, readBuffer)

	dst := make([]byte, len("payload"))
	ok := shm.MustRead(m.Read(readBuffer, dst))
	require.True(t, ok)
	require.Equal(t, "payload", string(dst))
}

func TestMustNoopOnNilError(t *testing.T) {
	require.NotPanics(t, func() {
		shm.Must(nil)
	})
}
