package shm_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fnaldaq/shmring/pkg/shm"
)

// nextKey hands out a fresh segment key per test so tests run in the same
// binary never collide on /dev/shm, even though the spec's own example key
// (0x1001) is used verbatim in TestSoloRoundTrip below.
var keyCounter int64 = 0x2000

func nextKey() int {
	return int(atomic.AddInt64(&keyCounter, 1))
}

func newSegment(t *testing.T, key int, bufferCount, bufferSize uint32) *shm.Manager {
	t.Helper()
	m, err := shm.NewManager(shm.Config{
		Key:                key,
		BufferCount:        bufferCount,
		MaxBufferSize:      bufferSize,
		StaleBufferTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	require.True(t, m.IsValid())
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func attachSegment(t *testing.T, key int, bufferCount, bufferSize uint32) *shm.Manager {
	t.Helper()
	m, err := shm.NewManager(shm.Config{
		Key:                key,
		BufferCount:        bufferCount,
		MaxBufferSize:      bufferSize,
		StaleBufferTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	require.True(t, m.IsValid())
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestSoloRoundTrip(t *testing.T) {
	creator := newSegment(t, 0x1001, 4, 1024)

	payload := []byte{0x01, 0x02, 0x03}

	buffer := creator.GetBufferForWriting(false)
	require.NotEqual(t, -1, buffer)
	n, err := creator.Write(buffer, payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.NoError(t, creator.MarkBufferFull(buffer, shm.Unowned))

	readBuf := creator.GetBufferForReading()
	require.NotEqual(t, -1, readBuf)
	require.Equal(t, buffer, readBuf)

	dst := make([]byte, len(payload))
	ok, err := creator.Read(readBuf, dst)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload, dst)
	require.NoError(t, creator.MarkBufferEmpty(readBuf))
}

func TestRoundTripArbitraryLength(t *testing.T) {
	key := nextKey()
	m := newSegment(t, key, 4, 256)

	for _, size := range []int{0, 1, 17, 255, 256} {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i)
		}

		buffer := m.GetBufferForWriting(false)
		require.NotEqual(t, -1, buffer)
		_, err := m.Write(buffer, payload)
		require.NoError(t, err)
		require.NoError(t, m.MarkBufferFull(buffer, shm.Unowned))

		readBuf := m.GetBufferForReading()
		require.NotEqual(t, -1, readBuf)
		dst := make([]byte, size)
		ok, err := m.Read(readBuf, dst)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, payload, dst)
		require.NoError(t, m.MarkBufferEmpty(readBuf))
	}
}

func TestWriteOverflowIsBoundsError(t *testing.T) {
	key := nextKey()
	m := newSegment(t, key, 2, 8)

	buffer := m.GetBufferForWriting(false)
	require.NotEqual(t, -1, buffer)
	_, err := m.Write(buffer, make([]byte, 9))
	require.Error(t, err)
	shmErr, ok := err.(*shm.Error)
	require.True(t, ok)
	require.Equal(t, shm.KindBounds, shmErr.Kind)
}

func TestBackpressureAndOverwrite(t *testing.T) {
	key := nextKey()
	m := newSegment(t, key, 4, 16)

	var buffers []int
	for i := 0; i < 4; i++ {
		buffer := m.GetBufferForWriting(false)
		require.NotEqual(t, -1, buffer)
		buffers = append(buffers, buffer)
		require.NoError(t, m.MarkBufferFull(buffer, shm.Unowned))
	}

	// With no reader draining and all four buffers Full, a fifth
	// non-overwrite acquire must fail.
	require.Equal(t, -1, m.GetBufferForWriting(false))

	// overwrite=true must still succeed, reclaiming one of the Full buffers.
	reclaimed := m.GetBufferForWriting(true)
	require.NotEqual(t, -1, reclaimed)
	require.Contains(t, buffers, reclaimed)
}

func TestTargetedDelivery(t *testing.T) {
	key := nextKey()
	a := newSegment(t, key, 2, 16)
	b := attachSegment(t, key, 2, 16)
	c := attachSegment(t, key, 2, 16)

	buffer := a.GetBufferForWriting(false)
	require.NotEqual(t, -1, buffer)
	_, err := a.Write(buffer, []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, a.MarkBufferFull(buffer, c.ManagerID()))

	require.Equal(t, -1, b.GetBufferForReading())

	readBuf := c.GetBufferForReading()
	require.NotEqual(t, -1, readBuf)
	require.Equal(t, buffer, readBuf)
}

func TestStaleReclaim(t *testing.T) {
	key := nextKey()
	a, err := shm.NewManager(shm.Config{
		Key:                key,
		BufferCount:        1,
		MaxBufferSize:      16,
		StaleBufferTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	require.True(t, a.IsValid())
	t.Cleanup(func() { _ = a.Close() })

	b, err := shm.NewManager(shm.Config{
		Key:                key,
		BufferCount:        1,
		MaxBufferSize:      16,
		StaleBufferTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	buffer := a.GetBufferForWriting(false)
	require.NotEqual(t, -1, buffer)
	// a "disappears": no further operations touch the buffer, so its
	// touch time stays frozen.

	require.Equal(t, 0, b.WriteReadyCount(false))
	time.Sleep(30 * time.Millisecond)

	reclaimed := b.GetBufferForWriting(false)
	require.Equal(t, buffer, reclaimed)
}

func TestIdempotentReadiness(t *testing.T) {
	key := nextKey()
	m := newSegment(t, key, 2, 16)

	before := m.WriteReadyCount(false)
	require.True(t, m.ReadyForWrite(false))
	after := m.WriteReadyCount(false)
	require.Equal(t, before, after)

	buffer := m.GetBufferForWriting(false)
	_, err := m.Write(buffer, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, m.MarkBufferFull(buffer, shm.Unowned))

	readyBefore := m.ReadReadyCount()
	require.True(t, m.ReadyForRead())
	readyAfter := m.ReadReadyCount()
	require.Equal(t, readyBefore, readyAfter)
}

func TestCreatorOnlyTeardown(t *testing.T) {
	key := nextKey()
	creator, err := shm.NewManager(shm.Config{Key: key, BufferCount: 1, MaxBufferSize: 8, StaleBufferTimeout: time.Second})
	require.NoError(t, err)
	require.True(t, creator.IsValid())

	nonCreator, err := shm.NewManager(shm.Config{Key: key, BufferCount: 1, MaxBufferSize: 8, StaleBufferTimeout: time.Second})
	require.NoError(t, err)
	require.True(t, nonCreator.IsValid())

	require.NoError(t, nonCreator.Close())

	// Segment must still be attachable: nonCreator's Close must not have
	// removed it.
	again, err := shm.NewManager(shm.Config{Key: key, BufferCount: 1, MaxBufferSize: 8, StaleBufferTimeout: time.Second})
	require.NoError(t, err)
	require.True(t, again.IsValid())
	require.NoError(t, again.Close())

	require.NoError(t, creator.Close())
}

func TestHintFairness(t *testing.T) {
	key := nextKey()
	writer := newSegment(t, key, 4, 16)
	reader := attachSegment(t, key, 4, 16)

	visits := make(map[int]int)
	for cycle := 0; cycle < 16; cycle++ {
		buffer := writer.GetBufferForWriting(false)
		require.NotEqual(t, -1, buffer)
		require.NoError(t, writer.MarkBufferFull(buffer, shm.Unowned))

		readBuf := reader.GetBufferForReading()
		require.Equal(t, buffer, readBuf)
		visits[buffer]++
		require.NoError(t, reader.MarkBufferEmpty(readBuf))
	}

	require.Len(t, visits, 4)
	for buffer, count := range visits {
		require.Equal(t, 4, count, "buffer %d visited %d times, want 4", buffer, count)
	}
}

func TestOwnershipExclusivity(t *testing.T) {
	key := nextKey()
	a := newSegment(t, key, 1, 16)
	b := attachSegment(t, key, 1, 16)

	buffer := a.GetBufferForWriting(false)
	require.NotEqual(t, -1, buffer)

	// b must not be able to write into a's claimed buffer: the only buffer
	// in the segment is already Writing under a's ownership.
	require.Equal(t, -1, b.GetBufferForWriting(false))
	require.False(t, b.CheckBuffer(buffer, shm.Writing))
	require.True(t, a.CheckBuffer(buffer, shm.Writing))
}
