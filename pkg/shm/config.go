package shm

import "time"

// Config holds the construction parameters for a Manager, mirroring §4.1's
// construction inputs.
type Config struct {
	// Key is the host-wide segment identifier shared by every cooperating
	// process.
	Key int
	// BufferCount is the number of buffers in the segment.
	BufferCount uint32
	// MaxBufferSize is the fixed payload capacity of each buffer, in bytes.
	MaxBufferSize uint32
	// StaleBufferTimeout is how long a buffer may sit untouched in
	// Writing or Reading before another manager may reclaim it.
	StaleBufferTimeout time.Duration
	// Rank is an opaque diagnostic tag for the writer process, carried
	// through to the segment header and String().
	Rank int32
	// Recorder optionally receives state-transition and allocation
	// events for metrics/health reporting. Nil disables recording.
	Recorder Recorder
}

func (c Config) validate() error {
	if c.BufferCount == 0 {
		return newError(KindLogic, -1, "buffer_count must be > 0")
	}
	if c.MaxBufferSize == 0 {
		return newError(KindLogic, -1, "max_buffer_size must be > 0")
	}
	return nil
}

// Recorder observes Manager events for metrics and health reporting. See
// pkg/shmmetrics for Prometheus and OpenTelemetry implementations.
type Recorder interface {
	// BufferAllocated is called whenever GetBufferForWriting successfully
	// claims a buffer.
	BufferAllocated()
	// StateTransition is called on every successful Empty/Writing/Full/
	// Reading transition, including stale-reclaim edges.
	StateTransition(from, to State)
	// StaleReclaimed is called whenever ResetBuffer actually reclaims a
	// buffer (as opposed to finding nothing to do).
	StaleReclaimed(buffer int, from State)
	// ReadyCounts is called after every search with the current ready-to-
	// read and ready-to-write counts, for gauge-style reporting.
	ReadyCounts(readReady, writeReady int)
}

// noopRecorder discards every event; used when Config.Recorder is nil.
type noopRecorder struct{}

func (noopRecorder) BufferAllocated()                    {}
func (noopRecorder) StateTransition(from, to State)      {}
func (noopRecorder) StaleReclaimed(buffer int, from State) {}
func (noopRecorder) ReadyCounts(readReady, writeReady int) {}
