package shm

import (
	"fmt"
	"sync"
	"time"

	internalshm "github.com/fnaldaq/shmring/internal/shm"
	"github.com/fnaldaq/shmring/internal/shmlog"
)

var managerLog = shmlog.New("shm", nil)

// Manager attaches to (or creates) one shared memory segment and performs
// all buffer-search, ownership, and byte-level operations against it.
//
// A Manager is safe for concurrent use by multiple goroutines within one
// process. Coordination with Managers in other processes happens entirely
// through atomic fields in shared memory — see §5 of the spec.
type Manager struct {
	region *internalshm.Region
	header *SegmentHeader

	bufferCount uint64
	bufferSize  uint64
	staleUS     uint64

	managerID int32
	isCreator bool
	valid     bool

	searchMu sync.Mutex
	bufferMu []sync.Mutex

	recorder Recorder
}

// NewManager attaches to an existing segment identified by cfg.Key, or
// creates it if this is the first process to reach it. See §4.1 of the
// spec for the exact construction protocol.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	size := SegmentSize(uint64(cfg.BufferCount), uint64(cfg.MaxBufferSize))

	if !internalshm.CanCreateSegment(size) {
		return nil, fmt.Errorf("shm: insufficient shared memory for %d bytes", size)
	}

	region, err := internalshm.Open(internalshm.OpenOptions{Key: cfg.Key, Size: int(size)})
	if err != nil {
		managerLog.Errorf("failed to open segment key=0x%x: %v", cfg.Key, err)
		return &Manager{valid: false}, nil
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}

	m := &Manager{
		region:      region,
		header:      headerOf(region.Addr),
		bufferCount: uint64(cfg.BufferCount),
		bufferSize:  uint64(cfg.MaxBufferSize),
		staleUS:     uint64(cfg.StaleBufferTimeout.Microseconds()),
		isCreator:   region.Created,
		valid:       true,
		bufferMu:    make([]sync.Mutex, cfg.BufferCount),
		recorder:    recorder,
	}

	if region.Created {
		m.managerID = 0
		m.initSegment(cfg)
		managerLog.Debugf("created segment key=0x%x buffers=%d size=%d", cfg.Key, cfg.BufferCount, cfg.MaxBufferSize)
	} else {
		for m.header.ReadyMagic.Load() != ReadyMagic {
			time.Sleep(time.Millisecond)
		}
		m.managerID = int32(m.header.NextID.Add(1) - 1)
		managerLog.Debugf("attached to segment key=0x%x as manager %d", cfg.Key, m.managerID)
	}

	return m, nil
}

func (m *Manager) initSegment(cfg Config) {
	for i := 0; i < int(m.bufferCount); i++ {
		buf := descriptorOf(m.region.Addr, i)
		buf.WritePos = 0
		buf.ReadPos = 0
		buf.Sem.Store(uint32(Empty))
		buf.SemID.Store(Unowned)
		buf.BufferTouchTime.Store(0)
	}

	m.header.BufferSize = m.bufferSize
	m.header.BufferCount = m.bufferCount
	m.header.Rank = cfg.Rank
	m.header.ReaderPos.Store(0)
	m.header.WriterPos.Store(0)
	m.header.NextID.Store(1)
	// ReadyMagic must be the very last field written: every other
	// attacher spins on it before touching anything else.
	m.header.ReadyMagic.Store(ReadyMagic)
}

// IsValid reports whether construction completed successfully. Every
// operation below is a documented no-op/-1 when this is false.
func (m *Manager) IsValid() bool {
	return m != nil && m.valid
}

// ManagerID returns this process's segment-unique manager ID.
func (m *Manager) ManagerID() int32 {
	return m.managerID
}

// Close detaches from the segment. If this Manager created the segment, it
// also requests OS removal; non-creators must never do this (§5's "shared
// resource policy").
func (m *Manager) Close() error {
	if !m.valid {
		return nil
	}
	if err := m.region.Detach(); err != nil {
		return err
	}
	if m.isCreator {
		return m.region.Destroy()
	}
	return nil
}
