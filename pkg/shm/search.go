package shm

import "time"

func nowMicros() uint64 {
	return uint64(time.Now().UnixMicro())
}

func touch(buf *BufferDescriptor) {
	buf.BufferTouchTime.Store(nowMicros())
}

// resetBuffer is the stale-owner reclaim path from §4.3. It is invoked at
// the start of every search iteration for the candidate buffer. An owned
// buffer touched within the timeout is left untouched, whether its owner is
// a peer or this manager; otherwise a buffer stuck in Writing or Reading is
// forced back to an available state.
//
// Callers must hold m.bufferMu[buffer] already; this mirrors the spec's
// "ResetBuffer locks the per-buffer mutex" description, factored out so
// GetBufferForWriting/Reading can call it while already holding the lock
// for the claim sequence that follows.
func (m *Manager) resetBufferLocked(buffer int) {
	buf := descriptorOf(m.region.Addr, buffer)

	owner := buf.SemID.Load()
	if owner != Unowned {
		if buf.BufferTouchTime.Load() > nowMicros()-m.staleUS {
			return
		}
	}

	switch State(buf.Sem.Load()) {
	case Reading:
		buf.ReadPos = 0
		buf.Sem.Store(uint32(Full))
		buf.SemID.Store(Unowned)
		m.recorder.StaleReclaimed(buffer, Reading)
		m.recorder.StateTransition(Reading, Full)
	case Writing:
		buf.WritePos = 0
		buf.Sem.Store(uint32(Empty))
		buf.SemID.Store(Unowned)
		m.recorder.StaleReclaimed(buffer, Writing)
		m.recorder.StateTransition(Writing, Empty)
	}
}

// ResetBuffer exposes the stale-reclaim path for callers that want to force
// a liveness sweep outside the normal search loop (e.g. a housekeeping
// goroutine). GetBufferForWriting/Reading already call it on every
// candidate they consider.
func (m *Manager) ResetBuffer(buffer int) error {
	if !m.validBuffer(buffer) {
		return newError(KindBounds, buffer, "no such buffer")
	}
	m.bufferMu[buffer].Lock()
	defer m.bufferMu[buffer].Unlock()
	m.resetBufferLocked(buffer)
	return nil
}

func (m *Manager) validBuffer(buffer int) bool {
	return buffer >= 0 && uint64(buffer) < m.bufferCount
}

// GetBufferForWriting searches from the writer_pos hint, round-robin, for a
// buffer this manager can claim for writing. With overwrite set, a buffer
// that is not currently being written by someone else may be reclaimed even
// if it holds unread data. Returns -1 if no candidate succeeds.
func (m *Manager) GetBufferForWriting(overwrite bool) int {
	if !m.valid {
		return -1
	}
	m.searchMu.Lock()
	defer m.searchMu.Unlock()

	wp := m.header.WriterPos.Load()
	for i := uint32(0); uint64(i) < m.bufferCount; i++ {
		buffer := int((i + wp) % uint32(m.bufferCount))

		m.bufferMu[buffer].Lock()
		m.resetBufferLocked(buffer)
		buf := descriptorOf(m.region.Addr, buffer)

		state := State(buf.Sem.Load())
		if state == Empty || (overwrite && state != Writing) {
			prev := state
			buf.SemID.Store(m.managerID)
			buf.Sem.Store(uint32(Writing))
			if buf.SemID.Load() != m.managerID {
				// Lost a race with another manager claiming the same slot.
				m.bufferMu[buffer].Unlock()
				continue
			}
			buf.WritePos = 0
			touch(buf)
			m.header.WriterPos.Store(uint32((buffer + 1)) % uint32(m.bufferCount))
			m.bufferMu[buffer].Unlock()

			m.recorder.BufferAllocated()
			m.recorder.StateTransition(prev, Writing)
			m.reportReadyCountsLocked()
			return buffer
		}
		m.bufferMu[buffer].Unlock()
	}

	m.reportReadyCountsLocked()
	return -1
}

// GetBufferForReading searches from the reader_pos hint, round-robin, for a
// Full buffer this manager may read: either unrestricted (sem_id == -1) or
// specifically addressed to this manager. Returns -1 if no candidate
// succeeds.
func (m *Manager) GetBufferForReading() int {
	if !m.valid {
		return -1
	}
	m.searchMu.Lock()
	defer m.searchMu.Unlock()

	rp := m.header.ReaderPos.Load()
	for i := uint32(0); uint64(i) < m.bufferCount; i++ {
		buffer := int((i + rp) % uint32(m.bufferCount))

		m.bufferMu[buffer].Lock()
		m.resetBufferLocked(buffer)
		buf := descriptorOf(m.region.Addr, buffer)

		sem := State(buf.Sem.Load())
		owner := buf.SemID.Load()
		if sem == Full && (owner == Unowned || owner == m.managerID) {
			buf.SemID.Store(m.managerID)
			buf.Sem.Store(uint32(Reading))
			if buf.SemID.Load() != m.managerID {
				m.bufferMu[buffer].Unlock()
				continue
			}
			buf.ReadPos = 0
			touch(buf)
			m.header.ReaderPos.Store(uint32((buffer + 1)) % uint32(m.bufferCount))
			m.bufferMu[buffer].Unlock()

			m.recorder.StateTransition(Full, Reading)
			m.reportReadyCountsLocked()
			return buffer
		}
		m.bufferMu[buffer].Unlock()
	}

	m.reportReadyCountsLocked()
	return -1
}

// reportReadyCountsLocked recomputes ready-to-read/write counts for the
// Recorder. Callers must already hold searchMu; it takes each buffer's
// mutex individually and briefly, same as ReadReadyCount/WriteReadyCount.
func (m *Manager) reportReadyCountsLocked() {
	m.recorder.ReadyCounts(m.readReadyCount(), m.writeReadyCount(false))
}
