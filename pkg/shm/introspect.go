package shm

import (
	"fmt"
	"strings"
)

// ReadyForRead reports whether at least one buffer is currently readable
// by this manager, without claiming it or advancing reader_pos. Stale
// owners are still reclaimed as a side effect, matching GetBufferForReading.
func (m *Manager) ReadyForRead() bool {
	return m.ReadReadyCount() > 0
}

// ReadyForWrite is the write-side analogue of ReadyForRead.
func (m *Manager) ReadyForWrite(overwrite bool) bool {
	return m.WriteReadyCount(overwrite) > 0
}

// ReadReadyCount returns the number of buffers currently readable by this
// manager: Full, and either unaddressed or addressed to it.
func (m *Manager) ReadReadyCount() int {
	if !m.valid {
		return 0
	}
	m.searchMu.Lock()
	defer m.searchMu.Unlock()
	return m.readReadyCount()
}

// WriteReadyCount returns the number of buffers currently claimable for
// writing, honoring the same overwrite semantics as GetBufferForWriting.
func (m *Manager) WriteReadyCount(overwrite bool) int {
	if !m.valid {
		return 0
	}
	m.searchMu.Lock()
	defer m.searchMu.Unlock()
	return m.writeReadyCount(overwrite)
}

// readReadyCount and writeReadyCount are the unlocked cores shared by the
// exported counters above and by reportReadyCountsLocked, which is already
// called with searchMu held from inside GetBufferForWriting/Reading.
func (m *Manager) readReadyCount() int {
	count := 0
	for buffer := 0; uint64(buffer) < m.bufferCount; buffer++ {
		m.bufferMu[buffer].Lock()
		m.resetBufferLocked(buffer)
		buf := descriptorOf(m.region.Addr, buffer)
		sem := State(buf.Sem.Load())
		owner := buf.SemID.Load()
		if sem == Full && (owner == Unowned || owner == m.managerID) {
			count++
		}
		m.bufferMu[buffer].Unlock()
	}
	return count
}

func (m *Manager) writeReadyCount(overwrite bool) int {
	count := 0
	for buffer := 0; uint64(buffer) < m.bufferCount; buffer++ {
		m.bufferMu[buffer].Lock()
		m.resetBufferLocked(buffer)
		buf := descriptorOf(m.region.Addr, buffer)
		state := State(buf.Sem.Load())
		if state == Empty || (overwrite && state != Writing) {
			count++
		}
		m.bufferMu[buffer].Unlock()
	}
	return count
}

// GetBuffersOwnedByManager returns the indices of every buffer currently
// owned by this manager, touching each one to refresh its timestamp so the
// enumeration itself cannot trigger a self-reclaim.
func (m *Manager) GetBuffersOwnedByManager() []int {
	if !m.valid {
		return nil
	}
	var owned []int
	for buffer := 0; uint64(buffer) < m.bufferCount; buffer++ {
		m.bufferMu[buffer].Lock()
		buf := descriptorOf(m.region.Addr, buffer)
		if buf.SemID.Load() == m.managerID {
			touch(buf)
			owned = append(owned, buffer)
		}
		m.bufferMu[buffer].Unlock()
	}
	return owned
}

// String dumps the header and every buffer descriptor's current state, for
// diagnostics and the shmdump CLI tool.
func (m *Manager) String() string {
	if !m.valid {
		return "shm.Manager{invalid}"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "segment: buffers=%d buffer_size=%d rank=%d manager_id=%d creator=%t\n",
		m.bufferCount, m.bufferSize, m.header.Rank, m.managerID, m.isCreator)
	fmt.Fprintf(&b, "reader_pos=%d writer_pos=%d next_id=%d\n",
		m.header.ReaderPos.Load(), m.header.WriterPos.Load(), m.header.NextID.Load())

	for buffer := 0; uint64(buffer) < m.bufferCount; buffer++ {
		buf := descriptorOf(m.region.Addr, buffer)
		fmt.Fprintf(&b, "  buffer %d: state=%s sem_id=%d write_pos=%d read_pos=%d touched=%d\n",
			buffer, State(buf.Sem.Load()), buf.SemID.Load(), buf.WritePos, buf.ReadPos, buf.BufferTouchTime.Load())
	}
	return b.String()
}
