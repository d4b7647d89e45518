package shm

// checkBuffer reports whether the buffer is in the expected state and
// owned by this manager; an unowned buffer also passes when Empty or Full
// is expected. Callers must hold m.bufferMu[buffer].
func (m *Manager) checkBuffer(buffer int, expect State) bool {
	buf := descriptorOf(m.region.Addr, buffer)
	if State(buf.Sem.Load()) != expect {
		return false
	}
	owner := buf.SemID.Load()
	return owner == m.managerID || (owner == Unowned && (expect == Empty || expect == Full))
}

func (m *Manager) requireBuffer(buffer int, expect State) (*BufferDescriptor, error) {
	if !m.validBuffer(buffer) {
		return nil, newError(KindBounds, buffer, "no such buffer")
	}
	buf := descriptorOf(m.region.Addr, buffer)
	if State(buf.Sem.Load()) != expect {
		return nil, newError(KindStateViolation, buffer, "expected state %s, got %s", expect, State(buf.Sem.Load()))
	}
	if buf.SemID.Load() != m.managerID {
		return nil, newError(KindStateViolation, buffer, "buffer is not owned by manager %d", m.managerID)
	}
	return buf, nil
}

// CheckBuffer is a non-throwing state query: does the buffer exist, and is
// it currently in the expected state under this manager's ownership (or,
// for Empty and Full, unowned)?
func (m *Manager) CheckBuffer(buffer int, expect State) bool {
	if !m.validBuffer(buffer) {
		return false
	}
	m.bufferMu[buffer].Lock()
	defer m.bufferMu[buffer].Unlock()
	return m.checkBuffer(buffer, expect)
}

// Write copies size bytes from src into the buffer's payload at its
// current writePos, and advances writePos. The buffer must be owned by
// this manager and in the Writing state.
func (m *Manager) Write(buffer int, src []byte) (int, error) {
	m.bufferMu[buffer].Lock()
	defer m.bufferMu[buffer].Unlock()

	buf, err := m.requireBuffer(buffer, Writing)
	if err != nil {
		return 0, err
	}
	touch(buf)

	size := uint64(len(src))
	if buf.WritePos+size > m.bufferSize {
		return 0, newError(KindBounds, buffer, "write of %d bytes at pos %d overflows buffer of size %d", size, buf.WritePos, m.bufferSize)
	}

	payload := bufferStart(m.region.Addr, m.bufferCount, m.bufferSize, buffer)
	copy(payload[buf.WritePos:], src)
	buf.WritePos += size
	return len(src), nil
}

// Read copies len(dst) bytes from the buffer's payload at its current
// readPos into dst, and advances readPos. Returns whether the buffer is
// still owned by this manager and in the Reading state after the copy —
// per §9's resolved open question, this boolean is the sole signal of
// success; no byte count is folded into it.
func (m *Manager) Read(buffer int, dst []byte) (bool, error) {
	m.bufferMu[buffer].Lock()
	defer m.bufferMu[buffer].Unlock()

	buf, err := m.requireBuffer(buffer, Reading)
	if err != nil {
		return false, err
	}
	touch(buf)

	size := uint64(len(dst))
	if buf.ReadPos+size > m.bufferSize {
		return false, newError(KindBounds, buffer, "read of %d bytes at pos %d overflows buffer of size %d", size, buf.ReadPos, m.bufferSize)
	}

	payload := bufferStart(m.region.Addr, m.bufferCount, m.bufferSize, buffer)
	copy(dst, payload[buf.ReadPos:buf.ReadPos+size])
	buf.ReadPos += size

	return m.checkBuffer(buffer, Reading), nil
}

// IncrementReadPos advances readPos by read bytes without copying data,
// for callers that write/read directly against GetReadPos's slice.
func (m *Manager) IncrementReadPos(buffer int, read uint64) error {
	if read == 0 {
		return newError(KindLogic, buffer, "cannot increment read pos by 0")
	}
	m.bufferMu[buffer].Lock()
	defer m.bufferMu[buffer].Unlock()

	buf, err := m.requireBuffer(buffer, Reading)
	if err != nil {
		return err
	}
	touch(buf)
	buf.ReadPos += read
	return nil
}

// IncrementWritePos advances writePos by written bytes without copying
// data, the write-side analogue of IncrementReadPos.
func (m *Manager) IncrementWritePos(buffer int, written uint64) error {
	if written == 0 {
		return newError(KindLogic, buffer, "cannot increment write pos by 0")
	}
	m.bufferMu[buffer].Lock()
	defer m.bufferMu[buffer].Unlock()

	buf, err := m.requireBuffer(buffer, Writing)
	if err != nil {
		return err
	}
	touch(buf)
	buf.WritePos += written
	return nil
}

// MarkBufferFull transitions a Writing buffer to Full. destination is the
// sem_id that will be required of the next reader; Unowned (-1) makes the
// buffer readable by any manager.
func (m *Manager) MarkBufferFull(buffer int, destination int32) error {
	m.bufferMu[buffer].Lock()
	defer m.bufferMu[buffer].Unlock()

	buf, err := m.requireBuffer(buffer, Writing)
	if err != nil {
		return err
	}
	touch(buf)
	buf.SemID.Store(destination)
	buf.Sem.Store(uint32(Full))
	m.recorder.StateTransition(Writing, Full)
	return nil
}

// MarkBufferEmpty transitions a Reading buffer back to Empty, resetting
// both position offsets and releasing ownership.
func (m *Manager) MarkBufferEmpty(buffer int) error {
	m.bufferMu[buffer].Lock()
	defer m.bufferMu[buffer].Unlock()

	buf, err := m.requireBuffer(buffer, Reading)
	if err != nil {
		return err
	}
	touch(buf)
	buf.ReadPos = 0
	buf.WritePos = 0
	buf.SemID.Store(Unowned)
	buf.Sem.Store(uint32(Empty))
	m.recorder.StateTransition(Reading, Empty)
	return nil
}

// ResetReadPos zeroes readPos without a full Reading→Empty cycle, for
// callers implementing a peek-then-rewind pattern (restored from
// artdaq-core's SharedMemoryManager::ResetReadPos).
func (m *Manager) ResetReadPos(buffer int) error {
	m.bufferMu[buffer].Lock()
	defer m.bufferMu[buffer].Unlock()

	buf, err := m.requireBuffer(buffer, Reading)
	if err != nil {
		return err
	}
	touch(buf)
	buf.ReadPos = 0
	return nil
}

// MoreDataInBuffer reports whether there is unread data in a Reading
// buffer (readPos < writePos), restored from the original implementation.
func (m *Manager) MoreDataInBuffer(buffer int) bool {
	if !m.validBuffer(buffer) {
		return false
	}
	m.bufferMu[buffer].Lock()
	defer m.bufferMu[buffer].Unlock()
	buf := descriptorOf(m.region.Addr, buffer)
	touch(buf)
	return buf.ReadPos < buf.WritePos
}

// BufferDataSize returns the buffer's current writePos, i.e. how many
// bytes of its payload currently hold written data.
func (m *Manager) BufferDataSize(buffer int) uint64 {
	if !m.validBuffer(buffer) {
		return 0
	}
	m.bufferMu[buffer].Lock()
	defer m.bufferMu[buffer].Unlock()
	buf := descriptorOf(m.region.Addr, buffer)
	touch(buf)
	return buf.WritePos
}

// GetWritePos returns the slice of the buffer's payload starting at its
// current writePos, for callers that want to write in place rather than
// through Write/memcpy. The caller must already own the buffer (hold it in
// Writing state); this does not lock or check ownership, matching the
// original's direct-pointer accessors.
func (m *Manager) GetWritePos(buffer int) []byte {
	if !m.validBuffer(buffer) {
		return nil
	}
	buf := descriptorOf(m.region.Addr, buffer)
	touch(buf)
	payload := bufferStart(m.region.Addr, m.bufferCount, m.bufferSize, buffer)
	return payload[buf.WritePos:]
}

// GetReadPos returns the slice of the buffer's payload starting at its
// current readPos. Same ownership caveat as GetWritePos.
func (m *Manager) GetReadPos(buffer int) []byte {
	if !m.validBuffer(buffer) {
		return nil
	}
	buf := descriptorOf(m.region.Addr, buffer)
	touch(buf)
	payload := bufferStart(m.region.Addr, m.bufferCount, m.bufferSize, buffer)
	return payload[buf.ReadPos:]
}

// GetBufferStart returns the buffer's entire payload region. Same
// ownership caveat as GetWritePos.
func (m *Manager) GetBufferStart(buffer int) []byte {
	if !m.validBuffer(buffer) {
		return nil
	}
	buf := descriptorOf(m.region.Addr, buffer)
	touch(buf)
	return bufferStart(m.region.Addr, m.bufferCount, m.bufferSize, buffer)
}
