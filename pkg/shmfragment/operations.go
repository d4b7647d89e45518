package fragment

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"github.com/valyala/bytebufferpool"

	"github.com/fnaldaq/shmring/pkg/shm"
)

// Status codes returned by the four operations below, matching §4.4 and
// §6.3 of the original collaboration contract.
const (
	StatusOK               = 0
	StatusSegmentInvalid   = -1
	StatusIncompleteWrite  = -2
)

var scratchPool bytebufferpool.Pool

// WriteFragment acquires a writing buffer, writes the fragment's header and
// body as one contiguous copy, and marks the buffer full. destination
// restricts the buffer to one reader; pass shm.Unowned to leave it open to
// any manager.
func WriteFragment(m *shm.Manager, frag Carrier, overwrite bool, destination int32) int {
	if !m.IsValid() {
		return StatusSegmentInvalid
	}

	buffer := m.GetBufferForWriting(overwrite)
	if buffer == -1 {
		return StatusIncompleteWrite
	}

	body := frag.Bytes()
	n, err := m.Write(buffer, body)
	if err != nil || n != len(body) {
		return StatusIncompleteWrite
	}

	if err := m.MarkBufferFull(buffer, destination); err != nil {
		return StatusIncompleteWrite
	}
	return StatusOK
}

// WriteFragmentRetry retries WriteFragment with exponential backoff while it
// reports transient unavailability (StatusIncompleteWrite from a failed
// GetBufferForWriting), instead of the caller hand-rolling a spin loop. It
// gives up immediately on StatusSegmentInvalid, since that never recovers on
// its own.
func WriteFragmentRetry(ctx context.Context, m *shm.Manager, frag Carrier, overwrite bool, destination int32, b backoff.BackOff) int {
	status := StatusIncompleteWrite
	op := func() error {
		status = WriteFragment(m, frag, overwrite, destination)
		if status == StatusOK || status == StatusSegmentInvalid {
			return nil
		}
		return errTransient
	}
	_ = backoff.Retry(op, backoff.WithContext(b, ctx))
	return status
}

var errTransient = &transientError{}

type transientError struct{}

func (*transientError) Error() string { return "fragment: no buffer available" }

// ReadFragment acquires a reading buffer, reads the header, grows the
// destination to the header's declared total size, reads the remainder, and
// marks the buffer empty. See SPEC_FULL.md's resolved Open Questions for
// why the second read addresses the fragment's own backing slice rather
// than reusing the header's byte pointer arithmetic. It returns StatusOK on
// success and -1 otherwise: StatusSegmentInvalid when m is not valid, and
// the same value when no buffer is ready or either read fails.
func ReadFragment(m *shm.Manager, frag Carrier) int {
	if !m.IsValid() {
		return StatusSegmentInvalid
	}

	buffer := m.GetBufferForReading()
	if buffer == -1 {
		return StatusSegmentInvalid
	}

	frag.Resize(HeaderSize())
	ok, err := m.Read(buffer, frag.HeaderBytes())
	if err != nil || !ok {
		_ = m.MarkBufferEmpty(buffer)
		return StatusSegmentInvalid
	}

	frag.AutoResizeFromHeader()

	scratch := scratchPool.Get()
	defer scratchPool.Put(scratch)
	// Exact body length, not a word-rounded size: AutoResizeFromHeader
	// already sized frag to its header's declared exact byte length, so
	// frag.Bytes() carries no trailing padding to over-read.
	remaining := len(frag.Bytes()) - HeaderSize()
	scratch.B = scratch.B[:0]
	for len(scratch.B) < remaining {
		scratch.B = append(scratch.B, 0)
	}

	ok, err = m.Read(buffer, scratch.B)
	markErr := m.MarkBufferEmpty(buffer)
	if err != nil || !ok || markErr != nil {
		return StatusSegmentInvalid
	}

	copy(frag.Bytes()[HeaderSize():], scratch.B)
	return StatusOK
}

// ReadFragmentHeader acquires a reading buffer, reads only the header into
// frag, and returns the buffer index still claimed (state Reading) so a
// subsequent ReadFragmentData call can complete the two-phase read. Pass
// the returned buffer to ReadFragmentData; there is no need to call
// MarkBufferEmpty yourself, ReadFragmentData does that.
func ReadFragmentHeader(m *shm.Manager, frag Carrier) (buffer int, status int) {
	if !m.IsValid() {
		return -1, StatusSegmentInvalid
	}

	buffer = m.GetBufferForReading()
	if buffer == -1 {
		return -1, StatusIncompleteWrite
	}

	frag.Resize(HeaderSize())
	ok, err := m.Read(buffer, frag.HeaderBytes())
	if err != nil || !ok {
		_ = m.MarkBufferEmpty(buffer)
		return -1, StatusIncompleteWrite
	}
	return buffer, StatusOK
}

// ReadFragmentData reads wordCount words of raw body data from buffer
// (already claimed by a prior ReadFragmentHeader call, or any buffer this
// manager currently holds in the Reading state) into frag, immediately
// following whatever frag already holds, then marks the buffer empty.
func ReadFragmentData(m *shm.Manager, buffer int, frag Carrier, wordCount int) int {
	if !m.IsValid() {
		return StatusSegmentInvalid
	}
	if !m.CheckBuffer(buffer, shm.Reading) {
		return StatusIncompleteWrite
	}

	offset := frag.SizeWords() * WordSize
	frag.Resize(offset + wordCount*WordSize)

	ok, err := m.Read(buffer, frag.Bytes()[offset:])
	markErr := m.MarkBufferEmpty(buffer)
	if err != nil || !ok || markErr != nil {
		return StatusIncompleteWrite
	}
	return StatusOK
}
