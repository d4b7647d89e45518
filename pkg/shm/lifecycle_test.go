package shm_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/fnaldaq/shmring/pkg/shm"
)

// BufferLifecycleSuite drives one buffer through every legal edge of the
// ownership state machine and checks the invariants that must hold after
// each step, rather than only at the end.
type BufferLifecycleSuite struct {
	suite.Suite
	m      *shm.Manager
	buffer int
}

func (s *BufferLifecycleSuite) SetupTest() {
	key := nextKey()
	m, err := shm.NewManager(shm.Config{
		Key:                key,
		BufferCount:        1,
		MaxBufferSize:      32,
		StaleBufferTimeout: time.Second,
	})
	s.Require().NoError(err)
	s.Require().True(m.IsValid())
	s.m = m
}

func (s *BufferLifecycleSuite) TearDownTest() {
	s.Require().NoError(s.m.Close())
}

func (s *BufferLifecycleSuite) TestEmptyToWritingToFullToReadingToEmpty() {
	s.True(s.m.CheckBuffer(0, shm.Empty))

	s.buffer = s.m.GetBufferForWriting(false)
	s.Require().Equal(0, s.buffer)
	s.True(s.m.CheckBuffer(s.buffer, shm.Writing))

	payload := []byte("lifecycle")
	n, err := s.m.Write(s.buffer, payload)
	s.Require().NoError(err)
	s.Equal(len(payload), n)
	s.LessOrEqual(uint64(n), uint64(32))

	s.Require().NoError(s.m.MarkBufferFull(s.buffer, shm.Unowned))
	s.True(s.m.CheckBuffer(s.buffer, shm.Full))

	readBuf := s.m.GetBufferForReading()
	s.Require().Equal(s.buffer, readBuf)
	s.True(s.m.CheckBuffer(readBuf, shm.Reading))

	dst := make([]byte, len(payload))
	ok, err := s.m.Read(readBuf, dst)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(payload, dst)
	s.True(s.m.MoreDataInBuffer(readBuf) == false)

	s.Require().NoError(s.m.MarkBufferEmpty(readBuf))
	s.True(s.m.CheckBuffer(readBuf, shm.Empty))
}

func (s *BufferLifecycleSuite) TestResetReadPosRewindsWithoutReleasingOwnership() {
	s.buffer = s.m.GetBufferForWriting(false)
	payload := []byte("rewind-me")
	_, err := s.m.Write(s.buffer, payload)
	s.Require().NoError(err)
	s.Require().NoError(s.m.MarkBufferFull(s.buffer, shm.Unowned))

	readBuf := s.m.GetBufferForReading()
	dst := make([]byte, len(payload))
	_, err = s.m.Read(readBuf, dst)
	s.Require().NoError(err)
	s.Equal(payload, dst)

	s.Require().NoError(s.m.ResetReadPos(readBuf))
	s.True(s.m.CheckBuffer(readBuf, shm.Reading))

	dstAgain := make([]byte, len(payload))
	ok, err := s.m.Read(readBuf, dstAgain)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(payload, dstAgain)
}

func TestBufferLifecycleSuite(t *testing.T) {
	suite.Run(t, new(BufferLifecycleSuite))
}
