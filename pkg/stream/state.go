// Copyright (C) 2024  mvfst authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package stream keeps the per stream state and the stream manager:
// lazy stream allocation bounded by peer advertised limits, readable
// and writable index sets, priority scheduling, stream limit credit
// accounting and head of line blocking bookkeeping.
package stream

import (
	"time"

	"github.com/FFhix10/mvfst/pkg/flowcontrol"
	"github.com/FFhix10/mvfst/pkg/wire"
	"github.com/google/btree"
)

// SendState is the lifecycle of the write half of a stream.
type SendState uint8

const (
	SendStateOpen SendState = iota
	SendStateResetSent
	SendStateClosed
	SendStateInvalid
)

func (s SendState) String() string {
	switch s {
	case SendStateOpen:
		return "Open"
	case SendStateResetSent:
		return "ResetSent"
	case SendStateClosed:
		return "Closed"
	case SendStateInvalid:
		return "Invalid"
	default:
		return "UNKNOWN"
	}
}

// RecvState is the lifecycle of the read half of a stream.
type RecvState uint8

const (
	RecvStateOpen RecvState = iota
	RecvStateClosed
	RecvStateInvalid
)

func (s RecvState) String() string {
	switch s {
	case RecvStateOpen:
		return "Open"
	case RecvStateClosed:
		return "Closed"
	case RecvStateInvalid:
		return "Invalid"
	default:
		return "UNKNOWN"
	}
}

// Priority orders streams for write scheduling. A smaller level is
// more urgent. Incremental streams round robin inside a level.
type Priority struct {
	Level       uint8
	Incremental bool
}

// DefaultPriority is assigned to new streams.
var DefaultPriority = Priority{Level: 3, Incremental: false}

// Buffer is a chunk of stream data at an offset.
type Buffer struct {
	Offset uint64
	Data   []byte
	EOF    bool
}

func bufferLessFunc(a, b *Buffer) bool {
	return a.Offset < b.Offset
}

// State is the full state of one stream.
type State struct {
	ID wire.StreamID

	SendState SendState
	RecvState RecvState

	Priority  Priority
	IsControl bool

	// Receive side.
	readBuffer        *btree.BTreeG[*Buffer]
	CurrentReadOffset uint64
	MaxOffsetObserved uint64
	FinalReadOffset   uint64
	HasFinalRead      bool
	StreamReadError   uint64
	HasReadError      bool

	// Send side.
	WriteBuffer          []byte
	CurrentWriteOffset   uint64
	FinalWriteOffset     uint64
	HasFinalWrite        bool
	RetransmissionBuffer map[uint64]*Buffer
	LossBuffer           []*Buffer
	AckedUpTo            uint64
	StreamWriteError     uint64
	HasWriteError        bool

	FlowControl *flowcontrol.Stream

	// Head of line blocking bookkeeping.
	LastHolbTime  time.Time
	HolbLatched   bool
	TotalHolbTime time.Duration
	HolbCount     uint32

	// Cumulative count of packets sent carrying new data of this stream.
	NumPacketsTxWithNewData uint64
}

// NewState creates the state of one stream.
func NewState(id wire.StreamID, fc *flowcontrol.Stream) *State {
	return &State{
		ID:                   id,
		Priority:             DefaultPriority,
		readBuffer:           btree.NewG(4, bufferLessFunc),
		RetransmissionBuffer: make(map[uint64]*Buffer),
		FlowControl:          fc,
	}
}

// InTerminalStates reports whether both halves of the stream reached a
// terminal state, the precondition for removing the stream.
func (s *State) InTerminalStates() bool {
	sendDone := s.SendState == SendStateClosed || s.SendState == SendStateInvalid
	recvDone := s.RecvState == RecvStateClosed || s.RecvState == RecvStateInvalid
	return sendDone && recvDone
}

// HasReadableData reports whether contiguous data waits at the read offset.
func (s *State) HasReadableData() bool {
	if s.HasReadError {
		return true
	}
	front, ok := s.readBuffer.Min()
	return ok && front.Offset <= s.CurrentReadOffset
}

// HasPeekableData reports whether any data is buffered, contiguous or not.
func (s *State) HasPeekableData() bool {
	return s.readBuffer.Len() > 0 || s.HasReadError
}

// HasWritableData reports whether buffered bytes fit in the stream's
// send flow control window.
func (s *State) HasWritableData() bool {
	if len(s.WriteBuffer) == 0 {
		return s.HasFinalWrite && s.SendState == SendStateOpen &&
			s.CurrentWriteOffset <= s.FinalWriteOffset
	}
	return s.FlowControl.SendWindowAvailable(s.CurrentWriteOffset) > 0
}

// HasLoss reports whether loss buffers wait for retransmission.
func (s *State) HasLoss() bool {
	return len(s.LossBuffer) > 0
}

// ReadBufferLen returns the number of buffered receive chunks.
func (s *State) ReadBufferLen() int {
	return s.readBuffer.Len()
}

// FrontReadBuffer returns the lowest buffered receive chunk.
func (s *State) FrontReadBuffer() (*Buffer, bool) {
	return s.readBuffer.Min()
}
