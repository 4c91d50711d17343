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

package wire

import (
	"time"

	"github.com/FFhix10/mvfst/pkg/connid"
)

// Frame is one decoded QUIC frame. The state machine dispatches on the
// concrete type.
type Frame interface {
	isFrame()
}

// SimpleFrame marks the small stateless control frames that are queued
// and retransmitted as a unit: path challenge and response, connection
// ID management, new token and handshake done.
type SimpleFrame interface {
	Frame
	isSimpleFrame()
}

// PaddingFrame only contributes to packet size.
type PaddingFrame struct {
	Length int
}

type PingFrame struct{}

// AckBlock is a closed range of acknowledged packet numbers.
type AckBlock struct {
	Start PacketNum
	End   PacketNum
}

// AckFrame acknowledges ranges of packet numbers. Blocks are ordered
// by descending packet number; the first block ends at the largest
// acknowledged packet.
type AckFrame struct {
	AckBlocks []AckBlock
	AckDelay  time.Duration
}

// LargestAcked returns the largest packet number covered by the frame.
func (f *AckFrame) LargestAcked() PacketNum {
	if len(f.AckBlocks) == 0 {
		return 0
	}
	return f.AckBlocks[0].End
}

type CryptoFrame struct {
	Offset uint64
	Data   []byte
}

type StreamFrame struct {
	StreamID StreamID
	Offset   uint64
	Data     []byte
	Fin      bool
}

type RstStreamFrame struct {
	StreamID  StreamID
	ErrorCode uint64
	FinalSize uint64
}

type StopSendingFrame struct {
	StreamID  StreamID
	ErrorCode uint64
}

type MaxDataFrame struct {
	MaximumData uint64
}

type MaxStreamDataFrame struct {
	StreamID    StreamID
	MaximumData uint64
}

type MaxStreamsFrame struct {
	StreamLimit   uint64
	Bidirectional bool
}

type DataBlockedFrame struct {
	DataLimit uint64
}

type StreamDataBlockedFrame struct {
	StreamID  StreamID
	DataLimit uint64
}

type StreamsBlockedFrame struct {
	StreamLimit   uint64
	Bidirectional bool
}

type ConnectionCloseFrame struct {
	ErrorCode    TransportErrorCode
	FrameType    uint64
	ReasonPhrase string
}

type DatagramFrame struct {
	Data []byte
}

type PathChallengeFrame struct {
	Data uint64
}

type PathResponseFrame struct {
	Data uint64
}

type NewConnectionIDFrame struct {
	SequenceNumber uint64
	RetirePriorTo  uint64
	ConnID         connid.ConnectionID
	Token          [connid.ResetTokenLength]byte
}

type RetireConnectionIDFrame struct {
	SequenceNumber uint64
}

type NewTokenFrame struct {
	Token []byte
}

type HandshakeDoneFrame struct{}

func (*PaddingFrame) isFrame()           {}
func (*PingFrame) isFrame()              {}
func (*AckFrame) isFrame()               {}
func (*CryptoFrame) isFrame()            {}
func (*StreamFrame) isFrame()            {}
func (*RstStreamFrame) isFrame()         {}
func (*StopSendingFrame) isFrame()       {}
func (*MaxDataFrame) isFrame()           {}
func (*MaxStreamDataFrame) isFrame()     {}
func (*MaxStreamsFrame) isFrame()        {}
func (*DataBlockedFrame) isFrame()       {}
func (*StreamDataBlockedFrame) isFrame() {}
func (*StreamsBlockedFrame) isFrame()    {}
func (*ConnectionCloseFrame) isFrame()   {}
func (*DatagramFrame) isFrame()          {}

func (*PathChallengeFrame) isFrame()      {}
func (*PathResponseFrame) isFrame()       {}
func (*NewConnectionIDFrame) isFrame()    {}
func (*RetireConnectionIDFrame) isFrame() {}
func (*NewTokenFrame) isFrame()           {}
func (*HandshakeDoneFrame) isFrame()      {}

func (*PathChallengeFrame) isSimpleFrame()      {}
func (*PathResponseFrame) isSimpleFrame()       {}
func (*NewConnectionIDFrame) isSimpleFrame()    {}
func (*RetireConnectionIDFrame) isSimpleFrame() {}
func (*NewTokenFrame) isSimpleFrame()           {}
func (*HandshakeDoneFrame) isSimpleFrame()      {}

// IsProbingFrame reports whether the frame may appear in a packet
// without making that packet non-probing.
func IsProbingFrame(f Frame) bool {
	switch f.(type) {
	case *PathChallengeFrame, *PathResponseFrame, *NewConnectionIDFrame, *PaddingFrame:
		return true
	default:
		return false
	}
}
