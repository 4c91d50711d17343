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

// Package flowcontrol accounts connection and stream level send and
// receive windows.
package flowcontrol

import (
	"fmt"

	"github.com/FFhix10/mvfst/pkg/mathext"
	"github.com/FFhix10/mvfst/pkg/wire"
)

// Connection tracks the connection wide flow control windows.
type Connection struct {
	// Send side, bounded by the peer's MAX_DATA.
	peerAdvertisedMaxOffset uint64
	sumCurWriteOffset       uint64

	// Receive side, bounded by our own advertisement.
	advertisedMaxOffset   uint64
	windowSize            uint64
	sumMaxObservedOffset  uint64
	sumCurReadOffset      uint64
	sumCurStreamBufferLen uint64
}

// NewConnection creates connection flow control with the local receive
// window. The peer's send limit starts at zero until MAX_DATA or the
// transport parameters arrive.
func NewConnection(recvWindow uint64) *Connection {
	return &Connection{
		advertisedMaxOffset: recvWindow,
		windowSize:          recvWindow,
	}
}

// SetPeerAdvertisedMaxOffset installs the peer's initial_max_data.
func (c *Connection) SetPeerAdvertisedMaxOffset(max uint64) {
	c.peerAdvertisedMaxOffset = mathext.Max(c.peerAdvertisedMaxOffset, max)
}

// HandleMaxData applies a MAX_DATA frame. Regressions are ignored.
func (c *Connection) HandleMaxData(maximumData uint64) {
	c.peerAdvertisedMaxOffset = mathext.Max(c.peerAdvertisedMaxOffset, maximumData)
}

// SendWindowAvailable returns how many more bytes may be sent on all
// streams combined.
func (c *Connection) SendWindowAvailable() uint64 {
	if c.sumCurWriteOffset >= c.peerAdvertisedMaxOffset {
		return 0
	}
	return c.peerAdvertisedMaxOffset - c.sumCurWriteOffset
}

// IsBlocked reports whether the connection send window is exhausted
// while stream data is waiting.
func (c *Connection) IsBlocked() bool {
	return c.SendWindowAvailable() == 0 && c.sumCurStreamBufferLen > 0
}

// OnStreamBytesSent accounts new bytes written to the wire.
func (c *Connection) OnStreamBytesSent(n uint64) error {
	if c.sumCurWriteOffset+n > c.peerAdvertisedMaxOffset {
		return fmt.Errorf("connection send window exceeded: offset %d, limit %d",
			c.sumCurWriteOffset+n, c.peerAdvertisedMaxOffset)
	}
	c.sumCurWriteOffset += n
	return nil
}

// OnStreamBytesReceived accounts newly observed receive offsets.
// Exceeding our advertisement is a peer flow control violation.
func (c *Connection) OnStreamBytesReceived(n uint64) error {
	c.sumMaxObservedOffset += n
	if c.sumMaxObservedOffset > c.advertisedMaxOffset {
		return wire.NewTransportError(wire.FlowControlError, "connection flow control exceeded")
	}
	return nil
}

// OnStreamBytesConsumed accounts bytes the application has read.
// It returns a new MAX_DATA advertisement when half the window is consumed.
func (c *Connection) OnStreamBytesConsumed(n uint64) (uint64, bool) {
	c.sumCurReadOffset += n
	if c.advertisedMaxOffset-c.sumCurReadOffset < c.windowSize/2 {
		c.advertisedMaxOffset = c.sumCurReadOffset + c.windowSize
		return c.advertisedMaxOffset, true
	}
	return 0, false
}

// AddStreamBufferBytes tracks bytes buffered in stream receive queues.
func (c *Connection) AddStreamBufferBytes(n uint64) {
	c.sumCurStreamBufferLen += n
}

// SubStreamBufferBytes removes bytes drained from stream receive queues.
func (c *Connection) SubStreamBufferBytes(n uint64) {
	c.sumCurStreamBufferLen -= mathext.Min(c.sumCurStreamBufferLen, n)
}

// BufferedBytes returns the sum of buffered stream bytes.
func (c *Connection) BufferedBytes() uint64 {
	return c.sumCurStreamBufferLen
}

// PeerAdvertisedMaxOffset returns the current peer send limit.
func (c *Connection) PeerAdvertisedMaxOffset() uint64 {
	return c.peerAdvertisedMaxOffset
}

// Stream tracks one stream's flow control windows.
type Stream struct {
	peerAdvertisedMaxOffset uint64
	advertisedMaxOffset     uint64
	windowSize              uint64
}

// NewStream creates stream flow control. sendMax is the peer's initial
// window for our writes, recvWindow is our advertisement for its writes.
func NewStream(sendMax, recvWindow uint64) *Stream {
	return &Stream{
		peerAdvertisedMaxOffset: sendMax,
		advertisedMaxOffset:     recvWindow,
		windowSize:              recvWindow,
	}
}

// HandleWindowUpdate applies a MAX_STREAM_DATA frame.
// It returns true if the send window advanced.
func (s *Stream) HandleWindowUpdate(maximumData uint64) bool {
	if maximumData <= s.peerAdvertisedMaxOffset {
		return false
	}
	s.peerAdvertisedMaxOffset = maximumData
	return true
}

// SendWindowAvailable returns the remaining send window given the
// current write offset.
func (s *Stream) SendWindowAvailable(currentWriteOffset uint64) uint64 {
	if currentWriteOffset >= s.peerAdvertisedMaxOffset {
		return 0
	}
	return s.peerAdvertisedMaxOffset - currentWriteOffset
}

// OnReceive validates a newly observed receive offset.
func (s *Stream) OnReceive(maxOffsetObserved uint64) error {
	if maxOffsetObserved > s.advertisedMaxOffset {
		return wire.NewTransportError(wire.FlowControlError, "stream flow control exceeded")
	}
	return nil
}

// OnConsume accounts the application read offset. It returns a new
// MAX_STREAM_DATA advertisement when half the window is consumed.
func (s *Stream) OnConsume(currentReadOffset uint64) (uint64, bool) {
	if s.advertisedMaxOffset-mathext.Min(s.advertisedMaxOffset, currentReadOffset) < s.windowSize/2 {
		s.advertisedMaxOffset = currentReadOffset + s.windowSize
		return s.advertisedMaxOffset, true
	}
	return 0, false
}

// AdvertisedMaxOffset returns the current receive advertisement.
func (s *Stream) AdvertisedMaxOffset() uint64 {
	return s.advertisedMaxOffset
}

// PeerAdvertisedMaxOffset returns the current send limit.
func (s *Stream) PeerAdvertisedMaxOffset() uint64 {
	return s.peerAdvertisedMaxOffset
}
