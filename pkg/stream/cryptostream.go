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

package stream

import (
	"github.com/FFhix10/mvfst/pkg/wire"
	"github.com/google/btree"
)

// CryptoStream is the offset ordered handshake data stream of one
// encryption level. It has no flow control and no stream ID.
type CryptoStream struct {
	readBuffer        *btree.BTreeG[*Buffer]
	CurrentReadOffset uint64

	// Send side bookkeeping for retransmission.
	CurrentWriteOffset   uint64
	WriteBuffer          []byte
	RetransmissionBuffer map[uint64]*Buffer
}

// NewCryptoStream creates an empty crypto stream.
func NewCryptoStream() *CryptoStream {
	return &CryptoStream{
		readBuffer:           btree.NewG(4, bufferLessFunc),
		RetransmissionBuffer: make(map[uint64]*Buffer),
	}
}

// AppendToReadBuffer stores inbound crypto data for reassembly.
func (c *CryptoStream) AppendToReadBuffer(offset uint64, data []byte) {
	if offset+uint64(len(data)) <= c.CurrentReadOffset {
		return
	}
	buf := &Buffer{Offset: offset, Data: data}
	if existing, ok := c.readBuffer.Get(buf); ok {
		if len(data) <= len(existing.Data) {
			return
		}
	}
	c.readBuffer.ReplaceOrInsert(buf)
}

// ReadAvailable drains contiguous crypto data at the read offset.
// It returns nil when the stream has a gap at the front.
func (c *CryptoStream) ReadAvailable() []byte {
	var out []byte
	for {
		front, ok := c.readBuffer.Min()
		if !ok || front.Offset > c.CurrentReadOffset {
			break
		}
		c.readBuffer.DeleteMin()
		if end := front.Offset + uint64(len(front.Data)); end > c.CurrentReadOffset {
			out = append(out, front.Data[c.CurrentReadOffset-front.Offset:]...)
			c.CurrentReadOffset = end
		}
	}
	return out
}

// HasReadableData reports whether contiguous data waits at the front.
func (c *CryptoStream) HasReadableData() bool {
	front, ok := c.readBuffer.Min()
	return ok && front.Offset <= c.CurrentReadOffset
}

// OnCryptoFrameSent tracks sent crypto data for retransmission.
func (c *CryptoStream) OnCryptoFrameSent(offset uint64, data []byte) {
	c.RetransmissionBuffer[offset] = &Buffer{Offset: offset, Data: data}
	if end := offset + uint64(len(data)); end > c.CurrentWriteOffset {
		c.CurrentWriteOffset = end
	}
}

// ProcessCryptoStreamAck drains the in flight bookkeeping of an acked
// crypto frame.
func (c *CryptoStream) ProcessCryptoStreamAck(offset uint64, length int) {
	buf, ok := c.RetransmissionBuffer[offset]
	if !ok || len(buf.Data) != length {
		// A partial match means the frame was already implicitly acked.
		return
	}
	delete(c.RetransmissionBuffer, offset)
}

// ImplicitAckAll drops all in flight crypto data, used when a whole
// encryption level retires.
func (c *CryptoStream) ImplicitAckAll() {
	c.RetransmissionBuffer = make(map[uint64]*Buffer)
	c.WriteBuffer = nil
}

// CryptoState groups the crypto streams of the three encryption levels.
type CryptoState struct {
	InitialStream   *CryptoStream
	HandshakeStream *CryptoStream
	OneRttStream    *CryptoStream
}

// NewCryptoState creates the three crypto streams.
func NewCryptoState() *CryptoState {
	return &CryptoState{
		InitialStream:   NewCryptoStream(),
		HandshakeStream: NewCryptoStream(),
		OneRttStream:    NewCryptoStream(),
	}
}

// StreamFor returns the crypto stream of an encryption level.
// Early data shares the AppData stream.
func (c *CryptoState) StreamFor(level wire.EncryptionLevel) *CryptoStream {
	switch level {
	case wire.EncryptionLevelInitial:
		return c.InitialStream
	case wire.EncryptionLevelHandshake:
		return c.HandshakeStream
	default:
		return c.OneRttStream
	}
}
