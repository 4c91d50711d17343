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

package server

import (
	"github.com/FFhix10/mvfst/pkg/ackhandler"
	"github.com/FFhix10/mvfst/pkg/wire"
)

// NextPacketNum returns the packet number the next packet in a space
// will use.
func (c *Conn) NextPacketNum(space wire.PacketNumberSpace) wire.PacketNum {
	return c.AckStates.AckState(space).NextPacketNum
}

// IncreaseNextPacketNum consumes a packet number. Approaching the
// packet number limit latches the close-transport event.
func (c *Conn) IncreaseNextPacketNum(space wire.PacketNumberSpace) {
	if c.AckStates.AckState(space).IncreaseNextPacketNum() {
		c.PendingEvents.CloseTransport = true
	}
}

// OnPacketSent records a freshly written packet: outstanding log,
// congestion controller and, when the packet carried an ack frame, the
// ack scheduling reset. The driver calls this after serializing.
func (c *Conn) OnPacketSent(packet *ackhandler.OutstandingPacket, sentAck *wire.AckFrame) error {
	if err := c.Outstandings.Append(packet); err != nil {
		return err
	}
	if c.CongestionController != nil {
		c.CongestionController.OnPacketSent(packet.SentTime, uint64(packet.PacketNum), packet.EncodedSize)
	}
	if c.HasWritableBytesLimit {
		if packet.EncodedSize >= c.WritableBytesLimit {
			c.WritableBytesLimit = 0
		} else {
			c.WritableBytesLimit -= packet.EncodedSize
		}
	}
	if sentAck != nil {
		st := c.AckStates.AckState(packet.Space)
		ackhandler.UpdateAckSendStateOnSentPacketWithAcks(c.PendingEvents, st, sentAck.LargestAcked())
	}
	c.IncreaseNextPacketNum(packet.Space)
	return nil
}

// OnCloseSent snapshots the receive state when a connection close
// frame goes out, so a later packet can trigger a re-send.
func (c *Conn) OnCloseSent() {
	c.AckStates.UpdateLargestReceivedAtLastCloseSent()
}

// NeedsToSendCloseAgain reports whether new packets arrived since the
// last close frame was emitted.
func (c *Conn) NeedsToSendCloseAgain() bool {
	return !c.AckStates.HasNotReceivedNewPacketsSinceLastCloseSent()
}
