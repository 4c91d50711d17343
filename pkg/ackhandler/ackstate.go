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

package ackhandler

import (
	"time"

	"github.com/FFhix10/mvfst/pkg/wire"
)

// AckState is the receive side bookkeeping of one packet number space.
type AckState struct {
	Space wire.PacketNumberSpace

	// Next packet number to use on the send side of this space.
	NextPacketNum wire.PacketNum

	// Ordered set of received packet numbers.
	Acks *ReceivedPacketHistory

	// Largest received packet number and the time it arrived.
	LargestReceived    wire.PacketNum
	HasReceived        bool
	LargestReceivedAt  time.Time
	LargestAtCloseSent wire.PacketNum
	HasCloseSent       bool

	// Counters driving the ack frequency policy.
	NumRxPacketsRecvd    uint64
	NumNonRxPacketsRecvd uint64

	// Largest packet number covered by the last scheduled ack.
	LargestAckScheduled    wire.PacketNum
	HasLargestAckScheduled bool

	NeedsToSendAckImmediately bool

	// Tolerance overrides the configured ack thresholds when present.
	Tolerance    uint64
	HasTolerance bool

	// IgnoreReorder suppresses immediate acks for reordered packets.
	IgnoreReorder bool
}

// NewAckState creates the bookkeeping of one packet number space.
func NewAckState(space wire.PacketNumberSpace) *AckState {
	return &AckState{
		Space: space,
		Acks:  NewReceivedPacketHistory(),
	}
}

// UpdateLargestReceivedPacketNum records an arriving packet number and
// reports whether it arrived out of order.
func (s *AckState) UpdateLargestReceivedPacketNum(pn wire.PacketNum, recvTime time.Time) (outOfOrder bool) {
	outOfOrder = s.HasReceived && pn < s.LargestReceived
	if !s.HasReceived || pn > s.LargestReceived {
		s.LargestReceived = pn
		s.LargestReceivedAt = recvTime
		s.HasReceived = true
	}
	s.Acks.Insert(pn)
	return outOfOrder
}

// IncreaseNextPacketNum consumes one send side packet number.
// The return value is true when the space is one packet away from
// exhaustion and the transport must close.
func (s *AckState) IncreaseNextPacketNum() (closeTransport bool) {
	s.NextPacketNum++
	return s.NextPacketNum == wire.MaxPacketNumber-1
}

// AckStates groups the three packet number spaces.
type AckStates struct {
	Initial   *AckState
	Handshake *AckState
	AppData   *AckState
}

// NewAckStates creates bookkeeping for all three spaces.
func NewAckStates() *AckStates {
	return &AckStates{
		Initial:   NewAckState(wire.PacketNumberSpaceInitial),
		Handshake: NewAckState(wire.PacketNumberSpaceHandshake),
		AppData:   NewAckState(wire.PacketNumberSpaceAppData),
	}
}

// AckState returns the bookkeeping of one space.
func (a *AckStates) AckState(space wire.PacketNumberSpace) *AckState {
	switch space {
	case wire.PacketNumberSpaceInitial:
		return a.Initial
	case wire.PacketNumberSpaceHandshake:
		return a.Handshake
	default:
		return a.AppData
	}
}

var _ wire.LargestReceivedQuery = &AckStates{}

// LargestReceivedPacketNum implements the codec's packet number
// expansion query.
func (a *AckStates) LargestReceivedPacketNum(space wire.PacketNumberSpace) (wire.PacketNum, bool) {
	s := a.AckState(space)
	return s.LargestReceived, s.HasReceived
}

// HasReceivedPackets is true once any space received a packet.
func (a *AckStates) HasReceivedPackets() bool {
	return a.Initial.HasReceived || a.Handshake.HasReceived || a.AppData.HasReceived
}

// UpdateLargestReceivedAtLastCloseSent snapshots the largest received
// packet numbers when a close frame goes out.
func (a *AckStates) UpdateLargestReceivedAtLastCloseSent() {
	for _, s := range []*AckState{a.Initial, a.Handshake, a.AppData} {
		if s.HasReceived {
			s.LargestAtCloseSent = s.LargestReceived
			s.HasCloseSent = true
		}
	}
}

// HasNotReceivedNewPacketsSinceLastCloseSent reports whether every
// space is unchanged since the last close frame was sent. A fresh
// close is only re-emitted when this is false.
func (a *AckStates) HasNotReceivedNewPacketsSinceLastCloseSent() bool {
	for _, s := range []*AckState{a.Initial, a.Handshake, a.AppData} {
		if s.HasReceived && (!s.HasCloseSent || s.LargestAtCloseSent != s.LargestReceived) {
			return false
		}
	}
	return true
}
