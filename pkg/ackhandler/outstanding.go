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
	"fmt"
	"time"

	"github.com/FFhix10/mvfst/pkg/wire"
)

// OutstandingPacket is one sent, not yet acknowledged packet.
type OutstandingPacket struct {
	PacketNum      wire.PacketNum
	Space          wire.PacketNumberSpace
	Frames         []wire.Frame
	SentTime       time.Time
	EncodedSize    uint64
	IsAckEliciting bool
	DeclaredLost   bool
	IsD6DProbe     bool
}

// OutstandingPackets is the ordered log of sent packets across all
// packet number spaces. Within one space packet numbers are strictly
// increasing.
type OutstandingPackets struct {
	packets []*OutstandingPacket
}

// Append adds a freshly sent packet to the back of the log.
func (o *OutstandingPackets) Append(p *OutstandingPacket) error {
	if last := o.lastInSpace(p.Space, true); last != nil && last.PacketNum >= p.PacketNum {
		return fmt.Errorf("packet number %d is not increasing in %v", p.PacketNum, p.Space)
	}
	o.packets = append(o.packets, p)
	return nil
}

// Len returns the number of logged packets, lost ones included.
func (o *OutstandingPackets) Len() int {
	return len(o.packets)
}

// ForEach visits every logged packet in send order.
// The visitor returns false to stop the walk.
func (o *OutstandingPackets) ForEach(visit func(p *OutstandingPacket) bool) {
	for _, p := range o.packets {
		if !visit(p) {
			return
		}
	}
}

// FirstOutstanding returns the oldest packet of a space that has not
// been declared lost.
func (o *OutstandingPackets) FirstOutstanding(space wire.PacketNumberSpace) *OutstandingPacket {
	for _, p := range o.packets {
		if p.Space == space && !p.DeclaredLost {
			return p
		}
	}
	return nil
}

// LastOutstanding returns the newest packet of a space that has not
// been declared lost.
func (o *OutstandingPackets) LastOutstanding(space wire.PacketNumberSpace) *OutstandingPacket {
	return o.lastInSpace(space, false)
}

// LastOutstandingIncludingLost returns the newest packet of a space
// regardless of loss state.
func (o *OutstandingPackets) LastOutstandingIncludingLost(space wire.PacketNumberSpace) *OutstandingPacket {
	return o.lastInSpace(space, true)
}

func (o *OutstandingPackets) lastInSpace(space wire.PacketNumberSpace, includeLost bool) *OutstandingPacket {
	for i := len(o.packets) - 1; i >= 0; i-- {
		p := o.packets[i]
		if p.Space != space {
			continue
		}
		if !includeLost && p.DeclaredLost {
			continue
		}
		return p
	}
	return nil
}

// Find returns the logged packet with the given number in a space.
func (o *OutstandingPackets) Find(space wire.PacketNumberSpace, pn wire.PacketNum) *OutstandingPacket {
	for _, p := range o.packets {
		if p.Space == space && p.PacketNum == pn {
			return p
		}
	}
	return nil
}

// Remove drops packets matching the predicate from the log.
func (o *OutstandingPackets) Remove(match func(p *OutstandingPacket) bool) {
	kept := o.packets[:0]
	for _, p := range o.packets {
		if !match(p) {
			kept = append(kept, p)
		}
	}
	o.packets = kept
}

// BytesInFlight sums the encoded sizes of packets that are neither
// acknowledged nor declared lost.
func (o *OutstandingPackets) BytesInFlight() uint64 {
	var sum uint64
	for _, p := range o.packets {
		if !p.DeclaredLost {
			sum += p.EncodedSize
		}
	}
	return sum
}
