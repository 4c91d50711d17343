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
	mrand "math/rand"
	"testing"
	"time"

	"github.com/FFhix10/mvfst/pkg/wire"
)

func TestUpdateLargestReceivedPacketNum(t *testing.T) {
	s := NewAckState(wire.PacketNumberSpaceAppData)
	now := time.Now()

	if outOfOrder := s.UpdateLargestReceivedPacketNum(5, now); outOfOrder {
		t.Errorf("first packet reported out of order")
	}
	if outOfOrder := s.UpdateLargestReceivedPacketNum(7, now); outOfOrder {
		t.Errorf("ascending packet reported out of order")
	}
	if outOfOrder := s.UpdateLargestReceivedPacketNum(6, now); !outOfOrder {
		t.Errorf("packet below the largest not reported out of order")
	}
	if s.LargestReceived != 7 {
		t.Errorf("LargestReceived = %d, want 7", s.LargestReceived)
	}
	if !s.Acks.Contains(5) || !s.Acks.Contains(6) || !s.Acks.Contains(7) {
		t.Errorf("received history is missing packets")
	}
}

func TestLargestReceivedIsMaximum(t *testing.T) {
	s := NewAckState(wire.PacketNumberSpaceInitial)
	now := time.Now()
	var max wire.PacketNum
	for i := 0; i < 200; i++ {
		pn := wire.PacketNum(mrand.Intn(10000))
		if pn > max {
			max = pn
		}
		s.UpdateLargestReceivedPacketNum(pn, now)
	}
	if s.LargestReceived != max {
		t.Errorf("LargestReceived = %d, want %d", s.LargestReceived, max)
	}
}

func TestAckBlocks(t *testing.T) {
	h := NewReceivedPacketHistory()
	for _, pn := range []wire.PacketNum{1, 2, 3, 7, 8, 12, 2} {
		h.Insert(pn)
	}
	blocks := h.AckBlocks()
	want := []wire.AckBlock{{Start: 12, End: 12}, {Start: 7, End: 8}, {Start: 1, End: 3}}
	if len(blocks) != len(want) {
		t.Fatalf("AckBlocks() returned %d blocks, want %d", len(blocks), len(want))
	}
	for i := range want {
		if blocks[i] != want[i] {
			t.Errorf("block %d = %v, want %v", i, blocks[i], want[i])
		}
	}

	h.DeleteBelow(8)
	blocks = h.AckBlocks()
	if len(blocks) != 1 || blocks[0] != (wire.AckBlock{Start: 12, End: 12}) {
		t.Errorf("AckBlocks() after DeleteBelow(8) = %v, want [{12 12}]", blocks)
	}
}

func TestIncreaseNextPacketNum(t *testing.T) {
	s := NewAckState(wire.PacketNumberSpaceAppData)
	if closeTransport := s.IncreaseNextPacketNum(); closeTransport {
		t.Errorf("IncreaseNextPacketNum() = true for a small packet number")
	}
	s.NextPacketNum = wire.MaxPacketNumber - 2
	if closeTransport := s.IncreaseNextPacketNum(); !closeTransport {
		t.Errorf("IncreaseNextPacketNum() = false at MaxPacketNumber - 1")
	}
}

func TestCloseSentBookkeeping(t *testing.T) {
	a := NewAckStates()
	now := time.Now()
	a.AppData.UpdateLargestReceivedPacketNum(3, now)
	if a.HasNotReceivedNewPacketsSinceLastCloseSent() {
		t.Errorf("HasNotReceivedNewPacketsSinceLastCloseSent() = true before any close was sent")
	}
	a.UpdateLargestReceivedAtLastCloseSent()
	if !a.HasNotReceivedNewPacketsSinceLastCloseSent() {
		t.Errorf("HasNotReceivedNewPacketsSinceLastCloseSent() = false right after snapshot")
	}
	a.AppData.UpdateLargestReceivedPacketNum(4, now)
	if a.HasNotReceivedNewPacketsSinceLastCloseSent() {
		t.Errorf("HasNotReceivedNewPacketsSinceLastCloseSent() = true after a new packet")
	}
	if !a.HasReceivedPackets() {
		t.Errorf("HasReceivedPackets() = false")
	}
}

func TestLargestReceivedQuery(t *testing.T) {
	a := NewAckStates()
	if _, ok := a.LargestReceivedPacketNum(wire.PacketNumberSpaceHandshake); ok {
		t.Errorf("LargestReceivedPacketNum() reported a packet before any was received")
	}
	a.Handshake.UpdateLargestReceivedPacketNum(9, time.Now())
	pn, ok := a.LargestReceivedPacketNum(wire.PacketNumberSpaceHandshake)
	if !ok || pn != 9 {
		t.Errorf("LargestReceivedPacketNum() = %d, %v, want 9, true", pn, ok)
	}
}
