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
	"testing"

	"github.com/FFhix10/mvfst/pkg/wire"
)

type fakeScheduler struct {
	armed bool
}

func (s *fakeScheduler) ScheduleAckTimeout(armed bool) {
	s.armed = armed
}

func testPolicy() PolicySettings {
	return PolicySettings{
		RxPacketsBeforeAckInitThreshold: 100,
		RxPacketsBeforeAckBeforeInit:    5,
		RxPacketsBeforeAckAfterInit:     10,
		NonRxPacketsPendingBeforeAck:    20,
	}
}

func TestAckEveryNthPacket(t *testing.T) {
	ps := testPolicy()
	events := &fakeScheduler{}
	st := NewAckState(wire.PacketNumberSpaceAppData)

	immediate := 0
	n := 23
	for i := 0; i < n; i++ {
		UpdateAckSendStateOnRecvPacket(ps, events, st, false, true, false)
		if st.NeedsToSendAckImmediately {
			immediate++
			st.NeedsToSendAckImmediately = false
		}
	}
	if immediate != n/int(ps.RxPacketsBeforeAckBeforeInit) {
		t.Errorf("immediate acks = %d after %d packets, want %d", immediate, n, n/int(ps.RxPacketsBeforeAckBeforeInit))
	}
}

func TestAckImmediatelyOnCrypto(t *testing.T) {
	ps := testPolicy()
	events := &fakeScheduler{armed: true}
	st := NewAckState(wire.PacketNumberSpaceInitial)
	UpdateAckSendStateOnRecvPacket(ps, events, st, false, true, true)
	if !st.NeedsToSendAckImmediately {
		t.Errorf("NeedsToSendAckImmediately = false after crypto data")
	}
	if events.armed {
		t.Errorf("ack timeout still armed after an immediate ack")
	}
	if st.NumRxPacketsRecvd != 0 || st.NumNonRxPacketsRecvd != 0 {
		t.Errorf("counters not reset after an immediate ack")
	}
}

func TestAckImmediatelyOnReorder(t *testing.T) {
	ps := testPolicy()
	events := &fakeScheduler{}
	st := NewAckState(wire.PacketNumberSpaceAppData)
	UpdateAckSendStateOnRecvPacket(ps, events, st, true, true, false)
	if !st.NeedsToSendAckImmediately {
		t.Errorf("NeedsToSendAckImmediately = false after a reordered packet")
	}

	st2 := NewAckState(wire.PacketNumberSpaceAppData)
	st2.IgnoreReorder = true
	UpdateAckSendStateOnRecvPacket(ps, events, st2, true, true, false)
	if st2.NeedsToSendAckImmediately {
		t.Errorf("NeedsToSendAckImmediately = true with IgnoreReorder set")
	}
}

func TestToleranceOverride(t *testing.T) {
	ps := testPolicy()
	events := &fakeScheduler{}
	st := NewAckState(wire.PacketNumberSpaceAppData)
	st.Tolerance = 2
	st.HasTolerance = true
	UpdateAckSendStateOnRecvPacket(ps, events, st, false, true, false)
	if st.NeedsToSendAckImmediately {
		t.Errorf("immediate ack after 1 packet with tolerance 2")
	}
	UpdateAckSendStateOnRecvPacket(ps, events, st, false, true, false)
	if !st.NeedsToSendAckImmediately {
		t.Errorf("no immediate ack after 2 packets with tolerance 2")
	}
}

func TestAfterInitThreshold(t *testing.T) {
	ps := testPolicy()
	events := &fakeScheduler{}
	st := NewAckState(wire.PacketNumberSpaceAppData)
	// Largest received beyond the init threshold switches to the
	// larger after-init threshold.
	st.LargestReceived = ps.RxPacketsBeforeAckInitThreshold + 1
	st.HasReceived = true
	for i := 0; i < int(ps.RxPacketsBeforeAckBeforeInit); i++ {
		UpdateAckSendStateOnRecvPacket(ps, events, st, false, true, false)
	}
	if st.NeedsToSendAckImmediately {
		t.Errorf("immediate ack at the before-init threshold while after-init applies")
	}
	for i := int(ps.RxPacketsBeforeAckBeforeInit); i < int(ps.RxPacketsBeforeAckAfterInit); i++ {
		UpdateAckSendStateOnRecvPacket(ps, events, st, false, true, false)
	}
	if !st.NeedsToSendAckImmediately {
		t.Errorf("no immediate ack at the after-init threshold")
	}
}

func TestNonRetransmittableThreshold(t *testing.T) {
	ps := testPolicy()
	events := &fakeScheduler{}
	st := NewAckState(wire.PacketNumberSpaceAppData)
	for i := 0; i < int(ps.NonRxPacketsPendingBeforeAck)-1; i++ {
		UpdateAckSendStateOnRecvPacket(ps, events, st, false, false, false)
		if st.NeedsToSendAckImmediately {
			t.Fatalf("immediate ack after %d non retransmittable packets", i+1)
		}
	}
	UpdateAckSendStateOnRecvPacket(ps, events, st, false, false, false)
	if !st.NeedsToSendAckImmediately {
		t.Errorf("no immediate ack at the non retransmittable threshold")
	}
}

func TestSentPacketWithAcksResets(t *testing.T) {
	events := &fakeScheduler{armed: true}
	st := NewAckState(wire.PacketNumberSpaceAppData)
	st.NeedsToSendAckImmediately = true
	st.NumRxPacketsRecvd = 3
	st.NumNonRxPacketsRecvd = 2
	UpdateAckSendStateOnSentPacketWithAcks(events, st, 42)
	if st.NeedsToSendAckImmediately {
		t.Errorf("NeedsToSendAckImmediately = true after sending an ack")
	}
	if st.NumRxPacketsRecvd != 0 || st.NumNonRxPacketsRecvd != 0 {
		t.Errorf("counters not reset after sending an ack")
	}
	if !st.HasLargestAckScheduled || st.LargestAckScheduled != 42 {
		t.Errorf("LargestAckScheduled = %d, %v, want 42, true", st.LargestAckScheduled, st.HasLargestAckScheduled)
	}
	if events.armed {
		t.Errorf("ack timeout still armed after sending an ack")
	}
}

func TestAckTimeout(t *testing.T) {
	events := &fakeScheduler{armed: true}
	st := NewAckState(wire.PacketNumberSpaceAppData)
	st.NumRxPacketsRecvd = 1
	UpdateAckStateOnAckTimeout(events, st)
	if !st.NeedsToSendAckImmediately {
		t.Errorf("NeedsToSendAckImmediately = false after the ack timeout")
	}
	if events.armed {
		t.Errorf("ack timeout still armed after it fired")
	}
}
