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
	"time"

	"github.com/FFhix10/mvfst/pkg/congestion"
	"github.com/FFhix10/mvfst/pkg/wire"
)

func TestOutstandingPacketsOrder(t *testing.T) {
	o := &OutstandingPackets{}
	now := time.Now()
	for pn := wire.PacketNum(1); pn <= 3; pn++ {
		if err := o.Append(&OutstandingPacket{
			PacketNum:      pn,
			Space:          wire.PacketNumberSpaceAppData,
			SentTime:       now,
			EncodedSize:    100,
			IsAckEliciting: true,
		}); err != nil {
			t.Fatalf("Append(%d) failed: %v", pn, err)
		}
	}
	if err := o.Append(&OutstandingPacket{PacketNum: 2, Space: wire.PacketNumberSpaceAppData}); err == nil {
		t.Errorf("Append() with a non increasing packet number returned no error")
	}
	// A different space has its own sequence.
	if err := o.Append(&OutstandingPacket{PacketNum: 1, Space: wire.PacketNumberSpaceHandshake, EncodedSize: 50}); err != nil {
		t.Errorf("Append() in another space failed: %v", err)
	}
	if o.BytesInFlight() != 350 {
		t.Errorf("BytesInFlight() = %d, want 350", o.BytesInFlight())
	}
}

func TestOutstandingPacketsSkipLost(t *testing.T) {
	o := &OutstandingPackets{}
	now := time.Now()
	for pn := wire.PacketNum(1); pn <= 3; pn++ {
		o.Append(&OutstandingPacket{
			PacketNum: pn,
			Space:     wire.PacketNumberSpaceAppData,
			SentTime:  now,
		})
	}
	o.Find(wire.PacketNumberSpaceAppData, 3).DeclaredLost = true

	if last := o.LastOutstanding(wire.PacketNumberSpaceAppData); last == nil || last.PacketNum != 2 {
		t.Errorf("LastOutstanding() = %v, want packet 2", last)
	}
	if last := o.LastOutstandingIncludingLost(wire.PacketNumberSpaceAppData); last == nil || last.PacketNum != 3 {
		t.Errorf("LastOutstandingIncludingLost() = %v, want packet 3", last)
	}
	if first := o.FirstOutstanding(wire.PacketNumberSpaceAppData); first == nil || first.PacketNum != 1 {
		t.Errorf("FirstOutstanding() = %v, want packet 1", first)
	}
	if first := o.FirstOutstanding(wire.PacketNumberSpaceInitial); first != nil {
		t.Errorf("FirstOutstanding() in an empty space = %v, want nil", first)
	}
}

func TestProcessAckFrame(t *testing.T) {
	o := &OutstandingPackets{}
	rtt := congestion.NewRTTStats()
	cc := congestion.NewCubic(2400, 1<<20)
	sentTime := time.Now()
	for pn := wire.PacketNum(1); pn <= 5; pn++ {
		o.Append(&OutstandingPacket{
			PacketNum:      pn,
			Space:          wire.PacketNumberSpaceAppData,
			Frames:         []wire.Frame{&wire.StreamFrame{StreamID: 0, Offset: uint64(pn) * 100}},
			SentTime:       sentTime,
			EncodedSize:    100,
			IsAckEliciting: true,
		})
		cc.OnPacketSent(sentTime, uint64(pn), 100)
	}

	recvTime := sentTime.Add(80 * time.Millisecond)
	frame := &wire.AckFrame{
		AckBlocks: []wire.AckBlock{{Start: 4, End: 5}, {Start: 1, End: 2}},
		AckDelay:  10 * time.Millisecond,
	}
	var visited []wire.PacketNum
	res := ProcessAckFrame(o, rtt, cc, wire.PacketNumberSpaceAppData, frame, func(p *OutstandingPacket, f wire.Frame, ack *wire.AckFrame) {
		if _, ok := f.(*wire.StreamFrame); !ok {
			t.Errorf("visitor got frame %T, want *wire.StreamFrame", f)
		}
		visited = append(visited, p.PacketNum)
	}, recvTime)

	if res.AckedPackets != 4 || res.AckedBytes != 400 {
		t.Errorf("AckedPackets/AckedBytes = %d/%d, want 4/400", res.AckedPackets, res.AckedBytes)
	}
	if !res.HasNewlyAcked || res.LargestNewlyAcked != 5 {
		t.Errorf("LargestNewlyAcked = %d, want 5", res.LargestNewlyAcked)
	}
	if !res.HasRttSample || res.RttSample != 80*time.Millisecond {
		t.Errorf("RttSample = %v, want 80ms", res.RttSample)
	}
	// The first sample is also the minimum, so the reported ack delay
	// is not subtracted for the smoothed value.
	if rtt.SmoothedRTT() != 80*time.Millisecond {
		t.Errorf("SmoothedRTT() = %v, want 80ms", rtt.SmoothedRTT())
	}
	want := []wire.PacketNum{1, 2, 4, 5}
	if len(visited) != len(want) {
		t.Fatalf("visited %v packets, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("visited[%d] = %d, want %d", i, visited[i], want[i])
		}
	}
	// Packet 3 is still outstanding, everything acked is gone.
	if o.Len() != 1 || o.FirstOutstanding(wire.PacketNumberSpaceAppData).PacketNum != 3 {
		t.Errorf("outstanding log was not pruned to packet 3")
	}
}

func TestProcessAckFrameIgnoresUnknownPackets(t *testing.T) {
	o := &OutstandingPackets{}
	rtt := congestion.NewRTTStats()
	frame := &wire.AckFrame{AckBlocks: []wire.AckBlock{{Start: 10, End: 20}}}
	res := ProcessAckFrame(o, rtt, nil, wire.PacketNumberSpaceAppData, frame, func(p *OutstandingPacket, f wire.Frame, ack *wire.AckFrame) {
		t.Errorf("visitor invoked for an empty log")
	}, time.Now())
	if res.HasNewlyAcked {
		t.Errorf("HasNewlyAcked = true with an empty log")
	}
	if rtt.HasMeasurement() {
		t.Errorf("an RTT sample was produced with no acked packets")
	}
}

func TestProcessAckFrameNoRttSampleForOldPacket(t *testing.T) {
	o := &OutstandingPackets{}
	rtt := congestion.NewRTTStats()
	sentTime := time.Now()
	o.Append(&OutstandingPacket{
		PacketNum:      1,
		Space:          wire.PacketNumberSpaceAppData,
		SentTime:       sentTime,
		EncodedSize:    100,
		IsAckEliciting: true,
	})
	// The frame's largest acked was never sent by us, so no sample.
	frame := &wire.AckFrame{AckBlocks: []wire.AckBlock{{Start: 1, End: 9}}}
	res := ProcessAckFrame(o, rtt, nil, wire.PacketNumberSpaceAppData, frame, func(p *OutstandingPacket, f wire.Frame, ack *wire.AckFrame) {}, sentTime.Add(time.Millisecond))
	if !res.HasNewlyAcked || res.LargestNewlyAcked != 1 {
		t.Errorf("LargestNewlyAcked = %d, want 1", res.LargestNewlyAcked)
	}
	if res.HasRttSample {
		t.Errorf("RTT sample produced although the frame's largest acked was not newly acked")
	}
}

func TestEarliestLossTimer(t *testing.T) {
	l := &LossState{}
	now := time.Now()
	if _, _, found := l.EarliestLossTimer(true); found {
		t.Errorf("EarliestLossTimer() found a deadline in an empty state")
	}
	l.SetLossTime(wire.PacketNumberSpaceHandshake, now.Add(20*time.Millisecond))
	l.SetLossTime(wire.PacketNumberSpaceAppData, now.Add(10*time.Millisecond))

	// AppData is ineligible until the 1-RTT write cipher exists.
	deadline, space, found := l.EarliestLossTimer(false)
	if !found || space != wire.PacketNumberSpaceHandshake {
		t.Errorf("EarliestLossTimer(false) = %v, %v, want handshake", deadline, space)
	}
	deadline, space, found = l.EarliestLossTimer(true)
	if !found || space != wire.PacketNumberSpaceAppData {
		t.Errorf("EarliestLossTimer(true) = %v, %v, want app data", deadline, space)
	}
	l.ClearLossTime(wire.PacketNumberSpaceAppData)
	_, space, found = l.EarliestLossTimer(true)
	if !found || space != wire.PacketNumberSpaceHandshake {
		t.Errorf("EarliestLossTimer() after clear = %v, want handshake", space)
	}
}
