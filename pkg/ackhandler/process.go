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

	"github.com/FFhix10/mvfst/pkg/congestion"
	"github.com/FFhix10/mvfst/pkg/log"
	"github.com/FFhix10/mvfst/pkg/wire"
)

// AckVisitor is invoked for every (outstanding packet, frame it
// carried) pair covered by an ack frame, in ascending packet number
// order. It releases retransmission bookkeeping frame by frame.
type AckVisitor func(packet *OutstandingPacket, frame wire.Frame, ack *wire.AckFrame)

// AckResult summarizes one processed ack frame.
type AckResult struct {
	AckedBytes        uint64
	AckedPackets      int
	LargestNewlyAcked wire.PacketNum
	HasNewlyAcked     bool
	RttSample         time.Duration
	HasRttSample      bool
}

// ProcessAckFrame walks the outstanding packet log over the acked
// ranges, invokes the visitor for released frames, feeds an RTT sample
// and the congestion controller, and removes the acked packets.
//
// Packet numbers above anything in the log are ignored: the peer can
// not legitimately ack what was never sent, but stacks disagreeing on
// packet reordering make strictness here unproductive.
func ProcessAckFrame(
	outstandings *OutstandingPackets,
	rtt *congestion.RTTStats,
	cc congestion.Controller,
	space wire.PacketNumberSpace,
	frame *wire.AckFrame,
	visitor AckVisitor,
	recvTime time.Time,
) AckResult {
	var res AckResult
	priorInFlight := outstandings.BytesInFlight()
	var largestNewlyAckedSentTime time.Time
	largestNewlyAckedEliciting := false

	outstandings.ForEach(func(p *OutstandingPacket) bool {
		if p.Space != space || p.DeclaredLost {
			return true
		}
		if !ackCovers(frame, p.PacketNum) {
			return true
		}
		for _, f := range p.Frames {
			visitor(p, f, frame)
		}
		res.AckedBytes += p.EncodedSize
		res.AckedPackets++
		if !res.HasNewlyAcked || p.PacketNum > res.LargestNewlyAcked {
			res.LargestNewlyAcked = p.PacketNum
			res.HasNewlyAcked = true
			largestNewlyAckedSentTime = p.SentTime
			largestNewlyAckedEliciting = p.IsAckEliciting
		}
		return true
	})
	if !res.HasNewlyAcked {
		return res
	}

	// An RTT sample is only valid when the largest newly acked packet
	// is the largest packet in the frame and it was ack eliciting.
	if largestNewlyAckedEliciting && res.LargestNewlyAcked == frame.LargestAcked() {
		res.RttSample = recvTime.Sub(largestNewlyAckedSentTime)
		res.HasRttSample = true
		rtt.UpdateRTT(res.RttSample, frame.AckDelay)
		if log.IsLevelEnabled(log.TraceLevel) {
			log.Tracef("%v rtt sample=%v ackDelay=%v srtt=%v minRtt=%v",
				space, res.RttSample, frame.AckDelay, rtt.SmoothedRTT(), rtt.MinRTT())
		}
	}

	if cc != nil {
		cc.OnAck(&congestion.AckEvent{
			AckTime:       recvTime,
			AckedBytes:    res.AckedBytes,
			LargestAcked:  uint64(res.LargestNewlyAcked),
			BytesInFlight: priorInFlight,
		})
	}

	outstandings.Remove(func(p *OutstandingPacket) bool {
		return p.Space == space && !p.DeclaredLost && ackCovers(frame, p.PacketNum)
	})
	return res
}

func ackCovers(frame *wire.AckFrame, pn wire.PacketNum) bool {
	for _, block := range frame.AckBlocks {
		if pn >= block.Start && pn <= block.End {
			return true
		}
	}
	return false
}
