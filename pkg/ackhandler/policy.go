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
	"github.com/FFhix10/mvfst/pkg/log"
	"github.com/FFhix10/mvfst/pkg/wire"
)

// PolicySettings holds the ack frequency thresholds.
type PolicySettings struct {
	// RxPacketsBeforeAckInitThreshold decides which threshold applies:
	// once the largest received packet number passes it, the after-init
	// threshold is used.
	RxPacketsBeforeAckInitThreshold wire.PacketNum
	RxPacketsBeforeAckBeforeInit    uint64
	RxPacketsBeforeAckAfterInit     uint64

	// NonRxPacketsPendingBeforeAck applies when only non
	// retransmittable packets are pending.
	NonRxPacketsPendingBeforeAck uint64
}

// AckTimeoutScheduler arms and disarms the delayed ack timer.
// The connection's pending events record implements it.
type AckTimeoutScheduler interface {
	ScheduleAckTimeout(armed bool)
}

// UpdateAckSendStateOnRecvPacket decides whether to ack now or arm the
// ack timer after one packet was processed.
func UpdateAckSendStateOnRecvPacket(ps PolicySettings, events AckTimeoutScheduler, st *AckState, outOfOrder, retransmittable, crypto bool) {
	thresh := ps.NonRxPacketsPendingBeforeAck
	if retransmittable || st.NumRxPacketsRecvd > 0 {
		if st.HasTolerance {
			thresh = st.Tolerance
		} else if st.HasReceived && st.LargestReceived > ps.RxPacketsBeforeAckInitThreshold {
			thresh = ps.RxPacketsBeforeAckAfterInit
		} else {
			thresh = ps.RxPacketsBeforeAckBeforeInit
		}
	}
	if st.IgnoreReorder {
		outOfOrder = false
	}
	if retransmittable {
		st.NumRxPacketsRecvd++
		if crypto || outOfOrder || st.NumRxPacketsRecvd+st.NumNonRxPacketsRecvd >= thresh {
			if log.IsLevelEnabled(log.TraceLevel) {
				log.Tracef("%v ack immediately crypto=%v outOfOrder=%v rx=%d nonRx=%d",
					st.Space, crypto, outOfOrder, st.NumRxPacketsRecvd, st.NumNonRxPacketsRecvd)
			}
			events.ScheduleAckTimeout(false)
			st.NeedsToSendAckImmediately = true
		} else if !st.NeedsToSendAckImmediately {
			events.ScheduleAckTimeout(true)
		}
	} else {
		st.NumNonRxPacketsRecvd++
		if st.NumNonRxPacketsRecvd+st.NumRxPacketsRecvd >= thresh {
			if log.IsLevelEnabled(log.TraceLevel) {
				log.Tracef("%v ack immediately nonRx=%d rx=%d",
					st.Space, st.NumNonRxPacketsRecvd, st.NumRxPacketsRecvd)
			}
			events.ScheduleAckTimeout(false)
			st.NeedsToSendAckImmediately = true
		}
	}
	if st.NeedsToSendAckImmediately {
		st.NumRxPacketsRecvd = 0
		st.NumNonRxPacketsRecvd = 0
	}
}

// UpdateAckStateOnAckTimeout fires when the delayed ack timer expires.
// Only the AppData space uses the timer.
func UpdateAckStateOnAckTimeout(events AckTimeoutScheduler, appData *AckState) {
	appData.NeedsToSendAckImmediately = true
	appData.NumRxPacketsRecvd = 0
	appData.NumNonRxPacketsRecvd = 0
	events.ScheduleAckTimeout(false)
}

// UpdateAckSendStateOnSentPacketWithAcks resets the ack policy after a
// packet carrying an ack frame was transmitted.
func UpdateAckSendStateOnSentPacketWithAcks(events AckTimeoutScheduler, st *AckState, largestAckScheduled wire.PacketNum) {
	events.ScheduleAckTimeout(false)
	st.NeedsToSendAckImmediately = false
	// The sent ack most likely covered the largest received packet, so
	// both pending counters restart from zero.
	st.NumRxPacketsRecvd = 0
	st.NumNonRxPacketsRecvd = 0
	st.LargestAckScheduled = largestAckScheduled
	st.HasLargestAckScheduled = true
}
