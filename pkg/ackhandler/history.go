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

// Package ackhandler keeps the per packet number space receive and
// send bookkeeping: which packet numbers arrived, which sent packets
// are still outstanding, when to acknowledge, and when to declare loss.
package ackhandler

import (
	"github.com/FFhix10/mvfst/pkg/wire"
	"github.com/google/btree"
)

// ReceivedPacketHistory is the ordered set of received packet numbers
// in one packet number space. It yields the ack blocks advertised to
// the peer.
type ReceivedPacketHistory struct {
	tr *btree.BTreeG[wire.PacketNum]
}

func packetNumLessFunc(a, b wire.PacketNum) bool {
	return a < b
}

// NewReceivedPacketHistory creates an empty history.
func NewReceivedPacketHistory() *ReceivedPacketHistory {
	return &ReceivedPacketHistory{
		tr: btree.NewG(4, packetNumLessFunc),
	}
}

// Insert records a received packet number. Duplicates are absorbed.
func (h *ReceivedPacketHistory) Insert(pn wire.PacketNum) {
	h.tr.ReplaceOrInsert(pn)
}

// Contains reports whether the packet number was received.
func (h *ReceivedPacketHistory) Contains(pn wire.PacketNum) bool {
	return h.tr.Has(pn)
}

// Len returns the number of distinct received packet numbers.
func (h *ReceivedPacketHistory) Len() int {
	return h.tr.Len()
}

// DeleteBelow drops all packet numbers smaller than or equal to pn.
// Called when the peer has confirmed receipt of an ack covering them.
func (h *ReceivedPacketHistory) DeleteBelow(pn wire.PacketNum) {
	for {
		min, ok := h.tr.Min()
		if !ok || min > pn {
			return
		}
		h.tr.DeleteMin()
	}
}

// AckBlocks returns the contiguous ranges of received packet numbers,
// ordered by descending packet number as they appear in an ACK frame.
func (h *ReceivedPacketHistory) AckBlocks() []wire.AckBlock {
	var ascending []wire.AckBlock
	h.tr.Ascend(func(pn wire.PacketNum) bool {
		n := len(ascending)
		if n > 0 && ascending[n-1].End+1 == pn {
			ascending[n-1].End = pn
		} else {
			ascending = append(ascending, wire.AckBlock{Start: pn, End: pn})
		}
		return true
	})
	blocks := make([]wire.AckBlock, 0, len(ascending))
	for i := len(ascending) - 1; i >= 0; i-- {
		blocks = append(blocks, ascending[i])
	}
	return blocks
}
