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

// LossState keeps the per space loss detection deadlines.
type LossState struct {
	lossTimes    [3]time.Time
	hasLossTimes [3]bool
}

// SetLossTime arms the loss deadline of one space.
func (l *LossState) SetLossTime(space wire.PacketNumberSpace, t time.Time) {
	l.lossTimes[space] = t
	l.hasLossTimes[space] = true
}

// ClearLossTime disarms the loss deadline of one space.
func (l *LossState) ClearLossTime(space wire.PacketNumberSpace) {
	l.lossTimes[space] = time.Time{}
	l.hasLossTimes[space] = false
}

// LossTime returns the loss deadline of one space.
func (l *LossState) LossTime(space wire.PacketNumberSpace) (time.Time, bool) {
	return l.lossTimes[space], l.hasLossTimes[space]
}

// EarliestLossTimer returns the earliest armed loss deadline.
// The AppData space is excluded until the 1-RTT write cipher exists,
// because loss there cannot be repaired before then.
func (l *LossState) EarliestLossTimer(considerAppData bool) (time.Time, wire.PacketNumberSpace, bool) {
	var earliest time.Time
	space := wire.PacketNumberSpaceInitial
	found := false
	for _, s := range []wire.PacketNumberSpace{
		wire.PacketNumberSpaceInitial,
		wire.PacketNumberSpaceHandshake,
		wire.PacketNumberSpaceAppData,
	} {
		if !l.hasLossTimes[s] {
			continue
		}
		if s == wire.PacketNumberSpaceAppData && !considerAppData {
			continue
		}
		if !found || l.lossTimes[s].Before(earliest) {
			earliest = l.lossTimes[s]
			space = s
			found = true
		}
	}
	return earliest, space, found
}
