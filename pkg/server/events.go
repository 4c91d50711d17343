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

import "github.com/FFhix10/mvfst/pkg/wire"

// PendingEvents is the work record the driver consults after each
// turn. The core never suspends: everything that needs a timer, a
// write, or a callback is expressed here.
type PendingEvents struct {
	// AckTimeoutArmed asks the driver to (re)arm the delayed ack timer.
	AckTimeoutArmed bool

	// PathValidationTimeoutArmed asks the driver to arm the path
	// validation timer.
	PathValidationTimeoutArmed bool

	// PathChallenge is the challenge to transmit on the unvalidated path.
	PathChallenge *wire.PathChallengeFrame

	// PathResponses echo back peer path challenges.
	PathResponses []*wire.PathResponseFrame

	// CancelPingTimeout is set when an outstanding ping was acked.
	CancelPingTimeout bool

	// CloseTransport is set when the packet number space is nearly
	// exhausted and the connection must close.
	CloseTransport bool

	// SendConnWindowUpdate asks for an immediate MAX_DATA frame.
	SendConnWindowUpdate bool

	// Frames is the queue of simple frames awaiting transmission.
	Frames []wire.SimpleFrame
}

// ScheduleAckTimeout implements the ack policy's timer hook.
func (p *PendingEvents) ScheduleAckTimeout(armed bool) {
	p.AckTimeoutArmed = armed
}

// QueueSimpleFrame appends a simple frame for transmission.
func (p *PendingEvents) QueueSimpleFrame(f wire.SimpleFrame) {
	p.Frames = append(p.Frames, f)
}
