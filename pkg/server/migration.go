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

import (
	crand "crypto/rand"
	"encoding/binary"
	"net/netip"
	"time"

	"github.com/FFhix10/mvfst/pkg/log"
	"github.com/FFhix10/mvfst/pkg/metrics"
	"github.com/FFhix10/mvfst/pkg/wire"
)

// PathRateLimiter bounds bytes sent on a path that is still being
// validated. The window refills once per RTT-ish interval chosen by
// the driver.
type PathRateLimiter struct {
	credit uint64
	window uint64
}

// NewPathRateLimiter creates a limiter with one packet of credit.
func NewPathRateLimiter(udpSendPacketLen uint64) *PathRateLimiter {
	return &PathRateLimiter{
		credit: udpSendPacketLen,
		window: udpSendPacketLen,
	}
}

// Consume burns credit for an outgoing probe. It reports whether the
// send is allowed.
func (l *PathRateLimiter) Consume(bytes uint64) bool {
	if bytes > l.credit {
		return false
	}
	l.credit -= bytes
	return true
}

// Refill restores the window, called by the driver on its cadence.
func (l *PathRateLimiter) Refill() {
	l.credit = l.window
}

// maybeNATRebinding decides whether an address change looks like a NAT
// rebinding rather than a genuine path change: the port moved but the
// IP stayed, or both addresses are IPv4 inside one /24.
func maybeNATRebinding(newPeerAddress, oldPeerAddress netip.AddrPort) bool {
	newIP := newPeerAddress.Addr()
	oldIP := oldPeerAddress.Addr()
	if newIP == oldIP {
		return true
	}
	if !newIP.Is4() || !oldIP.Is4() {
		return false
	}
	newBytes := newIP.As4()
	oldBytes := oldIP.As4()
	return newBytes[0] == oldBytes[0] && newBytes[1] == oldBytes[1] && newBytes[2] == oldBytes[2]
}

// moveCurrentCongestionAndRttState snapshots and detaches the live
// congestion controller and RTT estimate.
func moveCurrentCongestionAndRttState(c *Conn) *CongestionAndRttState {
	state := &CongestionAndRttState{
		PeerAddress:          c.PeerAddress,
		RecordTime:           c.clock(),
		CongestionController: c.CongestionController,
		RTT:                  c.RTTStats.Snapshot(),
	}
	c.CongestionController = nil
	return state
}

// resetCongestionAndRttState rebuilds a fresh controller and clears
// the RTT estimate.
func resetCongestionAndRttState(c *Conn) error {
	cc, err := congestionControllerFromSettings(c.Settings)
	if err != nil {
		return err
	}
	c.CongestionController = cc
	c.StreamManager.SetCongestionController(cc)
	c.RTTStats.Reset()
	return nil
}

// recoverOrResetCongestionAndRttState restores the saved snapshot when
// it matches the address and is fresh enough, otherwise starts over.
func recoverOrResetCongestionAndRttState(c *Conn, peerAddress netip.AddrPort) error {
	lastState := c.MigrationState.LastCongestionAndRtt
	if lastState != nil && lastState.PeerAddress == peerAddress &&
		c.clock().Sub(lastState.RecordTime) <= timeToRetainLastCongestionAndRttState {
		c.CongestionController = lastState.CongestionController
		c.StreamManager.SetCongestionController(lastState.CongestionController)
		c.RTTStats.Restore(lastState.RTT)
		c.MigrationState.LastCongestionAndRtt = nil
		return nil
	}
	return resetCongestionAndRttState(c)
}

// onConnectionMigration handles a non probing packet from a new peer
// address after handshake keys are established.
func onConnectionMigration(c *Conn, newPeerAddress netip.AddrPort, intentional bool) error {
	if c.MigrationState.NumMigrations >= maxNumMigrationsAllowed {
		c.dropPacket(0, wire.DropReasonPeerAddressChange)
		return wire.NewTransportError(wire.InvalidMigration, "too many migrations")
	}
	c.MigrationState.NumMigrations++
	metrics.ConnectionMigrations.Add(1)

	hasPendingPathChallenge := c.PendingEvents.PathChallenge != nil
	// Any unsent path challenge targets a stale address now.
	c.PendingEvents.PathChallenge = nil

	previouslyValidated := false
	for i, addr := range c.MigrationState.PreviousPeerAddresses {
		if addr == newPeerAddress {
			previouslyValidated = true
			c.MigrationState.PreviousPeerAddresses = append(
				c.MigrationState.PreviousPeerAddresses[:i],
				c.MigrationState.PreviousPeerAddresses[i+1:]...)
			break
		}
	}
	if !previouslyValidated {
		var pathData uint64
		var raw [8]byte
		if _, err := crand.Read(raw[:]); err != nil {
			return wire.NewTransportError(wire.InternalError, "path challenge entropy unavailable")
		}
		pathData = binary.BigEndian.Uint64(raw[:])
		c.PendingEvents.PathChallenge = &wire.PathChallengeFrame{Data: pathData}
		c.PathValidationLimiter = NewPathRateLimiter(c.UdpSendPacketLen)
		metrics.PathChallengesIssued.Add(1)
	}

	isNATRebinding := maybeNATRebinding(newPeerAddress, c.PeerAddress)

	if hasPendingPathChallenge || c.PendingPathValidation != nil {
		// A validation was already in flight; it is now void.
		c.PendingEvents.PathValidationTimeoutArmed = false
		c.PendingPathValidation = nil
		if !isNATRebinding {
			if err := recoverOrResetCongestionAndRttState(c, newPeerAddress); err != nil {
				return err
			}
		}
	} else {
		// The current peer address is validated; remember it and its
		// congestion state.
		c.MigrationState.PreviousPeerAddresses = append(c.MigrationState.PreviousPeerAddresses, c.PeerAddress)
		if !isNATRebinding {
			state := moveCurrentCongestionAndRttState(c)
			if err := recoverOrResetCongestionAndRttState(c, newPeerAddress); err != nil {
				return err
			}
			c.MigrationState.LastCongestionAndRtt = state
		}
	}

	if c.Observer != nil {
		c.Observer.AddConnectionMigrationUpdate(intentional)
	}
	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("%v migrated from %v to %v natRebinding=%v intentional=%v",
			c, c.PeerAddress, newPeerAddress, isNATRebinding, intentional)
	}
	c.PeerAddress = newPeerAddress
	return nil
}

// PathValidationElapsed is called by the driver when the path
// validation timer fires without a matching response.
func (c *Conn) PathValidationElapsed(now time.Time) {
	c.PendingPathValidation = nil
	c.PendingEvents.PathValidationTimeoutArmed = false
}
