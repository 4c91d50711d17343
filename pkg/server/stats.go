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
	"time"

	"github.com/FFhix10/mvfst/pkg/connid"
	"github.com/FFhix10/mvfst/pkg/metrics"
	"github.com/FFhix10/mvfst/pkg/wire"
)

// TransportStatsCallback receives per connection counters. A nil
// callback disables the per connection counting; the process wide
// metrics registry is always fed.
type TransportStatsCallback interface {
	OnPacketDropped(reason wire.DropReason)
	OnPacketProcessed()
	OnOutOfOrderPacketReceived()
	OnStatelessReset()
	OnNewQuicStream()
	OnQuicStreamClosed()
}

// Observer mirrors connection events into an attached logger.
// A nil observer disables it.
type Observer interface {
	AddPacket(packet *wire.RegularPacket, size int)
	AddPacketDrop(size int, reason string)
	AddPacketBuffered(protectionType wire.ProtectionType, size int)
	AddTransportStateUpdate(update string)
	AddMetricUpdate(rttSample, minRtt, srtt, ackDelay time.Duration)
	AddConnectionMigrationUpdate(intentional bool)
	SetScid(id connid.ConnectionID)
	SetDcid(id connid.ConnectionID)
}

func (c *Conn) statsPacketDropped(reason wire.DropReason) {
	metrics.PacketsDropped.Add(1)
	if c.StatsCallback != nil {
		c.StatsCallback.OnPacketDropped(reason)
	}
}

func (c *Conn) statsPacketProcessed() {
	metrics.PacketsProcessed.Add(1)
	if c.StatsCallback != nil {
		c.StatsCallback.OnPacketProcessed()
	}
}

func (c *Conn) statsOutOfOrder() {
	metrics.OutOfOrderPacketsReceived.Add(1)
	if c.StatsCallback != nil {
		c.StatsCallback.OnOutOfOrderPacketReceived()
	}
}

func (c *Conn) statsStatelessReset() {
	metrics.StatelessResets.Add(1)
	if c.StatsCallback != nil {
		c.StatsCallback.OnStatelessReset()
	}
}

func (c *Conn) observerPacketDrop(size int, reason wire.DropReason) {
	if c.Observer != nil {
		c.Observer.AddPacketDrop(size, reason.String())
	}
}

// dropPacket records one dropped packet in both sinks.
func (c *Conn) dropPacket(size int, reason wire.DropReason) {
	c.observerPacketDrop(size, reason)
	c.statsPacketDropped(reason)
}
