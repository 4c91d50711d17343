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

package wire

import "time"

const (
	// MaxNumCoalescedPackets caps how many QUIC packets are consumed
	// from one UDP datagram.
	MaxNumCoalescedPackets = 16

	// MinMaxUDPPayload is the smallest max_udp_payload_size a peer may advertise.
	MinMaxUDPPayload uint64 = 1200

	// DefaultMaxUDPPayload is the upper bound used when probing path MTU.
	DefaultMaxUDPPayload uint64 = 1452

	// DefaultUDPSendPacketLen is the conservative datagram size used
	// before any path MTU knowledge exists.
	DefaultUDPSendPacketLen uint64 = 1252

	// DefaultAckDelayExponent scales the encoded ack delay field.
	DefaultAckDelayExponent uint64 = 3

	// MaxAckDelayExponent is the largest acceptable ack_delay_exponent.
	MaxAckDelayExponent uint64 = 20

	// MaxAckDelay is the limit for the peer's max_ack_delay parameter.
	MaxAckDelay = 1 << 14 * time.Millisecond

	// DefaultIdleTimeout is the idle timeout advertised by this server.
	DefaultIdleTimeout = 60 * time.Second

	// MaxIdleTimeout clamps the peer's idle_timeout parameter.
	MaxIdleTimeout = 10 * time.Minute

	// DefaultActiveConnectionIDLimit is assumed when the peer does not
	// advertise active_connection_id_limit.
	DefaultActiveConnectionIDLimit uint64 = 2

	// MaxDatagramPacketOverhead is the per packet framing budget for
	// datagram frames. A max_datagram_frame_size no larger than this
	// leaves no room for payload.
	MaxDatagramPacketOverhead uint64 = 64

	// MinD6DRaiseTimeout is the smallest PMTU raise timeout a peer may request.
	MinD6DRaiseTimeout = 30 * time.Second

	// MinD6DProbeTimeout is the smallest PMTU probe timeout a peer may request.
	MinD6DProbeTimeout = 1 * time.Second

	// MaxMaxStreams is the largest stream count expressible in a
	// MAX_STREAMS frame.
	MaxMaxStreams uint64 = 1 << 60

	// DefaultMaxPriority is the lowest (numerically largest) stream
	// priority level.
	DefaultMaxPriority uint8 = 7
)
