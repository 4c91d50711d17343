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

// Package server implements the server side QUIC connection core: the
// packet processor state machine, handshake state transitions,
// transport parameter negotiation, connection migration and the
// runtime tuning knob frames.
package server

import (
	"time"

	"github.com/FFhix10/mvfst/pkg/ackhandler"
	"github.com/FFhix10/mvfst/pkg/congestion"
	"github.com/FFhix10/mvfst/pkg/stream"
	"github.com/FFhix10/mvfst/pkg/wire"
)

// ZeroRttSourceTokenMatchingPolicy decides how a source address token
// miss affects 0-RTT.
type ZeroRttSourceTokenMatchingPolicy uint8

const (
	// AlwaysReject refuses 0-RTT regardless of the token.
	AlwaysReject ZeroRttSourceTokenMatchingPolicy = iota
	// RejectIfNoExactMatch refuses 0-RTT when the source address is
	// not in the token.
	RejectIfNoExactMatch
	// LimitIfNoExactMatch accepts 0-RTT but rate limits the
	// connection until the address is validated.
	LimitIfNoExactMatch
)

// D6DConfig gates datagram packetization layer PMTU discovery.
type D6DConfig struct {
	Enabled bool
}

// DatagramConfig gates the unreliable datagram extension.
type DatagramConfig struct {
	Enabled          bool
	MaxReadFrameSize uint64
}

// TransportSettings is the server's local configuration. A zero value
// is not usable; start from DefaultTransportSettings.
type TransportSettings struct {
	// Advertised flow control windows.
	AdvertisedInitialConnWindowSize             uint64
	AdvertisedInitialBidiLocalStreamWindowSize  uint64
	AdvertisedInitialBidiRemoteStreamWindowSize uint64
	AdvertisedInitialUniStreamWindowSize        uint64

	// Advertised stream count limits.
	AdvertisedInitialMaxStreamsBidi uint64
	AdvertisedInitialMaxStreamsUni  uint64

	IdleTimeout       time.Duration
	AckDelayExponent  uint64
	MaxRecvPacketSize uint64

	// MaxPacketsToBuffer caps undecryptable packets held while keys
	// are pending.
	MaxPacketsToBuffer int

	// Ack frequency thresholds.
	RxPacketsBeforeAckInitThreshold wire.PacketNum
	RxPacketsBeforeAckBeforeInit    uint64
	RxPacketsBeforeAckAfterInit     uint64
	NonRxPacketsPendingBeforeAck    uint64

	DisableMigration bool

	// LimitedCwndInMss bounds sending before address validation, in
	// packets.
	LimitedCwndInMss uint64

	// CanIgnorePathMTU lets the peer's max_udp_payload_size set the
	// send packet size directly.
	CanIgnorePathMTU bool

	DefaultCongestionController congestion.Type
	MaxCwndInMss                uint64

	StreamLimitWindowingFraction uint64

	StatelessResetTokenSecret []byte

	ZeroRttSourceTokenMatchingPolicy ZeroRttSourceTokenMatchingPolicy

	D6DConfig      D6DConfig
	DatagramConfig DatagramConfig
}

// DefaultTransportSettings returns the settings used by a fresh server.
func DefaultTransportSettings() *TransportSettings {
	return &TransportSettings{
		AdvertisedInitialConnWindowSize:             1 << 20,
		AdvertisedInitialBidiLocalStreamWindowSize:  1 << 16,
		AdvertisedInitialBidiRemoteStreamWindowSize: 1 << 16,
		AdvertisedInitialUniStreamWindowSize:        1 << 16,
		AdvertisedInitialMaxStreamsBidi:             100,
		AdvertisedInitialMaxStreamsUni:              100,
		IdleTimeout:                                 wire.DefaultIdleTimeout,
		AckDelayExponent:                            wire.DefaultAckDelayExponent,
		MaxRecvPacketSize:                           wire.DefaultMaxUDPPayload,
		MaxPacketsToBuffer:                          20,
		RxPacketsBeforeAckInitThreshold:             100,
		RxPacketsBeforeAckBeforeInit:                2,
		RxPacketsBeforeAckAfterInit:                 10,
		NonRxPacketsPendingBeforeAck:                20,
		LimitedCwndInMss:                            5,
		DefaultCongestionController:                 congestion.TypeCubic,
		MaxCwndInMss:                                2000,
		StreamLimitWindowingFraction:                2,
	}
}

// AckPolicy converts the settings into the ack frequency policy.
func (s *TransportSettings) AckPolicy() ackhandler.PolicySettings {
	return ackhandler.PolicySettings{
		RxPacketsBeforeAckInitThreshold: s.RxPacketsBeforeAckInitThreshold,
		RxPacketsBeforeAckBeforeInit:    s.RxPacketsBeforeAckBeforeInit,
		RxPacketsBeforeAckAfterInit:     s.RxPacketsBeforeAckAfterInit,
		NonRxPacketsPendingBeforeAck:    s.NonRxPacketsPendingBeforeAck,
	}
}

// StreamManagerConfig converts the settings into the stream manager
// configuration.
func (s *TransportSettings) StreamManagerConfig() stream.Config {
	return stream.Config{
		AdvertisedInitialMaxStreamsBidi: s.AdvertisedInitialMaxStreamsBidi,
		AdvertisedInitialMaxStreamsUni:  s.AdvertisedInitialMaxStreamsUni,
		StreamLimitWindowingFraction:    s.StreamLimitWindowingFraction,
		RecvWindowBidiRemote:            s.AdvertisedInitialBidiRemoteStreamWindowSize,
		RecvWindowBidiLocal:             s.AdvertisedInitialBidiLocalStreamWindowSize,
		RecvWindowUni:                   s.AdvertisedInitialUniStreamWindowSize,
	}
}

// MaxCwndBytes is the congestion window cap in bytes.
func (s *TransportSettings) MaxCwndBytes() uint64 {
	return s.MaxCwndInMss * wire.DefaultUDPSendPacketLen
}
