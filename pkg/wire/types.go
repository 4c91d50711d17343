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

// Package wire holds the QUIC data model shared by the server state
// machine and its collaborators: packet numbers, encryption levels,
// frames, headers, transport parameters and error codes. Parsing and
// serialization of encrypted packets is behind the ReadCodec interface.
package wire

// PacketNum is a packet number inside one packet number space.
type PacketNum uint64

// MaxPacketNumber is the largest usable packet number.
// Reaching MaxPacketNumber - 1 on the send side forces a connection close.
const MaxPacketNumber PacketNum = 1<<62 - 1

// PacketNumberSpace separates packet number sequences by encryption stage.
type PacketNumberSpace uint8

const (
	PacketNumberSpaceInitial PacketNumberSpace = iota
	PacketNumberSpaceHandshake
	PacketNumberSpaceAppData
)

func (s PacketNumberSpace) String() string {
	switch s {
	case PacketNumberSpaceInitial:
		return "InitialSpace"
	case PacketNumberSpaceHandshake:
		return "HandshakeSpace"
	case PacketNumberSpaceAppData:
		return "AppDataSpace"
	default:
		return "UNKNOWN"
	}
}

// ProtectionType is the key category a packet was protected with.
type ProtectionType uint8

const (
	ProtectionInitial ProtectionType = iota
	ProtectionHandshake
	ProtectionZeroRtt
	ProtectionKeyPhaseZero
	ProtectionKeyPhaseOne
)

func (p ProtectionType) String() string {
	switch p {
	case ProtectionInitial:
		return "Initial"
	case ProtectionHandshake:
		return "Handshake"
	case ProtectionZeroRtt:
		return "ZeroRtt"
	case ProtectionKeyPhaseZero:
		return "KeyPhaseZero"
	case ProtectionKeyPhaseOne:
		return "KeyPhaseOne"
	default:
		return "UNKNOWN"
	}
}

// EncryptionLevel is the cryptographic context of a packet or of
// handshake data.
type EncryptionLevel uint8

const (
	EncryptionLevelInitial EncryptionLevel = iota
	EncryptionLevelHandshake
	EncryptionLevelEarlyData
	EncryptionLevelAppData
)

func (l EncryptionLevel) String() string {
	switch l {
	case EncryptionLevelInitial:
		return "Initial"
	case EncryptionLevelHandshake:
		return "Handshake"
	case EncryptionLevelEarlyData:
		return "EarlyData"
	case EncryptionLevelAppData:
		return "AppData"
	default:
		return "UNKNOWN"
	}
}

// EncryptionLevel maps the packet protection type to its cryptographic level.
func (p ProtectionType) EncryptionLevel() EncryptionLevel {
	switch p {
	case ProtectionInitial:
		return EncryptionLevelInitial
	case ProtectionHandshake:
		return EncryptionLevelHandshake
	case ProtectionZeroRtt:
		return EncryptionLevelEarlyData
	default:
		return EncryptionLevelAppData
	}
}

// PacketNumberSpace maps the packet protection type to its packet number space.
// Zero RTT and one RTT packets share the AppData space.
func (p ProtectionType) PacketNumberSpace() PacketNumberSpace {
	switch p {
	case ProtectionInitial:
		return PacketNumberSpaceInitial
	case ProtectionHandshake:
		return PacketNumberSpaceHandshake
	default:
		return PacketNumberSpaceAppData
	}
}

// Version is a QUIC wire format version.
type Version uint32

const (
	VersionNegotiation Version = 0x00000000
	QUICv1             Version = 0x00000001
	QUICDraft          Version = 0xff00001d
)

func (v Version) String() string {
	switch v {
	case VersionNegotiation:
		return "VersionNegotiation"
	case QUICv1:
		return "QUIC_V1"
	case QUICDraft:
		return "QUIC_DRAFT"
	default:
		return "UNKNOWN"
	}
}

// StreamID identifies one stream. The two low bits encode the
// initiator and the directionality.
type StreamID uint64

// StreamIncrement is the distance between consecutive stream IDs of
// the same type.
const StreamIncrement StreamID = 4

func (s StreamID) IsClientInitiated() bool {
	return s&0x1 == 0
}

func (s StreamID) IsServerInitiated() bool {
	return s&0x1 == 1
}

func (s StreamID) IsUnidirectional() bool {
	return s&0x2 == 2
}

func (s StreamID) IsBidirectional() bool {
	return !s.IsUnidirectional()
}
