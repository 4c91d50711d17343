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

import (
	"encoding/binary"
	"fmt"

	"github.com/FFhix10/mvfst/pkg/connid"
	"github.com/FFhix10/mvfst/pkg/stderror"
)

// LongHeaderType is the packet type carried in a long header.
type LongHeaderType uint8

const (
	LongHeaderInitial LongHeaderType = iota
	LongHeaderZeroRtt
	LongHeaderHandshake
	LongHeaderRetry
)

// Header is the decoded header of a regular packet.
type Header interface {
	PacketNum() PacketNum
	PacketNumberSpace() PacketNumberSpace
	ProtectionType() ProtectionType
}

// LongHeader covers initial, 0-RTT, handshake and retry packets.
type LongHeader struct {
	Type       LongHeaderType
	SrcConnID  connid.ConnectionID
	DstConnID  connid.ConnectionID
	Version    Version
	PacketNumb PacketNum
}

var _ Header = &LongHeader{}

func (h *LongHeader) PacketNum() PacketNum {
	return h.PacketNumb
}

func (h *LongHeader) ProtectionType() ProtectionType {
	switch h.Type {
	case LongHeaderInitial, LongHeaderRetry:
		return ProtectionInitial
	case LongHeaderZeroRtt:
		return ProtectionZeroRtt
	default:
		return ProtectionHandshake
	}
}

func (h *LongHeader) PacketNumberSpace() PacketNumberSpace {
	return h.ProtectionType().PacketNumberSpace()
}

// ShortHeader covers 1-RTT packets.
type ShortHeader struct {
	ConnID     connid.ConnectionID
	PacketNumb PacketNum
	KeyPhase   bool
}

var _ Header = &ShortHeader{}

func (h *ShortHeader) PacketNum() PacketNum {
	return h.PacketNumb
}

func (h *ShortHeader) ProtectionType() ProtectionType {
	if h.KeyPhase {
		return ProtectionKeyPhaseOne
	}
	return ProtectionKeyPhaseZero
}

func (h *ShortHeader) PacketNumberSpace() PacketNumberSpace {
	return PacketNumberSpaceAppData
}

// RegularPacket is a fully decrypted and parsed packet.
type RegularPacket struct {
	Header Header
	Frames []Frame
}

// LongHeaderInvariant is the version independent prefix of a long
// header packet, enough to bootstrap a new connection.
type LongHeaderInvariant struct {
	Version   Version
	DstConnID connid.ConnectionID
	SrcConnID connid.ConnectionID
}

// ParseLongHeaderInvariant decodes the invariant long header fields
// from the beginning of a datagram. It does not consume the packet.
func ParseLongHeaderInvariant(data []byte) (*LongHeaderInvariant, error) {
	if len(data) < 7 {
		return nil, fmt.Errorf("%w: %d bytes is too short for a long header", stderror.ErrNoEnoughData, len(data))
	}
	initialByte := data[0]
	if initialByte&0x80 == 0 {
		return nil, fmt.Errorf("%w: not a long header packet", stderror.ErrInvalidArgument)
	}
	version := Version(binary.BigEndian.Uint32(data[1:5]))
	rest := data[5:]

	dstLen := int(rest[0])
	rest = rest[1:]
	if dstLen > connid.MaxConnectionIDSize || len(rest) < dstLen+1 {
		return nil, fmt.Errorf("%w: bad destination connection ID length %d", stderror.ErrInvalidArgument, dstLen)
	}
	dst := make(connid.ConnectionID, dstLen)
	copy(dst, rest[:dstLen])
	rest = rest[dstLen:]

	srcLen := int(rest[0])
	rest = rest[1:]
	if srcLen > connid.MaxConnectionIDSize || len(rest) < srcLen {
		return nil, fmt.Errorf("%w: bad source connection ID length %d", stderror.ErrInvalidArgument, srcLen)
	}
	src := make(connid.ConnectionID, srcLen)
	copy(src, rest[:srcLen])

	return &LongHeaderInvariant{
		Version:   version,
		DstConnID: dst,
		SrcConnID: src,
	}, nil
}
