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
	"fmt"
	"time"

	"github.com/FFhix10/mvfst/pkg/connid"
	"github.com/FFhix10/mvfst/pkg/stderror"
)

// ParameterID identifies one transport parameter.
type ParameterID uint64

const (
	ParamOriginalDestinationConnectionID ParameterID = 0x00
	ParamMaxIdleTimeout                  ParameterID = 0x01
	ParamStatelessResetToken             ParameterID = 0x02
	ParamMaxUDPPayloadSize               ParameterID = 0x03
	ParamInitialMaxData                  ParameterID = 0x04
	ParamInitialMaxStreamDataBidiLocal   ParameterID = 0x05
	ParamInitialMaxStreamDataBidiRemote  ParameterID = 0x06
	ParamInitialMaxStreamDataUni         ParameterID = 0x07
	ParamInitialMaxStreamsBidi           ParameterID = 0x08
	ParamInitialMaxStreamsUni            ParameterID = 0x09
	ParamAckDelayExponent                ParameterID = 0x0a
	ParamMaxAckDelay                     ParameterID = 0x0b
	ParamDisableActiveMigration          ParameterID = 0x0c
	ParamPreferredAddress                ParameterID = 0x0d
	ParamActiveConnectionIDLimit         ParameterID = 0x0e
	ParamInitialSourceConnectionID       ParameterID = 0x0f
	ParamRetrySourceConnectionID         ParameterID = 0x10
	ParamMaxDatagramFrameSize            ParameterID = 0x20
	ParamMinAckDelay                     ParameterID = 0xde1a

	// Extension parameters driving datagram packetization layer PMTU
	// discovery.
	ParamD6DBasePMTU     ParameterID = 0x170
	ParamD6DRaiseTimeout ParameterID = 0x171
	ParamD6DProbeTimeout ParameterID = 0x172
)

// TransportParameter is one encoded transport parameter.
type TransportParameter struct {
	ID    ParameterID
	Value []byte
}

// IntegerParameter encodes an integer valued transport parameter.
func IntegerParameter(id ParameterID, v uint64) TransportParameter {
	return TransportParameter{
		ID:    id,
		Value: AppendVarInt(nil, v),
	}
}

// ConnIDParameter encodes a connection ID valued transport parameter.
func ConnIDParameter(id ParameterID, cid connid.ConnectionID) TransportParameter {
	value := make([]byte, len(cid))
	copy(value, cid)
	return TransportParameter{ID: id, Value: value}
}

// EncodeParameters serializes a parameter list. Each parameter is
// `varint id, varint length, value`.
func EncodeParameters(params []TransportParameter) []byte {
	var b []byte
	for _, p := range params {
		b = AppendVarInt(b, uint64(p.ID))
		b = AppendVarInt(b, uint64(len(p.Value)))
		b = append(b, p.Value...)
	}
	return b
}

// DecodeParameters parses a serialized parameter list.
func DecodeParameters(b []byte) ([]TransportParameter, error) {
	var params []TransportParameter
	for len(b) > 0 {
		id, n, err := ReadVarInt(b)
		if err != nil {
			return nil, fmt.Errorf("read parameter id failed: %w", err)
		}
		b = b[n:]
		length, n, err := ReadVarInt(b)
		if err != nil {
			return nil, fmt.Errorf("read parameter length failed: %w", err)
		}
		b = b[n:]
		if uint64(len(b)) < length {
			return nil, fmt.Errorf("parameter %#x value is truncated: %w", id, stderror.ErrNoEnoughData)
		}
		value := make([]byte, length)
		copy(value, b[:length])
		b = b[length:]
		params = append(params, TransportParameter{ID: ParameterID(id), Value: value})
	}
	return params, nil
}

// ClientTransportParameters is the parameter list received from the peer.
type ClientTransportParameters struct {
	Parameters []TransportParameter
}

// Integer looks up an integer valued parameter.
// The second return value reports presence.
func (p *ClientTransportParameters) Integer(id ParameterID) (uint64, bool, error) {
	for _, param := range p.Parameters {
		if param.ID != id {
			continue
		}
		v, n, err := ReadVarInt(param.Value)
		if err != nil || n != len(param.Value) {
			return 0, true, fmt.Errorf("parameter %#x is not a well formed integer", uint64(id))
		}
		return v, true, nil
	}
	return 0, false, nil
}

// ConnID looks up a connection ID valued parameter.
func (p *ClientTransportParameters) ConnID(id ParameterID) (connid.ConnectionID, bool) {
	for _, param := range p.Parameters {
		if param.ID == id {
			cid := make(connid.ConnectionID, len(param.Value))
			copy(cid, param.Value)
			return cid, true
		}
	}
	return nil, false
}

// Present reports whether the parameter was sent at all.
func (p *ClientTransportParameters) Present(id ParameterID) bool {
	for _, param := range p.Parameters {
		if param.ID == id {
			return true
		}
	}
	return false
}

// ServerTransportParameters is the full advertisement the server hands
// to the handshake layer when a connection is accepted.
type ServerTransportParameters struct {
	Version                         Version
	InitialMaxData                  uint64
	InitialMaxStreamDataBidiLocal   uint64
	InitialMaxStreamDataBidiRemote  uint64
	InitialMaxStreamDataUni         uint64
	InitialMaxStreamsBidi           uint64
	InitialMaxStreamsUni            uint64
	IdleTimeout                     time.Duration
	AckDelayExponent                uint64
	MaxRecvPacketSize               uint64
	StatelessResetToken             [connid.ResetTokenLength]byte
	InitialSourceConnectionID       connid.ConnectionID
	OriginalDestinationConnectionID connid.ConnectionID
	CustomParameters                []TransportParameter
}

// Encode produces the parameter list in advertisement order.
func (p *ServerTransportParameters) Encode() []TransportParameter {
	params := []TransportParameter{
		IntegerParameter(ParamInitialMaxData, p.InitialMaxData),
		IntegerParameter(ParamInitialMaxStreamDataBidiLocal, p.InitialMaxStreamDataBidiLocal),
		IntegerParameter(ParamInitialMaxStreamDataBidiRemote, p.InitialMaxStreamDataBidiRemote),
		IntegerParameter(ParamInitialMaxStreamDataUni, p.InitialMaxStreamDataUni),
		IntegerParameter(ParamInitialMaxStreamsBidi, p.InitialMaxStreamsBidi),
		IntegerParameter(ParamInitialMaxStreamsUni, p.InitialMaxStreamsUni),
		IntegerParameter(ParamMaxIdleTimeout, uint64(p.IdleTimeout/time.Millisecond)),
		IntegerParameter(ParamAckDelayExponent, p.AckDelayExponent),
		IntegerParameter(ParamMaxUDPPayloadSize, p.MaxRecvPacketSize),
		{ID: ParamStatelessResetToken, Value: p.StatelessResetToken[:]},
		ConnIDParameter(ParamInitialSourceConnectionID, p.InitialSourceConnectionID),
		ConnIDParameter(ParamOriginalDestinationConnectionID, p.OriginalDestinationConnectionID),
	}
	return append(params, p.CustomParameters...)
}
