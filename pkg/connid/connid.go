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

// Package connid issues and validates QUIC connection IDs.
package connid

import (
	"bytes"
	crand "crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

const (
	// MaxConnectionIDSize is the largest connection ID allowed by the wire format.
	MaxConnectionIDSize = 20

	// MinServerConnectionIDSize is the smallest connection ID the server
	// accepts as the destination of a client initial packet.
	MinServerConnectionIDSize = 8

	// ServerConnectionIDSize is the size of connection IDs issued by this server.
	ServerConnectionIDSize = 8
)

// ConnectionID is an opaque connection identifier, up to 20 bytes.
type ConnectionID []byte

func (c ConnectionID) Len() int {
	return len(c)
}

func (c ConnectionID) Equal(other ConnectionID) bool {
	return bytes.Equal(c, other)
}

func (c ConnectionID) String() string {
	return hex.EncodeToString(c)
}

// ServerConnIDParams carries the routing information encoded into
// server chosen connection IDs.
type ServerConnIDParams struct {
	HostID    uint32
	ProcessID uint8
	WorkerID  uint8
	Version   uint8
}

// Algo encodes routing parameters into a new connection ID.
type Algo interface {
	EncodeConnectionID(params ServerConnIDParams) (ConnectionID, error)
}

// Rejector allows the owner of the connection ID space to refuse
// a candidate, for example because it is already routed elsewhere.
type Rejector interface {
	RejectConnectionID(id ConnectionID) bool
}

// Data is an issued server connection ID with its sequence number and
// the stateless reset token derived from it.
type Data struct {
	ConnID         ConnectionID
	SequenceNumber uint64
	Token          [ResetTokenLength]byte
}

// RandomAlgo encodes the routing parameters followed by random bytes.
// The first byte carries the encoding version in its top two bits.
type RandomAlgo struct{}

var _ Algo = &RandomAlgo{}

func (a *RandomAlgo) EncodeConnectionID(params ServerConnIDParams) (ConnectionID, error) {
	if params.Version > 3 {
		return nil, fmt.Errorf("connection ID version %d can't be encoded in 2 bits", params.Version)
	}
	id := make([]byte, ServerConnectionIDSize)
	if _, err := crand.Read(id); err != nil {
		return nil, fmt.Errorf("crand.Read() failed: %w", err)
	}
	id[0] = params.Version<<6 | id[0]&0x3f
	binary.BigEndian.PutUint32(id[1:5], params.HostID)
	id[5] = params.ProcessID
	id[6] = params.WorkerID
	return id, nil
}
