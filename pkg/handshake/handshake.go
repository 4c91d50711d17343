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

// Package handshake defines the interface between the connection state
// machine and the TLS engine that drives the QUIC handshake. The
// engine itself lives outside this module; the state machine only
// feeds it crypto stream data and pulls the ciphers it derives.
package handshake

import (
	"github.com/FFhix10/mvfst/pkg/connid"
	"github.com/FFhix10/mvfst/pkg/wire"
)

// Layer is the server side handshake engine.
//
// Cipher getters return the cipher exactly once, on the first call
// after the cipher was derived; later calls return nil. The state
// machine installs each cipher into the codec or connection as it
// appears.
type Layer interface {
	// Accept hands the engine the transport parameters to embed in
	// its encrypted extensions.
	Accept(params *wire.ServerTransportParameters)

	// DoHandshake feeds inbound crypto stream data at one level.
	DoHandshake(data []byte, level wire.EncryptionLevel) error

	ZeroRttReadCipher() wire.Aead
	ZeroRttReadHeaderCipher() wire.HeaderCipher
	HandshakeReadCipher() wire.Aead
	HandshakeReadHeaderCipher() wire.HeaderCipher
	OneRttReadCipher() wire.Aead
	OneRttReadHeaderCipher() wire.HeaderCipher
	OneRttWriteCipher() wire.Aead
	OneRttWriteHeaderCipher() wire.HeaderCipher

	// ClientTransportParams returns the peer's transport parameters
	// once the client hello has been processed.
	ClientTransportParams() *wire.ClientTransportParameters

	// Done reports whether the handshake has completed.
	Done() bool
}

// CryptoFactory derives the initial ciphers both directions use before
// any handshake output exists.
type CryptoFactory interface {
	ClientInitialCipher(dstConnID connid.ConnectionID, version wire.Version) (wire.Aead, error)
	ServerInitialCipher(dstConnID connid.ConnectionID, version wire.Version) (wire.Aead, error)
	ClientInitialHeaderCipher(dstConnID connid.ConnectionID, version wire.Version) (wire.HeaderCipher, error)
	ServerInitialHeaderCipher(dstConnID connid.ConnectionID, version wire.Version) (wire.HeaderCipher, error)
}
