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

import "github.com/FFhix10/mvfst/pkg/connid"

// Aead seals and opens packet payloads.
type Aead interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	Overhead() int
}

// HeaderCipher produces the mask applied to the first byte and the
// packet number bytes of a packet header.
type HeaderCipher interface {
	Mask(sample []byte) ([]byte, error)
}

// CodecParameters tunes packet parsing.
type CodecParameters struct {
	AckDelayExponent uint64
	Version          Version
}

// CodecResultType tags the outcome of parsing one packet.
type CodecResultType uint8

const (
	CodecResultRegular CodecResultType = iota
	CodecResultCipherUnavailable
	CodecResultRetry
	CodecResultStatelessReset
	CodecResultNothing
)

// CipherUnavailable carries an undecryptable packet so it can be
// buffered until the matching read key arrives.
type CipherUnavailable struct {
	Packet         []byte
	ProtectionType ProtectionType
}

// CodecResult is the outcome of parsing one packet out of a datagram.
type CodecResult struct {
	typ               CodecResultType
	regular           *RegularPacket
	cipherUnavailable *CipherUnavailable
}

func NewRegularResult(packet *RegularPacket) CodecResult {
	return CodecResult{typ: CodecResultRegular, regular: packet}
}

func NewCipherUnavailableResult(cu *CipherUnavailable) CodecResult {
	return CodecResult{typ: CodecResultCipherUnavailable, cipherUnavailable: cu}
}

func NewRetryResult() CodecResult {
	return CodecResult{typ: CodecResultRetry}
}

func NewStatelessResetResult() CodecResult {
	return CodecResult{typ: CodecResultStatelessReset}
}

func NewNothingResult() CodecResult {
	return CodecResult{typ: CodecResultNothing}
}

func (r CodecResult) Type() CodecResultType {
	return r.typ
}

// RegularPacket returns the parsed packet, or nil if the result is not regular.
func (r CodecResult) RegularPacket() *RegularPacket {
	return r.regular
}

// CipherUnavailable returns the buffered packet data, or nil.
func (r CodecResult) CipherUnavailable() *CipherUnavailable {
	return r.cipherUnavailable
}

// LargestReceivedQuery exposes the largest received packet number per
// space, which the codec needs to expand truncated packet numbers.
type LargestReceivedQuery interface {
	LargestReceivedPacketNum(space PacketNumberSpace) (PacketNum, bool)
}

// ReadCodec parses encrypted packets out of UDP datagrams. The
// concrete implementation owns header protection removal, AEAD
// decryption and frame decoding. The state machine installs read
// ciphers as the handshake produces them.
type ReadCodec interface {
	// ParsePacket consumes exactly one packet from data and returns
	// the parse outcome together with the number of bytes consumed.
	ParsePacket(data []byte, largestReceived LargestReceivedQuery) (CodecResult, int)

	SetInitialReadCipher(aead Aead)
	SetInitialHeaderCipher(hc HeaderCipher)
	SetHandshakeReadCipher(aead Aead)
	SetHandshakeHeaderCipher(hc HeaderCipher)
	SetZeroRttReadCipher(aead Aead)
	SetZeroRttHeaderCipher(hc HeaderCipher)
	SetOneRttReadCipher(aead Aead)
	SetOneRttHeaderCipher(hc HeaderCipher)

	SetClientConnectionID(id connid.ConnectionID)
	SetServerConnectionID(id connid.ConnectionID)
	ClientConnectionID() connid.ConnectionID

	SetCodecParameters(params CodecParameters)
}
