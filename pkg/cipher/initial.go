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

package cipher

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Initial packet secrets are derived from the client chosen
// destination connection ID with HKDF-SHA256 and a version specific salt.
var (
	saltV1 = []byte{
		0x38, 0x76, 0x2c, 0xf7, 0xf5, 0x59, 0x34, 0xb3, 0x4d, 0x17,
		0x9a, 0xe6, 0xa4, 0xc8, 0x0c, 0xad, 0xcc, 0xbb, 0x7f, 0x0a,
	}
	saltDraft = []byte{
		0xaf, 0xbf, 0xec, 0x28, 0x99, 0x93, 0xd2, 0x4c, 0x9e, 0x97,
		0x86, 0xf1, 0x9c, 0x61, 0x11, 0xe0, 0x43, 0x90, 0xa8, 0x99,
	}
)

const (
	initialKeyLength = 16
	initialIVLength  = 12
)

// InitialSecrets holds the key material of one direction of initial
// packet protection.
type InitialSecrets struct {
	Key []byte
	IV  []byte
	HP  []byte
}

func initialSalt(version uint32) []byte {
	// Version 1 uses its own salt, the draft versions share the draft-29 salt.
	if version == 0x00000001 {
		return saltV1
	}
	return saltDraft
}

// hkdfExpandLabel implements the TLS 1.3 HKDF-Expand-Label construction.
func hkdfExpandLabel(secret []byte, label string, length int) ([]byte, error) {
	fullLabel := "tls13 " + label
	info := make([]byte, 0, 4+len(fullLabel))
	info = append(info, byte(length>>8), byte(length))
	info = append(info, byte(len(fullLabel)))
	info = append(info, fullLabel...)
	info = append(info, 0)
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, secret, info), out); err != nil {
		return nil, fmt.Errorf("hkdf.Expand() failed: %w", err)
	}
	return out, nil
}

// DeriveInitialSecrets computes the client or server initial key
// material for the given destination connection ID and version.
func DeriveInitialSecrets(dstConnID []byte, version uint32, client bool) (*InitialSecrets, error) {
	initial := hkdf.Extract(sha256.New, dstConnID, initialSalt(version))
	label := "server in"
	if client {
		label = "client in"
	}
	secret, err := hkdfExpandLabel(initial, label, sha256.Size)
	if err != nil {
		return nil, err
	}
	key, err := hkdfExpandLabel(secret, "quic key", initialKeyLength)
	if err != nil {
		return nil, err
	}
	iv, err := hkdfExpandLabel(secret, "quic iv", initialIVLength)
	if err != nil {
		return nil, err
	}
	hp, err := hkdfExpandLabel(secret, "quic hp", initialKeyLength)
	if err != nil {
		return nil, err
	}
	return &InitialSecrets{Key: key, IV: iv, HP: hp}, nil
}

// Factory derives initial ciphers for the packet codec.
type Factory struct{}

// ClientInitialCipher returns the AEAD protecting packets sent by the client.
func (f *Factory) ClientInitialCipher(dstConnID []byte, version uint32) (*AEADBlockCipher, error) {
	secrets, err := DeriveInitialSecrets(dstConnID, version, true)
	if err != nil {
		return nil, err
	}
	return NewAEADBlockCipher(AES128GCM, secrets.Key)
}

// ServerInitialCipher returns the AEAD protecting packets sent by the server.
func (f *Factory) ServerInitialCipher(dstConnID []byte, version uint32) (*AEADBlockCipher, error) {
	secrets, err := DeriveInitialSecrets(dstConnID, version, false)
	if err != nil {
		return nil, err
	}
	return NewAEADBlockCipher(AES128GCM, secrets.Key)
}

// ClientInitialHeaderCipher returns the header protection cipher of
// client initial packets.
func (f *Factory) ClientInitialHeaderCipher(dstConnID []byte, version uint32) (*AESHeaderCipher, error) {
	secrets, err := DeriveInitialSecrets(dstConnID, version, true)
	if err != nil {
		return nil, err
	}
	return NewAESHeaderCipher(secrets.HP)
}

// ServerInitialHeaderCipher returns the header protection cipher of
// server initial packets.
func (f *Factory) ServerInitialHeaderCipher(dstConnID []byte, version uint32) (*AESHeaderCipher, error) {
	secrets, err := DeriveInitialSecrets(dstConnID, version, false)
	if err != nil {
		return nil, err
	}
	return NewAESHeaderCipher(secrets.HP)
}
