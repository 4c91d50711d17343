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

// Package cipher builds the AEAD and header protection primitives
// consumed by the packet codec, including the initial secrets derived
// from the client chosen destination connection ID.
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// AEADType enumerates the supported AEAD algorithms.
type AEADType uint8

const (
	AES128GCM AEADType = iota + 1
	AES256GCM
	ChaCha20Poly1305
)

func (t AEADType) String() string {
	switch t {
	case AES128GCM:
		return "AES128GCM"
	case AES256GCM:
		return "AES256GCM"
	case ChaCha20Poly1305:
		return "ChaCha20Poly1305"
	default:
		return "UNKNOWN"
	}
}

// AEADBlockCipher wraps one AEAD algorithm behind the packet codec's
// cipher interface.
type AEADBlockCipher struct {
	aead     gocipher.AEAD
	aeadType AEADType
	key      []byte
}

// NewAEADBlockCipher creates a cipher of the given type with the supplied key.
func NewAEADBlockCipher(t AEADType, key []byte) (*AEADBlockCipher, error) {
	switch t {
	case AES128GCM:
		if len(key) != 16 {
			return nil, fmt.Errorf("AES-128-GCM key length is %d bytes, want 16 bytes", len(key))
		}
		return newAESGCMBlockCipher(t, key)
	case AES256GCM:
		if len(key) != 32 {
			return nil, fmt.Errorf("AES-256-GCM key length is %d bytes, want 32 bytes", len(key))
		}
		return newAESGCMBlockCipher(t, key)
	case ChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("chacha20poly1305.New() failed: %w", err)
		}
		return &AEADBlockCipher{aead: aead, aeadType: t, key: key}, nil
	default:
		return nil, fmt.Errorf("unsupported AEAD type %v", t)
	}
}

func newAESGCMBlockCipher(t AEADType, key []byte) (*AEADBlockCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher() failed: %w", err)
	}
	aead, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM() failed: %w", err)
	}
	return &AEADBlockCipher{aead: aead, aeadType: t, key: key}, nil
}

// Seal encrypts and authenticates plaintext.
func (c *AEADBlockCipher) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	return c.aead.Seal(dst, nonce, plaintext, additionalData)
}

// Open decrypts and authenticates ciphertext.
func (c *AEADBlockCipher) Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	return c.aead.Open(dst, nonce, ciphertext, additionalData)
}

// Overhead returns the AEAD tag size.
func (c *AEADBlockCipher) Overhead() int {
	return c.aead.Overhead()
}

// Type returns the AEAD algorithm of this cipher.
func (c *AEADBlockCipher) Type() AEADType {
	return c.aeadType
}

// AESHeaderCipher computes header protection masks with AES-ECB,
// as used by AES based packet protection.
type AESHeaderCipher struct {
	block gocipher.Block
}

// NewAESHeaderCipher creates a header protection cipher from the hp key.
func NewAESHeaderCipher(key []byte) (*AESHeaderCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher() failed: %w", err)
	}
	return &AESHeaderCipher{block: block}, nil
}

// Mask produces 5 mask bytes from a 16 byte ciphertext sample.
func (c *AESHeaderCipher) Mask(sample []byte) ([]byte, error) {
	if len(sample) < c.block.BlockSize() {
		return nil, fmt.Errorf("sample length is %d bytes, want %d bytes", len(sample), c.block.BlockSize())
	}
	mask := make([]byte, c.block.BlockSize())
	c.block.Encrypt(mask, sample[:c.block.BlockSize()])
	return mask[:5], nil
}
