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
	"bytes"
	crand "crypto/rand"
	"encoding/hex"
	"testing"
)

func TestAEADBlockCipherRoundTrip(t *testing.T) {
	testcases := []struct {
		aeadType AEADType
		keyLen   int
	}{
		{AES128GCM, 16},
		{AES256GCM, 32},
		{ChaCha20Poly1305, 32},
	}
	for _, tc := range testcases {
		key := make([]byte, tc.keyLen)
		if _, err := crand.Read(key); err != nil {
			t.Fatalf("crand.Read() failed: %v", err)
		}
		c, err := NewAEADBlockCipher(tc.aeadType, key)
		if err != nil {
			t.Fatalf("NewAEADBlockCipher(%v) failed: %v", tc.aeadType, err)
		}
		nonce := make([]byte, 12)
		plaintext := []byte("a long header packet payload")
		ad := []byte("header bytes")
		ciphertext := c.Seal(nil, nonce, plaintext, ad)
		if len(ciphertext) != len(plaintext)+c.Overhead() {
			t.Errorf("%v ciphertext length = %d, want %d", tc.aeadType, len(ciphertext), len(plaintext)+c.Overhead())
		}
		decrypted, err := c.Open(nil, nonce, ciphertext, ad)
		if err != nil {
			t.Fatalf("%v Open() failed: %v", tc.aeadType, err)
		}
		if !bytes.Equal(decrypted, plaintext) {
			t.Errorf("%v decrypted payload does not match plaintext", tc.aeadType)
		}
		if _, err := c.Open(nil, nonce, ciphertext, []byte("wrong header")); err == nil {
			t.Errorf("%v Open() with wrong additional data returned no error", tc.aeadType)
		}
	}
}

func TestNewAEADBlockCipherBadKey(t *testing.T) {
	if _, err := NewAEADBlockCipher(AES128GCM, make([]byte, 8)); err == nil {
		t.Errorf("NewAEADBlockCipher(AES128GCM, 8 byte key) returned no error")
	}
	if _, err := NewAEADBlockCipher(AEADType(0), make([]byte, 16)); err == nil {
		t.Errorf("NewAEADBlockCipher(unknown type) returned no error")
	}
}

// Key material from RFC 9001 appendix A, client initial with
// destination connection ID 0x8394c8f03e515708.
func TestDeriveInitialSecretsVector(t *testing.T) {
	dcid, _ := hex.DecodeString("8394c8f03e515708")
	secrets, err := DeriveInitialSecrets(dcid, 0x00000001, true)
	if err != nil {
		t.Fatalf("DeriveInitialSecrets() failed: %v", err)
	}
	wantKey, _ := hex.DecodeString("1f369613dd76d5467730efcbe3b1a22d")
	wantIV, _ := hex.DecodeString("fa044b2f42a3fd3b46fb255c")
	wantHP, _ := hex.DecodeString("9f50449e04a0e810283a1e9933adedd2")
	if !bytes.Equal(secrets.Key, wantKey) {
		t.Errorf("client initial key = %x, want %x", secrets.Key, wantKey)
	}
	if !bytes.Equal(secrets.IV, wantIV) {
		t.Errorf("client initial iv = %x, want %x", secrets.IV, wantIV)
	}
	if !bytes.Equal(secrets.HP, wantHP) {
		t.Errorf("client initial hp = %x, want %x", secrets.HP, wantHP)
	}
}

func TestFactoryInitialCiphers(t *testing.T) {
	factory := &Factory{}
	dcid := []byte{0xc0, 0xc1, 0xc2, 0xc3, 0xc4, 0xc5, 0xc6, 0xc7}

	clientAEAD, err := factory.ClientInitialCipher(dcid, 0x00000001)
	if err != nil {
		t.Fatalf("ClientInitialCipher() failed: %v", err)
	}
	serverAEAD, err := factory.ServerInitialCipher(dcid, 0x00000001)
	if err != nil {
		t.Fatalf("ServerInitialCipher() failed: %v", err)
	}
	if clientAEAD.Type() != AES128GCM || serverAEAD.Type() != AES128GCM {
		t.Errorf("initial cipher types = %v/%v, want AES128GCM", clientAEAD.Type(), serverAEAD.Type())
	}

	// The two directions derive different keys, so a payload sealed by
	// the client cipher cannot be opened by the server cipher.
	nonce := make([]byte, 12)
	sealed := clientAEAD.Seal(nil, nonce, []byte("client hello"), nil)
	if _, err := serverAEAD.Open(nil, nonce, sealed, nil); err == nil {
		t.Errorf("server initial cipher opened a client protected payload")
	}
	opened, err := clientAEAD.Open(nil, nonce, sealed, nil)
	if err != nil || !bytes.Equal(opened, []byte("client hello")) {
		t.Errorf("client initial cipher failed to round trip: %v", err)
	}

	hc, err := factory.ClientInitialHeaderCipher(dcid, 0x00000001)
	if err != nil {
		t.Fatalf("ClientInitialHeaderCipher() failed: %v", err)
	}
	mask, err := hc.Mask(make([]byte, 16))
	if err != nil {
		t.Fatalf("Mask() failed: %v", err)
	}
	if len(mask) != 5 {
		t.Errorf("header mask length = %d, want 5", len(mask))
	}
	if _, err := hc.Mask(make([]byte, 8)); err == nil {
		t.Errorf("Mask() with short sample returned no error")
	}
}
