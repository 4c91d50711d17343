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

package connid

import (
	"encoding/binary"
	"testing"
)

func TestRandomAlgoEncodeConnectionID(t *testing.T) {
	algo := &RandomAlgo{}
	params := ServerConnIDParams{
		HostID:    0x01020304,
		ProcessID: 5,
		WorkerID:  6,
		Version:   1,
	}
	id, err := algo.EncodeConnectionID(params)
	if err != nil {
		t.Fatalf("EncodeConnectionID() failed: %v", err)
	}
	if id.Len() != ServerConnectionIDSize {
		t.Fatalf("connection ID length = %d, want %d", id.Len(), ServerConnectionIDSize)
	}
	if id[0]>>6 != params.Version {
		t.Errorf("encoded version = %d, want %d", id[0]>>6, params.Version)
	}
	if binary.BigEndian.Uint32(id[1:5]) != params.HostID {
		t.Errorf("encoded host ID = %x, want %x", id[1:5], params.HostID)
	}
	if id[5] != params.ProcessID || id[6] != params.WorkerID {
		t.Errorf("encoded process/worker = %d/%d, want %d/%d", id[5], id[6], params.ProcessID, params.WorkerID)
	}

	another, err := algo.EncodeConnectionID(params)
	if err != nil {
		t.Fatalf("EncodeConnectionID() failed: %v", err)
	}
	if id.Equal(another) {
		t.Errorf("two encoded connection IDs are identical, want random difference")
	}
}

func TestRandomAlgoRejectsBigVersion(t *testing.T) {
	algo := &RandomAlgo{}
	if _, err := algo.EncodeConnectionID(ServerConnIDParams{Version: 4}); err == nil {
		t.Errorf("EncodeConnectionID() with version 4 returned no error")
	}
}

func TestResetTokenGenerator(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	gen := NewResetTokenGenerator(secret, "192.0.2.1:443")
	id := ConnectionID{0xc0, 0xc1, 0xc2, 0xc3, 0xc4, 0xc5, 0xc6, 0xc7}

	t1 := gen.Token(id)
	t2 := gen.Token(id)
	if t1 != t2 {
		t.Errorf("tokens for the same connection ID differ")
	}

	otherAddr := NewResetTokenGenerator(secret, "192.0.2.2:443")
	if t1 == otherAddr.Token(id) {
		t.Errorf("tokens for different server addresses are identical")
	}

	otherSecret := NewResetTokenGenerator([]byte("another secret value another sec"), "192.0.2.1:443")
	if t1 == otherSecret.Token(id) {
		t.Errorf("tokens for different secrets are identical")
	}
}
