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
	"testing"

	"github.com/FFhix10/mvfst/pkg/connid"
)

func longHeaderBytes(version Version, dst, src connid.ConnectionID) []byte {
	b := []byte{0xc0}
	b = append(b, byte(version>>24), byte(version>>16), byte(version>>8), byte(version))
	b = append(b, byte(len(dst)))
	b = append(b, dst...)
	b = append(b, byte(len(src)))
	b = append(b, src...)
	return b
}

func TestParseLongHeaderInvariant(t *testing.T) {
	dst := connid.ConnectionID{0xc0, 0xc1, 0xc2, 0xc3, 0xc4, 0xc5, 0xc6, 0xc7}
	src := connid.ConnectionID{0x8a, 0x8b, 0x8c, 0x8d, 0x8e, 0x8f, 0x90, 0x91}
	data := longHeaderBytes(QUICv1, dst, src)

	invariant, err := ParseLongHeaderInvariant(data)
	if err != nil {
		t.Fatalf("ParseLongHeaderInvariant() failed: %v", err)
	}
	if invariant.Version != QUICv1 {
		t.Errorf("version = %v, want %v", invariant.Version, QUICv1)
	}
	if !invariant.DstConnID.Equal(dst) {
		t.Errorf("destination connection ID = %v, want %v", invariant.DstConnID, dst)
	}
	if !invariant.SrcConnID.Equal(src) {
		t.Errorf("source connection ID = %v, want %v", invariant.SrcConnID, src)
	}
}

func TestParseLongHeaderInvariantErrors(t *testing.T) {
	if _, err := ParseLongHeaderInvariant([]byte{0xc0, 0, 0}); err == nil {
		t.Errorf("short buffer returned no error")
	}
	// Short header packets have the top bit unset.
	shortHeader := []byte{0x41, 0, 0, 0, 1, 0, 0, 0}
	if _, err := ParseLongHeaderInvariant(shortHeader); err == nil {
		t.Errorf("short header packet returned no error")
	}
	truncated := longHeaderBytes(QUICv1, connid.ConnectionID{1, 2, 3, 4, 5, 6, 7, 8}, nil)
	if _, err := ParseLongHeaderInvariant(truncated[:8]); err == nil {
		t.Errorf("truncated connection ID returned no error")
	}
}

func TestHeaderProtectionMapping(t *testing.T) {
	long := &LongHeader{Type: LongHeaderInitial, PacketNumb: 7}
	if long.PacketNumberSpace() != PacketNumberSpaceInitial {
		t.Errorf("initial long header space = %v", long.PacketNumberSpace())
	}
	zeroRtt := &LongHeader{Type: LongHeaderZeroRtt}
	if zeroRtt.PacketNumberSpace() != PacketNumberSpaceAppData {
		t.Errorf("zero RTT space = %v", zeroRtt.PacketNumberSpace())
	}
	short := &ShortHeader{PacketNumb: 1, KeyPhase: true}
	if short.ProtectionType() != ProtectionKeyPhaseOne {
		t.Errorf("short header key phase one protection = %v", short.ProtectionType())
	}
	if short.PacketNumberSpace() != PacketNumberSpaceAppData {
		t.Errorf("short header space = %v", short.PacketNumberSpace())
	}
}

func TestStreamIDProperties(t *testing.T) {
	testcases := []struct {
		id     StreamID
		client bool
		uni    bool
	}{
		{0, true, false},
		{1, false, false},
		{2, true, true},
		{3, false, true},
		{4, true, false},
		{7, false, true},
	}
	for _, tc := range testcases {
		if tc.id.IsClientInitiated() != tc.client {
			t.Errorf("stream %d IsClientInitiated() = %v, want %v", tc.id, tc.id.IsClientInitiated(), tc.client)
		}
		if tc.id.IsUnidirectional() != tc.uni {
			t.Errorf("stream %d IsUnidirectional() = %v, want %v", tc.id, tc.id.IsUnidirectional(), tc.uni)
		}
	}
}
