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

	"github.com/FFhix10/mvfst/pkg/stderror"
)

// MaxVarInt is the largest value expressible as a QUIC variable
// length integer.
const MaxVarInt = 1<<62 - 1

// AppendVarInt appends the QUIC variable length encoding of v to b.
// The shortest possible encoding is always used.
func AppendVarInt(b []byte, v uint64) []byte {
	switch {
	case v < 1<<6:
		return append(b, byte(v))
	case v < 1<<14:
		return append(b, 0x40|byte(v>>8), byte(v))
	case v < 1<<30:
		return append(b, 0x80|byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	case v <= MaxVarInt:
		return append(b, 0xc0|byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
			byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	default:
		panic(fmt.Sprintf("%d overflows a variable length integer", v))
	}
}

// ReadVarInt decodes one variable length integer from the beginning
// of b and returns the value and the number of bytes consumed.
func ReadVarInt(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, stderror.ErrNoEnoughData
	}
	length := 1 << (b[0] >> 6)
	if len(b) < length {
		return 0, 0, stderror.ErrNoEnoughData
	}
	v := uint64(b[0] & 0x3f)
	for i := 1; i < length; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v, length, nil
}
