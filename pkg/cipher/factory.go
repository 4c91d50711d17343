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
	"github.com/FFhix10/mvfst/pkg/connid"
	"github.com/FFhix10/mvfst/pkg/wire"
)

// CodecFactory adapts the initial secret derivation to the cipher
// interfaces consumed by the packet codec and the state machine.
type CodecFactory struct {
	factory Factory
}

// NewCodecFactory creates the default crypto factory.
func NewCodecFactory() *CodecFactory {
	return &CodecFactory{}
}

func (f *CodecFactory) ClientInitialCipher(dstConnID connid.ConnectionID, version wire.Version) (wire.Aead, error) {
	return f.factory.ClientInitialCipher(dstConnID, uint32(version))
}

func (f *CodecFactory) ServerInitialCipher(dstConnID connid.ConnectionID, version wire.Version) (wire.Aead, error) {
	return f.factory.ServerInitialCipher(dstConnID, uint32(version))
}

func (f *CodecFactory) ClientInitialHeaderCipher(dstConnID connid.ConnectionID, version wire.Version) (wire.HeaderCipher, error) {
	return f.factory.ClientInitialHeaderCipher(dstConnID, uint32(version))
}

func (f *CodecFactory) ServerInitialHeaderCipher(dstConnID connid.ConnectionID, version wire.Version) (wire.HeaderCipher, error) {
	return f.factory.ServerInitialHeaderCipher(dstConnID, uint32(version))
}
