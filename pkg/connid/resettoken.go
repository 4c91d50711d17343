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
	"crypto/hmac"
	"crypto/sha256"
)

// ResetTokenLength is the size of a stateless reset token.
const ResetTokenLength = 16

// ResetTokenGenerator derives stateless reset tokens for issued
// connection IDs. The secret is shared by the whole process; the
// server address binds the token to one listener.
type ResetTokenGenerator struct {
	secret     []byte
	serverAddr string
}

// NewResetTokenGenerator creates a generator from the process wide
// secret and the fully qualified server address.
func NewResetTokenGenerator(secret []byte, serverAddr string) *ResetTokenGenerator {
	return &ResetTokenGenerator{
		secret:     secret,
		serverAddr: serverAddr,
	}
}

// Token computes the stateless reset token of a connection ID.
func (g *ResetTokenGenerator) Token(id ConnectionID) [ResetTokenLength]byte {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(g.serverAddr))
	mac.Write(id)
	sum := mac.Sum(nil)
	var token [ResetTokenLength]byte
	copy(token[:], sum[:ResetTokenLength])
	return token
}
