// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package common

import "github.com/holiman/uint256"

// U256BytesBE returns the canonical big-endian 32-byte serialization of x.
func U256BytesBE(x *uint256.Int) []byte {
	b := x.Bytes32()
	return b[:]
}

// U256FromBytesBE parses a big-endian byte slice (up to 32 bytes) into a U256.
func U256FromBytesBE(b []byte) *uint256.Int {
	return new(uint256.Int).SetBytes(b)
}
