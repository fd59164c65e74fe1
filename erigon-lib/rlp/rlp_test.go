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

package rlp

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestEncodeUint64RoundTrip checks EncodeUint64/AsUint64 against randomly drawn values from
// the whole uint64 range, not just a handful of hand-picked edge cases -- the canonical-integer rule (no leading zero byte,
// zero encodes as the empty string) is exactly the kind of boundary-heavy invariant rapid
// is good at finding counterexamples for.
func TestEncodeUint64RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Uint64().Draw(t, "v")
		item, n, err := Decode(EncodeUint64(v))
		require.NoError(t, err)
		require.Equal(t, n, len(EncodeUint64(v)))
		got, err := item.AsUint64()
		require.NoError(t, err)
		require.Equal(t, v, got)
	})
}

// TestEncodeBigIntRoundTrip covers the same property for arbitrary-width non-negative
// integers, including values that cross the short/long-form length boundary at 56 bytes.
func TestEncodeBigIntRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 80).Draw(t, "byteLen")
		raw := rapid.SliceOfN(rapid.Byte(), n, n).Draw(t, "raw")
		if len(raw) > 0 && raw[0] == 0 {
			raw[0] = 1
		}
		v := new(big.Int).SetBytes(raw)

		item, _, err := Decode(EncodeBigInt(v))
		require.NoError(t, err)
		got, err := item.AsBigInt()
		require.NoError(t, err)
		require.Equal(t, 0, v.Cmp(got))
	})
}

// TestEncodeStringRoundTrip covers short-form (<56 bytes) and long-form byte strings of
// arbitrary content, including the single-byte self-encoding special case.
func TestEncodeStringRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 200).Draw(t, "strLen")
		s := rapid.SliceOfN(rapid.Byte(), n, n).Draw(t, "s")

		item, consumed, err := Decode(EncodeString(s))
		require.NoError(t, err)
		require.Equal(t, len(EncodeString(s)), consumed)
		got, err := item.AsBytes()
		require.NoError(t, err)
		require.Equal(t, s, got)
	})
}

// TestListRoundTrip checks that an arbitrary number of pre-encoded string items survive a
// List/Decode/AsList round trip in order.
func TestListRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(0, 20).Draw(t, "count")
		var want [][]byte
		var encoded [][]byte
		for i := 0; i < count; i++ {
			n := rapid.IntRange(0, 40).Draw(t, "itemLen")
			s := rapid.SliceOfN(rapid.Byte(), n, n).Draw(t, "item")
			want = append(want, s)
			encoded = append(encoded, EncodeString(s))
		}

		item, _, err := Decode(List(encoded...))
		require.NoError(t, err)
		items, err := item.AsList()
		require.NoError(t, err)
		require.Len(t, items, count)
		for i, it := range items {
			got, err := it.AsBytes()
			require.NoError(t, err)
			require.Equal(t, want[i], got)
		}
	})
}
