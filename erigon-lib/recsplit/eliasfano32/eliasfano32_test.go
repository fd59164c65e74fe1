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

package eliasfano32

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSeekSpecExample is spec §6 scenario S6 verbatim.
func TestSeekSpecExample(t *testing.T) {
	xs := []uint64{10, 25, 42, 100, 200}
	ef, err := Build(xs, 200)
	require.NoError(t, err)

	cases := []struct {
		target uint64
		want   uint64
		found  bool
	}{
		{0, 10, true},
		{25, 25, true},
		{26, 42, true},
		{150, 200, true},
		{201, 0, false},
	}
	for _, c := range cases {
		got, found := ef.Seek(c.target)
		require.Equal(t, c.found, found, "seek(%d)", c.target)
		if c.found {
			require.Equal(t, c.want, got, "seek(%d)", c.target)
		}
	}
}

func TestGetRoundTrip(t *testing.T) {
	xs := []uint64{0, 1, 1, 5, 9, 9, 9, 1000, 1000, 50_000}
	ef, err := Build(xs, 50_000)
	require.NoError(t, err)
	require.Equal(t, uint64(len(xs)), ef.Count())
	for i, want := range xs {
		require.Equal(t, want, ef.Get(uint64(i)))
	}
}

func TestBuildRejectsNonMonotone(t *testing.T) {
	_, err := Build([]uint64{5, 3, 10}, 10)
	require.Error(t, err)
}

func TestLargeMonotoneSequence(t *testing.T) {
	n := 1 << 16
	xs := make([]uint64, n)
	for i := range xs {
		xs[i] = uint64(i) * 3
	}
	ef, err := Build(xs, xs[n-1])
	require.NoError(t, err)
	for _, i := range []int{0, 1, 100, 1<<14 - 1, 1 << 14, 1<<14 + 1, n - 1} {
		require.Equal(t, xs[i], ef.Get(uint64(i)))
	}
	got, found := ef.Seek(xs[n/2] + 1)
	require.True(t, found)
	require.Equal(t, xs[n/2+1], got)
}
