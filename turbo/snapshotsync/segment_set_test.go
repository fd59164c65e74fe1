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

package snapshotsync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSegmentSetFind(t *testing.T) {
	set := NewSegmentSet()
	require.True(t, set.AddFile("/data/snapshots/" + SegmentFileName(KindBodies, 0, 500_000)))
	require.True(t, set.AddFile("/data/snapshots/" + SegmentFileName(KindBodies, 500_000, 1_000_000)))
	require.True(t, set.AddFile("/data/snapshots/" + SegmentFileName(KindHeaders, 0, 500_000)))
	require.Equal(t, 3, set.Len())

	path, ok := set.Find(KindBodies, 250_000)
	require.True(t, ok)
	require.Equal(t, "/data/snapshots/"+SegmentFileName(KindBodies, 0, 500_000), path)

	path, ok = set.Find(KindBodies, 750_000)
	require.True(t, ok)
	require.Equal(t, "/data/snapshots/"+SegmentFileName(KindBodies, 500_000, 1_000_000), path)

	_, ok = set.Find(KindBodies, 2_000_000)
	require.False(t, ok)

	_, ok = set.Find(KindTransactions, 0)
	require.False(t, ok)
}

func TestSegmentSetAddFileRejectsNonCanonical(t *testing.T) {
	set := NewSegmentSet()
	require.False(t, set.AddFile("/data/snapshots/not-a-segment.txt"))
	require.Equal(t, 0, set.Len())
}
