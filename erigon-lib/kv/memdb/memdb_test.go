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

package memdb

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/erigontech/erigon-core/erigon-lib/kv"
)

// TestCursorOrdering_Property6 covers spec §8 property 6: for any set of keys written to a
// table, First followed by repeated Next yields strictly ascending keys and visits no key
// twice in one traversal, for an arbitrary insertion order.
func TestCursorOrdering_Property6(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOfN(rapid.SliceOfN(rapid.Byte(), 1, 8), 0, 20).Draw(t, "keys")
		seenInput := make(map[string]bool, len(raw))
		var keys [][]byte
		for _, k := range raw {
			if seenInput[string(k)] {
				continue
			}
			seenInput[string(k)] = true
			keys = append(keys, k)
		}

		db := New()
		ctx := context.Background()
		tx, err := db.BeginRw(ctx)
		require.NoError(t, err)
		for _, k := range keys {
			require.NoError(t, tx.Put(kv.PlainState, k, []byte{1}))
		}
		require.NoError(t, tx.Commit())

		ro, err := db.BeginRo(ctx)
		require.NoError(t, err)
		defer ro.Rollback()
		cur, err := ro.Cursor(kv.PlainState)
		require.NoError(t, err)
		defer cur.Close()

		var seen [][]byte
		k, _, err := cur.First()
		require.NoError(t, err)
		for k != nil {
			seen = append(seen, append([]byte(nil), k...))
			k, _, err = cur.Next()
			require.NoError(t, err)
		}

		require.Len(t, seen, len(keys))
		for i := 1; i < len(seen); i++ {
			require.Equal(t, -1, bytes.Compare(seen[i-1], seen[i]), "keys must be strictly ascending")
		}
		visited := make(map[string]bool, len(seen))
		for _, k := range seen {
			require.False(t, visited[string(k)], "no key should be visited twice")
			visited[string(k)] = true
		}
	})
}

// TestCursorSeek covers the Seek-then-Next half of property 6 directly: Seek(k) lands on the
// smallest key >= k, and Next from there continues in ascending order.
func TestCursorSeek(t *testing.T) {
	db := New()
	ctx := context.Background()
	tx, err := db.BeginRw(ctx)
	require.NoError(t, err)
	for _, k := range [][]byte{{10}, {25}, {42}, {100}} {
		require.NoError(t, tx.Put(kv.PlainState, k, []byte{1}))
	}
	require.NoError(t, tx.Commit())

	ro, err := db.BeginRo(ctx)
	require.NoError(t, err)
	defer ro.Rollback()
	cur, err := ro.Cursor(kv.PlainState)
	require.NoError(t, err)
	defer cur.Close()

	k, _, err := cur.Seek([]byte{26})
	require.NoError(t, err)
	require.Equal(t, []byte{42}, k)

	k, _, err = cur.Next()
	require.NoError(t, err)
	require.Equal(t, []byte{100}, k)

	k, _, err = cur.Next()
	require.NoError(t, err)
	require.Nil(t, k)
}

// TestReaderObservesCommittedWrites checks sequential visibility: a reader opened after a
// commit sees that commit's write, for two commits in a row. It does not hold a reader open
// across a later commit.
func TestReaderObservesCommittedWrites(t *testing.T) {
	db := New()
	ctx := context.Background()

	tx, err := db.BeginRw(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Put(kv.PlainState, []byte("a"), []byte("1")))
	require.NoError(t, tx.Commit())

	ro, err := db.BeginRo(ctx)
	require.NoError(t, err)
	found, err := ro.Has(kv.PlainState, []byte("a"))
	require.NoError(t, err)
	require.True(t, found)
	ro.Rollback()

	wtx, err := db.BeginRw(ctx)
	require.NoError(t, err)
	require.NoError(t, wtx.Put(kv.PlainState, []byte("b"), []byte("2")))
	require.NoError(t, wtx.Commit())

	ro2, err := db.BeginRo(ctx)
	require.NoError(t, err)
	defer ro2.Rollback()
	found2, err := ro2.Has(kv.PlainState, []byte("b"))
	require.NoError(t, err)
	require.True(t, found2, "a reader opened after commit must observe it")
}
