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

package seg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressorRoundTrip(t *testing.T) {
	words := [][]byte{
		[]byte("the quick brown fox"),
		{},
		[]byte("jumps over the lazy dog"),
		[]byte("a"),
		[]byte("the quick brown fox"),
	}

	c := NewCompressor()
	for _, w := range words {
		c.AddWord(w)
	}
	data, _, err := c.Compress()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), minSegmentSize)

	d, err := OpenDecompressor(data)
	require.NoError(t, err)
	require.Equal(t, uint64(len(words)), d.WordsCount())
	require.Equal(t, uint64(1), d.EmptyWordsCount())

	g := d.MakeGetter()
	for _, want := range words {
		require.True(t, g.HasNext())
		got, err := g.Next()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	require.False(t, g.HasNext())
}

func TestOpenDecompressorRejectsTruncated(t *testing.T) {
	_, err := OpenDecompressor(make([]byte, 10))
	require.ErrorIs(t, err, ErrTruncated)
}

func TestOpenDecompressorRejectsCorruptDictionary(t *testing.T) {
	c := NewCompressor()
	c.AddWord([]byte("hello"))
	data, _, err := c.Compress()
	require.NoError(t, err)

	// Corrupt the pattern dictionary's first depth byte to exceed maxPatternDepth.
	data[24] = 200

	_, err = OpenDecompressor(data)
	require.Error(t, err)
}

func TestSeekWordRandomAccess(t *testing.T) {
	c := NewCompressor()
	words := [][]byte{[]byte("zero"), []byte("one"), []byte("two"), []byte("three")}
	for _, w := range words {
		c.AddWord(w)
	}
	data, offsets, err := c.Compress()
	require.NoError(t, err)
	require.Len(t, offsets, len(words))

	d, err := OpenDecompressor(data)
	require.NoError(t, err)

	g := d.MakeGetter()
	g.SeekWord(2, offsets[2])
	got, err := g.Next()
	require.NoError(t, err)
	require.Equal(t, words[2], got)
}

func TestMultipleGettersOverSameDecompressor(t *testing.T) {
	c := NewCompressor()
	c.AddWord([]byte("alpha"))
	c.AddWord([]byte("beta"))
	data, _, err := c.Compress()
	require.NoError(t, err)

	d, err := OpenDecompressor(data)
	require.NoError(t, err)

	g1 := d.MakeGetter()
	g2 := d.MakeGetter()
	w1, err := g1.Next()
	require.NoError(t, err)
	require.Equal(t, []byte("alpha"), w1)

	w2, err := g2.Next()
	require.NoError(t, err)
	require.Equal(t, []byte("alpha"), w2)
}
