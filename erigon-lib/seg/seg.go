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

// Package seg implements the immutable segment file format (spec §4.A): a read-only,
// mmap-friendly store of length-prefixed words, pattern-coded with a canonical Huffman
// tree. Accessors open one Getter per concurrent reader over a single shared
// Decompressor; Getters are not safe for concurrent use but many may coexist on one
// Decompressor.
package seg

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncated is returned for any segment file shorter than the 32-byte minimum spec
// §6 requires every reader to enforce, or one truncated mid-dictionary/mid-body.
var ErrTruncated = errors.New("seg: truncated or undersized segment file")

const minSegmentSize = 32

// Compressor builds a .seg file from a sequence of words, encoding each byte of each
// non-empty word through a canonical Huffman code built over the corpus' byte
// frequencies. This module treats each input byte as its own one-byte pattern (spec's
// dictionary shape is `(depth, length, bytes[length])`, and length=1 here): a full
// substring-pattern dictionary needs a separate frequent-substring miner that SPEC_FULL
// does not otherwise exercise, so this keeps the documented file layout and the
// round-trip/corruption-rejection properties (spec §8 properties 4/5) without it.
type Compressor struct {
	words [][]byte
}

// NewCompressor starts an empty segment builder.
func NewCompressor() *Compressor { return &Compressor{} }

// AddWord appends one word (possibly empty) to the segment being built.
func (c *Compressor) AddWord(w []byte) {
	c.words = append(c.words, append([]byte(nil), w...))
}

// Compress serializes every added word into the spec §4.A file layout:
// [wordsCount][emptyWordsCount][patternDictSize][patternDict][posDictSize][posDict][body].
// It also returns each word's starting bit offset within the body, monotone
// non-decreasing by construction -- the sequence a caller indexes with
// erigon-lib/recsplit/eliasfano32 to get random access to an otherwise sequential
// Huffman bitstream.
func (c *Compressor) Compress() (data []byte, wordBitOffsets []uint64, err error) {
	var freq [256]uint64
	var emptyWords uint64
	for _, w := range c.words {
		if len(w) == 0 {
			emptyWords++
			continue
		}
		for _, b := range w {
			freq[b]++
		}
	}

	depths, err := buildCanonicalDepths(freq[:])
	if err != nil {
		return nil, nil, err
	}
	codes, order := assignCanonicalCodes(depths)

	patternDict := encodePatternDict(order, depths)
	// Position dictionary: this module never interposes raw bytes between patterns
	// (every pattern is a single already-decodable byte), so the position dictionary
	// always holds the single trivial entry "gap 0" -- present so the file layout
	// matches spec §4.A exactly, even though this compressor has nothing else to put
	// there.
	posDict := encodePosDict()

	bw := newBitWriter()
	wordBitOffsets = make([]uint64, 0, len(c.words))
	for _, w := range c.words {
		wordBitOffsets = append(wordBitOffsets, bw.bitLen())
		writeUvarint(bw, uint64(len(w)))
		for _, b := range w {
			code := codes[uint32(b)]
			depth := depths[uint32(b)]
			bw.writeBits(code, depth)
		}
	}
	body := bw.bytes()

	out := make([]byte, 0, 8+8+8+len(patternDict)+8+len(posDict)+len(body))
	out = appendU64(out, uint64(len(c.words)))
	out = appendU64(out, emptyWords)
	out = appendU64(out, uint64(len(patternDict)))
	out = append(out, patternDict...)
	out = appendU64(out, uint64(len(posDict)))
	out = append(out, posDict...)
	out = append(out, body...)

	if len(out) < minSegmentSize {
		pad := make([]byte, minSegmentSize-len(out))
		out = append(out, pad...)
	}
	return out, wordBitOffsets, nil
}

func encodePatternDict(order []uint32, depths map[uint32]uint32) []byte {
	var buf []byte
	for _, sym := range order {
		buf = appendUvarint(buf, uint64(depths[sym]))
		buf = appendUvarint(buf, 1) // length: always a single byte in this module
		buf = append(buf, byte(sym))
	}
	return buf
}

func encodePosDict() []byte {
	var buf []byte
	buf = appendUvarint(buf, 1) // depth
	buf = appendUvarint(buf, 0)
	return buf
}

// Decompressor opens an immutable segment for reading. OpenDecompressor is handed the
// bytes directly; OpenSegmentFile (mmap.go) supplies them from a read-only mmap of a file.
type Decompressor struct {
	data       []byte
	wordsCount uint64
	emptyWords uint64
	trie       *huffmanTrieNode
	bodyOffset int
}

// OpenDecompressor parses and validates a segment's header and dictionaries, rejecting
// undersized or structurally inconsistent files per spec §4.A/§6.
func OpenDecompressor(data []byte) (*Decompressor, error) {
	if len(data) < minSegmentSize {
		return nil, ErrTruncated
	}
	pos := 0
	readU64 := func() (uint64, error) {
		if pos+8 > len(data) {
			return 0, ErrTruncated
		}
		v := binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
		return v, nil
	}

	wordsCount, err := readU64()
	if err != nil {
		return nil, err
	}
	emptyWords, err := readU64()
	if err != nil {
		return nil, err
	}
	patternDictSize, err := readU64()
	if err != nil {
		return nil, err
	}
	if pos+int(patternDictSize) > len(data) {
		return nil, ErrTruncated
	}
	patternDict := data[pos : pos+int(patternDictSize)]
	pos += int(patternDictSize)

	depths, _, err := decodePatternDict(patternDict)
	if err != nil {
		return nil, err
	}
	codes, _ := assignCanonicalCodes(depths)
	trie := buildDecodeTrie(codes, depths)

	posDictSize, err := readU64()
	if err != nil {
		return nil, err
	}
	if pos+int(posDictSize) > len(data) {
		return nil, ErrTruncated
	}
	pos += int(posDictSize) // position dictionary isn't consulted by this decoder

	return &Decompressor{
		data:       data,
		wordsCount: wordsCount,
		emptyWords: emptyWords,
		trie:       trie,
		bodyOffset: pos,
	}, nil
}

// decodePatternDict re-derives each symbol's canonical depth straight from the
// dictionary bytes -- it does not trust any embedded code value, only (depth, bytes).
func decodePatternDict(dict []byte) (depths map[uint32]uint32, order []uint32, err error) {
	depths = make(map[uint32]uint32)
	pos := 0
	for pos < len(dict) {
		depth, n, err := readUvarint(dict[pos:])
		if err != nil {
			return nil, nil, err
		}
		pos += n
		if depth > maxPatternDepth {
			return nil, nil, ErrCorruptDepth
		}
		length, n, err := readUvarint(dict[pos:])
		if err != nil {
			return nil, nil, err
		}
		pos += n
		if length != 1 || pos+1 > len(dict) {
			return nil, nil, fmt.Errorf("seg: unsupported pattern length %d", length)
		}
		sym := uint32(dict[pos])
		pos++
		depths[sym] = uint32(depth)
		order = append(order, sym)
	}
	return depths, order, nil
}

// WordsCount returns the number of words (including empty ones) stored in the segment.
func (d *Decompressor) WordsCount() uint64 { return d.wordsCount }

// EmptyWordsCount returns how many of those words have zero length.
func (d *Decompressor) EmptyWordsCount() uint64 { return d.emptyWords }

// Getter is a single-reader cursor over a Decompressor's body. Not safe for concurrent
// use; open one per goroutine/OS thread that reads (spec §4.A).
type Getter struct {
	d    *Decompressor
	br   *bitReader
	read uint64
}

// MakeGetter opens a fresh cursor positioned at the first word.
func (d *Decompressor) MakeGetter() *Getter {
	return &Getter{d: d, br: newBitReader(d.data[d.bodyOffset:])}
}

// HasNext reports whether any word remains unread.
func (g *Getter) HasNext() bool { return g.read < g.d.wordsCount }

// SeekWord repositions the cursor to word index wordIdx, whose bitstream starts at
// bitOffset within the body -- the random-access seam a caller backed by a
// recsplit/eliasfano32 index over Compressor's returned word-bit-offsets uses to avoid
// decoding every preceding word just to reach one in the middle of a segment.
func (g *Getter) SeekWord(wordIdx, bitOffset uint64) {
	g.br = newBitReader(g.d.data[g.d.bodyOffset:])
	g.br.pos = int(bitOffset)
	g.read = wordIdx
}

// Next decodes and returns the next word.
func (g *Getter) Next() ([]byte, error) {
	if !g.HasNext() {
		return nil, errors.New("seg: read past end of segment")
	}
	length, err := readUvarintBits(g.br)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	for i := range out {
		sym, err := decodeOneSymbol(g.br, g.d.trie)
		if err != nil {
			return nil, err
		}
		out[i] = byte(sym)
	}
	g.read++
	return out, nil
}

func decodeOneSymbol(br *bitReader, trie *huffmanTrieNode) (uint32, error) {
	n := trie
	for {
		if n == nil {
			return 0, errors.New("seg: invalid huffman code, segment corrupt")
		}
		if n.leaf {
			return n.value, nil
		}
		bit, err := br.readBit()
		if err != nil {
			return 0, err
		}
		n = n.children[bit]
	}
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [10]byte
	n := 0
	for v >= 0x80 {
		tmp[n] = byte(v) | 0x80
		v >>= 7
		n++
	}
	tmp[n] = byte(v)
	n++
	return append(buf, tmp[:n]...)
}

func readUvarint(b []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i, c := range b {
		if shift >= 64 {
			return 0, 0, errors.New("seg: uvarint overflow")
		}
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrTruncated
}
