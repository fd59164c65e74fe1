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
	"container/heap"
	"errors"
	"fmt"
	"sort"
)

// maxPatternDepth is the deepest a canonical Huffman code may descend before a segment
// is considered corrupt (spec §4.A).
const maxPatternDepth = 50

// ErrCorruptDepth is returned by both the encoder (as a build-time safety check) and the
// decoder (reading an untrusted dictionary) when a code's depth exceeds maxPatternDepth.
var ErrCorruptDepth = errors.New("seg: pattern depth exceeds 50, treating as corrupt")

// huffmanSymbol pairs a dictionary entry (pattern bytes or a bare position value, spec
// §4.A) with its canonical code depth.
type huffmanSymbol struct {
	depth uint32
	value uint32 // index into the caller's symbol table
}

type freqNode struct {
	freq     uint64
	value    uint32 // symbol index, only meaningful for leaves
	leaf     bool
	children [2]*freqNode
	order    int // insertion order, used to break ties deterministically
}

type freqHeap []*freqNode

func (h freqHeap) Len() int { return len(h) }
func (h freqHeap) Less(i, j int) bool {
	if h[i].freq != h[j].freq {
		return h[i].freq < h[j].freq
	}
	return h[i].order < h[j].order
}
func (h freqHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *freqHeap) Push(x any)        { *h = append(*h, x.(*freqNode)) }
func (h *freqHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// buildCanonicalDepths runs a standard Huffman merge over the given per-symbol
// frequencies and returns each symbol's code depth. Symbols with zero frequency are
// omitted. Depths above maxPatternDepth are rejected: a real implementation would
// length-limit the tree (package-merge), but spec §9 treats this as an explicit Open
// Question ("treat the Huffman decoder as source of truth") rather than asking for a
// particular limiting algorithm, so this module simply refuses to emit a segment that
// would violate the depth the decoder enforces.
func buildCanonicalDepths(freq []uint64) (map[uint32]uint32, error) {
	h := &freqHeap{}
	order := 0
	for sym, f := range freq {
		if f == 0 {
			continue
		}
		heap.Push(h, &freqNode{freq: f, value: uint32(sym), leaf: true, order: order})
		order++
	}
	if h.Len() == 0 {
		return map[uint32]uint32{}, nil
	}
	if h.Len() == 1 {
		only := (*h)[0]
		return map[uint32]uint32{only.value: 1}, nil
	}
	for h.Len() > 1 {
		a := heap.Pop(h).(*freqNode)
		b := heap.Pop(h).(*freqNode)
		parent := &freqNode{freq: a.freq + b.freq, order: order, children: [2]*freqNode{a, b}}
		order++
		heap.Push(h, parent)
	}
	root := (*h)[0]

	depths := make(map[uint32]uint32)
	var walk func(n *freqNode, depth uint32) error
	walk = func(n *freqNode, depth uint32) error {
		if n.leaf {
			if depth > maxPatternDepth {
				return fmt.Errorf("%w: symbol %d at depth %d", ErrCorruptDepth, n.value, depth)
			}
			depths[n.value] = depth
			return nil
		}
		if err := walk(n.children[0], depth+1); err != nil {
			return err
		}
		return walk(n.children[1], depth+1)
	}
	if err := walk(root, 0); err != nil {
		return nil, err
	}
	return depths, nil
}

// assignCanonicalCodes assigns canonical Huffman codes given each symbol's depth,
// following the standard rule: order symbols by (depth, value) ascending, start code at
// 0, increment after each symbol, left-shift by the depth delta when depth increases.
func assignCanonicalCodes(depths map[uint32]uint32) (codes map[uint32]uint32, order []uint32) {
	order = make([]uint32, 0, len(depths))
	for sym := range depths {
		order = append(order, sym)
	}
	sort.Slice(order, func(i, j int) bool {
		if depths[order[i]] != depths[order[j]] {
			return depths[order[i]] < depths[order[j]]
		}
		return order[i] < order[j]
	})

	codes = make(map[uint32]uint32, len(order))
	var code uint32
	var prevDepth uint32
	for i, sym := range order {
		d := depths[sym]
		if i > 0 {
			code <<= d - prevDepth
		}
		codes[sym] = code
		code++
		prevDepth = d
	}
	return codes, order
}

// huffmanTrieNode is a bit-addressed decode trie: walk one bit at a time from the root
// until a leaf is hit.
type huffmanTrieNode struct {
	leaf     bool
	value    uint32
	children [2]*huffmanTrieNode
}

func buildDecodeTrie(codes map[uint32]uint32, depths map[uint32]uint32) *huffmanTrieNode {
	root := &huffmanTrieNode{}
	for sym, code := range codes {
		depth := depths[sym]
		n := root
		for b := int(depth) - 1; b >= 0; b-- {
			bit := (code >> uint(b)) & 1
			if n.children[bit] == nil {
				n.children[bit] = &huffmanTrieNode{}
			}
			n = n.children[bit]
		}
		n.leaf = true
		n.value = sym
	}
	return root
}
