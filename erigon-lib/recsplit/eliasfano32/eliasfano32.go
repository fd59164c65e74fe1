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

// Package eliasfano32 builds the companion index over a monotone non-decreasing
// sequence of segment offsets (spec §4.A), giving O(1) Get and O(log n) Seek without
// ever materializing the full sequence.
package eliasfano32

import (
	"errors"
	"math/bits"

	"github.com/erigontech/erigon-core/erigon-lib/common/math"
)

// ErrDeltaTooWide is returned when an offset sequence would require more than 32 bits
// of upper-bits delta between consecutive entries -- the corruption condition spec §4.A
// requires Elias-Fano construction to reject outright.
var ErrDeltaTooWide = errors.New("eliasfano32: offset delta exceeds 32 bits")

const (
	superBlockOnes = 1 << 14 // one-bits per superblock anchor
	blockOnes      = 1 << 8  // one-bits per fine-grained block anchor
	onesPerSuper   = superBlockOnes / blockOnes
)

// EliasFano is an immutable succinct encoding of a monotone non-decreasing uint64
// sequence. Build it once from the full sequence; Get/Seek never mutate it afterward,
// mirroring the immutability of the segment files it indexes.
type EliasFano struct {
	count uint64
	max   uint64
	l     uint

	lowerBits []uint64 // count*l bits packed, l bits per element
	upperBits []uint64 // unary upper-bits bit-vector
	upperLen  uint64

	jumpSuper []uint64 // jumpSuper[k] = absolute bit position of the (k*superBlockOnes)-th one bit
	jumpBlock []uint32 // jumpBlock[k] = bit position of the (k*blockOnes)-th one bit, relative to its superblock anchor
}

// Build constructs an EliasFano index over xs, a monotone non-decreasing sequence
// with every element in [0, max]. Returns ErrDeltaTooWide if any element's upper-bits
// delta from its predecessor's index position would overflow 32 bits, per spec §4.A.
func Build(xs []uint64, max uint64) (*EliasFano, error) {
	n := uint64(len(xs))
	ef := &EliasFano{count: n, max: max}
	if n == 0 {
		ef.l = 0
		ef.upperLen = 1
		ef.upperBits = make([]uint64, 1)
		return ef, nil
	}

	// l = floor(log2(u/n)), with l=0 when u < n.
	l := uint(0)
	if max/n >= 1 {
		l = uint(bits.Len64(max / n))
		if l > 0 {
			l--
		}
	}
	ef.l = l

	ef.lowerBits = make([]uint64, (n*uint64(l)+63)/64+1)
	upperLen := n + (max>>l) + 2
	ef.upperBits = make([]uint64, (upperLen+63)/64+1)
	ef.upperLen = upperLen

	nSuper := math.CeilDiv(n, superBlockOnes)
	nBlock := math.CeilDiv(n, blockOnes)
	ef.jumpSuper = make([]uint64, nSuper+1)
	ef.jumpBlock = make([]uint32, nBlock+1)

	var prevHigh uint64
	for i, v := range xs {
		if i > 0 && v < xs[i-1] {
			return nil, errors.New("eliasfano32: sequence not monotone non-decreasing")
		}
		high := v >> l
		if i > 0 && high < prevHigh {
			return nil, errors.New("eliasfano32: sequence not monotone non-decreasing")
		}
		pos := uint64(i) + high
		if pos-uint64(i) > 1<<32-1 {
			return nil, ErrDeltaTooWide
		}
		setBit(ef.upperBits, pos)
		prevHigh = high

		low := v & ((uint64(1) << l) - 1)
		setBits(ef.lowerBits, uint64(i)*uint64(l), l, low)

		if uint64(i)%superBlockOnes == 0 {
			ef.jumpSuper[uint64(i)/superBlockOnes] = pos
		}
		if uint64(i)%blockOnes == 0 {
			si := (uint64(i) / blockOnes) / onesPerSuper
			ef.jumpBlock[uint64(i)/blockOnes] = uint32(pos - ef.jumpSuper[si])
		}
	}
	return ef, nil
}

// Count returns the number of elements indexed.
func (ef *EliasFano) Count() uint64 { return ef.count }

// Max returns the maximum element value this index was built for.
func (ef *EliasFano) Max() uint64 { return ef.max }

// Get returns the i-th element (0-indexed) in O(1).
func (ef *EliasFano) Get(i uint64) uint64 {
	pos := ef.selectOne(i)
	high := pos - i
	low := getBits(ef.lowerBits, i*uint64(ef.l), ef.l)
	return high<<ef.l | low
}

// Seek returns the smallest element >= target, and whether one exists.
func (ef *EliasFano) Seek(target uint64) (uint64, bool) {
	if ef.count == 0 || target > ef.max {
		return 0, false
	}
	lo, hi := uint64(0), ef.count-1
	for lo < hi {
		mid := lo + (hi-lo)/2
		if ef.Get(mid) >= target {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if ef.Get(lo) >= target {
		return ef.Get(lo), true
	}
	return 0, false
}

// selectOne finds the absolute bit position of the k-th (0-indexed) one-bit in the
// upper-bits vector, using the two-level jump table (spec §4.A) to bound the final
// linear scan to at most one block's worth of bits.
func (ef *EliasFano) selectOne(k uint64) uint64 {
	superIdx := k / superBlockOnes
	blockIdx := k / blockOnes
	start := ef.jumpSuper[superIdx] + uint64(ef.jumpBlock[blockIdx])
	remaining := k - blockIdx*blockOnes // additional one-bits to skip from `start`, which is itself one of them

	pos := start
	seen := uint64(0)
	for {
		word := ef.upperBits[pos/64]
		for bit := pos % 64; bit < 64; bit++ {
			if word&(1<<bit) != 0 {
				if seen == remaining {
					return pos
				}
				seen++
			}
			pos++
		}
	}
}

func setBit(words []uint64, pos uint64) {
	words[pos/64] |= 1 << (pos % 64)
}

// setBits writes the low `width` bits of v into the bit-packed array starting at bit
// offset `offset`.
func setBits(words []uint64, offset uint64, width uint, v uint64) {
	for b := uint(0); b < width; b++ {
		if v&(1<<b) != 0 {
			setBit(words, offset+uint64(b))
		}
	}
}

func getBits(words []uint64, offset uint64, width uint) uint64 {
	var v uint64
	for b := uint(0); b < width; b++ {
		pos := offset + uint64(b)
		if words[pos/64]&(1<<(pos%64)) != 0 {
			v |= 1 << b
		}
	}
	return v
}
