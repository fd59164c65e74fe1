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

// Package rlp implements canonical Ethereum Recursive Length Prefix encoding.
//
// The teacher's own RLP encoder is flagged in spec §9 as "simplified" and explicitly
// insufficient for mainnet-compatible header/transaction hashing; this package instead
// follows the Yellow Paper's canonical encoding exactly (minimal-length size prefixes,
// no leading zero bytes on integers).
package rlp

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrUnexpectedEOF = errors.New("rlp: unexpected end of input")
	ErrExpectedList  = errors.New("rlp: expected list")
	ErrExpectedStr   = errors.New("rlp: expected string")
	ErrNonCanonical  = errors.New("rlp: non-canonical size or integer encoding")
)

// EncodeString returns the canonical RLP encoding of a byte string.
func EncodeString(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return []byte{b[0]}
	}
	return append(encodeHeader(0x80, 0xb7, len(b)), b...)
}

// EncodeUint64 returns the canonical RLP encoding of a uint64 (big-endian, no leading zeros).
func EncodeUint64(v uint64) []byte {
	if v == 0 {
		return []byte{0x80}
	}
	return EncodeString(trimLeadingZeros(bigEndian(v)))
}

// EncodeBigInt returns the canonical RLP encoding of a non-negative big.Int.
func EncodeBigInt(v *big.Int) []byte {
	if v == nil || v.Sign() == 0 {
		return []byte{0x80}
	}
	return EncodeString(v.Bytes())
}

// List concatenates pre-encoded items under a canonical list header.
func List(items ...[]byte) []byte {
	var body []byte
	for _, it := range items {
		body = append(body, it...)
	}
	return append(encodeHeader(0xc0, 0xf7, len(body)), body...)
}

func encodeHeader(shortBase, longBase byte, n int) []byte {
	if n < 56 {
		return []byte{shortBase + byte(n)}
	}
	lenBytes := trimLeadingZeros(bigEndian(uint64(n)))
	out := make([]byte, 0, 1+len(lenBytes))
	out = append(out, longBase+byte(len(lenBytes)))
	return append(out, lenBytes...)
}

func bigEndian(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func trimLeadingZeros(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	return b[i:]
}

// Item is a decoded RLP value: either a string (IsList==false, Bytes set) or a list
// (IsList==true, Items set).
type Item struct {
	IsList bool
	Bytes  []byte
	Items  []Item
}

// Decode parses exactly one RLP item from b, returning the item and the number of bytes
// consumed.
func Decode(b []byte) (Item, int, error) {
	if len(b) == 0 {
		return Item{}, 0, ErrUnexpectedEOF
	}
	switch first := b[0]; {
	case first < 0x80:
		return Item{Bytes: b[0:1]}, 1, nil
	case first < 0xb8:
		n := int(first - 0x80)
		if len(b) < 1+n {
			return Item{}, 0, ErrUnexpectedEOF
		}
		if n == 1 && b[1] < 0x80 {
			return Item{}, 0, fmt.Errorf("%w: single byte should be self-encoded", ErrNonCanonical)
		}
		return Item{Bytes: b[1 : 1+n]}, 1 + n, nil
	case first < 0xc0:
		lenLen := int(first - 0xb7)
		if len(b) < 1+lenLen {
			return Item{}, 0, ErrUnexpectedEOF
		}
		n, err := decodeLength(b[1 : 1+lenLen])
		if err != nil {
			return Item{}, 0, err
		}
		if n < 56 {
			return Item{}, 0, fmt.Errorf("%w: long-form length too small", ErrNonCanonical)
		}
		start := 1 + lenLen
		if len(b) < start+n {
			return Item{}, 0, ErrUnexpectedEOF
		}
		return Item{Bytes: b[start : start+n]}, start + n, nil
	case first < 0xf8:
		n := int(first - 0xc0)
		if len(b) < 1+n {
			return Item{}, 0, ErrUnexpectedEOF
		}
		items, err := decodeItems(b[1 : 1+n])
		if err != nil {
			return Item{}, 0, err
		}
		return Item{IsList: true, Items: items}, 1 + n, nil
	default:
		lenLen := int(first - 0xf7)
		if len(b) < 1+lenLen {
			return Item{}, 0, ErrUnexpectedEOF
		}
		n, err := decodeLength(b[1 : 1+lenLen])
		if err != nil {
			return Item{}, 0, err
		}
		if n < 56 {
			return Item{}, 0, fmt.Errorf("%w: long-form length too small", ErrNonCanonical)
		}
		start := 1 + lenLen
		if len(b) < start+n {
			return Item{}, 0, ErrUnexpectedEOF
		}
		items, err := decodeItems(b[start : start+n])
		if err != nil {
			return Item{}, 0, err
		}
		return Item{IsList: true, Items: items}, start + n, nil
	}
}

func decodeLength(b []byte) (int, error) {
	if len(b) > 0 && b[0] == 0 {
		return 0, fmt.Errorf("%w: leading zero in length", ErrNonCanonical)
	}
	var n uint64
	for _, c := range b {
		n = n<<8 | uint64(c)
	}
	if n > (1<<31 - 1) {
		return 0, errors.New("rlp: length too large")
	}
	return int(n), nil
}

func decodeItems(b []byte) ([]Item, error) {
	var items []Item
	for len(b) > 0 {
		it, n, err := Decode(b)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
		b = b[n:]
	}
	return items, nil
}

// AsList asserts the item is a list and returns its sub-items.
func (it Item) AsList() ([]Item, error) {
	if !it.IsList {
		return nil, ErrExpectedList
	}
	return it.Items, nil
}

// AsBytes asserts the item is a string and returns its raw bytes.
func (it Item) AsBytes() ([]byte, error) {
	if it.IsList {
		return nil, ErrExpectedStr
	}
	return it.Bytes, nil
}

// AsUint64 decodes a string item as a big-endian, minimally-encoded uint64.
func (it Item) AsUint64() (uint64, error) {
	b, err := it.AsBytes()
	if err != nil {
		return 0, err
	}
	if len(b) > 8 {
		return 0, errors.New("rlp: uint64 overflow")
	}
	if len(b) > 0 && b[0] == 0 {
		return 0, fmt.Errorf("%w: leading zero in integer", ErrNonCanonical)
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

// AsBigInt decodes a string item as a big-endian, minimally-encoded big.Int.
func (it Item) AsBigInt() (*big.Int, error) {
	b, err := it.AsBytes()
	if err != nil {
		return nil, err
	}
	if len(b) > 0 && b[0] == 0 {
		return nil, fmt.Errorf("%w: leading zero in integer", ErrNonCanonical)
	}
	return new(big.Int).SetBytes(b), nil
}
