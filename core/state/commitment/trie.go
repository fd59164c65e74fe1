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

// Package commitment computes the Ethereum Merkle-Patricia state root (spec §4.B): a
// radix-16 Patricia trie over nibble paths, with the standard hex-prefix branch/extension
// encoding and RLP-based node hashing with sub-32-byte child inlining.
package commitment

import (
	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/crypto"
	"github.com/erigontech/erigon-core/erigon-lib/rlp"
)

// node is the sum type over the trie's four node kinds (spec §4.B). Every node caches its
// own RLP encoding lazily via encoded(); dirty nodes clear the cache on mutation.
type node interface {
	encoded() []byte
}

// branchNode has 16 child slots plus an optional value at the branch itself (a path that
// terminates exactly at this depth).
type branchNode struct {
	children [16]node
	value    []byte
	enc      []byte
}

// extensionNode shares a nibble prefix across a single child, collapsing runs of
// single-child branches.
type extensionNode struct {
	shared []byte // nibbles, no terminator
	child  node
	enc    []byte
}

// leafNode terminates a path with the remaining nibbles and a value.
type leafNode struct {
	remainder []byte // nibbles, no terminator
	value     []byte
	enc       []byte
}

// hashNode is an opaque 32-byte stand-in for a subtree the trie never expanded (not used by
// this module's in-memory builder directly, but kept so partially-loaded subtrees — e.g.
// loaded lazily from HashedAccounts/HashedStorage during a real staged run — have a home).
type hashNode []byte

func (h hashNode) encoded() []byte { return rlp.EncodeString(h) }

func (b *branchNode) encoded() []byte {
	if b.enc != nil {
		return b.enc
	}
	items := make([][]byte, 17)
	for i := 0; i < 16; i++ {
		items[i] = childRLP(b.children[i])
	}
	if b.value != nil {
		items[16] = rlp.EncodeString(b.value)
	} else {
		items[16] = rlp.EncodeString(nil)
	}
	b.enc = rlp.List(items...)
	return b.enc
}

func (e *extensionNode) encoded() []byte {
	if e.enc != nil {
		return e.enc
	}
	hp := hexPrefix(e.shared, false)
	e.enc = rlp.List(rlp.EncodeString(hp), childRLP(e.child))
	return e.enc
}

func (l *leafNode) encoded() []byte {
	if l.enc != nil {
		return l.enc
	}
	hp := hexPrefix(l.remainder, true)
	l.enc = rlp.List(rlp.EncodeString(hp), rlp.EncodeString(l.value))
	return l.enc
}

// childRLP returns the RLP a parent embeds for a child: the child's own encoding if it's
// under 32 bytes (inlined per spec §4.B), otherwise its keccak256 hash as a string item.
func childRLP(n node) []byte {
	if n == nil {
		return rlp.EncodeString(nil)
	}
	enc := n.encoded()
	if len(enc) < 32 {
		return enc
	}
	return rlp.EncodeString(crypto.Keccak256(enc))
}

// hashOf returns the 32-byte hash identifying n, regardless of inlining — used at the root,
// which is always hashed even if its encoding happens to be short.
func hashOf(n node) libcommon.Hash {
	if n == nil {
		return EmptyRootHash
	}
	return libcommon.BytesToHash(crypto.Keccak256(n.encoded()))
}

// EmptyRootHash is the canonical root hash of an empty trie: keccak256(RLP("")).
var EmptyRootHash = libcommon.BytesToHash(crypto.Keccak256(rlp.EncodeString(nil)))

// hexPrefix implements the standard even/odd-parity nibble compaction (spec §4.B): the
// first nibble of the first byte encodes 2*terminator + (len(nibbles) odd), the rest of the
// nibbles follow packed two-per-byte.
func hexPrefix(nibbles []byte, terminating bool) []byte {
	terminatorFlag := byte(0)
	if terminating {
		terminatorFlag = 2
	}
	oddLen := len(nibbles) % 2
	flags := terminatorFlag + byte(oddLen)

	var out []byte
	if oddLen == 1 {
		out = append(out, flags<<4|nibbles[0])
		nibbles = nibbles[1:]
	} else {
		out = append(out, flags<<4)
	}
	for i := 0; i < len(nibbles); i += 2 {
		out = append(out, nibbles[i]<<4|nibbles[i+1])
	}
	return out
}

// keyToNibbles expands each byte of key into two nibbles, high nibble first.
func keyToNibbles(key []byte) []byte {
	out := make([]byte, 0, len(key)*2)
	for _, b := range key {
		out = append(out, b>>4, b&0x0f)
	}
	return out
}

// commonPrefixLen returns how many leading elements of a and b match.
func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// Trie is a standalone radix-16 Patricia trie over arbitrary byte keys (used once per
// account for its storage sub-trie, and once globally for the account trie).
type Trie struct {
	root node
}

// Root returns the trie's current Merkle root, recomputing any cached RLP lazily.
func (t *Trie) Root() libcommon.Hash { return hashOf(t.root) }

// Update inserts or overwrites the value at key, rebuilding every node on the inserted
// path without a cached encoding (spec's "dirty the path" update contract); the hashes of
// those nodes are recomputed lazily, the next time Root is called.
func (t *Trie) Update(key, value []byte) {
	nibbles := keyToNibbles(key)
	t.root = insert(t.root, nibbles, value)
}

// Delete removes key's value if present.
func (t *Trie) Delete(key []byte) {
	nibbles := keyToNibbles(key)
	t.root, _ = remove(t.root, nibbles)
}

func insert(n node, path, value []byte) node {
	switch cur := n.(type) {
	case nil:
		return &leafNode{remainder: path, value: value}

	case *leafNode:
		if string(cur.remainder) == string(path) {
			return &leafNode{remainder: path, value: value}
		}
		return split(cur.remainder, cur.value, path, value)

	case *extensionNode:
		prefixLen := commonPrefixLen(cur.shared, path)
		if prefixLen == len(cur.shared) {
			newChild := insert(cur.child, path[prefixLen:], value)
			return joinExtension(cur.shared, newChild)
		}
		return splitExtension(cur, prefixLen, path, value)

	case *branchNode:
		if len(path) == 0 {
			nb := *cur
			nb.value = value
			nb.enc = nil
			return &nb
		}
		nb := *cur
		nb.enc = nil
		nb.children[path[0]] = insert(cur.children[path[0]], path[1:], value)
		return &nb
	}
	return n
}

// split creates a branch (optionally preceded by an extension) separating two leaves whose
// paths diverge at prefixLen.
func split(pathA, valueA, pathB, valueB []byte) node {
	prefixLen := commonPrefixLen(pathA, pathB)
	branch := &branchNode{}
	placeLeaf(branch, pathA, prefixLen, valueA)
	placeLeaf(branch, pathB, prefixLen, valueB)
	if prefixLen == 0 {
		return branch
	}
	return &extensionNode{shared: append([]byte(nil), pathA[:prefixLen]...), child: branch}
}

func placeLeaf(branch *branchNode, path []byte, prefixLen int, value []byte) {
	rest := path[prefixLen:]
	if len(rest) == 0 {
		branch.value = value
		return
	}
	branch.children[rest[0]] = &leafNode{remainder: rest[1:], value: value}
}

func splitExtension(e *extensionNode, prefixLen int, path, value []byte) node {
	branch := &branchNode{}
	extRest := e.shared[prefixLen:]
	if len(extRest) == 1 {
		branch.children[extRest[0]] = e.child
	} else {
		branch.children[extRest[0]] = &extensionNode{shared: extRest[1:], child: e.child}
	}
	pathRest := path[prefixLen:]
	if len(pathRest) == 0 {
		branch.value = value
	} else {
		branch.children[pathRest[0]] = insert(branch.children[pathRest[0]], pathRest[1:], value)
	}
	if prefixLen == 0 {
		return branch
	}
	return &extensionNode{shared: append([]byte(nil), path[:prefixLen]...), child: branch}
}

// joinExtension rebuilds an extension over child, collapsing it if child turns out to be
// another extension (merge shared prefixes) or a leaf (fold the prefix into the leaf's
// remainder) to keep the trie canonical.
func joinExtension(shared []byte, child node) node {
	if leaf, ok := child.(*leafNode); ok {
		return &leafNode{remainder: append(append([]byte(nil), shared...), leaf.remainder...), value: leaf.value}
	}
	if ext, ok := child.(*extensionNode); ok {
		return &extensionNode{shared: append(append([]byte(nil), shared...), ext.shared...), child: ext.child}
	}
	return &extensionNode{shared: shared, child: child}
}

func remove(n node, path []byte) (node, bool) {
	switch cur := n.(type) {
	case nil:
		return nil, false

	case *leafNode:
		if string(cur.remainder) == string(path) {
			return nil, true
		}
		return cur, false

	case *extensionNode:
		prefixLen := commonPrefixLen(cur.shared, path)
		if prefixLen != len(cur.shared) {
			return cur, false
		}
		newChild, ok := remove(cur.child, path[prefixLen:])
		if !ok {
			return cur, false
		}
		if newChild == nil {
			return nil, true
		}
		return joinExtension(cur.shared, newChild), true

	case *branchNode:
		nb := *cur
		nb.enc = nil
		if len(path) == 0 {
			if nb.value == nil {
				return cur, false
			}
			nb.value = nil
		} else {
			newChild, ok := remove(cur.children[path[0]], path[1:])
			if !ok {
				return cur, false
			}
			nb.children[path[0]] = newChild
		}
		return collapseBranch(&nb), true
	}
	return n, false
}

// collapseBranch demotes a branch with a single remaining child (and no value) into an
// extension/leaf, keeping the trie's hash canonical after a delete.
func collapseBranch(b *branchNode) node {
	count, idx := 0, -1
	for i, c := range b.children {
		if c != nil {
			count++
			idx = i
		}
	}
	if count == 0 && b.value != nil {
		return &leafNode{remainder: nil, value: b.value}
	}
	if count == 1 && b.value == nil {
		child := b.children[idx]
		switch c := child.(type) {
		case *leafNode:
			return &leafNode{remainder: append([]byte{byte(idx)}, c.remainder...), value: c.value}
		case *extensionNode:
			return &extensionNode{shared: append([]byte{byte(idx)}, c.shared...), child: c.child}
		default:
			return &extensionNode{shared: []byte{byte(idx)}, child: child}
		}
	}
	return b
}
