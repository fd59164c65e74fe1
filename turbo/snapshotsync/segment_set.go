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
	"path/filepath"

	"github.com/tidwall/btree"
)

// segmentEntry is one registered `<kind>-<from>-<to>.seg` file, ordered first by kind and
// then by its starting block so Find can walk straight to the segment covering a block
// instead of scanning every registered file.
type segmentEntry struct {
	kind       SegmentKind
	from, to   uint64
	path       string
}

func segmentLess(a, b segmentEntry) bool {
	if a.kind != b.kind {
		return a.kind < b.kind
	}
	return a.from < b.from
}

// SegmentSet is an ordered registry of on-disk segment files (spec §6): the in-memory
// analogue of the "visible files" b-tree erigon's real snapshot aggregator keeps, letting
// the Snapshots stage resolve "which file holds block N" without re-walking a directory
// listing on every lookup.
type SegmentSet struct {
	tree *btree.BTreeG[segmentEntry]
}

func NewSegmentSet() *SegmentSet {
	return &SegmentSet{tree: btree.NewBTreeG(segmentLess)}
}

// AddFile registers path if its base name is a canonical segment file name, reporting
// whether it was recognized and added.
func (s *SegmentSet) AddFile(path string) bool {
	kind, from, to, ok := ParseSegmentFileName(filepath.Base(path))
	if !ok {
		return false
	}
	s.tree.Set(segmentEntry{kind: kind, from: from, to: to, path: path})
	return true
}

// Find returns the path of the registered kind segment covering block, if any.
func (s *SegmentSet) Find(kind SegmentKind, block uint64) (string, bool) {
	var path string
	var found bool
	s.tree.Descend(segmentEntry{kind: kind, from: block}, func(e segmentEntry) bool {
		if e.kind != kind {
			return false
		}
		if block >= e.from && block < e.to {
			path, found = e.path, true
		}
		return false
	})
	return path, found
}

// Len reports how many segment files are registered.
func (s *SegmentSet) Len() int { return s.tree.Len() }
