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

package stages

import (
	"fmt"
	"path/filepath"

	"github.com/erigontech/erigon-core/erigon-lib/kv"
	"github.com/erigontech/erigon-core/erigon-lib/recsplit/eliasfano32"
	"github.com/erigontech/erigon-core/erigon-lib/seg"
	"github.com/erigontech/erigon-core/erigon-lib/types"
	"github.com/erigontech/erigon-core/eth/stagedsync"
	"github.com/erigontech/erigon-core/turbo/snapshotsync"
)

// SegmentBlockSource is a BlockSource reading a contiguous block range out of one
// immutable .seg file (spec §4.A/§6): block fromBlock+i is the i-th word, with an
// erigon-lib/recsplit/eliasfano32 index over each word's bit offset giving O(1)/O(log n)
// random access into the otherwise sequential Huffman bitstream instead of a linear scan.
type SegmentBlockSource struct {
	dec       *seg.Decompressor
	mapped    *seg.MappedDecompressor
	offsets   *eliasfano32.EliasFano
	fromBlock uint64
}

// NewSegmentBlockSource opens a segment holding blocks [fromBlock, fromBlock+wordsCount).
func NewSegmentBlockSource(data []byte, fromBlock uint64) (*SegmentBlockSource, error) {
	dec, err := seg.OpenDecompressor(data)
	if err != nil {
		return nil, fmt.Errorf("stages: Snapshots, opening segment: %w", err)
	}
	return &SegmentBlockSource{dec: dec, fromBlock: fromBlock}, nil
}

// NewSegmentBlockSourceFromFile mmaps a `<kind>-<fromBlock:06>-<toBlock:06>.seg` file
// (spec §6) straight off disk and derives fromBlock from its canonical name via
// turbo/snapshotsync.ParseSegmentFileName, rather than requiring the caller to already
// know the range. Callers must eventually call Close to release the mapping.
func NewSegmentBlockSourceFromFile(path string) (*SegmentBlockSource, error) {
	_, fromBlock, _, ok := snapshotsync.ParseSegmentFileName(filepath.Base(path))
	if !ok {
		return nil, fmt.Errorf("stages: Snapshots, %s is not a canonical segment file name", path)
	}
	mapped, err := seg.OpenSegmentFile(path)
	if err != nil {
		return nil, fmt.Errorf("stages: Snapshots, mmapping %s: %w", path, err)
	}
	return &SegmentBlockSource{dec: mapped.Decompressor, mapped: mapped, fromBlock: fromBlock}, nil
}

// NewSegmentBlockSourceFromSet resolves which registered segment of kind covers block via
// set.Find (turbo/snapshotsync.SegmentSet), then mmaps it -- the multi-file counterpart to
// NewSegmentBlockSourceFromFile for callers tracking more than one segment on disk.
func NewSegmentBlockSourceFromSet(set *snapshotsync.SegmentSet, kind snapshotsync.SegmentKind, block uint64) (*SegmentBlockSource, error) {
	path, ok := set.Find(kind, block)
	if !ok {
		return nil, fmt.Errorf("stages: Snapshots, no %s segment registered for block %d", kind, block)
	}
	return NewSegmentBlockSourceFromFile(path)
}

// Close releases the mmap backing this source, if it was opened from a file. A source
// built over a caller-supplied byte slice (NewSegmentBlockSource) has nothing to
// release and Close is a no-op.
func (s *SegmentBlockSource) Close() error {
	if s.mapped == nil {
		return nil
	}
	return s.mapped.Close()
}

// IndexOffsets builds (or rebuilds) the companion Elias-Fano index from a Compressor's
// reported word-bit-offsets. Callers that built the segment themselves already hold
// these; callers opening a pre-existing file on disk would instead need to persist and
// reload the index alongside the .seg -- spec's Non-goals put the on-disk index file
// format itself out of scope, so this module takes the offsets as a parameter rather
// than reading a second file.
func (s *SegmentBlockSource) IndexOffsets(wordBitOffsets []uint64) error {
	if len(wordBitOffsets) == 0 {
		s.offsets = nil
		return nil
	}
	max := wordBitOffsets[len(wordBitOffsets)-1]
	ef, err := eliasfano32.Build(wordBitOffsets, max)
	if err != nil {
		return fmt.Errorf("stages: Snapshots, indexing segment: %w", err)
	}
	s.offsets = ef
	return nil
}

// BlockByNumber implements BlockSource by seeking directly to the requested block's
// word via the Elias-Fano offset index (falling back to a fresh sequential Getter when
// no index was built, e.g. immediately after NewSegmentBlockSource with no
// IndexOffsets call).
func (s *SegmentBlockSource) BlockByNumber(number uint64) (*types.Block, bool, error) {
	if number < s.fromBlock || number-s.fromBlock >= s.dec.WordsCount() {
		return nil, false, nil
	}
	idx := number - s.fromBlock

	g := s.dec.MakeGetter()
	if s.offsets != nil {
		g.SeekWord(idx, s.offsets.Get(idx))
	} else {
		for i := uint64(0); i < idx; i++ {
			if _, err := g.Next(); err != nil {
				return nil, false, fmt.Errorf("stages: Snapshots, skipping to block %d: %w", number, err)
			}
		}
	}

	wordBytes, err := g.Next()
	if err != nil {
		return nil, false, fmt.Errorf("stages: Snapshots, reading block %d: %w", number, err)
	}
	block, err := types.DecodeBlockFromSnapshot(wordBytes)
	if err != nil {
		return nil, false, fmt.Errorf("stages: Snapshots, decoding block %d: %w", number, err)
	}
	return block, true, nil
}

// NewSnapshotsStage builds the optional Snapshots prefix stage (spec §4.E): of the
// downstream stages only Finish lists it as a dependency (Headers/Bodies take their
// BlockSource from the caller, not from stage state), so its only job in this pipeline is to confirm the
// configured segments cover the requested range before the rest of the pipeline is
// told to run that far, and to record its own progress the way every stage does.
func NewSnapshotsStage(src *SegmentBlockSource) *stagedsync.Stage {
	return &stagedsync.Stage{
		ID:          stagedsync.Snapshots,
		Description: "Verify immutable segment coverage for the requested block range",
		Execute:     snapshotsExecute(src),
	}
}

func snapshotsExecute(src *SegmentBlockSource) stagedsync.ExecuteFunc {
	return func(rc *stagedsync.Context, s *stagedsync.StageState, tx kv.RwTx, toBlock uint64) (uint64, bool, error) {
		var processed uint64
		for num := s.BlockNumber + 1; num <= toBlock; num++ {
			if cancelled(rc) {
				break
			}
			if _, found, err := src.BlockByNumber(num); err != nil {
				return processed, false, err
			} else if !found {
				break
			}
			processed++
		}
		return processed, processed == 0, nil
	}
}
