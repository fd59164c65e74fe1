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

// Package stages holds the concrete stage implementations driven by stagedsync.Sync.
// Headers/Bodies get their raw material from a BlockSource rather than a P2P downloader or
// the erigon-lib/seg segment reader directly. MemoryBlockSource (below) and
// SegmentBlockSource (snapshots.go) are the implementations here; there is no network-backed one.
package stages

import (
	"fmt"

	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/types"
	"github.com/erigontech/erigon-core/eth/stagedsync"
)

// cancelled reports whether rc's run should stop between blocks. Context.Cancel is the only
// exported hook for this (spec §5: "stages poll a cancellation flag between blocks"); every
// stage's Execute loop in this package calls this instead of duplicating the select.
func cancelled(rc *stagedsync.Context) bool {
	if rc == nil || rc.Cancel == nil {
		return false
	}
	select {
	case <-rc.Cancel:
		return true
	default:
		return false
	}
}

// BlockSource answers "what is block N" for the Headers and Bodies stages. Implementations
// might read from erigon-lib/seg immutable segments (bulk historical range) or hold an
// in-memory fixture (tests, the state-test replay harness in tests/).
type BlockSource interface {
	BlockByNumber(number uint64) (*types.Block, bool, error)
}

// MemoryBlockSource is a BlockSource over a plain slice, indexed by block number == index;
// used by tests and by any caller that has already materialized the range it wants synced.
type MemoryBlockSource struct {
	Blocks []*types.Block
}

func (m *MemoryBlockSource) BlockByNumber(number uint64) (*types.Block, bool, error) {
	if number >= uint64(len(m.Blocks)) {
		return nil, false, nil
	}
	b := m.Blocks[number]
	if b == nil {
		return nil, false, nil
	}
	return b, true, nil
}

// canonicalKey builds the block_num(8 BE) + hash(32) composite key spec §3 assigns to
// Headers/Bodies.
func canonicalKey(number uint64, hash libcommon.Hash) []byte {
	k := make([]byte, 8+32)
	putUint64BE(k, number)
	copy(k[8:], hash.Bytes())
	return k
}

func putUint64BE(buf []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
}

func blockNumberKey(number uint64) []byte {
	buf := make([]byte, 8)
	putUint64BE(buf, number)
	return buf
}

func errStageIO(stage string, number uint64, err error) error {
	return fmt.Errorf("stages: %s stage, block %d: %w", stage, number, err)
}
