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
	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/kv"
	"github.com/erigontech/erigon-core/eth/stagedsync"
)

// NewBlockHashesStage builds the BlockHashes stage (spec §4.E): derives HeaderNumber, the
// hash->number inverse of HeaderCanonical, so a caller holding only a hash (e.g. a header
// referenced as a parent) can find its number without a table scan.
func NewBlockHashesStage() *stagedsync.Stage {
	return &stagedsync.Stage{
		ID:          stagedsync.BlockHashes,
		Description: "Build the header-hash to block-number index",
		Execute:     blockHashesExecute,
		Unwind:      blockHashesUnwind,
	}
}

func blockHashesExecute(rc *stagedsync.Context, s *stagedsync.StageState, tx kv.RwTx, toBlock uint64) (uint64, bool, error) {
	var processed uint64
	for num := s.BlockNumber + 1; num <= toBlock; num++ {
		if cancelled(rc) {
			break
		}
		hash, found, err := tx.GetOne(kv.HeaderCanonical, blockNumberKey(num))
		if err != nil {
			return processed, false, errStageIO("BlockHashes", num, err)
		}
		if !found {
			break
		}
		if err := tx.Put(kv.HeaderNumber, hash, blockNumberKey(num)); err != nil {
			return processed, false, errStageIO("BlockHashes", num, err)
		}
		processed++
	}
	return processed, processed == 0, nil
}

func blockHashesUnwind(_ *stagedsync.Context, s *stagedsync.StageState, tx kv.RwTx, unwindTo uint64) error {
	for num := s.BlockNumber; num > unwindTo; num-- {
		hash, found, err := tx.GetOne(kv.HeaderCanonical, blockNumberKey(num))
		if err != nil {
			return errStageIO("BlockHashes unwind", num, err)
		}
		if !found {
			continue
		}
		if err := tx.Delete(kv.HeaderNumber, libcommon.CopyBytes(hash)); err != nil {
			return errStageIO("BlockHashes unwind", num, err)
		}
	}
	return nil
}
