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

// NewHeadersStage builds the Headers stage (spec §4.E): pull each block's header from src in
// order and write it into the Headers/HeaderCanonical tables. It stops (without error) the
// first time src has no block at the next number, leaving toBlock for a later run once more
// blocks are available — the same "stage caught up to its source" idiom every other stage
// here follows.
func NewHeadersStage(src BlockSource) *stagedsync.Stage {
	return &stagedsync.Stage{
		ID:          stagedsync.Headers,
		Description: "Write downloaded headers into canonical storage",
		Execute:     headersExecute(src),
		Unwind:      headersUnwind,
	}
}

func headersExecute(src BlockSource) stagedsync.ExecuteFunc {
	return func(rc *stagedsync.Context, s *stagedsync.StageState, tx kv.RwTx, toBlock uint64) (uint64, bool, error) {
		var processed uint64
		for num := s.BlockNumber + 1; num <= toBlock; num++ {
			if cancelled(rc) {
				break
			}
			block, found, err := src.BlockByNumber(num)
			if err != nil {
				return processed, false, errStageIO("Headers", num, err)
			}
			if !found {
				break
			}
			hash := block.Header.Hash()
			if err := tx.Put(kv.Headers, canonicalKey(num, hash), block.Header.EncodeForStorage()); err != nil {
				return processed, false, errStageIO("Headers", num, err)
			}
			if err := tx.Put(kv.HeaderCanonical, blockNumberKey(num), hash.Bytes()); err != nil {
				return processed, false, errStageIO("Headers", num, err)
			}
			processed++
		}
		return processed, processed == 0, nil
	}
}

func headersUnwind(_ *stagedsync.Context, s *stagedsync.StageState, tx kv.RwTx, unwindTo uint64) error {
	for num := s.BlockNumber; num > unwindTo; num-- {
		hash, found, err := tx.GetOne(kv.HeaderCanonical, blockNumberKey(num))
		if err != nil {
			return errStageIO("Headers unwind", num, err)
		}
		if !found {
			continue
		}
		if err := tx.Delete(kv.Headers, canonicalKey(num, libcommon.BytesToHash(hash))); err != nil {
			return errStageIO("Headers unwind", num, err)
		}
		if err := tx.Delete(kv.HeaderCanonical, blockNumberKey(num)); err != nil {
			return errStageIO("Headers unwind", num, err)
		}
	}
	return nil
}
