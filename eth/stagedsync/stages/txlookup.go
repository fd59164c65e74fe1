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
	"github.com/erigontech/erigon-core/erigon-lib/types"
	"github.com/erigontech/erigon-core/eth/stagedsync"
)

// NewTxLookupStage builds the TxLookup stage (spec §4.E/§3): index every transaction hash in
// Bodies back to its block number, the lookup eth_getTransactionReceipt-style calls need.
func NewTxLookupStage() *stagedsync.Stage {
	return &stagedsync.Stage{
		ID:          stagedsync.TxLookup,
		Description: "Index transaction hash to block number",
		Execute:     txLookupExecute,
		Unwind:      txLookupUnwind,
	}
}

func txLookupExecute(rc *stagedsync.Context, s *stagedsync.StageState, tx kv.RwTx, toBlock uint64) (uint64, bool, error) {
	var processed uint64
	for num := s.BlockNumber + 1; num <= toBlock; num++ {
		if cancelled(rc) {
			break
		}
		hash, found, err := tx.GetOne(kv.HeaderCanonical, blockNumberKey(num))
		if err != nil {
			return processed, false, errStageIO("TxLookup", num, err)
		}
		if !found {
			break
		}
		bodyEnc, found, err := tx.GetOne(kv.Bodies, canonicalKey(num, libcommon.BytesToHash(hash)))
		if err != nil {
			return processed, false, errStageIO("TxLookup", num, err)
		}
		if !found {
			break
		}
		body, err := types.DecodeBodyForStorage(bodyEnc)
		if err != nil {
			return processed, false, errStageIO("TxLookup", num, err)
		}
		for _, txHash := range body.TxHashes {
			if err := tx.Put(kv.TxLookup, txHash.Bytes(), blockNumberKey(num)); err != nil {
				return processed, false, errStageIO("TxLookup", num, err)
			}
		}
		processed++
	}
	return processed, processed == 0, nil
}

func txLookupUnwind(_ *stagedsync.Context, s *stagedsync.StageState, tx kv.RwTx, unwindTo uint64) error {
	for num := s.BlockNumber; num > unwindTo; num-- {
		hash, found, err := tx.GetOne(kv.HeaderCanonical, blockNumberKey(num))
		if err != nil {
			return errStageIO("TxLookup unwind", num, err)
		}
		if !found {
			continue
		}
		bodyEnc, found, err := tx.GetOne(kv.Bodies, canonicalKey(num, libcommon.BytesToHash(hash)))
		if err != nil {
			return errStageIO("TxLookup unwind", num, err)
		}
		if !found {
			continue
		}
		body, err := types.DecodeBodyForStorage(bodyEnc)
		if err != nil {
			return errStageIO("TxLookup unwind", num, err)
		}
		for _, txHash := range body.TxHashes {
			if err := tx.Delete(kv.TxLookup, txHash.Bytes()); err != nil {
				return errStageIO("TxLookup unwind", num, err)
			}
		}
	}
	return nil
}
