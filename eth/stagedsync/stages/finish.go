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

	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/kv"
	"github.com/erigontech/erigon-core/erigon-lib/types"
	"github.com/erigontech/erigon-core/core"
	"github.com/erigontech/erigon-core/eth/stagedsync"
)

// finishDependencies mirrors stagedsync's own dependsOn[Finish] entry; duplicated here (that
// map is unexported) since Finish needs to read every other stage's progress to know how far
// it is safe to advance.
var finishDependencies = []stagedsync.StageID{
	stagedsync.Snapshots, stagedsync.Headers, stagedsync.BlockHashes, stagedsync.Bodies,
	stagedsync.Senders, stagedsync.Execution, stagedsync.TxLookup,
}

// HeadBlockKey/HeadHeaderKey are the kv.Config scalar entries Finish advances to the new
// canonical head (SPEC_FULL §4.E Finish-stage detail), the seam rpc/ethapi.API.BlockNumber
// reads from rather than re-walking SyncStageProgress itself.
const (
	HeadBlockKey  = "HeadBlockNumber"
	HeadHeaderKey = "HeadHeaderHash"
)

// NewFinishStage builds the Finish stage (spec §4.E): the pipeline's terminal stage, advanced
// only up to the slowest of its dependencies. Beyond bookkeeping the checkpoint, it advances
// the head pointers and re-checks each newly finished block's logs bloom against its header
// (SPEC_FULL's Finish-stage detail) -- Execution already rejects a mismatch at commit time,
// this is a second, cheap line of defense over the already-committed range. A fuller build
// would also trigger pruning of history tables below the retained window here; this module's
// Non-goals (spec §1) exclude that.
func NewFinishStage() *stagedsync.Stage {
	return &stagedsync.Stage{
		ID:          stagedsync.Finish,
		Description: "Mark the highest block fully processed by every prior stage",
		Execute:     finishExecute,
	}
}

func finishExecute(_ *stagedsync.Context, s *stagedsync.StageState, tx kv.RwTx, toBlock uint64) (uint64, bool, error) {
	target := toBlock
	for _, dep := range finishDependencies {
		progress, err := stagedsync.GetProgress(tx, dep)
		if err != nil {
			return 0, false, err
		}
		if progress < target {
			target = progress
		}
	}
	if target <= s.BlockNumber {
		return 0, true, nil
	}

	for num := s.BlockNumber + 1; num <= target; num++ {
		if err := recheckLogsBloom(tx, num); err != nil {
			return 0, false, err
		}
	}
	if err := advanceHead(tx, target); err != nil {
		return 0, false, err
	}
	return target - s.BlockNumber, true, nil
}

func recheckLogsBloom(tx kv.RwTx, num uint64) error {
	hashBytes, found, err := tx.GetOne(kv.HeaderCanonical, blockNumberKey(num))
	if err != nil || !found {
		return err
	}
	hash := libcommon.BytesToHash(hashBytes)
	key := canonicalKey(num, hash)

	headerEnc, found, err := tx.GetOne(kv.Headers, key)
	if err != nil || !found {
		return err
	}
	header, err := types.DecodeHeaderFromStorage(headerEnc)
	if err != nil {
		return errStageIO("Finish", num, err)
	}

	receiptsEnc, found, err := tx.GetOne(kv.BlockReceipts, key)
	if err != nil || !found {
		return err
	}
	receipts, err := types.DecodeReceipts(receiptsEnc)
	if err != nil {
		return errStageIO("Finish", num, err)
	}
	if got := receipts.Bloom(); got != header.Bloom {
		return fmt.Errorf("%w: block %d", core.ErrLogsBloomMismatch, num)
	}
	return nil
}

func advanceHead(tx kv.RwTx, num uint64) error {
	hashBytes, found, err := tx.GetOne(kv.HeaderCanonical, blockNumberKey(num))
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if err := tx.Put(kv.Config, []byte(HeadBlockKey), blockNumberKey(num)); err != nil {
		return err
	}
	return tx.Put(kv.Config, []byte(HeadHeaderKey), hashBytes)
}
