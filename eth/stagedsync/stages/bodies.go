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
	"encoding/binary"

	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/kv"
	"github.com/erigontech/erigon-core/erigon-lib/types"
	"github.com/erigontech/erigon-core/eth/stagedsync"
)

// lastTxIDKey is a reserved Config-table scalar: the next free id the Bodies stage will
// assign to an EthTx entry (spec §3: "tx_id is an auto-increment id assigned when the body
// is written").
var lastTxIDKey = []byte("lastTxId")

func readLastTxID(tx kv.Getter) (uint64, error) {
	v, found, err := tx.GetOne(kv.Config, lastTxIDKey)
	if err != nil || !found || len(v) != 8 {
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

func writeLastTxID(tx kv.RwTx, id uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return tx.Put(kv.Config, lastTxIDKey, buf[:])
}

// NewBodiesStage builds the Bodies stage (spec §4.E): for each header already written by
// Headers, fetch the matching block from src, assign its transactions sequential ids in the
// EthTx table, and record the block's BodyForStorage (base id, tx hashes, withdrawals).
func NewBodiesStage(src BlockSource) *stagedsync.Stage {
	return &stagedsync.Stage{
		ID:          stagedsync.Bodies,
		Description: "Write transaction bodies and assign EthTx ids",
		Execute:     bodiesExecute(src),
		Unwind:      bodiesUnwind,
	}
}

func bodiesExecute(src BlockSource) stagedsync.ExecuteFunc {
	return func(rc *stagedsync.Context, s *stagedsync.StageState, tx kv.RwTx, toBlock uint64) (uint64, bool, error) {
		nextTxID, err := readLastTxID(tx)
		if err != nil {
			return 0, false, err
		}
		var processed uint64
		for num := s.BlockNumber + 1; num <= toBlock; num++ {
			if cancelled(rc) {
				break
			}
			hash, found, err := tx.GetOne(kv.HeaderCanonical, blockNumberKey(num))
			if err != nil {
				return processed, false, errStageIO("Bodies", num, err)
			}
			if !found {
				break
			}
			block, found, err := src.BlockByNumber(num)
			if err != nil {
				return processed, false, errStageIO("Bodies", num, err)
			}
			if !found {
				break
			}

			body := &types.BodyForStorage{BaseTxId: nextTxID, Withdrawals: block.Withdrawals}
			for _, txn := range block.Transactions {
				enc := types.MarshalBinary(txn)
				if err := tx.Put(kv.EthTx, txIDKey(nextTxID), enc); err != nil {
					return processed, false, errStageIO("Bodies", num, err)
				}
				body.TxHashes = append(body.TxHashes, types.TxHash(txn))
				nextTxID++
			}
			if err := tx.Put(kv.Bodies, canonicalKey(num, libcommon.BytesToHash(hash)), body.EncodeForStorage()); err != nil {
				return processed, false, errStageIO("Bodies", num, err)
			}
			processed++
		}
		if err := writeLastTxID(tx, nextTxID); err != nil {
			return processed, false, err
		}
		return processed, processed == 0, nil
	}
}

func bodiesUnwind(_ *stagedsync.Context, s *stagedsync.StageState, tx kv.RwTx, unwindTo uint64) error {
	for num := s.BlockNumber; num > unwindTo; num-- {
		hash, found, err := tx.GetOne(kv.HeaderCanonical, blockNumberKey(num))
		if err != nil {
			return errStageIO("Bodies unwind", num, err)
		}
		if !found {
			continue
		}
		key := canonicalKey(num, libcommon.BytesToHash(hash))
		enc, found, err := tx.GetOne(kv.Bodies, key)
		if err != nil {
			return errStageIO("Bodies unwind", num, err)
		}
		if found {
			body, err := types.DecodeBodyForStorage(enc)
			if err != nil {
				return errStageIO("Bodies unwind", num, err)
			}
			for i := range body.TxHashes {
				if err := tx.Delete(kv.EthTx, txIDKey(body.BaseTxId+uint64(i))); err != nil {
					return errStageIO("Bodies unwind", num, err)
				}
			}
		}
		if err := tx.Delete(kv.Bodies, key); err != nil {
			return errStageIO("Bodies unwind", num, err)
		}
	}
	return nil
}

func txIDKey(id uint64) []byte {
	buf := make([]byte, 8)
	putUint64BE(buf, id)
	return buf
}
