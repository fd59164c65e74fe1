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
	"runtime"

	"golang.org/x/sync/errgroup"

	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/kv"
	"github.com/erigontech/erigon-core/erigon-lib/types"
	"github.com/erigontech/erigon-core/eth/stagedsync"
)

const addressLen = 20

// NewSendersStage builds the Senders stage (spec §4.D/§4.E): recover each transaction's
// sender via ECDSA public-key recovery and persist the packed list, so Execution never
// redoes the recovery itself. Recovery within a block fans out across a worker pool sized to
// GOMAXPROCS, since each transaction's recovery is independent of every other one.
func NewSendersStage() *stagedsync.Stage {
	return &stagedsync.Stage{
		ID:          stagedsync.Senders,
		Description: "Recover transaction sender addresses",
		Execute:     sendersExecute,
		Unwind:      sendersUnwind,
	}
}

func sendersExecute(rc *stagedsync.Context, s *stagedsync.StageState, tx kv.RwTx, toBlock uint64) (uint64, bool, error) {
	var processed uint64
	for num := s.BlockNumber + 1; num <= toBlock; num++ {
		if cancelled(rc) {
			break
		}
		hash, found, err := tx.GetOne(kv.HeaderCanonical, blockNumberKey(num))
		if err != nil {
			return processed, false, errStageIO("Senders", num, err)
		}
		if !found {
			break
		}
		bodyKey := canonicalKey(num, libcommon.BytesToHash(hash))
		bodyEnc, found, err := tx.GetOne(kv.Bodies, bodyKey)
		if err != nil {
			return processed, false, errStageIO("Senders", num, err)
		}
		if !found {
			break
		}
		body, err := types.DecodeBodyForStorage(bodyEnc)
		if err != nil {
			return processed, false, errStageIO("Senders", num, err)
		}

		txCount := len(body.TxHashes)
		txns := make([]types.Transaction, txCount)
		for i := 0; i < txCount; i++ {
			enc, found, err := tx.GetOne(kv.EthTx, txIDKey(body.BaseTxId+uint64(i)))
			if err != nil {
				return processed, false, errStageIO("Senders", num, err)
			}
			if !found {
				return processed, false, fmt.Errorf("stages: Senders, block %d: missing EthTx entry %d", num, body.BaseTxId+uint64(i))
			}
			parsed, err := types.DecodeTransaction(enc)
			if err != nil {
				return processed, false, errStageIO("Senders", num, err)
			}
			txns[i] = parsed
		}

		senders, err := recoverSenders(txns)
		if err != nil {
			return processed, false, errStageIO("Senders", num, err)
		}

		packed := make([]byte, 0, txCount*addressLen)
		for _, addr := range senders {
			packed = append(packed, addr.Bytes()...)
		}
		if err := tx.Put(kv.Senders, bodyKey, packed); err != nil {
			return processed, false, errStageIO("Senders", num, err)
		}
		processed++
	}
	return processed, processed == 0, nil
}

// recoverSenders runs ECDSA recovery for every transaction in txns concurrently, capped at
// GOMAXPROCS workers (spec's expanded §4.E: "Senders recovers sender addresses, optionally
// using a worker pool").
func recoverSenders(txns []types.Transaction) ([]libcommon.Address, error) {
	out := make([]libcommon.Address, len(txns))
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, txn := range txns {
		i, txn := i, txn
		g.Go(func() error {
			addr, err := types.Sender(txn)
			if err != nil {
				return fmt.Errorf("tx %d: %w", i, err)
			}
			out[i] = addr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func sendersUnwind(_ *stagedsync.Context, s *stagedsync.StageState, tx kv.RwTx, unwindTo uint64) error {
	for num := s.BlockNumber; num > unwindTo; num-- {
		hash, found, err := tx.GetOne(kv.HeaderCanonical, blockNumberKey(num))
		if err != nil {
			return errStageIO("Senders unwind", num, err)
		}
		if !found {
			continue
		}
		if err := tx.Delete(kv.Senders, canonicalKey(num, libcommon.BytesToHash(hash))); err != nil {
			return errStageIO("Senders unwind", num, err)
		}
	}
	return nil
}
