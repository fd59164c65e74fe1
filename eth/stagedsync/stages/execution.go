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
	"github.com/erigontech/erigon-core/erigon-lib/chain"
	"github.com/erigontech/erigon-core/erigon-lib/kv"
	"github.com/erigontech/erigon-core/erigon-lib/types"
	"github.com/erigontech/erigon-core/core"
	"github.com/erigontech/erigon-core/core/state"
	"github.com/erigontech/erigon-core/core/state/commitment"
	"github.com/erigontech/erigon-core/core/vm"
	"github.com/erigontech/erigon-core/eth/stagedsync"
)

// NewExecutionStage builds the Execution stage (spec §4.E, the pipeline's centerpiece): run
// every transaction in each block through core.StateTransition against a fresh
// IntraBlockState, verify the resulting root against the header, and persist receipts. evm
// is the external EVM collaborator (spec §1 Non-goals: bytecode interpretation lives outside
// this module), supplied by the caller rather than constructed here.
func NewExecutionStage(config *chain.Config, evm vm.Evm, mode commitment.Mode) *stagedsync.Stage {
	return &stagedsync.Stage{
		ID:          stagedsync.Execution,
		Description: "Apply transactions and verify the resulting state root",
		Execute:     executionExecute(config, evm, mode),
		Unwind:      executionUnwind,
	}
}

func executionExecute(config *chain.Config, evm vm.Evm, mode commitment.Mode) stagedsync.ExecuteFunc {
	return func(rc *stagedsync.Context, s *stagedsync.StageState, tx kv.RwTx, toBlock uint64) (uint64, bool, error) {
		var processed uint64
		for num := s.BlockNumber + 1; num <= toBlock; num++ {
			if cancelled(rc) {
				break
			}
			ok, err := executeOneBlock(config, evm, mode, tx, num)
			if err != nil {
				return processed, false, err
			}
			if !ok {
				break
			}
			processed++
		}
		return processed, processed == 0, nil
	}
}

func executeOneBlock(config *chain.Config, evm vm.Evm, mode commitment.Mode, tx kv.RwTx, num uint64) (bool, error) {
	hashBytes, found, err := tx.GetOne(kv.HeaderCanonical, blockNumberKey(num))
	if err != nil {
		return false, errStageIO("Execution", num, err)
	}
	if !found {
		return false, nil
	}
	hash := libcommon.BytesToHash(hashBytes)
	key := canonicalKey(num, hash)

	headerEnc, found, err := tx.GetOne(kv.Headers, key)
	if err != nil {
		return false, errStageIO("Execution", num, err)
	}
	if !found {
		return false, nil
	}
	header, err := types.DecodeHeaderFromStorage(headerEnc)
	if err != nil {
		return false, errStageIO("Execution", num, err)
	}

	bodyEnc, found, err := tx.GetOne(kv.Bodies, key)
	if err != nil {
		return false, errStageIO("Execution", num, err)
	}
	if !found {
		return false, nil
	}
	body, err := types.DecodeBodyForStorage(bodyEnc)
	if err != nil {
		return false, errStageIO("Execution", num, err)
	}

	sendersPacked, found, err := tx.GetOne(kv.Senders, key)
	if err != nil {
		return false, errStageIO("Execution", num, err)
	}
	if !found {
		return false, nil
	}
	senders, err := unpackSenders(sendersPacked, len(body.TxHashes))
	if err != nil {
		return false, errStageIO("Execution", num, err)
	}

	txns := make([]types.Transaction, len(body.TxHashes))
	for i := range txns {
		enc, found, err := tx.GetOne(kv.EthTx, txIDKey(body.BaseTxId+uint64(i)))
		if err != nil {
			return false, errStageIO("Execution", num, err)
		}
		if !found {
			return false, fmt.Errorf("stages: Execution, block %d: missing EthTx entry %d", num, body.BaseTxId+uint64(i))
		}
		txn, err := types.DecodeTransaction(enc)
		if err != nil {
			return false, errStageIO("Execution", num, err)
		}
		txns[i] = txn
	}

	reader := state.NewPlainStateReader(tx)
	ibs := state.New(reader)
	cm := commitment.New(mode)
	writer := state.NewPlainStateWriter(tx, cm)

	blockCtx := vm.BlockContext{
		Coinbase:    header.Coinbase,
		BlockNumber: header.Number,
		Time:        header.Time,
		GasLimit:    header.GasLimit,
		BaseFee:     header.BaseFee,
	}

	st := core.NewStateTransition(config, evm, header)

	var cumulativeGasUsed uint64
	receipts := make(types.Receipts, 0, len(txns))
	for i, txn := range txns {
		receipt, err := st.ApplyTransaction(ibs, header, txn, senders[i], blockCtx, i, cumulativeGasUsed)
		if err != nil {
			return false, fmt.Errorf("stages: Execution, block %d tx %d: %w", num, i, err)
		}
		receipt.TxHash = body.TxHashes[i]
		receipt.BlockHash = hash
		cumulativeGasUsed = receipt.CumulativeGasUsed
		receipts = append(receipts, receipt)
	}

	rules := config.Rules(header.Number, header.Time)
	if rules.IsShanghai && len(body.Withdrawals) > 0 {
		core.ApplyWithdrawals(ibs, body.Withdrawals)
	}

	ibs.Finalise(rules.IsEIP155)
	if err := ibs.CommitBlock(writer); err != nil {
		return false, errStageIO("Execution", num, err)
	}

	if got := cm.ComputeRoot(); mode != commitment.Disabled && got != header.Root {
		return false, fmt.Errorf("%w: block %d, have %x, want %x", core.ErrStateRootMismatch, num, got, header.Root)
	}
	if got := receipts.Bloom(); got != header.Bloom {
		return false, fmt.Errorf("%w: block %d", core.ErrLogsBloomMismatch, num)
	}

	if err := tx.Put(kv.BlockReceipts, key, types.EncodeReceipts(receipts)); err != nil {
		return false, errStageIO("Execution", num, err)
	}
	return true, nil
}

func unpackSenders(packed []byte, count int) ([]libcommon.Address, error) {
	if len(packed) != count*addressLen {
		return nil, fmt.Errorf("stages: senders packing mismatch, have %d bytes for %d addresses", len(packed), count)
	}
	out := make([]libcommon.Address, count)
	for i := range out {
		out[i] = libcommon.BytesToAddress(packed[i*addressLen : (i+1)*addressLen])
	}
	return out, nil
}

func executionUnwind(_ *stagedsync.Context, s *stagedsync.StageState, tx kv.RwTx, unwindTo uint64) error {
	for num := s.BlockNumber; num > unwindTo; num-- {
		hashBytes, found, err := tx.GetOne(kv.HeaderCanonical, blockNumberKey(num))
		if err != nil {
			return errStageIO("Execution unwind", num, err)
		}
		if !found {
			continue
		}
		key := canonicalKey(num, libcommon.BytesToHash(hashBytes))
		if err := tx.Delete(kv.BlockReceipts, key); err != nil {
			return errStageIO("Execution unwind", num, err)
		}
	}
	return nil
}
