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

// Package ethapi is the query-routing seam spec §6 requires the core to expose ("the core
// must support query routing for" the thirteen read methods listed there), without the HTTP
// framing or method-dispatch table that belongs to the out-of-scope JSON-RPC server itself
// (spec §1). Every method here reads through read-only kv.Tx views and core/state; none of
// them mutate core state (spec §6).
package ethapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/chain"
	"github.com/erigontech/erigon-core/erigon-lib/kv"
	"github.com/erigontech/erigon-core/erigon-lib/types"
	"github.com/erigontech/erigon-core/core/state"
	"github.com/erigontech/erigon-core/core/vm"
	"github.com/erigontech/erigon-core/eth/stagedsync/stages"
)

// ErrNotFound is returned by lookups with no error-taxonomy home of their own (spec §7 has no
// entry for "the caller asked about a block/tx that doesn't exist" — that's a query-routing
// concern, not state-transition or staged-sync).
var ErrNotFound = errors.New("ethapi: not found")

// API is the query-routing surface bound to one KV store; callers construct it once and reuse
// it across requests. evm is only required for Call/EstimateGas.
type API struct {
	db     kv.RoDB
	config *chain.Config
	evm    vm.Evm
}

func NewAPI(db kv.RoDB, config *chain.Config, evm vm.Evm) *API {
	return &API{db: db, config: config, evm: evm}
}

// view runs fn against a fresh read-only transaction. kv.RoDB exposes only BeginRo/Close (its
// RwDB counterpart is the one with a View convenience method), so every read method here opens
// and rolls back its own transaction rather than relying on a mutation-capable helper.
func (a *API) view(ctx context.Context, fn func(tx kv.Tx) error) error {
	tx, err := a.db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(tx)
}

// BlockNumber implements eth_blockNumber: the highest block number every pipeline stage has
// fully processed (stages.HeadBlockKey, written by the Finish stage).
func (a *API) BlockNumber(ctx context.Context) (uint64, error) {
	var num uint64
	err := a.view(ctx, func(tx kv.Tx) error {
		enc, found, err := tx.GetOne(kv.Config, []byte(stages.HeadBlockKey))
		if err != nil || !found {
			return err
		}
		num = beUint64(enc)
		return nil
	})
	return num, err
}

// ChainId implements eth_chainId.
func (a *API) ChainId(context.Context) (*uint256.Int, error) {
	if a.config == nil || a.config.ChainID == nil {
		return uint256.NewInt(0), nil
	}
	id, overflow := uint256.FromBig(a.config.ChainID)
	if overflow {
		return nil, fmt.Errorf("ethapi: chain id overflows 256 bits")
	}
	return id, nil
}

// Syncing implements eth_syncing: Syncing is true while the Execution stage's progress
// (CurrentBlock) is below the Headers stage's progress (HighestBlock).
type SyncStatus struct {
	Syncing        bool
	CurrentBlock   uint64
	HighestBlock   uint64
}

func (a *API) Syncing(ctx context.Context) (SyncStatus, error) {
	var out SyncStatus
	err := a.view(ctx, func(tx kv.Tx) error {
		exec, err := progress(tx, "Execution")
		if err != nil {
			return err
		}
		headers, err := progress(tx, "Headers")
		if err != nil {
			return err
		}
		out.CurrentBlock = exec
		out.HighestBlock = headers
		out.Syncing = exec < headers
		return nil
	})
	return out, err
}

func progress(tx kv.Tx, stageName string) (uint64, error) {
	enc, found, err := tx.GetOne(kv.SyncStageProgress, []byte(stageName))
	if err != nil || !found || len(enc) == 0 {
		return 0, err
	}
	return beUint64(enc), nil
}

// GasPrice implements eth_gasPrice: the base fee of the current head block, or zero pre-1559.
func (a *API) GasPrice(ctx context.Context) (*uint256.Int, error) {
	header, err := a.headHeader(ctx)
	if err != nil || header == nil {
		return uint256.NewInt(0), err
	}
	if header.BaseFee == nil {
		return uint256.NewInt(0), nil
	}
	return header.BaseFee.Clone(), nil
}

// GetBalance implements eth_getBalance.
func (a *API) GetBalance(ctx context.Context, address libcommon.Address) (*uint256.Int, error) {
	var out *uint256.Int = uint256.NewInt(0)
	err := a.view(ctx, func(tx kv.Tx) error {
		account, err := state.NewPlainStateReader(tx).ReadAccountData(address)
		if err != nil || account == nil {
			return err
		}
		out = account.Balance.Clone()
		return nil
	})
	return out, err
}

// GetCode implements eth_getCode.
func (a *API) GetCode(ctx context.Context, address libcommon.Address) ([]byte, error) {
	var code []byte
	err := a.view(ctx, func(tx kv.Tx) error {
		var err error
		code, err = state.NewPlainStateReader(tx).ReadAccountCode(address, 0)
		return err
	})
	return code, err
}

// GetStorageAt implements eth_getStorageAt.
func (a *API) GetStorageAt(ctx context.Context, address libcommon.Address, slot libcommon.Hash) (libcommon.Hash, error) {
	var out libcommon.Hash
	err := a.view(ctx, func(tx kv.Tx) error {
		reader := state.NewPlainStateReader(tx)
		account, err := reader.ReadAccountData(address)
		if err != nil || account == nil {
			return err
		}
		enc, err := reader.ReadAccountStorage(address, account.Incarnation, &slot)
		if err != nil || enc == nil {
			return err
		}
		out = libcommon.BytesToHash(enc)
		return nil
	})
	return out, err
}

// GetTransactionByHash implements eth_getTransactionByHash.
func (a *API) GetTransactionByHash(ctx context.Context, hash libcommon.Hash) (types.Transaction, uint64, error) {
	var tx types.Transaction
	var blockNum uint64
	err := a.view(ctx, func(roTx kv.Tx) error {
		numEnc, found, err := roTx.GetOne(kv.TxLookup, hash.Bytes())
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		blockNum = beUint64(numEnc)

		hashBytes, found, err := roTx.GetOne(kv.HeaderCanonical, beBytes(blockNum))
		if err != nil || !found {
			return err
		}
		key := append(beBytes(blockNum), hashBytes...)
		bodyEnc, found, err := roTx.GetOne(kv.Bodies, key)
		if err != nil || !found {
			return err
		}
		body, err := types.DecodeBodyForStorage(bodyEnc)
		if err != nil {
			return err
		}
		for i, h := range body.TxHashes {
			if h != hash {
				continue
			}
			enc, found, err := roTx.GetOne(kv.EthTx, beBytes(body.BaseTxId+uint64(i)))
			if err != nil || !found {
				return err
			}
			tx, err = types.DecodeTransaction(enc)
			return err
		}
		return ErrNotFound
	})
	return tx, blockNum, err
}

// GetTransactionReceipt implements eth_getTransactionReceipt.
func (a *API) GetTransactionReceipt(ctx context.Context, hash libcommon.Hash) (*types.Receipt, error) {
	var out *types.Receipt
	err := a.view(ctx, func(tx kv.Tx) error {
		numEnc, found, err := tx.GetOne(kv.TxLookup, hash.Bytes())
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		blockNum := beUint64(numEnc)
		hashBytes, found, err := tx.GetOne(kv.HeaderCanonical, beBytes(blockNum))
		if err != nil || !found {
			return err
		}
		key := append(beBytes(blockNum), hashBytes...)
		receiptsEnc, found, err := tx.GetOne(kv.BlockReceipts, key)
		if err != nil || !found {
			return err
		}
		receipts, err := types.DecodeReceipts(receiptsEnc)
		if err != nil {
			return err
		}
		for _, r := range receipts {
			if r.TxHash == hash {
				out = r
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

// GetBlockByNumber implements eth_getBlockByNumber.
func (a *API) GetBlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	var out *types.Block
	err := a.view(ctx, func(tx kv.Tx) error {
		hashBytes, found, err := tx.GetOne(kv.HeaderCanonical, beBytes(number))
		if err != nil || !found {
			return err
		}
		out, err = readBlock(tx, number, libcommon.BytesToHash(hashBytes))
		return err
	})
	return out, err
}

// GetBlockByHash implements eth_getBlockByHash.
func (a *API) GetBlockByHash(ctx context.Context, hash libcommon.Hash) (*types.Block, error) {
	var out *types.Block
	err := a.view(ctx, func(tx kv.Tx) error {
		numEnc, found, err := tx.GetOne(kv.HeaderNumber, hash.Bytes())
		if err != nil || !found {
			return err
		}
		out, err = readBlock(tx, beUint64(numEnc), hash)
		return err
	})
	return out, err
}

func readBlock(tx kv.Tx, number uint64, hash libcommon.Hash) (*types.Block, error) {
	key := append(beBytes(number), hash.Bytes()...)
	headerEnc, found, err := tx.GetOne(kv.Headers, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	header, err := types.DecodeHeaderFromStorage(headerEnc)
	if err != nil {
		return nil, err
	}
	bodyEnc, found, err := tx.GetOne(kv.Bodies, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	body, err := types.DecodeBodyForStorage(bodyEnc)
	if err != nil {
		return nil, err
	}
	txns := make([]types.Transaction, len(body.TxHashes))
	for i := range txns {
		enc, found, err := tx.GetOne(kv.EthTx, beBytes(body.BaseTxId+uint64(i)))
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("ethapi: block %d missing EthTx entry %d", number, body.BaseTxId+uint64(i))
		}
		txn, err := types.DecodeTransaction(enc)
		if err != nil {
			return nil, err
		}
		txns[i] = txn
	}
	return &types.Block{Header: header, Transactions: txns, Withdrawals: body.Withdrawals}, nil
}

func (a *API) headHeader(ctx context.Context) (*types.Header, error) {
	num, err := a.BlockNumber(ctx)
	if err != nil || num == 0 {
		return nil, err
	}
	block, err := a.GetBlockByNumber(ctx, num)
	if err != nil || block == nil {
		return nil, err
	}
	return block.Header, nil
}

// CallArgs is the decoded eth_call/eth_estimateGas request payload.
type CallArgs struct {
	From     libcommon.Address
	To       *libcommon.Address
	Gas      uint64
	GasPrice *uint256.Int
	Value    *uint256.Int
	Data     []byte
}

// Call implements eth_call: execute msg without persisting any effect (core/state.NoopWriter
// discards every write). The given block supplies only the header for the block context;
// state is read from the current PlainState, not from that block's post-state.
func (a *API) Call(ctx context.Context, args CallArgs, blockNumber uint64) ([]byte, error) {
	result, err := a.doCall(ctx, args, blockNumber)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return result.ReturnData, vm.ErrExecutionReverted
	}
	return result.ReturnData, nil
}

// EstimateGas implements eth_estimateGas: binary search over the gas limit for the lowest
// value at which Call succeeds, the same algorithm go-ethereum's EthAPIBackend grounds this
// on (other_examples' EthAPIBackend.EstimateGas).
func (a *API) EstimateGas(ctx context.Context, args CallArgs, blockNumber uint64) (uint64, error) {
	header, err := a.GetBlockByNumber(ctx, blockNumber)
	if err != nil {
		return 0, err
	}
	if header == nil {
		return 0, ErrNotFound
	}
	hi := header.Header.GasLimit
	if args.Gas > 0 && args.Gas < hi {
		hi = args.Gas
	}
	lo := uint64(21000)
	if lo > hi {
		return 0, fmt.Errorf("ethapi: estimateGas: gas cap below intrinsic floor")
	}
	lo-- // the search treats lo as failing, so the floor itself must stay a candidate

	executable := func(gas uint64) bool {
		probe := args
		probe.Gas = gas
		result, err := a.doCall(ctx, probe, blockNumber)
		return err == nil && result.Success
	}
	if !executable(hi) {
		return 0, fmt.Errorf("ethapi: estimateGas: transaction would fail even at the gas cap")
	}
	for lo+1 < hi {
		mid := (lo + hi) / 2
		if executable(mid) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi, nil
}

func (a *API) doCall(ctx context.Context, args CallArgs, blockNumber uint64) (*vm.ExecutionResult, error) {
	if a.evm == nil {
		return nil, fmt.Errorf("ethapi: no Evm collaborator configured")
	}
	var out *vm.ExecutionResult
	err := a.view(ctx, func(tx kv.Tx) error {
		hashBytes, found, err := tx.GetOne(kv.HeaderCanonical, beBytes(blockNumber))
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		block, err := readBlock(tx, blockNumber, libcommon.BytesToHash(hashBytes))
		if err != nil {
			return err
		}
		header := block.Header

		reader := state.NewPlainStateReader(tx)
		ibs := state.New(reader)
		ibs.StartTransaction(0)
		ibs.PrepareAccessList(args.From, args.To, nil, nil)

		gasPrice := args.GasPrice
		if gasPrice == nil {
			gasPrice = uint256.NewInt(0)
		}
		value := args.Value
		if value == nil {
			value = uint256.NewInt(0)
		}

		blockCtx := vm.BlockContext{
			Coinbase:    header.Coinbase,
			BlockNumber: header.Number,
			Time:        header.Time,
			GasLimit:    header.GasLimit,
			BaseFee:     header.BaseFee,
		}
		txCtx := vm.TxContext{Origin: args.From, GasPrice: gasPrice}
		msg := vm.Message{From: args.From, To: args.To, Value: value, GasLimit: args.Gas, Data: args.Data}

		out, err = a.evm.Call(blockCtx, txCtx, ibs, msg, args.Gas)
		if err != nil {
			return err
		}
		return ibs.CommitBlock(state.NoopWriter{})
	})
	return out, err
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func beBytes(v uint64) []byte {
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	return buf
}
