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

// Package engineapi is the consensus-layer call boundary (spec §6): "newPayload lands as a
// call into the Execution stage for one block; forkchoiceUpdated may trigger an unwind." The
// wire format (JSON-RPC request/response shapes the real Engine API specifies) is out of
// scope per spec §1 — this package exposes only the Go call boundary a wire-format layer
// built on top of it would dispatch into.
package engineapi

import (
	"context"
	"fmt"

	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/kv"
	"github.com/erigontech/erigon-core/erigon-lib/types"
	"github.com/erigontech/erigon-core/eth/stagedsync"
	"github.com/erigontech/erigon-core/eth/stagedsync/stages"
)

// PayloadStatus mirrors the Engine API's three-way verdict without the wire encoding.
type PayloadStatus int

const (
	StatusValid PayloadStatus = iota
	StatusInvalid
	StatusSyncing
)

func (s PayloadStatus) String() string {
	switch s {
	case StatusValid:
		return "VALID"
	case StatusInvalid:
		return "INVALID"
	default:
		return "SYNCING"
	}
}

// ForkchoiceStatus mirrors forkchoiceUpdated's {payloadStatus, payloadId} pair, minus the
// payload-building identifier (block construction from a mempool is out of scope, spec §1).
type ForkchoiceStatus struct {
	Status PayloadStatus
}

// API binds the Engine API call boundary to one staged-sync pipeline. oneBlockSource feeds
// exactly the single block under consideration to Headers/Bodies for the duration of one
// NewPayload call; the consensus driver is expected to call NewPayload once per block, in
// order, exactly as spec §4.E's Execution stage processes one block at a time.
type API struct {
	db       kv.RwDB
	pipeline func(src stages.BlockSource) (*stagedsync.Sync, error)
	ctx      *stagedsync.Context
}

// NewAPI binds a pipeline factory (ordinarily stages.NewPipeline with a fixed config/evm/mode,
// partially applied over the BlockSource argument) to a runtime Context.
func NewAPI(db kv.RwDB, pipeline func(src stages.BlockSource) (*stagedsync.Sync, error), rc *stagedsync.Context) *API {
	return &API{db: db, pipeline: pipeline, ctx: rc}
}

// oneBlockSource is a BlockSource holding exactly one block, found only at its own number.
type oneBlockSource struct{ block *types.Block }

func (s oneBlockSource) BlockByNumber(number uint64) (*types.Block, bool, error) {
	if s.block == nil || s.block.Header.Number != number {
		return nil, false, nil
	}
	return s.block, true, nil
}

// NewPayload implements the newPayload call boundary: execute one block through the full
// pipeline (Headers through Finish) and report whether it committed cleanly.
func (a *API) NewPayload(ctx context.Context, block *types.Block) (PayloadStatus, error) {
	src := oneBlockSource{block: block}
	sync, err := a.pipeline(src)
	if err != nil {
		return StatusInvalid, fmt.Errorf("engineapi: newPayload: build pipeline: %w", err)
	}
	if err := sync.RunForward(ctx, a.ctx, block.Header.Number); err != nil {
		return StatusInvalid, err
	}
	return StatusValid, nil
}

// ForkchoiceUpdated implements the forkchoiceUpdated call boundary: if headBlockHash names an
// already-known header at a number below the current Execution head, that is a reorg — unwind
// the pipeline down to it (spec §4.E's unwind pass, reverse dependency order). headBlockHash
// at or ahead of the current head is a no-op (the corresponding NewPayload call, not this one,
// advances the chain forward).
func (a *API) ForkchoiceUpdated(ctx context.Context, headBlockHash libcommon.Hash) (ForkchoiceStatus, error) {
	var targetNum uint64
	var known bool
	var currentHead uint64
	err := a.db.View(ctx, func(tx kv.Tx) error {
		enc, found, err := tx.GetOne(kv.HeaderNumber, headBlockHash.Bytes())
		if err != nil {
			return err
		}
		known = found
		if found {
			targetNum = beUint64(enc)
		}
		currentHead, err = stagedsync.GetProgress(tx, stagedsync.Execution)
		return err
	})
	if err != nil {
		return ForkchoiceStatus{Status: StatusInvalid}, err
	}
	if !known {
		return ForkchoiceStatus{Status: StatusSyncing}, nil
	}
	if targetNum >= currentHead {
		return ForkchoiceStatus{Status: StatusValid}, nil
	}

	src := &stages.MemoryBlockSource{}
	sync, err := a.pipeline(src)
	if err != nil {
		return ForkchoiceStatus{Status: StatusInvalid}, fmt.Errorf("engineapi: forkchoiceUpdated: build pipeline: %w", err)
	}
	if err := sync.Unwind(ctx, a.ctx, targetNum); err != nil {
		return ForkchoiceStatus{Status: StatusInvalid}, err
	}
	return ForkchoiceStatus{Status: StatusValid}, nil
}

// GetPayload implements the getPayload call boundary. Building a brand-new payload from
// pending transactions is mempool-admission-policy territory (spec §1 Non-goals, "the
// transaction mempool's admission policy"); this implementation covers the half of
// getPayload this module owns — returning the already-committed block at the requested
// number, i.e. the payload the consensus driver itself supplied via a prior NewPayload.
func (a *API) GetPayload(ctx context.Context, blockNumber uint64) (*types.Block, error) {
	var out *types.Block
	err := a.db.View(ctx, func(tx kv.Tx) error {
		hashBytes, found, err := tx.GetOne(kv.HeaderCanonical, beBytes(blockNumber))
		if err != nil || !found {
			return err
		}
		hash := libcommon.BytesToHash(hashBytes)
		key := append(beBytes(blockNumber), hash.Bytes()...)

		headerEnc, found, err := tx.GetOne(kv.Headers, key)
		if err != nil || !found {
			return err
		}
		header, err := types.DecodeHeaderFromStorage(headerEnc)
		if err != nil {
			return err
		}
		bodyEnc, found, err := tx.GetOne(kv.Bodies, key)
		if err != nil || !found {
			return err
		}
		body, err := types.DecodeBodyForStorage(bodyEnc)
		if err != nil {
			return err
		}
		txns := make([]types.Transaction, len(body.TxHashes))
		for i := range txns {
			enc, found, err := tx.GetOne(kv.EthTx, beBytes(body.BaseTxId+uint64(i)))
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("engineapi: getPayload: block %d missing EthTx entry %d", blockNumber, body.BaseTxId+uint64(i))
			}
			txn, err := types.DecodeTransaction(enc)
			if err != nil {
				return err
			}
			txns[i] = txn
		}
		out = &types.Block{Header: header, Transactions: txns, Withdrawals: body.Withdrawals}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("engineapi: getPayload: no committed block %d", blockNumber)
	}
	return out, nil
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
