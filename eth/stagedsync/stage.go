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

// Package stagedsync implements the fixed, dependency-ordered stage pipeline (spec §4.E):
// Headers -> BlockHashes -> Bodies -> Senders -> Execution -> TxLookup -> Finish, with an
// optional Snapshots prefix. Each stage is independently checkpointed in
// kv.SyncStageProgress and the scheduler here owns dependency checking, the forward pass,
// and the unwind pass; it has no opinion on what any individual stage does to the KV store.
package stagedsync

import (
	"go.uber.org/zap"

	"github.com/erigontech/erigon-core/erigon-lib/kv"
)

// StageID names one stage in the canonical pipeline. A closed set, same rationale as
// kv.Table (spec §9: identity is a type, not a bare string at call sites).
type StageID string

const (
	Snapshots   StageID = "Snapshots"
	Headers     StageID = "Headers"
	BlockHashes StageID = "BlockHashes"
	Bodies      StageID = "Bodies"
	Senders     StageID = "Senders"
	Execution   StageID = "Execution"
	TxLookup    StageID = "TxLookup"
	Finish      StageID = "Finish"
)

// CanonicalOrder is the fixed stage sequence spec §4.E requires to be preserved; Snapshots
// is an optional prefix that a stage list may omit.
var CanonicalOrder = []StageID{Snapshots, Headers, BlockHashes, Bodies, Senders, Execution, TxLookup, Finish}

// dependsOn is the dependency DAG from spec §4.E: before running stage s, every s' it
// depends on must already have progress(s') >= progress(s).
var dependsOn = map[StageID][]StageID{
	Snapshots:   {},
	Headers:     {},
	Bodies:      {Headers},
	BlockHashes: {Headers},
	Senders:     {Bodies},
	Execution:   {Senders},
	TxLookup:    {Bodies},
	Finish:      {Snapshots, Headers, BlockHashes, Bodies, Senders, Execution, TxLookup},
}

// Metrics is the narrow sink stages report to; a no-op implementation is always valid,
// satisfying spec §9's instruction that metrics setup itself stays out of scope while the
// seam for it remains ambient stack.
type Metrics interface {
	StageCompleted(id StageID, blocksProcessed uint64)
}

type NoopMetrics struct{}

func (NoopMetrics) StageCompleted(StageID, uint64) {}

// Context is threaded explicitly into every Stage.Execute/Unwind call (spec §9's
// "Global/singleton elimination" design note, SPEC_FULL §5 ADD) instead of being held in
// package-level state.
type Context struct {
	Logger  *zap.Logger
	Cancel  <-chan struct{}
	Metrics Metrics
}

// cancelled reports whether the run should stop between blocks (spec §5: "stages poll a
// cancellation flag between blocks, not within").
func (c *Context) cancelled() bool {
	if c.Cancel == nil {
		return false
	}
	select {
	case <-c.Cancel:
		return true
	default:
		return false
	}
}

// StageState is the read-only view of one stage's current checkpoint, handed to its
// Execute/Unwind functions.
type StageState struct {
	ID          StageID
	BlockNumber uint64
}

// ExecuteFunc runs stage s forward from s.BlockNumber up to (and no further than) toBlock,
// against the given write transaction, returning how many blocks it actually advanced.
// Must be idempotent against restart from any persisted checkpoint (spec §4.E).
type ExecuteFunc func(rc *Context, s *StageState, tx kv.RwTx, toBlock uint64) (blocksProcessed uint64, done bool, err error)

// UnwindFunc must remove or invalidate everything the stage wrote above unwindTo, and must
// be idempotent against being called when the checkpoint is already <= unwindTo.
type UnwindFunc func(rc *Context, s *StageState, tx kv.RwTx, unwindTo uint64) error

// Stage is one entry in the pipeline.
type Stage struct {
	ID          StageID
	Description string
	Disabled    bool
	Execute     ExecuteFunc
	Unwind      UnwindFunc
}
