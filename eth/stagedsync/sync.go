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

package stagedsync

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"

	"github.com/erigontech/erigon-core/erigon-lib/kv"
)

// Sync drives the fixed stage list defined by CanonicalOrder from each stage's persisted
// checkpoint up to a target block (spec §4.E).
type Sync struct {
	db     kv.RwDB
	stages []*Stage
}

// NewSync builds a scheduler from a stage list. The list's IDs must appear in the same
// relative order as CanonicalOrder (a missing stage, e.g. no Snapshots prefix configured,
// is fine; an out-of-order one is a programmer error).
func NewSync(db kv.RwDB, stages []*Stage) (*Sync, error) {
	pos := -1
	for _, st := range stages {
		p := indexOf(CanonicalOrder, st.ID)
		if p < 0 {
			return nil, fmt.Errorf("stagedsync: unknown stage id %q", st.ID)
		}
		if p <= pos {
			return nil, fmt.Errorf("stagedsync: stage %q violates canonical order", st.ID)
		}
		pos = p
	}
	return &Sync{db: db, stages: stages}, nil
}

func indexOf(ids []StageID, id StageID) int {
	for i, x := range ids {
		if x == id {
			return i
		}
	}
	return -1
}

func progressKey(id StageID) []byte { return []byte(id) }

// GetProgress reads a stage's checkpoint (8-byte BE block number), 0 if never run.
func GetProgress(tx kv.Getter, id StageID) (uint64, error) {
	v, found, err := tx.GetOne(kv.SyncStageProgress, progressKey(id))
	if err != nil {
		return 0, fmt.Errorf("stagedsync: read progress %q: %w", id, err)
	}
	if !found || len(v) == 0 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(v), nil
}

func setProgress(tx kv.RwTx, id StageID, blockNum uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], blockNum)
	if err := tx.Put(kv.SyncStageProgress, progressKey(id), buf[:]); err != nil {
		return fmt.Errorf("stagedsync: write progress %q: %w", id, err)
	}
	return nil
}

// assertDependencies enforces spec §4.E's dependency rule: before running s, every
// prerequisite s' must already have progress(s') >= progress(s). Returns false (skip,
// don't error) if a prerequisite is behind, matching "log and skip" in the spec text.
func assertDependencies(tx kv.Tx, id StageID, rc *Context) (bool, error) {
	own, err := GetProgress(tx, id)
	if err != nil {
		return false, err
	}
	for _, dep := range dependsOn[id] {
		depProgress, err := GetProgress(tx, dep)
		if err != nil {
			return false, err
		}
		if depProgress < own {
			if rc.Logger != nil {
				rc.Logger.Warn("stage ahead of its prerequisite, skipping",
					zap.String("stage", string(id)), zap.String("dependsOn", string(dep)),
					zap.Uint64("stageProgress", own), zap.Uint64("depProgress", depProgress))
			}
			return false, nil
		}
	}
	return true, nil
}

// RunForward advances every configured stage, in CanonicalOrder, up to toBlock. A stage
// failure aborts the pass; the in-progress write transaction is rolled back and persisted
// checkpoints remain at their last committed value (spec §4.E "Failure handling").
func (s *Sync) RunForward(ctx context.Context, rc *Context, toBlock uint64) error {
	for _, stage := range s.stages {
		if stage.Disabled || rc.cancelled() {
			continue
		}
		if err := s.runStageForward(ctx, rc, stage, toBlock); err != nil {
			return fmt.Errorf("stagedsync: stage %q: %w", stage.ID, err)
		}
	}
	return nil
}

func (s *Sync) runStageForward(ctx context.Context, rc *Context, stage *Stage, toBlock uint64) error {
	tx, err := s.db.BeginRw(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ok, err := assertDependencies(tx, stage.ID, rc)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	progress, err := GetProgress(tx, stage.ID)
	if err != nil {
		return err
	}
	if progress >= toBlock {
		return nil
	}

	state := &StageState{ID: stage.ID, BlockNumber: progress}
	blocksProcessed, _, err := stage.Execute(rc, state, tx, toBlock)
	if err != nil {
		return err
	}
	if err := setProgress(tx, stage.ID, progress+blocksProcessed); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if rc.Metrics != nil {
		rc.Metrics.StageCompleted(stage.ID, blocksProcessed)
	}
	return nil
}

// Unwind walks every configured stage in reverse CanonicalOrder (spec §4.E "Unwind pass"),
// invoking Unwind for any stage whose checkpoint is above unwindTo, then pinning its
// checkpoint down to unwindTo. Idempotent: a stage already at or below unwindTo is skipped.
func (s *Sync) Unwind(ctx context.Context, rc *Context, unwindTo uint64) error {
	for i := len(s.stages) - 1; i >= 0; i-- {
		stage := s.stages[i]
		if stage.Disabled {
			continue
		}
		if err := s.unwindOne(ctx, rc, stage, unwindTo); err != nil {
			return fmt.Errorf("stagedsync: unwind %q: %w", stage.ID, err)
		}
	}
	return nil
}

func (s *Sync) unwindOne(ctx context.Context, rc *Context, stage *Stage, unwindTo uint64) error {
	tx, err := s.db.BeginRw(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	progress, err := GetProgress(tx, stage.ID)
	if err != nil {
		return err
	}
	if progress <= unwindTo {
		return nil
	}

	state := &StageState{ID: stage.ID, BlockNumber: progress}
	if stage.Unwind != nil {
		if err := stage.Unwind(rc, state, tx, unwindTo); err != nil {
			return err
		}
	}
	if err := setProgress(tx, stage.ID, unwindTo); err != nil {
		return err
	}
	return tx.Commit()
}
