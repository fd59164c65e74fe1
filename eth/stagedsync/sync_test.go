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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-core/erigon-lib/kv"
	"github.com/erigontech/erigon-core/erigon-lib/kv/memdb"
)

// fixedAdvance returns an ExecuteFunc that jumps straight to toBlock in one call and an
// UnwindFunc that records how many times it was invoked, standing in for a real stage's
// table writes (the scheduler has no opinion on what a stage does to the KV store).
func fixedAdvance(calls *int) ExecuteFunc {
	return func(_ *Context, s *StageState, _ kv.RwTx, toBlock uint64) (uint64, bool, error) {
		if calls != nil {
			*calls++
		}
		if toBlock <= s.BlockNumber {
			return 0, true, nil
		}
		return toBlock - s.BlockNumber, true, nil
	}
}

func countingUnwind(calls *[]StageID, id StageID) UnwindFunc {
	return func(_ *Context, _ *StageState, _ kv.RwTx, _ uint64) error {
		*calls = append(*calls, id)
		return nil
	}
}

func testStages(unwindCalls *[]StageID) []*Stage {
	mk := func(id StageID) *Stage {
		return &Stage{ID: id, Execute: fixedAdvance(nil), Unwind: countingUnwind(unwindCalls, id)}
	}
	return []*Stage{
		mk(Headers), mk(BlockHashes), mk(Bodies), mk(Senders), mk(Execution), mk(TxLookup),
	}
}

// TestUnwind_S5 covers scenario S5 exactly: six stages at checkpoint 100, unwind(30), every
// checkpoint lands on 30 and the stages' Unwind handlers fire exactly once each in strict
// reverse canonical order TxLookup, Execution, Senders, Bodies, BlockHashes, Headers.
func TestUnwind_S5(t *testing.T) {
	db := memdb.New()
	var unwindOrder []StageID
	stages := testStages(&unwindOrder)
	sync, err := NewSync(db, stages)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sync.RunForward(ctx, &Context{}, 100))

	tx, err := db.BeginRo(ctx)
	require.NoError(t, err)
	for _, id := range []StageID{Headers, BlockHashes, Bodies, Senders, Execution, TxLookup} {
		p, err := GetProgress(tx, id)
		require.NoError(t, err)
		require.Equal(t, uint64(100), p)
	}
	tx.Rollback()

	require.NoError(t, sync.Unwind(ctx, &Context{}, 30))

	tx, err = db.BeginRo(ctx)
	require.NoError(t, err)
	for _, id := range []StageID{Headers, BlockHashes, Bodies, Senders, Execution, TxLookup} {
		p, err := GetProgress(tx, id)
		require.NoError(t, err)
		require.Equal(t, uint64(30), p)
	}
	tx.Rollback()

	require.Equal(t, []StageID{TxLookup, Execution, Senders, Bodies, BlockHashes, Headers}, unwindOrder)
}

// TestForwardPass_Idempotence covers spec §8 property 8: running the forward pass twice with
// an unchanged target leaves every checkpoint unchanged on the second run.
func TestForwardPass_Idempotence(t *testing.T) {
	db := memdb.New()
	calls := 0
	stages := []*Stage{{ID: Headers, Execute: fixedAdvance(&calls)}}
	sync, err := NewSync(db, stages)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sync.RunForward(ctx, &Context{}, 50))
	require.Equal(t, 1, calls)

	firstProgress := mustProgress(t, db, Headers)
	require.Equal(t, uint64(50), firstProgress)

	// Second run: progress already >= toBlock, so runStageForward must not call Execute again.
	require.NoError(t, sync.RunForward(ctx, &Context{}, 50))
	require.Equal(t, 1, calls)
	require.Equal(t, firstProgress, mustProgress(t, db, Headers))
}

// TestDependencyGate covers spec §8 property 7: for a depends-on edge Execution -> Senders,
// Execution must never be allowed to run while it is already ahead of Senders (progress(Senders)
// < progress(Execution)); assertDependencies must log-and-skip rather than let Execution widen
// the gap further.
func TestDependencyGate(t *testing.T) {
	db := memdb.New()
	ctx := context.Background()

	// Seed Senders at 10 and Execution at 50 directly — Execution is already ahead of its
	// prerequisite, a state the forward pass must never create on its own but must tolerate
	// (and refuse to compound) if found.
	tx, err := db.BeginRw(ctx)
	require.NoError(t, err)
	require.NoError(t, setProgress(tx, Senders, 10))
	require.NoError(t, setProgress(tx, Execution, 50))
	require.NoError(t, tx.Commit())

	execCalls := 0
	// Only Execution is registered with this scheduler: Senders' checkpoint is read but not
	// advanced by it, standing in for "Senders' own stage hasn't run yet this pass".
	sync, err := NewSync(db, []*Stage{{ID: Execution, Execute: fixedAdvance(&execCalls)}})
	require.NoError(t, err)

	require.NoError(t, sync.RunForward(ctx, &Context{}, 200))

	require.Equal(t, 0, execCalls, "Execution must be skipped while ahead of its own prerequisite's progress")
	require.Equal(t, uint64(50), mustProgress(t, db, Execution), "checkpoint must not advance when gated")
	require.Equal(t, uint64(10), mustProgress(t, db, Senders))
}

// TestNewSync_RejectsOutOfOrderStages covers spec §4.E's "canonical order must be preserved".
func TestNewSync_RejectsOutOfOrderStages(t *testing.T) {
	db := memdb.New()
	_, err := NewSync(db, []*Stage{{ID: Execution}, {ID: Senders}})
	require.Error(t, err)
}

func mustProgress(t *testing.T, db kv.RoDB, id StageID) uint64 {
	t.Helper()
	tx, err := db.BeginRo(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()
	p, err := GetProgress(tx, id)
	require.NoError(t, err)
	return p
}
