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
	"github.com/erigontech/erigon-core/erigon-lib/chain"
	"github.com/erigontech/erigon-core/erigon-lib/kv"
	"github.com/erigontech/erigon-core/core/state/commitment"
	"github.com/erigontech/erigon-core/core/vm"
	"github.com/erigontech/erigon-core/eth/stagedsync"
)

// NewDefaultStages assembles the full canonical pipeline (spec §4.E) in CanonicalOrder:
// an optional Snapshots prefix followed by Headers through Finish. snapshots may be nil
// when the caller has no bulk-import segments configured for this run, in which case the
// stage is simply omitted rather than registered as a no-op (stagedsync.NewSync accepts
// a stage list with gaps; see its doc comment).
func NewDefaultStages(
	snapshots *SegmentBlockSource,
	blocks BlockSource,
	config *chain.Config,
	evm vm.Evm,
	mode commitment.Mode,
) []*stagedsync.Stage {
	out := make([]*stagedsync.Stage, 0, 8)
	if snapshots != nil {
		out = append(out, NewSnapshotsStage(snapshots))
	}
	out = append(out,
		NewHeadersStage(blocks),
		NewBlockHashesStage(),
		NewBodiesStage(blocks),
		NewSendersStage(),
		NewExecutionStage(config, evm, mode),
		NewTxLookupStage(),
		NewFinishStage(),
	)
	return out
}

// NewPipeline wires NewDefaultStages into a ready-to-run Sync scheduler over db.
func NewPipeline(
	db kv.RwDB,
	snapshots *SegmentBlockSource,
	blocks BlockSource,
	config *chain.Config,
	evm vm.Evm,
	mode commitment.Mode,
) (*stagedsync.Sync, error) {
	return stagedsync.NewSync(db, NewDefaultStages(snapshots, blocks, config, evm, mode))
}
