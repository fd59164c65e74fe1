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

// Package snapshotsync holds the seam between the Execution pipeline's Snapshots prefix
// stage (eth/stagedsync/stages) and the P2P bulk-download collaborator that spec §1 puts
// out of scope ("the P2P wire protocol and node discovery"). It owns the one piece of
// that boundary the core genuinely needs regardless of which downloader sits behind it:
// the immutable segment file naming scheme (spec §6) and a transport-agnostic download
// request shape a real BitTorrent/gRPC downloader would consume.
package snapshotsync

import (
	"fmt"
	"strconv"
	"strings"
)

// CaplinMode selects which of the consensus-layer (Caplin) segment families, if any, a
// download pass should fetch alongside execution-layer blocks. The core's Execution
// pipeline never reads Caplin data itself; this only shapes what a downloader is asked
// to fetch, so callers outside the core wire this to their own consensus driver config.
type CaplinMode int

const (
	NoCaplin   CaplinMode = 1
	OnlyCaplin CaplinMode = 2
	AlsoCaplin CaplinMode = 3
)

// DownloadRequest names one file a downloader should fetch (by path) and optionally
// verify (by torrent info-hash). It carries no knowledge of the transport (BitTorrent,
// gRPC, plain HTTP) that will actually move the bytes -- that lives entirely in the
// external P2P collaborator spec §1 excludes from this module's scope.
type DownloadRequest struct {
	Path        string
	TorrentHash string
}

func NewDownloadRequest(path, torrentHash string) DownloadRequest {
	return DownloadRequest{Path: path, TorrentHash: torrentHash}
}

// SegmentKind identifies the payload family a segment file holds. The Execution
// pipeline's Snapshots stage only ever needs "bodies" (whole blocks, spec §4.E's "bulk
// historical import"), but the naming scheme spec §6 defines is shared by every kind of
// immutable segment a full node produces (headers, bodies, transactions, receipts, the
// state-history accessor families), so the type is open-ended rather than a one-value enum.
type SegmentKind string

const (
	KindHeaders      SegmentKind = "headers"
	KindBodies       SegmentKind = "bodies"
	KindTransactions SegmentKind = "transactions"
)

// SegmentFileName renders the canonical `<kind>-<fromBlock:06>-<toBlock:06>.seg` name
// spec §6 fixes for immutable segment files, zero-padded to 6 digits. ParseSegmentFileName
// is the exact inverse.
func SegmentFileName(kind SegmentKind, fromBlock, toBlock uint64) string {
	return fmt.Sprintf("%s-%06d-%06d.seg", kind, fromBlock, toBlock)
}

// ParseSegmentFileName is the inverse of SegmentFileName: it recovers the kind and
// block range from a bare file name (no directory components), reporting ok=false for
// anything that doesn't match the canonical `<kind>-<from:06>-<to:06>.seg` shape rather
// than erroring -- callers (the Snapshots stage scanning a directory, or a downloader
// deciding what to prefetch) routinely see unrelated files mixed in and must skip them.
func ParseSegmentFileName(name string) (kind SegmentKind, fromBlock, toBlock uint64, ok bool) {
	base := strings.TrimSuffix(name, ".seg")
	if base == name {
		return "", 0, 0, false
	}
	parts := strings.Split(base, "-")
	if len(parts) != 3 {
		return "", 0, 0, false
	}
	from, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return "", 0, 0, false
	}
	to, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return "", 0, 0, false
	}
	return SegmentKind(parts[0]), from, to, true
}
