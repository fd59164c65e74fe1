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

package types

import libcommon "github.com/erigontech/erigon-core/erigon-lib/common"

// ReceiptStatus values, post-Byzantium (spec §3).
const (
	ReceiptStatusFailed     = uint64(0)
	ReceiptStatusSuccessful = uint64(1)
)

// Receipt is the per-transaction execution outcome (spec §3/§4.D). PostState is only
// populated pre-Byzantium, mutually exclusive with Status.
type Receipt struct {
	PostState         []byte
	Status            uint64
	CumulativeGasUsed uint64
	Bloom             Bloom
	Logs              []*Log
	TxHash            libcommon.Hash
	BlockHash         libcommon.Hash
	BlockNumber       uint64
	TransactionIndex  uint64
	// BlobGasUsed records the blob-gas consumed by a 4844 transaction (spec's expanded
	// §4.D: "for blob transactions the blob-gas-used is recorded").
	BlobGasUsed uint64
}

// Receipts is a block's ordered receipt list.
type Receipts []*Receipt

// Bloom ORs together every receipt's bloom into a single block-level filter.
func (r Receipts) Bloom() Bloom {
	var out Bloom
	for _, receipt := range r {
		for i := range out {
			out[i] |= receipt.Bloom[i]
		}
	}
	return out
}
