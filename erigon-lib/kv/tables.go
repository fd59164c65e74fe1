// Copyright 2021 The Erigon Authors
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

package kv

import "fmt"

// Table is a closed enumeration of logical table names, per spec §9's design note that
// table identity should be a type, not a bare string at call sites. Call sites get
// compile-time checking; TableCfg below attaches per-table physical layout (dup-sort key
// splitting, integer keys) the way the teacher's ChaindataTablesCfg does.
type Table string

const (
	// Headers: block_num_u64 + hash(32) -> header (RLP). Composite key, no length prefix.
	Headers Table = "Header"
	// HeaderCanonical: block_num_u64 -> canonical header hash for that number.
	HeaderCanonical Table = "CanonicalHeader"
	// HeaderNumber: header_hash -> block_num_u64, the inverse of HeaderCanonical.
	HeaderNumber Table = "HeaderNumber"
	// Bodies: block_num_u64 + hash -> block body (RLP: tx hash list + withdrawals).
	Bodies Table = "BlockBody"
	// Senders: block_num_u64 + hash -> packed 20-byte sender addresses, one per transaction,
	// in transaction order (spec §4.D, the Senders stage's sole output).
	Senders Table = "TxSender"
	// EthTx: tx_id_u64 -> RLP(transaction). tx_id is an auto-increment id assigned when the
	// body is written, distinct from the transaction's position within its block.
	EthTx Table = "BlockTransaction"
	// TxLookup: tx_hash -> block_num_u64.
	TxLookup Table = "BlockTransactionLookup"
	// BlockReceipts: block_num_u64 + hash -> RLP(receipts).
	BlockReceipts Table = "BlockReceipts"
	// PlainState holds both accounts and storage (see layout note below), DupSort-packed.
	PlainState Table = "PlainState"
	// HashedAccounts: keccak256(address) -> account (encoded). Keyed this way for the
	// commitment builder's account-path trie traversal (spec §4.B).
	HashedAccounts Table = "HashedAccount"
	// HashedStorage: keccak256(address)+incarnation(8, BE) -> keccak256(slot)+value. DupSort.
	HashedStorage Table = "HashedStorage"
	// Code: keccak256(code) -> bytecode.
	Code Table = "Code"
	// AccountsHistory / StorageHistory: shard index of block numbers at which an
	// account/slot's value changed (spec §3's history tables).
	AccountsHistory Table = "AccountHistory"
	StorageHistory  Table = "StorageHistory"
	// SyncStageProgress: stage name -> 8-byte BE block number, the staged-sync checkpoint
	// table (spec §4.E, §6).
	SyncStageProgress Table = "SyncStage"
	// IncarnationMap: address -> incarnation the account held when last deleted. Backs the
	// "recreate within the same block" stricter-incarnation rule (spec §9).
	IncarnationMap Table = "IncarnationMap"
	// Config: chain-config / genesis / schema-version scalars.
	Config Table = "Config"
)

/*
PlainState logical layout, unchanged from the teacher's original doc comment:

	Accounts:
	  key   - address (unhashed, 20 bytes)
	  value - account, encoded for storage
	Storage:
	  key   - address (unhashed, 20) + incarnation (8, BE) + storage key (unhashed, 32)
	  value - storage value (32 bytes, left-trimmed of leading zero bytes)

MDBX's DupSort feature stores the address/incarnation prefix once per account rather than
once per slot; AutoDupSortKeysConversion below tells the mdbx driver to fold/unfold that
prefix at the storage/dup-value boundary.
*/

// AllTables lists every table this module opens. Order has no physical meaning.
var AllTables = []Table{
	Headers, HeaderCanonical, HeaderNumber, Bodies, Senders,
	EthTx, TxLookup, BlockReceipts,
	PlainState, HashedAccounts, HashedStorage, Code,
	AccountsHistory, StorageHistory,
	SyncStageProgress, IncarnationMap, Config,
}

type TableFlags uint

const (
	Default    TableFlags = 0x00
	DupSort    TableFlags = 0x04
	IntegerKey TableFlags = 0x08
)

// TableCfgItem mirrors the teacher's TableCfgItem — everything a kv driver needs to open a
// table with the right physical layout.
type TableCfgItem struct {
	Flags TableFlags
	// AutoDupSortKeysConversion splits a flat key into (outer key, dup value prefix) at
	// DupFromLen/DupToLen for tables where the logical key length varies (PlainState,
	// HashedStorage: accounts have a short key, storage slots a long one).
	AutoDupSortKeysConversion bool
	DupFromLen                int
	DupToLen                  int
}

type TableCfg map[Table]TableCfgItem

// ChaindataTablesCfg is this module's ChaindataTablesCfg, trimmed to AllTables.
var ChaindataTablesCfg = TableCfg{
	PlainState: {
		Flags:                     DupSort,
		AutoDupSortKeysConversion: true,
		DupFromLen:                60, // addr(20) + incarnation(8) + slot(32)
		DupToLen:                  28, // addr(20) + incarnation(8)
	},
	HashedStorage: {
		Flags:                     DupSort,
		AutoDupSortKeysConversion: true,
		DupFromLen:                72, // hash(32) + incarnation(8) + hash(32)
		DupToLen:                  40, // hash(32) + incarnation(8)
	},
	AccountsHistory:   {Flags: DupSort},
	StorageHistory:    {Flags: DupSort},
	SyncStageProgress: {Flags: Default},
}

func init() {
	for _, t := range AllTables {
		if _, ok := ChaindataTablesCfg[t]; !ok {
			ChaindataTablesCfg[t] = TableCfgItem{}
		}
	}
}

func (t TableCfgItem) String() string {
	return fmt.Sprintf("flags=%#x dupFromLen=%d dupToLen=%d", t.Flags, t.DupFromLen, t.DupToLen)
}
