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

package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/kv"
	"github.com/erigontech/erigon-core/erigon-lib/types"
)

// ErrPruned is returned by a point-in-time read that falls before a non-archive node's
// retained history window (spec §3's AccountsHistory/StorageHistory tables; a pruned node
// keeps only a bounded tail).
var ErrPruned = errors.New("state: old data not available due to pruning")

// HistoryReaderV3 answers point-in-time reads ("what was this account/slot worth as-of
// block N") out of the AccountsHistory/StorageHistory tables rather than PlainState.
// Neither rpc/ethapi nor the Execution stage uses it: both read PlainState. Grounded on the teacher's
// HistoryReaderV3/ResettableStateReader shape; point-in-time lookup here is a reverse
// cursor scan over <key><blockNum:8 BE> entries rather than the teacher's domain/txNum
// abstraction, since this module's KV layer (spec §4.A) has no separate "temporal" driver.
type HistoryReaderV3 struct {
	tx       kv.Tx
	blockNum uint64
	trace    bool
	readList map[string][]string
	trackRS  bool
}

func NewHistoryReaderV3() *HistoryReaderV3 {
	return &HistoryReaderV3{readList: make(map[string][]string)}
}

func (hr *HistoryReaderV3) SetTx(tx kv.Tx)          { hr.tx = tx }
func (hr *HistoryReaderV3) SetBlockNum(num uint64)  { hr.blockNum = num }
func (hr *HistoryReaderV3) GetBlockNum() uint64     { return hr.blockNum }
func (hr *HistoryReaderV3) SetTrace(trace bool)     { hr.trace = trace }

func (hr *HistoryReaderV3) String() string {
	return fmt.Sprintf("blockNum:%d", hr.blockNum)
}

// accountHistoryKey / storageHistoryKey build the <prefix><blockNum:8 BE> key shape the
// AccountsHistory/StorageHistory tables use (spec §3: "shard index of block numbers at
// which an account/slot's value changed").
func accountHistoryKey(address libcommon.Address, blockNum uint64) []byte {
	k := make([]byte, libcommon.AddressLength+8)
	copy(k, address.Bytes())
	binary.BigEndian.PutUint64(k[libcommon.AddressLength:], blockNum)
	return k
}

func storageHistoryKey(address libcommon.Address, incarnation uint64, slot libcommon.Hash, blockNum uint64) []byte {
	k := make([]byte, 0, libcommon.AddressLength+8+libcommon.HashLength+8)
	k = append(k, address.Bytes()...)
	var incBuf [8]byte
	binary.BigEndian.PutUint64(incBuf[:], incarnation)
	k = append(k, incBuf[:]...)
	k = append(k, slot.Bytes()...)
	var blockBuf [8]byte
	binary.BigEndian.PutUint64(blockBuf[:], blockNum)
	return append(k, blockBuf[:]...)
}

// seekLastAtOrBefore positions at the newest entry under prefix whose trailing 8-byte
// block-number suffix is <= blockNum, by seeking one past it and stepping back.
func seekLastAtOrBefore(cur kv.Cursor, prefix []byte, upperKey []byte) (k, v []byte, err error) {
	k, v, err = cur.Seek(upperKey)
	if err != nil {
		return nil, nil, err
	}
	if k == nil {
		k, v, err = cur.Last()
		if err != nil {
			return nil, nil, err
		}
	} else {
		k, v, err = cur.Prev()
		if err != nil {
			return nil, nil, err
		}
	}
	if k == nil || len(k) < len(prefix) || string(k[:len(prefix)]) != string(prefix) {
		return nil, nil, nil
	}
	return k, v, nil
}

func (hr *HistoryReaderV3) track(table, key string) {
	if !hr.trackRS {
		return
	}
	hr.readList[table] = append(hr.readList[table], key)
}

func (hr *HistoryReaderV3) ReadAccountData(address libcommon.Address) (*types.Account, error) {
	cur, err := hr.tx.Cursor(kv.AccountsHistory)
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	upper := accountHistoryKey(address, hr.blockNum+1)
	_, v, err := seekLastAtOrBefore(cur, address.Bytes(), upper)
	if err != nil {
		return nil, fmt.Errorf("ReadAccountData(%x): %w", address, err)
	}
	hr.track("AccountsHistory", string(address.Bytes()))
	if hr.trace {
		fmt.Printf("ReadAccountData [%x]@%d => [%x]\n", address, hr.blockNum, v)
	}
	if len(v) == 0 {
		return nil, nil
	}
	a := types.NewEmptyAccount()
	if err := a.DecodeForStorage(v); err != nil {
		return nil, fmt.Errorf("ReadAccountData(%x): %w", address, err)
	}
	return a, nil
}

func (hr *HistoryReaderV3) ReadAccountStorage(address libcommon.Address, incarnation uint64, key *libcommon.Hash) ([]byte, error) {
	cur, err := hr.tx.Cursor(kv.StorageHistory)
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	prefix := storageHistoryKey(address, incarnation, *key, 0)
	prefix = prefix[:len(prefix)-8]
	upper := storageHistoryKey(address, incarnation, *key, hr.blockNum+1)
	_, v, err := seekLastAtOrBefore(cur, prefix, upper)
	if err != nil {
		return nil, fmt.Errorf("ReadAccountStorage(%x,%x): %w", address, *key, err)
	}
	hr.track("StorageHistory", string(prefix))
	return v, nil
}

// ReadAccountCode falls back to the live Code table: code is immutable once written
// (keyed by its own hash), so it has no history dimension to replay.
func (hr *HistoryReaderV3) ReadAccountCode(address libcommon.Address, incarnation uint64) ([]byte, error) {
	a, err := hr.ReadAccountData(address)
	if err != nil || a == nil {
		return nil, err
	}
	code, found, err := hr.tx.GetOne(kv.Code, a.CodeHash.Bytes())
	if err != nil || !found {
		return nil, err
	}
	return code, nil
}

func (hr *HistoryReaderV3) ReadAccountCodeSize(address libcommon.Address, incarnation uint64) (int, error) {
	code, err := hr.ReadAccountCode(address, incarnation)
	return len(code), err
}

func (hr *HistoryReaderV3) ReadAccountIncarnation(address libcommon.Address) (uint64, error) {
	a, err := hr.ReadAccountData(address)
	if err != nil || a == nil {
		return 0, err
	}
	return a.Incarnation, nil
}

func (hr *HistoryReaderV3) DiscardReadList() { hr.readList = make(map[string][]string) }
func (hr *HistoryReaderV3) ReadSet() map[string][]string {
	hr.trackRS = true
	return hr.readList
}
func (hr *HistoryReaderV3) ResetReadSet() { hr.readList = make(map[string][]string) }

// WriteAccountHistory / WriteStorageHistory append the pre-block value of an
// account/slot to its history shard. The Execution stage does not call them, so the history
// tables hold only what a caller writes through them directly (Non-goal: pruning policy
// itself, spec §4.E "Finish" invokes that separately).
func WriteAccountHistory(tx kv.RwTx, address libcommon.Address, blockNum uint64, prevEncoded []byte) error {
	return tx.Put(kv.AccountsHistory, accountHistoryKey(address, blockNum), prevEncoded)
}

func WriteStorageHistory(tx kv.RwTx, address libcommon.Address, incarnation uint64, slot libcommon.Hash, blockNum uint64, prevValue []byte) error {
	return tx.Put(kv.StorageHistory, storageHistoryKey(address, incarnation, slot, blockNum), prevValue)
}
