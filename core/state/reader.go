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

// Package state implements the intra-block state machine sitting between the external EVM
// and the KV store (spec §4.C): account/storage/code caching, the undo journal, EIP-2929
// access lists, EIP-1153 transient storage, and snapshot/revert.
package state

import (
	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/kv"
	"github.com/erigontech/erigon-core/erigon-lib/types"
)

// StateReader is the read-through surface IntraBlockState falls back to on a cache miss.
type StateReader interface {
	ReadAccountData(address libcommon.Address) (*types.Account, error)
	ReadAccountStorage(address libcommon.Address, incarnation uint64, key *libcommon.Hash) ([]byte, error)
	ReadAccountCode(address libcommon.Address, incarnation uint64) ([]byte, error)
	ReadAccountCodeSize(address libcommon.Address, incarnation uint64) (int, error)
	ReadAccountIncarnation(address libcommon.Address) (uint64, error)
}

// ResettableStateReader adds the witness/read-set seam SPEC_FULL grounds on
// history_reader_v3.go's ResettableStateReader — a future eth_getProof/stateless-witness
// feature can observe exactly which keys a block's execution touched, without this module
// implementing any witness format itself.
type ResettableStateReader interface {
	StateReader
	DiscardReadList()
	ReadSet() map[string][]string
	ResetReadSet()
}

// PlainStateReader reads accounts/storage/code directly out of the PlainState/Code tables
// of a kv.Tx, recording every key it touches into a read set.
type PlainStateReader struct {
	tx       kv.Tx
	readList map[string][]string
	trackRS  bool
}

func NewPlainStateReader(tx kv.Tx) *PlainStateReader {
	return &PlainStateReader{tx: tx, readList: make(map[string][]string)}
}

func (r *PlainStateReader) track(table string, key string) {
	if !r.trackRS {
		return
	}
	r.readList[table] = append(r.readList[table], key)
}

func (r *PlainStateReader) ReadAccountData(address libcommon.Address) (*types.Account, error) {
	enc, found, err := r.tx.GetOne(kv.PlainState, address.Bytes())
	if err != nil {
		return nil, err
	}
	r.track("PlainState", string(address.Bytes()))
	if !found {
		return nil, nil
	}
	a := types.NewEmptyAccount()
	if err := a.DecodeForStorage(enc); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PlainStateReader) ReadAccountStorage(address libcommon.Address, incarnation uint64, key *libcommon.Hash) ([]byte, error) {
	k := storageKey(address, incarnation, *key)
	enc, found, err := r.tx.GetOne(kv.PlainState, k)
	if err != nil {
		return nil, err
	}
	r.track("PlainState", string(k))
	if !found {
		return nil, nil
	}
	return enc, nil
}

func (r *PlainStateReader) ReadAccountCode(address libcommon.Address, _ uint64) ([]byte, error) {
	a, err := r.ReadAccountData(address)
	if err != nil || a == nil {
		return nil, err
	}
	code, found, err := r.tx.GetOne(kv.Code, a.CodeHash.Bytes())
	if err != nil || !found {
		return nil, err
	}
	return code, nil
}

func (r *PlainStateReader) ReadAccountCodeSize(address libcommon.Address, incarnation uint64) (int, error) {
	code, err := r.ReadAccountCode(address, incarnation)
	return len(code), err
}

func (r *PlainStateReader) ReadAccountIncarnation(address libcommon.Address) (uint64, error) {
	enc, found, err := r.tx.GetOne(kv.IncarnationMap, address.Bytes())
	if err != nil || !found {
		return 0, err
	}
	var v uint64
	for _, b := range enc {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

func (r *PlainStateReader) DiscardReadList() { r.readList = make(map[string][]string) }
func (r *PlainStateReader) ReadSet() map[string][]string {
	r.trackRS = true
	return r.readList
}
func (r *PlainStateReader) ResetReadSet() { r.readList = make(map[string][]string) }

// storageKey builds the PlainState storage key: address(20) + incarnation(8 BE) + slot(32).
func storageKey(address libcommon.Address, incarnation uint64, slot libcommon.Hash) []byte {
	k := make([]byte, 0, 60)
	k = append(k, address.Bytes()...)
	var incBuf [8]byte
	for i := 7; i >= 0; i-- {
		incBuf[i] = byte(incarnation)
		incarnation >>= 8
	}
	k = append(k, incBuf[:]...)
	return append(k, slot.Bytes()...)
}
