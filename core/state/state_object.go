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
	"github.com/holiman/uint256"

	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/types"
)

// stateObject is the cached view of one account. Storage is kept in three tiers (spec
// §4.C): originStorage is what the read-through reader returned (cost of a KV lookup paid
// once per key per block boundary), blockOriginStorage is filled only by markBlockBoundary
// (which IntraBlockState never calls, so during execution this map stays empty and no
// block-start values are kept), and dirtyStorage is the working set a commit flushes.
type stateObject struct {
	address libcommon.Address
	data    types.Account

	code    []byte
	dirtyCode bool

	originStorage      map[libcommon.Hash]uint256.Int
	blockOriginStorage  map[libcommon.Hash]uint256.Int
	dirtyStorage        map[libcommon.Hash]uint256.Int

	selfDestructed bool
	deleted        bool
	newlyCreated   bool
}

func newStateObject(address libcommon.Address) *stateObject {
	return &stateObject{
		address:            address,
		data:               *types.NewEmptyAccount(),
		originStorage:      make(map[libcommon.Hash]uint256.Int),
		blockOriginStorage: make(map[libcommon.Hash]uint256.Int),
		dirtyStorage:       make(map[libcommon.Hash]uint256.Int),
	}
}

func (o *stateObject) empty() bool { return o.data.IsEmpty() }

func (o *stateObject) setBalance(amount uint256.Int) { o.data.Balance = amount }
func (o *stateObject) setNonce(nonce uint64)          { o.data.Nonce = nonce }
func (o *stateObject) setCodeHash(hash libcommon.Hash) { o.data.CodeHash = hash }
func (o *stateObject) setIncarnation(inc uint64)       { o.data.Incarnation = inc }

func (o *stateObject) setStorage(key libcommon.Hash, value uint256.Int) {
	o.dirtyStorage[key] = value
}

func (o *stateObject) deleteStorage(key libcommon.Hash) {
	delete(o.dirtyStorage, key)
}

// markBlockBoundary snapshots the current merged view into blockOriginStorage. Nothing in
// this module calls it.
func (o *stateObject) markBlockBoundary() {
	for k, v := range o.dirtyStorage {
		o.blockOriginStorage[k] = v
	}
	for k, v := range o.originStorage {
		if _, ok := o.blockOriginStorage[k]; !ok {
			o.blockOriginStorage[k] = v
		}
	}
}

func (o *stateObject) deepCopy() *stateObject {
	cp := newStateObject(o.address)
	cp.data = o.data
	cp.code = append([]byte(nil), o.code...)
	cp.selfDestructed = o.selfDestructed
	cp.deleted = o.deleted
	cp.newlyCreated = o.newlyCreated
	for k, v := range o.originStorage {
		cp.originStorage[k] = v
	}
	for k, v := range o.blockOriginStorage {
		cp.blockOriginStorage[k] = v
	}
	for k, v := range o.dirtyStorage {
		cp.dirtyStorage[k] = v
	}
	return cp
}
