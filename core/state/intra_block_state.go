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
	"github.com/erigontech/erigon-core/erigon-lib/crypto"
	"github.com/erigontech/erigon-core/erigon-lib/types"
)

// IntraBlockState sits between the external EVM and the KV store, per spec §4.C: a hot
// account/storage cache with copy-on-read semantics, a single ordered undo journal,
// EIP-2929 access lists and EIP-1153 transient storage, and snapshot/revert.
type IntraBlockState struct {
	stateReader ResettableStateReader

	stateObjects       map[libcommon.Address]*stateObject
	stateObjectsDirty  map[libcommon.Address]struct{}
	touched            map[libcommon.Address]struct{}

	// destructedThisBlock is the SPEC_FULL "selfdestruct bookkeeping" addition: tracks
	// every address selfdestructed at any point during the current block (not just the
	// current transaction), so a CREATE that reuses the address within the same block
	// still bumps incarnation per the stricter Erigon rule (spec §9 Open Questions).
	destructedThisBlock map[libcommon.Address]struct{}

	journal        *journal
	validRevisions []revision
	nextRevisionID int

	accessList        *accessList
	transientStorage  transientStorage

	refund uint64

	logs    []*types.Log
	logSize uint
	txIndex int
	bhash   libcommon.Hash
}

type revision struct {
	id           int
	journalIndex int
}

// transientStorage is EIP-1153's per-transaction scratch space, cleared at tx end (spec
// §4.C/§4.D).
type transientStorage map[libcommon.Address]map[libcommon.Hash]uint256.Int

func New(reader ResettableStateReader) *IntraBlockState {
	return &IntraBlockState{
		stateReader:         reader,
		stateObjects:        make(map[libcommon.Address]*stateObject),
		stateObjectsDirty:   make(map[libcommon.Address]struct{}),
		touched:             make(map[libcommon.Address]struct{}),
		destructedThisBlock: make(map[libcommon.Address]struct{}),
		journal:             newJournal(),
		accessList:          newAccessList(),
		transientStorage:    make(transientStorage),
	}
}

// Reset prepares the state for a new block: clears per-block selfdestruct bookkeeping while
// keeping the account/storage cache. The Execution stage does not call it; it builds a fresh
// IntraBlockState for every block.
func (s *IntraBlockState) Reset() {
	s.destructedThisBlock = make(map[libcommon.Address]struct{})
	s.touched = make(map[libcommon.Address]struct{})
}

// StartTransaction clears EIP-2929/2930 access-list and EIP-1153 transient state at the
// start of each transaction (spec §4.D: transient storage clears at tx end, access list is
// per-transaction).
func (s *IntraBlockState) StartTransaction(txIndex int) {
	s.accessList = newAccessList()
	s.transientStorage = make(transientStorage)
	s.journal = newJournal()
	s.validRevisions = nil
	s.nextRevisionID = 0
	s.refund = 0
	s.logs = nil
	s.logSize = 0
	s.txIndex = txIndex
}

// Snapshot records the journal length as a revision id; RevertToSnapshot replays the
// journal back down to it.
func (s *IntraBlockState) Snapshot() int {
	id := s.nextRevisionID
	s.nextRevisionID++
	s.validRevisions = append(s.validRevisions, revision{id, s.journal.length()})
	return id
}

func (s *IntraBlockState) RevertToSnapshot(revid int) {
	idx := -1
	for i, r := range s.validRevisions {
		if r.id == revid {
			idx = i
			break
		}
	}
	if idx == -1 {
		panic("state: no such snapshot revision")
	}
	snapshot := s.validRevisions[idx].journalIndex
	s.journal.revertTo(s, snapshot)
	s.validRevisions = s.validRevisions[:idx]
}

func (s *IntraBlockState) getStateObject(address libcommon.Address) *stateObject {
	if obj, ok := s.stateObjects[address]; ok {
		return obj
	}
	acc, err := s.stateReader.ReadAccountData(address)
	if err != nil || acc == nil {
		return nil
	}
	obj := newStateObject(address)
	obj.data = *acc
	s.stateObjects[address] = obj
	return obj
}

func (s *IntraBlockState) getOrNewStateObject(address libcommon.Address) *stateObject {
	obj := s.getStateObject(address)
	if obj == nil {
		obj = s.createObject(address)
	}
	return obj
}

func (s *IntraBlockState) createObject(address libcommon.Address) *stateObject {
	obj := newStateObject(address)
	s.stateObjects[address] = obj
	s.journal.append(createObjectChange{account: &address})
	return obj
}

// CreateAccount creates a fresh account, bumping incarnation per the stricter same-block
// recreate rule if address was selfdestructed earlier in this block.
func (s *IntraBlockState) CreateAccount(address libcommon.Address, contractCreation bool) {
	prev := s.getStateObject(address)
	newObj := s.createObject(address)
	if prev != nil {
		newObj.data.Balance = prev.data.Balance
	}
	if contractCreation {
		inc := uint64(0)
		if prev != nil {
			inc = prev.data.Incarnation
		}
		if _, ok := s.destructedThisBlock[address]; ok {
			inc++
		} else if prev != nil && !prev.empty() {
			inc++
		}
		newObj.setIncarnation(inc)
		newObj.newlyCreated = true
	}
}

func (s *IntraBlockState) Exist(address libcommon.Address) bool {
	return s.getStateObject(address) != nil
}

func (s *IntraBlockState) Empty(address libcommon.Address) bool {
	obj := s.getStateObject(address)
	return obj == nil || obj.empty()
}

func (s *IntraBlockState) GetBalance(address libcommon.Address) *uint256.Int {
	obj := s.getStateObject(address)
	if obj == nil {
		return new(uint256.Int)
	}
	return &obj.data.Balance
}

func (s *IntraBlockState) AddBalance(address libcommon.Address, amount *uint256.Int) {
	obj := s.getOrNewStateObject(address)
	s.journal.append(balanceChange{account: &address, prev: obj.data.Balance})
	var sum uint256.Int
	sum.Add(&obj.data.Balance, amount)
	obj.setBalance(sum)
}

func (s *IntraBlockState) SubBalance(address libcommon.Address, amount *uint256.Int) {
	obj := s.getOrNewStateObject(address)
	s.journal.append(balanceChange{account: &address, prev: obj.data.Balance})
	var diff uint256.Int
	diff.Sub(&obj.data.Balance, amount)
	obj.setBalance(diff)
}

func (s *IntraBlockState) GetNonce(address libcommon.Address) uint64 {
	obj := s.getStateObject(address)
	if obj == nil {
		return 0
	}
	return obj.data.Nonce
}

func (s *IntraBlockState) SetNonce(address libcommon.Address, nonce uint64) {
	obj := s.getOrNewStateObject(address)
	s.journal.append(nonceChange{account: &address, prev: obj.data.Nonce})
	obj.setNonce(nonce)
}

func (s *IntraBlockState) GetCodeHash(address libcommon.Address) libcommon.Hash {
	obj := s.getStateObject(address)
	if obj == nil {
		return libcommon.Hash{}
	}
	return obj.data.CodeHash
}

func (s *IntraBlockState) GetCode(address libcommon.Address) []byte {
	obj := s.getStateObject(address)
	if obj == nil {
		return nil
	}
	if obj.code != nil {
		return obj.code
	}
	code, err := s.stateReader.ReadAccountCode(address, obj.data.Incarnation)
	if err != nil {
		return nil
	}
	obj.code = code
	return code
}

func (s *IntraBlockState) SetCode(address libcommon.Address, code []byte) {
	obj := s.getOrNewStateObject(address)
	s.journal.append(codeChange{account: &address, prevHash: obj.data.CodeHash})
	obj.code = code
	obj.dirtyCode = true
	obj.setCodeHash(libcommon.BytesToHash(crypto.Keccak256(code)))
}

// HasDelegatedDesignation reports whether address's code is an EIP-7702 delegation
// designation, and if so the delegated address (spec §4.C).
func (s *IntraBlockState) HasDelegatedDesignation(address libcommon.Address) (libcommon.Address, bool) {
	return types.ParseDelegation(s.GetCode(address))
}

func (s *IntraBlockState) GetState(address libcommon.Address, key libcommon.Hash) uint256.Int {
	obj := s.getStateObject(address)
	if obj == nil {
		return uint256.Int{}
	}
	if v, ok := obj.dirtyStorage[key]; ok {
		return v
	}
	if v, ok := obj.originStorage[key]; ok {
		return v
	}
	enc, err := s.stateReader.ReadAccountStorage(address, obj.data.Incarnation, &key)
	if err != nil || len(enc) == 0 {
		obj.originStorage[key] = uint256.Int{}
		return uint256.Int{}
	}
	var v uint256.Int
	v.SetBytes(enc)
	obj.originStorage[key] = v
	return v
}

func (s *IntraBlockState) SetState(address libcommon.Address, key libcommon.Hash, value uint256.Int) {
	obj := s.getOrNewStateObject(address)
	prev := s.GetState(address, key)
	_, existed := obj.dirtyStorage[key]
	s.journal.append(storageChange{account: &address, key: key, prevValue: prev, prevValueSet: existed || prev != (uint256.Int{})})
	obj.setStorage(key, value)
}

func (s *IntraBlockState) GetTransientState(address libcommon.Address, key libcommon.Hash) uint256.Int {
	if slots, ok := s.transientStorage[address]; ok {
		return slots[key]
	}
	return uint256.Int{}
}

func (s *IntraBlockState) SetTransientState(address libcommon.Address, key libcommon.Hash, value uint256.Int) {
	prev := s.GetTransientState(address, key)
	if prev == value {
		return
	}
	s.journal.append(transientStorageChange{account: address, key: key, prevalue: prev})
	s.setTransientState(address, key, value)
}

func (s *IntraBlockState) setTransientState(address libcommon.Address, key libcommon.Hash, value uint256.Int) {
	slots, ok := s.transientStorage[address]
	if !ok {
		slots = make(map[libcommon.Hash]uint256.Int)
		s.transientStorage[address] = slots
	}
	slots[key] = value
}

// SelfDestruct marks address for removal at the end of the transaction and records it in
// destructedThisBlock so a same-block recreate bumps incarnation.
func (s *IntraBlockState) SelfDestruct(address libcommon.Address) bool {
	obj := s.getStateObject(address)
	if obj == nil {
		return false
	}
	s.journal.append(selfDestructChange{account: &address, prev: obj.selfDestructed, prevBalance: obj.data.Balance})
	obj.selfDestructed = true
	obj.setBalance(uint256.Int{})
	s.destructedThisBlock[address] = struct{}{}
	return true
}

func (s *IntraBlockState) HasSelfDestructed(address libcommon.Address) bool {
	obj := s.getStateObject(address)
	return obj != nil && obj.selfDestructed
}

// AddressInAccessList / SlotInAccessList / AddAddressToAccessList / AddSlotToAccessList
// implement the EIP-2929/2930 warm/cold tracking spec §3/§4.C describes.
func (s *IntraBlockState) AddressInAccessList(address libcommon.Address) bool {
	return s.accessList.containsAddress(address)
}

func (s *IntraBlockState) SlotInAccessList(address libcommon.Address, slot libcommon.Hash) (addressOk, slotOk bool) {
	return s.accessList.contains(address, slot)
}

func (s *IntraBlockState) AddAddressToAccessList(address libcommon.Address) {
	if s.accessList.addAddress(address) {
		s.journal.append(accessListAddAccountChange{address: &address})
	}
}

func (s *IntraBlockState) AddSlotToAccessList(address libcommon.Address, slot libcommon.Hash) {
	addrChanged, slotChanged := s.accessList.addSlot(address, slot)
	if addrChanged {
		s.journal.append(accessListAddAccountChange{address: &address})
	}
	if slotChanged {
		s.journal.append(accessListAddSlotChange{address: &address, slot: slot})
	}
}

func (s *IntraBlockState) AddRefund(gas uint64) {
	s.journal.append(refundChange{prev: s.refund})
	s.refund += gas
}

func (s *IntraBlockState) SubRefund(gas uint64) {
	s.journal.append(refundChange{prev: s.refund})
	if gas > s.refund {
		panic("state: refund counter below zero")
	}
	s.refund -= gas
}

func (s *IntraBlockState) GetRefund() uint64 { return s.refund }

func (s *IntraBlockState) AddLog(log *types.Log) {
	s.journal.append(accountTouchedChange{account: &log.Address})
	s.logs = append(s.logs, log)
	s.logSize++
}

func (s *IntraBlockState) Logs() []*types.Log { return s.logs }

// Finalise commits the dirty objects accumulated during a transaction into the persistent
// cache, clearing selfdestructed accounts' storage views. Called once per transaction after
// its snapshot has been accepted (spec §4.D).
func (s *IntraBlockState) Finalise(deleteEmptyObjects bool) {
	for addr, obj := range s.stateObjects {
		if obj.selfDestructed || (deleteEmptyObjects && obj.empty()) {
			obj.deleted = true
		}
		s.stateObjectsDirty[addr] = struct{}{}
	}
}
