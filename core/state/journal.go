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
)

// journalEntry is one undo record. revert restores IntraBlockState to the state it had
// before the entry's mutating call was made; entries never reach back further than their
// own "prev" value, so revert order must be strictly last-in-first-out.
type journalEntry interface {
	revert(s *IntraBlockState)
	dirtied() *libcommon.Address
}

// journal is the flat, ordered undo log spec §4.C describes: no per-object history, a
// single slice shared by the whole IntraBlockState, with snapshots recorded as lengths into
// it.
type journal struct {
	entries []journalEntry
	dirties map[libcommon.Address]int // address -> number of dirtying journal entries
}

func newJournal() *journal {
	return &journal{dirties: make(map[libcommon.Address]int)}
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
	if addr := entry.dirtied(); addr != nil {
		j.dirties[*addr]++
	}
}

// length is the current snapshot id: reverting to it means popping back down to it.
func (j *journal) length() int { return len(j.entries) }

// revertTo replays entries newest-first back down to snapshot id, undoing each one and
// decrementing its dirty-count.
func (j *journal) revertTo(s *IntraBlockState, id int) {
	for i := len(j.entries) - 1; i >= id; i-- {
		j.entries[i].revert(s)
		if addr := j.entries[i].dirtied(); addr != nil {
			if j.dirties[*addr]--; j.dirties[*addr] == 0 {
				delete(j.dirties, *addr)
			}
		}
	}
	j.entries = j.entries[:id]
}

// The 11 journal entry variants named in spec §4.C.

type accountTouchedChange struct{ account *libcommon.Address }
type balanceChange struct {
	account *libcommon.Address
	prev    uint256.Int
}
type nonceChange struct {
	account *libcommon.Address
	prev    uint64
}
type storageChange struct {
	account       *libcommon.Address
	key           libcommon.Hash
	prevValue     uint256.Int
	prevValueSet  bool
}
type codeChange struct {
	account  *libcommon.Address
	prevHash libcommon.Hash
}
type accessListAddAccountChange struct{ address *libcommon.Address }
type accessListAddSlotChange struct {
	address *libcommon.Address
	slot    libcommon.Hash
}
type refundChange struct{ prev uint64 }
type selfDestructChange struct {
	account     *libcommon.Address
	prev        bool // whether account had already self-destructed
	prevBalance uint256.Int
}
type createObjectChange struct{ account *libcommon.Address }
type transientStorageChange struct {
	account  libcommon.Address
	key      libcommon.Hash
	prevalue uint256.Int
}

func (ch accountTouchedChange) revert(s *IntraBlockState) { delete(s.touched, *ch.account) }
func (ch accountTouchedChange) dirtied() *libcommon.Address { return ch.account }

func (ch balanceChange) revert(s *IntraBlockState) {
	s.getOrNewStateObject(*ch.account).setBalance(ch.prev)
}
func (ch balanceChange) dirtied() *libcommon.Address { return ch.account }

func (ch nonceChange) revert(s *IntraBlockState) {
	s.getOrNewStateObject(*ch.account).setNonce(ch.prev)
}
func (ch nonceChange) dirtied() *libcommon.Address { return ch.account }

func (ch storageChange) revert(s *IntraBlockState) {
	obj := s.getOrNewStateObject(*ch.account)
	if ch.prevValueSet {
		obj.setStorage(ch.key, ch.prevValue)
	} else {
		obj.deleteStorage(ch.key)
	}
}
func (ch storageChange) dirtied() *libcommon.Address { return ch.account }

func (ch codeChange) revert(s *IntraBlockState) {
	s.getOrNewStateObject(*ch.account).setCodeHash(ch.prevHash)
}
func (ch codeChange) dirtied() *libcommon.Address { return ch.account }

func (ch accessListAddAccountChange) revert(s *IntraBlockState) {
	s.accessList.removeAddress(*ch.address)
}
func (ch accessListAddAccountChange) dirtied() *libcommon.Address { return nil }

func (ch accessListAddSlotChange) revert(s *IntraBlockState) {
	s.accessList.removeSlot(*ch.address, ch.slot)
}
func (ch accessListAddSlotChange) dirtied() *libcommon.Address { return nil }

func (ch refundChange) revert(s *IntraBlockState)       { s.refund = ch.prev }
func (ch refundChange) dirtied() *libcommon.Address     { return nil }

func (ch selfDestructChange) revert(s *IntraBlockState) {
	obj := s.getOrNewStateObject(*ch.account)
	obj.selfDestructed = ch.prev
	obj.setBalance(ch.prevBalance)
}
func (ch selfDestructChange) dirtied() *libcommon.Address { return ch.account }

func (ch createObjectChange) revert(s *IntraBlockState) {
	delete(s.stateObjects, *ch.account)
	delete(s.stateObjectsDirty, *ch.account)
}
func (ch createObjectChange) dirtied() *libcommon.Address { return ch.account }

func (ch transientStorageChange) revert(s *IntraBlockState) {
	s.setTransientState(ch.account, ch.key, ch.prevalue)
}
func (ch transientStorageChange) dirtied() *libcommon.Address { return nil }
