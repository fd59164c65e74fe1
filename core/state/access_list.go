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

import libcommon "github.com/erigontech/erigon-core/erigon-lib/common"

// EIP-2929/2930 cold/warm gas costs (spec §3/§4.C).
const (
	ColdAccountAccessCost = 2600
	WarmStorageReadCost   = 100
	ColdSloadCost         = 2100
)

// accessList tracks which addresses and (address, slot) pairs have been "warmed" during the
// current transaction — distinguishing "address warm / slots unknown" from
// "address warm / slot warm" per spec §3.
type accessList struct {
	addresses map[libcommon.Address]struct{}
	slots     map[libcommon.Address]map[libcommon.Hash]struct{}
}

func newAccessList() *accessList {
	return &accessList{addresses: make(map[libcommon.Address]struct{})}
}

// containsAddress reports whether address is warm, regardless of its slots.
func (al *accessList) containsAddress(address libcommon.Address) bool {
	_, ok := al.addresses[address]
	return ok
}

// contains reports (addressWarm, slotWarm).
func (al *accessList) contains(address libcommon.Address, slot libcommon.Hash) (addressPresent, slotPresent bool) {
	if _, ok := al.addresses[address]; !ok {
		return false, false
	}
	if slots, ok := al.slots[address]; ok {
		_, slotPresent = slots[slot]
	}
	return true, slotPresent
}

// addAddress marks address warm if it wasn't already. Returns true if this call changed
// state (so the caller can journal it).
func (al *accessList) addAddress(address libcommon.Address) bool {
	if _, ok := al.addresses[address]; ok {
		return false
	}
	al.addresses[address] = struct{}{}
	return true
}

// addSlot marks (address, slot) warm, implicitly warming address too if needed. Returns
// (addressChanged, slotChanged).
func (al *accessList) addSlot(address libcommon.Address, slot libcommon.Hash) (addrChange bool, slotChange bool) {
	addrChange = al.addAddress(address)
	if al.slots == nil {
		al.slots = make(map[libcommon.Address]map[libcommon.Hash]struct{})
	}
	slots, ok := al.slots[address]
	if !ok {
		slots = make(map[libcommon.Hash]struct{})
		al.slots[address] = slots
	}
	if _, ok := slots[slot]; ok {
		return addrChange, false
	}
	slots[slot] = struct{}{}
	return addrChange, true
}

func (al *accessList) removeAddress(address libcommon.Address) {
	delete(al.addresses, address)
}

func (al *accessList) removeSlot(address libcommon.Address, slot libcommon.Hash) {
	if slots, ok := al.slots[address]; ok {
		delete(slots, slot)
		if len(slots) == 0 {
			delete(al.slots, address)
		}
	}
}
