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
	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/types"
)

// AccessAddress implements the EVM call boundary's access_address (spec §6): returns the
// cold/warm gas cost of touching address and warms it for the rest of the transaction.
func (s *IntraBlockState) AccessAddress(address libcommon.Address) uint64 {
	if s.AddressInAccessList(address) {
		return WarmStorageReadCost
	}
	s.AddAddressToAccessList(address)
	return ColdAccountAccessCost
}

// AccessSlot implements access_slot: cold/warm gas cost of touching (address, slot),
// implicitly warming the address too (a cold slot access on an already-warm address still
// only costs ColdSloadCost, per EIP-2929).
func (s *IntraBlockState) AccessSlot(address libcommon.Address, slot libcommon.Hash) uint64 {
	_, slotWarm := s.SlotInAccessList(address, slot)
	if slotWarm {
		return WarmStorageReadCost
	}
	s.AddSlotToAccessList(address, slot)
	return ColdSloadCost
}

// PrepareAccessList pre-warms the addresses/slots EIP-2929 designates warm from the start
// of a transaction: the sender, the recipient (if any), every precompile, and any
// EIP-2930 access-list entries (spec §4.C).
func (s *IntraBlockState) PrepareAccessList(sender libcommon.Address, dst *libcommon.Address, precompiles []libcommon.Address, list types.AccessList) {
	s.AddAddressToAccessList(sender)
	if dst != nil {
		s.AddAddressToAccessList(*dst)
	}
	for _, addr := range precompiles {
		s.AddAddressToAccessList(addr)
	}
	for _, el := range list {
		s.AddAddressToAccessList(el.Address)
		for _, key := range el.StorageKeys {
			s.AddSlotToAccessList(el.Address, key)
		}
	}
}
