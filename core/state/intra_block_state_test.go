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
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/types"
)

// nullReader always reports a cache miss; tests seed state directly via CreateAccount /
// AddBalance rather than through a backing KV store.
type nullReader struct{}

func (nullReader) ReadAccountData(libcommon.Address) (*types.Account, error) { return nil, nil }
func (nullReader) ReadAccountStorage(libcommon.Address, uint64, *libcommon.Hash) ([]byte, error) {
	return nil, nil
}
func (nullReader) ReadAccountCode(libcommon.Address, uint64) ([]byte, error)  { return nil, nil }
func (nullReader) ReadAccountCodeSize(libcommon.Address, uint64) (int, error) { return 0, nil }
func (nullReader) ReadAccountIncarnation(libcommon.Address) (uint64, error)   { return 0, nil }
func (nullReader) DiscardReadList()                                          {}
func (nullReader) ReadSet() map[string][]string                              { return nil }
func (nullReader) ResetReadSet()                                             {}

func addr(b byte) libcommon.Address { return libcommon.BytesToAddress([]byte{b}) }

// TestSnapshotRevert_S2 covers scenario S2 and spec §8 property 1: a value transfer between
// two accounts, reverted to a snapshot taken before the transfer, restores both accounts'
// balances and existence byte-identically.
func TestSnapshotRevert_S2(t *testing.T) {
	a, b := addr(1), addr(2)
	s := New(nullReader{})

	s.CreateAccount(a, false)
	s.AddBalance(a, uint256.NewInt(1000))
	require.False(t, s.Exist(b))

	snap := s.Snapshot()
	s.SubBalance(a, uint256.NewInt(400))
	s.AddBalance(b, uint256.NewInt(400))

	require.Equal(t, uint64(600), s.GetBalance(a).Uint64())
	require.Equal(t, uint64(400), s.GetBalance(b).Uint64())
	require.True(t, s.Exist(a))
	require.True(t, s.Exist(b))

	s.RevertToSnapshot(snap)

	require.Equal(t, uint64(1000), s.GetBalance(a).Uint64())
	require.False(t, s.Exist(b))
}

// TestNestedSnapshots covers spec §8 property 1's s1 ⊂ s2 case: reverting to the outer
// snapshot undoes everything recorded after it, including changes made after the inner,
// already-discarded snapshot was taken.
func TestNestedSnapshots(t *testing.T) {
	a := addr(1)
	s := New(nullReader{})
	s.CreateAccount(a, false)
	s.AddBalance(a, uint256.NewInt(100))

	outer := s.Snapshot()
	s.AddBalance(a, uint256.NewInt(50)) // balance now 150
	inner := s.Snapshot()
	s.AddBalance(a, uint256.NewInt(25)) // balance now 175
	require.Equal(t, uint64(175), s.GetBalance(a).Uint64())

	_ = inner // inner snapshot is simply abandoned, not reverted to

	s.RevertToSnapshot(outer)
	require.Equal(t, uint64(100), s.GetBalance(a).Uint64())
}

// TestRevertToCreation covers spec §8 property 2: after creating an account and reverting
// to the snapshot taken before creation, the account is gone again (indistinguishable from
// the backing store's absent value).
func TestRevertToCreation(t *testing.T) {
	a := addr(1)
	s := New(nullReader{})
	snap := s.Snapshot()
	s.CreateAccount(a, false)
	s.AddBalance(a, uint256.NewInt(10))
	require.True(t, s.Exist(a))

	s.RevertToSnapshot(snap)
	require.False(t, s.Exist(a))
}

// TestAccessListColdWarm_S3 covers scenario S3 and spec §8 property 3: first access to an
// address is cold, the next is warm, and reverting to a snapshot taken before the first
// access makes the address cold again.
func TestAccessListColdWarm_S3(t *testing.T) {
	s := New(nullReader{})
	x, y := addr(0x10), addr(0x20)

	require.Equal(t, uint64(ColdAccountAccessCost), s.AccessAddress(x))
	require.Equal(t, uint64(WarmStorageReadCost), s.AccessAddress(x))

	snapBeforeY := s.Snapshot()
	require.Equal(t, uint64(ColdAccountAccessCost), s.AccessAddress(y))
	s.RevertToSnapshot(snapBeforeY)

	require.Equal(t, uint64(ColdAccountAccessCost), s.AccessAddress(y))
}

// TestAccessSlot_ColdWarmDistinction covers spec §3's "address warm / slots unknown" vs
// "address warm / slot warm" distinction: warming a slot also warms its address, but warming
// an address alone leaves its slots cold.
func TestAccessSlot_ColdWarmDistinction(t *testing.T) {
	s := New(nullReader{})
	x := addr(0x30)
	slot := libcommon.Hash{1}

	s.AddAddressToAccessList(x)
	addrWarm, slotWarm := s.SlotInAccessList(x, slot)
	require.True(t, addrWarm)
	require.False(t, slotWarm)

	require.Equal(t, uint64(ColdSloadCost), s.AccessSlot(x, slot))
	require.Equal(t, uint64(WarmStorageReadCost), s.AccessSlot(x, slot))
}

// TestRefundRevert covers spec §8 property 1's refund clause: AddRefund/SubRefund are
// journaled and unwound like any other mutation.
func TestRefundRevert(t *testing.T) {
	s := New(nullReader{})
	s.AddRefund(100)
	snap := s.Snapshot()
	s.AddRefund(50)
	s.SubRefund(30)
	require.Equal(t, uint64(120), s.GetRefund())

	s.RevertToSnapshot(snap)
	require.Equal(t, uint64(100), s.GetRefund())
}

// TestTransientStorageRevert covers spec §4.C: tset entries are journaled so intra-transaction
// revert restores prior values, even though transient storage isn't cleared until tx end.
func TestTransientStorageRevert(t *testing.T) {
	s := New(nullReader{})
	x := addr(0x40)
	key := libcommon.Hash{2}

	s.SetTransientState(x, key, *uint256.NewInt(7))
	snap := s.Snapshot()
	s.SetTransientState(x, key, *uint256.NewInt(99))
	require.Equal(t, uint64(99), s.GetTransientState(x, key).Uint64())

	s.RevertToSnapshot(snap)
	require.Equal(t, uint64(7), s.GetTransientState(x, key).Uint64())

	s.StartTransaction(1)
	require.Equal(t, uint64(0), s.GetTransientState(x, key).Uint64())
}

// TestSelfDestructRevert covers spec §4.C's selfdestruct-mark journaling: reverting restores
// both the self-destructed flag and the zeroed balance.
func TestSelfDestructRevert(t *testing.T) {
	s := New(nullReader{})
	a := addr(0x50)
	s.CreateAccount(a, false)
	s.AddBalance(a, uint256.NewInt(500))

	snap := s.Snapshot()
	s.SelfDestruct(a)
	require.True(t, s.HasSelfDestructed(a))
	require.Equal(t, uint64(0), s.GetBalance(a).Uint64())

	s.RevertToSnapshot(snap)
	require.False(t, s.HasSelfDestructed(a))
	require.Equal(t, uint64(500), s.GetBalance(a).Uint64())
}

// TestIncarnationBump_SameBlockRecreate covers the stricter Erigon incarnation rule (spec §9
// Open Question 4, SPEC_FULL's destructedThisBlock addition): a CREATE that reuses an
// address selfdestructed earlier in the same block bumps incarnation even though the account
// object itself was deleted.
func TestIncarnationBump_SameBlockRecreate(t *testing.T) {
	a := addr(0x60)
	s := New(nullReader{})
	s.CreateAccount(a, true)
	require.Equal(t, uint64(0), s.getStateObject(a).data.Incarnation)

	s.SelfDestruct(a)
	s.Finalise(true)

	s.CreateAccount(a, true)
	require.Equal(t, uint64(1), s.getStateObject(a).data.Incarnation)
}
