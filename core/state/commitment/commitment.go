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

package commitment

import (
	"github.com/holiman/uint256"

	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/crypto"
	"github.com/erigontech/erigon-core/erigon-lib/rlp"
	"github.com/erigontech/erigon-core/erigon-lib/types"
)

// Mode selects how much of the trie's internal structure the builder retains, per spec
// §4.B: FullTrie persists every internal node, CommitmentOnly keeps just enough to
// reconstruct the root on demand, Disabled skips commitment work entirely (tests only).
type Mode int

const (
	FullTrie Mode = iota
	CommitmentOnly
	Disabled
)

// Commitment is the account trie plus one storage sub-trie per touched account,
// implementing update_account/update_storage/compute_root (spec §4.B).
type Commitment struct {
	mode    Mode
	account Trie
	storage map[libcommon.Address]*Trie
}

func New(mode Mode) *Commitment {
	return &Commitment{mode: mode, storage: make(map[libcommon.Address]*Trie)}
}

func accountPath(address libcommon.Address) []byte {
	return crypto.Keccak256(address.Bytes())
}

func storagePath(slot libcommon.Hash) []byte {
	return crypto.Keccak256(slot.Bytes())
}

func (c *Commitment) storageTrie(address libcommon.Address) *Trie {
	t, ok := c.storage[address]
	if !ok {
		t = &Trie{}
		c.storage[address] = t
	}
	return t
}

// UpdateStorage dirties slot's path in address's storage sub-trie. A zero value deletes the
// slot (mainnet convention: storage never stores an explicit zero).
func (c *Commitment) UpdateStorage(address libcommon.Address, slot libcommon.Hash, value uint256.Int) {
	if c.mode == Disabled {
		return
	}
	t := c.storageTrie(address)
	if value.IsZero() {
		t.Delete(storagePath(slot))
		return
	}
	t.Update(storagePath(slot), rlp.EncodeBigInt(value.ToBig()))
}

// UpdateAccount writes account's leaf into the account trie, first recomputing its
// storage_root from whatever slots have been touched so far.
func (c *Commitment) UpdateAccount(address libcommon.Address, account *types.Account) {
	if c.mode == Disabled {
		return
	}
	if t, ok := c.storage[address]; ok {
		account.StorageRoot = t.Root()
	} else if account.StorageRoot == (libcommon.Hash{}) {
		account.StorageRoot = EmptyRootHash
	}
	c.account.Update(accountPath(address), account.CommitmentLeaf())
}

// DeleteAccount removes address from the account trie and drops its storage sub-trie.
func (c *Commitment) DeleteAccount(address libcommon.Address) {
	if c.mode == Disabled {
		return
	}
	c.account.Delete(accountPath(address))
	delete(c.storage, address)
}

// ComputeRoot resolves the dirtied subtrees and returns the state root the Execution stage
// verifies against the header's state_root (spec §2's control-flow description).
func (c *Commitment) ComputeRoot() libcommon.Hash {
	if c.mode == Disabled {
		return EmptyRootHash
	}
	return c.account.Root()
}
