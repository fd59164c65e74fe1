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

	"github.com/holiman/uint256"

	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/crypto"
	"github.com/erigontech/erigon-core/erigon-lib/kv"
	"github.com/erigontech/erigon-core/erigon-lib/types"
)

// StateWriter is the flush side of IntraBlockState.CommitBlock: it receives exactly the
// accounts/slots/code touched since the last commit, one call per changed item, so the
// Execution stage (spec §4.E) can fan a block's worth of dirty state out to PlainState,
// HashedAccounts/HashedStorage and the commitment builder without IntraBlockState knowing
// about any of those destinations itself.
type StateWriter interface {
	WriteAccountData(address libcommon.Address, account *types.Account) error
	WriteAccountStorage(address libcommon.Address, incarnation uint64, key libcommon.Hash, value uint256.Int) error
	WriteAccountCode(address libcommon.Address, incarnation uint64, codeHash libcommon.Hash, code []byte) error
	DeleteAccount(address libcommon.Address, original *types.Account) error
}

// accountStorageUpdater is the subset of *commitment.Commitment this writer drives; kept as
// an interface here so core/state never imports core/state/commitment (that import runs the
// other way, from the Execution stage, avoiding a package cycle).
type accountStorageUpdater interface {
	UpdateAccount(address libcommon.Address, account *types.Account)
	UpdateStorage(address libcommon.Address, slot libcommon.Hash, value uint256.Int)
	DeleteAccount(address libcommon.Address)
}

// PlainStateWriter writes straight through to PlainState/HashedAccounts/Code in one write
// transaction (spec §3's table list), and feeds the same updates into a commitment builder
// so the caller can call ComputeRoot once the whole block is flushed. Storage slots go to
// PlainState only; HashedStorage is not written.
type PlainStateWriter struct {
	tx         kv.RwTx
	commitment accountStorageUpdater
}

func NewPlainStateWriter(tx kv.RwTx, commitment accountStorageUpdater) *PlainStateWriter {
	return &PlainStateWriter{tx: tx, commitment: commitment}
}

func (w *PlainStateWriter) WriteAccountData(address libcommon.Address, account *types.Account) error {
	if w.commitment != nil {
		w.commitment.UpdateAccount(address, account)
	}
	enc := account.EncodeForStorage()
	if err := w.tx.Put(kv.PlainState, address.Bytes(), enc); err != nil {
		return err
	}
	return w.tx.Put(kv.HashedAccounts, crypto.Keccak256(address.Bytes()), enc)
}

func (w *PlainStateWriter) WriteAccountStorage(address libcommon.Address, incarnation uint64, key libcommon.Hash, value uint256.Int) error {
	if w.commitment != nil {
		w.commitment.UpdateStorage(address, key, value)
	}
	storageKey := plainStorageKey(address, incarnation, key)
	valBytes := value.Bytes()
	if len(valBytes) == 0 {
		return w.tx.Delete(kv.PlainState, storageKey)
	}
	return w.tx.Put(kv.PlainState, storageKey, valBytes)
}

func (w *PlainStateWriter) WriteAccountCode(_ libcommon.Address, _ uint64, codeHash libcommon.Hash, code []byte) error {
	if len(code) == 0 {
		return nil
	}
	return w.tx.Put(kv.Code, codeHash.Bytes(), code)
}

func (w *PlainStateWriter) DeleteAccount(address libcommon.Address, _ *types.Account) error {
	if w.commitment != nil {
		w.commitment.DeleteAccount(address)
	}
	if err := w.tx.Delete(kv.PlainState, address.Bytes()); err != nil {
		return err
	}
	return w.tx.Delete(kv.HashedAccounts, crypto.Keccak256(address.Bytes()))
}

func plainStorageKey(address libcommon.Address, incarnation uint64, key libcommon.Hash) []byte {
	buf := make([]byte, 20+8+32)
	copy(buf, address.Bytes())
	binary.BigEndian.PutUint64(buf[20:28], incarnation)
	copy(buf[28:], key.Bytes())
	return buf
}

// NoopWriter discards every write. Used by read-only simulation paths (rpc/ethapi's eth_call
// and eth_estimateGas) that need an IntraBlockState to run a message through but must never
// let its effects reach PlainState.
type NoopWriter struct{}

func (NoopWriter) WriteAccountData(libcommon.Address, *types.Account) error              { return nil }
func (NoopWriter) WriteAccountStorage(libcommon.Address, uint64, libcommon.Hash, uint256.Int) error {
	return nil
}
func (NoopWriter) WriteAccountCode(libcommon.Address, uint64, libcommon.Hash, []byte) error { return nil }
func (NoopWriter) DeleteAccount(libcommon.Address, *types.Account) error                    { return nil }

// CommitBlock flushes every stateObject touched since the previous CommitBlock, then clears
// the dirty set ready for the next block (spec §4.E: the Execution stage commits once per
// block, after all of that block's transactions have run).
func (s *IntraBlockState) CommitBlock(w StateWriter) error {
	for addr, obj := range s.stateObjects {
		if _, dirty := s.stateObjectsDirty[addr]; !dirty {
			continue
		}
		if obj.deleted {
			if err := w.DeleteAccount(addr, &obj.data); err != nil {
				return err
			}
			continue
		}
		for key, value := range obj.dirtyStorage {
			if err := w.WriteAccountStorage(addr, obj.data.Incarnation, key, value); err != nil {
				return err
			}
		}
		if obj.dirtyCode {
			if err := w.WriteAccountCode(addr, obj.data.Incarnation, obj.data.CodeHash, obj.code); err != nil {
				return err
			}
		}
		if err := w.WriteAccountData(addr, &obj.data); err != nil {
			return err
		}
	}
	s.stateObjectsDirty = make(map[libcommon.Address]struct{})
	return nil
}
