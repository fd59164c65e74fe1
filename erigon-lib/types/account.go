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

// Package types holds the core's world-state value objects: Account, Log, Withdrawal,
// Header, Block and the five transaction variants. Encoding lives alongside each type
// (Account has its own compact PlainState encoding distinct from its RLP commitment leaf
// form) rather than in a separate marshalling package, following the teacher's
// erigon-lib/types layout convention.
package types

import (
	"github.com/holiman/uint256"

	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/crypto"
	"github.com/erigontech/erigon-core/erigon-lib/rlp"
)

// EmptyCodeHash is the code hash of an account with no code, keccak256("").
var EmptyCodeHash = crypto.EmptyCodeHash

// EmptyRootHash is the root of an empty Merkle-Patricia trie, keccak256(RLP("")).
var EmptyRootHash = libcommon.BytesToHash(crypto.Keccak256([]byte{0x80}))

// Account is the PlainState value for an address (spec §3): nonce, balance, code hash,
// storage trie root, and the incarnation counter that invalidates a recreated contract's
// prior storage without having to delete every slot eagerly.
type Account struct {
	Nonce       uint64
	Balance     uint256.Int
	CodeHash    libcommon.Hash
	StorageRoot libcommon.Hash
	Incarnation uint64
}

// NewEmptyAccount returns the zero-value account a fresh address starts as.
func NewEmptyAccount() *Account {
	return &Account{CodeHash: EmptyCodeHash, StorageRoot: EmptyRootHash}
}

// IsEmpty reports EIP-161 emptiness: zero nonce, zero balance, no code.
func (a *Account) IsEmpty() bool {
	return a.Nonce == 0 && a.Balance.IsZero() && a.CodeHash == EmptyCodeHash
}

// EncodeForStorage serializes the account for the PlainState/HashedAccounts tables using
// erigon's variable-length field-bitmap encoding: a flags byte records which of the four
// variable fields are non-default, followed by only the bytes that vary, so an EOA with
// zero balance and nonce costs a single byte.
func (a *Account) EncodeForStorage() []byte {
	var fieldSet byte
	var buf []byte

	if a.Nonce > 0 {
		fieldSet |= 1
		buf = append(buf, encodeUvarint(a.Nonce)...)
	}
	if !a.Balance.IsZero() {
		fieldSet |= 2
		b := a.Balance.Bytes()
		buf = append(buf, byte(len(b)))
		buf = append(buf, b...)
	}
	if a.CodeHash != EmptyCodeHash {
		fieldSet |= 4
		buf = append(buf, a.CodeHash.Bytes()...)
	}
	if a.Incarnation > 0 {
		fieldSet |= 8
		buf = append(buf, encodeUvarint(a.Incarnation)...)
	}
	return append([]byte{fieldSet}, buf...)
}

// DecodeForStorage is the inverse of EncodeForStorage. StorageRoot is never stored inline
// (it's derived by the commitment builder) and is set to EmptyRootHash.
func (a *Account) DecodeForStorage(enc []byte) error {
	*a = Account{CodeHash: EmptyCodeHash, StorageRoot: EmptyRootHash}
	if len(enc) == 0 {
		return nil
	}
	fieldSet := enc[0]
	pos := 1

	if fieldSet&1 != 0 {
		n, read := decodeUvarint(enc[pos:])
		a.Nonce = n
		pos += read
	}
	if fieldSet&2 != 0 {
		l := int(enc[pos])
		pos++
		a.Balance.SetBytes(enc[pos : pos+l])
		pos += l
	}
	if fieldSet&4 != 0 {
		a.CodeHash = libcommon.BytesToHash(enc[pos : pos+32])
		pos += 32
	}
	if fieldSet&8 != 0 {
		n, read := decodeUvarint(enc[pos:])
		a.Incarnation = n
		pos += read
	}
	return nil
}

// encodeUvarint writes v as a length-prefixed big-endian trimmed integer: one byte giving
// the trimmed width, followed by that many bytes. A zero value never reaches here (callers
// gate on the fieldSet bit), so the trimmed form is never empty.
func encodeUvarint(v uint64) []byte {
	be := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		be[i] = byte(v)
		v >>= 8
	}
	i := 0
	for i < 7 && be[i] == 0 {
		i++
	}
	trimmed := be[i:]
	return append([]byte{byte(len(trimmed))}, trimmed...)
}

func decodeUvarint(b []byte) (uint64, int) {
	l := int(b[0])
	var v uint64
	for _, c := range b[1 : 1+l] {
		v = v<<8 | uint64(c)
	}
	return v, 1 + l
}

// CommitmentLeaf returns the RLP list [nonce, balance, storage_root, code_hash] that the
// commitment builder hashes as the account trie's leaf value (spec §4.B).
func (a *Account) CommitmentLeaf() []byte {
	return rlp.List(
		rlp.EncodeUint64(a.Nonce),
		rlp.EncodeBigInt(a.Balance.ToBig()),
		rlp.EncodeString(a.StorageRoot.Bytes()),
		rlp.EncodeString(a.CodeHash.Bytes()),
	)
}
