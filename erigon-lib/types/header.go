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

package types

import (
	"fmt"

	"github.com/holiman/uint256"

	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/crypto"
	"github.com/erigontech/erigon-core/erigon-lib/rlp"
)

// Header holds the fields the core consumes (spec §3) — not a full mainnet header
// reproduction, since fields like mix_hash/nonce/extra_data/difficulty never reach the
// state-transition or commitment boundary this module implements.
type Header struct {
	ParentHash      libcommon.Hash
	Coinbase        libcommon.Address
	Number          uint64
	GasLimit        uint64
	GasUsed         uint64
	Time            uint64
	BaseFee         *uint256.Int
	Root            libcommon.Hash // state_root
	TxHash          libcommon.Hash // transactions_root
	ReceiptHash     libcommon.Hash // receipts_root
	Bloom           Bloom
	WithdrawalsHash *libcommon.Hash
	BlobGasUsed     *uint64
	ExcessBlobGas   *uint64
}

// Hash returns the RLP-based keccak256 hash identifying this header, as used by
// CanonicalHeader/Header table keys.
func (h *Header) Hash() libcommon.Hash {
	items := [][]byte{
		rlp.EncodeString(h.ParentHash.Bytes()),
		rlp.EncodeString(h.Coinbase.Bytes()),
		rlp.EncodeUint64(h.Number),
		rlp.EncodeUint64(h.GasLimit),
		rlp.EncodeUint64(h.GasUsed),
		rlp.EncodeUint64(h.Time),
		rlp.EncodeString(h.Root.Bytes()),
		rlp.EncodeString(h.TxHash.Bytes()),
		rlp.EncodeString(h.ReceiptHash.Bytes()),
		rlp.EncodeString(h.Bloom[:]),
	}
	if h.BaseFee != nil {
		items = append(items, rlp.EncodeBigInt(h.BaseFee.ToBig()))
	}
	if h.WithdrawalsHash != nil {
		items = append(items, rlp.EncodeString(h.WithdrawalsHash.Bytes()))
	}
	if h.BlobGasUsed != nil {
		items = append(items, rlp.EncodeUint64(*h.BlobGasUsed))
	}
	if h.ExcessBlobGas != nil {
		items = append(items, rlp.EncodeUint64(*h.ExcessBlobGas))
	}
	return libcommon.BytesToHash(crypto.Keccak256(rlp.List(items...)))
}

// Block pairs a header with its body: ordered transactions and, post-Shanghai,
// withdrawals.
type Block struct {
	Header       *Header
	Transactions []Transaction
	Withdrawals  []*Withdrawal
}

// header storage flag bits (EncodeForStorage), distinct from the canonical hashing RLP in
// Hash(): the Headers table (spec §3) needs a representation that round-trips every
// optional field including nil-ness, not one that omits fields for hash compatibility.
const (
	headerHasBaseFee uint64 = 1 << iota
	headerHasWithdrawalsHash
	headerHasBlobGasUsed
	headerHasExcessBlobGas
)

// EncodeForStorage serializes the header for the Headers table, following the same
// flags-byte-plus-only-present-fields convention as Account.EncodeForStorage.
func (h *Header) EncodeForStorage() []byte {
	var flags uint64
	if h.BaseFee != nil {
		flags |= headerHasBaseFee
	}
	if h.WithdrawalsHash != nil {
		flags |= headerHasWithdrawalsHash
	}
	if h.BlobGasUsed != nil {
		flags |= headerHasBlobGasUsed
	}
	if h.ExcessBlobGas != nil {
		flags |= headerHasExcessBlobGas
	}

	items := [][]byte{
		rlp.EncodeUint64(flags),
		rlp.EncodeString(h.ParentHash.Bytes()),
		rlp.EncodeString(h.Coinbase.Bytes()),
		rlp.EncodeUint64(h.Number),
		rlp.EncodeUint64(h.GasLimit),
		rlp.EncodeUint64(h.GasUsed),
		rlp.EncodeUint64(h.Time),
		rlp.EncodeString(h.Root.Bytes()),
		rlp.EncodeString(h.TxHash.Bytes()),
		rlp.EncodeString(h.ReceiptHash.Bytes()),
		rlp.EncodeString(h.Bloom[:]),
	}
	if h.BaseFee != nil {
		items = append(items, rlp.EncodeBigInt(h.BaseFee.ToBig()))
	}
	if h.WithdrawalsHash != nil {
		items = append(items, rlp.EncodeString(h.WithdrawalsHash.Bytes()))
	}
	if h.BlobGasUsed != nil {
		items = append(items, rlp.EncodeUint64(*h.BlobGasUsed))
	}
	if h.ExcessBlobGas != nil {
		items = append(items, rlp.EncodeUint64(*h.ExcessBlobGas))
	}
	return rlp.List(items...)
}

// DecodeHeaderFromStorage is the inverse of EncodeForStorage.
func DecodeHeaderFromStorage(enc []byte) (*Header, error) {
	item, _, err := rlp.Decode(enc)
	if err != nil {
		return nil, err
	}
	fields, err := item.AsList()
	if err != nil {
		return nil, err
	}
	if len(fields) < 11 {
		return nil, fmt.Errorf("types: truncated header encoding, only %d fields", len(fields))
	}

	flags, err := fields[0].AsUint64()
	if err != nil {
		return nil, err
	}
	h := &Header{}
	parentHash, err := fields[1].AsBytes()
	if err != nil {
		return nil, err
	}
	h.ParentHash = libcommon.BytesToHash(parentHash)
	coinbase, err := fields[2].AsBytes()
	if err != nil {
		return nil, err
	}
	h.Coinbase = libcommon.BytesToAddress(coinbase)
	if h.Number, err = fields[3].AsUint64(); err != nil {
		return nil, err
	}
	if h.GasLimit, err = fields[4].AsUint64(); err != nil {
		return nil, err
	}
	if h.GasUsed, err = fields[5].AsUint64(); err != nil {
		return nil, err
	}
	if h.Time, err = fields[6].AsUint64(); err != nil {
		return nil, err
	}
	root, err := fields[7].AsBytes()
	if err != nil {
		return nil, err
	}
	h.Root = libcommon.BytesToHash(root)
	txHash, err := fields[8].AsBytes()
	if err != nil {
		return nil, err
	}
	h.TxHash = libcommon.BytesToHash(txHash)
	receiptHash, err := fields[9].AsBytes()
	if err != nil {
		return nil, err
	}
	h.ReceiptHash = libcommon.BytesToHash(receiptHash)
	bloom, err := fields[10].AsBytes()
	if err != nil {
		return nil, err
	}
	copy(h.Bloom[:], bloom)

	pos := 11
	if flags&headerHasBaseFee != 0 {
		v, err := fields[pos].AsBigInt()
		if err != nil {
			return nil, err
		}
		h.BaseFee = new(uint256.Int)
		h.BaseFee.SetFromBig(v)
		pos++
	}
	if flags&headerHasWithdrawalsHash != 0 {
		wh, err := fields[pos].AsBytes()
		if err != nil {
			return nil, err
		}
		hh := libcommon.BytesToHash(wh)
		h.WithdrawalsHash = &hh
		pos++
	}
	if flags&headerHasBlobGasUsed != 0 {
		v, err := fields[pos].AsUint64()
		if err != nil {
			return nil, err
		}
		h.BlobGasUsed = &v
		pos++
	}
	if flags&headerHasExcessBlobGas != 0 {
		v, err := fields[pos].AsUint64()
		if err != nil {
			return nil, err
		}
		h.ExcessBlobGas = &v
		pos++
	}
	return h, nil
}
