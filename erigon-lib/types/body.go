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

	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/rlp"
)

// BodyForStorage is the Bodies table value (spec §3: "RLP: tx hash list + withdrawals"):
// the ordered transaction hashes belonging to the block plus, post-Shanghai, withdrawals.
// BaseTxId anchors the hash list into the EthTx table's auto-increment key space, so the
// Bodies stage never needs to rewrite earlier bodies when assigning new tx ids.
type BodyForStorage struct {
	BaseTxId    uint64
	TxHashes    []libcommon.Hash
	Withdrawals []*Withdrawal
}

// EncodeForStorage serializes a BodyForStorage for the Bodies table.
func (b *BodyForStorage) EncodeForStorage() []byte {
	hashItems := make([][]byte, 0, len(b.TxHashes))
	for _, h := range b.TxHashes {
		hashItems = append(hashItems, rlp.EncodeString(h.Bytes()))
	}
	wItems := make([][]byte, 0, len(b.Withdrawals))
	for _, w := range b.Withdrawals {
		wItems = append(wItems, encodeWithdrawal(w))
	}
	return rlp.List(
		rlp.EncodeUint64(b.BaseTxId),
		rlp.List(hashItems...),
		rlp.List(wItems...),
	)
}

// DecodeBodyForStorage is the inverse of EncodeForStorage.
func DecodeBodyForStorage(enc []byte) (*BodyForStorage, error) {
	item, _, err := rlp.Decode(enc)
	if err != nil {
		return nil, err
	}
	fields, err := item.AsList()
	if err != nil {
		return nil, err
	}
	if len(fields) != 3 {
		return nil, fmt.Errorf("types: body wants 3 fields, got %d", len(fields))
	}
	b := &BodyForStorage{}
	if b.BaseTxId, err = fields[0].AsUint64(); err != nil {
		return nil, err
	}
	hashItems, err := fields[1].AsList()
	if err != nil {
		return nil, err
	}
	for _, hi := range hashItems {
		hb, err := hi.AsBytes()
		if err != nil {
			return nil, err
		}
		b.TxHashes = append(b.TxHashes, libcommon.BytesToHash(hb))
	}
	wItems, err := fields[2].AsList()
	if err != nil {
		return nil, err
	}
	for _, wi := range wItems {
		w, err := decodeWithdrawal(wi)
		if err != nil {
			return nil, err
		}
		b.Withdrawals = append(b.Withdrawals, w)
	}
	return b, nil
}

func encodeWithdrawal(w *Withdrawal) []byte {
	return rlp.List(
		rlp.EncodeUint64(w.Index),
		rlp.EncodeUint64(w.ValidatorIndex),
		rlp.EncodeString(w.Address.Bytes()),
		rlp.EncodeUint64(w.AmountGwei),
	)
}

func decodeWithdrawal(item rlp.Item) (*Withdrawal, error) {
	f, err := item.AsList()
	if err != nil || len(f) != 4 {
		return nil, fmt.Errorf("types: malformed withdrawal")
	}
	w := &Withdrawal{}
	if w.Index, err = f[0].AsUint64(); err != nil {
		return nil, err
	}
	if w.ValidatorIndex, err = f[1].AsUint64(); err != nil {
		return nil, err
	}
	addrBytes, err := f[2].AsBytes()
	if err != nil {
		return nil, err
	}
	w.Address = libcommon.BytesToAddress(addrBytes)
	if w.AmountGwei, err = f[3].AsUint64(); err != nil {
		return nil, err
	}
	return w, nil
}
