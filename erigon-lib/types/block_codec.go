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

	"github.com/erigontech/erigon-core/erigon-lib/rlp"
)

// EncodeBlockForSnapshot serializes a whole Block (header, full transactions,
// withdrawals) as a single segment word (spec §4.A), the shape the Snapshots stage
// feeds through erigon-lib/seg rather than the split Headers/Bodies/EthTx row-per-table
// encoding the live chain tables use.
func EncodeBlockForSnapshot(b *Block) []byte {
	txItems := make([][]byte, 0, len(b.Transactions))
	for _, txn := range b.Transactions {
		txItems = append(txItems, rlp.EncodeString(MarshalBinary(txn)))
	}
	return rlp.List(
		rlp.EncodeString(b.Header.EncodeForStorage()),
		rlp.List(txItems...),
		rlp.List(encodeWithdrawalItems(b.Withdrawals)...),
	)
}

// DecodeBlockFromSnapshot is the inverse of EncodeBlockForSnapshot.
func DecodeBlockFromSnapshot(enc []byte) (*Block, error) {
	item, _, err := rlp.Decode(enc)
	if err != nil {
		return nil, err
	}
	fields, err := item.AsList()
	if err != nil {
		return nil, err
	}
	if len(fields) != 3 {
		return nil, fmt.Errorf("types: snapshot block wants 3 fields, got %d", len(fields))
	}

	headerBytes, err := fields[0].AsBytes()
	if err != nil {
		return nil, err
	}
	header, err := DecodeHeaderFromStorage(headerBytes)
	if err != nil {
		return nil, err
	}

	txItems, err := fields[1].AsList()
	if err != nil {
		return nil, err
	}
	txns := make([]Transaction, 0, len(txItems))
	for _, ti := range txItems {
		tb, err := ti.AsBytes()
		if err != nil {
			return nil, err
		}
		txn, err := DecodeTransaction(tb)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	wItems, err := fields[2].AsList()
	if err != nil {
		return nil, err
	}
	withdrawals := make([]*Withdrawal, 0, len(wItems))
	for _, wi := range wItems {
		w, err := decodeWithdrawal(wi)
		if err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, w)
	}

	return &Block{Header: header, Transactions: txns, Withdrawals: withdrawals}, nil
}

func encodeWithdrawalItems(withdrawals []*Withdrawal) [][]byte {
	items := make([][]byte, 0, len(withdrawals))
	for _, w := range withdrawals {
		items = append(items, encodeWithdrawal(w))
	}
	return items
}
