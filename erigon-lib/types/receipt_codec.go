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

// EncodeReceipts serializes a block's receipt list for the BlockReceipts table. Bloom is
// recomputed on decode rather than stored, the same redundancy-avoidance CreateBloom already
// relies on for the block-level filter.
func EncodeReceipts(receipts Receipts) []byte {
	items := make([][]byte, 0, len(receipts))
	for _, r := range receipts {
		items = append(items, encodeReceipt(r))
	}
	return rlp.List(items...)
}

func encodeReceipt(r *Receipt) []byte {
	logItems := make([][]byte, 0, len(r.Logs))
	for _, l := range r.Logs {
		logItems = append(logItems, encodeLog(l))
	}
	return rlp.List(
		rlp.EncodeUint64(r.Status),
		rlp.EncodeUint64(r.CumulativeGasUsed),
		rlp.EncodeString(r.TxHash.Bytes()),
		rlp.EncodeUint64(r.TransactionIndex),
		rlp.EncodeUint64(r.BlobGasUsed),
		rlp.List(logItems...),
	)
}

func encodeLog(l *Log) []byte {
	topicItems := make([][]byte, 0, len(l.Topics))
	for _, t := range l.Topics {
		topicItems = append(topicItems, rlp.EncodeString(t.Bytes()))
	}
	return rlp.List(
		rlp.EncodeString(l.Address.Bytes()),
		rlp.List(topicItems...),
		rlp.EncodeString(l.Data),
	)
}

// DecodeReceipts is the inverse of EncodeReceipts. BlockNumber/BlockHash are not stored in
// the encoding and are left zero in the decoded receipts.
func DecodeReceipts(enc []byte) (Receipts, error) {
	item, _, err := rlp.Decode(enc)
	if err != nil {
		return nil, err
	}
	fields, err := item.AsList()
	if err != nil {
		return nil, err
	}
	out := make(Receipts, 0, len(fields))
	for _, f := range fields {
		r, err := decodeReceipt(f)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func decodeReceipt(item rlp.Item) (*Receipt, error) {
	f, err := item.AsList()
	if err != nil || len(f) != 6 {
		return nil, fmt.Errorf("types: malformed receipt")
	}
	r := &Receipt{}
	if r.Status, err = f[0].AsUint64(); err != nil {
		return nil, err
	}
	if r.CumulativeGasUsed, err = f[1].AsUint64(); err != nil {
		return nil, err
	}
	txHashBytes, err := f[2].AsBytes()
	if err != nil {
		return nil, err
	}
	r.TxHash = libcommon.BytesToHash(txHashBytes)
	if r.TransactionIndex, err = f[3].AsUint64(); err != nil {
		return nil, err
	}
	if r.BlobGasUsed, err = f[4].AsUint64(); err != nil {
		return nil, err
	}
	logItems, err := f[5].AsList()
	if err != nil {
		return nil, err
	}
	for _, li := range logItems {
		log, err := decodeLog(li)
		if err != nil {
			return nil, err
		}
		r.Logs = append(r.Logs, log)
	}
	r.Bloom = CreateBloom(r.Logs)
	return r, nil
}

func decodeLog(item rlp.Item) (*Log, error) {
	f, err := item.AsList()
	if err != nil || len(f) != 3 {
		return nil, fmt.Errorf("types: malformed log")
	}
	l := &Log{}
	addrBytes, err := f[0].AsBytes()
	if err != nil {
		return nil, err
	}
	l.Address = libcommon.BytesToAddress(addrBytes)
	topicItems, err := f[1].AsList()
	if err != nil {
		return nil, err
	}
	for _, ti := range topicItems {
		tb, err := ti.AsBytes()
		if err != nil {
			return nil, err
		}
		l.Topics = append(l.Topics, libcommon.BytesToHash(tb))
	}
	if l.Data, err = f[2].AsBytes(); err != nil {
		return nil, err
	}
	return l, nil
}
