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
	"github.com/erigontech/erigon-core/erigon-lib/crypto"
	"github.com/erigontech/erigon-core/erigon-lib/rlp"
)

// MarshalBinary returns the canonical wire/storage encoding of a signed transaction: the
// bare RLP list for a legacy transaction, or txType||RLP(fields...) for the typed variants
// (EIP-2718). This is the encoding the EthTx table (spec §3) stores and TxHash hashes.
func MarshalBinary(tx Transaction) []byte {
	v, r, s := tx.RawSignatureValues()
	switch t := tx.(type) {
	case *LegacyTx:
		return rlp.List(
			rlp.EncodeUint64(t.Nonce),
			rlp.EncodeBigInt(t.GasPrice.ToBig()),
			rlp.EncodeUint64(t.GasLimit),
			toAddr(t.To),
			rlp.EncodeBigInt(t.Value.ToBig()),
			rlp.EncodeString(t.Data),
			rlp.EncodeBigInt(v.ToBig()),
			rlp.EncodeBigInt(r.ToBig()),
			rlp.EncodeBigInt(s.ToBig()),
		)
	case *AccessListTx:
		payload := rlp.List(
			rlp.EncodeBigInt(t.ChainID.ToBig()),
			rlp.EncodeUint64(t.Nonce),
			rlp.EncodeBigInt(t.GasPrice.ToBig()),
			rlp.EncodeUint64(t.GasLimit),
			toAddr(t.To),
			rlp.EncodeBigInt(t.Value.ToBig()),
			rlp.EncodeString(t.Data),
			accessListItems(t.AccessList),
			rlp.EncodeBigInt(v.ToBig()),
			rlp.EncodeBigInt(r.ToBig()),
			rlp.EncodeBigInt(s.ToBig()),
		)
		return append([]byte{byte(AccessListTxType)}, payload...)
	case *DynamicFeeTx:
		payload := rlp.List(
			rlp.EncodeBigInt(t.ChainID.ToBig()),
			rlp.EncodeUint64(t.Nonce),
			rlp.EncodeBigInt(t.TipCap.ToBig()),
			rlp.EncodeBigInt(t.FeeCap.ToBig()),
			rlp.EncodeUint64(t.GasLimit),
			toAddr(t.To),
			rlp.EncodeBigInt(t.Value.ToBig()),
			rlp.EncodeString(t.Data),
			accessListItems(t.AccessList),
			rlp.EncodeBigInt(v.ToBig()),
			rlp.EncodeBigInt(r.ToBig()),
			rlp.EncodeBigInt(s.ToBig()),
		)
		return append([]byte{byte(DynamicFeeTxType)}, payload...)
	case *BlobTx:
		hashes := make([][]byte, 0, len(t.BlobHashes))
		for _, h := range t.BlobHashes {
			hashes = append(hashes, rlp.EncodeString(h.Bytes()))
		}
		payload := rlp.List(
			rlp.EncodeBigInt(t.ChainID.ToBig()),
			rlp.EncodeUint64(t.Nonce),
			rlp.EncodeBigInt(t.TipCap.ToBig()),
			rlp.EncodeBigInt(t.FeeCap.ToBig()),
			rlp.EncodeUint64(t.GasLimit),
			toAddr(t.To),
			rlp.EncodeBigInt(t.Value.ToBig()),
			rlp.EncodeString(t.Data),
			accessListItems(t.AccessList),
			rlp.EncodeBigInt(t.MaxFeePerBlob.ToBig()),
			rlp.List(hashes...),
			rlp.EncodeBigInt(v.ToBig()),
			rlp.EncodeBigInt(r.ToBig()),
			rlp.EncodeBigInt(s.ToBig()),
		)
		return append([]byte{byte(BlobTxType)}, payload...)
	case *SetCodeTx:
		auths := make([][]byte, 0, len(t.Authorizations))
		for _, a := range t.Authorizations {
			auths = append(auths, rlp.List(
				rlp.EncodeString(a.ChainID.Bytes()),
				rlp.EncodeString(a.Address.Bytes()),
				rlp.EncodeUint64(a.Nonce),
				rlp.EncodeUint64(uint64(a.V)),
				rlp.EncodeBigInt(a.R.ToBig()),
				rlp.EncodeBigInt(a.S.ToBig()),
			))
		}
		payload := rlp.List(
			rlp.EncodeBigInt(t.ChainID.ToBig()),
			rlp.EncodeUint64(t.Nonce),
			rlp.EncodeBigInt(t.TipCap.ToBig()),
			rlp.EncodeBigInt(t.FeeCap.ToBig()),
			rlp.EncodeUint64(t.GasLimit),
			toAddr(t.To),
			rlp.EncodeBigInt(t.Value.ToBig()),
			rlp.EncodeString(t.Data),
			accessListItems(t.AccessList),
			rlp.List(auths...),
			rlp.EncodeBigInt(v.ToBig()),
			rlp.EncodeBigInt(r.ToBig()),
			rlp.EncodeBigInt(s.ToBig()),
		)
		return append([]byte{byte(SetCodeTxType)}, payload...)
	default:
		panic(fmt.Sprintf("types: unknown transaction concrete type %T", tx))
	}
}

// TxHash returns the canonical transaction hash: keccak256 of MarshalBinary's output. This
// is the value stored in TxLookup keys and a Receipt's TxHash field (spec §3).
func TxHash(tx Transaction) libcommon.Hash {
	return crypto.Keccak256Hash(MarshalBinary(tx))
}

// DecodeTransaction parses a MarshalBinary encoding back into a concrete Transaction. The
// first byte discriminates: < 0xc0 is never valid as a top-level RLP item for any of our
// variants' first byte, so a pre-2718 legacy transaction is detected by its payload simply
// starting with an RLP list header (0xc0-0xff) instead of a type byte.
func DecodeTransaction(enc []byte) (Transaction, error) {
	if len(enc) == 0 {
		return nil, fmt.Errorf("types: empty transaction encoding")
	}
	if enc[0] >= 0xc0 {
		return decodeLegacyTx(enc)
	}
	txType := TxType(enc[0])
	item, _, err := rlp.Decode(enc[1:])
	if err != nil {
		return nil, err
	}
	fields, err := item.AsList()
	if err != nil {
		return nil, err
	}
	switch txType {
	case AccessListTxType:
		return decodeAccessListTx(fields)
	case DynamicFeeTxType:
		return decodeDynamicFeeTx(fields)
	case BlobTxType:
		return decodeBlobTx(fields)
	case SetCodeTxType:
		return decodeSetCodeTx(fields)
	default:
		return nil, fmt.Errorf("types: unknown transaction type %d", txType)
	}
}

func decodeLegacyTx(enc []byte) (Transaction, error) {
	item, _, err := rlp.Decode(enc)
	if err != nil {
		return nil, err
	}
	f, err := item.AsList()
	if err != nil {
		return nil, err
	}
	if len(f) != 9 {
		return nil, fmt.Errorf("types: legacy tx wants 9 fields, got %d", len(f))
	}
	tx := &LegacyTx{}
	if err := decodeCommonPrefix(&tx.CommonTx, f, 0, true); err != nil {
		return nil, err
	}
	gasPrice, err := f[1].AsBigInt()
	if err != nil {
		return nil, err
	}
	tx.GasPrice.SetFromBig(gasPrice)
	if err := decodeVRS(&tx.CommonTx, f[6], f[7], f[8]); err != nil {
		return nil, err
	}
	return tx, nil
}

// decodeCommonPrefix fills Nonce/GasLimit/To/Value/Data from a field list whose layout is
// [nonce, gasPrice?, gasLimit, to, value, data, ...]; legacy places gasPrice at index 1 and
// shifts everything else by one relative to the typed variants, hence the legacyShift flag.
func decodeCommonPrefix(c *CommonTx, f []rlp.Item, base int, legacyShift bool) error {
	var err error
	if c.Nonce, err = f[base].AsUint64(); err != nil {
		return err
	}
	idx := base + 1
	if legacyShift {
		idx++ // skip gasPrice, filled by the caller
	}
	if c.GasLimit, err = f[idx].AsUint64(); err != nil {
		return err
	}
	idx++
	toBytes, err := f[idx].AsBytes()
	if err != nil {
		return err
	}
	if len(toBytes) > 0 {
		to := libcommon.BytesToAddress(toBytes)
		c.To = &to
	}
	idx++
	value, err := f[idx].AsBigInt()
	if err != nil {
		return err
	}
	c.Value.SetFromBig(value)
	idx++
	if c.Data, err = f[idx].AsBytes(); err != nil {
		return err
	}
	return nil
}

func decodeVRS(c *CommonTx, vi, ri, si rlp.Item) error {
	v, err := vi.AsBigInt()
	if err != nil {
		return err
	}
	c.V.SetFromBig(v)
	r, err := ri.AsBigInt()
	if err != nil {
		return err
	}
	c.R.SetFromBig(r)
	s, err := si.AsBigInt()
	if err != nil {
		return err
	}
	c.S.SetFromBig(s)
	return nil
}

func decodeAccessList(item rlp.Item) (AccessList, error) {
	entries, err := item.AsList()
	if err != nil {
		return nil, err
	}
	out := make(AccessList, 0, len(entries))
	for _, e := range entries {
		tuple, err := e.AsList()
		if err != nil || len(tuple) != 2 {
			return nil, fmt.Errorf("types: malformed access list tuple")
		}
		addrBytes, err := tuple[0].AsBytes()
		if err != nil {
			return nil, err
		}
		keyItems, err := tuple[1].AsList()
		if err != nil {
			return nil, err
		}
		keys := make([]libcommon.Hash, 0, len(keyItems))
		for _, ki := range keyItems {
			kb, err := ki.AsBytes()
			if err != nil {
				return nil, err
			}
			keys = append(keys, libcommon.BytesToHash(kb))
		}
		out = append(out, AccessTuple{Address: libcommon.BytesToAddress(addrBytes), StorageKeys: keys})
	}
	return out, nil
}

func decodeAccessListTx(f []rlp.Item) (Transaction, error) {
	if len(f) != 11 {
		return nil, fmt.Errorf("types: access-list tx wants 11 fields, got %d", len(f))
	}
	tx := &AccessListTx{}
	chainID, err := f[0].AsBigInt()
	if err != nil {
		return nil, err
	}
	tx.ChainID.SetFromBig(chainID)
	if tx.Nonce, err = f[1].AsUint64(); err != nil {
		return nil, err
	}
	gasPrice, err := f[2].AsBigInt()
	if err != nil {
		return nil, err
	}
	tx.GasPrice.SetFromBig(gasPrice)
	if tx.GasLimit, err = f[3].AsUint64(); err != nil {
		return nil, err
	}
	toBytes, err := f[4].AsBytes()
	if err != nil {
		return nil, err
	}
	if len(toBytes) > 0 {
		to := libcommon.BytesToAddress(toBytes)
		tx.To = &to
	}
	value, err := f[5].AsBigInt()
	if err != nil {
		return nil, err
	}
	tx.Value.SetFromBig(value)
	if tx.Data, err = f[6].AsBytes(); err != nil {
		return nil, err
	}
	if tx.AccessList, err = decodeAccessList(f[7]); err != nil {
		return nil, err
	}
	if err := decodeVRS(&tx.CommonTx, f[8], f[9], f[10]); err != nil {
		return nil, err
	}
	return tx, nil
}

func decodeDynamicFeeTx(f []rlp.Item) (Transaction, error) {
	if len(f) != 12 {
		return nil, fmt.Errorf("types: dynamic-fee tx wants 12 fields, got %d", len(f))
	}
	tx := &DynamicFeeTx{}
	chainID, err := f[0].AsBigInt()
	if err != nil {
		return nil, err
	}
	tx.ChainID.SetFromBig(chainID)
	if tx.Nonce, err = f[1].AsUint64(); err != nil {
		return nil, err
	}
	tipCap, err := f[2].AsBigInt()
	if err != nil {
		return nil, err
	}
	tx.TipCap.SetFromBig(tipCap)
	feeCap, err := f[3].AsBigInt()
	if err != nil {
		return nil, err
	}
	tx.FeeCap.SetFromBig(feeCap)
	if tx.GasLimit, err = f[4].AsUint64(); err != nil {
		return nil, err
	}
	toBytes, err := f[5].AsBytes()
	if err != nil {
		return nil, err
	}
	if len(toBytes) > 0 {
		to := libcommon.BytesToAddress(toBytes)
		tx.To = &to
	}
	value, err := f[6].AsBigInt()
	if err != nil {
		return nil, err
	}
	tx.Value.SetFromBig(value)
	if tx.Data, err = f[7].AsBytes(); err != nil {
		return nil, err
	}
	if tx.AccessList, err = decodeAccessList(f[8]); err != nil {
		return nil, err
	}
	if err := decodeVRS(&tx.CommonTx, f[9], f[10], f[11]); err != nil {
		return nil, err
	}
	return tx, nil
}

func decodeBlobTx(f []rlp.Item) (Transaction, error) {
	if len(f) != 14 {
		return nil, fmt.Errorf("types: blob tx wants 14 fields, got %d", len(f))
	}
	tx := &BlobTx{}
	chainID, err := f[0].AsBigInt()
	if err != nil {
		return nil, err
	}
	tx.ChainID.SetFromBig(chainID)
	if tx.Nonce, err = f[1].AsUint64(); err != nil {
		return nil, err
	}
	tipCap, err := f[2].AsBigInt()
	if err != nil {
		return nil, err
	}
	tx.TipCap.SetFromBig(tipCap)
	feeCap, err := f[3].AsBigInt()
	if err != nil {
		return nil, err
	}
	tx.FeeCap.SetFromBig(feeCap)
	if tx.GasLimit, err = f[4].AsUint64(); err != nil {
		return nil, err
	}
	toBytes, err := f[5].AsBytes()
	if err != nil {
		return nil, err
	}
	if len(toBytes) > 0 {
		to := libcommon.BytesToAddress(toBytes)
		tx.To = &to
	}
	value, err := f[6].AsBigInt()
	if err != nil {
		return nil, err
	}
	tx.Value.SetFromBig(value)
	if tx.Data, err = f[7].AsBytes(); err != nil {
		return nil, err
	}
	if tx.AccessList, err = decodeAccessList(f[8]); err != nil {
		return nil, err
	}
	maxFee, err := f[9].AsBigInt()
	if err != nil {
		return nil, err
	}
	tx.MaxFeePerBlob.SetFromBig(maxFee)
	hashItems, err := f[10].AsList()
	if err != nil {
		return nil, err
	}
	for _, hi := range hashItems {
		hb, err := hi.AsBytes()
		if err != nil {
			return nil, err
		}
		tx.BlobHashes = append(tx.BlobHashes, libcommon.BytesToHash(hb))
	}
	if err := decodeVRS(&tx.CommonTx, f[11], f[12], f[13]); err != nil {
		return nil, err
	}
	return tx, nil
}

func decodeSetCodeTx(f []rlp.Item) (Transaction, error) {
	if len(f) != 13 {
		return nil, fmt.Errorf("types: set-code tx wants 13 fields, got %d", len(f))
	}
	tx := &SetCodeTx{}
	chainID, err := f[0].AsBigInt()
	if err != nil {
		return nil, err
	}
	tx.ChainID.SetFromBig(chainID)
	if tx.Nonce, err = f[1].AsUint64(); err != nil {
		return nil, err
	}
	tipCap, err := f[2].AsBigInt()
	if err != nil {
		return nil, err
	}
	tx.TipCap.SetFromBig(tipCap)
	feeCap, err := f[3].AsBigInt()
	if err != nil {
		return nil, err
	}
	tx.FeeCap.SetFromBig(feeCap)
	if tx.GasLimit, err = f[4].AsUint64(); err != nil {
		return nil, err
	}
	toBytes, err := f[5].AsBytes()
	if err != nil {
		return nil, err
	}
	if len(toBytes) > 0 {
		to := libcommon.BytesToAddress(toBytes)
		tx.To = &to
	}
	value, err := f[6].AsBigInt()
	if err != nil {
		return nil, err
	}
	tx.Value.SetFromBig(value)
	if tx.Data, err = f[7].AsBytes(); err != nil {
		return nil, err
	}
	if tx.AccessList, err = decodeAccessList(f[8]); err != nil {
		return nil, err
	}
	authItems, err := f[9].AsList()
	if err != nil {
		return nil, err
	}
	for _, ai := range authItems {
		af, err := ai.AsList()
		if err != nil || len(af) != 6 {
			return nil, fmt.Errorf("types: malformed authorization tuple")
		}
		var a Authorization
		cid, err := af[0].AsBytes()
		if err != nil {
			return nil, err
		}
		a.ChainID = libcommon.BytesToHash(cid)
		addr, err := af[1].AsBytes()
		if err != nil {
			return nil, err
		}
		a.Address = libcommon.BytesToAddress(addr)
		if a.Nonce, err = af[2].AsUint64(); err != nil {
			return nil, err
		}
		vv, err := af[3].AsUint64()
		if err != nil {
			return nil, err
		}
		a.V = uint8(vv)
		rBig, err := af[4].AsBigInt()
		if err != nil {
			return nil, err
		}
		a.R.SetFromBig(rBig)
		sBig, err := af[5].AsBigInt()
		if err != nil {
			return nil, err
		}
		a.S.SetFromBig(sBig)
		tx.Authorizations = append(tx.Authorizations, a)
	}
	if err := decodeVRS(&tx.CommonTx, f[10], f[11], f[12]); err != nil {
		return nil, err
	}
	return tx, nil
}
