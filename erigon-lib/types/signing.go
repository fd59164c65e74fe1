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
	"github.com/holiman/uint256"

	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/crypto"
	"github.com/erigontech/erigon-core/erigon-lib/rlp"
)

func accessListItems(al AccessList) []byte {
	items := make([][]byte, 0, len(al))
	for _, tuple := range al {
		keys := make([][]byte, 0, len(tuple.StorageKeys))
		for _, k := range tuple.StorageKeys {
			keys = append(keys, rlp.EncodeString(k.Bytes()))
		}
		items = append(items, rlp.List(rlp.EncodeString(tuple.Address.Bytes()), rlp.List(keys...)))
	}
	return rlp.List(items...)
}

func toAddr(a *libcommon.Address) []byte {
	if a == nil {
		return rlp.EncodeString(nil)
	}
	return rlp.EncodeString(a.Bytes())
}

// legacySigningHash implements EIP-155: keccak256(RLP([nonce, gasPrice, gas, to, value,
// data, chainId, 0, 0])) when chainID is non-nil, or the pre-EIP-155 6-field form otherwise.
func legacySigningHash(tx *LegacyTx, chainID *uint256.Int) libcommon.Hash {
	items := []byte{}
	fields := [][]byte{
		rlp.EncodeUint64(tx.Nonce),
		rlp.EncodeBigInt(tx.GasPrice.ToBig()),
		rlp.EncodeUint64(tx.GasLimit),
		toAddr(tx.To),
		rlp.EncodeBigInt(tx.Value.ToBig()),
		rlp.EncodeString(tx.Data),
	}
	if chainID != nil && !chainID.IsZero() {
		fields = append(fields, rlp.EncodeBigInt(chainID.ToBig()), rlp.EncodeUint64(0), rlp.EncodeUint64(0))
	}
	items = rlp.List(fields...)
	return libcommon.BytesToHash(crypto.Keccak256(items))
}

// typedSigningHash implements EIP-2718's typed-transaction signing hash:
// keccak256(txType || RLP(fields-without-signature)). The field order matches each
// variant's wire encoding minus the trailing (v, r, s).
func typedSigningHash(t TxType, tx Transaction, chainID *uint256.Int) libcommon.Hash {
	var fields [][]byte
	cid := chainID
	if cid == nil {
		cid = tx.GetChainID()
	}
	fields = append(fields, rlp.EncodeBigInt(cid.ToBig()))
	fields = append(fields, rlp.EncodeUint64(tx.GetNonce()))

	switch t {
	case AccessListTxType:
		fields = append(fields, rlp.EncodeBigInt(tx.GetGasPrice().ToBig()))
	default:
		fields = append(fields, rlp.EncodeBigInt(tx.GetTipCap().ToBig()), rlp.EncodeBigInt(tx.GetFeeCap().ToBig()))
	}
	fields = append(fields,
		rlp.EncodeUint64(tx.GetGasLimit()),
		toAddr(tx.GetTo()),
		rlp.EncodeBigInt(tx.GetValue().ToBig()),
		rlp.EncodeString(tx.GetData()),
		accessListItems(tx.GetAccessList()),
	)

	if t == BlobTxType {
		if bt, ok := tx.(*BlobTx); ok {
			fields = append(fields, rlp.EncodeBigInt(bt.MaxFeePerBlob.ToBig()))
			hashes := make([][]byte, 0, len(bt.BlobHashes))
			for _, h := range bt.BlobHashes {
				hashes = append(hashes, rlp.EncodeString(h.Bytes()))
			}
			fields = append(fields, rlp.List(hashes...))
		}
	}
	if t == SetCodeTxType {
		if st, ok := tx.(*SetCodeTx); ok {
			auths := make([][]byte, 0, len(st.Authorizations))
			for _, a := range st.Authorizations {
				auths = append(auths, rlp.List(
					rlp.EncodeString(a.ChainID.Bytes()),
					rlp.EncodeString(a.Address.Bytes()),
					rlp.EncodeUint64(a.Nonce),
					rlp.EncodeUint64(uint64(a.V)),
					rlp.EncodeBigInt(a.R.ToBig()),
					rlp.EncodeBigInt(a.S.ToBig()),
				))
			}
			fields = append(fields, rlp.List(auths...))
		}
	}

	payload := append([]byte{byte(t)}, rlp.List(fields...)...)
	return libcommon.BytesToHash(crypto.Keccak256(payload))
}
