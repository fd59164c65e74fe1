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
)

// Sender recovers the signing address of tx via real secp256k1 recovery (spec's Open
// Question on recoverAddress: never approximated from hash/r/s alone). This is what the
// Senders stage (spec §4.E) calls once per transaction.
func Sender(tx Transaction) (libcommon.Address, error) {
	v, r, s := tx.RawSignatureValues()

	var chainID *uint256.Int
	var recoveryID byte
	if tx.Type() == LegacyTxType {
		vBig := v.Uint64()
		switch {
		case vBig == 27 || vBig == 28:
			recoveryID = byte(vBig - 27)
		case vBig >= 35:
			recoveryID = byte((vBig - 35) % 2)
			cid := (vBig - 35) / 2
			chainID = new(uint256.Int).SetUint64(cid)
		default:
			return libcommon.Address{}, fmt.Errorf("types: invalid legacy V value %d", vBig)
		}
	} else {
		if v.Uint64() > 1 {
			return libcommon.Address{}, fmt.Errorf("types: invalid typed-tx V value %d", v.Uint64())
		}
		recoveryID = byte(v.Uint64())
		chainID = tx.GetChainID()
	}

	hash := tx.SigningHash(chainID)

	sig := make([]byte, 65)
	rb := r.Bytes32()
	sb := s.Bytes32()
	copy(sig[0:32], rb[:])
	copy(sig[32:64], sb[:])
	sig[64] = recoveryID

	return crypto.RecoverAddress(hash.Bytes(), sig)
}
