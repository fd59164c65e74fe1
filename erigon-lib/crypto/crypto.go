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

// Package crypto wraps the hashing and signature-recovery primitives the core needs.
// Spec's Open Questions are explicit that recoverAddress must not be approximated: this
// package delegates to a real secp256k1 binding rather than mixing hash/r/s bytes.
package crypto

import (
	"errors"
	"fmt"

	"github.com/erigontech/secp256k1"
	"golang.org/x/crypto/sha3"

	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/rlp"
)

var EmptyCodeHash = Keccak256Hash(nil)

// Keccak256 returns the Keccak-256 digest of the concatenated inputs.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	return h.Sum(nil)
}

// Keccak256Hash returns the Keccak-256 digest of the concatenated inputs as a Hash.
func Keccak256Hash(data ...[]byte) libcommon.Hash {
	return libcommon.BytesToHash(Keccak256(data...))
}

// SignatureLength is the expected length of the r||s||v recoverable signature, in bytes.
const SignatureLength = 64 + 1

// RecoverPubkey recovers the uncompressed public key from a signature over hash.
// sig is r(32) || s(32) || recoveryID(1).
func RecoverPubkey(hash, sig []byte) ([]byte, error) {
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("crypto: invalid signature length %d", len(sig))
	}
	return secp256k1.RecoverPubkey(hash, sig)
}

// RecoverAddress recovers the sender address of an Ethereum transaction from its signing
// hash and a r(32)||s(32)||recoveryID(1) signature, using real secp256k1 recovery.
func RecoverAddress(hash, sig []byte) (libcommon.Address, error) {
	pub, err := RecoverPubkey(hash, sig)
	if err != nil {
		return libcommon.Address{}, err
	}
	if len(pub) == 0 || pub[0] != 4 {
		return libcommon.Address{}, errors.New("crypto: invalid public key point")
	}
	// The Ethereum address is the last 20 bytes of keccak256 of the 64-byte
	// uncompressed public key coordinates (the 0x04 prefix byte is dropped).
	return libcommon.BytesToAddress(Keccak256(pub[1:])[12:]), nil
}

// CreateAddress computes the address of a newly-created contract via CREATE.
func CreateAddress(sender libcommon.Address, nonce uint64) libcommon.Address {
	data := rlpEncodeCreateAddress(sender, nonce)
	return libcommon.BytesToAddress(Keccak256(data)[12:])
}

// CreateAddress2 computes the address of a newly-created contract via CREATE2.
func CreateAddress2(sender libcommon.Address, salt [32]byte, codeHash []byte) libcommon.Address {
	data := append([]byte{0xff}, sender.Bytes()...)
	data = append(data, salt[:]...)
	data = append(data, codeHash...)
	return libcommon.BytesToAddress(Keccak256(data)[12:])
}

func rlpEncodeCreateAddress(sender libcommon.Address, nonce uint64) []byte {
	return rlp.List(rlp.EncodeString(sender.Bytes()), rlp.EncodeUint64(nonce))
}
