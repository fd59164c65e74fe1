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
)

// TxType discriminates the five transaction variants spec §3 names.
type TxType byte

const (
	LegacyTxType     TxType = 0x00
	AccessListTxType TxType = 0x01 // EIP-2930
	DynamicFeeTxType TxType = 0x02 // EIP-1559
	BlobTxType       TxType = 0x03 // EIP-4844
	SetCodeTxType    TxType = 0x04 // EIP-7702
)

// AccessTuple is one entry of an EIP-2930 access list: an address plus the storage slots
// pre-warmed for it.
type AccessTuple struct {
	Address     libcommon.Address
	StorageKeys []libcommon.Hash
}

// AccessList is the ordered list of access tuples carried by 2930+ transactions.
type AccessList []AccessTuple

// Authorization is one EIP-7702 set-code authorization tuple: the signer (recovered from
// ChainID/Address/Nonce/(V,R,S)) designates Address's code for its own account.
type Authorization struct {
	ChainID libcommon.Hash // low 32 bytes hold the chain id as a big-endian integer
	Address libcommon.Address
	Nonce   uint64
	V       uint8
	R, S    uint256.Int
}

// Transaction is the common surface the state-transition engine and commitment builder need
// across all five variants. Concrete variants embed CommonTx and add their pricing/extra
// fields; Transaction is satisfied by a pointer to each variant struct.
type Transaction interface {
	Type() TxType
	GetNonce() uint64
	GetGasLimit() uint64
	GetTo() *libcommon.Address
	GetValue() *uint256.Int
	GetData() []byte
	GetAccessList() AccessList
	GetChainID() *uint256.Int
	// GetGasPrice returns the legacy gas price for LegacyTxType/AccessListTxType, and
	// FeeCap otherwise — callers needing the true tip/fee split use the variant directly.
	GetGasPrice() *uint256.Int
	GetTipCap() *uint256.Int
	GetFeeCap() *uint256.Int
	GetBlobHashes() []libcommon.Hash
	GetBlobGas() uint64
	GetAuthorizations() []Authorization
	RawSignatureValues() (v, r, s *uint256.Int)
	SigningHash(chainID *uint256.Int) libcommon.Hash
}

// CommonTx holds the fields every variant shares verbatim (spec §3).
type CommonTx struct {
	Nonce    uint64
	GasLimit uint64
	To       *libcommon.Address
	Value    uint256.Int
	Data     []byte
	V, R, S  uint256.Int
}

func (c *CommonTx) GetNonce() uint64             { return c.Nonce }
func (c *CommonTx) GetGasLimit() uint64          { return c.GasLimit }
func (c *CommonTx) GetTo() *libcommon.Address    { return c.To }
func (c *CommonTx) GetValue() *uint256.Int       { return &c.Value }
func (c *CommonTx) GetData() []byte              { return c.Data }
func (c *CommonTx) RawSignatureValues() (v, r, s *uint256.Int) { return &c.V, &c.R, &c.S }

// LegacyTx is the pre-2930 variant: gas_price, no access list, no explicit chain id (EIP-155
// folds it into V).
type LegacyTx struct {
	CommonTx
	GasPrice uint256.Int
}

func (tx *LegacyTx) Type() TxType                    { return LegacyTxType }
func (tx *LegacyTx) GetAccessList() AccessList        { return nil }
func (tx *LegacyTx) GetChainID() *uint256.Int         { return nil }
func (tx *LegacyTx) GetGasPrice() *uint256.Int        { return &tx.GasPrice }
func (tx *LegacyTx) GetTipCap() *uint256.Int          { return &tx.GasPrice }
func (tx *LegacyTx) GetFeeCap() *uint256.Int          { return &tx.GasPrice }
func (tx *LegacyTx) GetBlobHashes() []libcommon.Hash  { return nil }
func (tx *LegacyTx) GetBlobGas() uint64               { return 0 }
func (tx *LegacyTx) GetAuthorizations() []Authorization { return nil }
func (tx *LegacyTx) SigningHash(chainID *uint256.Int) libcommon.Hash {
	return legacySigningHash(tx, chainID)
}

// AccessListTx is EIP-2930: legacy pricing plus an explicit chain id and access list.
type AccessListTx struct {
	CommonTx
	ChainID    uint256.Int
	GasPrice   uint256.Int
	AccessList AccessList
}

func (tx *AccessListTx) Type() TxType                   { return AccessListTxType }
func (tx *AccessListTx) GetAccessList() AccessList       { return tx.AccessList }
func (tx *AccessListTx) GetChainID() *uint256.Int        { return &tx.ChainID }
func (tx *AccessListTx) GetGasPrice() *uint256.Int       { return &tx.GasPrice }
func (tx *AccessListTx) GetTipCap() *uint256.Int         { return &tx.GasPrice }
func (tx *AccessListTx) GetFeeCap() *uint256.Int         { return &tx.GasPrice }
func (tx *AccessListTx) GetBlobHashes() []libcommon.Hash { return nil }
func (tx *AccessListTx) GetBlobGas() uint64              { return 0 }
func (tx *AccessListTx) GetAuthorizations() []Authorization { return nil }
func (tx *AccessListTx) SigningHash(chainID *uint256.Int) libcommon.Hash {
	return typedSigningHash(tx.Type(), tx, chainID)
}

// DynamicFeeTx is EIP-1559: tip_cap/fee_cap replace a single gas_price.
type DynamicFeeTx struct {
	CommonTx
	ChainID    uint256.Int
	TipCap     uint256.Int
	FeeCap     uint256.Int
	AccessList AccessList
}

func (tx *DynamicFeeTx) Type() TxType                   { return DynamicFeeTxType }
func (tx *DynamicFeeTx) GetAccessList() AccessList       { return tx.AccessList }
func (tx *DynamicFeeTx) GetChainID() *uint256.Int        { return &tx.ChainID }
func (tx *DynamicFeeTx) GetGasPrice() *uint256.Int       { return &tx.FeeCap }
func (tx *DynamicFeeTx) GetTipCap() *uint256.Int         { return &tx.TipCap }
func (tx *DynamicFeeTx) GetFeeCap() *uint256.Int         { return &tx.FeeCap }
func (tx *DynamicFeeTx) GetBlobHashes() []libcommon.Hash { return nil }
func (tx *DynamicFeeTx) GetBlobGas() uint64              { return 0 }
func (tx *DynamicFeeTx) GetAuthorizations() []Authorization { return nil }
func (tx *DynamicFeeTx) SigningHash(chainID *uint256.Int) libcommon.Hash {
	return typedSigningHash(tx.Type(), tx, chainID)
}

// BlobTx is EIP-4844: DynamicFeeTx plus blob_versioned_hashes and a max_fee_per_blob_gas cap.
// to is required (no contract-creating blob transactions).
type BlobTx struct {
	CommonTx
	ChainID       uint256.Int
	TipCap        uint256.Int
	FeeCap        uint256.Int
	AccessList    AccessList
	BlobHashes    []libcommon.Hash
	MaxFeePerBlob uint256.Int
}

func (tx *BlobTx) Type() TxType                      { return BlobTxType }
func (tx *BlobTx) GetAccessList() AccessList          { return tx.AccessList }
func (tx *BlobTx) GetChainID() *uint256.Int           { return &tx.ChainID }
func (tx *BlobTx) GetGasPrice() *uint256.Int          { return &tx.FeeCap }
func (tx *BlobTx) GetTipCap() *uint256.Int            { return &tx.TipCap }
func (tx *BlobTx) GetFeeCap() *uint256.Int             { return &tx.FeeCap }
func (tx *BlobTx) GetBlobHashes() []libcommon.Hash     { return tx.BlobHashes }
func (tx *BlobTx) GetBlobGas() uint64                  { return uint64(len(tx.BlobHashes)) * BlobGasPerBlob }
func (tx *BlobTx) GetAuthorizations() []Authorization  { return nil }
func (tx *BlobTx) SigningHash(chainID *uint256.Int) libcommon.Hash {
	return typedSigningHash(tx.Type(), tx, chainID)
}

// BlobGasPerBlob is the fixed gas cost unit EIP-4844 assigns to one blob (2**17).
const BlobGasPerBlob = 1 << 17

// SetCodeTx is EIP-7702: DynamicFeeTx plus an authorization list. to is required.
type SetCodeTx struct {
	CommonTx
	ChainID        uint256.Int
	TipCap         uint256.Int
	FeeCap         uint256.Int
	AccessList     AccessList
	Authorizations []Authorization
}

func (tx *SetCodeTx) Type() TxType                      { return SetCodeTxType }
func (tx *SetCodeTx) GetAccessList() AccessList          { return tx.AccessList }
func (tx *SetCodeTx) GetChainID() *uint256.Int           { return &tx.ChainID }
func (tx *SetCodeTx) GetGasPrice() *uint256.Int          { return &tx.FeeCap }
func (tx *SetCodeTx) GetTipCap() *uint256.Int            { return &tx.TipCap }
func (tx *SetCodeTx) GetFeeCap() *uint256.Int            { return &tx.FeeCap }
func (tx *SetCodeTx) GetBlobHashes() []libcommon.Hash    { return nil }
func (tx *SetCodeTx) GetBlobGas() uint64                 { return 0 }
func (tx *SetCodeTx) GetAuthorizations() []Authorization { return tx.Authorizations }
func (tx *SetCodeTx) SigningHash(chainID *uint256.Int) libcommon.Hash {
	return typedSigningHash(tx.Type(), tx, chainID)
}

// DelegationPrefix marks an EIP-7702 delegation-designation code: 0xef0100 || address.
var DelegationPrefix = [3]byte{0xef, 0x01, 0x00}

// ParseDelegation returns the delegated address if code is a well-formed delegation
// designation (spec §4.C's has_delegated_designation check), false otherwise.
func ParseDelegation(code []byte) (libcommon.Address, bool) {
	if len(code) != 23 || code[0] != DelegationPrefix[0] || code[1] != DelegationPrefix[1] || code[2] != DelegationPrefix[2] {
		return libcommon.Address{}, false
	}
	return libcommon.BytesToAddress(code[3:]), true
}

// AddressDelegation builds the 23-byte delegation-designation code for address.
func AddressDelegation(address libcommon.Address) []byte {
	out := make([]byte, 0, 23)
	out = append(out, DelegationPrefix[:]...)
	return append(out, address.Bytes()...)
}
