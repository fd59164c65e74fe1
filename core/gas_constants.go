// Copyright 2014 The go-ethereum Authors
// (original work)
// Copyright 2024 The Erigon Authors
// (modifications)
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

package core

// Intrinsic gas constants (spec §4.D step 7).
const (
	TxGas                 uint64 = 21000 // floor for a simple value transfer
	TxGasContractCreation uint64 = 53000 // floor for a CREATE (EIP-2 + EIP-170 era)

	TxDataZeroGas    uint64 = 4  // per zero byte of calldata
	TxDataNonZeroGas uint64 = 16 // per non-zero byte of calldata, post EIP-2028

	TxAccessListAddressGas  uint64 = 2400 // per EIP-2930 access-list address
	TxAccessListStorageGas  uint64 = 1900 // per EIP-2930 access-list storage key

	// PerEmptyAccountCost is the per-authorization-tuple intrinsic gas charged by EIP-7702;
	// a 25000 refund-free base that's waived only by the actual nonce/balance bookkeeping, not
	// by the intrinsic gas floor.
	PerEmptyAccountCost uint64 = 25000

	// MaxPerTxGasLimit is the Osaka per-transaction gas cap checked in state-transition
	// pre-check step 6 (spec §4.D); distinct from the block gas limit.
	MaxPerTxGasLimit uint64 = 30_000_000
)
