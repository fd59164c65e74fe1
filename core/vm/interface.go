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

// Package vm defines the call boundary to the external EVM collaborator (spec §1's
// "Out of scope: the EVM interpreter" and §6's "EVM interface"). This package has no
// opcode dispatch, no interpreter loop, and no precompiles — only the interface the
// state-transition engine calls through and the StateDB surface IntraBlockState already
// implements.
package vm

import (
	"github.com/holiman/uint256"

	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/types"
)

// BlockContext carries the per-block values the EVM needs but that never change across the
// transactions within one block (COINBASE, NUMBER, TIMESTAMP, BASEFEE, ...).
type BlockContext struct {
	Coinbase    libcommon.Address
	BlockNumber uint64
	Time        uint64
	GasLimit    uint64
	BaseFee     *uint256.Int
	Random      *libcommon.Hash // post-Merge PREVRANDAO
}

// TxContext carries the per-transaction values (ORIGIN, GASPRICE, blob hashes for
// BLOBHASH).
type TxContext struct {
	Origin     libcommon.Address
	GasPrice   *uint256.Int
	BlobHashes []libcommon.Hash
	BlobFeeCap *uint256.Int
}

// Message is the decoded call the state-transition engine hands to the EVM: essentially a
// Transaction with its sender already recovered and its gas/value already validated.
type Message struct {
	From       libcommon.Address
	To         *libcommon.Address
	Value      *uint256.Int
	GasLimit   uint64
	Data       []byte
	AccessList types.AccessList
}

// ExecutionResult is the EVM's verdict for one message (spec §6): success/failure, return
// data, gas actually consumed, the accumulated refund counter, and any logs emitted.
type ExecutionResult struct {
	Success    bool
	ReturnData []byte
	UsedGas    uint64
	// GasRefund mirrors the EVM collaborator's own view of the refund counter; the
	// state-transition engine applies the fork-correct cap itself rather than trusting it
	// uncapped (spec §4.D's refund-cap step), so this is informational only.
	GasRefund uint64
	Logs      []*types.Log
	// ContractAddress is set for a CREATE/CREATE2 message.
	ContractAddress *libcommon.Address
}

func (r *ExecutionResult) Err() error {
	if r.Success {
		return nil
	}
	return ErrExecutionReverted
}

// StateDB is the mutable state handle passed to the EVM for the duration of one message
// call (spec §9: "a single mutable borrow passed down the call stack"). IntraBlockState
// implements this exactly.
type StateDB interface {
	CreateAccount(address libcommon.Address, contractCreation bool)
	Exist(address libcommon.Address) bool
	Empty(address libcommon.Address) bool

	GetBalance(address libcommon.Address) *uint256.Int
	AddBalance(address libcommon.Address, amount *uint256.Int)
	SubBalance(address libcommon.Address, amount *uint256.Int)

	GetNonce(address libcommon.Address) uint64
	SetNonce(address libcommon.Address, nonce uint64)

	GetCodeHash(address libcommon.Address) libcommon.Hash
	GetCode(address libcommon.Address) []byte
	SetCode(address libcommon.Address, code []byte)

	GetState(address libcommon.Address, key libcommon.Hash) uint256.Int
	SetState(address libcommon.Address, key libcommon.Hash, value uint256.Int)

	GetTransientState(address libcommon.Address, key libcommon.Hash) uint256.Int
	SetTransientState(address libcommon.Address, key libcommon.Hash, value uint256.Int)

	SelfDestruct(address libcommon.Address) bool
	HasSelfDestructed(address libcommon.Address) bool

	// AccessAddress/AccessSlot return the cold/warm gas cost of the access and record it
	// as warm for the remainder of the transaction (EIP-2929, spec §6).
	AccessAddress(address libcommon.Address) uint64
	AccessSlot(address libcommon.Address, slot libcommon.Hash) uint64
	AddressInAccessList(address libcommon.Address) bool
	SlotInAccessList(address libcommon.Address, slot libcommon.Hash) (addressOk, slotOk bool)
	AddAddressToAccessList(address libcommon.Address)
	AddSlotToAccessList(address libcommon.Address, slot libcommon.Hash)

	AddRefund(gas uint64)
	SubRefund(gas uint64)
	GetRefund() uint64

	AddLog(log *types.Log)

	Snapshot() int
	RevertToSnapshot(id int)
}

// Evm is the external EVM collaborator's entry point: given a message and the block/tx
// context, execute it against state and report the outcome. The concrete interpreter
// (opcode dispatch, precompiles, gas metering per opcode) lives outside this module
// entirely (spec §1 Non-goals).
type Evm interface {
	Call(blockCtx BlockContext, txCtx TxContext, state StateDB, msg Message, gas uint64) (*ExecutionResult, error)
}

var ErrExecutionReverted = execRevertedError{}

type execRevertedError struct{}

func (execRevertedError) Error() string { return "vm: execution reverted" }
