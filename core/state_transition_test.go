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

package core

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-core/erigon-lib/chain"
	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/types"
	"github.com/erigontech/erigon-core/core/state"
	"github.com/erigontech/erigon-core/core/vm"
)

// nullStateReader always reports a cache miss: every test account is seeded directly into
// IntraBlockState via CreateAccount/AddBalance rather than through a backing store.
type nullStateReader struct{}

func (nullStateReader) ReadAccountData(libcommon.Address) (*types.Account, error)              { return nil, nil }
func (nullStateReader) ReadAccountStorage(libcommon.Address, uint64, *libcommon.Hash) ([]byte, error) {
	return nil, nil
}
func (nullStateReader) ReadAccountCode(libcommon.Address, uint64) ([]byte, error)     { return nil, nil }
func (nullStateReader) ReadAccountCodeSize(libcommon.Address, uint64) (int, error)    { return 0, nil }
func (nullStateReader) ReadAccountIncarnation(libcommon.Address) (uint64, error)      { return 0, nil }
func (nullStateReader) DiscardReadList()                                             {}
func (nullStateReader) ReadSet() map[string][]string                                 { return nil }
func (nullStateReader) ResetReadSet()                                                {}

// stubEvm is a minimal vm.Evm that moves Value from sender to recipient and reports a fixed
// outcome, standing in for the external bytecode interpreter this module never implements.
type stubEvm struct {
	success bool
	usedGas uint64
}

func (e *stubEvm) Call(_ vm.BlockContext, _ vm.TxContext, st vm.StateDB, msg vm.Message, gas uint64) (*vm.ExecutionResult, error) {
	if e.success && msg.To != nil && msg.Value.Sign() > 0 {
		st.SubBalance(msg.From, msg.Value)
		st.AddBalance(*msg.To, msg.Value)
	}
	return &vm.ExecutionResult{Success: e.success, UsedGas: e.usedGas}, nil
}

func testAddress(b byte) libcommon.Address {
	return libcommon.BytesToAddress([]byte{b})
}

func londonConfig() *chain.Config {
	zero := uint64(0)
	return &chain.Config{
		ChainID:        big.NewInt(1),
		HomesteadBlock: big.NewInt(0),
		EIP150Block:    big.NewInt(0),
		EIP155Block:    big.NewInt(0),
		ByzantiumBlock: big.NewInt(0),
		BerlinBlock:    big.NewInt(0),
		LondonBlock:    big.NewInt(0),
		ShanghaiTime:   &zero,
	}
}

func newTestState(t *testing.T, sender libcommon.Address, balance uint64) *state.IntraBlockState {
	t.Helper()
	ibs := state.New(nullStateReader{})
	ibs.CreateAccount(sender, false)
	ibs.AddBalance(sender, uint256.NewInt(balance))
	return ibs
}

func TestApplyTransaction_NonceChecks(t *testing.T) {
	sender := testAddress(1)
	header := &types.Header{Number: 1, Time: 1, GasLimit: 10_000_000, BaseFee: uint256.NewInt(0)}
	config := londonConfig()

	t.Run("too low", func(t *testing.T) {
		ibs := newTestState(t, sender, 1_000_000)
		ibs.SetNonce(sender, 5)
		st := NewStateTransition(config, &stubEvm{success: true}, header)
		tx := &types.LegacyTx{CommonTx: types.CommonTx{Nonce: 4, GasLimit: 21000}, GasPrice: *uint256.NewInt(1)}
		_, err := st.ApplyTransaction(ibs, header, tx, sender, blockCtxFromHeader(header), 0, 0)
		require.ErrorIs(t, err, ErrNonceTooLow)
	})

	t.Run("too high", func(t *testing.T) {
		ibs := newTestState(t, sender, 1_000_000)
		st := NewStateTransition(config, &stubEvm{success: true}, header)
		tx := &types.LegacyTx{CommonTx: types.CommonTx{Nonce: 1, GasLimit: 21000}, GasPrice: *uint256.NewInt(1)}
		_, err := st.ApplyTransaction(ibs, header, tx, sender, blockCtxFromHeader(header), 0, 0)
		require.ErrorIs(t, err, ErrNonceTooHigh)
	})
}

func TestApplyTransaction_InsufficientFunds(t *testing.T) {
	sender := testAddress(1)
	header := &types.Header{Number: 1, Time: 1, GasLimit: 10_000_000, BaseFee: uint256.NewInt(0)}
	config := londonConfig()
	ibs := newTestState(t, sender, 100)
	st := NewStateTransition(config, &stubEvm{success: true}, header)
	tx := &types.LegacyTx{CommonTx: types.CommonTx{Nonce: 0, GasLimit: 21000}, GasPrice: *uint256.NewInt(1)}
	_, err := st.ApplyTransaction(ibs, header, tx, sender, blockCtxFromHeader(header), 0, 0)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestApplyTransaction_IntrinsicGasTooLow(t *testing.T) {
	sender := testAddress(1)
	header := &types.Header{Number: 1, Time: 1, GasLimit: 10_000_000, BaseFee: uint256.NewInt(0)}
	config := londonConfig()
	ibs := newTestState(t, sender, 1_000_000)
	st := NewStateTransition(config, &stubEvm{success: true}, header)
	tx := &types.LegacyTx{CommonTx: types.CommonTx{Nonce: 0, GasLimit: 20000}, GasPrice: *uint256.NewInt(1)}
	_, err := st.ApplyTransaction(ibs, header, tx, sender, blockCtxFromHeader(header), 0, 0)
	require.ErrorIs(t, err, ErrIntrinsicGasTooLow)
}

// TestApplyTransaction_ValueTransferAndRevert covers S2: a successful value transfer
// commits the recipient's balance change, while a failed call reverts the transfer but
// still charges gas and still advances the sender's nonce.
func TestApplyTransaction_ValueTransferAndRevert(t *testing.T) {
	sender := testAddress(1)
	recipient := testAddress(2)
	header := &types.Header{Number: 1, Time: 1, GasLimit: 10_000_000, BaseFee: uint256.NewInt(0)}
	config := londonConfig()

	t.Run("success", func(t *testing.T) {
		ibs := newTestState(t, sender, 1_000_000)
		st := NewStateTransition(config, &stubEvm{success: true}, header)
		to := recipient
		tx := &types.LegacyTx{CommonTx: types.CommonTx{Nonce: 0, GasLimit: 21000, To: &to, Value: *uint256.NewInt(1000)}, GasPrice: *uint256.NewInt(1)}
		receipt, err := st.ApplyTransaction(ibs, header, tx, sender, blockCtxFromHeader(header), 0, 0)
		require.NoError(t, err)
		require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
		require.Equal(t, uint64(1000), ibs.GetBalance(recipient).Uint64())
		require.Equal(t, uint64(1), ibs.GetNonce(sender))
	})

	t.Run("revert keeps gas charge and nonce bump", func(t *testing.T) {
		ibs := newTestState(t, sender, 1_000_000)
		st := NewStateTransition(config, &stubEvm{success: false}, header)
		to := recipient
		tx := &types.LegacyTx{CommonTx: types.CommonTx{Nonce: 0, GasLimit: 21000, To: &to, Value: *uint256.NewInt(1000)}, GasPrice: *uint256.NewInt(1)}
		receipt, err := st.ApplyTransaction(ibs, header, tx, sender, blockCtxFromHeader(header), 0, 0)
		require.NoError(t, err)
		require.Equal(t, types.ReceiptStatusFailed, receipt.Status)
		require.Equal(t, uint64(0), ibs.GetBalance(recipient).Uint64())
		require.Equal(t, uint64(1), ibs.GetNonce(sender))
		require.Less(t, ibs.GetBalance(sender).Uint64(), uint64(1_000_000))
	})
}

// TestEffectiveGasPrice_S4 covers scenario S4: EIP-1559 effective price is
// min(tip_cap, fee_cap-base_fee) + base_fee, capped by fee_cap.
func TestEffectiveGasPrice_S4(t *testing.T) {
	rules := chain.ForkRules{IsLondon: true}
	baseFee := uint256.NewInt(100)

	t.Run("tip is the binding constraint", func(t *testing.T) {
		tx := &types.DynamicFeeTx{TipCap: *uint256.NewInt(10), FeeCap: *uint256.NewInt(1000)}
		got := EffectiveGasPrice(tx, baseFee, rules)
		require.Equal(t, uint64(110), got.Uint64())
	})

	t.Run("fee cap is the binding constraint", func(t *testing.T) {
		tx := &types.DynamicFeeTx{TipCap: *uint256.NewInt(500), FeeCap: *uint256.NewInt(150)}
		got := EffectiveGasPrice(tx, baseFee, rules)
		require.Equal(t, uint64(150), got.Uint64())
	})

	t.Run("legacy tx ignores base fee", func(t *testing.T) {
		tx := &types.LegacyTx{GasPrice: *uint256.NewInt(7)}
		got := EffectiveGasPrice(tx, baseFee, chain.ForkRules{IsLondon: false})
		require.Equal(t, uint64(7), got.Uint64())
	})
}

func TestRefundCap(t *testing.T) {
	sender := testAddress(1)
	header := &types.Header{Number: 1, Time: 1, GasLimit: 10_000_000, BaseFee: uint256.NewInt(0)}
	config := londonConfig()
	ibs := newTestState(t, sender, 1_000_000)
	st := NewStateTransition(config, &refundingEvm{refund: 1_000_000}, header)
	tx := &types.LegacyTx{CommonTx: types.CommonTx{Nonce: 0, GasLimit: 100_000}, GasPrice: *uint256.NewInt(1)}
	receipt, err := st.ApplyTransaction(ibs, header, tx, sender, blockCtxFromHeader(header), 0, 0)
	require.NoError(t, err)
	// RefundQuotient is 5 post-London: gasUsed floor is capped, never driven to (near) zero
	// by an oversized refund request.
	require.Greater(t, receipt.CumulativeGasUsed, uint64(0))
}

type refundingEvm struct{ refund uint64 }

func (e *refundingEvm) Call(_ vm.BlockContext, _ vm.TxContext, st vm.StateDB, msg vm.Message, gas uint64) (*vm.ExecutionResult, error) {
	st.AddRefund(e.refund)
	return &vm.ExecutionResult{Success: true, UsedGas: 0}, nil
}

func TestIntrinsicGas_AccessListSurcharge(t *testing.T) {
	baseTx := &types.LegacyTx{CommonTx: types.CommonTx{GasLimit: 21000}}
	base, err := IntrinsicGas(baseTx, chain.ForkRules{})
	require.NoError(t, err)
	require.Equal(t, TxGas, base)

	withList := &types.AccessListTx{
		CommonTx:   types.CommonTx{GasLimit: 21000},
		AccessList: types.AccessList{{Address: testAddress(3), StorageKeys: []libcommon.Hash{{}, {}}}},
	}
	withGas, err := IntrinsicGas(withList, chain.ForkRules{})
	require.NoError(t, err)
	require.Equal(t, base+TxAccessListAddressGas+2*TxAccessListStorageGas, withGas)
}

func TestValidateTxType_ForkGating(t *testing.T) {
	st := &StateTransition{rules: chain.ForkRules{}}
	tx := &types.DynamicFeeTx{}
	err := st.validateTxType(tx)
	require.True(t, errors.Is(err, ErrTxTypeNotSupported))

	st.rules.IsLondon = true
	require.NoError(t, st.validateTxType(tx))
}

func blockCtxFromHeader(h *types.Header) vm.BlockContext {
	return vm.BlockContext{BlockNumber: h.Number, Time: h.Time, GasLimit: h.GasLimit, BaseFee: h.BaseFee}
}
