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

import "errors"

// Transaction-invalid errors (spec §7): reported per-transaction, never abort the block.
var (
	ErrNonceTooLow            = errors.New("nonce too low")
	ErrNonceTooHigh           = errors.New("nonce too high")
	ErrNonceOverflow          = errors.New("nonce overflow")
	ErrInsufficientFunds      = errors.New("insufficient funds for gas * price + value")
	ErrIntrinsicGasTooLow     = errors.New("intrinsic gas too low")
	ErrTipAboveFeeCap         = errors.New("max priority fee per gas higher than max fee per gas")
	ErrFeeCapTooLow           = errors.New("max fee per gas less than block base fee")
	ErrMaxFeePerBlobGasTooLow = errors.New("max fee per blob gas less than block blob base fee")
	ErrSenderNoEOA            = errors.New("sender not an eligible externally owned account")
	ErrTxTypeNotSupported     = errors.New("transaction type not supported at this fork")
	ErrTooManyBlobs           = errors.New("too many blobs in transaction")
	ErrGasLimitTooHigh        = errors.New("transaction gas limit above per-tx cap")
)

// Block-invalid errors: abort the block and the stage's forward pass.
var (
	ErrGasLimitReached      = errors.New("block gas limit reached")
	ErrBlobGasLimitReached  = errors.New("block blob gas limit reached")
	ErrStateRootMismatch    = errors.New("state root mismatch")
	ErrReceiptsRootMismatch = errors.New("receipts root mismatch")
	ErrLogsBloomMismatch    = errors.New("logs bloom mismatch")
)
