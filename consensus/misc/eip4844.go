// Copyright 2021 The go-ethereum Authors
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

// Package misc holds small per-fork consensus helpers that don't belong to any one
// component: currently just the EIP-4844 blob-gas math the state-transition engine's
// blob-fee pre-check step (spec §4.D) and block-header reconciliation need.
package misc

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/erigontech/erigon-core/erigon-lib/chain"
	"github.com/erigontech/erigon-core/erigon-lib/types"
)

// CalcExcessBlobGas implements calc_excess_blob_gas from EIP-4844: the running "how far
// over target" counter each header carries forward (spec §3's header `excess_blob_gas?`).
func CalcExcessBlobGas(config *chain.Config, parent *types.Header, currentHeaderTime uint64) uint64 {
	var excessBlobGas, blobGasUsed uint64
	if parent.ExcessBlobGas != nil {
		excessBlobGas = *parent.ExcessBlobGas
	}
	if parent.BlobGasUsed != nil {
		blobGasUsed = *parent.BlobGasUsed
	}
	if excessBlobGas+blobGasUsed < config.GetTargetBlobGasPerBlock(currentHeaderTime) {
		return 0
	}
	return excessBlobGas + blobGasUsed - config.GetTargetBlobGasPerBlock(currentHeaderTime)
}

// FakeExponential approximates factor * e**(num/denom) via the Taylor-series expansion
// EIP-4844 specifies, in fixed-point uint256 arithmetic.
func FakeExponential(factor, denom *uint256.Int, excessBlobGas uint64) (*uint256.Int, error) {
	numerator := uint256.NewInt(excessBlobGas)
	output := uint256.NewInt(0)
	numeratorAccum := new(uint256.Int)
	_, overflow := numeratorAccum.MulOverflow(factor, denom)
	if overflow {
		return nil, fmt.Errorf("FakeExponential: overflow in factor*denom (factor=%v, denom=%v)", factor, denom)
	}
	divisor := new(uint256.Int)
	for i := 1; numeratorAccum.Sign() > 0; i++ {
		_, overflow = output.AddOverflow(output, numeratorAccum)
		if overflow {
			return nil, fmt.Errorf("FakeExponential: overflow accumulating output")
		}
		_, overflow = divisor.MulOverflow(denom, uint256.NewInt(uint64(i)))
		if overflow {
			return nil, fmt.Errorf("FakeExponential: overflow in denom*%d", i)
		}
		_, overflow = numeratorAccum.MulDivOverflow(numeratorAccum, numerator, divisor)
		if overflow {
			return nil, fmt.Errorf("FakeExponential: overflow in numeratorAccum*numerator/divisor")
		}
	}
	return output.Div(output, denom), nil
}

// GetBlobGasPrice is the per-unit blob gas price a block charges, derived from its excess
// blob gas via the fake-exponential curve (spec §4.D's blob-fee pre-check).
func GetBlobGasPrice(config *chain.Config, excessBlobGas uint64, headerTime uint64) (*uint256.Int, error) {
	return FakeExponential(
		uint256.NewInt(config.GetMinBlobGasPrice()),
		uint256.NewInt(config.GetBlobGasPriceUpdateFraction(headerTime)),
		excessBlobGas,
	)
}

// GetBlobGasUsed is the fixed per-blob gas cost times the blob count (EIP-4844).
func GetBlobGasUsed(numBlobs int) uint64 {
	return uint64(numBlobs) * chain.BlobGasPerBlob
}

// VerifyPresenceOfCancunHeaderFields checks that BlobGasUsed/ExcessBlobGas are populated,
// as required once a chain config activates Cancun (spec §3's header field list).
func VerifyPresenceOfCancunHeaderFields(header *types.Header) error {
	if header.BlobGasUsed == nil {
		return errors.New("header is missing blobGasUsed")
	}
	if header.ExcessBlobGas == nil {
		return errors.New("header is missing excessBlobGas")
	}
	return nil
}

// VerifyAbsenceOfCancunHeaderFields checks the inverse, for headers before Cancun
// activation.
func VerifyAbsenceOfCancunHeaderFields(header *types.Header) error {
	if header.BlobGasUsed != nil {
		return fmt.Errorf("invalid blobGasUsed before fork: have %v, expected nil", *header.BlobGasUsed)
	}
	if header.ExcessBlobGas != nil {
		return fmt.Errorf("invalid excessBlobGas before fork: have %v, expected nil", *header.ExcessBlobGas)
	}
	return nil
}
