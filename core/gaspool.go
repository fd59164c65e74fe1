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

import (
	"fmt"

	"github.com/erigontech/erigon-core/erigon-lib/common/math"
)

// GasPool tracks the gas available within one block (spec §6): it starts at the block's
// gas limit and is drawn down by one SubGas per transaction, never going negative.
type GasPool uint64

// AddGas makes gas available, e.g. returning unused gas from an aborted transaction.
func (gp *GasPool) AddGas(amount uint64) *GasPool {
	sum, overflow := math.SafeAdd(uint64(*gp), amount)
	if overflow {
		panic("gas pool pushed above uint64")
	}
	*(*uint64)(gp) = sum
	return gp
}

// SubGas deducts the given amount, returning ErrGasLimitReached if the pool would go negative.
func (gp *GasPool) SubGas(amount uint64) error {
	if uint64(*gp) < amount {
		return ErrGasLimitReached
	}
	*(*uint64)(gp) -= amount
	return nil
}

// Gas returns the amount of gas remaining in the pool.
func (gp *GasPool) Gas() uint64 {
	return uint64(*gp)
}

func (gp *GasPool) String() string {
	return fmt.Sprintf("%d", *gp)
}

// BlobGasPool tracks the per-block blob gas pool (EIP-4844), bounded by the fork's
// max blob gas per block rather than the block's ordinary gas limit.
type BlobGasPool uint64

func (bp *BlobGasPool) SubBlobGas(amount uint64) error {
	if uint64(*bp) < amount {
		return ErrBlobGasLimitReached
	}
	*(*uint64)(bp) -= amount
	return nil
}

func (bp *BlobGasPool) BlobGas() uint64 {
	return uint64(*bp)
}
