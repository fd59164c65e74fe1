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

package chain

// EIP-4844 blob gas constants. BlobGasPerBlob is hoisted here (rather than only living on
// the BlobTx variant) because the fork schedule, not the transaction, decides the per-block
// target/max and the base-fee update fraction.
const (
	BlobGasPerBlob = 1 << 17

	minBlobGasPrice = 1

	// targetBlobsPerBlockCancun/maxBlobsPerBlockCancun are the mainnet Cancun values (EIP-4844);
	// Osaka raises the per-tx cap checked in the state-transition pre-check (spec §4.D step 1)
	// but this module keeps a single target/max pair, matching spec's decision to track fork
	// gates explicitly rather than threading a second blob-count schedule.
	targetBlobsPerBlockCancun = 3
	maxBlobsPerBlockCancun    = 6

	blobGasPriceUpdateFractionCancun = 3338477
)

// GetMinBlobGasPrice is the EIP-4844 floor for FakeExponential's output.
func (c *Config) GetMinBlobGasPrice() uint64 { return minBlobGasPrice }

// GetTargetBlobGasPerBlock is the excess-blob-gas equilibrium point calc_excess_blob_gas
// subtracts from (spec §4.D's blob-fee step).
func (c *Config) GetTargetBlobGasPerBlock(_ uint64) uint64 {
	return targetBlobsPerBlockCancun * BlobGasPerBlob
}

// GetMaxBlobGasPerBlock bounds the BlobGasLimitReached pool check (spec §4.D step 8).
func (c *Config) GetMaxBlobGasPerBlock(_ uint64) uint64 {
	return maxBlobsPerBlockCancun * BlobGasPerBlob
}

// MaxBlobsPerTx is the TooManyBlobs threshold spec §4.D step 1 checks post-Osaka.
const MaxBlobsPerTx = 6

// GetBlobGasPriceUpdateFraction scales excess blob gas into a price via FakeExponential.
func (c *Config) GetBlobGasPriceUpdateFraction(_ uint64) uint64 {
	return blobGasPriceUpdateFractionCancun
}
