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
	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/crypto"
)

// Log is an event emitted by the EVM during execution, aggregated into the block's logs
// bloom and recorded on the transaction's Receipt (spec §4.D).
type Log struct {
	Address libcommon.Address
	Topics  []libcommon.Hash
	Data    []byte
}

// BloomByteLength/BitLength are the standard Ethereum 2048-bit (256-byte) logs bloom.
const (
	BloomByteLength = 256
	BloomBitLength  = 8 * BloomByteLength
)

// Bloom is a 2048-bit Bloom filter over an address and its logs' topics.
type Bloom [BloomByteLength]byte

// CreateBloom folds every log's address and topics into a single filter for the block.
func CreateBloom(logs []*Log) Bloom {
	var b Bloom
	for _, l := range logs {
		b.add(l.Address.Bytes())
		for _, t := range l.Topics {
			b.add(t.Bytes())
		}
	}
	return b
}

// add sets the 3 bits keccak256(data) selects, the same scheme go-ethereum and erigon use.
func (b *Bloom) add(data []byte) {
	h := crypto.Keccak256(data)
	for i := 0; i < 3; i++ {
		bitIdx := (uint(h[i*2])<<8 | uint(h[i*2+1])) & (BloomBitLength - 1)
		b[BloomByteLength-1-bitIdx/8] |= 1 << (bitIdx % 8)
	}
}

// Withdrawal is a post-Shanghai validator balance credit applied at block end, outside the
// transaction/gas/nonce machinery (EIP-4895, spec's expanded §4.D).
type Withdrawal struct {
	Index          uint64
	ValidatorIndex uint64
	Address        libcommon.Address
	AmountGwei     uint64
}
