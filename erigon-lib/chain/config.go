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

// Package chain holds the fork-activation schedule: which EIPs are live at a given block
// number/timestamp, threaded through state-transition and the commitment builder so the
// refund divisor, per-tx gas cap and EIP-4844/7702 gates are never hard-coded (spec §2's
// Component G).
package chain

import "math/big"

// Config mirrors the shape of a real mainnet chain config: pre-Merge forks are activated by
// block number, post-Merge forks by timestamp, matching how erigon's own chain.Config is
// laid out.
type Config struct {
	ChainID *big.Int

	HomesteadBlock *big.Int
	EIP150Block    *big.Int
	EIP155Block    *big.Int
	ByzantiumBlock *big.Int
	BerlinBlock    *big.Int
	LondonBlock    *big.Int

	ShanghaiTime *uint64
	CancunTime   *uint64
	PragueTime   *uint64
	OsakaTime    *uint64
}

func activated(threshold *big.Int, num uint64) bool {
	return threshold != nil && threshold.Cmp(new(big.Int).SetUint64(num)) <= 0
}

func activatedTime(threshold *uint64, time uint64) bool {
	return threshold != nil && *threshold <= time
}

func (c *Config) IsHomestead(num uint64) bool { return activated(c.HomesteadBlock, num) }
func (c *Config) IsEIP150(num uint64) bool    { return activated(c.EIP150Block, num) }
func (c *Config) IsEIP155(num uint64) bool    { return activated(c.EIP155Block, num) }
func (c *Config) IsByzantium(num uint64) bool { return activated(c.ByzantiumBlock, num) }

// IsBerlin gates EIP-2929/2930 access-list gas accounting.
func (c *Config) IsBerlin(num uint64) bool { return activated(c.BerlinBlock, num) }

// IsLondon gates EIP-1559 base fee and the refund-quotient change from 2 to 5.
func (c *Config) IsLondon(num uint64) bool { return activated(c.LondonBlock, num) }

// IsShanghai gates EIP-3651/3855/3860 and withdrawal processing.
func (c *Config) IsShanghai(time uint64) bool { return activatedTime(c.ShanghaiTime, time) }

// IsCancun gates EIP-4844 blob transactions and EIP-1153 transient storage.
func (c *Config) IsCancun(time uint64) bool { return activatedTime(c.CancunTime, time) }

// IsPrague gates EIP-7702 set-code transactions.
func (c *Config) IsPrague(time uint64) bool { return activatedTime(c.PragueTime, time) }

// IsOsaka gates the raised per-tx calldata/gas-limit cap referenced by spec §4.D step 6.
func (c *Config) IsOsaka(time uint64) bool { return activatedTime(c.OsakaTime, time) }

// ForkRules is the resolved, comparison-free view of which rules apply to one specific
// block — computed once per block rather than re-walking the Config's threshold fields on
// every gas/refund lookup (spec §9's third Open Question decision).
type ForkRules struct {
	IsHomestead, IsEIP150, IsEIP155, IsByzantium bool
	IsBerlin, IsLondon                           bool
	IsShanghai, IsCancun, IsPrague, IsOsaka       bool
	// RefundQuotient is 5 post-London, 2 before it (EIP-3529).
	RefundQuotient uint64
}

// Rules resolves the fork schedule for a specific (blockNumber, blockTime) pair.
func (c *Config) Rules(num, time uint64) ForkRules {
	r := ForkRules{
		IsHomestead: c.IsHomestead(num),
		IsEIP150:    c.IsEIP150(num),
		IsEIP155:    c.IsEIP155(num),
		IsByzantium: c.IsByzantium(num),
		IsBerlin:    c.IsBerlin(num),
		IsLondon:    c.IsLondon(num),
		IsShanghai:  c.IsShanghai(time),
		IsCancun:    c.IsCancun(time),
		IsPrague:    c.IsPrague(time),
		IsOsaka:     c.IsOsaka(time),
	}
	if r.IsLondon {
		r.RefundQuotient = 5
	} else {
		r.RefundQuotient = 2
	}
	return r
}
