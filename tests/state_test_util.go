// Copyright 2015 The go-ethereum Authors
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

// Package tests runs state-transition fixtures (spec §4.D) against this module's own
// core/state, core/state_transition and core/state/commitment packages, in the spirit of
// the Ethereum Foundation's GeneralStateTest format (see
// https://github.com/ethereum/EIPs/issues/176). Unlike the upstream fixtures, a test here
// carries an already-signed transaction's raw RLP rather than a secret key: erigon-lib/crypto
// only implements signature recovery, not signing, so building new fixtures is a wallet's
// job, not the execution core's.
package tests

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"github.com/erigontech/erigon-core/core"
	"github.com/erigontech/erigon-core/core/state"
	"github.com/erigontech/erigon-core/core/state/commitment"
	"github.com/erigontech/erigon-core/core/vm"
	"github.com/erigontech/erigon-core/erigon-lib/chain"
	libcommon "github.com/erigontech/erigon-core/erigon-lib/common"
	"github.com/erigontech/erigon-core/erigon-lib/kv/memdb"
	"github.com/erigontech/erigon-core/erigon-lib/types"
)

// StateTest is one parsed fixture: a pre-state, a single transaction, and the expected
// post-state root under one or more fork configurations.
type StateTest struct {
	json stJSON
}

// StateSubtest selects one (fork, post-state variant) pair out of a StateTest's post map.
type StateSubtest struct {
	Fork  string
	Index int
}

func (t *StateTest) UnmarshalJSON(in []byte) error {
	return json.Unmarshal(in, &t.json)
}

// Subtests enumerates every (fork, index) pair present in the fixture's post section.
func (t *StateTest) Subtests() []StateSubtest {
	var out []StateSubtest
	for fork, posts := range t.json.Post {
		for i := range posts {
			out = append(out, StateSubtest{Fork: fork, Index: i})
		}
	}
	return out
}

type stJSON struct {
	Env  stEnv                     `json:"env"`
	Pre  map[string]stAccount      `json:"pre"`
	Tx   stTransaction             `json:"transaction"`
	Post map[string][]stPostState `json:"post"`
}

type stEnv struct {
	Coinbase  libcommon.Address
	Number    uint64
	GasLimit  uint64
	Timestamp uint64
	BaseFee   *uint256.Int
}

func (e *stEnv) UnmarshalJSON(in []byte) error {
	var raw struct {
		Coinbase  string `json:"currentCoinbase"`
		Number    string `json:"currentNumber"`
		GasLimit  string `json:"currentGasLimit"`
		Timestamp string `json:"currentTimestamp"`
		BaseFee   string `json:"currentBaseFee"`
	}
	if err := json.Unmarshal(in, &raw); err != nil {
		return err
	}
	addr, err := hexToBytes(raw.Coinbase)
	if err != nil {
		return fmt.Errorf("tests: currentCoinbase: %w", err)
	}
	e.Coinbase = libcommon.BytesToAddress(addr)
	if e.Number, err = hexToUint64(raw.Number); err != nil {
		return fmt.Errorf("tests: currentNumber: %w", err)
	}
	if e.GasLimit, err = hexToUint64(raw.GasLimit); err != nil {
		return fmt.Errorf("tests: currentGasLimit: %w", err)
	}
	if e.Timestamp, err = hexToUint64(raw.Timestamp); err != nil {
		return fmt.Errorf("tests: currentTimestamp: %w", err)
	}
	if raw.BaseFee != "" {
		b, err := hexToBig(raw.BaseFee)
		if err != nil {
			return fmt.Errorf("tests: currentBaseFee: %w", err)
		}
		fee, overflow := uint256.FromBig(b)
		if overflow {
			return fmt.Errorf("tests: currentBaseFee overflows 256 bits")
		}
		e.BaseFee = fee
	}
	return nil
}

type stAccount struct {
	Balance *big.Int
	Nonce   uint64
	Code    []byte
	Storage map[libcommon.Hash]libcommon.Hash
}

func (a *stAccount) UnmarshalJSON(in []byte) error {
	var raw struct {
		Balance string            `json:"balance"`
		Nonce   string            `json:"nonce"`
		Code    string            `json:"code"`
		Storage map[string]string `json:"storage"`
	}
	if err := json.Unmarshal(in, &raw); err != nil {
		return err
	}
	var err error
	if a.Balance, err = hexToBig(raw.Balance); err != nil {
		return fmt.Errorf("tests: account balance: %w", err)
	}
	if a.Nonce, err = hexToUint64(raw.Nonce); err != nil {
		return fmt.Errorf("tests: account nonce: %w", err)
	}
	if a.Code, err = hexToBytes(raw.Code); err != nil {
		return fmt.Errorf("tests: account code: %w", err)
	}
	if len(raw.Storage) > 0 {
		a.Storage = make(map[libcommon.Hash]libcommon.Hash, len(raw.Storage))
		for k, v := range raw.Storage {
			kb, err := hexToBytes(k)
			if err != nil {
				return fmt.Errorf("tests: storage key %q: %w", k, err)
			}
			vb, err := hexToBytes(v)
			if err != nil {
				return fmt.Errorf("tests: storage value %q: %w", v, err)
			}
			a.Storage[libcommon.BytesToHash(kb)] = libcommon.BytesToHash(vb)
		}
	}
	return nil
}

// stTransaction carries the transaction's raw signed RLP, exactly as it would appear on
// the wire or in a block body: constructing it from its component fields (and a secret
// key) is left to whatever produced the fixture.
type stTransaction struct {
	Raw []byte
}

func (tx *stTransaction) UnmarshalJSON(in []byte) error {
	var raw struct {
		RawBytes string `json:"rawBytes"`
	}
	if err := json.Unmarshal(in, &raw); err != nil {
		return err
	}
	b, err := hexToBytes(raw.RawBytes)
	if err != nil {
		return fmt.Errorf("tests: transaction rawBytes: %w", err)
	}
	tx.Raw = b
	return nil
}

type stPostState struct {
	Root libcommon.Hash
	Logs libcommon.Hash
}

func (p *stPostState) UnmarshalJSON(in []byte) error {
	var raw struct {
		Hash string `json:"hash"`
		Logs string `json:"logs"`
	}
	if err := json.Unmarshal(in, &raw); err != nil {
		return err
	}
	h, err := hexToBytes(raw.Hash)
	if err != nil {
		return fmt.Errorf("tests: post.hash: %w", err)
	}
	p.Root = libcommon.BytesToHash(h)
	if raw.Logs != "" {
		l, err := hexToBytes(raw.Logs)
		if err != nil {
			return fmt.Errorf("tests: post.logs: %w", err)
		}
		p.Logs = libcommon.BytesToHash(l)
	}
	return nil
}

// Run builds the fixture's pre-state, applies its transaction under subtest's fork, and
// checks the resulting state root against the fixture's expected post-state root. evm
// stands in for the external bytecode interpreter (spec §1's "Out of scope: the EVM
// interpreter") -- callers wire in whatever implementation they are validating.
func (t *StateTest) Run(subtest StateSubtest, evm vm.Evm) (*state.IntraBlockState, libcommon.Hash, error) {
	posts, ok := t.json.Post[subtest.Fork]
	if !ok || subtest.Index >= len(posts) {
		return nil, libcommon.Hash{}, fmt.Errorf("tests: no post state for fork %s index %d", subtest.Fork, subtest.Index)
	}
	post := posts[subtest.Index]

	config, err := forkConfig(subtest.Fork)
	if err != nil {
		return nil, libcommon.Hash{}, err
	}

	db := memdb.New()
	rwTx, err := db.BeginRw(context.Background())
	if err != nil {
		return nil, libcommon.Hash{}, err
	}
	defer rwTx.Rollback()

	reader := state.NewPlainStateReader(rwTx)
	ibs := state.New(reader)

	for addrHex, acct := range t.json.Pre {
		addrBytes, err := hexToBytes(addrHex)
		if err != nil {
			return nil, libcommon.Hash{}, fmt.Errorf("tests: pre-state address %q: %w", addrHex, err)
		}
		addr := libcommon.BytesToAddress(addrBytes)
		ibs.CreateAccount(addr, false)
		ibs.SetNonce(addr, acct.Nonce)
		balance, overflow := uint256.FromBig(acct.Balance)
		if overflow {
			return nil, libcommon.Hash{}, fmt.Errorf("tests: pre-state balance for %s overflows 256 bits", addrHex)
		}
		ibs.AddBalance(addr, balance)
		if len(acct.Code) > 0 {
			ibs.SetCode(addr, acct.Code)
		}
		for k, v := range acct.Storage {
			var val uint256.Int
			val.SetBytes(v.Bytes())
			ibs.SetState(addr, k, val)
		}
	}

	txn, err := types.DecodeTransaction(t.json.Tx.Raw)
	if err != nil {
		return nil, libcommon.Hash{}, fmt.Errorf("tests: decoding transaction: %w", err)
	}
	sender, err := types.Sender(txn)
	if err != nil {
		return nil, libcommon.Hash{}, fmt.Errorf("tests: recovering sender: %w", err)
	}

	header := &types.Header{
		Coinbase: t.json.Env.Coinbase,
		Number:   t.json.Env.Number,
		GasLimit: t.json.Env.GasLimit,
		Time:     t.json.Env.Timestamp,
		BaseFee:  t.json.Env.BaseFee,
	}
	blockCtx := vm.BlockContext{
		Coinbase:    header.Coinbase,
		BlockNumber: header.Number,
		Time:        header.Time,
		GasLimit:    header.GasLimit,
		BaseFee:     header.BaseFee,
	}

	st := core.NewStateTransition(config, evm, header)
	if _, err := st.ApplyTransaction(ibs, header, txn, sender, blockCtx, 0, 0); err != nil {
		return ibs, libcommon.Hash{}, fmt.Errorf("tests: applying transaction: %w", err)
	}

	commit := commitment.New(commitment.FullTrie)
	writer := state.NewPlainStateWriter(rwTx, commit)
	if err := ibs.CommitBlock(writer); err != nil {
		return ibs, libcommon.Hash{}, fmt.Errorf("tests: committing block: %w", err)
	}
	root := commit.ComputeRoot()
	if root != post.Root {
		return ibs, root, fmt.Errorf("tests: state root mismatch for fork %s: got %s want %s", subtest.Fork, root, post.Root)
	}
	return ibs, root, nil
}

// forkConfig maps a fixture fork name to the chain.Config that activates exactly the forks
// up to and including it. Pre-Merge names are block-gated, post-Merge names time-gated, the
// same split chain.Config itself uses.
func forkConfig(name string) (*chain.Config, error) {
	zero := uint64(0)
	cfg := &chain.Config{ChainID: big.NewInt(1)}
	set := func(n uint64) *big.Int { return new(big.Int).SetUint64(n) }

	switch strings.ToLower(name) {
	case "frontier":
	case "homestead":
		cfg.HomesteadBlock = set(0)
	case "eip150":
		cfg.HomesteadBlock = set(0)
		cfg.EIP150Block = set(0)
	case "eip158", "spuriousdragon":
		cfg.HomesteadBlock, cfg.EIP150Block, cfg.EIP155Block = set(0), set(0), set(0)
	case "byzantium":
		cfg.HomesteadBlock, cfg.EIP150Block, cfg.EIP155Block, cfg.ByzantiumBlock = set(0), set(0), set(0), set(0)
	case "constantinople", "constantinoplefix", "petersburg", "istanbul":
		cfg.HomesteadBlock, cfg.EIP150Block, cfg.EIP155Block, cfg.ByzantiumBlock = set(0), set(0), set(0), set(0)
	case "berlin":
		cfg.HomesteadBlock, cfg.EIP150Block, cfg.EIP155Block = set(0), set(0), set(0)
		cfg.ByzantiumBlock, cfg.BerlinBlock = set(0), set(0)
	case "london":
		cfg.HomesteadBlock, cfg.EIP150Block, cfg.EIP155Block = set(0), set(0), set(0)
		cfg.ByzantiumBlock, cfg.BerlinBlock, cfg.LondonBlock = set(0), set(0), set(0)
	case "merge", "paris":
		cfg.HomesteadBlock, cfg.EIP150Block, cfg.EIP155Block = set(0), set(0), set(0)
		cfg.ByzantiumBlock, cfg.BerlinBlock, cfg.LondonBlock = set(0), set(0), set(0)
	case "shanghai":
		cfg.HomesteadBlock, cfg.EIP150Block, cfg.EIP155Block = set(0), set(0), set(0)
		cfg.ByzantiumBlock, cfg.BerlinBlock, cfg.LondonBlock = set(0), set(0), set(0)
		cfg.ShanghaiTime = &zero
	case "cancun":
		cfg.HomesteadBlock, cfg.EIP150Block, cfg.EIP155Block = set(0), set(0), set(0)
		cfg.ByzantiumBlock, cfg.BerlinBlock, cfg.LondonBlock = set(0), set(0), set(0)
		cfg.ShanghaiTime, cfg.CancunTime = &zero, &zero
	case "prague":
		cfg.HomesteadBlock, cfg.EIP150Block, cfg.EIP155Block = set(0), set(0), set(0)
		cfg.ByzantiumBlock, cfg.BerlinBlock, cfg.LondonBlock = set(0), set(0), set(0)
		cfg.ShanghaiTime, cfg.CancunTime, cfg.PragueTime = &zero, &zero, &zero
	default:
		return nil, fmt.Errorf("tests: unknown fork %q", name)
	}
	return cfg, nil
}

func hexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil, nil
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

func hexToUint64(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 16, 64)
}

func hexToBig(s string) (*big.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex integer %q", s)
	}
	return v, nil
}
