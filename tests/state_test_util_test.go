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

package tests

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleFixture = `{
  "env": {
    "currentCoinbase": "0x2adc25665018aa1fe0e6bc666dac8fc2697ff9ba",
    "currentNumber": "0x01",
    "currentGasLimit": "0x7fffffffffffffff",
    "currentTimestamp": "0x3e8",
    "currentBaseFee": "0x0a"
  },
  "pre": {
    "0xa94f5374fce5edbc8e2a8697c15331677e6ebf0b": {
      "balance": "0x3635c9adc5dea00000",
      "nonce": "0x05",
      "code": "0x",
      "storage": {
        "0x0000000000000000000000000000000000000000000000000000000000000001": "0x2a"
      }
    }
  },
  "transaction": {
    "rawBytes": "0x"
  },
  "post": {
    "Istanbul": [
      {"hash": "0x00000000000000000000000000000000000000000000000000000000000001", "logs": "0x"}
    ],
    "London": [
      {"hash": "0x00000000000000000000000000000000000000000000000000000000000002", "logs": "0x"}
    ]
  }
}`

func TestStateTestUnmarshalEnvAndPre(t *testing.T) {
	var st StateTest
	require.NoError(t, st.UnmarshalJSON([]byte(sampleFixture)))

	require.EqualValues(t, 1, st.json.Env.Number)
	require.EqualValues(t, 0x7fffffffffffffff, st.json.Env.GasLimit)
	require.EqualValues(t, 1000, st.json.Env.Timestamp)
	require.NotNil(t, st.json.Env.BaseFee)
	require.EqualValues(t, 10, st.json.Env.BaseFee.Uint64())

	acct, ok := st.json.Pre["0xa94f5374fce5edbc8e2a8697c15331677e6ebf0b"]
	require.True(t, ok)
	require.EqualValues(t, 5, acct.Nonce)
	require.Equal(t, "3635c9adc5dea00000", acct.Balance.Text(16))
	require.Len(t, acct.Storage, 1)
}

func TestStateTestSubtests(t *testing.T) {
	var st StateTest
	require.NoError(t, st.UnmarshalJSON([]byte(sampleFixture)))

	subtests := st.Subtests()
	require.Len(t, subtests, 2)
	forks := map[string]bool{}
	for _, s := range subtests {
		forks[s.Fork] = true
		require.Equal(t, 0, s.Index)
	}
	require.True(t, forks["Istanbul"])
	require.True(t, forks["London"])
}

func TestForkConfig(t *testing.T) {
	cases := []struct {
		name              string
		wantLondon        bool
		wantShanghai      bool
		wantCancun        bool
		wantRefundQuotient uint64
	}{
		{"Frontier", false, false, false, 2},
		{"Byzantium", false, false, false, 2},
		{"London", true, false, false, 5},
		{"Shanghai", true, true, false, 5},
		{"Cancun", true, true, true, 5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg, err := forkConfig(c.name)
			require.NoError(t, err)
			rules := cfg.Rules(1, 1)
			require.Equal(t, c.wantLondon, rules.IsLondon)
			require.Equal(t, c.wantShanghai, rules.IsShanghai)
			require.Equal(t, c.wantCancun, rules.IsCancun)
			require.Equal(t, c.wantRefundQuotient, rules.RefundQuotient)
		})
	}
}

func TestForkConfigUnknown(t *testing.T) {
	_, err := forkConfig("NotARealFork")
	require.Error(t, err)
}

func TestHexHelpers(t *testing.T) {
	b, err := hexToBytes("0x2a2b")
	require.NoError(t, err)
	require.Equal(t, []byte{0x2a, 0x2b}, b)

	n, err := hexToUint64("0x3e8")
	require.NoError(t, err)
	require.EqualValues(t, 1000, n)

	bigVal, err := hexToBig("0x0a")
	require.NoError(t, err)
	require.EqualValues(t, 10, bigVal.Uint64())

	empty, err := hexToBytes("")
	require.NoError(t, err)
	require.Nil(t, empty)
}
