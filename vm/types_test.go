// Copyright (c) 2026 Basalt Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file.
//
// Change Date: 2030-1-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package vm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"pgregory.net/rand"
)

func TestNewValue_ArgumentsAreOrderedFromMostToLeastSignificant(t *testing.T) {
	tests := map[string]struct {
		args []uint64
		want *uint256.Int
	}{
		"empty":    {nil, uint256.NewInt(0)},
		"one":      {[]uint64{1}, uint256.NewInt(1)},
		"two":      {[]uint64{1, 2}, new(uint256.Int).Add(uint256.NewInt(2), new(uint256.Int).Lsh(uint256.NewInt(1), 64))},
		"max64bit": {[]uint64{^uint64(0)}, new(uint256.Int).SetUint64(^uint64(0))},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, test.want, NewValue(test.args...).ToUint256())
		})
	}
}

func TestNewValue_TooManyArgumentsPanics(t *testing.T) {
	require.Panics(t, func() {
		NewValue(1, 2, 3, 4, 5)
	})
}

func TestValue_CmpOrdersLexicographically(t *testing.T) {
	require.Equal(t, 0, NewValue(1).Cmp(NewValue(1)))
	require.Less(t, NewValue(1).Cmp(NewValue(2)), 0)
	require.Greater(t, NewValue(1, 0).Cmp(NewValue(2)), 0)
}

func TestAdd_SubIsInverse(t *testing.T) {
	r := rand.New(0)
	for i := 0; i < 100; i++ {
		a := NewValue(r.Uint64(), r.Uint64(), r.Uint64(), r.Uint64())
		b := NewValue(r.Uint64(), r.Uint64(), r.Uint64(), r.Uint64())
		require.Equal(t, a, Sub(Add(a, b), b))
		require.Equal(t, Add(a, b), Add(b, a))
	}
}

func TestAdd_WrapsAroundSilently(t *testing.T) {
	allOnes := Value{}
	for i := range allOnes {
		allOnes[i] = 0xff
	}
	require.Equal(t, Value{}, Add(allOnes, NewValue(1)))
	require.Equal(t, allOnes, Sub(Value{}, NewValue(1)))
}

func TestValueFromUint256_NilYieldsZero(t *testing.T) {
	require.Equal(t, Value{}, ValueFromUint256(nil))
	require.Equal(t, NewValue(42), ValueFromUint256(uint256.NewInt(42)))
}
