// Copyright (c) 2026 Basalt Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file.
//
// Change Date: 2030-1-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package prism

import (
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/basalt-vm/basalt/vm"
)

func testFrameWithGas(gas vm.Gas) *frame {
	return &frame{gas: gas, memory: NewMemory(), stack: NewStack()}
}

func TestMemory_ExpansionCostsGrowQuadratically(t *testing.T) {
	tests := []struct {
		size uint64
		cost vm.Gas
	}{
		{0, 0},
		{1, 3},
		{32, 3},
		{33, 6},
		{64, 6},
		{256, 24},       // 8 words
		{32 * 512, 2048}, // 512 words: 3*512 + 512*512/512
	}
	for _, test := range tests {
		m := NewMemory()
		require.Equal(t, test.cost, m.getExpansionCosts(test.size), "size %d", test.size)
	}
}

func TestMemory_ExpansionCostsAreChargedIncrementally(t *testing.T) {
	c := testFrameWithGas(100)
	defer ReturnStack(c.stack)
	m := c.memory

	require.NoError(t, m.expandMemory(0, 32, c))
	require.Equal(t, vm.Gas(97), c.gas)

	// growing the same region again is free
	require.NoError(t, m.expandMemory(0, 32, c))
	require.Equal(t, vm.Gas(97), c.gas)

	// one more word costs the difference only
	require.NoError(t, m.expandMemory(32, 32, c))
	require.Equal(t, vm.Gas(94), c.gas)
}

func TestMemory_UnpayableExpansionReportsOutOfGas(t *testing.T) {
	c := testFrameWithGas(2)
	defer ReturnStack(c.stack)
	require.ErrorIs(t, c.memory.expandMemory(0, 32, c), vm.ErrOutOfGas)
	require.Equal(t, uint64(0), c.memory.length())
	require.Equal(t, vm.Gas(0), c.gas)
}

func TestMemory_OffsetOverflowIsAnInvalidAccess(t *testing.T) {
	c := testFrameWithGas(1000)
	defer ReturnStack(c.stack)
	err := c.memory.expandMemory(math.MaxUint64, 2, c)
	require.ErrorIs(t, err, vm.ErrInvalidMemoryAccess)
}

func TestMemory_GetSliceExpandsToWordBoundary(t *testing.T) {
	c := testFrameWithGas(1000)
	defer ReturnStack(c.stack)
	data, err := c.memory.getSlice(uint256.NewInt(10), uint256.NewInt(5), c)
	require.NoError(t, err)
	require.Len(t, data, 5)
	require.Equal(t, uint64(32), c.memory.length())
}

func TestMemory_GetSliceOfSizeZeroIsFree(t *testing.T) {
	c := testFrameWithGas(0)
	defer ReturnStack(c.stack)
	data, err := c.memory.getSlice(uint256.NewInt(1000), uint256.NewInt(0), c)
	require.NoError(t, err)
	require.Nil(t, data)
	require.Equal(t, uint64(0), c.memory.length())
}

func TestMemory_ReadWordReturnsWrittenValue(t *testing.T) {
	c := testFrameWithGas(1000)
	defer ReturnStack(c.stack)
	m := c.memory

	data, err := m.getSlice(uint256.NewInt(0), uint256.NewInt(32), c)
	require.NoError(t, err)
	data[31] = 42

	var got uint256.Int
	require.NoError(t, m.readWord(uint256.NewInt(0), &got, c))
	require.Equal(t, uint64(42), got.Uint64())
}

func TestMemory_SetExpandsToCoverTheWrite(t *testing.T) {
	c := testFrameWithGas(1000)
	defer ReturnStack(c.stack)
	require.NoError(t, c.memory.set(uint256.NewInt(30), []byte{1, 2, 3}, c))
	require.Equal(t, uint64(64), c.memory.length())
	require.Equal(t, []byte{1, 2, 3}, c.memory.store[30:33])
}

func TestMemory_UnpayableSetLeavesMemoryUntouched(t *testing.T) {
	c := testFrameWithGas(2)
	defer ReturnStack(c.stack)
	err := c.memory.set(uint256.NewInt(0), []byte{1}, c)
	require.ErrorIs(t, err, vm.ErrOutOfGas)
	require.Equal(t, uint64(0), c.memory.length())
}

func TestMemory_HugeExpansionsAreRejectedBeforeAllocating(t *testing.T) {
	c := testFrameWithGas(math.MaxInt64)
	defer ReturnStack(c.stack)
	err := c.memory.expandMemory(0, maxMemoryExpansionSize+1, c)
	require.ErrorIs(t, err, vm.ErrInvalidMemoryAccess)
	require.Equal(t, uint64(0), c.memory.length())
}
