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

	"github.com/basalt-vm/basalt/vm"
	"github.com/holiman/uint256"
)

// Memory is the byte-addressable scratch memory of a single execution frame.
// It grows in 32-byte words and never shrinks; every expansion is charged
// quadratically before the backing store grows.
type Memory struct {
	store             []byte
	currentMemoryCost vm.Gas
}

func NewMemory() *Memory {
	return &Memory{}
}

// maxMemoryExpansionSize is the size above which the expansion cost
// computation would overflow. Expansions beyond it cannot be paid for with
// the maximum gas supply, so they are rejected outright.
const maxMemoryExpansionSize = 0x1FFFFFFFE0 // 2^37 - 32

func toValidMemorySize(size uint64) uint64 {
	fullWordsSize := ((size + 31) / 32) * 32
	if size > fullWordsSize {
		// size+31 overflowed; round up to the next word boundary beyond the
		// expansion limit so that the caller fails the limit check.
		return math.MaxUint64
	}
	return fullWordsSize
}

func (m *Memory) length() uint64 {
	return uint64(len(m.store))
}

// getExpansionCosts returns the gas required to grow the memory to the given
// size, relative to its current size.
func (m *Memory) getExpansionCosts(size uint64) vm.Gas {
	if m.length() >= size {
		return 0
	}
	if size > maxMemoryExpansionSize {
		return vm.Gas(math.MaxInt64)
	}
	words := vm.SizeInWords(size)
	newCost := vm.Gas(3*words + words*words/512)
	return newCost - m.currentMemoryCost
}

// expandMemory charges the expansion costs of accessing the memory region
// [offset, offset+size) and grows the store accordingly. An unpayable
// expansion leaves the memory untouched.
func (m *Memory) expandMemory(offset, size uint64, c *frame) error {
	if size == 0 {
		return nil
	}
	needed := offset + size
	if needed < offset { // overflow
		return vm.ErrInvalidMemoryAccess
	}
	return m.expandMemoryWithCharging(needed, c)
}

func (m *Memory) expandMemoryWithCharging(needed uint64, c *frame) error {
	needed = toValidMemorySize(needed)
	if m.length() >= needed {
		return nil
	}
	if needed > maxMemoryExpansionSize {
		return vm.ErrInvalidMemoryAccess
	}
	fee := m.getExpansionCosts(needed)
	if err := c.useGas(fee); err != nil {
		return err
	}
	m.currentMemoryCost += fee
	m.store = append(m.store, make([]byte, needed-m.length())...)
	return nil
}

// getSlice returns a mutable view of the memory region [offset, offset+size),
// expanding (and charging) the memory as needed. The returned slice aliases
// the backing store and is invalidated by the next expansion.
func (m *Memory) getSlice(offset, size *uint256.Int, c *frame) ([]byte, error) {
	if size.IsZero() {
		return nil, nil
	}
	if !offset.IsUint64() || !size.IsUint64() {
		return nil, vm.ErrInvalidMemoryAccess
	}
	start := offset.Uint64()
	length := size.Uint64()
	if err := m.expandMemory(start, length, c); err != nil {
		return nil, err
	}
	return m.store[start : start+length], nil
}

// readWord reads the 32-byte word at the given offset into target, expanding
// the memory as needed.
func (m *Memory) readWord(offset *uint256.Int, target *uint256.Int, c *frame) error {
	data, err := m.getSlice(offset, uint256.NewInt(32), c)
	if err != nil {
		return err
	}
	target.SetBytes32(data)
	return nil
}

// set writes the given bytes to memory at the given offset, expanding and
// charging the memory as needed.
func (m *Memory) set(offset *uint256.Int, value []byte, c *frame) error {
	if len(value) == 0 {
		return nil
	}
	data, err := m.getSlice(offset, uint256.NewInt(uint64(len(value))), c)
	if err != nil {
		return err
	}
	copy(data, value)
	return nil
}

// setByte writes a single byte at the given offset, expanding the memory as
// needed.
func (m *Memory) setByte(offset *uint256.Int, value byte, c *frame) error {
	data, err := m.getSlice(offset, uint256.NewInt(1), c)
	if err != nil {
		return err
	}
	data[0] = value
	return nil
}
