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
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/basalt-vm/basalt/state"
	"github.com/basalt-vm/basalt/vm"
)

// binaryOp runs `op(x, y)` as a small program and returns the low 64 bits of
// the result.
func binaryOp(t *testing.T, op OpCode, x, y byte) uint64 {
	t.Helper()
	code := []byte{
		byte(PUSH1), y,
		byte(PUSH1), x,
		byte(op),
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	}
	res := runCode(t, state.New(), code, 10000)
	require.True(t, res.Success)
	require.Len(t, res.Output, 32)
	return binary.BigEndian.Uint64(res.Output[24:])
}

func TestInstructions_BinaryOperations(t *testing.T) {
	tests := []struct {
		name string
		op   OpCode
		x, y byte
		want uint64
	}{
		{"add", ADD, 2, 3, 5},
		{"sub", SUB, 5, 3, 2},
		{"mul", MUL, 4, 3, 12},
		{"div", DIV, 6, 3, 2},
		{"div by zero", DIV, 6, 0, 0},
		{"sdiv by zero", SDIV, 6, 0, 0},
		{"mod", MOD, 7, 3, 1},
		{"mod by zero", MOD, 7, 0, 0},
		{"smod by zero", SMOD, 7, 0, 0},
		{"exp", EXP, 2, 10, 1024},
		{"exp to the zeroth", EXP, 9, 0, 1},
		{"lt true", LT, 1, 2, 1},
		{"lt false", LT, 2, 1, 0},
		{"gt true", GT, 2, 1, 1},
		{"eq true", EQ, 7, 7, 1},
		{"eq false", EQ, 7, 8, 0},
		{"and", AND, 0b1100, 0b1010, 0b1000},
		{"or", OR, 0b1100, 0b1010, 0b1110},
		{"xor", XOR, 0b1100, 0b1010, 0b0110},
		{"shl", SHL, 1, 0b0011, 0b0110},
		{"shr", SHR, 1, 0b0110, 0b0011},
		{"shl overflow", SHL, 255, 2, 0},
		{"byte selects from the left", BYTE, 31, 0x42, 0x42},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, binaryOp(t, test.op, test.x, test.y))
		})
	}
}

func TestInstructions_TernaryModularArithmetic(t *testing.T) {
	// ADDMOD(10, 10, 8) == 4 and MULMOD(10, 10, 8) == 4
	for _, op := range []OpCode{ADDMOD, MULMOD} {
		code := []byte{
			byte(PUSH1), 8,
			byte(PUSH1), 10,
			byte(PUSH1), 10,
			byte(op),
			byte(PUSH1), 0,
			byte(MSTORE),
			byte(PUSH1), 32,
			byte(PUSH1), 0,
			byte(RETURN),
		}
		res := runCode(t, state.New(), code, 10000)
		require.True(t, res.Success)
		require.Equal(t, byte(4), res.Output[31], "%v", op)
	}
}

func TestInstructions_UnaryOperations(t *testing.T) {
	code := []byte{
		byte(PUSH1), 0,
		byte(ISZERO),
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	}
	res := runCode(t, state.New(), code, 10000)
	require.True(t, res.Success)
	require.Equal(t, byte(1), res.Output[31])

	code[0], code[1], code[2] = byte(PUSH1), 1, byte(NOT)
	res = runCode(t, state.New(), code, 10000)
	require.True(t, res.Success)
	require.Equal(t, byte(0xFE), res.Output[31])
	require.Equal(t, byte(0xFF), res.Output[0])
}

func TestInstructions_EnvironmentOpcodesReflectParameters(t *testing.T) {
	// returns CALLER ++ CALLVALUE low byte via memory
	code := []byte{
		byte(CALLER),
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(CALLVALUE),
		byte(PUSH1), 32,
		byte(MSTORE),
		byte(PUSH1), 64,
		byte(PUSH1), 0,
		byte(RETURN),
	}
	res := runOn(t, state.New(), vm.Parameters{
		Gas:       10000,
		Sender:    vm.Address{0xAA},
		Recipient: testContract,
		Value:     vm.NewValue(77),
		Code:      code,
	})
	require.True(t, res.Success)
	require.Equal(t, byte(0xAA), res.Output[12])
	require.Equal(t, byte(77), res.Output[63])
}

func TestInstructions_CallDataIsZeroPaddedPastTheEnd(t *testing.T) {
	code := []byte{
		byte(PUSH1), 1, // offset: one past the single input byte
		byte(CALLDATALOAD),
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	}
	res := runOn(t, state.New(), vm.Parameters{
		Gas:       10000,
		Recipient: testContract,
		Input:     vm.Data{0xAB, 0xCD},
		Code:      code,
	})
	require.True(t, res.Success)
	require.Equal(t, byte(0xCD), res.Output[0])
	for _, b := range res.Output[1:] {
		require.Equal(t, byte(0), b)
	}
}

func TestInstructions_GasReportsRemainingBudget(t *testing.T) {
	code := []byte{
		byte(GAS),
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	}
	res := runCode(t, state.New(), code, 1000)
	require.True(t, res.Success)
	// the GAS instruction reports the budget after its own static cost
	require.Equal(t, uint64(1000-2), binary.BigEndian.Uint64(res.Output[24:]))
}

func TestInstructions_BlockContextIsExposed(t *testing.T) {
	code := []byte{
		byte(NUMBER),
		byte(TIMESTAMP),
		byte(ADD),
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	}
	res := runOn(t, state.New(), vm.Parameters{
		BlockParameters: vm.BlockParameters{
			BlockNumber: 100,
			Timestamp:   23,
		},
		Gas:       10000,
		Recipient: testContract,
		Code:      code,
	})
	require.True(t, res.Success)
	require.Equal(t, byte(123), res.Output[31])
}
