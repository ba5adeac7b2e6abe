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

// ConstError is an error type for constant error values, comparable with
// errors.Is and usable in const declarations.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

// The error taxonomy of the execution engine. A fault raised in a nested
// frame is consumed at the call-site opcode (the frame's mutations are
// discarded, its gas is consumed, and 0 is pushed on the caller's stack); a
// fault raised in the outermost frame surfaces verbatim as Result.Error.
const (
	ErrStackOverflow       = ConstError("stack overflow")
	ErrStackUnderflow      = ConstError("stack underflow")
	ErrOutOfGas            = ConstError("out of gas")
	ErrInvalidOpcode       = ConstError("invalid opcode")
	ErrInvalidJump         = ConstError("invalid jump destination")
	ErrWriteProtection     = ConstError("write protection")
	ErrCallDepthExceeded   = ConstError("max call depth exceeded")
	ErrInvalidMemoryAccess = ConstError("invalid memory access")
	ErrStateUnavailable    = ConstError("state unavailable")
)
