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
	"fmt"
	"strings"
	"sync"

	"github.com/holiman/uint256"
)

// maxStackSize is the maximum number of elements the operand stack of a
// single frame can hold.
const maxStackSize = 1024

// stack is the operand stack of a single execution frame. It is a fixed-size
// array of 256-bit words; boundary checks are performed by the dispatcher
// before an instruction runs, so the accessors below do not re-check.
type stack struct {
	data         [maxStackSize]uint256.Int
	stackPointer int
}

var stackPool = sync.Pool{
	New: func() any {
		return &stack{}
	},
}

func NewStack() *stack {
	return stackPool.Get().(*stack)
}

func ReturnStack(s *stack) {
	s.stackPointer = 0
	stackPool.Put(s)
}

func (s *stack) len() int {
	return s.stackPointer
}

// push adds the given value on top of the stack.
func (s *stack) push(d *uint256.Int) {
	s.data[s.stackPointer] = *d
	s.stackPointer++
}

// pushUndefined grows the stack by one and returns a pointer to the new top
// element, to be initialized by the caller.
func (s *stack) pushUndefined() *uint256.Int {
	r := &s.data[s.stackPointer]
	s.stackPointer++
	return r
}

func (s *stack) pop() *uint256.Int {
	s.stackPointer--
	return &s.data[s.stackPointer]
}

// peek returns the top element without removing it.
func (s *stack) peek() *uint256.Int {
	return &s.data[s.stackPointer-1]
}

// peekN returns the n-th element from the top, with peekN(0) == peek().
func (s *stack) peekN(n int) *uint256.Int {
	return &s.data[s.stackPointer-1-n]
}

func (s *stack) swap(n int) {
	top := s.stackPointer - 1
	s.data[top], s.data[top-n] = s.data[top-n], s.data[top]
}

// dup pushes a copy of the n-th element from the top, with dup(1)
// duplicating the top element.
func (s *stack) dup(n int) {
	s.push(s.peekN(n - 1))
}

func (s *stack) String() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("stack size: %d\n", s.stackPointer))
	for i := s.stackPointer - 1; i >= 0; i-- {
		b.WriteString(fmt.Sprintf("    [%3d] %v\n", i, s.data[i].Hex()))
	}
	return b.String()
}
