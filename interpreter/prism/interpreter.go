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
	"errors"
	"fmt"

	"github.com/basalt-vm/basalt/vm"
)

// status describes the life-cycle stage of a single execution frame.
type status byte

const (
	statusRunning        status = iota
	statusStopped               // STOP or end of code
	statusReturned              // RETURN
	statusReverted              // REVERT
	statusSelfDestructed        // SELFDESTRUCT
	statusFailed                // fault, frame.err holds the cause
)

// frame is the execution state of a single call or create. Frames are
// managed on an explicit stack by the engine's run loop; nested calls never
// recurse on the Go call stack, so the frame nesting limit is enforced by
// gas and by the depth rule alone.
type frame struct {
	engine  *engine
	params  vm.Parameters
	context vm.TransactionContext

	code      []byte
	jumpdests bitvec

	pc     int
	gas    vm.Gas
	refund vm.Gas
	stack  *stack
	memory *Memory

	// returnData holds the output of the most recent completed nested call,
	// as observed by RETURNDATASIZE and RETURNDATACOPY.
	returnData []byte

	// output is the data designated by RETURN or REVERT when the frame halts.
	output []byte

	status status
	err    error

	// snapshot of the transaction context taken when the frame was spawned,
	// restored if the frame reverts or faults. Unused for the root frame;
	// the processor owns the outermost snapshot.
	snapshot vm.Snapshot

	// spawn requests the engine to suspend this frame and run a child.
	spawn *frame

	// isCreate marks contract-creation frames; their output is the code to
	// be deployed rather than return data.
	isCreate bool

	// retOffset and retSize locate the region in the parent frame's memory
	// that receives this frame's output. The region is expanded and charged
	// when the call is issued.
	retOffset uint64
	retSize   uint64
}

// useGas deducts the given amount from the frame's gas budget.
func (c *frame) useGas(amount vm.Gas) error {
	if amount < 0 || c.gas < amount {
		c.gas = 0
		return vm.ErrOutOfGas
	}
	c.gas -= amount
	return nil
}

func (c *frame) fail(err error) error {
	c.status = statusFailed
	c.err = err
	return err
}

// opFn executes a single instruction on the given frame. A non-nil error
// halts the frame with a fault.
type opFn func(c *frame) error

// operation is one entry of the dispatch table: the handler plus the checks
// the dispatcher performs up front so that handlers can omit them.
type operation struct {
	execute   opFn
	staticGas vm.Gas
	minStack  int // minimum stack size required
	maxStack  int // maximum stack size allowed before execution
}

func newOp(fn opFn, staticGas vm.Gas, pops, pushes int) operation {
	return operation{
		execute:   fn,
		staticGas: staticGas,
		minStack:  pops,
		maxStack:  maxStackSize + pops - pushes,
	}
}

// step advances the frame until it halts or requests a child frame. The
// dispatch is a direct index into the fixed operation table; unassigned
// entries fault with ErrInvalidOpcode.
func (e *engine) step(c *frame) {
	for c.status == statusRunning {
		if c.pc >= len(c.code) {
			c.status = statusStopped
			return
		}
		op := &operations[c.code[c.pc]]
		if op.execute == nil {
			c.fail(vm.ErrInvalidOpcode)
			return
		}
		if size := c.stack.len(); size < op.minStack {
			c.fail(vm.ErrStackUnderflow)
			return
		} else if size > op.maxStack {
			c.fail(vm.ErrStackOverflow)
			return
		}
		if err := c.useGas(op.staticGas); err != nil {
			c.fail(err)
			return
		}
		if err := op.execute(c); err != nil {
			c.fail(err)
			return
		}
		c.pc++
		if c.spawn != nil {
			return
		}
	}
}

// run drives the explicit frame stack until the root frame has halted.
// Spawned children are pushed on top; a completed child is folded back into
// its parent by finishChild.
func (e *engine) run(root *frame) {
	frames := make([]*frame, 0, 16)
	frames = append(frames, root)
	for len(frames) > 0 {
		current := frames[len(frames)-1]
		e.step(current)
		if current.spawn != nil {
			child := current.spawn
			current.spawn = nil
			frames = append(frames, child)
			continue
		}
		frames = frames[:len(frames)-1]
		if len(frames) > 0 {
			e.finishChild(frames[len(frames)-1], current)
		}
	}
}

// finishChild folds a completed child frame back into its parent: it settles
// gas and refunds, applies or discards the child's state changes, places the
// output, and pushes the success flag or created address on the parent's
// operand stack.
func (e *engine) finishChild(parent, child *frame) {
	ReturnStack(child.stack)
	if child.isCreate {
		e.finishCreate(parent, child)
		return
	}
	switch child.status {
	case statusStopped, statusReturned, statusSelfDestructed:
		parent.stack.pushUndefined().SetOne()
		parent.returnData = child.output
		parent.gas += child.gas
		parent.refund += child.refund
		e.writeReturnData(parent, child)
	case statusReverted:
		child.context.RestoreSnapshot(child.snapshot)
		parent.stack.pushUndefined().Clear()
		parent.returnData = child.output
		parent.gas += child.gas
		e.writeReturnData(parent, child)
	default: // fault: child gas is consumed, state is discarded
		child.context.RestoreSnapshot(child.snapshot)
		parent.stack.pushUndefined().Clear()
		parent.returnData = nil
	}
}

// finishCreate completes a contract-creation frame. A successful init run
// pays the per-byte deposit cost for the produced code; an unpayable deposit
// or an oversized contract turns the creation into a fault.
func (e *engine) finishCreate(parent, child *frame) {
	created := child.params.Recipient
	switch child.status {
	case statusStopped, statusReturned, statusSelfDestructed:
		code := child.output
		depositCost := vm.Gas(len(code)) * e.schedule.CreateDataGas
		if uint64(len(code)) > e.schedule.MaxCodeSize || child.useGas(depositCost) != nil {
			child.context.RestoreSnapshot(child.snapshot)
			parent.stack.pushUndefined().Clear()
			parent.returnData = nil
			return
		}
		child.context.SetCode(created, code)
		parent.stack.pushUndefined().SetBytes20(created[:])
		parent.returnData = nil
		parent.gas += child.gas
		parent.refund += child.refund
	case statusReverted:
		child.context.RestoreSnapshot(child.snapshot)
		parent.stack.pushUndefined().Clear()
		parent.returnData = child.output
		parent.gas += child.gas
	default:
		child.context.RestoreSnapshot(child.snapshot)
		parent.stack.pushUndefined().Clear()
		parent.returnData = nil
	}
}

// writeReturnData copies the child's output into the parent memory region
// designated by the call. The region was expanded when the call was issued,
// so the copy cannot fail or charge gas.
func (e *engine) writeReturnData(parent, child *frame) {
	n := uint64(len(child.output))
	if n > child.retSize {
		n = child.retSize
	}
	if n > 0 {
		copy(parent.memory.store[child.retOffset:child.retOffset+n], child.output[:n])
	}
}

// runFrame executes the given parameters as the root frame and derives the
// external result. A fault of the root frame consumes all remaining gas.
func (e *engine) runFrame(params vm.Parameters) vm.Result {
	if params.Depth > vm.MaxCallDepth {
		return vm.Result{Success: false, Error: vm.ErrCallDepthExceeded}
	}
	if len(params.Code) == 0 {
		return vm.Result{Success: true, GasLeft: params.Gas}
	}
	root := &frame{
		engine:    e,
		params:    params,
		context:   params.Context,
		code:      params.Code,
		jumpdests: e.analyses.getAnalysis(params.CodeHash, params.Code),
		gas:       params.Gas,
		stack:     NewStack(),
		memory:    NewMemory(),
	}
	e.run(root)
	defer ReturnStack(root.stack)
	switch root.status {
	case statusStopped, statusSelfDestructed:
		return vm.Result{Success: true, GasLeft: root.gas, GasRefund: root.refund}
	case statusReturned:
		return vm.Result{Success: true, Output: root.output, GasLeft: root.gas, GasRefund: root.refund}
	case statusReverted:
		return vm.Result{Success: false, Output: root.output, GasLeft: root.gas}
	case statusFailed:
		return vm.Result{Success: false, GasLeft: 0, Error: root.err}
	default:
		return vm.Result{Success: false, GasLeft: 0, Error: fmt.Errorf("unexpected frame status %d", root.status)}
	}
}

// Run implements the vm.Interpreter interface.
func (e *engine) Run(params vm.Parameters) (result vm.Result, err error) {
	// A world state backed by a fallible store signals unavailability by
	// panicking with a wrapped ErrStateUnavailable. This is fatal for the
	// whole execution, not a program fault.
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok && errors.Is(rerr, vm.ErrStateUnavailable) {
				result = vm.Result{}
				err = rerr
				return
			}
			panic(r)
		}
	}()
	return e.runFrame(params), nil
}
