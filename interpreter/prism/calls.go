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
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/basalt-vm/basalt/vm"
)

func opCall(c *frame) error         { return genericCall(c, vm.Call) }
func opCallCode(c *frame) error     { return genericCall(c, vm.CallCode) }
func opDelegateCall(c *frame) error { return genericCall(c, vm.DelegateCall) }
func opStaticCall(c *frame) error   { return genericCall(c, vm.StaticCall) }
func opCreate(c *frame) error       { return genericCreate(c, vm.Create) }
func opCreate2(c *frame) error      { return genericCreate(c, vm.Create2) }

// genericCall implements the four call variants. It validates the request,
// charges the up-front costs, and either settles the call in place (depth
// and balance failures push 0 without a fault, precompiles and empty
// accounts complete immediately) or requests a child frame from the engine.
func genericCall(c *frame, kind vm.CallKind) error {
	requested := c.stack.pop()
	target := vm.Address(c.stack.pop().Bytes20())
	value := uint256.NewInt(0)
	if kind == vm.Call || kind == vm.CallCode {
		value = c.stack.pop()
	}
	inOffset := c.stack.pop()
	inSize := c.stack.pop()
	outOffset := c.stack.pop()
	outSize := c.stack.pop()

	if kind == vm.Call && c.params.Static && !value.IsZero() {
		return vm.ErrWriteProtection
	}

	// Expand (and charge) the argument and result regions before any call
	// costs are paid.
	input, err := c.memory.getSlice(inOffset, inSize, c)
	if err != nil {
		return err
	}
	if _, err := c.memory.getSlice(outOffset, outSize, c); err != nil {
		return err
	}
	retOffset, retSize := uint64(0), uint64(0)
	if !outSize.IsZero() {
		retOffset, retSize = outOffset.Uint64(), outSize.Uint64()
	}

	transfersValue := !value.IsZero()
	createsAccount := kind == vm.Call && transfersValue && !c.context.AccountExists(target)
	_, forwarded, err := c.engine.schedule.callCostAndGas(
		c, target, requested, transfersValue, createsAccount)
	if err != nil {
		return err
	}

	// A call at the depth limit pushes 0; the forwarded gas is returned to
	// the caller and no fault is raised.
	if c.params.Depth >= vm.MaxCallDepth {
		c.gas += forwarded
		c.returnData = nil
		c.stack.pushUndefined().Clear()
		return nil
	}

	// An unpayable value transfer likewise pushes 0 without a fault.
	if transfersValue {
		balance := c.context.GetBalance(c.params.Recipient)
		if balance.ToUint256().Lt(value) {
			c.gas += forwarded
			c.returnData = nil
			c.stack.pushUndefined().Clear()
			return nil
		}
	}

	if handler, found := c.engine.precompiles[target]; found {
		runPrecompiled(c, handler, kind, target, value, input, forwarded, retOffset, retSize)
		return nil
	}

	codeAddr := target
	code := c.context.GetCode(codeAddr)
	if len(code) == 0 {
		// Nothing to execute; the transfer still takes place.
		if kind == vm.Call && transfersValue {
			transferValue(c.context, c.params.Recipient, target, vm.ValueFromUint256(value))
		}
		c.gas += forwarded
		c.returnData = nil
		c.stack.pushUndefined().SetOne()
		return nil
	}

	snapshot := c.context.CreateSnapshot()
	if kind == vm.Call && transfersValue {
		transferValue(c.context, c.params.Recipient, target, vm.ValueFromUint256(value))
	}

	codeHash := c.context.GetCodeHash(codeAddr)
	child := c.params
	child.Kind = kind
	child.Depth++
	child.Gas = forwarded
	child.Static = c.params.Static || kind == vm.StaticCall
	child.Code = code
	child.CodeHash = &codeHash
	child.Input = input
	switch kind {
	case vm.Call:
		child.Sender = c.params.Recipient
		child.Recipient = target
		child.Value = vm.ValueFromUint256(value)
	case vm.CallCode:
		child.Sender = c.params.Recipient
		child.Recipient = c.params.Recipient
		child.Value = vm.ValueFromUint256(value)
	case vm.DelegateCall:
		// Sender and value are inherited from the calling frame.
	case vm.StaticCall:
		child.Sender = c.params.Recipient
		child.Recipient = target
		child.Value = vm.Value{}
	}
	c.spawn = c.engine.newFrame(child, snapshot, retOffset, retSize, false)
	return nil
}

// runPrecompiled settles a call to a built-in contract in place. The handler
// charges its own gas from the forwarded budget; an error or an unpayable
// charge consumes the whole budget and pushes 0.
func runPrecompiled(
	c *frame,
	handler vm.PrecompiledContract,
	kind vm.CallKind,
	target vm.Address,
	value *uint256.Int,
	input []byte,
	forwarded vm.Gas,
	retOffset, retSize uint64,
) {
	snapshot := c.context.CreateSnapshot()
	if kind == vm.Call && !value.IsZero() {
		transferValue(c.context, c.params.Recipient, target, vm.ValueFromUint256(value))
	}
	required := vm.Gas(handler.RequiredGas(input))
	if required < 0 || required > forwarded {
		c.context.RestoreSnapshot(snapshot)
		c.returnData = nil
		c.stack.pushUndefined().Clear()
		return
	}
	output, err := handler.Run(input)
	if err != nil {
		c.context.RestoreSnapshot(snapshot)
		c.returnData = nil
		c.stack.pushUndefined().Clear()
		return
	}
	c.gas += forwarded - required
	c.returnData = output
	n := uint64(len(output))
	if n > retSize {
		n = retSize
	}
	if n > 0 {
		copy(c.memory.store[retOffset:retOffset+n], output[:n])
	}
	c.stack.pushUndefined().SetOne()
}

// genericCreate implements CREATE and CREATE2. The created address is
// derived from the creator's nonce or, for CREATE2, from the salt and the
// hash of the init code; the init code then runs in a child frame whose
// output becomes the deployed code.
func genericCreate(c *frame, kind vm.CallKind) error {
	if err := checkStatic(c); err != nil {
		return err
	}
	if err := c.useGas(c.engine.schedule.CreateGas); err != nil {
		return err
	}
	value := c.stack.pop()
	offset := c.stack.pop()
	size := c.stack.pop()
	salt := uint256.NewInt(0)
	if kind == vm.Create2 {
		salt = c.stack.pop()
	}

	if !size.IsUint64() || size.Uint64() > c.engine.schedule.MaxInitCodeSize {
		return vm.ErrInvalidMemoryAccess
	}
	words := vm.Gas(vm.SizeInWords(size.Uint64()))
	cost := c.engine.schedule.InitCodeWordGas * words
	if kind == vm.Create2 {
		cost += c.engine.schedule.Keccak256WordGas * words
	}
	if err := c.useGas(cost); err != nil {
		return err
	}
	initCode, err := c.memory.getSlice(offset, size, c)
	if err != nil {
		return err
	}

	forwarded := c.gas - c.gas/64
	if err := c.useGas(forwarded); err != nil {
		return err
	}

	if c.params.Depth >= vm.MaxCallDepth {
		c.gas += forwarded
		c.returnData = nil
		c.stack.pushUndefined().Clear()
		return nil
	}

	creator := c.params.Recipient
	if c.context.GetBalance(creator).ToUint256().Lt(value) {
		c.gas += forwarded
		c.returnData = nil
		c.stack.pushUndefined().Clear()
		return nil
	}

	nonce := c.context.GetNonce(creator)
	if nonce+1 < nonce {
		c.gas += forwarded
		c.returnData = nil
		c.stack.pushUndefined().Clear()
		return nil
	}
	c.context.SetNonce(creator, nonce+1)

	var created vm.Address
	if kind == vm.Create {
		created = vm.Address(crypto.CreateAddress(common.Address(creator), nonce))
	} else {
		created = createAddress2(c.engine.hashOf, creator, salt.Bytes32(), initCode)
	}
	c.context.AccessAccount(created)

	// An occupied address is an unrecoverable collision: the forwarded gas
	// is consumed and 0 is pushed.
	if c.context.GetNonce(created) != 0 || c.context.GetCodeSize(created) != 0 {
		c.returnData = nil
		c.stack.pushUndefined().Clear()
		return nil
	}

	snapshot := c.context.CreateSnapshot()
	c.context.SetNonce(created, 1)
	transferValue(c.context, creator, created, vm.ValueFromUint256(value))

	child := c.params
	child.Kind = kind
	child.Depth++
	child.Gas = forwarded
	child.Sender = creator
	child.Recipient = created
	child.Value = vm.ValueFromUint256(value)
	child.Code = initCode
	child.CodeHash = nil
	child.Input = nil
	c.spawn = c.engine.newFrame(child, snapshot, 0, 0, true)
	return nil
}

// createAddress2 derives the deterministic deployment address of CREATE2
// using the engine's hash function:
// hash(0xff ++ creator ++ salt ++ hash(initCode))[12:].
func createAddress2(hash vm.HashFunc, creator vm.Address, salt [32]byte, initCode []byte) vm.Address {
	initHash := hash(initCode)
	data := make([]byte, 0, 1+20+32+32)
	data = append(data, 0xff)
	data = append(data, creator[:]...)
	data = append(data, salt[:]...)
	data = append(data, initHash[:]...)
	sum := hash(data)
	var res vm.Address
	copy(res[:], sum[12:])
	return res
}

// transferValue moves the given amount between the two accounts. Callers
// must have verified that the sender's balance covers the amount.
func transferValue(context vm.TransactionContext, from, to vm.Address, value vm.Value) {
	if from == to || value == (vm.Value{}) {
		return
	}
	context.SetBalance(from, vm.Sub(context.GetBalance(from), value))
	context.SetBalance(to, vm.Add(context.GetBalance(to), value))
}

// ----------------------------- halting ------------------------------

func opReturn(c *frame) error {
	offset := c.stack.pop()
	size := c.stack.pop()
	data, err := c.memory.getSlice(offset, size, c)
	if err != nil {
		return err
	}
	c.output = append([]byte{}, data...)
	c.status = statusReturned
	return nil
}

// opRevert halts the frame, discards its state changes, and hands the
// designated output to the caller. Unspent gas is preserved.
func opRevert(c *frame) error {
	offset := c.stack.pop()
	size := c.stack.pop()
	data, err := c.memory.getSlice(offset, size, c)
	if err != nil {
		return err
	}
	c.output = append([]byte{}, data...)
	c.status = statusReverted
	return nil
}

// opSelfDestruct records the removal intent and transfers the account's
// balance to the beneficiary. The removal itself is deferred to the state
// commit at the end of the top-level execution.
func opSelfDestruct(c *frame) error {
	if err := checkStatic(c); err != nil {
		return err
	}
	beneficiary := vm.Address(c.stack.pop().Bytes20())
	cost := c.engine.schedule.SelfdestructGas
	if c.context.AccessAccount(beneficiary) == vm.ColdAccess {
		cost += c.engine.schedule.ColdAccountAccessCost
	}
	balance := c.context.GetBalance(c.params.Recipient)
	if balance != (vm.Value{}) && !c.context.AccountExists(beneficiary) {
		cost += c.engine.schedule.CallNewAccountGas
	}
	if err := c.useGas(cost); err != nil {
		return err
	}
	if c.context.SelfDestruct(c.params.Recipient, beneficiary) {
		c.refund += c.engine.schedule.SelfdestructRefund
	}
	c.status = statusSelfDestructed
	return nil
}
