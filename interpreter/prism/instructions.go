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
	"github.com/holiman/uint256"

	"github.com/basalt-vm/basalt/vm"
)

// operations is the fixed dispatch table of the engine, indexed by opcode
// byte. Entries with a nil handler are invalid opcodes.
var operations = newOperationTable()

func newOperationTable() [256]operation {
	var table [256]operation
	register := func(op OpCode, staticGas vm.Gas, pops, pushes int, fn opFn) {
		table[op] = newOp(fn, staticGas, pops, pushes)
	}

	register(STOP, 0, 0, 0, opStop)
	register(ADD, 3, 2, 1, opAdd)
	register(MUL, 5, 2, 1, opMul)
	register(SUB, 3, 2, 1, opSub)
	register(DIV, 5, 2, 1, opDiv)
	register(SDIV, 5, 2, 1, opSDiv)
	register(MOD, 5, 2, 1, opMod)
	register(SMOD, 5, 2, 1, opSMod)
	register(ADDMOD, 8, 3, 1, opAddMod)
	register(MULMOD, 8, 3, 1, opMulMod)
	register(EXP, 10, 2, 1, opExp)
	register(SIGNEXTEND, 5, 2, 1, opSignExtend)

	register(LT, 3, 2, 1, opLt)
	register(GT, 3, 2, 1, opGt)
	register(SLT, 3, 2, 1, opSlt)
	register(SGT, 3, 2, 1, opSgt)
	register(EQ, 3, 2, 1, opEq)
	register(ISZERO, 3, 1, 1, opIsZero)
	register(AND, 3, 2, 1, opAnd)
	register(OR, 3, 2, 1, opOr)
	register(XOR, 3, 2, 1, opXor)
	register(NOT, 3, 1, 1, opNot)
	register(BYTE, 3, 2, 1, opByte)
	register(SHL, 3, 2, 1, opShl)
	register(SHR, 3, 2, 1, opShr)
	register(SAR, 3, 2, 1, opSar)

	register(KECCAK256, 30, 2, 1, opKeccak256)

	register(ADDRESS, 2, 0, 1, opAddress)
	register(BALANCE, 0, 1, 1, opBalance)
	register(ORIGIN, 2, 0, 1, opOrigin)
	register(CALLER, 2, 0, 1, opCaller)
	register(CALLVALUE, 2, 0, 1, opCallValue)
	register(CALLDATALOAD, 3, 1, 1, opCallDataLoad)
	register(CALLDATASIZE, 2, 0, 1, opCallDataSize)
	register(CALLDATACOPY, 3, 3, 0, opCallDataCopy)
	register(CODESIZE, 2, 0, 1, opCodeSize)
	register(CODECOPY, 3, 3, 0, opCodeCopy)
	register(GASPRICE, 2, 0, 1, opGasPrice)
	register(EXTCODESIZE, 0, 1, 1, opExtCodeSize)
	register(EXTCODECOPY, 0, 4, 0, opExtCodeCopy)
	register(RETURNDATASIZE, 2, 0, 1, opReturnDataSize)
	register(RETURNDATACOPY, 3, 3, 0, opReturnDataCopy)
	register(EXTCODEHASH, 0, 1, 1, opExtCodeHash)

	register(BLOCKHASH, 20, 1, 1, opBlockHash)
	register(COINBASE, 2, 0, 1, opCoinbase)
	register(TIMESTAMP, 2, 0, 1, opTimestamp)
	register(NUMBER, 2, 0, 1, opNumber)
	register(PREVRANDAO, 2, 0, 1, opPrevRandao)
	register(GASLIMIT, 2, 0, 1, opGasLimit)
	register(CHAINID, 2, 0, 1, opChainID)
	register(SELFBALANCE, 5, 0, 1, opSelfBalance)
	register(BASEFEE, 2, 0, 1, opBaseFee)

	register(POP, 2, 1, 0, opPop)
	register(MLOAD, 3, 1, 1, opMLoad)
	register(MSTORE, 3, 2, 0, opMStore)
	register(MSTORE8, 3, 2, 0, opMStore8)
	register(SLOAD, 0, 1, 1, opSLoad)
	register(SSTORE, 0, 2, 0, opSStore)
	register(JUMP, 8, 1, 0, opJump)
	register(JUMPI, 10, 2, 0, opJumpI)
	register(PC, 2, 0, 1, opPc)
	register(MSIZE, 2, 0, 1, opMSize)
	register(GAS, 2, 0, 1, opGas)
	register(JUMPDEST, 1, 0, 0, opJumpDest)
	register(TLOAD, 100, 1, 1, opTLoad)
	register(TSTORE, 100, 2, 0, opTStore)
	register(MCOPY, 3, 3, 0, opMCopy)
	register(PUSH0, 2, 0, 1, opPush0)

	for i := 1; i <= 32; i++ {
		register(PUSH1+OpCode(i-1), 3, 0, 1, makePush(i))
	}
	for i := 1; i <= 16; i++ {
		register(DUP1+OpCode(i-1), 3, i, i+1, makeDup(i))
		register(SWAP1+OpCode(i-1), 3, i+1, i+1, makeSwap(i))
	}
	// LOG, CREATE, and SELFDESTRUCT draw their base costs from the engine's
	// gas schedule inside the handlers so that configured schedules apply.
	for i := 0; i <= 4; i++ {
		register(LOG0+OpCode(i), 0, i+2, 0, makeLog(i))
	}

	register(CREATE, 0, 3, 1, opCreate)
	register(CALL, 0, 7, 1, opCall)
	register(CALLCODE, 0, 7, 1, opCallCode)
	register(RETURN, 0, 2, 0, opReturn)
	register(DELEGATECALL, 0, 6, 1, opDelegateCall)
	register(CREATE2, 0, 4, 1, opCreate2)
	register(STATICCALL, 0, 6, 1, opStaticCall)
	register(REVERT, 0, 2, 0, opRevert)
	register(SELFDESTRUCT, 0, 1, 0, opSelfDestruct)

	return table
}

// checkStatic guards state-mutating instructions inside read-only frames.
func checkStatic(c *frame) error {
	if c.params.Static {
		return vm.ErrWriteProtection
	}
	return nil
}

// getData returns a fresh slice of the given length taken from data at the
// given offset, zero padded where the source is out of range.
func getData(data []byte, offset *uint256.Int, size uint64) []byte {
	res := make([]byte, size)
	if offset.IsUint64() {
		start := offset.Uint64()
		if start < uint64(len(data)) {
			copy(res, data[start:])
		}
	}
	return res
}

// ---------------------------- arithmetic ----------------------------

func opStop(c *frame) error {
	c.status = statusStopped
	return nil
}

func opAdd(c *frame) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Add(a, b)
	return nil
}

func opMul(c *frame) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Mul(a, b)
	return nil
}

func opSub(c *frame) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Sub(a, b)
	return nil
}

// Div returns 0 for a zero divisor; the operation never faults.
func opDiv(c *frame) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Div(a, b)
	return nil
}

func opSDiv(c *frame) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.SDiv(a, b)
	return nil
}

func opMod(c *frame) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Mod(a, b)
	return nil
}

func opSMod(c *frame) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.SMod(a, b)
	return nil
}

func opAddMod(c *frame) error {
	a := c.stack.pop()
	b := c.stack.pop()
	m := c.stack.peek()
	m.AddMod(a, b, m)
	return nil
}

func opMulMod(c *frame) error {
	a := c.stack.pop()
	b := c.stack.pop()
	m := c.stack.peek()
	m.MulMod(a, b, m)
	return nil
}

func opExp(c *frame) error {
	base := c.stack.pop()
	exponent := c.stack.peek()
	if err := c.useGas(c.engine.schedule.ExpByteGas * vm.Gas(exponent.ByteLen())); err != nil {
		return err
	}
	exponent.Exp(base, exponent)
	return nil
}

func opSignExtend(c *frame) error {
	back := c.stack.pop()
	num := c.stack.peek()
	num.ExtendSign(num, back)
	return nil
}

// ---------------------- comparison and bitwise ----------------------

func opLt(c *frame) error {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Lt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return nil
}

func opGt(c *frame) error {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Gt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return nil
}

func opSlt(c *frame) error {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Slt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return nil
}

func opSgt(c *frame) error {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Sgt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return nil
}

func opEq(c *frame) error {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Eq(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return nil
}

func opIsZero(c *frame) error {
	top := c.stack.peek()
	if top.IsZero() {
		top.SetOne()
	} else {
		top.Clear()
	}
	return nil
}

func opAnd(c *frame) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.And(a, b)
	return nil
}

func opOr(c *frame) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Or(a, b)
	return nil
}

func opXor(c *frame) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Xor(a, b)
	return nil
}

func opNot(c *frame) error {
	top := c.stack.peek()
	top.Not(top)
	return nil
}

func opByte(c *frame) error {
	i := c.stack.pop()
	x := c.stack.peek()
	x.Byte(i)
	return nil
}

func opShl(c *frame) error {
	shift := c.stack.pop()
	value := c.stack.peek()
	if shift.LtUint64(256) {
		value.Lsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return nil
}

func opShr(c *frame) error {
	shift := c.stack.pop()
	value := c.stack.peek()
	if shift.LtUint64(256) {
		value.Rsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return nil
}

func opSar(c *frame) error {
	shift := c.stack.pop()
	value := c.stack.peek()
	if shift.GtUint64(256) {
		if value.Sign() >= 0 {
			value.Clear()
		} else {
			value.SetAllOne()
		}
		return nil
	}
	value.SRsh(value, uint(shift.Uint64()))
	return nil
}

// ----------------------------- hashing ------------------------------

func opKeccak256(c *frame) error {
	offset := c.stack.pop()
	size := c.stack.peek()
	if err := c.useGas(c.engine.schedule.Keccak256WordGas * wordCount(size)); err != nil {
		return err
	}
	data, err := c.memory.getSlice(offset, size, c)
	if err != nil {
		return err
	}
	hash := c.engine.hashOf(data)
	size.SetBytes32(hash[:])
	return nil
}

// wordCount returns the number of 32-byte words covered by a size already
// validated to be payable, saturating on absurd inputs.
func wordCount(size *uint256.Int) vm.Gas {
	if !size.IsUint64() {
		return vm.Gas(1) << 62
	}
	return vm.Gas(vm.SizeInWords(size.Uint64()))
}

// --------------------------- environment ----------------------------

func opAddress(c *frame) error {
	c.stack.pushUndefined().SetBytes20(c.params.Recipient[:])
	return nil
}

func opBalance(c *frame) error {
	top := c.stack.peek()
	addr := vm.Address(top.Bytes20())
	if err := c.useGas(c.engine.schedule.accountAccessCost(c, addr)); err != nil {
		return err
	}
	balance := c.context.GetBalance(addr)
	top.SetBytes32(balance[:])
	return nil
}

func opOrigin(c *frame) error {
	c.stack.pushUndefined().SetBytes20(c.params.Origin[:])
	return nil
}

func opCaller(c *frame) error {
	c.stack.pushUndefined().SetBytes20(c.params.Sender[:])
	return nil
}

func opCallValue(c *frame) error {
	c.stack.pushUndefined().SetBytes32(c.params.Value[:])
	return nil
}

func opCallDataLoad(c *frame) error {
	top := c.stack.peek()
	top.SetBytes32(getData(c.params.Input, top, 32))
	return nil
}

func opCallDataSize(c *frame) error {
	c.stack.pushUndefined().SetUint64(uint64(len(c.params.Input)))
	return nil
}

func opCallDataCopy(c *frame) error {
	return copyToMemory(c, c.params.Input)
}

func opCodeSize(c *frame) error {
	c.stack.pushUndefined().SetUint64(uint64(len(c.code)))
	return nil
}

func opCodeCopy(c *frame) error {
	return copyToMemory(c, c.code)
}

// copyToMemory implements the shared semantics of the *COPY instructions:
// per-word pricing, memory expansion, and zero padding past the end of the
// source.
func copyToMemory(c *frame, source []byte) error {
	memOffset := c.stack.pop()
	dataOffset := c.stack.pop()
	size := c.stack.pop()
	if size.IsZero() {
		return nil
	}
	if !size.IsUint64() {
		return vm.ErrInvalidMemoryAccess
	}
	if err := c.useGas(c.engine.schedule.copyCost(size.Uint64())); err != nil {
		return err
	}
	target, err := c.memory.getSlice(memOffset, size, c)
	if err != nil {
		return err
	}
	copy(target, getData(source, dataOffset, size.Uint64()))
	return nil
}

func opGasPrice(c *frame) error {
	c.stack.pushUndefined().SetBytes32(c.params.GasPrice[:])
	return nil
}

func opExtCodeSize(c *frame) error {
	top := c.stack.peek()
	addr := vm.Address(top.Bytes20())
	if err := c.useGas(c.engine.schedule.accountAccessCost(c, addr)); err != nil {
		return err
	}
	top.SetUint64(uint64(c.context.GetCodeSize(addr)))
	return nil
}

func opExtCodeCopy(c *frame) error {
	addr := vm.Address(c.stack.pop().Bytes20())
	if err := c.useGas(c.engine.schedule.accountAccessCost(c, addr)); err != nil {
		return err
	}
	return copyToMemory(c, c.context.GetCode(addr))
}

func opReturnDataSize(c *frame) error {
	c.stack.pushUndefined().SetUint64(uint64(len(c.returnData)))
	return nil
}

// opReturnDataCopy faults on any access beyond the end of the return data
// buffer instead of padding with zeros.
func opReturnDataCopy(c *frame) error {
	memOffset := c.stack.pop()
	dataOffset := c.stack.pop()
	size := c.stack.pop()
	if !dataOffset.IsUint64() || !size.IsUint64() {
		return vm.ErrInvalidMemoryAccess
	}
	end := dataOffset.Uint64() + size.Uint64()
	if end < dataOffset.Uint64() || end > uint64(len(c.returnData)) {
		return vm.ErrInvalidMemoryAccess
	}
	if size.IsZero() {
		return nil
	}
	if err := c.useGas(c.engine.schedule.copyCost(size.Uint64())); err != nil {
		return err
	}
	target, err := c.memory.getSlice(memOffset, size, c)
	if err != nil {
		return err
	}
	copy(target, c.returnData[dataOffset.Uint64():end])
	return nil
}

func opExtCodeHash(c *frame) error {
	top := c.stack.peek()
	addr := vm.Address(top.Bytes20())
	if err := c.useGas(c.engine.schedule.accountAccessCost(c, addr)); err != nil {
		return err
	}
	if !c.context.AccountExists(addr) {
		top.Clear()
		return nil
	}
	hash := c.context.GetCodeHash(addr)
	top.SetBytes32(hash[:])
	return nil
}

// -------------------------- block context ---------------------------

// opBlockHash resolves the hashes of the most recent 256 blocks; anything
// older or not yet produced yields zero.
func opBlockHash(c *frame) error {
	top := c.stack.peek()
	current := c.params.BlockNumber
	if !top.IsUint64() {
		top.Clear()
		return nil
	}
	requested := int64(top.Uint64())
	if requested < 0 || requested >= current || requested < current-256 {
		top.Clear()
		return nil
	}
	hash := c.context.GetBlockHash(requested)
	top.SetBytes32(hash[:])
	return nil
}

func opCoinbase(c *frame) error {
	c.stack.pushUndefined().SetBytes20(c.params.Coinbase[:])
	return nil
}

func opTimestamp(c *frame) error {
	c.stack.pushUndefined().SetUint64(uint64(c.params.Timestamp))
	return nil
}

func opNumber(c *frame) error {
	c.stack.pushUndefined().SetUint64(uint64(c.params.BlockNumber))
	return nil
}

func opPrevRandao(c *frame) error {
	c.stack.pushUndefined().SetBytes32(c.params.PrevRandao[:])
	return nil
}

func opGasLimit(c *frame) error {
	c.stack.pushUndefined().SetUint64(uint64(c.params.BlockParameters.GasLimit))
	return nil
}

func opChainID(c *frame) error {
	c.stack.pushUndefined().SetBytes32(c.params.ChainID[:])
	return nil
}

func opSelfBalance(c *frame) error {
	balance := c.context.GetBalance(c.params.Recipient)
	c.stack.pushUndefined().SetBytes32(balance[:])
	return nil
}

func opBaseFee(c *frame) error {
	c.stack.pushUndefined().SetBytes32(c.params.BaseFee[:])
	return nil
}

// ------------------- stack, memory and control flow -----------------

func opPop(c *frame) error {
	c.stack.pop()
	return nil
}

func opMLoad(c *frame) error {
	top := c.stack.peek()
	return c.memory.readWord(top, top, c)
}

func opMStore(c *frame) error {
	offset := c.stack.pop()
	value := c.stack.pop()
	b := value.Bytes32()
	return c.memory.set(offset, b[:], c)
}

func opMStore8(c *frame) error {
	offset := c.stack.pop()
	value := c.stack.pop()
	return c.memory.setByte(offset, byte(value.Uint64()), c)
}

func opSLoad(c *frame) error {
	top := c.stack.peek()
	key := vm.Key(top.Bytes32())
	cost := c.engine.schedule.WarmStorageReadCost
	if c.context.AccessStorage(c.params.Recipient, key) == vm.ColdAccess {
		cost = c.engine.schedule.ColdSloadCost
	}
	if err := c.useGas(cost); err != nil {
		return err
	}
	word := c.context.GetStorage(c.params.Recipient, key)
	top.SetBytes32(word[:])
	return nil
}

func opSStore(c *frame) error {
	if err := checkStatic(c); err != nil {
		return err
	}
	// The sentry rule makes reentrant writes through the gas stipend of a
	// value-bearing call impossible.
	if c.gas <= c.engine.schedule.SstoreSentryGas {
		return vm.ErrOutOfGas
	}
	key := vm.Key(c.stack.pop().Bytes32())
	value := vm.Word(c.stack.pop().Bytes32())
	if c.context.AccessStorage(c.params.Recipient, key) == vm.ColdAccess {
		if err := c.useGas(c.engine.schedule.ColdSloadCost); err != nil {
			return err
		}
	}
	status := c.context.SetStorage(c.params.Recipient, key, value)
	cost, refund := c.engine.schedule.sstoreCosts(status)
	if err := c.useGas(cost); err != nil {
		return err
	}
	c.refund += refund
	return nil
}

func opJump(c *frame) error {
	dest := c.stack.pop()
	return jumpTo(c, dest)
}

func opJumpI(c *frame) error {
	dest := c.stack.pop()
	condition := c.stack.pop()
	if condition.IsZero() {
		return nil
	}
	return jumpTo(c, dest)
}

// jumpTo redirects execution to the given destination, which must be a
// JUMPDEST outside of any push immediate data.
func jumpTo(c *frame, dest *uint256.Int) error {
	if !dest.IsUint64() || !c.jumpdests.isValidJumpdest(dest.Uint64()) {
		return vm.ErrInvalidJump
	}
	// The run loop advances the counter after every instruction.
	c.pc = int(dest.Uint64()) - 1
	return nil
}

func opPc(c *frame) error {
	c.stack.pushUndefined().SetUint64(uint64(c.pc))
	return nil
}

func opMSize(c *frame) error {
	c.stack.pushUndefined().SetUint64(c.memory.length())
	return nil
}

func opGas(c *frame) error {
	c.stack.pushUndefined().SetUint64(uint64(c.gas))
	return nil
}

func opJumpDest(c *frame) error {
	return nil
}

func opTLoad(c *frame) error {
	top := c.stack.peek()
	key := vm.Key(top.Bytes32())
	word := c.context.GetTransientStorage(c.params.Recipient, key)
	top.SetBytes32(word[:])
	return nil
}

func opTStore(c *frame) error {
	if err := checkStatic(c); err != nil {
		return err
	}
	key := vm.Key(c.stack.pop().Bytes32())
	value := vm.Word(c.stack.pop().Bytes32())
	c.context.SetTransientStorage(c.params.Recipient, key, value)
	return nil
}

func opMCopy(c *frame) error {
	destOffset := c.stack.pop()
	srcOffset := c.stack.pop()
	size := c.stack.pop()
	if size.IsZero() {
		return nil
	}
	if !size.IsUint64() {
		return vm.ErrInvalidMemoryAccess
	}
	if err := c.useGas(c.engine.schedule.copyCost(size.Uint64())); err != nil {
		return err
	}
	src, err := c.memory.getSlice(srcOffset, size, c)
	if err != nil {
		return err
	}
	dest, err := c.memory.getSlice(destOffset, size, c)
	if err != nil {
		return err
	}
	// The source slice may have been invalidated by the second expansion.
	src, err = c.memory.getSlice(srcOffset, size, c)
	if err != nil {
		return err
	}
	copy(dest, src)
	return nil
}

func opPush0(c *frame) error {
	c.stack.pushUndefined().Clear()
	return nil
}

// makePush builds the handler for PUSHn. The immediate data is read from the
// raw code stream and zero padded where the code ends early.
func makePush(n int) opFn {
	return func(c *frame) error {
		top := c.stack.pushUndefined()
		start := c.pc + 1
		if end := start + n; end <= len(c.code) {
			top.SetBytes(c.code[start:end])
		} else if start < len(c.code) {
			var data [32]byte
			copy(data[:n], c.code[start:])
			top.SetBytes(data[:n])
		} else {
			top.Clear()
		}
		c.pc += n
		return nil
	}
}

func makeDup(n int) opFn {
	return func(c *frame) error {
		c.stack.dup(n)
		return nil
	}
}

func makeSwap(n int) opFn {
	return func(c *frame) error {
		c.stack.swap(n)
		return nil
	}
}

// ----------------------------- logging ------------------------------

// makeLog builds the handler for LOGn. Logs are appended to the transaction
// context in execution order and are discarded with the enclosing frame's
// state changes on revert.
func makeLog(topicCount int) opFn {
	return func(c *frame) error {
		if err := checkStatic(c); err != nil {
			return err
		}
		offset := c.stack.pop()
		size := c.stack.pop()
		topics := make([]vm.Hash, topicCount)
		for i := 0; i < topicCount; i++ {
			topics[i] = vm.Hash(c.stack.pop().Bytes32())
		}
		if !size.IsUint64() {
			return vm.ErrInvalidMemoryAccess
		}
		cost := c.engine.schedule.LogGas +
			c.engine.schedule.LogTopicGas*vm.Gas(topicCount) +
			c.engine.schedule.LogDataGas*vm.Gas(size.Uint64())
		if err := c.useGas(cost); err != nil {
			return err
		}
		data, err := c.memory.getSlice(offset, size, c)
		if err != nil {
			return err
		}
		c.context.EmitLog(vm.Log{
			Address: c.params.Recipient,
			Topics:  topics,
			Data:    append([]byte{}, data...),
		})
		return nil
	}
}
