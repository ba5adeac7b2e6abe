// Copyright (c) 2026 Basalt Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file.
//
// Change Date: 2030-1-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package ember drives top-level executions: it prepares the transaction
// context, dispatches to the interpreter, settles gas refunds, and derives
// the externally visible execution result.
package ember

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/basalt-vm/basalt/state"
	"github.com/basalt-vm/basalt/vm"
)

// Request describes one top-level execution: a message call to an existing
// account or the creation of a new contract.
type Request struct {
	Kind      vm.CallKind // Call, Create, or Create2
	Sender    vm.Address
	Recipient vm.Address // ignored for creations
	Gas       vm.Gas
	Value     vm.Value
	Input     vm.Data // call data, or the init code for creations
	Salt      vm.Hash // Create2 only
	Static    bool    // read-only executions reject all state mutations
}

// Result is the outcome of one top-level execution.
type Result struct {
	Success         bool
	Output          vm.Data
	GasUsed         vm.Gas
	GasRefund       vm.Gas // refund granted, already deducted from GasUsed
	CreatedAddress  *vm.Address
	Logs            []vm.Log
	Changes         state.Changes
	Error           error
}

const (
	maxCodeSize     = 24576
	maxInitCodeSize = 49152
	createDataGas   = vm.Gas(200)

	// maxRefundQuotient caps the granted refund at a fifth of the gas used.
	maxRefundQuotient = 5
)

const (
	errInsufficientBalance = vm.ConstError("insufficient balance for value transfer")
	errAddressCollision    = vm.ConstError("created address collision")
	errPrecompileFailure   = vm.ConstError("precompiled contract failure")
)

// Processor executes requests against a transaction context.
type Processor struct {
	interpreter vm.Interpreter
	precompiles vm.PrecompileRegistry
	hasher      vm.HashFunc
}

// NewProcessor creates a processor running code on the given interpreter.
// The precompiles are marked warm at the start of every execution, and the
// hasher derives the addresses of salted creations; both must match the
// configuration the interpreter runs with. A nil hasher selects keccak256.
func NewProcessor(interpreter vm.Interpreter, precompiles vm.PrecompileRegistry, hasher vm.HashFunc) *Processor {
	if hasher == nil {
		hasher = func(data []byte) vm.Hash {
			return vm.Hash(crypto.Keccak256Hash(data))
		}
	}
	return &Processor{
		interpreter: interpreter,
		precompiles: precompiles,
		hasher:      hasher,
	}
}

// Execute runs the given request on the provided state. The state is left
// uncommitted; callers inspect Result.Changes and decide whether to commit.
func (p *Processor) Execute(
	block vm.BlockParameters,
	tx vm.TransactionParameters,
	request Request,
	st *state.State,
) (Result, error) {
	snapshot := st.CreateSnapshot()

	st.AccessAccount(request.Sender)
	for addr := range p.precompiles {
		st.AccessAccount(addr)
	}

	if st.GetBalance(request.Sender).Cmp(request.Value) < 0 {
		return Result{Success: false, Error: errInsufficientBalance}, nil
	}

	var result Result
	switch request.Kind {
	case vm.Call:
		result = p.executeCall(block, tx, request, st)
	case vm.Create, vm.Create2:
		result = p.executeCreate(block, tx, request, st)
	default:
		return Result{}, fmt.Errorf("unsupported request kind %v", request.Kind)
	}

	if !result.Success {
		st.RestoreSnapshot(snapshot)
	}

	if result.Success {
		refund := result.GasRefund
		if limit := result.GasUsed / maxRefundQuotient; refund > limit {
			refund = limit
		}
		result.GasRefund = refund
		result.GasUsed -= refund
		result.Logs = st.GetLogs()
		result.Changes = st.GetChanges()
	}
	return result, nil
}

func (p *Processor) executeCall(
	block vm.BlockParameters,
	tx vm.TransactionParameters,
	request Request,
	st *state.State,
) Result {
	st.AccessAccount(request.Recipient)
	st.SetNonce(request.Sender, st.GetNonce(request.Sender)+1)
	transferValue(st, request.Sender, request.Recipient, request.Value)

	if handler, found := p.precompiles[request.Recipient]; found {
		return runPrecompiled(handler, request)
	}

	codeHash := st.GetCodeHash(request.Recipient)
	res, err := p.interpreter.Run(vm.Parameters{
		BlockParameters:       block,
		TransactionParameters: tx,
		Context:               st,
		Kind:                  vm.Call,
		Static:                request.Static,
		Gas:                   request.Gas,
		Recipient:             request.Recipient,
		Sender:                request.Sender,
		Input:                 request.Input,
		Value:                 request.Value,
		CodeHash:              &codeHash,
		Code:                  st.GetCode(request.Recipient),
	})
	if err != nil {
		return Result{Success: false, Error: err, GasUsed: request.Gas}
	}
	output := res.Output
	if !res.Success && !res.Reverted() {
		output = nil
	}
	return Result{
		Success:   res.Success,
		Output:    output,
		GasUsed:   request.Gas - res.GasLeft,
		GasRefund: res.GasRefund,
		Error:     res.Error,
	}
}

func (p *Processor) executeCreate(
	block vm.BlockParameters,
	tx vm.TransactionParameters,
	request Request,
	st *state.State,
) Result {
	if len(request.Input) > maxInitCodeSize {
		return Result{Success: false, GasUsed: request.Gas, Error: vm.ErrInvalidMemoryAccess}
	}

	nonce := st.GetNonce(request.Sender)
	st.SetNonce(request.Sender, nonce+1)

	var created vm.Address
	if request.Kind == vm.Create {
		created = vm.Address(crypto.CreateAddress(common.Address(request.Sender), nonce))
	} else {
		created = create2Address(p.hasher, request.Sender, request.Salt, request.Input)
	}
	st.AccessAccount(created)

	if st.GetNonce(created) != 0 || st.GetCodeSize(created) != 0 {
		return Result{Success: false, GasUsed: request.Gas, Error: errAddressCollision}
	}

	st.SetNonce(created, 1)
	transferValue(st, request.Sender, created, request.Value)

	res, err := p.interpreter.Run(vm.Parameters{
		BlockParameters:       block,
		TransactionParameters: tx,
		Context:               st,
		Kind:                  request.Kind,
		Gas:                   request.Gas,
		Recipient:             created,
		Sender:                request.Sender,
		Value:                 request.Value,
		Code:                  vm.Code(request.Input),
	})
	if err != nil {
		return Result{Success: false, Error: err, GasUsed: request.Gas}
	}
	if !res.Success {
		output := vm.Data(nil)
		if res.Reverted() {
			output = res.Output
		}
		return Result{
			Success: false,
			Output:  output,
			GasUsed: request.Gas - res.GasLeft,
			Error:   res.Error,
		}
	}

	code := res.Output
	depositCost := vm.Gas(len(code)) * createDataGas
	if len(code) > maxCodeSize || res.GasLeft < depositCost {
		return Result{Success: false, GasUsed: request.Gas, Error: vm.ErrOutOfGas}
	}
	res.GasLeft -= depositCost
	st.SetCode(created, vm.Code(code))

	return Result{
		Success:        true,
		GasUsed:        request.Gas - res.GasLeft,
		GasRefund:      res.GasRefund,
		CreatedAddress: &created,
	}
}

func runPrecompiled(handler vm.PrecompiledContract, request Request) Result {
	required := vm.Gas(handler.RequiredGas(request.Input))
	if required < 0 || required > request.Gas {
		return Result{Success: false, GasUsed: request.Gas, Error: vm.ErrOutOfGas}
	}
	output, err := handler.Run(request.Input)
	if err != nil {
		return Result{Success: false, GasUsed: request.Gas, Error: errPrecompileFailure}
	}
	return Result{Success: true, Output: output, GasUsed: required}
}

// create2Address derives the deterministic deployment address of a salted
// creation using the processor's hash function:
// hash(0xff ++ sender ++ salt ++ hash(initCode))[12:].
func create2Address(hash vm.HashFunc, sender vm.Address, salt vm.Hash, initCode []byte) vm.Address {
	initHash := hash(initCode)
	data := make([]byte, 0, 1+20+32+32)
	data = append(data, 0xff)
	data = append(data, sender[:]...)
	data = append(data, salt[:]...)
	data = append(data, initHash[:]...)
	sum := hash(data)
	var res vm.Address
	copy(res[:], sum[12:])
	return res
}

func transferValue(st *state.State, from, to vm.Address, value vm.Value) {
	if from == to || value == (vm.Value{}) {
		return
	}
	st.SetBalance(from, vm.Sub(st.GetBalance(from), value))
	st.SetBalance(to, vm.Add(st.GetBalance(to), value))
}
