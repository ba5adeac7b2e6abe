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

//go:generate mockgen -source interpreter.go -destination interpreter_mock.go -package vm

// Interpreter is a component capable of executing EVM byte-code. It is the
// main part of an execution engine, driving the fetch-decode-execute loop
// across nested call frames. To obtain an Interpreter instance, client code
// should use NewInterpreter provided by the registry in this package.
type Interpreter interface {
	// Run executes the code provided by the parameters and returns the
	// processing result. The returned error is nil whenever the code was
	// processed to completion, including executions that ended in a fault of
	// the executed program; such faults are reported through Result.Error.
	// A non-nil error indicates a problem within the interpreter itself; in
	// that case the result is undefined.
	// Interpreters are required to be thread-safe as long as each run is
	// given its own TransactionContext.
	Run(Parameters) (Result, error)
}

// Parameters summarizes the list of input parameters required for executing
// code in a single frame.
type Parameters struct {
	BlockParameters
	TransactionParameters
	Context   TransactionContext
	Kind      CallKind
	Static    bool
	Depth     int
	Gas       Gas
	Recipient Address
	Sender    Address
	Input     Data
	Value     Value
	CodeHash  *Hash
	Code      Code
}

// BlockParameters contains the block context visible to environment opcodes.
type BlockParameters struct {
	ChainID     Word
	BlockNumber int64
	Timestamp   int64
	Coinbase    Address
	GasLimit    Gas
	PrevRandao  Hash
	BaseFee     Value
}

// TransactionParameters contains information about the current transaction.
type TransactionParameters struct {
	Origin   Address
	GasPrice Value
}

// TransactionContext is an interface to access and manipulate the world
// state within one top-level execution. All modifications are buffered and
// can be snapshot and restored, enabling the frame-scoped
// commit-on-success / discard-on-error discipline. Additionally, a
// transaction context tracks execution state beyond the world state:
// transient storage, warm/cold access sets, and emitted logs.
type TransactionContext interface {
	WorldState

	CreateSnapshot() Snapshot
	RestoreSnapshot(Snapshot)

	GetTransientStorage(Address, Key) Word
	SetTransientStorage(Address, Key, Word)

	// AccessAccount marks the given account as warm and reports whether it
	// was cold before. The warm set persists across frames within one
	// top-level execution and is not rolled back by RestoreSnapshot.
	AccessAccount(Address) AccessStatus

	// AccessStorage marks the given slot as warm and reports whether it was
	// cold before.
	AccessStorage(Address, Key) AccessStatus

	EmitLog(Log)
	GetLogs() []Log

	// HasSelfDestructed reports whether the account was already marked for
	// removal in the ongoing execution.
	HasSelfDestructed(Address) bool

	// GetBlockHash returns the hash of the block with the given number.
	GetBlockHash(number int64) Hash
}

// AccessStatus is an enum utilized to indicate cold and warm account or
// storage slot accesses.
type AccessStatus bool

const (
	ColdAccess AccessStatus = false
	WarmAccess AccessStatus = true
)

// Result summarizes the result of the execution of one frame.
type Result struct {
	// Success is true if the frame ran to a regular halt (STOP, RETURN,
	// SELFDESTRUCT), false for a revert or a fault.
	Success   bool
	Output    Data
	GasLeft   Gas
	GasRefund Gas
	// Error carries the fault that halted the frame, one of the constants
	// defined in errors.go. It is nil for successful and reverted frames;
	// a reverted frame is identified by Success == false && Error == nil.
	Error error
}

// Reverted reports whether the frame halted through a deliberate REVERT,
// preserving output for the caller, as opposed to a fault.
func (r Result) Reverted() bool {
	return !r.Success && r.Error == nil
}

// Snapshot identifies a state of the transaction context that can be
// restored to discard all modifications recorded after its creation.
type Snapshot int

// Log is the type summarizing a log record emitted as a side effect of a
// contract execution.
type Log struct {
	Address Address
	Topics  []Hash
	Data    Data
}

// CallKind is an enum enabling the differentiation of the different types
// of recursive contract calls supported in the EVM.
type CallKind int

const (
	Call CallKind = iota
	DelegateCall
	StaticCall
	CallCode
	Create
	Create2
)

func (k CallKind) String() string {
	switch k {
	case Call:
		return "call"
	case StaticCall:
		return "static_call"
	case DelegateCall:
		return "delegate_call"
	case CallCode:
		return "call_code"
	case Create:
		return "create"
	case Create2:
		return "create2"
	default:
		return "unknown"
	}
}

// MaxCallDepth is the maximum nesting depth of call frames. A call or create
// at this depth does not spawn a frame; it pushes 0 on the caller's stack.
const MaxCallDepth = 1024

// HashFunc is the signature of the single hash function injected into the
// engine. It is used by the KECCAK256 opcode and by CREATE2 address
// derivation; the core does not implement hashing itself.
type HashFunc func([]byte) Hash

// PrecompiledContract is the handler interface for built-in contracts at the
// reserved addresses 1-9. The dispatcher consults the precompile registry
// before treating a call target as ordinary code.
type PrecompiledContract interface {
	// RequiredGas returns the gas charged for processing the given input.
	RequiredGas(input []byte) uint64
	// Run processes the input and returns the output, or an error if the
	// input is invalid. An error consumes all gas provided to the call.
	Run(input []byte) ([]byte, error)
}

// PrecompileRegistry maps reserved addresses to their handlers.
type PrecompileRegistry map[Address]PrecompiledContract
