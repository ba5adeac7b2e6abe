// Copyright (c) 2026 Basalt Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file.
//
// Change Date: 2030-1-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package prism provides an interpreter for EVM byte-code executing raw code
// on an explicit frame stack. It registers itself under the name "prism" in
// the interpreter registry.
package prism

import (
	"fmt"

	"github.com/basalt-vm/basalt/vm"
)

func init() {
	err := vm.RegisterInterpreterFactory("prism", func(config any) (vm.Interpreter, error) {
		if config == nil {
			return NewInterpreter(Config{})
		}
		c, ok := config.(Config)
		if !ok {
			return nil, fmt.Errorf("invalid configuration type %T", config)
		}
		return NewInterpreter(c)
	})
	if err != nil {
		panic(fmt.Sprintf("failed to register prism interpreter: %v", err))
	}
}

// Config is the set of configuration options for the prism interpreter.
// The zero value selects the defaults.
type Config struct {
	// Schedule overrides the dynamic gas constants of the engine.
	Schedule *GasSchedule

	// Hasher is the hash function used by KECCAK256 and for deterministic
	// deployment addresses; nil selects Keccak256.
	Hasher vm.HashFunc

	// Precompiles overrides the set of built-in contracts; nil selects the
	// standard contracts at the addresses 1-9.
	Precompiles vm.PrecompileRegistry

	// CodeCacheCapacity bounds the number of cached code analyses.
	CodeCacheCapacity int
}

const defaultCodeCacheCapacity = 4096

type engine struct {
	schedule    GasSchedule
	hash        vm.HashFunc
	precompiles vm.PrecompileRegistry
	analyses    *analysisCache
}

// NewInterpreter creates an interpreter instance with the given
// configuration. Instances are thread-safe as long as concurrent runs use
// separate transaction contexts.
func NewInterpreter(config Config) (*engine, error) {
	schedule := DefaultGasSchedule()
	if config.Schedule != nil {
		schedule = *config.Schedule
	}
	hasher := config.Hasher
	if hasher == nil {
		hasher = Keccak256
	}
	precompiles := config.Precompiles
	if precompiles == nil {
		precompiles = NewPrecompiles()
	}
	capacity := config.CodeCacheCapacity
	if capacity <= 0 {
		capacity = defaultCodeCacheCapacity
	}
	return &engine{
		schedule:    schedule,
		hash:        hasher,
		precompiles: precompiles,
		analyses:    newAnalysisCache(capacity),
	}, nil
}

func (e *engine) hashOf(data []byte) vm.Hash {
	return e.hash(data)
}

// newFrame assembles a child frame to be run on top of the engine's frame
// stack. The snapshot is restored if the frame reverts or faults.
func (e *engine) newFrame(
	params vm.Parameters,
	snapshot vm.Snapshot,
	retOffset, retSize uint64,
	isCreate bool,
) *frame {
	return &frame{
		engine:    e,
		params:    params,
		context:   params.Context,
		code:      params.Code,
		jumpdests: e.analyses.getAnalysis(params.CodeHash, params.Code),
		gas:       params.Gas,
		stack:     NewStack(),
		memory:    NewMemory(),
		snapshot:  snapshot,
		retOffset: retOffset,
		retSize:   retSize,
		isCreate:  isCreate,
	}
}
