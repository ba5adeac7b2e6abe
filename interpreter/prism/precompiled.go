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
	gethvm "github.com/ethereum/go-ethereum/core/vm"

	"github.com/basalt-vm/basalt/vm"
)

// NewPrecompiles returns the standard built-in contracts occupying the
// reserved addresses 1-9: ecrecover, sha256, ripemd160, identity, modexp,
// the bn256 curve operations, and blake2f.
func NewPrecompiles() vm.PrecompileRegistry {
	registry := make(vm.PrecompileRegistry, len(gethvm.PrecompiledContractsBerlin))
	for addr, contract := range gethvm.PrecompiledContractsBerlin {
		if !vm.IsPrecompiledContract(vm.Address(addr)) {
			continue
		}
		registry[vm.Address(addr)] = contract
	}
	return registry
}
