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
	"github.com/basalt-vm/basalt/vm"
	"github.com/holiman/uint256"
)

// GasSchedule collects the tunable gas constants of the engine. The static
// per-opcode prices live in the operation table; everything priced
// dynamically, per byte, per word, or per state-access pattern is drawn from
// here so deployments can run with an adjusted schedule.
type GasSchedule struct {
	// State access (warm/cold access lists).
	ColdAccountAccessCost vm.Gas
	ColdSloadCost         vm.Gas
	WarmStorageReadCost   vm.Gas

	// Storage writes and refunds.
	SstoreSetGas       vm.Gas
	SstoreResetGas     vm.Gas
	SstoreClearsRefund vm.Gas
	SstoreSentryGas    vm.Gas

	// Calls.
	CallValueTransferGas vm.Gas
	CallNewAccountGas    vm.Gas
	CallStipend          vm.Gas

	// Creation.
	CreateGas        vm.Gas
	Keccak256WordGas vm.Gas
	InitCodeWordGas  vm.Gas
	CreateDataGas    vm.Gas
	MaxCodeSize      uint64
	MaxInitCodeSize  uint64

	// Copy operations and logs.
	CopyWordGas        vm.Gas
	LogGas             vm.Gas
	LogTopicGas        vm.Gas
	LogDataGas         vm.Gas
	ExpByteGas         vm.Gas
	SelfdestructGas    vm.Gas
	SelfdestructRefund vm.Gas
}

// DefaultGasSchedule returns the mainline schedule with warm/cold access
// accounting and net storage gas metering.
func DefaultGasSchedule() GasSchedule {
	return GasSchedule{
		ColdAccountAccessCost: 2600,
		ColdSloadCost:         2100,
		WarmStorageReadCost:   100,

		SstoreSetGas:       20000,
		SstoreResetGas:     5000,
		SstoreClearsRefund: 4800,
		SstoreSentryGas:    2300,

		CallValueTransferGas: 9000,
		CallNewAccountGas:    25000,
		CallStipend:          2300,

		CreateGas:        32000,
		Keccak256WordGas: 6,
		InitCodeWordGas:  2,
		CreateDataGas:    200,
		MaxCodeSize:      24576,
		MaxInitCodeSize:  49152,

		CopyWordGas:        3,
		LogGas:             375,
		LogTopicGas:        375,
		LogDataGas:         8,
		ExpByteGas:         50,
		SelfdestructGas:    5000,
		SelfdestructRefund: 0,
	}
}

// sstoreCosts returns the dynamic gas cost and the refund delta of a storage
// write classified by the given status. The cold-access surcharge is not
// included; it is charged separately based on the slot's access status.
func (g *GasSchedule) sstoreCosts(status vm.StorageStatus) (cost, refund vm.Gas) {
	warm := g.WarmStorageReadCost
	reset := g.SstoreResetGas - g.ColdSloadCost
	clear := g.SstoreClearsRefund
	switch status {
	case vm.StorageAdded:
		return g.SstoreSetGas, 0
	case vm.StorageDeleted:
		return reset, clear
	case vm.StorageModified:
		return reset, 0
	case vm.StorageDeletedAdded:
		return warm, -clear
	case vm.StorageModifiedDeleted:
		return warm, clear
	case vm.StorageDeletedRestored:
		return warm, reset - warm - clear
	case vm.StorageAddedDeleted:
		return warm, g.SstoreSetGas - warm
	case vm.StorageModifiedRestored:
		return warm, reset - warm
	default: // StorageAssigned
		return warm, 0
	}
}

// accountAccessCost returns the gas charged for touching the given account,
// marking it warm as a side effect.
func (g *GasSchedule) accountAccessCost(c *frame, addr vm.Address) vm.Gas {
	if c.context.AccessAccount(addr) == vm.ColdAccess {
		return g.ColdAccountAccessCost
	}
	return g.WarmStorageReadCost
}

// callCostAndGas determines the up-front cost of a call opcode targeting the
// given address and the amount of gas forwarded to the callee. Following the
// all-but-one-64th rule, at most gasLeft - gasLeft/64 of the gas remaining
// after the up-front cost is forwarded; the stipend for value-bearing calls
// is added on top of the forwarded amount.
func (g *GasSchedule) callCostAndGas(
	c *frame,
	target vm.Address,
	requested *uint256.Int,
	transfersValue bool,
	createsAccount bool,
) (cost, forwarded vm.Gas, err error) {
	cost = g.accountAccessCost(c, target)
	if transfersValue {
		cost += g.CallValueTransferGas
	}
	if createsAccount {
		cost += g.CallNewAccountGas
	}
	if err := c.useGas(cost); err != nil {
		return 0, 0, err
	}
	limit := c.gas - c.gas/64
	forwarded = limit
	if requested.IsUint64() && requested.Uint64() < uint64(limit) {
		forwarded = vm.Gas(requested.Uint64())
	}
	if err := c.useGas(forwarded); err != nil {
		return 0, 0, err
	}
	if transfersValue {
		forwarded += g.CallStipend
	}
	return cost, forwarded, nil
}

// copyCost returns the per-word cost of copying size bytes.
func (g *GasSchedule) copyCost(size uint64) vm.Gas {
	return g.CopyWordGas * vm.Gas(vm.SizeInWords(size))
}
