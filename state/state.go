// Copyright (c) 2026 Basalt Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file.
//
// Change Date: 2030-1-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package state provides an in-memory, journaled implementation of the
// vm.TransactionContext interface. All mutations are recorded in a journal
// so that arbitrary snapshots can be restored, supporting the frame-scoped
// commit-on-success / discard-on-error discipline of the execution engine.
package state

import (
	"bytes"
	"sort"

	"golang.org/x/crypto/sha3"

	"github.com/basalt-vm/basalt/vm"
)

type slotId struct {
	addr vm.Address
	key  vm.Key
}

type account struct {
	balance vm.Value
	nonce   uint64
	code    vm.Code
}

// State is a journaled world state covering a single top-level execution.
// It is not safe for concurrent use; each execution needs its own instance.
type State struct {
	accounts         map[vm.Address]*account
	storage          map[slotId]vm.Word
	committedStorage map[slotId]vm.Word
	transient        map[slotId]vm.Word

	warmAccounts map[vm.Address]bool
	warmSlots    map[slotId]bool

	logs        []vm.Log
	destructed  map[vm.Address]bool
	blockHashes map[int64]vm.Hash

	journal []journalEntry

	// touched tracks every storage slot written since the last commit; it is
	// an over-approximation pruned against the committed values when the
	// change set is derived.
	touched map[slotId]bool
}

func New() *State {
	return &State{
		accounts:         map[vm.Address]*account{},
		storage:          map[slotId]vm.Word{},
		committedStorage: map[slotId]vm.Word{},
		transient:        map[slotId]vm.Word{},
		warmAccounts:     map[vm.Address]bool{},
		warmSlots:        map[slotId]bool{},
		destructed:       map[vm.Address]bool{},
		blockHashes:      map[int64]vm.Hash{},
		touched:          map[slotId]bool{},
	}
}

func (s *State) getOrCreateAccount(addr vm.Address) *account {
	if acc, found := s.accounts[addr]; found {
		return acc
	}
	acc := &account{}
	s.accounts[addr] = acc
	s.journal = append(s.journal, accountCreated{addr})
	return acc
}

// ----------------------- vm.WorldState ------------------------------

// AccountExists reports whether the account is present and non-empty. An
// account with zero balance, zero nonce, and no code counts as non-existent.
func (s *State) AccountExists(addr vm.Address) bool {
	acc, found := s.accounts[addr]
	if !found {
		return false
	}
	return acc.nonce != 0 || acc.balance != (vm.Value{}) || len(acc.code) != 0
}

func (s *State) GetBalance(addr vm.Address) vm.Value {
	if acc, found := s.accounts[addr]; found {
		return acc.balance
	}
	return vm.Value{}
}

func (s *State) SetBalance(addr vm.Address, balance vm.Value) {
	acc := s.getOrCreateAccount(addr)
	s.journal = append(s.journal, balanceChange{addr, acc.balance})
	acc.balance = balance
}

func (s *State) GetNonce(addr vm.Address) uint64 {
	if acc, found := s.accounts[addr]; found {
		return acc.nonce
	}
	return 0
}

func (s *State) SetNonce(addr vm.Address, nonce uint64) {
	acc := s.getOrCreateAccount(addr)
	s.journal = append(s.journal, nonceChange{addr, acc.nonce})
	acc.nonce = nonce
}

func (s *State) GetCode(addr vm.Address) vm.Code {
	if acc, found := s.accounts[addr]; found {
		return acc.code
	}
	return nil
}

func (s *State) GetCodeHash(addr vm.Address) vm.Hash {
	return keccak256(s.GetCode(addr))
}

func (s *State) GetCodeSize(addr vm.Address) int {
	return len(s.GetCode(addr))
}

func (s *State) SetCode(addr vm.Address, code vm.Code) {
	acc := s.getOrCreateAccount(addr)
	s.journal = append(s.journal, codeChange{addr, acc.code})
	acc.code = code
}

func (s *State) GetStorage(addr vm.Address, key vm.Key) vm.Word {
	id := slotId{addr, key}
	if value, found := s.storage[id]; found {
		return value
	}
	return s.committedStorage[id]
}

func (s *State) SetStorage(addr vm.Address, key vm.Key, value vm.Word) vm.StorageStatus {
	id := slotId{addr, key}
	original := s.committedStorage[id]
	current := s.GetStorage(addr, key)
	status := vm.GetStorageStatus(original, current, value)
	prev, hadPrev := s.storage[id]
	s.journal = append(s.journal, storageChange{id, prev, hadPrev})
	s.storage[id] = value
	s.touched[id] = true
	return status
}

func (s *State) GetCommittedStorage(addr vm.Address, key vm.Key) vm.Word {
	return s.committedStorage[slotId{addr, key}]
}

// SelfDestruct marks addr for removal and moves its balance to the
// beneficiary. The removal itself is applied by Commit; until then the
// account remains readable.
func (s *State) SelfDestruct(addr, beneficiary vm.Address) bool {
	balance := s.GetBalance(addr)
	if beneficiary != addr && balance != (vm.Value{}) {
		s.SetBalance(beneficiary, vm.Add(s.GetBalance(beneficiary), balance))
	}
	s.SetBalance(addr, vm.Value{})
	if s.destructed[addr] {
		return false
	}
	s.journal = append(s.journal, destructChange{addr})
	s.destructed[addr] = true
	return true
}

// ------------------- vm.TransactionContext --------------------------

func (s *State) CreateSnapshot() vm.Snapshot {
	return vm.Snapshot(len(s.journal))
}

// RestoreSnapshot unwinds the journal down to the given snapshot. Warm
// account and slot markers deliberately survive the rollback.
func (s *State) RestoreSnapshot(snapshot vm.Snapshot) {
	for len(s.journal) > int(snapshot) {
		entry := s.journal[len(s.journal)-1]
		s.journal = s.journal[:len(s.journal)-1]
		entry.revert(s)
	}
}

func (s *State) GetTransientStorage(addr vm.Address, key vm.Key) vm.Word {
	return s.transient[slotId{addr, key}]
}

func (s *State) SetTransientStorage(addr vm.Address, key vm.Key, value vm.Word) {
	id := slotId{addr, key}
	prev, hadPrev := s.transient[id]
	s.journal = append(s.journal, transientChange{id, prev, hadPrev})
	s.transient[id] = value
}

func (s *State) AccessAccount(addr vm.Address) vm.AccessStatus {
	if s.warmAccounts[addr] {
		return vm.WarmAccess
	}
	s.warmAccounts[addr] = true
	return vm.ColdAccess
}

func (s *State) AccessStorage(addr vm.Address, key vm.Key) vm.AccessStatus {
	id := slotId{addr, key}
	if s.warmSlots[id] {
		return vm.WarmAccess
	}
	s.warmSlots[id] = true
	return vm.ColdAccess
}

func (s *State) EmitLog(log vm.Log) {
	s.journal = append(s.journal, logChange{})
	s.logs = append(s.logs, log)
}

// GetLogs returns the logs emitted so far in execution order. Logs of
// reverted frames have been removed by the journal rollback.
func (s *State) GetLogs() []vm.Log {
	return s.logs
}

func (s *State) HasSelfDestructed(addr vm.Address) bool {
	return s.destructed[addr]
}

func (s *State) GetBlockHash(number int64) vm.Hash {
	return s.blockHashes[number]
}

// SetBlockHash seeds the hash of a historic block.
func (s *State) SetBlockHash(number int64, hash vm.Hash) {
	s.blockHashes[number] = hash
}

// ----------------------------- journal ------------------------------

type journalEntry interface {
	revert(*State)
}

type accountCreated struct {
	addr vm.Address
}

func (e accountCreated) revert(s *State) {
	delete(s.accounts, e.addr)
}

type balanceChange struct {
	addr vm.Address
	prev vm.Value
}

func (e balanceChange) revert(s *State) {
	s.accounts[e.addr].balance = e.prev
}

type nonceChange struct {
	addr vm.Address
	prev uint64
}

func (e nonceChange) revert(s *State) {
	s.accounts[e.addr].nonce = e.prev
}

type codeChange struct {
	addr vm.Address
	prev vm.Code
}

func (e codeChange) revert(s *State) {
	s.accounts[e.addr].code = e.prev
}

type storageChange struct {
	id      slotId
	prev    vm.Word
	hadPrev bool
}

func (e storageChange) revert(s *State) {
	if e.hadPrev {
		s.storage[e.id] = e.prev
	} else {
		delete(s.storage, e.id)
	}
}

type transientChange struct {
	id      slotId
	prev    vm.Word
	hadPrev bool
}

func (e transientChange) revert(s *State) {
	if e.hadPrev {
		s.transient[e.id] = e.prev
	} else {
		delete(s.transient, e.id)
	}
}

type logChange struct{}

func (e logChange) revert(s *State) {
	s.logs = s.logs[:len(s.logs)-1]
}

type destructChange struct {
	addr vm.Address
}

func (e destructChange) revert(s *State) {
	delete(s.destructed, e.addr)
}

// ----------------------------- commit -------------------------------

// Commit finalizes the ongoing execution: destructed accounts are removed,
// the current storage becomes the committed storage, and all per-execution
// tracking (journal, transient storage, warm sets, logs) is reset.
func (s *State) Commit() {
	for addr := range s.destructed {
		delete(s.accounts, addr)
		for id := range s.storage {
			if id.addr == addr {
				delete(s.storage, id)
			}
		}
		for id := range s.committedStorage {
			if id.addr == addr {
				delete(s.committedStorage, id)
			}
		}
	}
	for id, value := range s.storage {
		if value == (vm.Word{}) {
			delete(s.committedStorage, id)
		} else {
			s.committedStorage[id] = value
		}
	}
	s.storage = map[slotId]vm.Word{}
	s.transient = map[slotId]vm.Word{}
	s.warmAccounts = map[vm.Address]bool{}
	s.warmSlots = map[slotId]bool{}
	s.destructed = map[vm.Address]bool{}
	s.logs = nil
	s.journal = nil
	s.touched = map[slotId]bool{}
}

// ----------------------------- changes ------------------------------

// SlotChange is one storage slot update of the ongoing execution.
type SlotChange struct {
	Address vm.Address
	Key     vm.Key
	Value   vm.Word
}

// Changes summarizes the uncommitted effects of the ongoing execution in a
// deterministic order.
type Changes struct {
	Accounts   []vm.Address // accounts created or modified, sorted
	Slots      []SlotChange // storage writes differing from committed state
	Destructed []vm.Address // accounts marked for removal, sorted
}

// GetChanges derives the pending change set by comparing the current state
// with the committed state. Writes that restored the committed value are not
// reported.
func (s *State) GetChanges() Changes {
	var changes Changes
	for addr := range s.accounts {
		changes.Accounts = append(changes.Accounts, addr)
	}
	sortAddresses(changes.Accounts)
	for id := range s.touched {
		value, found := s.storage[id]
		if !found || value == s.committedStorage[id] {
			continue
		}
		changes.Slots = append(changes.Slots, SlotChange{id.addr, id.key, value})
	}
	sort.Slice(changes.Slots, func(i, j int) bool {
		a, b := changes.Slots[i], changes.Slots[j]
		if cmp := bytes.Compare(a.Address[:], b.Address[:]); cmp != 0 {
			return cmp < 0
		}
		return bytes.Compare(a.Key[:], b.Key[:]) < 0
	})
	for addr := range s.destructed {
		changes.Destructed = append(changes.Destructed, addr)
	}
	sortAddresses(changes.Destructed)
	return changes
}

func sortAddresses(addresses []vm.Address) {
	sort.Slice(addresses, func(i, j int) bool {
		return bytes.Compare(addresses[i][:], addresses[j][:]) < 0
	})
}

func keccak256(data []byte) vm.Hash {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(data)
	var res vm.Hash
	copy(res[:], hasher.Sum(nil))
	return res
}
