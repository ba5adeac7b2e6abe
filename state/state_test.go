// Copyright (c) 2026 Basalt Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file.
//
// Change Date: 2030-1-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/basalt-vm/basalt/vm"
)

var (
	addrA = vm.Address{0xA}
	addrB = vm.Address{0xB}
	key1  = vm.Key{31: 1}
)

func TestState_AccountsAreCreatedOnFirstWrite(t *testing.T) {
	s := New()
	require.False(t, s.AccountExists(addrA))
	s.SetBalance(addrA, vm.NewValue(10))
	require.True(t, s.AccountExists(addrA))
	require.Equal(t, vm.NewValue(10), s.GetBalance(addrA))
}

func TestState_EmptyAccountsDoNotExist(t *testing.T) {
	s := New()
	s.SetBalance(addrA, vm.Value{})
	require.False(t, s.AccountExists(addrA))
	s.SetNonce(addrA, 1)
	require.True(t, s.AccountExists(addrA))
}

func TestState_SnapshotRollbackUndoesAllMutations(t *testing.T) {
	s := New()
	s.SetBalance(addrA, vm.NewValue(10))
	s.SetStorage(addrA, key1, vm.Word{31: 1})

	snapshot := s.CreateSnapshot()
	s.SetBalance(addrA, vm.NewValue(20))
	s.SetNonce(addrB, 7)
	s.SetCode(addrB, vm.Code{0x01})
	s.SetStorage(addrA, key1, vm.Word{31: 2})
	s.EmitLog(vm.Log{Address: addrA})
	s.SetTransientStorage(addrA, key1, vm.Word{31: 3})

	s.RestoreSnapshot(snapshot)

	require.Equal(t, vm.NewValue(10), s.GetBalance(addrA))
	require.False(t, s.AccountExists(addrB))
	require.Equal(t, uint64(0), s.GetNonce(addrB))
	require.Nil(t, s.GetCode(addrB))
	require.Equal(t, vm.Word{31: 1}, s.GetStorage(addrA, key1))
	require.Empty(t, s.GetLogs())
	require.Equal(t, vm.Word{}, s.GetTransientStorage(addrA, key1))
}

func TestState_NestedSnapshotsRestoreInLifoOrder(t *testing.T) {
	s := New()
	s.SetBalance(addrA, vm.NewValue(1))
	outer := s.CreateSnapshot()
	s.SetBalance(addrA, vm.NewValue(2))
	inner := s.CreateSnapshot()
	s.SetBalance(addrA, vm.NewValue(3))

	s.RestoreSnapshot(inner)
	require.Equal(t, vm.NewValue(2), s.GetBalance(addrA))
	s.RestoreSnapshot(outer)
	require.Equal(t, vm.NewValue(1), s.GetBalance(addrA))
}

func TestState_WarmMarkersSurviveRollback(t *testing.T) {
	s := New()
	snapshot := s.CreateSnapshot()
	require.Equal(t, vm.ColdAccess, s.AccessAccount(addrA))
	require.Equal(t, vm.ColdAccess, s.AccessStorage(addrA, key1))
	s.RestoreSnapshot(snapshot)
	require.Equal(t, vm.WarmAccess, s.AccessAccount(addrA))
	require.Equal(t, vm.WarmAccess, s.AccessStorage(addrA, key1))
}

func TestState_SetStorageReportsStatusAgainstCommittedValue(t *testing.T) {
	s := New()
	require.Equal(t, vm.StorageAdded, s.SetStorage(addrA, key1, vm.Word{31: 1}))
	s.Commit()
	require.Equal(t, vm.StorageDeleted, s.SetStorage(addrA, key1, vm.Word{}))
	require.Equal(t, vm.StorageDeletedRestored, s.SetStorage(addrA, key1, vm.Word{31: 1}))
}

func TestState_CommittedStorageIsUnaffectedByWrites(t *testing.T) {
	s := New()
	s.SetStorage(addrA, key1, vm.Word{31: 1})
	s.Commit()
	s.SetStorage(addrA, key1, vm.Word{31: 2})
	require.Equal(t, vm.Word{31: 1}, s.GetCommittedStorage(addrA, key1))
	require.Equal(t, vm.Word{31: 2}, s.GetStorage(addrA, key1))
}

func TestState_SelfDestructMovesBalanceAndIsIdempotent(t *testing.T) {
	s := New()
	s.SetBalance(addrA, vm.NewValue(100))
	require.True(t, s.SelfDestruct(addrA, addrB))
	require.False(t, s.SelfDestruct(addrA, addrB))
	require.True(t, s.HasSelfDestructed(addrA))
	require.Equal(t, vm.NewValue(100), s.GetBalance(addrB))
	require.Equal(t, vm.Value{}, s.GetBalance(addrA))
}

func TestState_SelfDestructToSelfBurnsTheBalance(t *testing.T) {
	s := New()
	s.SetBalance(addrA, vm.NewValue(100))
	require.True(t, s.SelfDestruct(addrA, addrA))
	require.Equal(t, vm.Value{}, s.GetBalance(addrA))
}

func TestState_SelfDestructIsRevertedWithTheJournal(t *testing.T) {
	s := New()
	s.SetBalance(addrA, vm.NewValue(100))
	snapshot := s.CreateSnapshot()
	s.SelfDestruct(addrA, addrB)
	s.RestoreSnapshot(snapshot)
	require.False(t, s.HasSelfDestructed(addrA))
	require.Equal(t, vm.NewValue(100), s.GetBalance(addrA))
}

func TestState_CommitRemovesDestructedAccounts(t *testing.T) {
	s := New()
	s.SetBalance(addrA, vm.NewValue(100))
	s.SetStorage(addrA, key1, vm.Word{31: 1})
	s.SelfDestruct(addrA, addrB)
	s.Commit()
	require.False(t, s.AccountExists(addrA))
	require.Equal(t, vm.Word{}, s.GetStorage(addrA, key1))
	require.Equal(t, vm.NewValue(100), s.GetBalance(addrB))
}

func TestState_LogsKeepExecutionOrder(t *testing.T) {
	s := New()
	s.EmitLog(vm.Log{Address: addrA})
	s.EmitLog(vm.Log{Address: addrB})
	logs := s.GetLogs()
	require.Len(t, logs, 2)
	require.Equal(t, addrA, logs[0].Address)
	require.Equal(t, addrB, logs[1].Address)
}

func TestState_GetChangesReportsSortedDifferences(t *testing.T) {
	s := New()
	s.SetStorage(addrB, key1, vm.Word{31: 2})
	s.SetStorage(addrA, key1, vm.Word{31: 1})
	s.SetBalance(addrA, vm.NewValue(5))

	changes := s.GetChanges()
	require.Equal(t, []vm.Address{addrA}, changes.Accounts)
	require.Len(t, changes.Slots, 2)
	require.Equal(t, addrA, changes.Slots[0].Address)
	require.Equal(t, addrB, changes.Slots[1].Address)
}

func TestState_GetChangesOmitsWritesRestoringCommittedValues(t *testing.T) {
	s := New()
	s.SetStorage(addrA, key1, vm.Word{31: 1})
	s.Commit()
	s.SetStorage(addrA, key1, vm.Word{31: 2})
	s.SetStorage(addrA, key1, vm.Word{31: 1})
	require.Empty(t, s.GetChanges().Slots)
}

func TestState_BlockHashesCanBeSeeded(t *testing.T) {
	s := New()
	require.Equal(t, vm.Hash{}, s.GetBlockHash(5))
	s.SetBlockHash(5, vm.Hash{1})
	require.Equal(t, vm.Hash{1}, s.GetBlockHash(5))
}

func TestState_CodeHashCoversTheStoredCode(t *testing.T) {
	s := New()
	s.SetCode(addrA, vm.Code{0x60, 0x00})
	s.SetCode(addrB, vm.Code{0x60, 0x01})
	require.NotEqual(t, s.GetCodeHash(addrA), s.GetCodeHash(addrB))
	require.Equal(t, 2, s.GetCodeSize(addrA))
}
