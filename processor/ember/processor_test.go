// Copyright (c) 2026 Basalt Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file.
//
// Change Date: 2030-1-1
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ember

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/basalt-vm/basalt/interpreter/prism"
	"github.com/basalt-vm/basalt/state"
	"github.com/basalt-vm/basalt/vm"
)

var (
	sender    = vm.Address{0x01}
	recipient = vm.Address{0x02}
)

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	interpreter, err := vm.NewInterpreter("prism")
	require.NoError(t, err)
	return NewProcessor(interpreter, prism.NewPrecompiles(), nil)
}

func TestProcessor_PlainValueTransfer(t *testing.T) {
	p := newTestProcessor(t)
	st := state.New()
	st.SetBalance(sender, vm.NewValue(1000))

	res, err := p.Execute(vm.BlockParameters{}, vm.TransactionParameters{}, Request{
		Kind:      vm.Call,
		Sender:    sender,
		Recipient: recipient,
		Gas:       100000,
		Value:     vm.NewValue(300),
	}, st)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, vm.Gas(0), res.GasUsed)
	require.Equal(t, vm.NewValue(700), st.GetBalance(sender))
	require.Equal(t, vm.NewValue(300), st.GetBalance(recipient))
	require.Equal(t, uint64(1), st.GetNonce(sender))
}

func TestProcessor_InsufficientBalanceFailsWithoutMutations(t *testing.T) {
	p := newTestProcessor(t)
	st := state.New()
	st.SetBalance(sender, vm.NewValue(100))

	res, err := p.Execute(vm.BlockParameters{}, vm.TransactionParameters{}, Request{
		Kind:      vm.Call,
		Sender:    sender,
		Recipient: recipient,
		Gas:       100000,
		Value:     vm.NewValue(300),
	}, st)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.ErrorIs(t, res.Error, errInsufficientBalance)
	require.Equal(t, vm.NewValue(100), st.GetBalance(sender))
	require.Equal(t, uint64(0), st.GetNonce(sender))
}

func TestProcessor_CallRunsRecipientCode(t *testing.T) {
	p := newTestProcessor(t)
	st := state.New()
	st.SetBalance(sender, vm.NewValue(1000))
	st.SetCode(recipient, vm.Code{
		byte(prism.PUSH1), 42,
		byte(prism.PUSH1), 0,
		byte(prism.MSTORE),
		byte(prism.PUSH1), 32,
		byte(prism.PUSH1), 0,
		byte(prism.RETURN),
	})

	res, err := p.Execute(vm.BlockParameters{}, vm.TransactionParameters{}, Request{
		Kind:      vm.Call,
		Sender:    sender,
		Recipient: recipient,
		Gas:       100000,
	}, st)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, byte(42), res.Output[31])
	require.Positive(t, res.GasUsed)
}

func TestProcessor_FailedExecutionDiscardsAllChanges(t *testing.T) {
	p := newTestProcessor(t)
	st := state.New()
	st.SetBalance(sender, vm.NewValue(1000))
	st.SetCode(recipient, vm.Code{
		byte(prism.PUSH1), 1,
		byte(prism.PUSH1), 0,
		byte(prism.SSTORE),
		byte(prism.INVALID),
	})

	res, err := p.Execute(vm.BlockParameters{}, vm.TransactionParameters{}, Request{
		Kind:      vm.Call,
		Sender:    sender,
		Recipient: recipient,
		Gas:       100000,
		Value:     vm.NewValue(10),
	}, st)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.ErrorIs(t, res.Error, vm.ErrInvalidOpcode)
	require.Equal(t, vm.Gas(100000), res.GasUsed, "a fault consumes the whole budget")
	require.Nil(t, res.Output, "only reverts carry output to the caller")
	require.Equal(t, vm.NewValue(1000), st.GetBalance(sender), "the transfer must be rolled back")
	require.Equal(t, vm.Word{}, st.GetStorage(recipient, vm.Key{}))
}

func TestProcessor_RevertPreservesOutputAndUnspentGas(t *testing.T) {
	p := newTestProcessor(t)
	st := state.New()
	st.SetBalance(sender, vm.NewValue(1000))
	st.SetCode(recipient, vm.Code{
		byte(prism.PUSH1), 42,
		byte(prism.PUSH1), 0,
		byte(prism.MSTORE),
		byte(prism.PUSH1), 32,
		byte(prism.PUSH1), 0,
		byte(prism.REVERT),
	})

	res, err := p.Execute(vm.BlockParameters{}, vm.TransactionParameters{}, Request{
		Kind:      vm.Call,
		Sender:    sender,
		Recipient: recipient,
		Gas:       100000,
	}, st)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Nil(t, res.Error, "a revert is not a fault")
	require.Equal(t, byte(42), res.Output[31])
	require.Less(t, res.GasUsed, vm.Gas(100000), "unspent gas is returned")
}

func TestProcessor_RefundIsCappedAtAFifthOfGasUsed(t *testing.T) {
	p := newTestProcessor(t)
	st := state.New()
	st.SetBalance(sender, vm.NewValue(1000))
	st.SetStorage(recipient, vm.Key{}, vm.Word{31: 1})
	st.Commit()
	// clearing the slot grants a 4800 refund, far above a fifth of the cost
	st.SetCode(recipient, vm.Code{
		byte(prism.PUSH1), 0,
		byte(prism.PUSH1), 0,
		byte(prism.SSTORE),
	})

	res, err := p.Execute(vm.BlockParameters{}, vm.TransactionParameters{}, Request{
		Kind:      vm.Call,
		Sender:    sender,
		Recipient: recipient,
		Gas:       100000,
	}, st)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Positive(t, res.GasRefund)
	require.Equal(t, res.GasRefund, (res.GasUsed+res.GasRefund)/maxRefundQuotient)
}

func TestProcessor_CreateDeploysContract(t *testing.T) {
	p := newTestProcessor(t)
	st := state.New()
	st.SetBalance(sender, vm.NewValue(1000))

	// init code deploying the single-byte contract 0xAA
	initCode := vm.Data{
		byte(prism.PUSH1), 0xAA,
		byte(prism.PUSH1), 0,
		byte(prism.MSTORE8),
		byte(prism.PUSH1), 1,
		byte(prism.PUSH1), 0,
		byte(prism.RETURN),
	}
	res, err := p.Execute(vm.BlockParameters{}, vm.TransactionParameters{}, Request{
		Kind:   vm.Create,
		Sender: sender,
		Gas:    100000,
		Input:  initCode,
	}, st)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.CreatedAddress)

	want := vm.Address(crypto.CreateAddress(common.Address(sender), 0))
	require.Equal(t, want, *res.CreatedAddress)
	require.Equal(t, vm.Code{0xAA}, st.GetCode(want))
	require.Equal(t, uint64(1), st.GetNonce(want))
	require.Contains(t, res.Changes.Accounts, want)
}

func TestProcessor_Create2UsesSaltedDerivation(t *testing.T) {
	p := newTestProcessor(t)
	st := state.New()
	st.SetBalance(sender, vm.NewValue(1000))

	salt := vm.Hash{31: 9}
	res, err := p.Execute(vm.BlockParameters{}, vm.TransactionParameters{}, Request{
		Kind:   vm.Create2,
		Sender: sender,
		Gas:    100000,
		Salt:   salt,
	}, st)
	require.NoError(t, err)
	require.True(t, res.Success)

	want := vm.Address(crypto.CreateAddress2(
		common.Address(sender), common.Hash(salt), crypto.Keccak256(nil)))
	require.Equal(t, want, *res.CreatedAddress)
}

func TestProcessor_Create2HonorsTheConfiguredHasher(t *testing.T) {
	hasher := func(data []byte) vm.Hash {
		var h vm.Hash
		for i, b := range data {
			h[i%32] ^= b
		}
		h[0] = byte(len(data))
		return h
	}
	interpreter, err := prism.NewInterpreter(prism.Config{Hasher: hasher})
	require.NoError(t, err)
	p := NewProcessor(interpreter, prism.NewPrecompiles(), hasher)

	st := state.New()
	st.SetBalance(sender, vm.NewValue(1000))
	salt := vm.Hash{31: 9}
	res, err := p.Execute(vm.BlockParameters{}, vm.TransactionParameters{}, Request{
		Kind:   vm.Create2,
		Sender: sender,
		Gas:    100000,
		Salt:   salt,
	}, st)
	require.NoError(t, err)
	require.True(t, res.Success)

	initHash := hasher(nil)
	preimage := append([]byte{0xff}, sender[:]...)
	preimage = append(preimage, salt[:]...)
	preimage = append(preimage, initHash[:]...)
	sum := hasher(preimage)
	var want vm.Address
	copy(want[:], sum[12:])
	require.Equal(t, want, *res.CreatedAddress)
}

func TestProcessor_CreateCollisionFails(t *testing.T) {
	p := newTestProcessor(t)
	st := state.New()
	st.SetBalance(sender, vm.NewValue(1000))

	occupied := vm.Address(crypto.CreateAddress(common.Address(sender), 0))
	st.SetNonce(occupied, 1)

	res, err := p.Execute(vm.BlockParameters{}, vm.TransactionParameters{}, Request{
		Kind:   vm.Create,
		Sender: sender,
		Gas:    100000,
	}, st)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.ErrorIs(t, res.Error, errAddressCollision)
	require.Equal(t, vm.Gas(100000), res.GasUsed)
}

func TestProcessor_OversizedContractIsRejected(t *testing.T) {
	p := newTestProcessor(t)
	st := state.New()
	st.SetBalance(sender, vm.NewValue(1000))

	// init code returning maxCodeSize+1 zero bytes
	initCode := vm.Data{
		byte(prism.PUSH3), 0x00, 0x60, 0x01, // 24577
		byte(prism.PUSH1), 0,
		byte(prism.RETURN),
	}
	res, err := p.Execute(vm.BlockParameters{}, vm.TransactionParameters{}, Request{
		Kind:   vm.Create,
		Sender: sender,
		Gas:    10000000,
		Input:  initCode,
	}, st)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.ErrorIs(t, res.Error, vm.ErrOutOfGas)
}

func TestProcessor_PrecompiledContractsAreServedDirectly(t *testing.T) {
	p := newTestProcessor(t)
	st := state.New()
	st.SetBalance(sender, vm.NewValue(1000))

	identity := vm.Address{19: 4}
	input := vm.Data{1, 2, 3}
	res, err := p.Execute(vm.BlockParameters{}, vm.TransactionParameters{}, Request{
		Kind:      vm.Call,
		Sender:    sender,
		Recipient: identity,
		Gas:       100000,
		Input:     input,
	}, st)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, input, res.Output)
	require.Positive(t, res.GasUsed)
}

func TestProcessor_InterpreterErrorsArePropagated(t *testing.T) {
	ctrl := gomock.NewController(t)
	interpreter := vm.NewMockInterpreter(ctrl)
	interpreter.EXPECT().Run(gomock.Any()).Return(
		vm.Result{}, fmt.Errorf("lookup failed: %w", vm.ErrStateUnavailable))

	p := NewProcessor(interpreter, nil, nil)
	st := state.New()
	st.SetBalance(sender, vm.NewValue(1000))
	st.SetCode(recipient, vm.Code{byte(prism.STOP)})

	res, err := p.Execute(vm.BlockParameters{}, vm.TransactionParameters{}, Request{
		Kind:      vm.Call,
		Sender:    sender,
		Recipient: recipient,
		Gas:       100000,
	}, st)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.ErrorIs(t, res.Error, vm.ErrStateUnavailable)
}

func TestProcessor_UnsupportedKindIsRejected(t *testing.T) {
	p := newTestProcessor(t)
	_, err := p.Execute(vm.BlockParameters{}, vm.TransactionParameters{}, Request{
		Kind: vm.DelegateCall,
	}, state.New())
	require.ErrorContains(t, err, "unsupported request kind")
}

func TestProcessor_LogsAreIncludedInTheResult(t *testing.T) {
	p := newTestProcessor(t)
	st := state.New()
	st.SetBalance(sender, vm.NewValue(1000))
	st.SetCode(recipient, vm.Code{
		byte(prism.PUSH1), 1, // topic
		byte(prism.PUSH1), 0, // size
		byte(prism.PUSH1), 0, // offset
		byte(prism.LOG1),
	})

	res, err := p.Execute(vm.BlockParameters{}, vm.TransactionParameters{}, Request{
		Kind:      vm.Call,
		Sender:    sender,
		Recipient: recipient,
		Gas:       100000,
	}, st)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Logs, 1)
	require.Equal(t, recipient, res.Logs[0].Address)
}
