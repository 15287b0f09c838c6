package ledger

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/sol-trust/pkg/ledger/accounts"
	"github.com/code-payments/sol-trust/pkg/ledger/accounts/memory"
	"github.com/code-payments/sol-trust/pkg/solana"
	"github.com/code-payments/sol-trust/pkg/solana/memo"
	"github.com/code-payments/sol-trust/pkg/solana/system"
)

const (
	testFee       = 5000
	testFunding   = 10 * 1_000_000_000
	rentExemptMin = 890_880
)

type testProgram struct {
	id      ed25519.PublicKey
	process func(ic *InvokeContext, data []byte) error
}

func newTestProgram(t *testing.T, process func(ic *InvokeContext, data []byte) error) *testProgram {
	return &testProgram{
		id:      newKey(t).Public().(ed25519.PublicKey),
		process: process,
	}
}

func (p *testProgram) Id() ed25519.PublicKey {
	return p.id
}

func (p *testProgram) Process(ic *InvokeContext, data []byte) error {
	return p.process(ic, data)
}

type testEnv struct {
	ledger *Ledger
	store  accounts.Store
	now    time.Time
}

func setup(t *testing.T, overrides *TestOverrides, programs ...Program) *testEnv {
	if overrides == nil {
		overrides = &TestOverrides{}
	}

	env := &testEnv{
		store: memory.New(),
		now:   time.Unix(1_700_000_000, 0),
	}

	l, err := New(
		context.Background(),
		env.store,
		WithTestOverrides(overrides),
		WithPrograms(programs...),
		WithClock(ClockFunc(func() time.Time { return env.now })),
	)
	require.NoError(t, err)
	env.ledger = l

	return env
}

func (e *testEnv) fundedKey(t *testing.T, lamports uint64) ed25519.PrivateKey {
	key := newKey(t)
	_, err := e.ledger.RequestAirdrop(context.Background(), key.Public().(ed25519.PublicKey), lamports)
	require.NoError(t, err)
	return key
}

func (e *testEnv) newTransaction(t *testing.T, signers []ed25519.PrivateKey, instructions ...solana.Instruction) solana.Transaction {
	tx := solana.NewTransaction(signers[0].Public().(ed25519.PublicKey), instructions...)
	bh, _ := e.ledger.GetLatestBlockhash()
	tx.SetBlockhash(bh)
	require.NoError(t, tx.Sign(signers...))
	return tx
}

func (e *testEnv) submit(t *testing.T, signers []ed25519.PrivateKey, instructions ...solana.Instruction) (solana.Signature, error) {
	tx := e.newTransaction(t, signers, instructions...)
	sig, err := e.ledger.SubmitTransaction(context.Background(), tx)
	e.ledger.AdvanceSlot()
	return sig, err
}

func (e *testEnv) balance(t *testing.T, address ed25519.PublicKey) uint64 {
	balance, err := e.ledger.GetBalance(context.Background(), address)
	require.NoError(t, err)
	return balance
}

func newKey(t *testing.T) ed25519.PrivateKey {
	_, key, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return key
}

func publicKey(key ed25519.PrivateKey) ed25519.PublicKey {
	return key.Public().(ed25519.PublicKey)
}

func requireTransactionError(t *testing.T, expected solana.TransactionErrorKey, err error) {
	require.Error(t, err)

	var txErr *solana.TransactionError
	require.True(t, errors.As(err, &txErr), "unexpected error: %v", err)
	assert.Equal(t, expected, txErr.ErrorKey())
}

func requireInstructionError(t *testing.T, expected solana.InstructionErrorKey, err error) {
	require.Error(t, err)

	var failed *TransactionFailedError
	require.True(t, errors.As(err, &failed), "unexpected error: %v", err)

	ixErr := failed.TransactionError().InstructionError()
	require.NotNil(t, ixErr)
	assert.Equal(t, expected, ixErr.ErrorKey())
}

func TestNew_DuplicateProgram(t *testing.T) {
	_, err := New(
		context.Background(),
		memory.New(),
		WithTestOverrides(&TestOverrides{}),
		WithPrograms(NewMemoProgram()),
	)
	assert.True(t, errors.Is(err, ErrProgramAlreadyRegistered))
}

func TestGenesis(t *testing.T) {
	env := setup(t, nil)
	ctx := context.Background()

	for _, program := range []ed25519.PublicKey{system.ProgramKey[:], memo.ProgramKey} {
		record, err := env.ledger.GetAccount(ctx, program)
		require.NoError(t, err)
		assert.True(t, record.Executable)
		assert.Equal(t, NativeLoaderAddress, record.Owner)
	}

	faucetBalance := env.balance(t, env.ledger.Faucet())
	assert.EqualValues(t, defaultFaucetLamports, faucetBalance)

	key := env.fundedKey(t, testFunding)
	assert.EqualValues(t, testFunding, env.balance(t, publicKey(key)))
	assert.EqualValues(t, faucetBalance-testFunding-testFee, env.balance(t, env.ledger.Faucet()))

	// A second ledger over the same store keeps the existing accounts.
	restarted, err := New(ctx, env.store, WithTestOverrides(&TestOverrides{}))
	require.NoError(t, err)
	balance, err := restarted.GetBalance(ctx, restarted.Faucet())
	require.NoError(t, err)
	assert.EqualValues(t, faucetBalance-testFunding-testFee, balance)
}

func TestTransfer(t *testing.T) {
	env := setup(t, nil)

	sender := env.fundedKey(t, testFunding)
	receiver := newKey(t)

	sig, err := env.submit(
		t,
		[]ed25519.PrivateKey{sender},
		system.Transfer(publicKey(sender), publicKey(receiver), 1_000_000_000),
	)
	require.NoError(t, err)

	assert.EqualValues(t, testFunding-1_000_000_000-testFee, env.balance(t, publicKey(sender)))
	assert.EqualValues(t, 1_000_000_000, env.balance(t, publicKey(receiver)))

	statuses := env.ledger.GetSignatureStatuses(sig, solana.Signature{})
	require.Len(t, statuses, 2)
	require.NotNil(t, statuses[0])
	assert.Nil(t, statuses[1])
	assert.Nil(t, statuses[0].Err)
	assert.EqualValues(t, testFee, statuses[0].Fee)
	assert.Contains(t, statuses[0].Logs, fmt.Sprintf("Program %s invoke [1]", base58.Encode(system.ProgramKey[:])))
}

func TestSubmit_Rejected(t *testing.T) {
	env := setup(t, &TestOverrides{MaxBlockhashAge: 2})
	ctx := context.Background()

	sender := env.fundedKey(t, testFunding)
	receiver := publicKey(newKey(t))

	// Unfunded fee payer
	_, err := env.submit(t, []ed25519.PrivateKey{newKey(t)}, memo.Instruction("hello"))
	requireTransactionError(t, solana.TransactionErrorAccountNotFound, err)

	// Bad signature
	tx := env.newTransaction(t, []ed25519.PrivateKey{sender}, system.Transfer(publicKey(sender), receiver, 1))
	tx.Signatures[0][0] ^= 0xff
	_, err = env.ledger.SubmitTransaction(ctx, tx)
	requireTransactionError(t, solana.TransactionErrorSignatureFailure, err)

	// Unknown program
	_, err = env.submit(t, []ed25519.PrivateKey{sender}, solana.NewInstruction(receiver, nil))
	requireTransactionError(t, solana.TransactionErrorProgramAccountNotFound, err)

	// Duplicate
	tx = env.newTransaction(t, []ed25519.PrivateKey{sender}, system.Transfer(publicKey(sender), receiver, rentExemptMin))
	_, err = env.ledger.SubmitTransaction(ctx, tx)
	require.NoError(t, err)
	_, err = env.ledger.SubmitTransaction(ctx, tx)
	requireTransactionError(t, solana.TransactionErrorAlreadyProcessed, err)

	// Expired blockhash
	tx = env.newTransaction(t, []ed25519.PrivateKey{sender}, system.Transfer(publicKey(sender), receiver, 1))
	for i := 0; i < 3; i++ {
		env.ledger.AdvanceSlot()
	}
	_, err = env.ledger.SubmitTransaction(ctx, tx)
	requireTransactionError(t, solana.TransactionErrorBlockhashNotFound, err)

	// None of the rejected transactions were charged.
	assert.EqualValues(t, testFunding-rentExemptMin-testFee, env.balance(t, publicKey(sender)))
	assert.EqualValues(t, rentExemptMin, env.balance(t, receiver))
}

func TestSubmit_InsufficientFundsForFee(t *testing.T) {
	env := setup(t, &TestOverrides{LamportsPerSignature: 1_000_000})

	payer := env.fundedKey(t, 900_000)
	_, err := env.submit(t, []ed25519.PrivateKey{payer}, memo.Instruction("hello"))
	requireTransactionError(t, solana.TransactionErrorInsufficientFundsForFee, err)
	assert.EqualValues(t, 900_000, env.balance(t, publicKey(payer)))
}

func TestSubmit_FailureChargesFee(t *testing.T) {
	env := setup(t, nil)

	sender := env.fundedKey(t, testFunding)
	receiver := publicKey(newKey(t))

	sig, err := env.submit(
		t,
		[]ed25519.PrivateKey{sender},
		system.Transfer(publicKey(sender), receiver, rentExemptMin),
		system.Transfer(publicKey(sender), receiver, 2*testFunding),
	)
	require.Error(t, err)

	var custom solana.CustomError
	require.True(t, errors.As(err, &custom))
	assert.Equal(t, SystemErrorResultWithNegativeLamports.Custom(), custom)

	var failed *TransactionFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, 1, failed.TransactionError().InstructionError().Index)

	// The first transfer is rolled back along with the second.
	assert.EqualValues(t, testFunding-testFee, env.balance(t, publicKey(sender)))
	assert.EqualValues(t, 0, env.balance(t, receiver))

	statuses := env.ledger.GetSignatureStatuses(sig)
	require.NotNil(t, statuses[0])
	require.NotNil(t, statuses[0].Err)
	assert.Equal(t, solana.TransactionErrorInstructionError, statuses[0].Err.ErrorKey())
}

func TestSubmit_RentCheck(t *testing.T) {
	env := setup(t, nil)

	sender := env.fundedKey(t, testFunding)
	receiver := publicKey(newKey(t))

	_, err := env.submit(t, []ed25519.PrivateKey{sender}, system.Transfer(publicKey(sender), receiver, 1_000))
	requireTransactionError(t, solana.TransactionErrorInsufficientFundsForRent, err)

	assert.EqualValues(t, testFunding-testFee, env.balance(t, publicKey(sender)))
	assert.EqualValues(t, 0, env.balance(t, receiver))

	// Draining an account entirely is allowed.
	_, err = env.submit(t, []ed25519.PrivateKey{sender}, system.Transfer(publicKey(sender), receiver, testFunding-2*testFee))
	require.NoError(t, err)
	assert.EqualValues(t, 0, env.balance(t, publicKey(sender)))
}

func TestRuntime_AccountRules(t *testing.T) {
	program := newTestProgram(t, func(ic *InvokeContext, data []byte) error {
		infos := ic.Accounts()
		switch string(data) {
		case "spend":
			infos[0].Lamports -= 10
			infos[1].Lamports += 10
		case "mint":
			infos[1].Lamports += 10
		case "resize":
			infos[1].Data = []byte{1}
		case "executable":
			infos[1].Executable = true
		}
		return nil
	})
	env := setup(t, nil, program)

	key := env.fundedKey(t, testFunding)
	victim := env.fundedKey(t, testFunding)
	other := env.fundedKey(t, testFunding)

	for _, tc := range []struct {
		op       string
		expected solana.InstructionErrorKey
	}{
		{"spend", solana.InstructionErrorExternalAccountLamportSpend},
		{"mint", solana.InstructionErrorUnbalancedInstruction},
		{"resize", solana.InstructionErrorAccountDataSizeChanged},
		{"executable", solana.InstructionErrorExecutableModified},
	} {
		_, err := env.submit(
			t,
			[]ed25519.PrivateKey{key},
			solana.NewInstruction(
				program.Id(),
				[]byte(tc.op),
				solana.NewAccountMeta(publicKey(victim), false),
				solana.NewAccountMeta(publicKey(other), false),
			),
		)
		requireInstructionError(t, tc.expected, err)
	}

	assert.EqualValues(t, testFunding, env.balance(t, publicKey(victim)))
	assert.EqualValues(t, testFunding, env.balance(t, publicKey(other)))
}

func TestRuntime_ReadonlyLamportChange(t *testing.T) {
	program := newTestProgram(t, func(ic *InvokeContext, data []byte) error {
		owned, _ := ic.Account(0)
		readonly, _ := ic.Account(1)

		owned.Lamports -= 10
		readonly.Lamports += 10
		return nil
	})
	env := setup(t, nil, program)

	owner := env.fundedKey(t, testFunding)
	owned := env.fundedKey(t, testFunding)
	readonly := env.fundedKey(t, testFunding)

	_, err := env.submit(
		t,
		[]ed25519.PrivateKey{owner, owned},
		system.Assign(publicKey(owned), program.Id()),
		solana.NewInstruction(
			program.Id(),
			nil,
			solana.NewAccountMeta(publicKey(owned), false),
			solana.NewReadonlyAccountMeta(publicKey(readonly), false),
		),
	)
	requireInstructionError(t, solana.InstructionErrorReadonlyLamportChange, err)
}

func TestRuntime_OwnedAccounts(t *testing.T) {
	var program *testProgram
	program = newTestProgram(t, func(ic *InvokeContext, data []byte) error {
		account, err := ic.Account(0)
		if err != nil {
			return err
		}
		destination, err := ic.Account(1)
		if err != nil {
			return err
		}

		switch string(data) {
		case "claim":
			if err := ic.Invoke(system.Allocate(account.Address, 8)); err != nil {
				return err
			}
			if err := ic.Invoke(system.Assign(account.Address, program.Id())); err != nil {
				return err
			}
			copy(account.Data, "claimed!")
		case "pay":
			account.Lamports -= 1_000
			destination.Lamports += 1_000
		}
		return nil
	})
	env := setup(t, nil, program)
	ctx := context.Background()

	payer := env.fundedKey(t, testFunding)
	account := env.fundedKey(t, 2_000_000)
	destination := publicKey(env.fundedKey(t, testFunding))

	instruction := func(op string) solana.Instruction {
		return solana.NewInstruction(
			program.Id(),
			[]byte(op),
			solana.NewAccountMeta(publicKey(account), true),
			solana.NewAccountMeta(destination, false),
			solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
		)
	}

	_, err := env.submit(t, []ed25519.PrivateKey{payer, account}, instruction("claim"))
	require.NoError(t, err)

	record, err := env.ledger.GetAccount(ctx, publicKey(account))
	require.NoError(t, err)
	assert.Equal(t, base58.Encode(program.Id()), record.Owner)
	assert.Equal(t, []byte("claimed!"), record.Data)

	owned, err := env.ledger.GetProgramAccounts(ctx, program.Id())
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, record.Address, owned[0].Address)

	_, err = env.submit(t, []ed25519.PrivateKey{payer, account}, instruction("pay"))
	require.NoError(t, err)
	assert.EqualValues(t, 2_000_000-1_000, env.balance(t, publicKey(account)))
	assert.EqualValues(t, testFunding+1_000, env.balance(t, destination))

	// The system program no longer accepts the account.
	_, err = env.submit(t, []ed25519.PrivateKey{payer, account}, system.Transfer(publicKey(account), destination, 1_000))
	requireInstructionError(t, solana.InstructionErrorInvalidArgument, err)
}

func TestInvoke_Privileges(t *testing.T) {
	var program *testProgram
	program = newTestProgram(t, func(ic *InvokeContext, data []byte) error {
		from, _ := ic.Account(0)
		to, _ := ic.Account(1)

		switch string(data) {
		case "transfer":
			return ic.Invoke(system.Transfer(from.Address, to.Address, 1_000_000))
		case "pda":
			_, bump, err := solana.FindProgramAddressAndBump(program.Id(), []byte("pda"))
			if err != nil {
				return err
			}
			return ic.InvokeSigned(system.Transfer(from.Address, to.Address, 1_000_000), [][]byte{[]byte("pda"), {bump}})
		case "wrong-seeds":
			_, bump, err := solana.FindProgramAddressAndBump(program.Id(), []byte("other"))
			if err != nil {
				return err
			}
			return ic.InvokeSigned(system.Transfer(from.Address, to.Address, 1_000_000), [][]byte{[]byte("other"), {bump}})
		case "missing":
			return ic.Invoke(system.Transfer(from.Address, publicKey(newKey(t)), 1_000_000))
		case "unsupported":
			return ic.Invoke(solana.NewInstruction(to.Address, nil))
		case "ignored":
			_ = ic.Invoke(system.Transfer(from.Address, to.Address, 2*testFunding))
			return nil
		}
		return solana.InstructionErrorInvalidInstructionData
	})
	env := setup(t, nil, program)

	pda, err := solana.FindProgramAddress(program.Id(), []byte("pda"))
	require.NoError(t, err)

	payer := env.fundedKey(t, testFunding)
	from := env.fundedKey(t, testFunding)
	to := publicKey(env.fundedKey(t, testFunding))

	_, err = env.submit(t, []ed25519.PrivateKey{payer}, system.Transfer(publicKey(payer), pda, testFunding/2))
	require.NoError(t, err)

	instruction := func(op string, from ed25519.PublicKey, isSigner bool) solana.Instruction {
		return solana.NewInstruction(
			program.Id(),
			[]byte(op),
			solana.NewAccountMeta(from, isSigner),
			solana.NewAccountMeta(to, false),
			solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
		)
	}

	_, err = env.submit(t, []ed25519.PrivateKey{payer, from}, instruction("transfer", publicKey(from), true))
	require.NoError(t, err)
	assert.EqualValues(t, testFunding-1_000_000, env.balance(t, publicKey(from)))

	_, err = env.submit(t, []ed25519.PrivateKey{payer}, instruction("transfer", publicKey(from), false))
	requireInstructionError(t, solana.InstructionErrorPrivilegeEscalation, err)

	_, err = env.submit(t, []ed25519.PrivateKey{payer}, instruction("pda", pda, false))
	require.NoError(t, err)
	assert.EqualValues(t, testFunding/2-1_000_000, env.balance(t, pda))

	_, err = env.submit(t, []ed25519.PrivateKey{payer}, instruction("wrong-seeds", pda, false))
	requireInstructionError(t, solana.InstructionErrorPrivilegeEscalation, err)

	_, err = env.submit(t, []ed25519.PrivateKey{payer, from}, instruction("missing", publicKey(from), true))
	requireInstructionError(t, solana.InstructionErrorMissingAccount, err)

	_, err = env.submit(t, []ed25519.PrivateKey{payer, from}, instruction("unsupported", publicKey(from), true))
	requireInstructionError(t, solana.InstructionErrorUnsupportedProgramID, err)

	// A failed invocation fails the transaction even when the caller carries on.
	_, err = env.submit(t, []ed25519.PrivateKey{payer, from}, instruction("ignored", publicKey(from), true))
	require.Error(t, err)
	var custom solana.CustomError
	require.True(t, errors.As(err, &custom))
	assert.Equal(t, SystemErrorResultWithNegativeLamports.Custom(), custom)

	assert.EqualValues(t, testFunding-1_000_000, env.balance(t, publicKey(from)))
}

func TestInvoke_CallDepth(t *testing.T) {
	var depths []int
	var program *testProgram
	program = newTestProgram(t, func(ic *InvokeContext, data []byte) error {
		depths = append(depths, len(depths)+1)
		return ic.Invoke(solana.NewInstruction(program.Id(), nil))
	})
	env := setup(t, nil, program)

	payer := env.fundedKey(t, testFunding)
	_, err := env.submit(t, []ed25519.PrivateKey{payer}, solana.NewInstruction(program.Id(), nil))
	requireInstructionError(t, solana.InstructionErrorCallDepth, err)
	assert.Len(t, depths, MaxInvokeDepth)

	var failed *TransactionFailedError
	require.True(t, errors.As(err, &failed))
	assert.Contains(t, failed.Status.Logs, fmt.Sprintf("Program %s invoke [%d]", base58.Encode(program.Id()), MaxInvokeDepth))
}

func TestInvoke_Reentrancy(t *testing.T) {
	var first, second *testProgram
	first = newTestProgram(t, func(ic *InvokeContext, data []byte) error {
		return ic.Invoke(solana.NewInstruction(
			second.Id(),
			nil,
			solana.NewReadonlyAccountMeta(first.Id(), false),
		))
	})
	second = newTestProgram(t, func(ic *InvokeContext, data []byte) error {
		return ic.Invoke(solana.NewInstruction(first.Id(), nil))
	})
	env := setup(t, nil, first, second)

	payer := env.fundedKey(t, testFunding)
	_, err := env.submit(
		t,
		[]ed25519.PrivateKey{payer},
		solana.NewInstruction(
			first.Id(),
			nil,
			solana.NewReadonlyAccountMeta(second.Id(), false),
		),
	)
	requireInstructionError(t, solana.InstructionErrorReentrancyNotAllowed, err)
}

func TestLogs(t *testing.T) {
	program := newTestProgram(t, func(ic *InvokeContext, data []byte) error {
		ic.Log("processing %d bytes", len(data))
		return nil
	})
	env := setup(t, nil, program)

	payer := env.fundedKey(t, testFunding)
	sig, err := env.submit(
		t,
		[]ed25519.PrivateKey{payer},
		memo.Instruction("hello", publicKey(payer)),
		solana.NewInstruction(program.Id(), []byte{1, 2, 3}),
	)
	require.NoError(t, err)

	status := env.ledger.GetSignatureStatuses(sig)[0]
	require.NotNil(t, status)
	assert.Equal(t, []string{
		fmt.Sprintf("Program %s invoke [1]", base58.Encode(memo.ProgramKey)),
		`Program log: Memo (len 5): "hello"`,
		fmt.Sprintf("Program %s success", base58.Encode(memo.ProgramKey)),
		fmt.Sprintf("Program %s invoke [1]", base58.Encode(program.Id())),
		"Program log: processing 3 bytes",
		fmt.Sprintf("Program %s success", base58.Encode(program.Id())),
	}, status.Logs)
}

func TestLogs_Truncated(t *testing.T) {
	program := newTestProgram(t, func(ic *InvokeContext, data []byte) error {
		for i := 0; i < 2*maxLogMessages; i++ {
			ic.Log("%d", i)
		}
		return nil
	})
	env := setup(t, nil, program)

	payer := env.fundedKey(t, testFunding)
	sig, err := env.submit(t, []ed25519.PrivateKey{payer}, solana.NewInstruction(program.Id(), nil))
	require.NoError(t, err)

	status := env.ledger.GetSignatureStatuses(sig)[0]
	require.NotNil(t, status)
	assert.Len(t, status.Logs, maxLogMessages)
	assert.Equal(t, "Log truncated", status.Logs[maxLogMessages-1])
}

func TestSubmit_Concurrent(t *testing.T) {
	env := setup(t, nil)

	const workers = 16
	const transfers = 10

	receiver := publicKey(env.fundedKey(t, testFunding))
	senders := make([]ed25519.PrivateKey, workers)
	for i := range senders {
		senders[i] = env.fundedKey(t, testFunding)
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers*transfers)
	for _, sender := range senders {
		wg.Add(1)
		go func(sender ed25519.PrivateKey) {
			defer wg.Done()

			for i := 0; i < transfers; i++ {
				tx := solana.NewTransaction(
					publicKey(sender),
					system.Transfer(publicKey(sender), receiver, 1_000),
					memo.Instruction(fmt.Sprintf("%d", i)),
				)
				bh, _ := env.ledger.GetLatestBlockhash()
				tx.SetBlockhash(bh)
				if err := tx.Sign(sender); err != nil {
					errs <- err
					continue
				}

				_, err := env.ledger.SubmitTransaction(context.Background(), tx)
				errs <- err
			}
		}(sender)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	assert.EqualValues(t, testFunding+workers*transfers*1_000, env.balance(t, receiver))
	for _, sender := range senders {
		assert.EqualValues(t, testFunding-transfers*(1_000+testFee), env.balance(t, publicKey(sender)))
	}
}

func TestAdvanceSlot(t *testing.T) {
	env := setup(t, &TestOverrides{MaxBlockhashAge: 5})

	bh, lastValid := env.ledger.GetLatestBlockhash()
	slot := env.ledger.GetSlot()
	assert.Equal(t, slot+5, lastValid)
	assert.True(t, env.ledger.IsBlockhashValid(bh))

	for i := 0; i < 5; i++ {
		next := env.ledger.AdvanceSlot()
		assert.Equal(t, slot+uint64(i)+1, next)
		assert.True(t, env.ledger.IsBlockhashValid(bh))
	}

	latest, _ := env.ledger.GetLatestBlockhash()
	assert.NotEqual(t, bh, latest)

	env.ledger.AdvanceSlot()
	assert.False(t, env.ledger.IsBlockhashValid(bh))
	assert.True(t, env.ledger.IsBlockhashValid(latest))
}

func TestRun(t *testing.T) {
	env := setup(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- env.ledger.Run(ctx)
	}()

	start := env.ledger.GetSlot()
	require.Eventually(t, func() bool {
		return env.ledger.GetSlot() > start
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, err == nil || errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("ledger did not stop")
	}
}

func TestMemoProgram(t *testing.T) {
	env := setup(t, nil)

	payer := env.fundedKey(t, testFunding)
	other := newKey(t)

	_, err := env.submit(t, []ed25519.PrivateKey{payer}, memo.Instruction("signed by payer", publicKey(payer)))
	require.NoError(t, err)

	// Every memo account must sign.
	_, err = env.submit(
		t,
		[]ed25519.PrivateKey{payer},
		solana.NewInstruction(
			memo.ProgramKey,
			[]byte("hello"),
			solana.NewReadonlyAccountMeta(publicKey(other), false),
		),
	)
	requireInstructionError(t, solana.InstructionErrorMissingRequiredSignature, err)

	_, err = env.submit(t, []ed25519.PrivateKey{payer}, memo.Instruction(strings.Repeat("\xff", 4)))
	requireInstructionError(t, solana.InstructionErrorInvalidInstructionData, err)
}
