package ledger

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/code-payments/sol-trust/pkg/solana"
	"github.com/code-payments/sol-trust/pkg/solana/system"
)

const (
	// MaxInvokeDepth is the maximum instruction stack height, including the
	// top level instruction.
	MaxInvokeDepth = 4

	maxLogMessages = 1000
)

// ClockSysvar is the cluster time visible to programs.
type ClockSysvar struct {
	Slot          uint64
	UnixTimestamp int64
}

// execution is the state shared by every instruction of a transaction.
type execution struct {
	programs map[string]Program
	accounts map[string]*Account
	clock    ClockSysvar

	stack []string
	logs  []string

	// failure is the first failed cross program invocation. The transaction
	// fails even if the caller ignores the error.
	failure error
}

// InvokeContext is the view of the ledger given to a program while it
// processes an instruction.
type InvokeContext struct {
	exec *execution

	programId ed25519.PublicKey
	accounts  []*AccountInfo
	depth     int

	// pre holds the state of each account at the last verification point.
	pre   map[string]*Account
	privs map[string]privileges
}

func (ic *InvokeContext) ProgramId() ed25519.PublicKey {
	return ic.programId
}

// Accounts returns the accounts passed to the instruction, in order.
func (ic *InvokeContext) Accounts() []*AccountInfo {
	return ic.accounts
}

// Account returns the instruction account at index.
func (ic *InvokeContext) Account(index int) (*AccountInfo, error) {
	if index < 0 || index >= len(ic.accounts) {
		return nil, solana.InstructionErrorNotEnoughAccountKeys
	}
	return ic.accounts[index], nil
}

// Clock returns the clock sysvar for the slot the transaction executes in.
func (ic *InvokeContext) Clock() ClockSysvar {
	return ic.exec.clock
}

// MinimumBalanceForRentExemption returns the lamports an account with size
// bytes of data needs to be rent exempt.
func (ic *InvokeContext) MinimumBalanceForRentExemption(size uint64) uint64 {
	return system.MinimumBalanceForRentExemption(size)
}

// Log appends a program log message to the transaction logs.
func (ic *InvokeContext) Log(format string, args ...interface{}) {
	ic.exec.log("Program log: " + fmt.Sprintf(format, args...))
}

// Invoke executes ix as a cross program invocation.
func (ic *InvokeContext) Invoke(ix solana.Instruction) error {
	return ic.InvokeSigned(ix)
}

// InvokeSigned executes ix as a cross program invocation. Each seed set
// derives, with the calling program's id, an address that is treated as a
// signer for the invocation.
//
// Every account in ix, along with the invoked program, must be available to
// the caller, and the invocation may not grant a privilege the caller lacks.
func (ic *InvokeContext) InvokeSigned(ix solana.Instruction, signerSeeds ...[][]byte) error {
	if ic.depth+1 > MaxInvokeDepth {
		return solana.InstructionErrorCallDepth
	}

	calleeKey := base58.Encode(ix.Program)
	if _, ok := ic.privs[calleeKey]; !ok {
		return solana.InstructionErrorMissingAccount
	}

	callee, ok := ic.exec.programs[calleeKey]
	if !ok {
		return solana.InstructionErrorUnsupportedProgramID
	}

	if !bytes.Equal(ix.Program, ic.programId) {
		for _, onStack := range ic.exec.stack {
			if onStack == calleeKey {
				return solana.InstructionErrorReentrancyNotAllowed
			}
		}
	}

	signers := make(map[string]struct{})
	for _, seeds := range signerSeeds {
		address, err := solana.CreateProgramAddress(ic.programId, seeds...)
		if err == solana.ErrMaxSeedLengthExceeded {
			return solana.InstructionErrorMaxSeedLengthExceeded
		} else if err != nil {
			return solana.InstructionErrorInvalidSeeds
		}
		signers[base58.Encode(address)] = struct{}{}
	}

	calleePrivs := make(map[string]privileges)
	for _, meta := range ix.Accounts {
		key := base58.Encode(meta.PublicKey)

		callerPrivs, ok := ic.privs[key]
		if !ok {
			return solana.InstructionErrorMissingAccount
		}

		_, isPdaSigner := signers[key]
		if meta.IsWritable && !callerPrivs.isWritable {
			ic.Log("%s writable privilege escalated", key)
			return solana.InstructionErrorPrivilegeEscalation
		}
		if meta.IsSigner && !callerPrivs.isSigner && !isPdaSigner {
			ic.Log("%s signer privilege escalated", key)
			return solana.InstructionErrorPrivilegeEscalation
		}

		merged := calleePrivs[key]
		merged.isSigner = merged.isSigner || meta.IsSigner
		merged.isWritable = merged.isWritable || meta.IsWritable
		calleePrivs[key] = merged
	}

	// Changes made by the caller so far are verified before handing the
	// accounts over.
	if err := ic.verify(); err != nil {
		return err
	}

	infos := make([]*AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		key := base58.Encode(meta.PublicKey)
		privs := calleePrivs[key]
		infos[i] = &AccountInfo{
			Account:    ic.exec.accounts[key],
			IsSigner:   privs.isSigner,
			IsWritable: privs.isWritable,
		}
	}

	if err := ic.exec.invoke(callee, infos, ix.Data, ic.depth+1); err != nil {
		failure := &CrossProgramInvocationError{
			Program: ix.Program,
			Err:     err,
		}
		if ic.exec.failure == nil {
			ic.exec.failure = failure
		}
		return failure
	}

	// The callee's changes were verified against its own privileges, so they
	// become the caller's new baseline.
	ic.snapshot()
	return nil
}

// invoke runs program against infos at the provided stack depth and verifies
// the resulting account changes.
func (e *execution) invoke(program Program, infos []*AccountInfo, data []byte, depth int) error {
	programKey := base58.Encode(program.Id())

	ic := &InvokeContext{
		exec:      e,
		programId: program.Id(),
		accounts:  infos,
		depth:     depth,
		privs:     make(map[string]privileges),
	}
	ic.privs[programKey] = privileges{}
	for _, info := range infos {
		key := base58.Encode(info.Address)
		privs := ic.privs[key]
		privs.isSigner = privs.isSigner || info.IsSigner
		privs.isWritable = privs.isWritable || info.IsWritable
		ic.privs[key] = privs
	}
	ic.snapshot()

	e.stack = append(e.stack, programKey)
	e.log(fmt.Sprintf("Program %s invoke [%d]", programKey, depth))

	err := program.Process(ic, data)
	if err == nil && e.failure != nil {
		err = e.failure
	}
	if err == nil {
		err = ic.verify()
	}

	e.stack = e.stack[:len(e.stack)-1]

	if err != nil {
		e.log(fmt.Sprintf("Program %s failed: %v", programKey, err))
		return err
	}

	e.log(fmt.Sprintf("Program %s success", programKey))
	return nil
}

func (e *execution) log(message string) {
	if len(e.logs) >= maxLogMessages {
		return
	}
	if len(e.logs) == maxLogMessages-1 {
		e.logs = append(e.logs, "Log truncated")
		return
	}
	e.logs = append(e.logs, message)
}

func (ic *InvokeContext) snapshot() {
	ic.pre = make(map[string]*Account, len(ic.privs))
	for key := range ic.privs {
		if account, ok := ic.exec.accounts[key]; ok {
			ic.pre[key] = account.clone()
		}
	}
}

// verify checks the changes made since the last snapshot are permitted for
// the executing program.
func (ic *InvokeContext) verify() error {
	var preTotal, postTotal uint64

	for key, pre := range ic.pre {
		post := ic.exec.accounts[key]
		privs := ic.privs[key]

		if err := verifyAccount(ic.programId, pre, post, privs.isWritable); err != nil {
			ic.Log("%s: %v", key, err)
			return err
		}

		preTotal += pre.Lamports
		postTotal += post.Lamports
	}

	if preTotal != postTotal {
		return solana.InstructionErrorUnbalancedInstruction
	}
	return nil
}

// verifyAccount enforces the account modification rules of the runtime
//
// Reference: https://github.com/solana-labs/solana/blob/v1.17.0/sdk/src/transaction_context.rs
func verifyAccount(program ed25519.PublicKey, pre, post *Account, isWritable bool) error {
	isOwner := pre.IsOwnedBy(program)

	if pre.Executable != post.Executable {
		return solana.InstructionErrorExecutableModified
	}

	if !bytes.Equal(pre.Owner, post.Owner) {
		if !isWritable || !isOwner || pre.Executable || !isZeroed(post.Data) {
			return solana.InstructionErrorModifiedProgramID
		}
	}

	if post.Lamports < pre.Lamports {
		if !isWritable {
			return solana.InstructionErrorReadonlyLamportChange
		}
		if !isOwner {
			return solana.InstructionErrorExternalAccountLamportSpend
		}
	}
	if post.Lamports != pre.Lamports {
		if !isWritable {
			return solana.InstructionErrorReadonlyLamportChange
		}
		if pre.Executable {
			return solana.InstructionErrorExecutableLamportChange
		}
	}

	if len(pre.Data) != len(post.Data) {
		if !isWritable || !isOwner {
			return solana.InstructionErrorAccountDataSizeChanged
		}
		if len(post.Data) > system.MaxPermittedDataLen {
			return solana.InstructionErrorInvalidArgument
		}
	}

	if !bytes.Equal(pre.Data, post.Data) {
		if pre.Executable {
			return solana.InstructionErrorExecutableDataModified
		}
		if !isWritable {
			return solana.InstructionErrorReadonlyDataModified
		}
		if !isOwner {
			return solana.InstructionErrorExternalAccountDataModified
		}
	}

	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
