package ledger

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/code-payments/sol-trust/pkg/solana"
)

var (
	ErrProgramAlreadyRegistered = errors.New("program already registered")
	ErrClosed                   = errors.New("ledger is closed")
)

// CrossProgramInvocationError is returned to a caller when a program it
// invoked failed. It unwraps to the callee's error.
type CrossProgramInvocationError struct {
	Program ed25519.PublicKey
	Err     error
}

func (e *CrossProgramInvocationError) Error() string {
	return fmt.Sprintf("invocation of program %s failed: %v", base58.Encode(e.Program), e.Err)
}

func (e *CrossProgramInvocationError) Unwrap() error {
	return e.Err
}

// TransactionFailedError is returned for transactions that were processed,
// and charged a fee, but whose instructions failed. It unwraps to both the
// chain-level *solana.TransactionError and the program error that caused it.
type TransactionFailedError struct {
	Status *Status

	txErr *solana.TransactionError
	cause error
}

func (e *TransactionFailedError) Error() string {
	return e.txErr.Error()
}

func (e *TransactionFailedError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.txErr}
	}
	return []error{e.cause, e.txErr}
}

// TransactionError returns the chain-level error of the failed transaction.
func (e *TransactionFailedError) TransactionError() *solana.TransactionError {
	return e.txErr
}

// customError is implemented by typed program errors that map to a
// solana.CustomError code.
type customError interface {
	Custom() solana.CustomError
}

// toInstructionError reduces a program error to the value reported in a
// transaction result.
func toInstructionError(err error) error {
	var coded customError
	if errors.As(err, &coded) {
		return coded.Custom()
	}

	var custom solana.CustomError
	if errors.As(err, &custom) {
		return custom
	}

	var key solana.InstructionErrorKey
	if errors.As(err, &key) {
		return key
	}

	return solana.InstructionErrorGenericError
}
