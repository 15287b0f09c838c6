package solana

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc"
)

// TransactionErrorKey identifies why a transaction was rejected. The values
// match the runtime's TransactionError variants, which is how they appear in
// the "err" field of RPC responses.
//
// Source: https://github.com/solana-labs/solana/blob/fc2bf2d3b669d1c6655ae48b0a05f470938f3676/sdk/src/transaction/mod.rs#L37
type TransactionErrorKey string

const (
	TransactionErrorAccountInUse             TransactionErrorKey = "AccountInUse"
	TransactionErrorAccountLoadedTwice       TransactionErrorKey = "AccountLoadedTwice"
	TransactionErrorAccountNotFound          TransactionErrorKey = "AccountNotFound"
	TransactionErrorProgramAccountNotFound   TransactionErrorKey = "ProgramAccountNotFound"
	TransactionErrorInsufficientFundsForFee  TransactionErrorKey = "InsufficientFundsForFee"
	TransactionErrorInvalidAccountForFee     TransactionErrorKey = "InvalidAccountForFee"
	TransactionErrorAlreadyProcessed         TransactionErrorKey = "AlreadyProcessed"
	TransactionErrorBlockhashNotFound        TransactionErrorKey = "BlockhashNotFound"
	TransactionErrorInstructionError         TransactionErrorKey = "InstructionError"
	TransactionErrorInvalidAccountIndex      TransactionErrorKey = "InvalidAccountIndex"
	TransactionErrorSignatureFailure         TransactionErrorKey = "SignatureFailure"
	TransactionErrorSanitizeFailure          TransactionErrorKey = "SanitizeFailure"
	TransactionErrorTooLarge                 TransactionErrorKey = "TooLarge"
	TransactionErrorInsufficientFundsForRent TransactionErrorKey = "InsufficientFundsForRent"
)

func (k TransactionErrorKey) Error() string {
	return string(k)
}

// InstructionErrorKey identifies why an instruction failed. Programs and the
// runtime return these directly as errors.
//
// Source: https://github.com/solana-labs/solana/blob/4e2754341514cd181ae3f373cc2548bd22e918b8/sdk/program/src/instruction.rs#L23
type InstructionErrorKey string

const (
	InstructionErrorGenericError                InstructionErrorKey = "GenericError"
	InstructionErrorInvalidArgument             InstructionErrorKey = "InvalidArgument"
	InstructionErrorInvalidInstructionData      InstructionErrorKey = "InvalidInstructionData"
	InstructionErrorMissingRequiredSignature    InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorUnbalancedInstruction       InstructionErrorKey = "UnbalancedInstruction"
	InstructionErrorModifiedProgramID           InstructionErrorKey = "ModifiedProgramId"
	InstructionErrorExternalAccountLamportSpend InstructionErrorKey = "ExternalAccountLamportSpend"
	InstructionErrorExternalAccountDataModified InstructionErrorKey = "ExternalAccountDataModified"
	InstructionErrorReadonlyLamportChange       InstructionErrorKey = "ReadonlyLamportChange"
	InstructionErrorReadonlyDataModified        InstructionErrorKey = "ReadonlyDataModified"
	InstructionErrorExecutableModified          InstructionErrorKey = "ExecutableModified"
	InstructionErrorNotEnoughAccountKeys        InstructionErrorKey = "NotEnoughAccountKeys"
	InstructionErrorAccountDataSizeChanged      InstructionErrorKey = "AccountDataSizeChanged"
	InstructionErrorCustom                      InstructionErrorKey = "Custom"
	InstructionErrorExecutableDataModified      InstructionErrorKey = "ExecutableDataModified"
	InstructionErrorExecutableLamportChange     InstructionErrorKey = "ExecutableLamportChange"
	InstructionErrorUnsupportedProgramID        InstructionErrorKey = "UnsupportedProgramId"
	InstructionErrorCallDepth                   InstructionErrorKey = "CallDepth"
	InstructionErrorMissingAccount              InstructionErrorKey = "MissingAccount"
	InstructionErrorReentrancyNotAllowed        InstructionErrorKey = "ReentrancyNotAllowed"
	InstructionErrorMaxSeedLengthExceeded       InstructionErrorKey = "MaxSeedLengthExceeded"
	InstructionErrorInvalidSeeds                InstructionErrorKey = "InvalidSeeds"
	InstructionErrorPrivilegeEscalation         InstructionErrorKey = "PrivilegeEscalation"
	InstructionErrorArithmeticOverflow          InstructionErrorKey = "ArithmeticOverflow"
)

func (k InstructionErrorKey) Error() string {
	return string(k)
}

// CustomError is a program defined error code.
type CustomError int

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: %x", int(c))
}

// InstructionError is the failure of the instruction at Index.
type InstructionError struct {
	Index int
	Err   error
}

func NewInstructionError(index int, err error) *InstructionError {
	return &InstructionError{
		Index: index,
		Err:   err,
	}
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("Error processing Instruction %d: %v", i.Index, i.Err)
}

func (i InstructionError) Unwrap() error {
	return i.Err
}

func (i InstructionError) ErrorKey() InstructionErrorKey {
	switch err := i.Err.(type) {
	case nil:
		return ""
	case CustomError:
		return InstructionErrorCustom
	default:
		return InstructionErrorKey(err.Error())
	}
}

func (i InstructionError) CustomError() *CustomError {
	if ce, ok := i.Err.(CustomError); ok {
		return &ce
	}
	return nil
}

// raw returns the JSON value of the error tuple, [index, "Key"] or
// [index, {"Custom": code}].
func (i InstructionError) raw() []interface{} {
	if ce, ok := i.Err.(CustomError); ok {
		return []interface{}{float64(i.Index), map[string]interface{}{string(InstructionErrorCustom): float64(ce)}}
	}
	return []interface{}{float64(i.Index), i.Err.Error()}
}

func (i InstructionError) JSONString() string {
	b, _ := json.Marshal(i.raw())
	return string(b)
}

func parseInstructionError(v interface{}) (InstructionError, error) {
	var e InstructionError

	tuple, ok := v.([]interface{})
	if !ok {
		return e, errors.New("unexpected instruction error format")
	}
	if len(tuple) != 2 {
		return e, errors.Errorf("expected 2 entries in InstructionError tuple, got %d", len(tuple))
	}

	index, err := parseJSONNumber(tuple[0])
	if err != nil {
		return e, err
	}
	e.Index = index

	switch detail := tuple[1].(type) {
	case string:
		e.Err = InstructionErrorKey(detail)
	case map[string]interface{}:
		key, value, err := singleEntry(detail)
		if err != nil {
			e.Err = errors.New("unhandled InstructionError")
			return e, err
		}

		if key != string(InstructionErrorCustom) {
			e.Err = InstructionErrorKey(key)
			break
		}

		code, err := parseJSONNumber(value)
		if err != nil {
			e.Err = errors.New("unhandled CustomError")
			break
		}
		e.Err = CustomError(code)
	}

	return e, nil
}

// TransactionError is a rejected transaction, along with the failing
// instruction when the rejection came from executing one.
type TransactionError struct {
	transactionError error
	instructionError *InstructionError
	raw              interface{}
}

func NewTransactionError(key TransactionErrorKey) *TransactionError {
	return &TransactionError{
		transactionError: key,
		raw:              string(key),
	}
}

// NewInsufficientFundsForRentError returns the error for a transaction that
// would leave the account at accountIndex funded but below rent exemption.
func NewInsufficientFundsForRentError(accountIndex int) *TransactionError {
	return &TransactionError{
		transactionError: TransactionErrorInsufficientFundsForRent,
		raw: map[string]interface{}{
			string(TransactionErrorInsufficientFundsForRent): map[string]interface{}{
				"account_index": accountIndex,
			},
		},
	}
}

func TransactionErrorFromInstructionError(err *InstructionError) (*TransactionError, error) {
	if err == nil || err.Err == nil {
		return nil, errors.New("instruction error is required")
	}

	return &TransactionError{
		transactionError: TransactionErrorInstructionError,
		instructionError: err,
		raw: map[string]interface{}{
			string(TransactionErrorInstructionError): err.raw(),
		},
	}, nil
}

// ParseRPCError extracts the transaction error carried in the data of an
// RPC error, if any.
func ParseRPCError(err *jsonrpc.RPCError) (*TransactionError, error) {
	if err == nil {
		return nil, nil
	}

	data, ok := err.Data.(map[string]interface{})
	if !ok {
		return nil, errors.New("expected map type")
	}

	if txErr, ok := data["err"]; ok && txErr != nil {
		return ParseTransactionError(txErr)
	}
	return nil, nil
}

// ParseTransactionError parses the "err" field of RPC responses.
func ParseTransactionError(raw interface{}) (*TransactionError, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return &TransactionError{
			transactionError: TransactionErrorKey(t),
			raw:              raw,
		}, nil
	case map[string]interface{}:
		unhandled := &TransactionError{
			transactionError: errors.New("unhandled transaction error"),
			raw:              raw,
		}

		key, value, err := singleEntry(t)
		if err != nil {
			return unhandled, err
		}

		if key != string(TransactionErrorInstructionError) {
			return &TransactionError{
				transactionError: TransactionErrorKey(key),
				raw:              raw,
			}, nil
		}

		instructionErr, err := parseInstructionError(value)
		if err != nil {
			return unhandled, errors.Wrap(err, "failed to parse instruction error")
		}

		return &TransactionError{
			transactionError: TransactionErrorInstructionError,
			instructionError: &instructionErr,
			raw:              raw,
		}, nil
	default:
		return nil, errors.Errorf("unhandled error type %T", raw)
	}
}

func (t TransactionError) Error() string {
	switch {
	case t.instructionError != nil:
		return t.instructionError.Error()
	case t.transactionError != nil:
		return t.transactionError.Error()
	default:
		return ""
	}
}

func (t TransactionError) ErrorKey() TransactionErrorKey {
	if t.transactionError == nil {
		return ""
	}
	return TransactionErrorKey(t.transactionError.Error())
}

func (t TransactionError) InstructionError() *InstructionError {
	return t.instructionError
}

// Unwrap exposes the instruction error when present, so errors.As can
// extract a CustomError or InstructionErrorKey.
func (t TransactionError) Unwrap() error {
	if t.instructionError != nil {
		return t.instructionError
	}
	return t.transactionError
}

// Raw returns the value for the "err" field of an RPC response.
func (t TransactionError) Raw() interface{} {
	return t.raw
}

func (t TransactionError) JSONString() (string, error) {
	b, err := json.Marshal(t.raw)
	return string(b), err
}

// singleEntry returns the only entry of an externally tagged enum value.
func singleEntry(m map[string]interface{}) (string, interface{}, error) {
	if len(m) != 1 {
		return "", nil, errors.Errorf("expected a single entry, got %d", len(m))
	}
	for k, v := range m {
		return k, v, nil
	}
	return "", nil, nil
}

func parseJSONNumber(v interface{}) (int, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, errors.Errorf("non int64 value in InstructionError tuple: %v", v)
		}
		return int(i), nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, errors.Errorf("non numeric value in InstructionError tuple: %v", v)
		}
		return int(i), nil
	case float64:
		return int(n), nil
	default:
		return 0, errors.Errorf("non numeric value in InstructionError tuple: %v", v)
	}
}
