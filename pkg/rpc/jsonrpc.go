package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/code-payments/sol-trust/pkg/solana"
)

const jsonRPCVersion = "2.0"

// Reference: https://www.jsonrpc.org/specification#error_object
const (
	parseErrorCode     = -32700
	invalidRequestCode = -32600
	methodNotFoundCode = -32601
	invalidParamsCode  = solana.RPCInvalidParamCode
	internalErrorCode  = -32603

	sendTransactionFailureCode = solana.RPCSendTransactionPreflightFailureCode

	// Matches the HTTP status public RPC nodes return when rate limiting.
	rateLimitedCode = 429
)

type request struct {
	Version string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type response struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func newError(code int, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func invalidParams(format string, args ...interface{}) *Error {
	return newError(invalidParamsCode, format, args...)
}

// transactionFailureData is the data attached to sendTransaction failures,
// in the shape solana.ParseRPCError expects.
type transactionFailureData struct {
	Err  interface{} `json:"err"`
	Logs []string    `json:"logs"`
}

type rpcContext struct {
	Slot uint64 `json:"slot"`
}

type contextResult struct {
	Context rpcContext  `json:"context"`
	Value   interface{} `json:"value"`
}

// params decodes positional parameters. Trailing optional parameters may be
// omitted by the caller.
type params []json.RawMessage

func (p params) decode(index int, out interface{}) (bool, *Error) {
	if index >= len(p) {
		return false, nil
	}
	if len(p[index]) == 0 || string(p[index]) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(p[index], out); err != nil {
		return false, invalidParams("invalid params: param %d: %v", index, err)
	}
	return true, nil
}

func (p params) require(index int, out interface{}) *Error {
	ok, rpcErr := p.decode(index, out)
	if rpcErr != nil {
		return rpcErr
	}
	if !ok {
		return invalidParams("invalid params: missing param %d", index)
	}
	return nil
}
