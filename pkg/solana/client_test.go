package solana

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureStatus(t *testing.T) {
	zero, one := 0, 1

	for _, tc := range []struct {
		name      string
		s         SignatureStatus
		confirmed bool
		finalized bool
	}{
		{
			name: "no confirmations",
			s:    SignatureStatus{Slot: 10, Confirmations: &zero},
		},
		{
			name: "unknown status",
			s:    SignatureStatus{Slot: 10, Confirmations: &zero, ConfirmationStatus: "random"},
		},
		{
			name: "processed",
			s:    SignatureStatus{Slot: 10, Confirmations: &zero, ConfirmationStatus: confirmationStatusProcessed},
		},
		{
			name:      "one confirmation",
			s:         SignatureStatus{Slot: 10, Confirmations: &one},
			confirmed: true,
		},
		{
			name:      "confirmed",
			s:         SignatureStatus{Slot: 10, Confirmations: &zero, ConfirmationStatus: confirmationStatusConfirmed},
			confirmed: true,
		},
		{
			name:      "finalized",
			s:         SignatureStatus{Slot: 10, Confirmations: &zero, ConfirmationStatus: confirmationStatusFinalized},
			confirmed: true,
			finalized: true,
		},
		{
			name:      "rooted",
			s:         SignatureStatus{Slot: 10},
			confirmed: true,
			finalized: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.confirmed, tc.s.Confirmed())
			assert.Equal(t, tc.finalized, tc.s.Finalized())
		})
	}
}

// newFakeNode serves JSON-RPC requests with handle, which returns either a
// result or an error object.
func newFakeNode(t *testing.T, handle func(method string, params []json.RawMessage) (interface{}, map[string]interface{})) Client {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int               `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, rpcErr := handle(req.Method, req.Params)

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}

		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)

	return New(server.URL)
}

func TestClient_GetBalance(t *testing.T) {
	sc := newFakeNode(t, func(method string, params []json.RawMessage) (interface{}, map[string]interface{}) {
		assert.Equal(t, "getBalance", method)
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 5},
			"value":   1234,
		}, nil
	})

	balance, err := sc.GetBalance(make([]byte, 32))
	require.NoError(t, err)
	assert.EqualValues(t, 1234, balance)
}

func TestClient_RetriesRateLimit(t *testing.T) {
	var calls int32
	sc := newFakeNode(t, func(method string, params []json.RawMessage) (interface{}, map[string]interface{}) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, map[string]interface{}{"code": 429, "message": "too many requests"}
		}
		return 42, nil
	})

	slot, err := sc.GetSlot(CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, 42, slot)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestClient_AccountNotFound(t *testing.T) {
	sc := newFakeNode(t, func(method string, params []json.RawMessage) (interface{}, map[string]interface{}) {
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 5},
			"value":   nil,
		}, nil
	})

	_, err := sc.GetAccountInfo(make([]byte, 32), CommitmentFinalized)
	assert.Equal(t, ErrNoAccountInfo, err)
}

func TestClient_SubmitTransactionRejected(t *testing.T) {
	sc := newFakeNode(t, func(method string, params []json.RawMessage) (interface{}, map[string]interface{}) {
		assert.Equal(t, "sendTransaction", method)
		return nil, map[string]interface{}{
			"code":    RPCSendTransactionPreflightFailureCode,
			"message": "Transaction simulation failed",
			"data": map[string]interface{}{
				"err": map[string]interface{}{
					"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 6003}},
				},
			},
		}
	})

	payer := make([]byte, 32)
	program := make([]byte, 32)
	program[0] = 1
	tx := NewTransaction(payer, NewInstruction(program, []byte{1}))

	_, err := sc.SubmitTransaction(tx, CommitmentConfirmed)
	require.Error(t, err)

	txErr, ok := err.(*TransactionError)
	require.True(t, ok)
	require.NotNil(t, txErr.InstructionError())
	assert.Equal(t, CustomError(6003), *txErr.InstructionError().CustomError())
}
